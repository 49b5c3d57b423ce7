package stream

import (
	"testing"

	"github.com/streamingfast/substreams/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClientConfig(t *testing.T) {
	tests := []struct {
		name          string
		apiToken      string
		apiKey        string
		expectedToken string
		expectedType  client.AuthType
	}{
		{"token", "jwt", "", "jwt", client.JWT},
		{"api key", "", "key", "key", client.ApiKey},
		{"token wins over key", "jwt", "key", "jwt", client.JWT},
		{"none", "", "", "", client.None},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := NewClientConfig("localhost:9000", tt.apiToken, tt.apiKey, false, true)

			assert.Equal(t, "localhost:9000", config.Endpoint())
			assert.Equal(t, tt.expectedToken, config.AuthToken())
			assert.Equal(t, tt.expectedType, config.AuthType())
			assert.True(t, config.PlainText())
			assert.False(t, config.Insecure())
		})
	}
}

func TestNewGRPCClient_InvalidEndpoint(t *testing.T) {
	_, err := NewGRPCClient(NewClientConfig("localhost", "", "", false, true))
	require.Error(t, err)
	assert.ErrorContains(t, err, "port")
}
