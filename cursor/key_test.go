package cursor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const issuedToken = "BpGEpx1V1QDygCXB3XyTYqWwLpc_DFhrXQvmKRhIgYGApxO7quGjWgYXPEWW9aiZplKoSFjah66wfCMv95cEuoqdleE86lpaRS9LwoPs_7zve_D7MA4RB-wDIZ3yZ4K8OWiPJG_6E8pHo9blTKqoGipvNsJxeGDo-GkJ-oIvEqBF3iI="
const issuedCanonical = "c1:17:248033994:FgQNGL5jWRdhvU1YKws32FiAMXmd5gd6kGfih7KR3dWa:248033994:FgQNGL5jWRdhvU1YKws32FiAMXmd5gd6kGfih7KR3dWa"

func TestDecodeOpaque_PreviouslyIssuedToken(t *testing.T) {
	out, err := DecodeOpaque(issuedToken)
	require.NoError(t, err)
	assert.Equal(t, issuedCanonical, string(out))
}

func TestEncodeOpaque_ByteCompatible(t *testing.T) {
	assert.Equal(t, issuedToken, EncodeOpaque([]byte(issuedCanonical)))
	assert.Equal(t, "cYNVZgloRR5AngtITjcs2qWwLpcyB1pvX1q0e0BLhYE=", EncodeOpaque([]byte("c1:1:100:aaaa:0:")))
}

func TestDecodeOpaque_Errors(t *testing.T) {
	tampered := []byte(issuedToken)
	tampered[10] = 'A'
	if tampered[10] == issuedToken[10] {
		tampered[10] = 'B'
	}

	tests := []struct {
		name   string
		token  string
		reason DecodeReason
	}{
		{"not base64", "%%%not-base64%%%", ReasonInvalidEncoding},
		{"standard alphabet rejected", "ab+/ab==", ReasonInvalidEncoding},
		{"tampered", string(tampered), ReasonAuthentication},
		{"too short for tag", "AAAA", ReasonAuthentication},
		{"empty", "", ReasonAuthentication},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeOpaque(tt.token)
			require.Error(t, err)

			var decodeErr *DecodeError
			require.True(t, errors.As(err, &decodeErr))
			assert.Equal(t, tt.reason, decodeErr.Reason)
		})
	}
}
