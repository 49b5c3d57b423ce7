package split

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validProperties() *Properties {
	return &Properties{
		PackageURL:   "./substreams.spkg",
		OutputModule: "map_events",
		EndpointURL:  "mainnet.eth.streamingfast.io:443",
		StartBlock:   "100",
		StopBlock:    "5000",
	}
}

func TestProperties_Validate(t *testing.T) {
	config, err := validProperties().Validate()
	require.NoError(t, err)

	assert.Equal(t, "./substreams.spkg", config.Package.Location)
	assert.Equal(t, "map_events", config.OutputModule)
	assert.Equal(t, "mainnet.eth.streamingfast.io:443", config.EndpointURL)
	assert.Equal(t, uint64(100), config.StartBlock)
	assert.Equal(t, uint64(5000), config.StopBlock)

	unbounded := validProperties()
	unbounded.StopBlock = "0"
	config, err = unbounded.Validate()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), config.StopBlock)

	unbounded.StopBlock = ""
	config, err = unbounded.Validate()
	require.NoError(t, err)
	assert.Equal(t, uint64(0), config.StopBlock)
}

func TestProperties_Validate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		mutate   func(p *Properties)
		property string
	}{
		{"empty package", func(p *Properties) { p.PackageURL = "" }, PropertyPackageURL},
		{"malformed registry reference", func(p *Properties) { p.PackageURL = "a@b@c" }, PropertyPackageURL},
		{"module starts with digit", func(p *Properties) { p.OutputModule = "1map" }, PropertyOutputModule},
		{"module too long", func(p *Properties) { p.OutputModule = strings.Repeat("m", 65) }, PropertyOutputModule},
		{"module with dot", func(p *Properties) { p.OutputModule = "map.events" }, PropertyOutputModule},
		{"empty endpoint", func(p *Properties) { p.EndpointURL = " " }, PropertyEndpointURL},
		{"start not numeric", func(p *Properties) { p.StartBlock = "abc" }, PropertyStartBlock},
		{"start negative", func(p *Properties) { p.StartBlock = "-1" }, PropertyStartBlock},
		{"start empty", func(p *Properties) { p.StartBlock = "" }, PropertyStartBlock},
		{"stop not numeric", func(p *Properties) { p.StopBlock = "12a" }, PropertyStopBlock},
		{"stop before start", func(p *Properties) { p.StopBlock = "50" }, PropertyStopBlock},
		{"stop equals start", func(p *Properties) { p.StopBlock = "100" }, PropertyStopBlock},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			props := validProperties()
			tt.mutate(props)

			_, err := props.Validate()
			require.Error(t, err)

			var configErr *ConfigError
			require.True(t, errors.As(err, &configErr), "expected *ConfigError, got %T", err)
			assert.Equal(t, tt.property, configErr.Property)
		})
	}
}
