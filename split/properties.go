package split

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/streamingfast/substreams-cursor-source/spkg"
)

const (
	PropertyPackageURL   = "substreams.package_url"
	PropertyOutputModule = "substreams.output_module"
	PropertyEndpointURL  = "substreams.endpoint_url"
	PropertyStartBlock   = "substreams.start_block"
	PropertyStopBlock    = "substreams.stop_block"
)

// Properties is the raw, string typed configuration of a source.
type Properties struct {
	PackageURL   string `json:"substreams.package_url" yaml:"package_url"`
	OutputModule string `json:"substreams.output_module" yaml:"output_module"`
	EndpointURL  string `json:"substreams.endpoint_url" yaml:"endpoint_url"`
	StartBlock   string `json:"substreams.start_block" yaml:"start_block"`
	StopBlock    string `json:"substreams.stop_block" yaml:"stop_block"`

	// RegistryURL resolves `<name>@<version>` package references, defaults
	// to spkg.DefaultRegistryURL.
	RegistryURL string `json:"substreams.registry_url,omitempty" yaml:"registry_url,omitempty"`
}

// Config is the validated form of Properties.
type Config struct {
	Package      *spkg.Reference
	OutputModule string
	EndpointURL  string
	StartBlock   uint64

	// StopBlock is exclusive, 0 means unbounded.
	StopBlock uint64
}

// Validate checks every property and returns the first failure as a *ConfigError.
func (p *Properties) Validate() (*Config, error) {
	ref, err := spkg.ParseReference(p.PackageURL, p.RegistryURL)
	if err != nil {
		return nil, newConfigError(PropertyPackageURL, p.PackageURL, err)
	}

	if !spkg.NameRegexp.MatchString(p.OutputModule) {
		return nil, newConfigError(PropertyOutputModule, p.OutputModule, fmt.Errorf("does not match regexp %s", spkg.NameRegexp))
	}

	endpoint := strings.TrimSpace(p.EndpointURL)
	if endpoint == "" || strings.ContainsAny(endpoint, " \t\n") {
		return nil, newConfigError(PropertyEndpointURL, p.EndpointURL, errors.New("endpoint must be a non-empty address"))
	}

	startBlock, err := parseBlockNumber(p.StartBlock)
	if err != nil {
		return nil, newConfigError(PropertyStartBlock, p.StartBlock, err)
	}

	stopBlock := uint64(0)
	if p.StopBlock != "" {
		stopBlock, err = parseBlockNumber(p.StopBlock)
		if err != nil {
			return nil, newConfigError(PropertyStopBlock, p.StopBlock, err)
		}
	}

	if stopBlock != 0 && stopBlock <= startBlock {
		return nil, newConfigError(PropertyStopBlock, p.StopBlock, fmt.Errorf("stop block must be greater than start block %d", startBlock))
	}

	return &Config{
		Package:      ref,
		OutputModule: p.OutputModule,
		EndpointURL:  endpoint,
		StartBlock:   startBlock,
		StopBlock:    stopBlock,
	}, nil
}

func parseBlockNumber(in string) (uint64, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(in), 10, 64)
	if err != nil {
		return 0, fmt.Errorf("not a valid block number: %w", err)
	}

	return value, nil
}
