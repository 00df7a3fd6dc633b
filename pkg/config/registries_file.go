package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// registriesFile is the optional YAML override for TRUSTED_REGISTRIES /
// EXTERNAL_SOURCE_1, for deployments that prefer a checked-in file over long
// environment variable strings. Grounded on the teacher's
// pkg/config/anchor_config.go YAML-loading idiom (yaml.v3 struct tags,
// read-file-then-Unmarshal), re-keyed to this domain's registry shape.
type registriesFile struct {
	TrustedRegistries []registryFileEntry `yaml:"trusted_registries"`
	ExternalSources   []externalFileEntry `yaml:"external_sources"`
}

type registryFileEntry struct {
	Index      int    `yaml:"index"`
	PDAddress  string `yaml:"pd_address"`
	PDChainID  string `yaml:"pd_chain_id"`
	CoTAddress string `yaml:"cot_address"`
	CoTChainID string `yaml:"cot_chain_id"`
}

type externalFileEntry struct {
	Index int    `yaml:"index"`
	URL   string `yaml:"url"`
}

// loadRegistriesFile reads and parses the YAML file at path into the same
// TrustedRegistry/ExternalSource shapes the TRUSTED_REGISTRIES/
// EXTERNAL_SOURCE_1 environment variables produce.
func loadRegistriesFile(path string) ([]TrustedRegistry, []ExternalSource, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, fmt.Errorf("read %s: %w", path, err)
	}

	var parsed registriesFile
	if err := yaml.Unmarshal(raw, &parsed); err != nil {
		return nil, nil, fmt.Errorf("parse %s: %w", path, err)
	}

	registries := make([]TrustedRegistry, 0, len(parsed.TrustedRegistries))
	for _, e := range parsed.TrustedRegistries {
		pdAddr, err := parseHexAddress(e.PDAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: registry %d: invalid pd_address: %w", path, e.Index, err)
		}
		cotAddr, err := parseHexAddress(e.CoTAddress)
		if err != nil {
			return nil, nil, fmt.Errorf("%s: registry %d: invalid cot_address: %w", path, e.Index, err)
		}
		registries = append(registries, TrustedRegistry{
			Index:      e.Index,
			PDAddress:  pdAddr,
			PDChainID:  e.PDChainID,
			CoTAddress: cotAddr,
			CoTChainID: e.CoTChainID,
		})
	}

	sources := make([]ExternalSource, 0, len(parsed.ExternalSources))
	for _, e := range parsed.ExternalSources {
		sources = append(sources, ExternalSource{Index: e.Index, URL: e.URL})
	}

	return registries, sources, nil
}
