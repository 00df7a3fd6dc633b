// Package config loads this service's environment-variable configuration,
// following the teacher's Load()/Validate() + typed getEnv* helper shape
// (pkg/config/config.go in the original Certen validator). TRUSTED_REGISTRIES_FILE
// optionally points to a YAML file that replaces TRUSTED_REGISTRIES/EXTERNAL_SOURCE_1
// wholesale, for deployments that prefer a checked-in file to long env strings.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// TrustedRegistry is one entry of TRUSTED_REGISTRIES: a Public Directory
// contract paired with its chain-of-trust sweeper contract, per spec §6.
type TrustedRegistry struct {
	Index        int
	PDAddress    common.Address
	PDChainID    string
	CoTAddress   common.Address
	CoTChainID   string
}

// ExternalSource is one entry of an EXTERNAL_SOURCE_N variable: an external
// HTTP directory URL bound to a Trusted Registry index.
type ExternalSource struct {
	Index int
	URL   string
}

// Config is this service's full runtime configuration, assembled from
// environment variables per spec §6.
type Config struct {
	// Profile selects which *_URL_POSTGRES_CONNECTION_NAME / *_PORT pair to
	// read (DEV, PROD, or any other deployment-named prefix).
	Profile string

	// DatabaseURL is the resolved <PROFILE>_URL_POSTGRES_CONNECTION_NAME value.
	DatabaseURL string
	// ListenPort is the resolved <PROFILE>_PORT value the HTTP server binds.
	ListenPort string

	TrustedRegistries    []TrustedRegistry
	ExposedRegistryIndex int
	ExternalSources      []ExternalSource

	// RPCConnections maps a chain id string to its RPC_CONNECTION_<chainId> URL.
	RPCConnections map[string]string

	DatabaseMaxOpenConns int
	DatabaseMaxIdleConns int
	DatabaseIdleTime     time.Duration
	DatabaseLifetime     time.Duration

	SweepStartupDelay time.Duration
	SweepPeriod       time.Duration
	SweepRetryPeriod  time.Duration

	MetricsAddr string
}

// Load reads and parses every environment variable this service consumes.
// It does not validate cross-field consistency; call Validate afterwards.
func Load() (*Config, error) {
	profile := getEnv("PROFILE", "DEV")

	registries, err := parseTrustedRegistries(getEnv("TRUSTED_REGISTRIES", ""))
	if err != nil {
		return nil, fmt.Errorf("config: parse TRUSTED_REGISTRIES: %w", err)
	}

	exposedIndex, err := strconv.Atoi(getEnv("TRUSTED_REGISTRIES_INDEX_PUBLIC_KEYS_TO_EXPOSE", "0"))
	if err != nil {
		return nil, fmt.Errorf("config: parse TRUSTED_REGISTRIES_INDEX_PUBLIC_KEYS_TO_EXPOSE: %w", err)
	}

	externalSources, err := parseExternalSources(getEnv("EXTERNAL_SOURCE_1", ""))
	if err != nil {
		return nil, fmt.Errorf("config: parse EXTERNAL_SOURCE_1: %w", err)
	}

	if path := getEnv("TRUSTED_REGISTRIES_FILE", ""); path != "" {
		fileRegistries, fileSources, err := loadRegistriesFile(path)
		if err != nil {
			return nil, fmt.Errorf("config: load TRUSTED_REGISTRIES_FILE: %w", err)
		}
		registries = fileRegistries
		externalSources = fileSources
	}

	rpcConnections := make(map[string]string)
	for _, r := range registries {
		for _, chainID := range []string{r.PDChainID, r.CoTChainID} {
			if chainID == "" {
				continue
			}
			if _, ok := rpcConnections[chainID]; ok {
				continue
			}
			envVar := "RPC_CONNECTION_" + chainID
			url := os.Getenv(envVar)
			if url == "" {
				return nil, fmt.Errorf("config: missing required env var %s referenced by TRUSTED_REGISTRIES", envVar)
			}
			rpcConnections[chainID] = url
		}
	}

	cfg := &Config{
		Profile:              profile,
		DatabaseURL:          getEnv(profile+"_URL_POSTGRES_CONNECTION_NAME", ""),
		ListenPort:           getEnv(profile+"_PORT", "8080"),
		TrustedRegistries:    registries,
		ExposedRegistryIndex: exposedIndex,
		ExternalSources:      externalSources,
		RPCConnections:       rpcConnections,
		DatabaseMaxOpenConns: getEnvInt("DATABASE_MAX_OPEN_CONNS", 25),
		DatabaseMaxIdleConns: getEnvInt("DATABASE_MAX_IDLE_CONNS", 5),
		DatabaseIdleTime:     getEnvDuration("DATABASE_MAX_IDLE_TIME", 5*time.Minute),
		DatabaseLifetime:     getEnvDuration("DATABASE_MAX_LIFETIME", time.Hour),
		SweepStartupDelay:    getEnvDuration("SWEEP_STARTUP_DELAY", 5*time.Second),
		SweepPeriod:          getEnvDuration("SWEEP_PERIOD", 5*time.Minute),
		SweepRetryPeriod:     getEnvDuration("SWEEP_RETRY_PERIOD", 30*time.Second),
		MetricsAddr:          getEnv("METRICS_ADDR", ":9090"),
	}

	return cfg, nil
}

// Validate checks that all required configuration is present, matching spec
// §6's "fatal startup misconfiguration terminates the process" contract.
func (c *Config) Validate() error {
	var errs []string

	if c.DatabaseURL == "" {
		errs = append(errs, fmt.Sprintf("%s_URL_POSTGRES_CONNECTION_NAME is required but not set", c.Profile))
	}
	if len(c.TrustedRegistries) == 0 {
		errs = append(errs, "TRUSTED_REGISTRIES must name at least one registry")
	}

	exposed := false
	for _, r := range c.TrustedRegistries {
		if r.Index == c.ExposedRegistryIndex {
			exposed = true
			break
		}
	}
	if !exposed {
		errs = append(errs, fmt.Sprintf("TRUSTED_REGISTRIES_INDEX_PUBLIC_KEYS_TO_EXPOSE=%d does not name a configured registry", c.ExposedRegistryIndex))
	}

	for _, es := range c.ExternalSources {
		found := false
		for _, r := range c.TrustedRegistries {
			if r.Index == es.Index {
				found = true
				break
			}
		}
		if !found {
			errs = append(errs, fmt.Sprintf("EXTERNAL_SOURCE_1 references unknown registry index %d", es.Index))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config: invalid configuration: %s", strings.Join(errs, "; "))
	}
	return nil
}

// parseTrustedRegistries parses the "--"-separated
// "index,pdAddr,pdChainId,cotAddr,cotChainId" tuples of TRUSTED_REGISTRIES.
func parseTrustedRegistries(raw string) ([]TrustedRegistry, error) {
	if raw == "" {
		return nil, nil
	}

	var out []TrustedRegistry
	for _, entry := range strings.Split(raw, "--") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		fields := strings.Split(entry, ",")
		if len(fields) != 5 {
			return nil, fmt.Errorf("entry %q: want 5 comma-separated fields, got %d", entry, len(fields))
		}

		index, err := strconv.Atoi(strings.TrimSpace(fields[0]))
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid index: %w", entry, err)
		}
		pdAddr, err := parseHexAddress(fields[1])
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid pdAddr: %w", entry, err)
		}
		cotAddr, err := parseHexAddress(fields[3])
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid cotAddr: %w", entry, err)
		}

		out = append(out, TrustedRegistry{
			Index:      index,
			PDAddress:  pdAddr,
			PDChainID:  strings.TrimSpace(fields[2]),
			CoTAddress: cotAddr,
			CoTChainID: strings.TrimSpace(fields[4]),
		})
	}
	return out, nil
}

// parseExternalSources parses the "--"-separated "index,url" pairs of an
// EXTERNAL_SOURCE_N variable.
func parseExternalSources(raw string) ([]ExternalSource, error) {
	if raw == "" {
		return nil, nil
	}

	var out []ExternalSource
	for _, entry := range strings.Split(raw, "--") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		idx := strings.Index(entry, ",")
		if idx < 0 {
			return nil, fmt.Errorf("entry %q: want \"index,url\"", entry)
		}
		index, err := strconv.Atoi(strings.TrimSpace(entry[:idx]))
		if err != nil {
			return nil, fmt.Errorf("entry %q: invalid index: %w", entry, err)
		}
		out = append(out, ExternalSource{Index: index, URL: strings.TrimSpace(entry[idx+1:])})
	}
	return out, nil
}

// parseHexAddress parses a 40-hex-character address with an optional "0x"
// prefix, per spec §6 ("40-hex strings with optional 0x prefix"). Matching
// must be exact, not substring (spec §9 open question).
func parseHexAddress(raw string) (common.Address, error) {
	raw = strings.TrimSpace(raw)
	hexPart := strings.TrimPrefix(raw, "0x")
	if len(hexPart) != 40 {
		return common.Address{}, fmt.Errorf("want 40 hex characters, got %q", raw)
	}
	if !common.IsHexAddress(hexPart) {
		return common.Address{}, fmt.Errorf("invalid hex address %q", raw)
	}
	return common.HexToAddress(hexPart), nil
}

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	seconds, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
