package config

import (
	"os"
	"testing"
)

func clearEnv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestParseTrustedRegistriesValid(t *testing.T) {
	raw := "0,0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,1,BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB,2"
	regs, err := parseTrustedRegistries(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(regs) != 1 {
		t.Fatalf("want 1 registry, got %d", len(regs))
	}
	if regs[0].PDChainID != "1" || regs[0].CoTChainID != "2" {
		t.Fatalf("unexpected chain ids: %+v", regs[0])
	}
}

func TestParseTrustedRegistriesMultiple(t *testing.T) {
	raw := "0,0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA,1,BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB,2--1,CCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCCC,1,DDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDDD,2"
	regs, err := parseTrustedRegistries(raw)
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(regs) != 2 {
		t.Fatalf("want 2 registries, got %d", len(regs))
	}
	if regs[1].Index != 1 {
		t.Fatalf("want index 1, got %d", regs[1].Index)
	}
}

func TestParseTrustedRegistriesInvalidAddress(t *testing.T) {
	raw := "0,not-an-address,1,BBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBBB,2"
	if _, err := parseTrustedRegistries(raw); err == nil {
		t.Fatalf("want error for invalid address")
	}
}

func TestParseTrustedRegistriesWrongFieldCount(t *testing.T) {
	if _, err := parseTrustedRegistries("0,0xAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"); err == nil {
		t.Fatalf("want error for wrong field count")
	}
}

func TestParseExternalSources(t *testing.T) {
	sources, err := parseExternalSources("0,https://a.example--1,https://b.example")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(sources) != 2 || sources[0].URL != "https://a.example" || sources[1].Index != 1 {
		t.Fatalf("unexpected sources: %+v", sources)
	}
}

func TestValidateRejectsMissingDatabaseURL(t *testing.T) {
	cfg := &Config{Profile: "DEV"}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for missing database url")
	}
}

func TestValidateRejectsUnexposedRegistryIndex(t *testing.T) {
	cfg := &Config{
		Profile:              "DEV",
		DatabaseURL:          "postgres://localhost/db",
		TrustedRegistries:    []TrustedRegistry{{Index: 0}},
		ExposedRegistryIndex: 5,
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for unexposed registry index")
	}
}

func TestValidateAcceptsWellFormedConfig(t *testing.T) {
	cfg := &Config{
		Profile:              "DEV",
		DatabaseURL:          "postgres://localhost/db",
		TrustedRegistries:    []TrustedRegistry{{Index: 0}},
		ExposedRegistryIndex: 0,
		ExternalSources:      []ExternalSource{{Index: 0, URL: "https://a.example"}},
	}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("want no error, got %v", err)
	}
}

func TestValidateRejectsUnknownExternalSourceIndex(t *testing.T) {
	cfg := &Config{
		Profile:              "DEV",
		DatabaseURL:          "postgres://localhost/db",
		TrustedRegistries:    []TrustedRegistry{{Index: 0}},
		ExposedRegistryIndex: 0,
		ExternalSources:      []ExternalSource{{Index: 9, URL: "https://a.example"}},
	}
	if err := cfg.Validate(); err == nil {
		t.Fatalf("want error for external source referencing unknown registry")
	}
}
