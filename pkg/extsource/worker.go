// Package extsource implements the External HTTP Directory Worker (C6):
// polling a configured URL for a flat JSON array of country-issued public
// keys and inserting any not already known into the registry store.
package extsource

import (
	"context"
	"crypto/x509"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-jose/go-jose/v4"

	"github.com/lacchain/trustlist/pkg/countrycode"
	"github.com/lacchain/trustlist/pkg/registry"
)

// Entry is a single element of the polled JSON array.
type Entry struct {
	URL        string `json:"url"`
	Country    string `json:"country"`
	PublicKey  string `json:"publicKey"`
	ValidUntil string `json:"validUntil"`
}

// Worker polls a single external directory URL.
type Worker struct {
	URL    string
	Repos  *registry.Repositories
	Logger *log.Logger

	httpClient *http.Client
}

// New constructs an extsource Worker polling url.
func New(url string, repos *registry.Repositories, logger *log.Logger) *Worker {
	return &Worker{
		URL:        url,
		Repos:      repos,
		Logger:     logger,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// Sweep fetches the configured URL and inserts any new entries. This worker
// never updates an existing row: entries whose content hash already exists
// for the entry's country are left unchanged.
func (w *Worker) Sweep(ctx context.Context) error {
	entries, err := w.fetch(ctx)
	if err != nil {
		return fmt.Errorf("extsource: fetch %s: %w", w.URL, err)
	}

	for _, e := range entries {
		if err := w.processEntry(ctx, e); err != nil {
			w.Logger.Printf("skipping entry for country %s: %v", e.Country, err)
		}
	}
	return nil
}

func (w *Worker) fetch(ctx context.Context) ([]Entry, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.URL, nil)
	if err != nil {
		return nil, err
	}

	resp, err := w.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var entries []Entry
	if err := json.NewDecoder(resp.Body).Decode(&entries); err != nil {
		return nil, fmt.Errorf("decode response body: %w", err)
	}
	return entries, nil
}

func (w *Worker) processEntry(ctx context.Context, e Entry) error {
	if !countrycode.IsValidAlpha2(e.Country) {
		return fmt.Errorf("invalid alpha-2 country code %q", e.Country)
	}

	cert, err := parsePEMCertificate(e.PublicKey)
	if err != nil {
		return fmt.Errorf("parse PEM: %w", err)
	}

	jwk := jose.JSONWebKey{
		Key:          cert.PublicKey,
		Certificates: []*x509.Certificate{cert},
	}
	jwkBytes, err := jwk.MarshalJSON()
	if err != nil {
		return fmt.Errorf("marshal jwk: %w", err)
	}

	contentHash := fmt.Sprintf("%x", crypto.Keccak256(cert.Raw))
	countryCode3, ok := countrycode.ALPHA2_TO_ALPHA3[e.Country]
	if !ok {
		return fmt.Errorf("no alpha-3 mapping for %q", e.Country)
	}

	_, err = w.Repos.PublicKeys.FindByHashAndCountry(ctx, contentHash, countryCode3)
	switch {
	case errors.Is(err, registry.ErrPublicKeyNotFound):
		validTo := resolveExpiration(e.ValidUntil, cert)
		_, err := w.Repos.PublicKeys.Insert(ctx, registry.InsertParams{
			CountryCode: countryCode3,
			ContentHash: contentHash,
			JWK:         jwkBytes,
			Exp:         validTo,
			ExpValid:    true,
			URL:         e.URL,
			URLValid:    e.URL != "",
		})
		if err != nil {
			return fmt.Errorf("insert public key: %w", err)
		}
		w.Logger.Printf("inserted new public key for country %s", countryCode3)
		return nil
	case err != nil:
		return fmt.Errorf("find public key: %w", err)
	default:
		w.Logger.Printf("public key already known for country %s, skipping", countryCode3)
		return nil
	}
}

// resolveExpiration prefers the certificate's own NotAfter, falling back to
// the entry's validUntil field when the certificate carries no usable date.
func resolveExpiration(validUntil string, cert *x509.Certificate) int64 {
	if !cert.NotAfter.IsZero() {
		return cert.NotAfter.Unix()
	}
	if t, err := time.Parse(time.RFC3339, validUntil); err == nil {
		return t.Unix()
	}
	return 0
}
