package didsync

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-jose/go-jose/v4"
)

// extractedKey is the per-event artifact pulled out of a DIDAttributeChanged
// log once its name and value pass the asse/.../jwk/... filter.
type extractedKey struct {
	ContentHash string
	JWK         []byte
}

// acceptAttributeName reports whether name matches "asse/<any>/jwk/<any>"
// (assertion-method, algorithm JWK, any encoding/purpose fields).
func acceptAttributeName(name string) bool {
	parts := strings.Split(name, "/")
	return len(parts) >= 4 && parts[0] == "asse" && parts[2] == "jwk"
}

// extractKey decodes value as a UTF-8 JSON JWK carrying an x5c chain,
// extracts the first certificate, and returns its DER bytes' keccak256 hex
// digest alongside the raw JWK bytes to persist.
func extractKey(name string, value []byte) (*extractedKey, error) {
	if !acceptAttributeName(name) {
		return nil, fmt.Errorf("didsync: attribute name %q does not match asse/*/jwk/*", name)
	}

	var jwk jose.JSONWebKey
	if err := json.Unmarshal(value, &jwk); err != nil {
		return nil, fmt.Errorf("didsync: parse jwk: %w", err)
	}
	if len(jwk.Certificates) == 0 {
		return nil, fmt.Errorf("didsync: jwk has no x5c certificates")
	}

	der := jwk.Certificates[0].Raw
	hash := crypto.Keccak256(der)

	return &extractedKey{
		ContentHash: fmt.Sprintf("%x", hash),
		JWK:         value,
	}, nil
}
