package verify

import (
	"crypto"
	"encoding/json"
	"fmt"

	"github.com/go-jose/go-jose/v4"
)

// publicKeyFromJWK unmarshals a stored JWK (persisted verbatim from either
// pkg/didsync or pkg/extsource) into a crypto.PublicKey suitable for
// cose.NewVerifier.
func publicKeyFromJWK(raw []byte) (crypto.PublicKey, error) {
	var jwk jose.JSONWebKey
	if err := json.Unmarshal(raw, &jwk); err != nil {
		return nil, fmt.Errorf("unmarshal jwk: %w", err)
	}
	if jwk.Key == nil {
		return nil, fmt.Errorf("jwk carries no key material")
	}
	return jwk.Key, nil
}
