package verify

import (
	"crypto"
	"fmt"

	"github.com/veraison/go-cose"
)

// decodeSign1 parses raw as a COSE_Sign1 message, failing the whole message
// if it cannot be decoded at all (distinct from a later per-key signature
// verification failure, which just eliminates that one key from the trial).
func decodeSign1(raw []byte) (*cose.Sign1Message, error) {
	msg := cose.NewSign1Message()
	if err := msg.UnmarshalCBOR(raw); err != nil {
		return nil, fmt.Errorf("decode COSE message: %w", err)
	}
	return msg, nil
}

// signAlgorithm reads the signing algorithm out of msg's protected header.
func signAlgorithm(msg *cose.Sign1Message) (cose.Algorithm, error) {
	alg, err := msg.Headers.Protected.Algorithm()
	if err != nil {
		return 0, fmt.Errorf("read protected algorithm: %w", err)
	}
	return alg, nil
}

// verifySign1 verifies msg's signature against pubKey using alg, returning
// whether the signature is valid. A structural error (unsupported
// algorithm, malformed key) is distinguished from a plain signature
// mismatch so callers can tell "this key wasn't it" from "this key is
// unusable".
func verifySign1(msg *cose.Sign1Message, alg cose.Algorithm, pubKey crypto.PublicKey) (bool, error) {
	verifier, err := cose.NewVerifier(alg, pubKey)
	if err != nil {
		return false, fmt.Errorf("build verifier: %w", err)
	}

	if err := msg.Verify(nil, verifier); err != nil {
		return false, nil
	}
	return true, nil
}
