package verify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/veraison/go-cose"

	"github.com/lacchain/trustlist/pkg/countrycode"
	"github.com/lacchain/trustlist/pkg/registry"
)

// ErrBadInput marks a failure reported to the caller as bad input: a
// missing prefix, malformed Base45/zlib encoding, an undecodable COSE
// message or payload, a payload missing a required field, an unreadable
// algorithm header, or a failure fetching the country's keys. A country
// code this service has no keys for is not an error (see VerifyBase45).
// Handlers surface these as BadRequest; anything else is an internal error.
var ErrBadInput = errors.New("verify: bad input")

// Result is the outcome of verifying a single HC1 message.
type Result struct {
	IsValid         bool             `json:"is_valid"`
	DdccCoreDataSet *DdccCoreDataSet `json:"ddcc_core_data_set"`
}

// Verifier checks HC1-encoded health certificates against the public keys
// stored for their signer's country.
type Verifier struct {
	PublicKeys *registry.PublicKeyRepository
	Logger     *log.Logger
}

// New constructs a Verifier backed by keys.
func New(keys *registry.PublicKeyRepository, logger *log.Logger) *Verifier {
	return &Verifier{PublicKeys: keys, Logger: logger}
}

// VerifyBase45 decodes an "HC1:"-prefixed message and checks its signature.
// A malformed message (bad base45/zlib/COSE framing) returns ErrBadInput.
// A well-formed message whose signer country carries no usable key, or
// whose signature matches none of that country's keys, returns a Result
// with IsValid=false and no error: non-verification is a normal outcome,
// not a fault.
func (v *Verifier) VerifyBase45(ctx context.Context, raw string) (*Result, error) {
	encoded, err := unprefix(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	coseBytes, err := decodeBase45Zlib(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	msg, err := decodeSign1(coseBytes)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	data, err := decodePayload(msg.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	// An absent signer country was already rejected as bad input by
	// decodePayload. An unrecognized one is not a decode failure: the
	// message is well-formed, it just cannot be verified against anything
	// this service knows. Report that as a normal unverified result.
	country, ok := signerCountry(data)
	if !ok || !countrycode.IsValidAlpha3(country) {
		return &Result{IsValid: false, DdccCoreDataSet: data}, nil
	}

	alg, err := signAlgorithm(msg)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadInput, err)
	}

	keys, err := v.PublicKeys.FindByCountry(ctx, country)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch keys for %s: %v", ErrBadInput, country, err)
	}

	valid := v.tryKeys(msg, alg, keys)
	return &Result{IsValid: valid, DdccCoreDataSet: data}, nil
}

// tryKeys attempts every candidate key in turn, returning on the first
// successful verification. Keys that cannot be parsed or that use a
// different public-key family than alg are skipped rather than treated as
// verification failures, mirroring the original validator's "first match
// wins, bad keys are just skipped" loop.
func (v *Verifier) tryKeys(msg *cose.Sign1Message, alg cose.Algorithm, keys []*registry.PublicKey) bool {
	for _, k := range keys {
		pubKey, err := publicKeyFromJWK(k.JWK)
		if err != nil {
			v.Logger.Printf("skipping key %s: %v", k.ContentHash, err)
			continue
		}

		ok, err := verifySign1(msg, alg, pubKey)
		if err != nil {
			v.Logger.Printf("skipping key %s: %v", k.ContentHash, err)
			continue
		}
		if ok {
			return true
		}
	}
	return false
}
