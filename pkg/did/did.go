// Package did implements the did:lac1 decentralized identifier codec.
//
// Format: "did:lac1:" + base58(version(2) | didType(2) | identity(20) |
// didRegistry(20) | chainId(variable) | checksum(4)), where checksum is the
// first four bytes of keccak256 over every byte preceding it.
package did

import (
	"bytes"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/mr-tron/base58"
)

const (
	// Prefix is the literal scheme+method prefix every DID string carries.
	Prefix = "did:lac1:"

	versionLen      = 2
	didTypeLen      = 2
	identityLen     = 20
	didRegistryLen  = 20
	checksumLen     = 4
	minPayloadBytes = versionLen + didTypeLen + identityLen + didRegistryLen + checksumLen
)

// DID is the decoded content of a did:lac1 identifier.
type DID struct {
	Version     [2]byte
	Type        [2]byte
	Identity    common.Address
	DIDRegistry common.Address
	ChainID     *big.Int
}

// Decode parses a did:lac1 string, verifying its checksum.
//
// A failing decode is a permanent error scoped to that single DID — it never
// aborts a sweep of other DIDs.
func Decode(s string) (*DID, error) {
	if len(s) <= len(Prefix) || s[:len(Prefix)] != Prefix {
		return nil, fmt.Errorf("did: missing %q prefix", Prefix)
	}
	core := s[len(Prefix):]

	raw, err := base58.Decode(core)
	if err != nil {
		return nil, fmt.Errorf("did: base58 decode: %w", err)
	}
	if len(raw) < minPayloadBytes {
		return nil, fmt.Errorf("did: payload too short (%d bytes)", len(raw))
	}

	payload := raw[:len(raw)-checksumLen]
	checksum := raw[len(raw)-checksumLen:]

	want := crypto.Keccak256(payload)[:checksumLen]
	if !bytes.Equal(want, checksum) {
		return nil, fmt.Errorf("did: checksum mismatch")
	}

	var d DID
	copy(d.Version[:], payload[0:2])
	copy(d.Type[:], payload[2:4])
	d.Identity = common.BytesToAddress(payload[4:24])
	d.DIDRegistry = common.BytesToAddress(payload[24:44])

	chainIDBytes := payload[44:]
	if len(chainIDBytes) == 0 {
		return nil, fmt.Errorf("did: missing chain id bytes")
	}
	d.ChainID = new(big.Int).SetBytes(chainIDBytes)

	return &d, nil
}

// Encode re-serializes a DID back into its did:lac1 string form, recomputing
// the checksum. Round-tripping Decode then Encode yields the original string
// for any canonically-encoded chain id (no leading zero bytes).
func (d *DID) Encode() string {
	chainIDBytes := d.ChainID.Bytes()
	if len(chainIDBytes) == 0 {
		chainIDBytes = []byte{0}
	}

	payload := make([]byte, 0, minPayloadBytes-checksumLen+len(chainIDBytes))
	payload = append(payload, d.Version[:]...)
	payload = append(payload, d.Type[:]...)
	payload = append(payload, d.Identity.Bytes()...)
	payload = append(payload, d.DIDRegistry.Bytes()...)
	payload = append(payload, chainIDBytes...)

	checksum := crypto.Keccak256(payload)[:checksumLen]
	full := append(payload, checksum...)

	return Prefix + base58.Encode(full)
}
