// Package registry is the Registry Store (C3): CRUD over the five
// relational entities of the trust-anchor data model. The repository
// methods persist the values they are given; the cursor and newer-wins
// invariants noted below are maintained by the sync workers that call them.
package registry

import "github.com/google/uuid"

// PublicDirectory is the root of a trust registry, carrying the reverse-walk
// cursors for the Public Directory contract's event chain.
//
// Invariant: at rest, LastBlockSaved <= LastProcessedBlock <= UpperBlock;
// during an in-flight walk, LastProcessedBlock > LastBlockSaved.
type PublicDirectory struct {
	ID                 uuid.UUID
	ContractAddress    string
	ChainID            string
	UpperBlock         uint64
	LastProcessedBlock uint64
	LastBlockSaved     uint64
}

// PdMember is a country-scoped participant of a Public Directory.
type PdMember struct {
	ID                 uuid.UUID
	MemberID           int64
	Exp                int64
	PublicDirectoryID  uuid.UUID
	BlockNumber        uint64
	CountryCode        string
	URL                string
	URLValid           bool
}

// Did is a decentralized identifier, carrying its own reverse-walk cursors
// over the DID registry contract's per-identity event chain.
type Did struct {
	ID                 uuid.UUID
	DID                string
	UpperBlock         uint64
	LastProcessedBlock uint64
	LastBlockSaved     uint64
}

// PdDidMember associates a Did with a PdMember at the block the association
// became effective.
type PdDidMember struct {
	ID          uuid.UUID
	DidID       uuid.UUID
	PdMemberID  uuid.UUID
	BlockNumber uint64
}

// PublicKey is a verification key derived from an on-chain attribute event or
// an external HTTP source.
type PublicKey struct {
	ID          uuid.UUID
	CountryCode string
	ContentHash string
	JWK         []byte

	Exp                int64
	ExpValid           bool
	IsCompromised      bool
	IsCompromisedValid bool
	DidID              uuid.UUID
	DidIDValid         bool
	BlockNumber        uint64
	BlockNumberValid   bool
	URL                string
	URLValid           bool
}
