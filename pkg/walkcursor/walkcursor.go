// Package walkcursor implements the reverse-walk cursor state machine shared
// by the Public Directory and DID registry sync workers: both descend an
// append-only on-chain event chain from a contract-advertised tip down to
// the last block already folded into relational state, using three
// persisted cursors (upper_block, last_processed_block, last_block_saved)
// that satisfy last_block_saved <= last_processed_block <= upper_block at
// rest.
package walkcursor

import "fmt"

// Cursors is the three-field resumable walk position of a single PD or DID
// reverse walk.
type Cursors struct {
	UpperBlock         uint64
	LastProcessedBlock uint64
	LastBlockSaved     uint64
}

// Plan describes what a walker should do this sweep.
type Plan struct {
	// Done is true when the epoch is already fully walked; callers should
	// return immediately.
	Done bool
	// Resuming is true when a prior walk crashed mid-stream and the caller
	// must re-derive the predecessor of LastProcessedBlock from the chain
	// itself rather than trusting a freshly-read prevBlock.
	Resuming bool
	// StartBlock is the first block the walk should process on this sweep
	// for a fresh epoch. When Resuming, it is the last block already
	// processed, whose predecessor is where the walk continues.
	StartBlock uint64
	// Cursors is the (possibly epoch-advanced) cursor set to persist before
	// walking begins.
	Cursors Cursors
}

// Refresh computes the next step given the persisted cursors and a freshly
// read on-chain tip, implementing spec steps 1-2 (resume/initialize and
// refresh epoch).
func Refresh(persisted Cursors, tip uint64) Plan {
	if tip == persisted.UpperBlock && tip == persisted.LastBlockSaved {
		return Plan{Done: true, Cursors: persisted}
	}

	// Mid-stream crash: upper >= last_processed > last_block_saved.
	if persisted.UpperBlock >= persisted.LastProcessedBlock &&
		persisted.LastProcessedBlock > persisted.LastBlockSaved {
		return Plan{
			Resuming:   true,
			StartBlock: persisted.LastProcessedBlock,
			Cursors:    persisted,
		}
	}

	// New epoch: tip has advanced past what was last fully saved.
	next := Cursors{
		UpperBlock:         tip,
		LastProcessedBlock: 0,
		LastBlockSaved:     persisted.LastBlockSaved,
	}
	return Plan{
		StartBlock: tip,
		Cursors:    next,
	}
}

// Advance applies spec step 3 (persist last_processed_block, move to
// prevBlock) and detects termination (step 4).
func Advance(cur Cursors, processedBlock, prevBlock uint64) (Cursors, bool) {
	cur.LastProcessedBlock = processedBlock
	if prevBlock == cur.LastBlockSaved {
		cur.LastProcessedBlock = 0
		cur.LastBlockSaved = cur.UpperBlock
		return cur, true
	}
	return cur, false
}

// Validate reports whether cursors satisfy the at-rest invariant
// last_block_saved <= last_processed_block <= upper_block. A caller should
// treat a violation as corrupted state, not attempt to repair it silently.
func (c Cursors) Validate() error {
	if !(c.LastBlockSaved <= c.LastProcessedBlock && c.LastProcessedBlock <= c.UpperBlock) {
		return fmt.Errorf("walkcursor: invalid cursor invariant: saved=%d processed=%d upper=%d",
			c.LastBlockSaved, c.LastProcessedBlock, c.UpperBlock)
	}
	return nil
}
