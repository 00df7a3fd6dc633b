// Package didsync implements the DID Registry Sync Worker: for a single DID
// discovered by pkg/pdsync, reverse-walks that DID's per-identity event
// chain on the DID registry contract, extracting assertion-method JWKs into
// the PublicKey table.
package didsync

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/ethereum/go-ethereum/common"

	"github.com/lacchain/trustlist/pkg/chain"
	"github.com/lacchain/trustlist/pkg/chainevent"
	"github.com/lacchain/trustlist/pkg/did"
	"github.com/lacchain/trustlist/pkg/registry"
	"github.com/lacchain/trustlist/pkg/walkcursor"
)

var didAttributeChangedTopic = chainevent.Topic("DIDAttributeChanged(address,bytes32,bytes,uint256,uint256,uint256,bool)")

// Worker reverse-walks a single DID's attribute event chain on one DID
// registry contract.
type Worker struct {
	Chain           *chain.Client
	DIDRegistryAddr common.Address
	Repos           *registry.Repositories
	Logger          *log.Logger
}

// New constructs a didsync Worker for the DID registry contract deployed at
// registryAddr.
func New(chainClient *chain.Client, registryAddr common.Address, repos *registry.Repositories, logger *log.Logger) *Worker {
	return &Worker{Chain: chainClient, DIDRegistryAddr: registryAddr, Repos: repos, Logger: logger}
}

// Sweep reverse-walks didRow's event chain, decoding the identity address
// from didRow.DID and confining processing to events matching it.
func (w *Worker) Sweep(ctx context.Context, didRow *registry.Did) error {
	decoded, err := did.Decode(didRow.DID)
	if err != nil {
		w.Logger.Printf("permanent error decoding did %s, skipping: %v", didRow.DID, err)
		return nil
	}

	tip, err := w.Chain.QueryIdentityTip(ctx, w.DIDRegistryAddr, decoded.Identity, "changed")
	if err != nil {
		return fmt.Errorf("didsync: query tip for %s: %w", didRow.DID, err)
	}
	if tip == 0 {
		w.Logger.Printf("did %s has no events, skipping", didRow.DID)
		return nil
	}

	pdMember, err := w.Repos.PdMembers.FindByDid(ctx, didRow.ID)
	if err != nil {
		return fmt.Errorf("didsync: resolve pd member for %s: %w", didRow.DID, err)
	}

	persisted := walkcursor.Cursors{
		UpperBlock:         didRow.UpperBlock,
		LastProcessedBlock: didRow.LastProcessedBlock,
		LastBlockSaved:     didRow.LastBlockSaved,
	}
	plan := walkcursor.Refresh(persisted, tip)
	if plan.Done {
		return nil
	}

	start := plan.StartBlock
	cur := plan.Cursors
	if plan.Resuming {
		prev, _, err := w.eventsAt(ctx, decoded.Identity, plan.StartBlock)
		if err != nil {
			return fmt.Errorf("didsync: resolve resume predecessor: %w", err)
		}
		start = prev
	} else {
		// Epoch refresh persists the advanced cursor set up front.
		if err := w.Repos.Dids.Update(ctx, didRow.ID, cur.UpperBlock, cur.LastProcessedBlock, cur.LastBlockSaved); err != nil {
			return fmt.Errorf("didsync: persist epoch refresh: %w", err)
		}
	}

	block := start
	for block > cur.LastBlockSaved {
		prevBlock, events, err := w.eventsAt(ctx, decoded.Identity, block)
		if err != nil {
			return fmt.Errorf("didsync: process block %d: %w", block, err)
		}

		for _, ev := range events {
			if err := w.upsertKey(ctx, didRow, pdMember, ev, block); err != nil {
				return fmt.Errorf("didsync: upsert key at block %d: %w", block, err)
			}
		}

		var done bool
		cur, done = walkcursor.Advance(cur, block, prevBlock)
		if err := w.Repos.Dids.Update(ctx, didRow.ID, cur.UpperBlock, cur.LastProcessedBlock, cur.LastBlockSaved); err != nil {
			return fmt.Errorf("didsync: persist cursors: %w", err)
		}
		if done {
			return nil
		}
		block = prevBlock
	}
	return nil
}

type attributeEvent struct {
	name        string
	value       []byte
	validTo     int64
	compromised bool
}

// eventsAt fetches DIDAttributeChanged logs at block, keeps only those whose
// identity matches identity, and returns the chain's previousChange pointer
// read from the first matching event (identical for every event of one
// identity within the same block, since they all point at the same
// predecessor transaction).
func (w *Worker) eventsAt(ctx context.Context, identity common.Address, block uint64) (uint64, []attributeEvent, error) {
	logs, err := w.Chain.FetchLogs(ctx, w.DIDRegistryAddr, []common.Hash{didAttributeChangedTopic}, block, block)
	if err != nil {
		return 0, nil, fmt.Errorf("fetch DIDAttributeChanged logs: %w", err)
	}

	var (
		events    []attributeEvent
		prevBlock uint64
		found     bool
	)
	for _, l := range logs {
		decoded, err := chainevent.Decode(parsedABI(), "DIDAttributeChanged", l)
		if err != nil {
			return 0, nil, err
		}
		eventIdentity, err := decoded.Address("identity")
		if err != nil {
			return 0, nil, err
		}
		if !bytes.Equal(eventIdentity.Bytes(), identity.Bytes()) {
			continue
		}

		prev, err := decoded.U64("previousChange")
		if err != nil {
			return 0, nil, err
		}
		if !found {
			prevBlock = prev
			found = true
		}

		nameRaw, err := decoded.Bytes("name")
		if err != nil {
			return 0, nil, err
		}
		value, err := decoded.Bytes("value")
		if err != nil {
			return 0, nil, err
		}
		validTo, err := decoded.I64("validTo")
		if err != nil {
			return 0, nil, err
		}
		compromised, err := decoded.Bool("compromised")
		if err != nil {
			return 0, nil, err
		}

		events = append(events, attributeEvent{
			name:        string(bytes.TrimRight(nameRaw, "\x00")),
			value:       value,
			validTo:     validTo,
			compromised: compromised,
		})
	}
	if !found {
		return 0, nil, fmt.Errorf("no DIDAttributeChanged event for identity %s at block %d", identity.Hex(), block)
	}
	return prevBlock, events, nil
}

func (w *Worker) upsertKey(ctx context.Context, didRow *registry.Did, pdMember *registry.PdMember, ev attributeEvent, block uint64) error {
	key, err := extractKey(ev.name, ev.value)
	if err != nil {
		w.Logger.Printf("skipping attribute %q for did %s: %v", ev.name, didRow.DID, err)
		return nil
	}

	existing, err := w.Repos.PublicKeys.FindByHashAndDid(ctx, key.ContentHash, didRow.ID)
	switch {
	case errors.Is(err, registry.ErrPublicKeyNotFound):
		_, err := w.Repos.PublicKeys.Insert(ctx, registry.InsertParams{
			CountryCode:        pdMember.CountryCode,
			ContentHash:        key.ContentHash,
			JWK:                key.JWK,
			Exp:                ev.validTo,
			ExpValid:           true,
			IsCompromised:      ev.compromised,
			IsCompromisedValid: true,
			DidID:              didRow.ID,
			DidIDValid:         true,
			BlockNumber:        block,
			BlockNumberValid:   true,
			URL:                pdMember.URL,
			URLValid:           pdMember.URLValid,
		})
		return err
	case err != nil:
		return err
	default:
		if !existing.BlockNumberValid || existing.BlockNumber < block {
			return w.Repos.PublicKeys.Update(ctx, existing.ID, block, ev.validTo, ev.compromised)
		}
		return nil
	}
}
