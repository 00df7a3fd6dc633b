// Package pdsync implements the Public Directory Sync Worker: a reverse
// walk over a Public Directory contract's self-linking MemberChanged /
// ContractChange event chain, folding membership into the relational
// registry store.
package pdsync

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"

	"github.com/lacchain/trustlist/pkg/chain"
	"github.com/lacchain/trustlist/pkg/chainevent"
	"github.com/lacchain/trustlist/pkg/countrycode"
	"github.com/lacchain/trustlist/pkg/registry"
	"github.com/lacchain/trustlist/pkg/walkcursor"
)

var (
	memberChangedTopic    = chainevent.Topic("MemberChanged(uint256,uint256,uint256,string,uint256,uint256,bytes)")
	contractChangeTopic   = chainevent.Topic("ContractChange(uint256)")
	didAssociatedTopic    = chainevent.Topic("DidAssociated(uint256,string)")
	didDisassociatedTopic = chainevent.Topic("DidDisassociated(uint256,string)")
)

// Worker reverse-walks one Public Directory contract, identified by its
// address and the registry's string chain-id column value.
type Worker struct {
	Chain           *chain.Client
	ContractAddress common.Address
	ChainID         string

	Repos  *registry.Repositories
	Logger *log.Logger

	abi abi.ABI
	now func() time.Time
}

// New constructs a pdsync Worker.
func New(chainClient *chain.Client, contractAddress common.Address, chainID string, repos *registry.Repositories, logger *log.Logger) *Worker {
	return &Worker{
		Chain:           chainClient,
		ContractAddress: contractAddress,
		ChainID:         chainID,
		Repos:           repos,
		Logger:          logger,
		abi:             parsedABI(),
		now:             time.Now,
	}
}

func (w *Worker) addressHex() string {
	return w.ContractAddress.Hex()
}

// Sweep runs one scheduled pass: refresh the contract tip, advance the
// PublicDirectory cursors, and reverse-walk any unprocessed blocks.
func (w *Worker) Sweep(ctx context.Context) error {
	tip, err := w.Chain.QueryTip(ctx, w.ContractAddress, "prevBlock")
	if err != nil {
		return fmt.Errorf("pdsync: query tip: %w", err)
	}
	if tip == 0 {
		w.Logger.Printf("no events found in contract %s, skipping sweep", w.addressHex())
		return nil
	}

	pd, err := w.Repos.PublicDirectories.Find(ctx, w.addressHex(), w.ChainID)
	switch {
	case errors.Is(err, registry.ErrPublicDirectoryNotFound):
		w.Logger.Printf("initializing public directory metadata for %s", w.addressHex())
		pd, err = w.Repos.PublicDirectories.SaveContractLastBlock(ctx, w.addressHex(), w.ChainID, tip)
		if err != nil {
			return fmt.Errorf("pdsync: initialize public directory: %w", err)
		}
	case err != nil:
		return fmt.Errorf("pdsync: find public directory: %w", err)
	default:
		if tip == pd.UpperBlock && tip == pd.LastBlockSaved {
			w.Logger.Printf("public directory %s up to date at block %d", w.addressHex(), tip)
			return nil
		}
		// Only refresh the epoch (which zeroes last_processed_block) when a
		// new epoch is actually starting. A mid-stream crash leaves
		// tip == pd.UpperBlock with last_processed_block > last_block_saved;
		// refreshing here would erase the resume point and walkcursor.Refresh
		// would never detect the resume. Leave the cursors untouched and let
		// walk/Refresh drive the resume instead.
		if tip > pd.UpperBlock {
			pd, err = w.Repos.PublicDirectories.SaveContractLastBlock(ctx, w.addressHex(), w.ChainID, tip)
			if err != nil {
				return fmt.Errorf("pdsync: refresh public directory epoch: %w", err)
			}
		}
	}

	return w.walk(ctx, pd)
}

func (w *Worker) walk(ctx context.Context, pd *registry.PublicDirectory) error {
	persisted := walkcursor.Cursors{
		UpperBlock:         pd.UpperBlock,
		LastProcessedBlock: pd.LastProcessedBlock,
		LastBlockSaved:     pd.LastBlockSaved,
	}
	plan := walkcursor.Refresh(persisted, pd.UpperBlock)
	if plan.Done {
		return nil
	}

	start := plan.StartBlock
	if plan.Resuming {
		w.Logger.Printf("resuming unfinished sweep for %s at block %d", w.addressHex(), plan.StartBlock)
		prev, err := w.contractPrevBlockAt(ctx, plan.StartBlock)
		if err != nil {
			return fmt.Errorf("pdsync: resolve resume predecessor: %w", err)
		}
		start = prev
	}

	cur := plan.Cursors
	block := start
	for block > cur.LastBlockSaved {
		w.Logger.Printf("processing block %d for public directory %s", block, w.addressHex())
		prevBlock, err := w.processBlock(ctx, pd, block)
		if err != nil {
			return fmt.Errorf("pdsync: process block %d: %w", block, err)
		}

		var done bool
		cur, done = walkcursor.Advance(cur, block, prevBlock)
		if err := w.Repos.PublicDirectories.Update(ctx, pd.ID, cur.UpperBlock, cur.LastProcessedBlock, cur.LastBlockSaved); err != nil {
			return fmt.Errorf("pdsync: persist cursors: %w", err)
		}
		if done {
			w.Logger.Printf("public directory %s reached target block %d", w.addressHex(), cur.LastBlockSaved)
			return nil
		}
		block = prevBlock
	}
	return nil
}

// processBlock handles every event at block and returns the block preceding
// it on the PD event chain, canonically read from ContractChange.contractPrevBlock.
func (w *Worker) processBlock(ctx context.Context, pd *registry.PublicDirectory, block uint64) (uint64, error) {
	memberLogs, err := w.Chain.FetchLogs(ctx, w.ContractAddress, []common.Hash{memberChangedTopic}, block, block)
	if err != nil {
		return 0, fmt.Errorf("fetch MemberChanged logs: %w", err)
	}
	for _, l := range memberLogs {
		decoded, err := chainevent.Decode(w.abi, "MemberChanged", l)
		if err != nil {
			return 0, fmt.Errorf("decode MemberChanged: %w", err)
		}
		if err := w.processMemberChanged(ctx, pd, decoded, block); err != nil {
			return 0, err
		}
	}

	w.recognizeDidAssociationEvents(ctx, block)

	return w.contractPrevBlockAt(ctx, block)
}

// recognizeDidAssociationEvents fetches DidAssociated/DidDisassociated logs
// at block for visibility only; per spec §4.4 these are recognized but not
// yet persisted (tracked as future work, see DESIGN.md).
func (w *Worker) recognizeDidAssociationEvents(ctx context.Context, block uint64) {
	associated, err := w.Chain.FetchLogs(ctx, w.ContractAddress, []common.Hash{didAssociatedTopic}, block, block)
	if err != nil {
		w.Logger.Printf("fetch DidAssociated logs at block %d: %v", block, err)
	} else if len(associated) > 0 {
		w.Logger.Printf("block %d: %d DidAssociated event(s) observed, not yet persisted", block, len(associated))
	}

	disassociated, err := w.Chain.FetchLogs(ctx, w.ContractAddress, []common.Hash{didDisassociatedTopic}, block, block)
	if err != nil {
		w.Logger.Printf("fetch DidDisassociated logs at block %d: %v", block, err)
	} else if len(disassociated) > 0 {
		w.Logger.Printf("block %d: %d DidDisassociated event(s) observed, not yet persisted", block, len(disassociated))
	}
}

// contractPrevBlockAt returns the ContractChange.contractPrevBlock value
// recorded at block. Its absence is fatal for the walk (spec §4.4).
func (w *Worker) contractPrevBlockAt(ctx context.Context, block uint64) (uint64, error) {
	logs, err := w.Chain.FetchLogs(ctx, w.ContractAddress, []common.Hash{contractChangeTopic}, block, block)
	if err != nil {
		return 0, fmt.Errorf("fetch ContractChange logs: %w", err)
	}
	for _, l := range logs {
		decoded, err := chainevent.Decode(w.abi, "ContractChange", l)
		if err != nil {
			return 0, fmt.Errorf("decode ContractChange: %w", err)
		}
		prev, err := decoded.U64("contractPrevBlock")
		if err != nil {
			return 0, err
		}
		return prev, nil
	}
	return 0, fmt.Errorf("no ContractChange event found at block %d", block)
}

// processMemberChanged applies the MemberChanged decision rule from spec §4.4.
func (w *Worker) processMemberChanged(ctx context.Context, pd *registry.PublicDirectory, decoded *chainevent.Decoded, block uint64) error {
	exp, err := decoded.I64("exp")
	if err != nil {
		return err
	}
	iat, err := decoded.I64("iat")
	if err != nil {
		return err
	}
	memberID, err := decoded.I64("memberId")
	if err != nil {
		return err
	}
	did, err := decoded.String("did")
	if err != nil {
		return err
	}
	currentTimestamp, err := decoded.I64("currentTimestamp")
	if err != nil {
		return err
	}
	rawData, err := decoded.Bytes("rawData")
	if err != nil {
		return err
	}

	now := w.now().Unix()

	switch {
	case currentTimestamp == iat && exp > now:
		return w.upsertMember(ctx, pd, memberID, exp, did, rawData, block)
	case currentTimestamp == iat && exp <= now:
		w.Logger.Printf("skipping already-expired member %d (did=%s) exp=%d now=%d", memberID, did, exp, now)
		return nil
	case currentTimestamp == exp:
		w.Logger.Printf("revocation event for member %d (did=%s) logged, no state change in this revision", memberID, did)
		return nil
	default:
		return fmt.Errorf("contract invariant violation: MemberChanged currentTimestamp=%d matches neither iat=%d nor exp=%d", currentTimestamp, iat, exp)
	}
}

func (w *Worker) upsertMember(ctx context.Context, pd *registry.PublicDirectory, memberID, exp int64, did string, rawData []byte, block uint64) error {
	md, err := parseMemberData(rawData)
	if err != nil {
		w.Logger.Printf("invalid rawData for did %s, skipping: %v", did, err)
		return nil
	}
	if md.IdentificationData == nil {
		w.Logger.Printf("identificationData absent for did %s, skipping", did)
		return nil
	}
	countryCode := md.IdentificationData.CountryCode
	if !countrycode.IsValidAlpha3(countryCode) {
		w.Logger.Printf("invalid country code %q for did %s, skipping", countryCode, did)
		return nil
	}

	pdMember, err := w.Repos.PdMembers.FindByMember(ctx, pd.ID, memberID)
	switch {
	case errors.Is(err, registry.ErrPdMemberNotFound):
		pdMember, err = w.Repos.PdMembers.Insert(ctx, memberID, exp, pd.ID, block, countryCode, md.IdentificationData.URL)
		if err != nil {
			return fmt.Errorf("insert pd member: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find pd member: %w", err)
	default:
		if pdMember.BlockNumber < block {
			if err := w.Repos.PdMembers.Update(ctx, pdMember.ID, exp, block); err != nil {
				return fmt.Errorf("update pd member: %w", err)
			}
		}
	}

	didRow, err := w.Repos.Dids.FindByDid(ctx, did)
	switch {
	case errors.Is(err, registry.ErrDidNotFound):
		didRow, err = w.Repos.Dids.Insert(ctx, did)
		if err != nil {
			return fmt.Errorf("insert did: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find did: %w", err)
	}

	assoc, err := w.Repos.PdDidMembers.Find(ctx, didRow.ID, pdMember.ID)
	switch {
	case errors.Is(err, registry.ErrPdDidMemberNotFound):
		if _, err := w.Repos.PdDidMembers.Insert(ctx, didRow.ID, pdMember.ID, block); err != nil {
			return fmt.Errorf("insert pd did member: %w", err)
		}
	case err != nil:
		return fmt.Errorf("find pd did member: %w", err)
	default:
		if assoc.BlockNumber < block {
			if err := w.Repos.PdDidMembers.Update(ctx, assoc.ID, block); err != nil {
				return fmt.Errorf("update pd did member: %w", err)
			}
		}
	}
	return nil
}
