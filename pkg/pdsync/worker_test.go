package pdsync

import (
	"context"
	"database/sql"
	"log"
	"math/big"
	"os"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"

	"github.com/lacchain/trustlist/pkg/chainevent"
	"github.com/lacchain/trustlist/pkg/registry"
)

func testWorker(t *testing.T, db *sql.DB) *Worker {
	t.Helper()
	return &Worker{
		ContractAddress: common.HexToAddress("0xabc"),
		ChainID:         "648540",
		Repos:           registry.NewRepositories(registry.NewClientFromDB(db)),
		Logger:          log.New(os.Stderr, "[pdsync-test] ", 0),
		abi:             parsedABI(),
		now:             func() time.Time { return time.Unix(1_700_000_500, 0) },
	}
}

func buildMemberChangedLog(t *testing.T, memberID, iat, exp, prevBlock, currentTimestamp int64, did string, rawData []byte) types.Log {
	t.Helper()
	a := parsedABI()
	event := a.Events["MemberChanged"]
	packed, err := event.Inputs.NonIndexed().Pack(
		big.NewInt(memberID), big.NewInt(iat), big.NewInt(exp), did,
		big.NewInt(prevBlock), big.NewInt(currentTimestamp), rawData,
	)
	if err != nil {
		t.Fatalf("pack MemberChanged: %v", err)
	}
	return types.Log{Topics: []common.Hash{event.ID}, Data: packed, BlockNumber: uint64(currentTimestamp)}
}

func TestProcessMemberChangedInvariantViolation(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := testWorker(t, db)
	l := buildMemberChangedLog(t, 1, 1700000000, 1800000000, 0, 1799999999, "did:lac1:abc", []byte(`{}`))
	decoded, err := chainevent.Decode(w.abi, "MemberChanged", l)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if err := w.processMemberChanged(context.Background(), &registry.PublicDirectory{}, decoded, 100); err == nil {
		t.Fatal("expected contract invariant violation error")
	}
}

func TestProcessMemberChangedExpiredAtIssuanceSkips(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := testWorker(t, db)
	l := buildMemberChangedLog(t, 1, 1700000000, 1700000001, 0, 1700000000, "did:lac1:abc", []byte(`{}`))
	decoded, err := chainevent.Decode(w.abi, "MemberChanged", l)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if err := w.processMemberChanged(context.Background(), &registry.PublicDirectory{}, decoded, 100); err != nil {
		t.Fatalf("expected expired member to be skipped without error, got %v", err)
	}
}

func TestProcessMemberChangedRevocationNoop(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := testWorker(t, db)
	l := buildMemberChangedLog(t, 1, 1700000000, 1700000500, 0, 1700000500, "did:lac1:abc", []byte(`{}`))
	decoded, err := chainevent.Decode(w.abi, "MemberChanged", l)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	if err := w.processMemberChanged(context.Background(), &registry.PublicDirectory{}, decoded, 100); err != nil {
		t.Fatalf("expected revocation to be a logged no-op, got %v", err)
	}
}

func TestUpsertMemberSkipsInvalidCountryCode(t *testing.T) {
	db, _, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	defer db.Close()

	w := testWorker(t, db)
	raw := []byte(`{"identificationData":{"countryCode":"ZZZ","url":"https://x"}}`)
	if err := w.upsertMember(context.Background(), &registry.PublicDirectory{}, 1, 1800000000, "did:lac1:abc", raw, 100); err != nil {
		t.Fatalf("expected invalid country code to be a logged skip, got %v", err)
	}
}
