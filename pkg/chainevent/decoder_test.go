package chainevent

import (
	"math/big"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

const memberChangedABI = `[{
	"anonymous": false,
	"inputs": [
		{"indexed": true, "name": "memberId", "type": "uint256"},
		{"indexed": false, "name": "did", "type": "string"},
		{"indexed": false, "name": "prevBlock", "type": "uint256"}
	],
	"name": "MemberChanged",
	"type": "event"
}]`

func mustParseABI(t *testing.T, jsonABI string) abi.ABI {
	t.Helper()
	parsed, err := abi.JSON(strings.NewReader(jsonABI))
	if err != nil {
		t.Fatalf("parse abi: %v", err)
	}
	return parsed
}

func TestDecodeAndAccessors(t *testing.T) {
	parsed := mustParseABI(t, memberChangedABI)
	event := parsed.Events["MemberChanged"]

	packed, err := event.Inputs.NonIndexed().Pack("did:lac1:abc", big.NewInt(42))
	if err != nil {
		t.Fatalf("pack non-indexed: %v", err)
	}

	memberIDTopic := common.BigToHash(big.NewInt(7))

	log := types.Log{
		Topics: []common.Hash{event.ID, memberIDTopic},
		Data:   packed,
	}

	d, err := Decode(parsed, "MemberChanged", log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	did, err := d.String("did")
	if err != nil {
		t.Fatalf("did: %v", err)
	}
	if did != "did:lac1:abc" {
		t.Fatalf("unexpected did: %s", did)
	}

	prevBlock, err := d.U64("prevBlock")
	if err != nil {
		t.Fatalf("prevBlock: %v", err)
	}
	if prevBlock != 42 {
		t.Fatalf("unexpected prevBlock: %d", prevBlock)
	}

	memberID, err := d.U64("memberId")
	if err != nil {
		t.Fatalf("memberId: %v", err)
	}
	if memberID != 7 {
		t.Fatalf("unexpected memberId: %d", memberID)
	}
}

func TestDecodeFieldMissIsFatal(t *testing.T) {
	parsed := mustParseABI(t, memberChangedABI)
	event := parsed.Events["MemberChanged"]

	packed, err := event.Inputs.NonIndexed().Pack("did:lac1:abc", big.NewInt(0))
	if err != nil {
		t.Fatalf("pack: %v", err)
	}
	log := types.Log{
		Topics: []common.Hash{event.ID, common.BigToHash(big.NewInt(1))},
		Data:   packed,
	}

	d, err := Decode(parsed, "MemberChanged", log)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if _, err := d.String("doesNotExist"); err == nil {
		t.Fatal("expected error for absent field")
	}
}

func TestTopicMatchesEventID(t *testing.T) {
	parsed := mustParseABI(t, memberChangedABI)
	event := parsed.Events["MemberChanged"]
	if got := Topic("MemberChanged(uint256,string,uint256)"); got != event.ID {
		t.Fatalf("Topic() = %s, want %s", got.Hex(), event.ID.Hex())
	}
}
