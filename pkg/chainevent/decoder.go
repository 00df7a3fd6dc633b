// Package chainevent provides strictly-typed field accessors over a decoded
// contract log, and the topic hashes for the event signatures the sync
// workers subscribe to.
package chainevent

import (
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// Topic computes the event-signature hash used as topic[0] for an event
// declared as e.g. "MemberChanged(uint256,uint256,uint256,string,uint256,uint256,bytes)".
// Uses keccak256, the same hash the EVM itself uses for event topics.
func Topic(signature string) common.Hash {
	return crypto.Keccak256Hash([]byte(signature))
}

// Decoded wraps a single unpacked log, giving named field access. Fields not
// present in the ABI-unpacked map are a contract/ABI mismatch: every
// accessor fails fatally (via error, never a silent zero value) on a miss,
// so drift in a deployed contract's ABI surfaces immediately instead of
// corrupting synced state.
type Decoded struct {
	Log    types.Log
	fields map[string]interface{}
}

// Decode unpacks log's data and indexed topics against the event eventName
// of parsed, returning a Decoded with named field access.
func Decode(parsed abi.ABI, eventName string, log types.Log) (*Decoded, error) {
	event, ok := parsed.Events[eventName]
	if !ok {
		return nil, fmt.Errorf("chainevent: event %q not in ABI", eventName)
	}
	if len(log.Topics) == 0 || log.Topics[0] != event.ID {
		return nil, fmt.Errorf("chainevent: log topic does not match event %q", eventName)
	}

	fields := make(map[string]interface{})
	if err := parsed.UnpackIntoMap(fields, eventName, log.Data); err != nil {
		return nil, fmt.Errorf("chainevent: unpack %q data: %w", eventName, err)
	}

	indexed := make(abi.Arguments, 0)
	for _, arg := range event.Inputs {
		if arg.Indexed {
			indexed = append(indexed, arg)
		}
	}
	if len(indexed) > 0 {
		if err := abi.ParseTopicsIntoMap(fields, indexed, log.Topics[1:]); err != nil {
			return nil, fmt.Errorf("chainevent: unpack %q topics: %w", eventName, err)
		}
	}

	return &Decoded{Log: log, fields: fields}, nil
}

func (d *Decoded) get(name string) (interface{}, error) {
	v, ok := d.fields[name]
	if !ok {
		return nil, fmt.Errorf("chainevent: field %q absent from decoded log (tx %s)", name, d.Log.TxHash.Hex())
	}
	return v, nil
}

// Address returns field name as a common.Address, fatal if absent or the
// wrong type.
func (d *Decoded) Address(name string) (common.Address, error) {
	v, err := d.get(name)
	if err != nil {
		return common.Address{}, err
	}
	a, ok := v.(common.Address)
	if !ok {
		return common.Address{}, fmt.Errorf("chainevent: field %q is %T, want address", name, v)
	}
	return a, nil
}

// U64 returns field name as a uint64, fatal if absent or the wrong type.
func (d *Decoded) U64(name string) (uint64, error) {
	v, err := d.get(name)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case *big.Int:
		return n.Uint64(), nil
	case uint64:
		return n, nil
	default:
		return 0, fmt.Errorf("chainevent: field %q is %T, want numeric", name, v)
	}
}

// I64 returns field name as an int64, fatal if absent or the wrong type.
// Used for fields such as iat/exp that are signed in the registry schema
// even though they arrive on-chain as uint256.
func (d *Decoded) I64(name string) (int64, error) {
	u, err := d.U64(name)
	if err != nil {
		return 0, err
	}
	return int64(u), nil
}

// Bytes returns field name as a byte slice, fatal if absent or the wrong type.
func (d *Decoded) Bytes(name string) ([]byte, error) {
	v, err := d.get(name)
	if err != nil {
		return nil, err
	}
	b, ok := v.([]byte)
	if !ok {
		return nil, fmt.Errorf("chainevent: field %q is %T, want bytes", name, v)
	}
	return b, nil
}

// String returns field name as a string, fatal if absent or the wrong type.
func (d *Decoded) String(name string) (string, error) {
	v, err := d.get(name)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", fmt.Errorf("chainevent: field %q is %T, want string", name, v)
	}
	return s, nil
}

// Bool returns field name as a bool, fatal if absent or the wrong type.
func (d *Decoded) Bool(name string) (bool, error) {
	v, err := d.get(name)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, fmt.Errorf("chainevent: field %q is %T, want bool", name, v)
	}
	return b, nil
}

// BlockNumber returns the block the underlying log was mined in.
func (d *Decoded) BlockNumber() uint64 {
	return d.Log.BlockNumber
}
