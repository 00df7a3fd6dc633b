package pdsync

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// contractABI describes the Public Directory contract's event surface. The
// field names mirror the on-chain ABI the registry's reverse-walk depends
// on; deploy-time ABI drift is a fatal error by design (pkg/chainevent).
const contractABI = `[
	{"anonymous": false, "name": "MemberChanged", "type": "event", "inputs": [
		{"name": "memberId", "type": "uint256", "indexed": false},
		{"name": "iat", "type": "uint256", "indexed": false},
		{"name": "exp", "type": "uint256", "indexed": false},
		{"name": "did", "type": "string", "indexed": false},
		{"name": "prevBlock", "type": "uint256", "indexed": false},
		{"name": "currentTimestamp", "type": "uint256", "indexed": false},
		{"name": "rawData", "type": "bytes", "indexed": false}
	]},
	{"anonymous": false, "name": "ContractChange", "type": "event", "inputs": [
		{"name": "contractPrevBlock", "type": "uint256", "indexed": false}
	]},
	{"anonymous": false, "name": "DidAssociated", "type": "event", "inputs": [
		{"name": "memberId", "type": "uint256", "indexed": false},
		{"name": "did", "type": "string", "indexed": false}
	]},
	{"anonymous": false, "name": "DidDisassociated", "type": "event", "inputs": [
		{"name": "memberId", "type": "uint256", "indexed": false},
		{"name": "did", "type": "string", "indexed": false}
	]},
	{"name": "prevBlock", "type": "function", "stateMutability": "view", "inputs": [], "outputs": [
		{"name": "", "type": "uint256"}
	]}
]`

func parsedABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(contractABI))
	if err != nil {
		panic("pdsync: invalid embedded contract ABI: " + err.Error())
	}
	return parsed
}
