package didsync

import (
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
)

// didRegistryABI describes the DID registry contract's per-identity event
// chain, mirroring ERC-1056-style DIDAttributeChanged logs.
const didRegistryABI = `[
	{"anonymous": false, "name": "DIDAttributeChanged", "type": "event", "inputs": [
		{"name": "identity", "type": "address", "indexed": false},
		{"name": "name", "type": "bytes32", "indexed": false},
		{"name": "value", "type": "bytes", "indexed": false},
		{"name": "validTo", "type": "uint256", "indexed": false},
		{"name": "changeTime", "type": "uint256", "indexed": false},
		{"name": "previousChange", "type": "uint256", "indexed": false},
		{"name": "compromised", "type": "bool", "indexed": false}
	]},
	{"name": "changed", "type": "function", "stateMutability": "view", "inputs": [
		{"name": "identity", "type": "address"}
	], "outputs": [
		{"name": "", "type": "uint256"}
	]}
]`

func parsedABI() abi.ABI {
	parsed, err := abi.JSON(strings.NewReader(didRegistryABI))
	if err != nil {
		panic("didsync: invalid embedded contract ABI: " + err.Error())
	}
	return parsed
}
