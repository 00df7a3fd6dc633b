// Package chain wraps a single chain's RPC endpoint, exposing the two
// primitives a reverse-walk sync worker needs: the current on-chain tip
// pointer and a ranged, topic-filtered log fetch. Callers name the contract
// address on each call.
package chain

import (
	"context"
	"fmt"
	"math/big"
	"strings"
	"time"

	ethereum "github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/ethclient"
)

// Client is an RPC connection to one chain, used to read event logs and
// call tip accessors on whatever contract a caller names.
type Client struct {
	rpc     *ethclient.Client
	chainID *big.Int
	url     string

	retryAttempts int
	retryDelay    time.Duration
	maxBlockRange uint64
}

// Option configures a Client.
type Option func(*Client)

// WithRetry overrides the retry attempts and delay used by FetchLogs.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.retryAttempts = attempts
		c.retryDelay = delay
	}
}

// WithMaxBlockRange caps toBlock-fromBlock of each eth_getLogs request that
// FetchLogs issues, matching provider-imposed eth_getLogs limits; FetchLogs
// splits a longer range into consecutive requests.
func WithMaxBlockRange(n uint64) Option {
	return func(c *Client) { c.maxBlockRange = n }
}

// NewClient dials the given RPC endpoint for chainID.
func NewClient(url string, chainID *big.Int, opts ...Option) (*Client, error) {
	rpc, err := ethclient.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("chain: dial %s: %w", url, err)
	}

	c := &Client{
		rpc:           rpc,
		chainID:       chainID,
		url:           url,
		retryAttempts: 3,
		retryDelay:    2 * time.Second,
		maxBlockRange: 2000,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// ChainID returns the chain this client was constructed for.
func (c *Client) ChainID() *big.Int { return c.chainID }

// BlockNumber returns the chain's current head block.
func (c *Client) BlockNumber(ctx context.Context) (uint64, error) {
	n, err := c.rpc.BlockNumber(ctx)
	if err != nil {
		return 0, fmt.Errorf("chain: block number: %w", err)
	}
	return n, nil
}

// tipMethodABI builds a minimal single-method ABI for a tip accessor that
// returns a uint256, with the given input arguments.
func tipMethodABI(name string, inputs ...abi.Argument) abi.ABI {
	method := abi.NewMethod(name, name, abi.Function, "view", false, false, inputs,
		abi.Arguments{{Type: mustType("uint256")}})
	return abi.ABI{Methods: map[string]abi.Method{name: method}}
}

func mustType(t string) abi.Type {
	typ, err := abi.NewType(t, "", nil)
	if err != nil {
		panic(err)
	}
	return typ
}

// QueryTip calls a zero-argument uint256-returning accessor (e.g. prevBlock)
// on contractAddress and returns its result. A contract that has never
// emitted a linked event returns zero.
func (c *Client) QueryTip(ctx context.Context, contractAddress common.Address, method string) (uint64, error) {
	a := tipMethodABI(method)
	data, err := a.Pack(method)
	if err != nil {
		return 0, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contractAddress, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: call %s: %w", method, err)
	}

	results, err := a.Unpack(method, out)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("chain: %s returned %d values, want 1", method, len(results))
	}
	tip, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain: %s did not return uint256", method)
	}
	return tip.Uint64(), nil
}

// QueryIdentityTip calls a single-address-argument uint256-returning
// accessor (e.g. changed(identity)) used by per-DID registries.
func (c *Client) QueryIdentityTip(ctx context.Context, contractAddress, identity common.Address, method string) (uint64, error) {
	a := tipMethodABI(method, abi.Argument{Type: mustType("address")})
	data, err := a.Pack(method, identity)
	if err != nil {
		return 0, fmt.Errorf("chain: pack %s: %w", method, err)
	}

	out, err := c.rpc.CallContract(ctx, ethereum.CallMsg{To: &contractAddress, Data: data}, nil)
	if err != nil {
		return 0, fmt.Errorf("chain: call %s: %w", method, err)
	}

	results, err := a.Unpack(method, out)
	if err != nil {
		return 0, fmt.Errorf("chain: unpack %s: %w", method, err)
	}
	if len(results) != 1 {
		return 0, fmt.Errorf("chain: %s returned %d values, want 1", method, len(results))
	}
	tip, ok := results[0].(*big.Int)
	if !ok {
		return 0, fmt.Errorf("chain: %s did not return uint256", method)
	}
	return tip.Uint64(), nil
}

// FetchLogs returns every log emitted by contractAddress for any of topics,
// within the inclusive [fromBlock, toBlock] range, transparently paging the
// query to respect the configured max block range and retrying transient
// RPC failures. Event-declaration order within a block is preserved because
// FilterLogs already returns logs in chain order.
func (c *Client) FetchLogs(ctx context.Context, contractAddress common.Address, topics []common.Hash, fromBlock, toBlock uint64) ([]types.Log, error) {
	if fromBlock > toBlock {
		return nil, nil
	}

	var out []types.Log
	for from := fromBlock; from <= toBlock; {
		to := toBlock
		if c.maxBlockRange > 0 && to-from > c.maxBlockRange {
			to = from + c.maxBlockRange
		}

		logs, err := c.fetchLogsRange(ctx, contractAddress, topics, from, to)
		if err != nil {
			return nil, err
		}
		out = append(out, logs...)

		if to == toBlock {
			break
		}
		from = to + 1
	}
	return out, nil
}

func (c *Client) fetchLogsRange(ctx context.Context, contractAddress common.Address, topics []common.Hash, from, to uint64) ([]types.Log, error) {
	query := ethereum.FilterQuery{
		FromBlock: new(big.Int).SetUint64(from),
		ToBlock:   new(big.Int).SetUint64(to),
		Addresses: []common.Address{contractAddress},
	}
	if len(topics) > 0 {
		query.Topics = [][]common.Hash{topics}
	}

	var (
		logs []types.Log
		err  error
	)
	attempts := c.retryAttempts
	if attempts < 1 {
		attempts = 1
	}
	for attempt := 0; attempt < attempts; attempt++ {
		logs, err = c.rpc.FilterLogs(ctx, query)
		if err == nil {
			return logs, nil
		}
		if isPermanent(err) {
			break
		}
		if attempt < attempts-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(c.retryDelay):
			}
		}
	}
	return nil, fmt.Errorf("chain: filter logs [%d,%d] after %d attempts: %w", from, to, attempts, err)
}

// isPermanent reports whether err looks like a fatal, non-retryable RPC
// error (ABI/request malformation) rather than a transient connection or
// timeout failure.
func isPermanent(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "invalid argument"),
		strings.Contains(msg, "malformed"),
		strings.Contains(msg, "method not found"):
		return true
	default:
		return false
	}
}

// Close releases the underlying RPC connection.
func (c *Client) Close() {
	c.rpc.Close()
}
