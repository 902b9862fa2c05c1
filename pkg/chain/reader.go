package chain

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/ethclient"

	"github.com/uhyunpark/hookorder/pkg/hook"
)

var ErrEmptyResult = errors.New("empty call result")

// Reader is the read-only chain access the order pipeline needs
type Reader interface {
	ChainID(ctx context.Context) (uint64, error)
	TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error)
	EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error)
}

// Backend is the subset of *ethclient.Client used by Client
type Backend interface {
	ChainID(ctx context.Context) (*big.Int, error)
	ethereum.ContractCaller
	ethereum.GasEstimator
}

// Client implements Reader over a JSON-RPC backend
type Client struct {
	backend Backend
	erc20   *hook.Encoder
	closeFn func()
}

// Dial connects to an Ethereum JSON-RPC endpoint
func Dial(ctx context.Context, rpcURL string) (*Client, error) {
	eth, err := ethclient.DialContext(ctx, rpcURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to %s: %w", rpcURL, err)
	}
	c := NewClient(eth)
	c.closeFn = eth.Close
	return c, nil
}

// NewClient wraps an existing backend
func NewClient(backend Backend) *Client {
	return &Client{backend: backend, erc20: hook.ERC20()}
}

func (c *Client) Close() {
	if c.closeFn != nil {
		c.closeFn()
	}
}

func (c *Client) ChainID(ctx context.Context) (uint64, error) {
	id, err := c.backend.ChainID(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to get chain id: %w", err)
	}
	if !id.IsUint64() {
		return 0, fmt.Errorf("chain id %s out of range", id)
	}
	return id.Uint64(), nil
}

// TokenBalance calls balanceOf(holder) on an ERC-20 token at the latest block
func (c *Client) TokenBalance(ctx context.Context, token, holder common.Address) (*big.Int, error) {
	data, err := c.erc20.Pack("balanceOf", holder)
	if err != nil {
		return nil, err
	}

	out, err := c.backend.CallContract(ctx, ethereum.CallMsg{To: &token, Data: data}, nil)
	if err != nil {
		return nil, fmt.Errorf("balanceOf(%s) on %s: %w", holder.Hex(), token.Hex(), err)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("balanceOf on %s: %w", token.Hex(), ErrEmptyResult)
	}

	vals, err := c.erc20.ABI().Unpack("balanceOf", out)
	if err != nil {
		return nil, fmt.Errorf("failed to decode balanceOf: %w", err)
	}
	balance, ok := vals[0].(*big.Int)
	if !ok {
		return nil, fmt.Errorf("balanceOf returned %T", vals[0])
	}
	return balance, nil
}

// EstimateGas simulates a call from `from` and returns the gas it used. The
// value goes stale as chain state moves.
func (c *Client) EstimateGas(ctx context.Context, from, to common.Address, data []byte) (uint64, error) {
	gas, err := c.backend.EstimateGas(ctx, ethereum.CallMsg{From: from, To: &to, Data: data})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return gas, nil
}
