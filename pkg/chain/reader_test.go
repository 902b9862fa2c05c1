package chain

import (
	"bytes"
	"context"
	"errors"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"

	"github.com/uhyunpark/hookorder/pkg/hook"
)

var (
	usdt       = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	trampoline = common.HexToAddress("0x01DcB88678aedD0C4cC9552B20F4718550250574")
)

type fakeBackend struct {
	chainID  *big.Int
	callOut  []byte
	callErr  error
	gas      uint64
	lastCall ethereum.CallMsg
}

func (f *fakeBackend) ChainID(ctx context.Context) (*big.Int, error) { return f.chainID, nil }

func (f *fakeBackend) CallContract(ctx context.Context, msg ethereum.CallMsg, block *big.Int) ([]byte, error) {
	f.lastCall = msg
	return f.callOut, f.callErr
}

func (f *fakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	f.lastCall = msg
	return f.gas, nil
}

func TestTokenBalance(t *testing.T) {
	balance, _ := new(big.Int).SetString("123456789012345678901234", 10)
	fb := &fakeBackend{callOut: math.U256Bytes(new(big.Int).Set(balance))}
	c := NewClient(fb)

	got, err := c.TokenBalance(context.Background(), usdt, trampoline)
	if err != nil {
		t.Fatalf("failed to read balance: %v", err)
	}
	if got.Cmp(balance) != 0 {
		t.Errorf("balance = %s, want %s", got, balance)
	}

	if fb.lastCall.To == nil || *fb.lastCall.To != usdt {
		t.Errorf("call target = %v, want %s", fb.lastCall.To, usdt.Hex())
	}
	want, _ := hook.ERC20().Pack("balanceOf", trampoline)
	if !bytes.Equal(fb.lastCall.Data, want) {
		t.Errorf("call data = %x, want %x", fb.lastCall.Data, want)
	}
}

func TestTokenBalanceErrors(t *testing.T) {
	c := NewClient(&fakeBackend{})
	if _, err := c.TokenBalance(context.Background(), usdt, trampoline); !errors.Is(err, ErrEmptyResult) {
		t.Errorf("error = %v, want ErrEmptyResult", err)
	}

	rpcErr := errors.New("execution reverted")
	c = NewClient(&fakeBackend{callErr: rpcErr})
	if _, err := c.TokenBalance(context.Background(), usdt, trampoline); !errors.Is(err, rpcErr) {
		t.Errorf("error = %v, want wrapped rpc error", err)
	}
}

func TestEstimateGasAndChainID(t *testing.T) {
	fb := &fakeBackend{chainID: big.NewInt(1), gas: 48_123}
	c := NewClient(fb)

	id, err := c.ChainID(context.Background())
	if err != nil || id != 1 {
		t.Errorf("chain id = %d, %v; want 1", id, err)
	}

	data := []byte{0xa9, 0x05, 0x9c, 0xbb}
	gas, err := c.EstimateGas(context.Background(), trampoline, usdt, data)
	if err != nil {
		t.Fatalf("failed to estimate: %v", err)
	}
	if gas != 48_123 {
		t.Errorf("gas = %d, want 48123", gas)
	}
	if fb.lastCall.From != trampoline {
		t.Errorf("from = %s, want %s", fb.lastCall.From.Hex(), trampoline.Hex())
	}
}
