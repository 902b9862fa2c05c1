package hook

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
)

// ERC20ABI covers the token calls a hook or a balance query needs.
const ERC20ABI = `[
	{"constant":true,"inputs":[{"name":"who","type":"address"}],"name":"balanceOf","outputs":[{"name":"","type":"uint256"}],"type":"function"},
	{"constant":false,"inputs":[{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transfer","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"spender","type":"address"},{"name":"value","type":"uint256"}],"name":"approve","outputs":[],"type":"function"},
	{"constant":false,"inputs":[{"name":"from","type":"address"},{"name":"to","type":"address"},{"name":"value","type":"uint256"}],"name":"transferFrom","outputs":[],"type":"function"}
]`

// Encoder packs function calls against one contract ABI.
type Encoder struct {
	abi abi.ABI
}

// NewEncoder parses a JSON ABI definition
func NewEncoder(abiJSON string) (*Encoder, error) {
	parsed, err := abi.JSON(strings.NewReader(abiJSON))
	if err != nil {
		return nil, &EncodingError{Err: fmt.Errorf("failed to parse ABI: %w", err)}
	}
	return &Encoder{abi: parsed}, nil
}

// ERC20 returns an encoder for the standard token interface.
// USDT's transfer has no return value, so the ABI above omits it; packing is unaffected.
func ERC20() *Encoder {
	enc, err := NewEncoder(ERC20ABI)
	if err != nil {
		panic(err)
	}
	return enc
}

// ABI exposes the parsed definition (used for unpacking call results)
func (e *Encoder) ABI() abi.ABI {
	return e.abi
}

// Pack returns selector || ABI-encoded args for method
func (e *Encoder) Pack(method string, args ...interface{}) ([]byte, error) {
	if _, ok := e.abi.Methods[method]; !ok {
		return nil, &EncodingError{Method: method, Err: ErrUnknownMethod}
	}

	data, err := e.abi.Pack(method, args...)
	if err != nil {
		return nil, &EncodingError{Method: method, Err: err}
	}
	return data, nil
}

// Encode builds the descriptor for calling method on target.
// gasLimit comes from the caller (usually an eth_estimateGas round trip) and is not checked
// against chain state here.
func (e *Encoder) Encode(target common.Address, method string, gasLimit uint64, args ...interface{}) (CallDescriptor, error) {
	data, err := e.Pack(method, args...)
	if err != nil {
		return CallDescriptor{}, err
	}

	desc, err := NewCallDescriptor(target, data, gasLimit)
	if err != nil {
		return CallDescriptor{}, &EncodingError{Method: method, Err: err}
	}
	return desc, nil
}

// MethodOf returns the ABI method whose selector prefixes callData
func (e *Encoder) MethodOf(callData []byte) (*abi.Method, error) {
	if len(callData) < 4 {
		return nil, &EncodingError{Err: fmt.Errorf("call data too short: %d bytes", len(callData))}
	}
	for name, m := range e.abi.Methods {
		if bytes.Equal(m.ID, callData[:4]) {
			method := e.abi.Methods[name]
			return &method, nil
		}
	}
	return nil, &EncodingError{Err: fmt.Errorf("selector %x: %w", callData[:4], ErrUnknownMethod)}
}
