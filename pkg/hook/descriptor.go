package hook

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
)

// CallDescriptor is a hook: one call the settlement contract makes before the order settles.
// Fields are private so a descriptor cannot change after it was embedded in app data.
type CallDescriptor struct {
	target   common.Address
	callData []byte
	gasLimit uint64
}

// NewCallDescriptor validates and copies its inputs
func NewCallDescriptor(target common.Address, callData []byte, gasLimit uint64) (CallDescriptor, error) {
	if target == (common.Address{}) {
		return CallDescriptor{}, ErrZeroTarget
	}
	if gasLimit == 0 {
		return CallDescriptor{}, ErrZeroGasLimit
	}
	return CallDescriptor{
		target:   target,
		callData: common.CopyBytes(callData),
		gasLimit: gasLimit,
	}, nil
}

func (d CallDescriptor) Target() common.Address { return d.target }
func (d CallDescriptor) CallData() []byte       { return common.CopyBytes(d.callData) }
func (d CallDescriptor) GasLimit() uint64       { return d.gasLimit }

// IsZero reports whether d is the empty descriptor returned alongside errors
func (d CallDescriptor) IsZero() bool {
	return d.target == (common.Address{}) && len(d.callData) == 0 && d.gasLimit == 0
}

// Wire is the app-data JSON shape of a hook
type Wire struct {
	Target   string `json:"target"`   // Checksummed hex address
	CallData string `json:"callData"` // 0x-prefixed hex
	GasLimit string `json:"gasLimit"` // Decimal string
}

// ToWire renders the descriptor in its app-data shape
func (d CallDescriptor) ToWire() Wire {
	return Wire{
		Target:   d.target.Hex(),
		CallData: hexutil.Encode(d.callData),
		GasLimit: strconv.FormatUint(d.gasLimit, 10),
	}
}

// ToDescriptor parses and validates a wire hook
func (w Wire) ToDescriptor() (CallDescriptor, error) {
	if !common.IsHexAddress(w.Target) {
		return CallDescriptor{}, fmt.Errorf("invalid target: %q", w.Target)
	}
	data, err := hexutil.Decode(w.CallData)
	if err != nil {
		return CallDescriptor{}, fmt.Errorf("invalid callData: %w", err)
	}
	gas, err := strconv.ParseUint(w.GasLimit, 10, 64)
	if err != nil {
		return CallDescriptor{}, fmt.Errorf("invalid gasLimit %q: %w", w.GasLimit, err)
	}
	return NewCallDescriptor(common.HexToAddress(w.Target), data, gas)
}

func (d CallDescriptor) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.ToWire())
}

func (d *CallDescriptor) UnmarshalJSON(data []byte) error {
	var w Wire
	if err := json.Unmarshal(data, &w); err != nil {
		return err
	}
	desc, err := w.ToDescriptor()
	if err != nil {
		return err
	}
	*d = desc
	return nil
}

func (d CallDescriptor) String() string {
	return fmt.Sprintf("hook{target=%s gas=%d data=%s}", d.target.Hex(), d.gasLimit, hexutil.Encode(d.callData))
}
