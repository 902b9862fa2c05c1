package order

import (
	"fmt"
	"math"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/util"
)

// DefaultValidity is how long an order stays fillable when Params.Validity is unset
const DefaultValidity = 24 * time.Hour

// Params are the trade terms a caller chooses
type Params struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address
	SellAmount        *big.Int
	BuyAmount         *big.Int
	FeeAmount         *big.Int // nil means zero
	Kind              Kind     // KindSell when empty
	PartiallyFillable bool
	SellTokenBalance  SellTokenSource     // erc20 when empty
	BuyTokenBalance   BuyTokenDestination // erc20 when empty
	Validity          time.Duration       // DefaultValidity when zero
	AppData           appdata.Identifier
}

// Builder stamps orders with validTo = now + validity
type Builder struct {
	Clock util.Clock
}

func NewBuilder(clock util.Clock) *Builder {
	if clock == nil {
		clock = util.RealClock{}
	}
	return &Builder{Clock: clock}
}

// Build assembles an order. validTo is fixed here and never re-checked; an order
// held too long before submission is the caller's problem.
func (b *Builder) Build(p Params) (*Order, error) {
	validity := p.Validity
	if validity == 0 {
		validity = DefaultValidity
	}
	if validity < 0 {
		return nil, &FieldError{Field: "validTo", Err: fmt.Errorf("%w: negative validity %s", ErrInvalidField, validity)}
	}

	validTo := b.Clock.Now().Add(validity).Unix()
	if validTo <= 0 || validTo > math.MaxUint32 {
		return nil, &FieldError{Field: "validTo", Err: fmt.Errorf("%w: %d out of uint32 range", ErrInvalidField, validTo)}
	}

	fee := p.FeeAmount
	if fee == nil {
		fee = new(big.Int)
	}

	o := &Order{
		SellToken:         p.SellToken,
		BuyToken:          p.BuyToken,
		Receiver:          p.Receiver,
		SellAmount:        cloneInt(p.SellAmount),
		BuyAmount:         cloneInt(p.BuyAmount),
		ValidTo:           uint32(validTo),
		AppData:           p.AppData.Hash,
		FeeAmount:         cloneInt(fee),
		Kind:              orDefault(p.Kind, KindSell),
		PartiallyFillable: p.PartiallyFillable,
		SellTokenBalance:  orDefault(p.SellTokenBalance, SellFromERC20),
		BuyTokenBalance:   orDefault(p.BuyTokenBalance, BuyToERC20),
	}

	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func orDefault[T ~string](v, def T) T {
	if v == "" {
		return def
	}
	return v
}
