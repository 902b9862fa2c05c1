package order

import (
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"
)

// Payload is the JSON form of an order. Amounts are decimal strings so no
// JSON reader on the way can round them through a float.
type Payload struct {
	SellToken         string              `json:"sellToken"`
	BuyToken          string              `json:"buyToken"`
	Receiver          string              `json:"receiver"`
	SellAmount        string              `json:"sellAmount"`
	BuyAmount         string              `json:"buyAmount"`
	ValidTo           uint32              `json:"validTo"`
	FeeAmount         string              `json:"feeAmount"`
	Kind              Kind                `json:"kind"`
	PartiallyFillable bool                `json:"partiallyFillable"`
	SellTokenBalance  SellTokenSource     `json:"sellTokenBalance"`
	BuyTokenBalance   BuyTokenDestination `json:"buyTokenBalance"`
}

// FromOrder converts an order to its wire shape. appData travels separately
// because the order book expects either the hash or the full document there.
func FromOrder(o *Order) Payload {
	return Payload{
		SellToken:         o.SellToken.Hex(),
		BuyToken:          o.BuyToken.Hex(),
		Receiver:          o.Receiver.Hex(),
		SellAmount:        FormatAmount(o.SellAmount),
		BuyAmount:         FormatAmount(o.BuyAmount),
		ValidTo:           o.ValidTo,
		FeeAmount:         FormatAmount(o.FeeAmount),
		Kind:              o.Kind,
		PartiallyFillable: o.PartiallyFillable,
		SellTokenBalance:  o.SellTokenBalance,
		BuyTokenBalance:   o.BuyTokenBalance,
	}
}

// ToOrder parses a payload and attaches appData
func (p Payload) ToOrder(appData common.Hash) (*Order, error) {
	addrs := []struct {
		name string
		v    string
	}{
		{"sellToken", p.SellToken},
		{"buyToken", p.BuyToken},
		{"receiver", p.Receiver},
	}
	for _, a := range addrs {
		if a.name == "receiver" && a.v == "" {
			continue
		}
		if !common.IsHexAddress(a.v) {
			return nil, &FieldError{Field: a.name, Err: fmt.Errorf("%w: bad address %q", ErrInvalidField, a.v)}
		}
	}

	sell, err := ParseAmount(p.SellAmount)
	if err != nil {
		return nil, &FieldError{Field: "sellAmount", Err: err}
	}
	buy, err := ParseAmount(p.BuyAmount)
	if err != nil {
		return nil, &FieldError{Field: "buyAmount", Err: err}
	}
	fee, err := ParseAmount(p.FeeAmount)
	if err != nil {
		return nil, &FieldError{Field: "feeAmount", Err: err}
	}

	o := &Order{
		SellToken:         common.HexToAddress(p.SellToken),
		BuyToken:          common.HexToAddress(p.BuyToken),
		Receiver:          common.HexToAddress(p.Receiver),
		SellAmount:        sell,
		BuyAmount:         buy,
		ValidTo:           p.ValidTo,
		AppData:           appData,
		FeeAmount:         fee,
		Kind:              p.Kind,
		PartiallyFillable: p.PartiallyFillable,
		SellTokenBalance:  p.SellTokenBalance,
		BuyTokenBalance:   p.BuyTokenBalance,
	}
	if err := o.Validate(); err != nil {
		return nil, err
	}
	return o, nil
}

func (o *Order) String() string {
	return fmt.Sprintf("order{%s %s %s -> %s %s validTo=%s appData=%s}",
		o.Kind, FormatAmount(o.SellAmount), o.SellToken.Hex(),
		FormatAmount(o.BuyAmount), o.BuyToken.Hex(), o.ValidToString(), o.AppData.Hex())
}

// ValidToString is validTo as the decimal text used in typed data
func (o *Order) ValidToString() string {
	return strconv.FormatUint(uint64(o.ValidTo), 10)
}
