package order

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// Kind is the side of the trade whose amount is fixed
type Kind string

const (
	KindSell Kind = "sell" // sellAmount exact, buyAmount is a limit
	KindBuy  Kind = "buy"  // buyAmount exact, sellAmount is a limit
)

// SellTokenSource says where the sell token is pulled from
type SellTokenSource string

const (
	SellFromERC20    SellTokenSource = "erc20"
	SellFromExternal SellTokenSource = "external"
	SellFromInternal SellTokenSource = "internal"
)

// BuyTokenDestination says where the buy token is paid to
type BuyTokenDestination string

const (
	BuyToERC20    BuyTokenDestination = "erc20"
	BuyToInternal BuyTokenDestination = "internal"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrInvalidField  = errors.New("invalid order field")
)

// MaxAmount is the largest value a uint256 order field can hold
var MaxAmount = new(big.Int).Sub(new(big.Int).Lsh(big.NewInt(1), 256), big.NewInt(1))

// Order is the economic content that gets signed. Treat it as immutable once
// built: any change after signing invalidates the signature.
type Order struct {
	SellToken         common.Address
	BuyToken          common.Address
	Receiver          common.Address // Zero address means "the owner"
	SellAmount        *big.Int
	BuyAmount         *big.Int
	ValidTo           uint32 // Unix seconds
	AppData           common.Hash
	FeeAmount         *big.Int
	Kind              Kind
	PartiallyFillable bool
	SellTokenBalance  SellTokenSource
	BuyTokenBalance   BuyTokenDestination
}

// Clone returns a deep copy (amounts included)
func (o *Order) Clone() *Order {
	c := *o
	c.SellAmount = cloneInt(o.SellAmount)
	c.BuyAmount = cloneInt(o.BuyAmount)
	c.FeeAmount = cloneInt(o.FeeAmount)
	return &c
}

// Validate returns the first missing or malformed field. Signers call this before
// hashing so a half-filled order is never signed.
func (o *Order) Validate() error {
	if o == nil {
		return fmt.Errorf("%w: nil order", ErrInvalidField)
	}
	if o.SellToken == (common.Address{}) {
		return &FieldError{Field: "sellToken", Err: errMissing}
	}
	if o.BuyToken == (common.Address{}) {
		return &FieldError{Field: "buyToken", Err: errMissing}
	}
	amounts := []struct {
		name string
		v    *big.Int
	}{
		{"sellAmount", o.SellAmount},
		{"buyAmount", o.BuyAmount},
		{"feeAmount", o.FeeAmount},
	}
	for _, a := range amounts {
		if err := checkAmount(a.v); err != nil {
			return &FieldError{Field: a.name, Err: err}
		}
	}
	if o.ValidTo == 0 {
		return &FieldError{Field: "validTo", Err: errMissing}
	}
	if o.AppData == (common.Hash{}) {
		return &FieldError{Field: "appData", Err: errMissing}
	}
	switch o.Kind {
	case KindSell, KindBuy:
	case "":
		return &FieldError{Field: "kind", Err: errMissing}
	default:
		return &FieldError{Field: "kind", Err: fmt.Errorf("%w: %q", ErrInvalidField, o.Kind)}
	}
	switch o.SellTokenBalance {
	case SellFromERC20, SellFromExternal, SellFromInternal:
	case "":
		return &FieldError{Field: "sellTokenBalance", Err: errMissing}
	default:
		return &FieldError{Field: "sellTokenBalance", Err: fmt.Errorf("%w: %q", ErrInvalidField, o.SellTokenBalance)}
	}
	switch o.BuyTokenBalance {
	case BuyToERC20, BuyToInternal:
	case "":
		return &FieldError{Field: "buyTokenBalance", Err: errMissing}
	default:
		return &FieldError{Field: "buyTokenBalance", Err: fmt.Errorf("%w: %q", ErrInvalidField, o.BuyTokenBalance)}
	}
	return nil
}

var errMissing = fmt.Errorf("%w: missing", ErrInvalidField)

// FieldError names the order field that failed validation
type FieldError struct {
	Field string
	Err   error
}

func (e *FieldError) Error() string {
	return fmt.Sprintf("order field %s: %v", e.Field, e.Err)
}

func (e *FieldError) Unwrap() error {
	return e.Err
}

// ParseAmount reads a base-10 integer string. Anything else (signs, decimals,
// exponents, hex, whitespace) is rejected so an amount never passes through a
// float.
func ParseAmount(s string) (*big.Int, error) {
	if s == "" {
		return nil, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, fmt.Errorf("%w: %q is not a decimal integer", ErrInvalidAmount, s)
		}
	}
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	if err := checkAmount(v); err != nil {
		return nil, err
	}
	return v, nil
}

// FormatAmount renders an amount as a decimal string ("" for nil)
func FormatAmount(v *big.Int) string {
	if v == nil {
		return ""
	}
	return v.String()
}

func checkAmount(v *big.Int) error {
	if v == nil {
		return errMissing
	}
	if v.Sign() < 0 {
		return fmt.Errorf("%w: negative %s", ErrInvalidAmount, v)
	}
	if v.Cmp(MaxAmount) > 0 {
		return fmt.Errorf("%w: %s exceeds uint256", ErrInvalidAmount, v)
	}
	return nil
}

func cloneInt(v *big.Int) *big.Int {
	if v == nil {
		return nil
	}
	return new(big.Int).Set(v)
}
