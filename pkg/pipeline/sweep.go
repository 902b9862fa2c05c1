package pipeline

import (
	"context"
	"fmt"
	"math/big"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/chain"
	"github.com/uhyunpark/hookorder/pkg/hook"
	"github.com/uhyunpark/hookorder/pkg/order"
)

// SweepParams describes moving a holder's whole token balance to a recipient
// through a pre-hook, then selling it
type SweepParams struct {
	Token     common.Address // Token to sweep and sell
	Holder    common.Address // Account the transfer hook runs from
	Recipient common.Address // Receives the swept tokens and the proceeds
	BuyToken  common.Address
	BuyAmount *big.Int // Minimum proceeds
	FeeAmount *big.Int
	Validity  time.Duration
	AppCode   string
}

// PlanSweep reads the holder's balance and prices the transfer hook with a
// gas estimate. The estimate reflects chain state at call time only.
func PlanSweep(ctx context.Context, reader chain.Reader, sp SweepParams) (Request, error) {
	balance, err := reader.TokenBalance(ctx, sp.Token, sp.Holder)
	if err != nil {
		return Request{}, fail(StageChain, err)
	}
	if balance.Sign() == 0 {
		return Request{}, fail(StageChain, fmt.Errorf("%w: %s holds no %s", ErrNothingToSweep, sp.Holder.Hex(), sp.Token.Hex()))
	}

	callData, err := hook.ERC20().Pack("transfer", sp.Recipient, balance)
	if err != nil {
		return Request{}, fail(StageHook, err)
	}
	gas, err := reader.EstimateGas(ctx, sp.Holder, sp.Token, callData)
	if err != nil {
		return Request{}, fail(StageChain, err)
	}

	return Request{
		Hooks: []HookCall{{
			Target:   sp.Token,
			Method:   "transfer",
			Args:     []interface{}{sp.Recipient, balance},
			GasLimit: gas,
		}},
		Document: appdata.DocumentParams{AppCode: sp.AppCode},
		Order: order.Params{
			SellToken:  sp.Token,
			BuyToken:   sp.BuyToken,
			Receiver:   sp.Recipient,
			SellAmount: balance,
			BuyAmount:  sp.BuyAmount,
			FeeAmount:  sp.FeeAmount,
			Kind:       order.KindSell,
			Validity:   sp.Validity,
		},
	}, nil
}
