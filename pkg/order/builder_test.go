package order

import (
	"encoding/json"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/util"
)

var (
	usdt   = common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7")
	usdc   = common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48")
	robber = common.HexToAddress("0x9dfB98A93e96c9bf3EA2C3Fb06C52482D94d10a9")
	now    = time.Unix(1700000000, 0)
)

func emptyAppData(t *testing.T) appdata.Identifier {
	t.Helper()
	c, err := appdata.Identify(appdata.ObjectValue(appdata.NewObject()))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}
	return c.ID
}

func TestBuildDefaults(t *testing.T) {
	b := NewBuilder(util.FixedClock{At: now})

	o, err := b.Build(Params{
		SellToken:  usdt,
		BuyToken:   usdc,
		Receiver:   robber,
		SellAmount: big.NewInt(1000),
		BuyAmount:  big.NewInt(1),
		AppData:    emptyAppData(t),
	})
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	if o.ValidTo != uint32(now.Add(24*time.Hour).Unix()) {
		t.Errorf("validTo = %d, want now+24h", o.ValidTo)
	}
	if o.Kind != KindSell {
		t.Errorf("kind = %s, want sell", o.Kind)
	}
	if o.SellTokenBalance != SellFromERC20 || o.BuyTokenBalance != BuyToERC20 {
		t.Errorf("balances = %s/%s, want erc20/erc20", o.SellTokenBalance, o.BuyTokenBalance)
	}
	if o.FeeAmount.Sign() != 0 {
		t.Errorf("fee = %s, want 0", o.FeeAmount)
	}
	if o.AppData != emptyAppData(t).Hash {
		t.Errorf("appData = %s, want identifier hash", o.AppData.Hex())
	}
}

func TestBuildValidity(t *testing.T) {
	b := NewBuilder(util.FixedClock{At: now})
	base := Params{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), AppData: emptyAppData(t)}

	p := base
	p.Validity = 30 * time.Minute
	o, err := b.Build(p)
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	if want := uint32(now.Unix() + 1800); o.ValidTo != want {
		t.Errorf("validTo = %d, want %d", o.ValidTo, want)
	}

	p.Validity = -time.Minute
	if _, err := b.Build(p); err == nil {
		t.Error("negative validity should fail")
	}

	// Far-future timestamps do not fit in uint32
	far := NewBuilder(util.FixedClock{At: time.Unix(1<<32, 0)})
	if _, err := far.Build(base); err == nil {
		t.Error("validTo beyond uint32 should fail")
	}
}

func TestBuildCopiesAmounts(t *testing.T) {
	sell := big.NewInt(1000)
	o, err := NewBuilder(util.FixedClock{At: now}).Build(Params{
		SellToken: usdt, BuyToken: usdc, SellAmount: sell, BuyAmount: big.NewInt(1), AppData: emptyAppData(t),
	})
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	sell.SetInt64(1)
	if o.SellAmount.Int64() != 1000 {
		t.Errorf("sellAmount = %s, caller mutation leaked into order", o.SellAmount)
	}

	c := o.Clone()
	c.BuyAmount.SetInt64(99)
	if o.BuyAmount.Int64() != 1 {
		t.Errorf("buyAmount = %s, clone shares storage", o.BuyAmount)
	}
}

func TestBuildMissingFields(t *testing.T) {
	b := NewBuilder(util.FixedClock{At: now})
	id := emptyAppData(t)

	tests := []struct {
		name  string
		p     Params
		field string
	}{
		{"no sell token", Params{BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), AppData: id}, "sellToken"},
		{"no buy token", Params{SellToken: usdt, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), AppData: id}, "buyToken"},
		{"no sell amount", Params{SellToken: usdt, BuyToken: usdc, BuyAmount: big.NewInt(1), AppData: id}, "sellAmount"},
		{"negative buy amount", Params{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(-1), AppData: id}, "buyAmount"},
		{"no app data", Params{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1)}, "appData"},
		{"bad kind", Params{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), AppData: id, Kind: "swap"}, "kind"},
		{"external buy balance", Params{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), AppData: id, BuyTokenBalance: "external"}, "buyTokenBalance"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := b.Build(tt.p)
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("error = %v, want *FieldError", err)
			}
			if fe.Field != tt.field {
				t.Errorf("field = %s, want %s", fe.Field, tt.field)
			}
		})
	}
}

func TestParseAmount(t *testing.T) {
	large := "123456789012345678901234"
	v, err := ParseAmount(large)
	if err != nil {
		t.Fatalf("failed to parse: %v", err)
	}
	if v.String() != large {
		t.Errorf("amount = %s, want %s", v, large)
	}

	for _, bad := range []string{"", "-1", "+1", "1.0", "1e18", "0x10", " 1", "1_000",
		"115792089237316195423570985008687907853269984665640564039457584007913129639936"} {
		if _, err := ParseAmount(bad); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseAmount(%q) error = %v, want ErrInvalidAmount", bad, err)
		}
	}

	if _, err := ParseAmount(MaxAmount.String()); err != nil {
		t.Errorf("uint256 max should parse: %v", err)
	}
}

func TestPayloadPrecision(t *testing.T) {
	large, _ := new(big.Int).SetString("123456789012345678901234", 10)
	o, err := NewBuilder(util.FixedClock{At: now}).Build(Params{
		SellToken: usdt, BuyToken: usdc, Receiver: robber, SellAmount: large, BuyAmount: big.NewInt(1), AppData: emptyAppData(t),
	})
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}

	raw, err := json.Marshal(FromOrder(o))
	if err != nil {
		t.Fatalf("failed to marshal: %v", err)
	}
	if !strings.Contains(string(raw), `"sellAmount":"123456789012345678901234"`) {
		t.Errorf("sellAmount must be a decimal string: %s", raw)
	}

	var p Payload
	if err := json.Unmarshal(raw, &p); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	back, err := p.ToOrder(o.AppData)
	if err != nil {
		t.Fatalf("failed to convert: %v", err)
	}
	if back.SellAmount.Cmp(large) != 0 {
		t.Errorf("sellAmount = %s, want %s", back.SellAmount, large)
	}
	if back.String() != o.String() {
		t.Errorf("round trip = %s, want %s", back, o)
	}
}

func TestPayloadRejectsBadAddress(t *testing.T) {
	p := FromOrder(&Order{SellToken: usdt, BuyToken: usdc, SellAmount: big.NewInt(1), BuyAmount: big.NewInt(1), FeeAmount: big.NewInt(0)})
	p.BuyToken = "0xnope"
	_, err := p.ToOrder(common.HexToHash("0x01"))
	var fe *FieldError
	if !errors.As(err, &fe) || fe.Field != "buyToken" {
		t.Errorf("error = %v, want buyToken field error", err)
	}
}
