package orderbook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/crypto"
	"github.com/uhyunpark/hookorder/pkg/order"
	"github.com/uhyunpark/hookorder/pkg/util"
)

const testUID = "0x" +
	"1392ba55b37a42f603d14ea8327ba51451ffab001e4eaa023571579057364dd3" +
	"f39fd6e51aad88f6f4ce6ab8827279cfffb92266" +
	"65554280"

func signedCreation(t *testing.T) OrderCreation {
	t.Helper()
	doc, err := appdata.Identify(appdata.ObjectValue(appdata.NewDocument(appdata.DocumentParams{})))
	if err != nil {
		t.Fatalf("failed to identify: %v", err)
	}
	sell, _ := new(big.Int).SetString("123456789012345678901234", 10)
	o, err := order.NewBuilder(util.FixedClock{At: time.Unix(1700000000, 0)}).Build(order.Params{
		SellToken:  common.HexToAddress("0xdAC17F958D2ee523a2206206994597C13D831ec7"),
		BuyToken:   common.HexToAddress("0xA0b86991c6218b36c1d19D4a2e9Eb0cE3606eB48"),
		SellAmount: sell,
		BuyAmount:  big.NewInt(1),
		AppData:    doc.ID,
	})
	if err != nil {
		t.Fatalf("failed to build: %v", err)
	}
	key, err := crypto.GenerateKey()
	if err != nil {
		t.Fatalf("failed to generate key: %v", err)
	}
	sig, err := crypto.NewOrderSigner(crypto.DomainFor(1)).SignOrder(key, o, crypto.SchemeEIP712)
	if err != nil {
		t.Fatalf("failed to sign: %v", err)
	}
	return NewOrderCreation(o, sig, key.Address(), doc)
}

func TestSubmitOrder(t *testing.T) {
	oc := signedCreation(t)

	var got map[string]interface{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/api/v1/orders" {
			t.Errorf("request = %s %s, want POST /api/v1/orders", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("content type = %q", ct)
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("body is not JSON: %v", err)
		}
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`"` + testUID + `"`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL+"/", WithExplorer("https://explorer.cow.fi/"))
	res, err := c.SubmitOrder(context.Background(), oc)
	if err != nil {
		t.Fatalf("failed to submit: %v", err)
	}

	if res.UID != testUID {
		t.Errorf("uid = %s, want %s", res.UID, testUID)
	}
	if res.ExplorerURL != "https://explorer.cow.fi/orders/"+testUID {
		t.Errorf("explorer url = %s", res.ExplorerURL)
	}

	want := map[string]interface{}{
		"sellAmount":    "123456789012345678901234",
		"buyAmount":     "1",
		"feeAmount":     "0",
		"kind":          "sell",
		"signingScheme": "eip712",
		"signature":     oc.Signature,
		"from":          oc.From,
		"appData":       oc.AppData,
		"appDataHash":   oc.AppDataHash,
	}
	for k, v := range want {
		if got[k] != v {
			t.Errorf("body[%s] = %v, want %v", k, got[k], v)
		}
	}
	if oc.AppData != `{"appCode":"CoW Swap","metadata":{},"version":"1.1.0"}` {
		t.Errorf("appData = %s, want canonical document text", oc.AppData)
	}
}

func TestSubmitOrderErrors(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		errorType string
		transient bool
	}{
		{"rejected signature", 400, `{"errorType":"InvalidSignature","description":"bad sig"}`, ErrorTypeInvalidSignature, false},
		{"duplicate", 400, `{"errorType":"DuplicatedOrder","description":"order already exists"}`, ErrorTypeDuplicatedOrder, false},
		{"rate limited", 429, `{"errorType":"TooManyRequests","description":"slow down"}`, "TooManyRequests", true},
		{"server error", 500, `{"errorType":"InternalServerError","description":""}`, ErrorTypeInternal, true},
		{"plain text", 503, "upstream unavailable", "Service Unavailable", true},
		{"not found html", 404, "<html>nope</html>", "Not Found", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			_, err := NewClient(srv.URL).SubmitOrder(context.Background(), signedCreation(t))
			var se *SubmissionError
			if !errors.As(err, &se) {
				t.Fatalf("error = %v, want *SubmissionError", err)
			}
			if se.Status != tt.status {
				t.Errorf("status = %d, want %d", se.Status, tt.status)
			}
			if se.ErrorType != tt.errorType {
				t.Errorf("errorType = %q, want %q", se.ErrorType, tt.errorType)
			}
			if se.Transient != tt.transient {
				t.Errorf("transient = %v, want %v", se.Transient, tt.transient)
			}
		})
	}
}

func TestSubmitOrderUnreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	_, err := NewClient(url).SubmitOrder(context.Background(), signedCreation(t))
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if se.Status != 0 || !se.Transient || se.ErrorType != ErrorTypeTransport {
		t.Errorf("error = %+v, want transient transport failure", se)
	}
	if errors.Unwrap(se) == nil {
		t.Error("transport error should wrap the cause")
	}
}

func TestSubmitOrderUndecodableReply(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		io.WriteString(w, `{"uid": 42}`)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL).SubmitOrder(context.Background(), signedCreation(t))
	var se *SubmissionError
	if !errors.As(err, &se) {
		t.Fatalf("error = %v, want *SubmissionError", err)
	}
	if se.Status != http.StatusCreated || se.ErrorType != ErrorTypeInternal || se.Transient {
		t.Errorf("error = %+v, want non-transient internal error with status 201", se)
	}
	if errors.Unwrap(se) == nil {
		t.Error("decode error should wrap the cause")
	}
}

func TestSubmitOrderCanceledContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request should not reach the server")
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewClient(srv.URL).SubmitOrder(ctx, signedCreation(t))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("error = %v, want context.Canceled", err)
	}
}

func TestAppDataRoundTrip(t *testing.T) {
	stored := map[string]string{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodPut:
			var up AppDataUpload
			if err := json.NewDecoder(r.Body).Decode(&up); err != nil {
				t.Errorf("bad upload body: %v", err)
			}
			stored[r.URL.Path] = up.FullAppData
			w.WriteHeader(http.StatusCreated)
		case http.MethodGet:
			doc, ok := stored[r.URL.Path]
			if !ok {
				w.WriteHeader(http.StatusNotFound)
				json.NewEncoder(w).Encode(ErrorBody{ErrorType: ErrorTypeNotFound})
				return
			}
			json.NewEncoder(w).Encode(AppDataView{FullAppData: doc})
		}
	}))
	defer srv.Close()

	c := NewClient(srv.URL)
	hash := common.HexToHash("0xb48d38f93eaa084033fc5970bf96e559c33c4cdc07d889ab00b4d63f9590739d")

	if _, err := c.GetAppData(context.Background(), hash); err == nil {
		t.Error("missing document should fail")
	}
	if err := c.UploadAppData(context.Background(), hash, "{}"); err != nil {
		t.Fatalf("failed to upload: %v", err)
	}
	if _, ok := stored["/api/v1/app_data/"+hash.Hex()]; !ok {
		t.Errorf("upload path = %v", stored)
	}
	doc, err := c.GetAppData(context.Background(), hash)
	if err != nil {
		t.Fatalf("failed to fetch: %v", err)
	}
	if doc != "{}" {
		t.Errorf("document = %s, want {}", doc)
	}
}

func TestGetOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v1/orders/"+testUID {
			t.Errorf("path = %s", r.URL.Path)
		}
		json.NewEncoder(w).Encode(OrderView{
			Payload: order.Payload{SellAmount: "123456789012345678901234", Kind: order.KindSell},
			UID:     testUID,
			Status:  "open",
		})
	}))
	defer srv.Close()

	view, err := NewClient(srv.URL).GetOrder(context.Background(), testUID)
	if err != nil {
		t.Fatalf("failed to get order: %v", err)
	}
	if view.UID != testUID || view.Status != "open" || view.SellAmount != "123456789012345678901234" {
		t.Errorf("order = %+v", view)
	}
}

func TestExplorerURLUnset(t *testing.T) {
	if got := NewClient("http://localhost").ExplorerURL(testUID); got != "" {
		t.Errorf("explorer url = %q, want empty", got)
	}
}
