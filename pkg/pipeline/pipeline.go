package pipeline

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/crypto"
	"github.com/uhyunpark/hookorder/pkg/hook"
	"github.com/uhyunpark/hookorder/pkg/order"
	"github.com/uhyunpark/hookorder/pkg/orderbook"
)

// Submitter delivers signed orders; *orderbook.Client implements it
type Submitter interface {
	UploadAppData(ctx context.Context, hash common.Hash, fullAppData string) error
	SubmitOrder(ctx context.Context, oc orderbook.OrderCreation) (orderbook.SubmissionResult, error)
}

// HookCall is a contract call to run before settlement
type HookCall struct {
	Target   common.Address
	Method   string
	Args     []interface{}
	GasLimit uint64
}

// Request is everything the caller decides. Order.AppData is filled in by
// the pipeline.
type Request struct {
	Hooks    []HookCall
	Document appdata.DocumentParams
	Order    order.Params
	Scheme   crypto.SigningScheme // eip712 when empty
}

// Result accumulates the output of each stage
type Result struct {
	Hooks      []hook.CallDescriptor
	AppData    appdata.Canonical
	Order      *order.Order
	Owner      common.Address
	Signature  crypto.Signature
	Submission orderbook.SubmissionResult
}

// Deps are the collaborators. Key material stays behind crypto.KeySigner.
type Deps struct {
	Encoder   *hook.Encoder
	Builder   *order.Builder
	Signer    *crypto.OrderSigner
	Key       crypto.KeySigner
	Submitter Submitter
	Logger    *zap.Logger

	// ExpectedOwner, when set, must equal Key.Address()
	ExpectedOwner common.Address

	// UploadAppData registers the document before posting the order
	UploadAppData bool
}

// Pipeline runs hook encoding, app-data hashing, order building, signing and
// submission strictly in that order. Any failure stops the run.
type Pipeline struct {
	deps   Deps
	logger *zap.SugaredLogger
}

func New(deps Deps) *Pipeline {
	if deps.Encoder == nil {
		deps.Encoder = hook.ERC20()
	}
	if deps.Builder == nil {
		deps.Builder = order.NewBuilder(nil)
	}
	if deps.Logger == nil {
		deps.Logger = zap.NewNop()
	}
	return &Pipeline{deps: deps, logger: deps.Logger.Sugar()}
}

// Run prepares and submits an order
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	res, err := p.Prepare(req)
	if err != nil {
		return nil, err
	}
	if err := p.Submit(ctx, res); err != nil {
		return res, err
	}
	return res, nil
}

// Prepare runs every stage except submission. Nothing leaves the process.
func (p *Pipeline) Prepare(req Request) (*Result, error) {
	res := &Result{}

	hooks, err := p.encodeHooks(req.Hooks)
	if err != nil {
		return nil, fail(StageHook, err)
	}
	res.Hooks = hooks

	docParams := req.Document
	docParams.PreHooks = append(append([]hook.CallDescriptor(nil), docParams.PreHooks...), hooks...)
	doc, err := appdata.Identify(appdata.ObjectValue(appdata.NewDocument(docParams)))
	if err != nil {
		return nil, fail(StageAppData, err)
	}
	res.AppData = doc
	p.logger.Infow("app_data_identified",
		"app_data_hex", doc.ID.Hex(),
		"cid", doc.ID.String(),
		"version", doc.ID.SchemaVersion,
	)

	params := req.Order
	params.AppData = doc.ID
	o, err := p.deps.Builder.Build(params)
	if err != nil {
		return nil, fail(StageOrder, err)
	}
	res.Order = o
	p.logger.Infow("order_built", "order", o.String())

	if !crypto.HasKey(p.deps.Key) {
		return nil, fail(StageSign, &crypto.SigningError{Field: "key", Err: crypto.ErrNoKey})
	}
	if p.deps.ExpectedOwner != (common.Address{}) && p.deps.Key.Address() != p.deps.ExpectedOwner {
		return nil, fail(StageSign, fmt.Errorf("%w: %s != %s", ErrWrongWallet, p.deps.Key.Address().Hex(), p.deps.ExpectedOwner.Hex()))
	}
	if p.deps.Signer == nil {
		return nil, fail(StageSign, &crypto.SigningError{Field: "domain", Err: fmt.Errorf("no order signer configured")})
	}

	scheme := req.Scheme
	if scheme == "" {
		scheme = crypto.SchemeEIP712
	}
	sig, err := p.deps.Signer.SignOrder(p.deps.Key, o, scheme)
	if err != nil {
		return nil, fail(StageSign, err)
	}
	res.Signature = sig
	res.Owner = p.deps.Key.Address()
	p.logger.Infow("order_signed", "owner", res.Owner.Hex(), "scheme", sig.Scheme)

	return res, nil
}

// Submit sends a prepared result to the order book
func (p *Pipeline) Submit(ctx context.Context, res *Result) error {
	if p.deps.Submitter == nil {
		return fail(StageSubmit, fmt.Errorf("no submitter configured"))
	}

	if p.deps.UploadAppData {
		if err := p.deps.Submitter.UploadAppData(ctx, res.AppData.ID.Hash, res.AppData.Text()); err != nil {
			return fail(StageSubmit, err)
		}
		p.logger.Infow("app_data_uploaded", "app_data_hex", res.AppData.ID.Hex())
	}

	oc := orderbook.NewOrderCreation(res.Order, res.Signature, res.Owner, res.AppData)
	sub, err := p.deps.Submitter.SubmitOrder(ctx, oc)
	if err != nil {
		return fail(StageSubmit, err)
	}
	res.Submission = sub
	p.logger.Infow("order_submitted", "uid", sub.UID, "explorer_url", sub.ExplorerURL)
	return nil
}

func (p *Pipeline) encodeHooks(calls []HookCall) ([]hook.CallDescriptor, error) {
	if len(calls) == 0 {
		return nil, ErrNoHooks
	}
	hooks := make([]hook.CallDescriptor, 0, len(calls))
	for _, c := range calls {
		h, err := p.deps.Encoder.Encode(c.Target, c.Method, c.GasLimit, c.Args...)
		if err != nil {
			return nil, err
		}
		p.logger.Infow("hook_encoded", "hook", h.String())
		hooks = append(hooks, h)
	}
	return hooks, nil
}
