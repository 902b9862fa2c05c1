package orderbook

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/crypto"
	"github.com/uhyunpark/hookorder/pkg/order"
)

// Error types returned in {errorType, description} rejection bodies
const (
	ErrorTypeInvalidOrder         = "InvalidOrder"
	ErrorTypeInvalidAppData       = "InvalidAppData"
	ErrorTypeAppDataHashMismatch  = "AppDataHashMismatch"
	ErrorTypeInvalidSignature     = "InvalidSignature"
	ErrorTypeWrongOwner           = "WrongOwner"
	ErrorTypeInsufficientValidTo  = "InsufficientValidTo"
	ErrorTypeInvalidSigningScheme = "InvalidSigningScheme"
	ErrorTypeDuplicatedOrder      = "DuplicatedOrder"
	ErrorTypeNotFound             = "NotFound"
	ErrorTypeInternal             = "InternalServerError"
	ErrorTypeTransport            = "TransportError"
)

// OrderCreation is the POST /api/v1/orders body. AppData carries the full
// canonical document; AppDataHash the keccak-256 the order was signed over.
type OrderCreation struct {
	order.Payload
	SigningScheme crypto.SigningScheme `json:"signingScheme"`
	Signature     string               `json:"signature"`
	From          string               `json:"from"`
	AppData       string               `json:"appData"`
	AppDataHash   string               `json:"appDataHash"`
}

// NewOrderCreation assembles the submission body for a signed order
func NewOrderCreation(o *order.Order, sig crypto.Signature, from common.Address, doc appdata.Canonical) OrderCreation {
	return OrderCreation{
		Payload:       order.FromOrder(o),
		SigningScheme: sig.Scheme,
		Signature:     sig.Hex(),
		From:          from.Hex(),
		AppData:       doc.Text(),
		AppDataHash:   doc.ID.Hex(),
	}
}

// ErrorBody is the order book's rejection shape
type ErrorBody struct {
	ErrorType   string `json:"errorType"`
	Description string `json:"description"`
}

// AppDataUpload is the PUT /api/v1/app_data/{hash} body
type AppDataUpload struct {
	FullAppData string `json:"fullAppData"`
}

// AppDataView is returned by GET /api/v1/app_data/{hash}
type AppDataView struct {
	FullAppData string `json:"fullAppData"`
}

// OrderView is an accepted order as the order book reports it
type OrderView struct {
	order.Payload
	UID           string               `json:"uid"`
	Owner         string               `json:"owner"`
	AppData       string               `json:"appData"`
	FullAppData   string               `json:"fullAppData,omitempty"`
	SigningScheme crypto.SigningScheme `json:"signingScheme"`
	Signature     string               `json:"signature"`
	Status        string               `json:"status"`
	CreationDate  string               `json:"creationDate"`
}

// SubmissionResult identifies an accepted order
type SubmissionResult struct {
	UID         string
	ExplorerURL string
}
