package api

import (
	"github.com/ethereum/go-ethereum/common"

	"github.com/uhyunpark/hookorder/pkg/orderbook"
)

// Store is the persistence the order-book service needs
type Store interface {
	InsertOrder(o *orderbook.OrderView) error
	LoadOrder(uid string) (*orderbook.OrderView, error)
	LoadOwnerOrders(owner common.Address, limit int) ([]*orderbook.OrderView, error)
	SaveAppData(hash common.Hash, fullAppData string) (bool, error)
	LoadAppData(hash common.Hash) (string, bool, error)
}

// ==============================
// WebSocket Message Types
// ==============================

// WSSubscribeRequest is sent by clients: {"op":"subscribe","channels":["orders"]}
type WSSubscribeRequest struct {
	Op       string   `json:"op"`       // "subscribe" or "unsubscribe"
	Channels []string `json:"channels"` // "orders" or "orders:<owner>"
}

// OrderEvent is pushed when an order is accepted
type OrderEvent struct {
	Type       string `json:"type"` // "order"
	UID        string `json:"uid"`
	Owner      string `json:"owner"`
	SellToken  string `json:"sellToken"`
	BuyToken   string `json:"buyToken"`
	SellAmount string `json:"sellAmount"`
	BuyAmount  string `json:"buyAmount"`
	ValidTo    uint32 `json:"validTo"`
	PreHooks   int    `json:"preHooks"`  // Number of pre-settlement hooks in the app data
	Timestamp  int64  `json:"timestamp"` // Unix milliseconds
}

// HealthResponse is returned by /health
type HealthResponse struct {
	Status  string `json:"status"`
	ChainID uint64 `json:"chainId"`
}

const (
	channelOrders = "orders"

	statusOpen    = "open"
	statusExpired = "expired"
)

func ownerChannel(owner string) string {
	return channelOrders + ":" + owner
}
