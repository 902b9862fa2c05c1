package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/uhyunpark/hookorder/pkg/appdata"
	"github.com/uhyunpark/hookorder/pkg/crypto"
	"github.com/uhyunpark/hookorder/pkg/order"
	"github.com/uhyunpark/hookorder/pkg/orderbook"
	"github.com/uhyunpark/hookorder/pkg/storage"
	"github.com/uhyunpark/hookorder/pkg/util"
)

const maxBodyBytes = 1 << 20

// Config holds the service settings
type Config struct {
	ChainID        uint64
	MinValidity    time.Duration // orders must stay valid at least this long after arrival
	AllowedOrigins []string
}

// Server is a single-node order book: it checks, stores and announces orders
// but never matches or settles them.
type Server struct {
	store       Store
	signer      *crypto.OrderSigner
	chainID     uint64
	minValidity time.Duration
	origins     []string
	clock       util.Clock
	router      *mux.Router
	hub         *Hub
	logger      *zap.SugaredLogger
}

func NewServer(store Store, cfg Config, logger *zap.Logger, clock util.Clock) *Server {
	if clock == nil {
		clock = util.RealClock{}
	}
	sugar := logger.Sugar()
	s := &Server{
		store:       store,
		signer:      crypto.NewOrderSigner(crypto.DomainFor(cfg.ChainID)),
		chainID:     cfg.ChainID,
		minValidity: cfg.MinValidity,
		origins:     cfg.AllowedOrigins,
		clock:       clock,
		router:      mux.NewRouter(),
		hub:         NewHub(sugar),
		logger:      sugar,
	}
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders/{uid}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/account/{owner}/orders", s.handleGetOwnerOrders).Methods("GET")

	api.HandleFunc("/app_data/{hash}", s.handlePutAppData).Methods("PUT")
	api.HandleFunc("/app_data/{hash}", s.handleGetAppData).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Handler returns the CORS-wrapped router
func (s *Server) Handler() http.Handler {
	origins := s.origins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c := cors.New(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// Start serves on addr until ctx is canceled
func (s *Server) Start(ctx context.Context, addr string) error {
	go s.hub.Run(ctx)

	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("api_listening", "addr", addr, "chain_id", s.chainID)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodyBytes))
	if err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, "failed to read body")
		return
	}

	var req orderbook.OrderCreation
	if err := json.Unmarshal(body, &req); err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, err.Error())
		return
	}

	switch req.SigningScheme {
	case crypto.SchemeEIP712, crypto.SchemeEthSign:
	default:
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidSigningScheme,
			fmt.Sprintf("unsupported signing scheme %q", req.SigningScheme))
		return
	}

	fullAppData, hash, status, errType, err := s.resolveAppData(req.AppData, req.AppDataHash)
	if err != nil {
		respondError(w, status, errType, err.Error())
		return
	}

	o, err := req.Payload.ToOrder(hash)
	if err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, err.Error())
		return
	}

	now := s.clock.Now()
	if int64(o.ValidTo) < now.Add(s.minValidity).Unix() {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInsufficientValidTo,
			fmt.Sprintf("validTo %d is too soon", o.ValidTo))
		return
	}

	sig, err := crypto.ParseSignature(req.SigningScheme, req.Signature)
	if err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidSignature, err.Error())
		return
	}
	owner, err := s.signer.RecoverOrderOwner(o, sig)
	if err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidSignature, err.Error())
		return
	}
	if req.From != "" && (!common.IsHexAddress(req.From) || common.HexToAddress(req.From) != owner) {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeWrongOwner,
			fmt.Sprintf("signature recovers %s, not %s", owner.Hex(), req.From))
		return
	}

	digest, err := s.signer.HashOrder(o)
	if err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}
	uid := hexutil.Encode(crypto.OrderUID(digest, owner, o.ValidTo))

	if _, err := s.store.SaveAppData(hash, fullAppData); err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}

	view := &orderbook.OrderView{
		Payload:       order.FromOrder(o),
		UID:           uid,
		Owner:         owner.Hex(),
		AppData:       hash.Hex(),
		FullAppData:   fullAppData,
		SigningScheme: sig.Scheme,
		Signature:     sig.Hex(),
		Status:        statusOpen,
		CreationDate:  now.UTC().Format(time.RFC3339),
	}
	if err := s.store.InsertOrder(view); err != nil {
		if errors.Is(err, storage.ErrDuplicateOrder) {
			respondError(w, http.StatusBadRequest, orderbook.ErrorTypeDuplicatedOrder, "order already exists")
			return
		}
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}

	hooks := 0
	if doc, err := appdata.ParseObject([]byte(fullAppData)); err == nil {
		if pre, err := appdata.PreHooks(doc); err == nil {
			hooks = len(pre)
		}
	}

	s.logger.Infow("order_accepted",
		"uid", uid,
		"owner", owner.Hex(),
		"sell_token", o.SellToken.Hex(),
		"sell_amount", o.SellAmount.String(),
		"pre_hooks", hooks,
	)

	event := OrderEvent{
		Type:       "order",
		UID:        uid,
		Owner:      owner.Hex(),
		SellToken:  o.SellToken.Hex(),
		BuyToken:   o.BuyToken.Hex(),
		SellAmount: o.SellAmount.String(),
		BuyAmount:  o.BuyAmount.String(),
		ValidTo:    o.ValidTo,
		PreHooks:   hooks,
		Timestamp:  now.UnixMilli(),
	}
	s.hub.BroadcastToChannel(channelOrders, event)
	s.hub.BroadcastToChannel(ownerChannel(owner.Hex()), event)

	respondJSONStatus(w, http.StatusCreated, uid)
}

// resolveAppData accepts either the full document or a bare 32-byte hash of
// one uploaded earlier, and checks it against the declared hash
func (s *Server) resolveAppData(appData, declared string) (string, common.Hash, int, string, error) {
	if appData == "" {
		return "", common.Hash{}, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData, errors.New("missing appData")
	}

	var full string
	var hash common.Hash
	if raw, err := hexutil.Decode(appData); err == nil && len(raw) == common.HashLength {
		hash = common.BytesToHash(raw)
		doc, found, err := s.store.LoadAppData(hash)
		if err != nil {
			return "", hash, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err
		}
		if !found {
			return "", hash, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData,
				fmt.Errorf("unknown app data %s", hash.Hex())
		}
		full = doc
	} else {
		full = appData
		hash = appdata.Keccak256([]byte(full))
	}

	if _, err := appdata.ParseObject([]byte(full)); err != nil {
		return "", hash, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData, err
	}

	if declared != "" {
		want, err := hexutil.Decode(declared)
		if err != nil || len(want) != common.HashLength || common.BytesToHash(want) != hash {
			return "", hash, http.StatusBadRequest, orderbook.ErrorTypeAppDataHashMismatch,
				fmt.Errorf("appDataHash %s does not match document hash %s", declared, hash.Hex())
		}
	}
	return full, hash, 0, "", nil
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	uid := mux.Vars(r)["uid"]
	if _, _, _, err := crypto.ParseOrderUID(uid); err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, err.Error())
		return
	}

	view, err := s.store.LoadOrder(uid)
	if err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}
	if view == nil {
		respondError(w, http.StatusNotFound, orderbook.ErrorTypeNotFound, "order not found")
		return
	}

	s.withStatus(view)
	respondJSON(w, view)
}

func (s *Server) handleGetOwnerOrders(w http.ResponseWriter, r *http.Request) {
	owner := mux.Vars(r)["owner"]
	if !common.IsHexAddress(owner) {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, "invalid owner address")
		return
	}

	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidOrder, "invalid limit")
			return
		}
		limit = n
	}

	views, err := s.store.LoadOwnerOrders(common.HexToAddress(owner), limit)
	if err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}
	if views == nil {
		views = []*orderbook.OrderView{}
	}
	for _, v := range views {
		s.withStatus(v)
	}
	respondJSON(w, views)
}

func (s *Server) handlePutAppData(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashVar(w, r)
	if !ok {
		return
	}

	var req orderbook.AppDataUpload
	if err := json.NewDecoder(io.LimitReader(r.Body, maxBodyBytes)).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData, err.Error())
		return
	}
	if _, err := appdata.ParseObject([]byte(req.FullAppData)); err != nil {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData, err.Error())
		return
	}
	if got := appdata.Keccak256([]byte(req.FullAppData)); got != hash {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeAppDataHashMismatch,
			fmt.Sprintf("document hashes to %s", got.Hex()))
		return
	}

	created, err := s.store.SaveAppData(hash, req.FullAppData)
	if err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
		s.logger.Infow("app_data_stored", "hash", hash.Hex(), "bytes", len(req.FullAppData))
	}
	respondJSONStatus(w, status, hash.Hex())
}

func (s *Server) handleGetAppData(w http.ResponseWriter, r *http.Request) {
	hash, ok := parseHashVar(w, r)
	if !ok {
		return
	}

	doc, found, err := s.store.LoadAppData(hash)
	if err != nil {
		respondError(w, http.StatusInternalServerError, orderbook.ErrorTypeInternal, err.Error())
		return
	}
	if !found {
		respondError(w, http.StatusNotFound, orderbook.ErrorTypeNotFound, "app data not found")
		return
	}
	respondJSON(w, orderbook.AppDataView{FullAppData: doc})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, HealthResponse{Status: "ok", ChainID: s.chainID})
}

// withStatus marks orders past validTo as expired
func (s *Server) withStatus(v *orderbook.OrderView) {
	if int64(v.ValidTo) < s.clock.Now().Unix() {
		v.Status = statusExpired
	}
}

// ==============================
// Helper Functions
// ==============================

func parseHashVar(w http.ResponseWriter, r *http.Request) (common.Hash, bool) {
	raw, err := hexutil.Decode(mux.Vars(r)["hash"])
	if err != nil || len(raw) != common.HashLength {
		respondError(w, http.StatusBadRequest, orderbook.ErrorTypeInvalidAppData, "app data hash must be 32 bytes of hex")
		return common.Hash{}, false
	}
	return common.BytesToHash(raw), true
}

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, errorType string, description string) {
	respondJSONStatus(w, status, orderbook.ErrorBody{
		ErrorType:   errorType,
		Description: description,
	})
}
