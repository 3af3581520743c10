package api

import (
	"encoding/json"
	"errors"
	"math/big"
	"net/http"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/joonhyuk-dev/curio/pkg/market"
)

// Server exposes the engine over REST and WebSocket.
type Server struct {
	engine *market.Engine
	router *mux.Router
	hub    *Hub
	log    *zap.SugaredLogger
}

// NewServer wires the REST surface around an engine. Pass the hub that is
// also registered as the engine's event sink; a nil hub gets a fresh one.
func NewServer(engine *market.Engine, hub *Hub, logger *zap.Logger) *Server {
	if logger == nil {
		logger = zap.NewNop()
	}
	if hub == nil {
		hub = NewHub()
	}
	s := &Server{
		engine: engine,
		router: mux.NewRouter(),
		hub:    hub,
		log:    logger.Sugar().Named("api"),
	}
	s.setupRoutes()
	return s
}

// Hub returns the websocket hub so it can be wired as the engine's event
// sink.
func (s *Server) Hub() *Hub { return s.hub }

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api/v1").Subrouter()

	// Listing + lookup
	api.HandleFunc("/orders", s.handleSubmitOrder).Methods("POST")
	api.HandleFunc("/orders", s.handleListOrders).Methods("GET")
	api.HandleFunc("/orders/hash", s.handleOrderHash).Methods("POST")
	api.HandleFunc("/orders/remove", s.handleBatchRemove).Methods("POST")
	api.HandleFunc("/orders/fulfill", s.handleBatchFulfill).Methods("POST")
	api.HandleFunc("/orders/{hash}", s.handleGetOrder).Methods("GET")
	api.HandleFunc("/orders/{hash}/fulfill", s.handleFulfillOrder).Methods("POST")
	api.HandleFunc("/orders/{hash}/remove", s.handleRemoveOrder).Methods("POST")

	// Accounts
	api.HandleFunc("/accounts/{address}", s.handleGetAccount).Methods("GET")
	api.HandleFunc("/accounts/{address}/deposit", s.handleDeposit).Methods("POST")
	api.HandleFunc("/accounts/{address}/withdraw", s.handleWithdraw).Methods("POST")
	api.HandleFunc("/accounts/{address}/claim", s.handleClaim).Methods("POST")

	// Admin
	api.HandleFunc("/admin/pause", s.handlePause).Methods("POST")
	api.HandleFunc("/admin/whitelist", s.handleWhitelist).Methods("POST")

	// WebSocket + health
	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/health", s.handleHealth).Methods("GET")
}

// Start starts the API server
func (s *Server) Start(addr string) error {
	go s.hub.Run()

	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"http://localhost:3000", "http://localhost:3001"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	s.log.Infow("server_starting", "addr", addr)
	return http.ListenAndServe(addr, c.Handler(s.router))
}

// ==============================
// REST Handlers
// ==============================

func (s *Server) handleSubmitOrder(w http.ResponseWriter, r *http.Request) {
	var req SubmitOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, sig, err := req.toOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	hash, err := s.engine.AddOrder(r.Context(), order, sig)
	if err != nil {
		respondError(w, statusFor(err), "listing rejected", err.Error())
		return
	}
	respondJSON(w, orderInfo(hash, order))
}

// handleOrderHash previews the digest of unsigned order terms. Sellers use
// it to confirm what their wallet will sign before submitting.
func (s *Server) handleOrderHash(w http.ResponseWriter, r *http.Request) {
	var req OrderHashRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	order, err := req.toOrder()
	if err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	hash, err := s.engine.OrderHash(order)
	if err != nil {
		respondError(w, http.StatusBadRequest, "hash failed", err.Error())
		return
	}
	respondJSON(w, map[string]string{"hash": hash.Hex()})
}

func (s *Server) handleListOrders(w http.ResponseWriter, r *http.Request) {
	orders := s.engine.Orders()
	out := make([]OrderInfo, 0, len(orders))
	for hash, o := range orders {
		out = append(out, orderInfo(hash, o))
	}
	respondJSON(w, out)
}

func (s *Server) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	hash := common.HexToHash(mux.Vars(r)["hash"])
	order, ok := s.engine.GetOrder(hash)
	if !ok {
		respondError(w, http.StatusNotFound, "order not found", hash.Hex())
		return
	}
	respondJSON(w, orderInfo(hash, order))
}

func (s *Server) handleFulfillOrder(w http.ResponseWriter, r *http.Request) {
	hash := common.HexToHash(mux.Vars(r)["hash"])
	var req FulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request", "invalid payment amount")
		return
	}
	outcome, err := s.engine.FulfillOrder(r.Context(), common.HexToAddress(req.Taker), hash, payment)
	if err != nil {
		respondError(w, statusFor(err), "fulfillment rejected", err.Error())
		return
	}
	respondJSON(w, FulfillResponse{Hash: hash.Hex(), Outcome: outcome.String()})
}

func (s *Server) handleBatchFulfill(w http.ResponseWriter, r *http.Request) {
	var req BatchFulfillRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	payment, ok := new(big.Int).SetString(req.Payment, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request", "invalid payment amount")
		return
	}
	hashes := make([]common.Hash, len(req.Hashes))
	for i, h := range req.Hashes {
		hashes[i] = common.HexToHash(h)
	}
	results, err := s.engine.BatchFulfill(r.Context(), common.HexToAddress(req.Taker), hashes, payment)
	if err != nil {
		respondError(w, statusFor(err), "batch rejected", err.Error())
		return
	}
	respondJSON(w, batchResults(results))
}

func (s *Server) handleRemoveOrder(w http.ResponseWriter, r *http.Request) {
	hash := common.HexToHash(mux.Vars(r)["hash"])
	var req RemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := s.engine.RemoveOrder(r.Context(), common.HexToAddress(req.Caller), hash); err != nil {
		respondError(w, statusFor(err), "removal rejected", err.Error())
		return
	}
	respondJSON(w, map[string]string{"hash": hash.Hex(), "status": "removed"})
}

func (s *Server) handleBatchRemove(w http.ResponseWriter, r *http.Request) {
	var req BatchRemoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	hashes := make([]common.Hash, len(req.Hashes))
	for i, h := range req.Hashes {
		hashes[i] = common.HexToHash(h)
	}
	results, err := s.engine.BatchRemove(r.Context(), common.HexToAddress(req.Caller), hashes)
	if err != nil {
		respondError(w, statusFor(err), "batch rejected", err.Error())
		return
	}
	respondJSON(w, batchResults(results))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	addr := common.HexToAddress(mux.Vars(r)["address"])
	respondJSON(w, AccountInfo{
		Address:  addr.Hex(),
		Balance:  s.engine.BalanceOf(addr).String(),
		Proceeds: s.engine.ProceedsOf(addr).String(),
		Nonce:    s.engine.NonceOf(addr),
	})
}

func (s *Server) handleDeposit(w http.ResponseWriter, r *http.Request) {
	addr := common.HexToAddress(mux.Vars(r)["address"])
	var req DepositRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request", "invalid amount")
		return
	}
	if err := s.engine.Deposit(r.Context(), addr, amount); err != nil {
		respondError(w, statusFor(err), "deposit rejected", err.Error())
		return
	}
	respondJSON(w, AccountInfo{
		Address:  addr.Hex(),
		Balance:  s.engine.BalanceOf(addr).String(),
		Proceeds: s.engine.ProceedsOf(addr).String(),
		Nonce:    s.engine.NonceOf(addr),
	})
}

func (s *Server) handleWithdraw(w http.ResponseWriter, r *http.Request) {
	addr := common.HexToAddress(mux.Vars(r)["address"])
	var req WithdrawRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	amount, ok := new(big.Int).SetString(req.Amount, 10)
	if !ok {
		respondError(w, http.StatusBadRequest, "invalid request", "invalid amount")
		return
	}
	if err := s.engine.WithdrawDeposit(r.Context(), addr, amount); err != nil {
		respondError(w, statusFor(err), "withdrawal rejected", err.Error())
		return
	}
	respondJSON(w, map[string]string{"address": addr.Hex(), "amount": amount.String()})
}

func (s *Server) handleClaim(w http.ResponseWriter, r *http.Request) {
	addr := common.HexToAddress(mux.Vars(r)["address"])
	amount, err := s.engine.ClaimProceeds(r.Context(), addr)
	if err != nil {
		respondError(w, statusFor(err), "claim rejected", err.Error())
		return
	}
	respondJSON(w, ClaimResponse{Address: addr.Hex(), Amount: amount.String()})
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	var req PauseRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	if err := s.engine.SetPaused(common.HexToAddress(req.Caller), req.Paused); err != nil {
		respondError(w, statusFor(err), "pause rejected", err.Error())
		return
	}
	respondJSON(w, map[string]bool{"paused": req.Paused})
}

func (s *Server) handleWhitelist(w http.ResponseWriter, r *http.Request) {
	var req WhitelistRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid request", err.Error())
		return
	}
	err := s.engine.SetWhitelistStatus(common.HexToAddress(req.Caller), common.HexToAddress(req.Contract), req.Allowed)
	if err != nil {
		respondError(w, statusFor(err), "whitelist rejected", err.Error())
		return
	}
	respondJSON(w, map[string]interface{}{"contract": req.Contract, "allowed": req.Allowed})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{"status": "ok", "paused": s.engine.Paused()})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "err", err)
		return
	}
	client := &Client{
		hub:           s.hub,
		conn:          conn,
		send:          make(chan []byte, 256),
		id:            uuid.NewString(),
		subscriptions: make(map[string]bool),
	}
	s.hub.register <- client
	go client.writePump()
	go client.readPump()
}

// ==============================
// Helpers
// ==============================

func respondJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, error string, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(ErrorResponse{
		Error:   error,
		Message: message,
	})
}

// statusFor maps engine errors onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case errors.Is(err, market.ErrOrderNotFound):
		return http.StatusNotFound
	case errors.Is(err, market.ErrNotAdmin),
		errors.Is(err, market.ErrNotListingCreator),
		errors.Is(err, market.ErrInvalidTaker):
		return http.StatusForbidden
	case errors.Is(err, market.ErrPaused):
		return http.StatusServiceUnavailable
	case errors.Is(err, market.ErrReentrantCall):
		return http.StatusConflict
	case errors.Is(err, market.ErrAlreadyListed),
		errors.Is(err, market.ErrStatusAlreadySet):
		return http.StatusConflict
	case errors.Is(err, market.ErrWithdrawFailed):
		return http.StatusBadGateway
	default:
		return http.StatusBadRequest
	}
}
