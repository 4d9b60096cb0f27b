package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/playverse/walletops/internal/models"
	"github.com/playverse/walletops/internal/service"
	"github.com/playverse/walletops/internal/store"
)

var (
	httpRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_http_requests_total",
		Help: "Total HTTP requests processed, labeled by status code",
	}, []string{"method", "endpoint", "status"})

	httpRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "wallet_http_request_duration_seconds",
		Help:    "Latency distribution of HTTP requests",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
	}, []string{"method", "endpoint"})

	walletOpsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "wallet_operations_total",
		Help: "Wallet operations by kind and result",
	}, []string{"kind", "result"})
)

type Handler struct {
	wallet *service.WalletService
	auth   *service.AuthService
	logger *zap.Logger
}

func NewHandler(wallet *service.WalletService, auth *service.AuthService, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{wallet: wallet, auth: auth, logger: logger}
}

// Register mounts all API routes on the router.
func (h *Handler) Register(r *mux.Router) {
	api := r.PathPrefix("/api/v1").Subrouter()
	api.HandleFunc("/players", h.RegisterPlayerHandler).Methods("POST")
	api.HandleFunc("/sessions", h.LoginHandler).Methods("POST")

	player := api.PathPrefix("/players/{id}").Subrouter()
	player.Use(h.Authenticate)
	player.HandleFunc("/balance", h.BalanceHandler).Methods("GET")
	player.HandleFunc("/transactions", h.HistoryHandler).Methods("GET")
	player.HandleFunc("/audit", h.AuditHandler).Methods("GET")
	player.HandleFunc("/deposits", h.DepositHandler).Methods("POST")
	player.HandleFunc("/withdrawals", h.WithdrawHandler).Methods("POST")
	player.HandleFunc("/logout", h.LogoutHandler).Methods("POST")
}

type sessionRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type operationRequest struct {
	Amount decimal.Decimal `json:"amount"`
}

type outcomeResponse struct {
	Applied  bool   `json:"applied"`
	Replayed bool   `json:"replayed"`
	Kind     string `json:"kind"`
	Amount   string `json:"amount"`
	Balance  string `json:"balance"`
	Reason   string `json:"reason,omitempty"`
}

func (h *Handler) HealthCheckHandler(w http.ResponseWriter, r *http.Request) {
	h.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"}, r.Method, "/health")
}

func (h *Handler) RegisterPlayerHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/players"
	var in service.RegistrationInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, endpoint)
		return
	}

	p, err := h.auth.Register(r.Context(), in)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrMissingFields):
			h.respondError(w, http.StatusUnprocessableEntity, "Missing required fields", r.Method, endpoint)
		case errors.Is(err, service.ErrPlayerExists):
			h.respondError(w, http.StatusConflict, "Login already taken", r.Method, endpoint)
		default:
			h.internalError(w, err, r.Method, endpoint)
		}
		return
	}
	h.respondJSON(w, http.StatusCreated, p, r.Method, endpoint)
}

func (h *Handler) LoginHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/sessions"
	var in sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, endpoint)
		return
	}

	token, p, err := h.auth.Login(r.Context(), in.Login, in.Password)
	if err != nil {
		if errors.Is(err, service.ErrInvalidCredentials) {
			h.respondError(w, http.StatusUnauthorized, "Invalid login or password", r.Method, endpoint)
			return
		}
		h.internalError(w, err, r.Method, endpoint)
		return
	}

	h.respondJSON(w, http.StatusOK, map[string]interface{}{
		"token":     token,
		"player_id": p.ID,
	}, r.Method, endpoint)
}

func (h *Handler) LogoutHandler(w http.ResponseWriter, r *http.Request) {
	h.auth.Logout(r.Context(), mux.Vars(r)["id"])
	h.respondJSON(w, http.StatusNoContent, nil, r.Method, "/players/{id}/logout")
}

func (h *Handler) DepositHandler(w http.ResponseWriter, r *http.Request) {
	h.operation(w, r, models.KindDeposit, "/players/{id}/deposits")
}

func (h *Handler) WithdrawHandler(w http.ResponseWriter, r *http.Request) {
	h.operation(w, r, models.KindWithdrawal, "/players/{id}/withdrawals")
}

func (h *Handler) operation(w http.ResponseWriter, r *http.Request, kind models.TxKind, endpoint string) {
	timer := prometheus.NewTimer(httpRequestDuration.WithLabelValues(r.Method, endpoint))
	defer timer.ObserveDuration()

	playerID := mux.Vars(r)["id"]

	requestID := r.Header.Get("Idempotency-Key")
	if requestID == "" {
		h.respondError(w, http.StatusBadRequest, "Missing Idempotency-Key header", r.Method, endpoint)
		return
	}

	var in operationRequest
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		h.respondError(w, http.StatusBadRequest, "Malformed JSON body", r.Method, endpoint)
		return
	}

	var (
		out      *models.Outcome
		replayed bool
		err      error
	)
	if kind == models.KindDeposit {
		out, replayed, err = h.wallet.Deposit(r.Context(), playerID, requestID, in.Amount)
	} else {
		out, replayed, err = h.wallet.Withdraw(r.Context(), playerID, requestID, in.Amount)
	}

	if err != nil && out == nil {
		switch {
		case errors.Is(err, service.ErrInvalidAmount):
			h.respondError(w, http.StatusUnprocessableEntity, "Positive amount required", r.Method, endpoint)
		case errors.Is(err, service.ErrInvalidRequestID):
			h.respondError(w, http.StatusUnprocessableEntity, "Invalid Idempotency-Key", r.Method, endpoint)
		case errors.Is(err, service.ErrAccountNotFound):
			h.respondError(w, http.StatusNotFound, "Account not found", r.Method, endpoint)
		case errors.Is(err, store.ErrRequestInProgress):
			h.respondError(w, http.StatusConflict, "Request processing in progress", r.Method, endpoint)
		default:
			h.internalError(w, err, r.Method, endpoint)
		}
		return
	}

	// Fixed two-decimal rendering; decimal's String() trims trailing zeros.
	resp := outcomeResponse{
		Applied:  out.Applied,
		Replayed: replayed,
		Kind:     string(out.Kind),
		Amount:   out.Amount.StringFixed(2),
		Balance:  out.ResultingBalance.StringFixed(2),
		Reason:   out.Reason,
	}

	result := "applied"
	status := http.StatusCreated
	switch {
	case replayed:
		result = "replayed"
		status = http.StatusOK
		if !out.Applied {
			status = http.StatusUnprocessableEntity
		}
	case !out.Applied:
		result = "rejected"
		status = http.StatusUnprocessableEntity
	}
	walletOpsTotal.WithLabelValues(string(kind), result).Inc()
	h.respondJSON(w, status, resp, r.Method, endpoint)
}

func (h *Handler) BalanceHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/players/{id}/balance"
	playerID := mux.Vars(r)["id"]

	balance, err := h.wallet.Balance(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Account not found", r.Method, endpoint)
			return
		}
		h.internalError(w, err, r.Method, endpoint)
		return
	}
	h.respondJSON(w, http.StatusOK, map[string]string{
		"player_id": playerID,
		"balance":   balance.StringFixed(2),
	}, r.Method, endpoint)
}

func (h *Handler) HistoryHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/players/{id}/transactions"
	playerID := mux.Vars(r)["id"]

	records, err := h.wallet.History(r.Context(), playerID)
	if err != nil {
		if errors.Is(err, service.ErrAccountNotFound) {
			h.respondError(w, http.StatusNotFound, "Account not found", r.Method, endpoint)
			return
		}
		h.internalError(w, err, r.Method, endpoint)
		return
	}
	if records == nil {
		records = []models.TransactionRecord{}
	}
	h.respondJSON(w, http.StatusOK, records, r.Method, endpoint)
}

func (h *Handler) AuditHandler(w http.ResponseWriter, r *http.Request) {
	const endpoint = "/players/{id}/audit"
	playerID := mux.Vars(r)["id"]

	events, err := h.auth.AuditTrail(r.Context(), playerID)
	if err != nil {
		h.internalError(w, err, r.Method, endpoint)
		return
	}
	if events == nil {
		events = []models.AuditEvent{}
	}
	h.respondJSON(w, http.StatusOK, events, r.Method, endpoint)
}

func (h *Handler) internalError(w http.ResponseWriter, err error, method, endpoint string) {
	h.logger.Error("request failed",
		zap.String("method", method),
		zap.String("endpoint", endpoint),
		zap.Error(err))
	h.respondError(w, http.StatusInternalServerError, "Internal Server Error", method, endpoint)
}

func (h *Handler) respondError(w http.ResponseWriter, code int, message, method, endpoint string) {
	h.respondJSON(w, code, map[string]string{"error": message}, method, endpoint)
}

func (h *Handler) respondJSON(w http.ResponseWriter, code int, payload interface{}, method, endpoint string) {
	httpRequestsTotal.WithLabelValues(method, endpoint, strconv.Itoa(code)).Inc()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if payload != nil {
		json.NewEncoder(w).Encode(payload)
	}
}
