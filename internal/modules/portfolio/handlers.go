package portfolio

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"stockfolio/internal/auth"
	"stockfolio/internal/domain"
	"stockfolio/internal/modules/ledger"
)

// Handlers contains HTTP handlers for the portfolio API
type Handlers struct {
	service *Service
	log     zerolog.Logger
}

// NewHandlers creates a new portfolio handlers instance
func NewHandlers(service *Service, log zerolog.Logger) *Handlers {
	return &Handlers{
		service: service,
		log:     log.With().Str("handler", "portfolio").Logger(),
	}
}

type tradeRequest struct {
	Symbol   string          `json:"symbol"`
	Quantity decimal.Decimal `json:"quantity"`
	Price    decimal.Decimal `json:"price,omitempty"`
}

// HandleBuy records a buy at the caller-supplied fill price
// POST /api/portfolio/buy
func (h *Handlers) HandleBuy(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.service.Buy(r.Context(), userID, req.Symbol, req.Quantity, req.Price)
	if err != nil {
		h.writeDomainError(w, err, "Buy failed")
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// HandleSell records a sell at the current market price
// POST /api/portfolio/sell
func (h *Handlers) HandleSell(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	var req tradeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	txn, err := h.service.Sell(r.Context(), userID, req.Symbol, req.Quantity)
	if err != nil {
		h.writeDomainError(w, err, "Sell failed")
		return
	}

	writeJSON(w, http.StatusCreated, txn)
}

// HandleGetValuation returns the current portfolio valuation
// GET /api/portfolio/valuation
func (h *Handlers) HandleGetValuation(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	v, err := h.service.GetValuation(r.Context(), userID)
	if err != nil {
		h.writeDomainError(w, err, "Valuation failed")
		return
	}

	writeJSON(w, http.StatusOK, v)
}

// HandleGetTransactions returns the portfolio's ledger
// GET /api/portfolio/transactions
func (h *Handlers) HandleGetTransactions(w http.ResponseWriter, r *http.Request) {
	userID, ok := auth.UserID(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing identity")
		return
	}

	txns, err := h.service.GetTransactions(userID)
	if err != nil {
		h.writeDomainError(w, err, "Transaction listing failed")
		return
	}

	if txns == nil {
		txns = []domain.Transaction{}
	}

	writeJSON(w, http.StatusOK, txns)
}

func (h *Handlers) writeDomainError(w http.ResponseWriter, err error, msg string) {
	status := statusFromErr(err)
	if status >= http.StatusInternalServerError {
		h.log.Error().Err(err).Msg(msg)
	} else {
		h.log.Debug().Err(err).Msg(msg)
	}
	writeError(w, status, err.Error())
}

func statusFromErr(err error) int {
	switch {
	case errors.Is(err, domain.ErrInvalidQuantity),
		errors.Is(err, domain.ErrInvalidPrice),
		errors.Is(err, domain.ErrInvalidSymbol):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientHoldings):
		return http.StatusConflict
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrPriceUnavailable),
		errors.Is(err, domain.ErrRateLimited),
		errors.Is(err, ledger.ErrLedgerWrite):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data) // Ignore encode error - already committed response
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
