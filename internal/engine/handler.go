package engine

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"cryptosim/internal/httputil"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/model"
	"cryptosim/internal/types"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
)

// Handler is the trading surface: order placement, position closing and the
// read queries the UI renders (balance, positions with unrealized P/L, order
// history).
type Handler struct {
	engine      *Engine
	market      *marketdata.Store
	maxQuoteAge time.Duration
}

func NewHandler(engine *Engine, market *marketdata.Store, maxQuoteAge time.Duration) *Handler {
	if maxQuoteAge <= 0 {
		maxQuoteAge = 3 * time.Second
	}
	return &Handler{engine: engine, market: market, maxQuoteAge: maxQuoteAge}
}

type placeOrderRequest struct {
	Ticker string `json:"ticker"`
	Side   string `json:"side"`
	Amount string `json:"amount"`
	Price  string `json:"price,omitempty"`
}

type closePositionRequest struct {
	Price string `json:"price,omitempty"`
}

type positionView struct {
	model.Position
	CurrentPrice decimal.Decimal `json:"current_price"`
	PL           decimal.Decimal `json:"pl"`
	PLPercent    decimal.Decimal `json:"pl_percent"`
}

// marketPrice resolves the fill price for a market order from the snapshot
// store. A stale or empty snapshot refuses the order instead of silently
// filling at an old price.
func (h *Handler) marketPrice(ticker string) (decimal.Decimal, error) {
	if !h.market.Fresh(h.maxQuoteAge, time.Now().UTC()) {
		return decimal.Zero, fmt.Errorf("%w: market snapshot is stale, try again", marketdata.ErrFeedUnavailable)
	}
	t, ok := h.market.Quote(ticker)
	if !ok || t.Price.Sign() <= 0 {
		return decimal.Zero, fmt.Errorf("%w: no quote for %s", marketdata.ErrFeedUnavailable, ticker)
	}
	return t.Price, nil
}

func (h *Handler) PlaceOrder(w http.ResponseWriter, r *http.Request, userID string) {
	var req placeOrderRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	ticker := strings.ToUpper(strings.TrimSpace(req.Ticker))

	var price decimal.Decimal
	if strings.TrimSpace(req.Price) == "" {
		p, err := h.marketPrice(ticker)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		price = p
	} else {
		p, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
			return
		}
		price = p
	}

	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}

	result, err := h.engine.PlaceOrder(PlaceOrderRequest{
		UserID: userID,
		Ticker: ticker,
		Side:   types.OrderSide(req.Side),
		Amount: amount,
		Price:  price,
	})
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) ClosePosition(w http.ResponseWriter, r *http.Request, userID string) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))

	var req closePositionRequest
	if r.ContentLength > 0 {
		if err := httputil.ReadJSON(r, &req); err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
			return
		}
	}

	var price decimal.Decimal
	if strings.TrimSpace(req.Price) == "" {
		p, err := h.marketPrice(ticker)
		if err != nil {
			writeEngineError(w, err)
			return
		}
		price = p
	} else {
		p, err := decimal.NewFromString(strings.TrimSpace(req.Price))
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid price"})
			return
		}
		price = p
	}

	result, err := h.engine.ClosePosition(userID, ticker, price)
	if err != nil {
		writeEngineError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, result)
}

func (h *Handler) Balance(w http.ResponseWriter, r *http.Request, userID string) {
	httputil.WriteJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": h.engine.Balances().Get(userID)})
}

func (h *Handler) Orders(w http.ResponseWriter, r *http.Request, userID string) {
	httputil.WriteJSON(w, http.StatusOK, h.engine.Orders().List(userID))
}

// Positions returns the open positions with unrealized P/L computed against
// the last-known snapshot. Missing quotes price at zero rather than failing
// the whole view.
func (h *Handler) Positions(w http.ResponseWriter, r *http.Request, userID string) {
	positions := h.engine.Ledger().List(userID)
	out := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		var current decimal.Decimal
		if t, ok := h.market.Quote(pos.Ticker); ok {
			current = t.Price
		}
		out = append(out, positionView{
			Position:     pos,
			CurrentPrice: current,
			PL:           UnrealizedPL(pos, current),
			PLPercent:    UnrealizedPLPercent(pos, current),
		})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func writeEngineError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrInvalidAmount),
		errors.Is(err, ErrInsufficientBalance),
		errors.Is(err, ErrNoPosition),
		errors.Is(err, ErrOversizedSell):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, marketdata.ErrFeedUnavailable):
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}
