package marketdata

import (
	"net/http"
	"strings"

	"cryptosim/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store *Store
	WS    *StreamWS
}

func NewHandler(store *Store, ws *StreamWS) *Handler {
	return &Handler{store: store, WS: ws}
}

// Tickers returns the last-known snapshot for the whole universe.
func (h *Handler) Tickers(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.store.All())
}

// Ticker returns the last-known record for one ticker.
func (h *Handler) Ticker(w http.ResponseWriter, r *http.Request) {
	ticker := strings.ToUpper(strings.TrimSpace(chi.URLParam(r, "ticker")))
	t, ok := h.store.Quote(ticker)
	if !ok {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: "unknown ticker"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, t)
}
