package watchlist

import (
	"net/http"
	"strings"

	"cryptosim/internal/httputil"

	"github.com/go-chi/chi/v5"
)

type Handler struct {
	store *Store
}

func NewHandler(store *Store) *Handler {
	return &Handler{store: store}
}

type addRequest struct {
	Ticker string `json:"ticker"`
}

func (h *Handler) List(w http.ResponseWriter, r *http.Request, userID string) {
	httputil.WriteJSON(w, http.StatusOK, h.store.List(userID))
}

func (h *Handler) Add(w http.ResponseWriter, r *http.Request, userID string) {
	var req addRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.Ticker) == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "ticker is required"})
		return
	}
	httputil.WriteJSON(w, http.StatusOK, h.store.Add(userID, req.Ticker))
}

func (h *Handler) Remove(w http.ResponseWriter, r *http.Request, userID string) {
	ticker := chi.URLParam(r, "ticker")
	httputil.WriteJSON(w, http.StatusOK, h.store.Remove(userID, ticker))
}
