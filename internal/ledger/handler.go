package ledger

import (
	"errors"
	"net/http"
	"strings"

	"cryptosim/internal/auth"
	"cryptosim/internal/engine"
	"cryptosim/internal/httputil"

	"github.com/shopspring/decimal"
)

type Handler struct {
	svc   *Service
	users *auth.Service
}

func NewHandler(svc *Service, users *auth.Service) *Handler {
	return &Handler{svc: svc, users: users}
}

type requestDepositInput struct {
	Amount string `json:"amount"`
}

type requestWithdrawalInput struct {
	Amount         string `json:"amount"`
	DestinationRef string `json:"destination_ref"`
}

func (h *Handler) userName(userID string) string {
	u, err := h.users.GetUser(userID)
	if err != nil {
		return ""
	}
	return u.Name
}

func (h *Handler) RequestDeposit(w http.ResponseWriter, r *http.Request, userID string) {
	var req requestDepositInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	dep, err := h.svc.RequestDeposit(userID, h.userName(userID), amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, dep)
}

func (h *Handler) RequestWithdrawal(w http.ResponseWriter, r *http.Request, userID string) {
	var req requestWithdrawalInput
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	amount, err := decimal.NewFromString(strings.TrimSpace(req.Amount))
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "invalid amount"})
		return
	}
	wd, err := h.svc.RequestWithdrawal(userID, h.userName(userID), req.DestinationRef, amount)
	if err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, wd)
}

func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request, userID string) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.ListDeposits(userID))
}

func (h *Handler) Withdrawals(w http.ResponseWriter, r *http.Request, userID string) {
	httputil.WriteJSON(w, http.StatusOK, h.svc.ListWithdrawals(userID))
}

// PayoutDestination exposes the admin-configured deposit reference users
// send funds to.
func (h *Handler) PayoutDestination(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payout_destination_id": h.svc.PayoutRef()})
}

// WriteResolveError maps workflow errors to HTTP statuses for the admin
// resolution endpoints.
func WriteResolveError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrTxNotFound):
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
	case errors.Is(err, engine.ErrInsufficientBalance), errors.Is(err, engine.ErrInvalidAmount):
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
	default:
		httputil.WriteJSON(w, http.StatusInternalServerError, httputil.ErrorResponse{Error: err.Error()})
	}
}
