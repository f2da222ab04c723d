package admin

import (
	"net/http"
	"strings"

	"cryptosim/internal/auth"
	"cryptosim/internal/engine"
	"cryptosim/internal/httputil"
	"cryptosim/internal/ledger"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/model"
	"cryptosim/internal/types"
	"cryptosim/internal/watchlist"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Handler is the admin surface: user management, direct balance overrides,
// deposit/withdrawal resolution and the payout destination setting. Every
// route behind it requires an admin-role session.
type Handler struct {
	users     *auth.Service
	engine    *engine.Engine
	workflow  *ledger.Service
	market    *marketdata.Store
	watchlist *watchlist.Store
	log       *zap.Logger
}

func NewHandler(users *auth.Service, eng *engine.Engine, workflow *ledger.Service, market *marketdata.Store, wl *watchlist.Store, log *zap.Logger) *Handler {
	if log == nil {
		log = zap.NewNop()
	}
	return &Handler{users: users, engine: eng, workflow: workflow, market: market, watchlist: wl, log: log}
}

type userView struct {
	auth.User
	Balance decimal.Decimal `json:"balance"`
}

type positionView struct {
	model.Position
	CurrentPrice decimal.Decimal `json:"current_price"`
	PL           decimal.Decimal `json:"pl"`
}

type userDetailView struct {
	userView
	Positions []positionView `json:"positions"`
	Orders    []model.Order  `json:"orders"`
}

func (h *Handler) Users(w http.ResponseWriter, r *http.Request) {
	users := h.users.ListUsers()
	out := make([]userView, 0, len(users))
	for _, u := range users {
		out = append(out, userView{User: u, Balance: h.engine.Balances().Get(u.ID)})
	}
	httputil.WriteJSON(w, http.StatusOK, out)
}

func (h *Handler) UserDetail(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	u, err := h.users.GetUser(userID)
	if err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	positions := h.engine.Ledger().List(u.ID)
	views := make([]positionView, 0, len(positions))
	for _, pos := range positions {
		var current decimal.Decimal
		if t, ok := h.market.Quote(pos.Ticker); ok {
			current = t.Price
		}
		views = append(views, positionView{Position: pos, CurrentPrice: current, PL: engine.UnrealizedPL(pos, current)})
	}
	httputil.WriteJSON(w, http.StatusOK, userDetailView{
		userView:  userView{User: u, Balance: h.engine.Balances().Get(u.ID)},
		Positions: views,
		Orders:    h.engine.Orders().List(u.ID),
	})
}

func (h *Handler) DeleteUser(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if err := h.users.DeleteUser(userID); err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	h.engine.RemoveUser(userID)
	h.watchlist.DeleteUser(userID)
	h.log.Info("user deleted", zap.String("user_id", userID))
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

type setBalanceRequest struct {
	Balance string `json:"balance"`
}

// SetBalance replaces a user's balance outright, serialized against that
// user's own order placement on the shared per-user lock.
func (h *Handler) SetBalance(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")
	if _, err := h.users.GetUser(userID); err != nil {
		httputil.WriteJSON(w, http.StatusNotFound, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	var req setBalanceRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	balance, err := decimal.NewFromString(strings.TrimSpace(req.Balance))
	if err != nil || balance.Sign() < 0 {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "balance must be a non-negative number"})
		return
	}
	lock := h.engine.Locks().For(userID)
	lock.Lock()
	h.engine.Balances().Set(userID, balance)
	lock.Unlock()
	h.log.Info("balance override", zap.String("user_id", userID), zap.String("balance", balance.String()))
	httputil.WriteJSON(w, http.StatusOK, map[string]decimal.Decimal{"balance": balance})
}

type resolveRequest struct {
	Status string `json:"status"`
}

func (h *Handler) ResolveDeposit(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	dep, applied, err := h.workflow.ResolveDeposit(chi.URLParam(r, "id"), types.TxStatus(req.Status))
	if err != nil {
		ledger.WriteResolveError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"deposit": dep, "applied": applied})
}

func (h *Handler) ResolveWithdrawal(w http.ResponseWriter, r *http.Request) {
	var req resolveRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	wd, applied, err := h.workflow.ResolveWithdrawal(chi.URLParam(r, "id"), types.TxStatus(req.Status))
	if err != nil {
		ledger.WriteResolveError(w, err)
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]any{"withdrawal": wd, "applied": applied})
}

func (h *Handler) Deposits(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.workflow.ListDeposits(""))
}

func (h *Handler) Withdrawals(w http.ResponseWriter, r *http.Request) {
	httputil.WriteJSON(w, http.StatusOK, h.workflow.ListWithdrawals(""))
}

type payoutRequest struct {
	PayoutDestinationID string `json:"payout_destination_id"`
}

func (h *Handler) SetPayoutDestination(w http.ResponseWriter, r *http.Request) {
	var req payoutRequest
	if err := httputil.ReadJSON(r, &req); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: err.Error()})
		return
	}
	if strings.TrimSpace(req.PayoutDestinationID) == "" {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{Error: "payout_destination_id is required"})
		return
	}
	h.workflow.SetPayoutRef(req.PayoutDestinationID)
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"payout_destination_id": h.workflow.PayoutRef()})
}
