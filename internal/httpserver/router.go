package httpserver

import (
	"net/http"
	"strings"

	"cryptosim/internal/admin"
	"cryptosim/internal/auth"
	"cryptosim/internal/engine"
	"cryptosim/internal/health"
	"cryptosim/internal/httputil"
	"cryptosim/internal/ledger"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/watchlist"

	"github.com/go-chi/chi/v5"
)

type RouterDeps struct {
	AuthHandler      *auth.Handler
	TradeHandler     *engine.Handler
	LedgerHandler    *ledger.Handler
	WatchlistHandler *watchlist.Handler
	MarketHandler    *marketdata.Handler
	AdminHandler     *admin.Handler
	HealthHandler    *health.Handler
	AuthService      *auth.Service
	AllowedOrigin    string
}

func NewRouter(d RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(corsMiddleware(d.AllowedOrigin))
	r.Use(SecurityHeaders)

	limiter := newRateLimiter()
	r.Use(limiter.middleware)

	r.Get("/health", d.HealthHandler.Ready)
	r.Get("/health/live", d.HealthHandler.Live)
	r.Get("/health/metrics", d.HealthHandler.Metrics)

	r.Route("/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", d.AuthHandler.Register)
			r.Post("/login", d.AuthHandler.Login)
		})

		r.Get("/market/tickers", d.MarketHandler.Tickers)
		r.Get("/market/tickers/{ticker}", d.MarketHandler.Ticker)
		r.Get("/market/ws", d.MarketHandler.WS.ServeHTTP)

		r.Group(func(r chi.Router) {
			r.Use(WithAuth(d.AuthService))

			r.Get("/me", withUser(d.AuthHandler.Me))
			r.Post("/me/password", withUser(d.AuthHandler.ChangePassword))

			r.Get("/balance", withUser(d.TradeHandler.Balance))
			r.Post("/orders", withUser(d.TradeHandler.PlaceOrder))
			r.Get("/orders", withUser(d.TradeHandler.Orders))
			r.Get("/positions", withUser(d.TradeHandler.Positions))
			r.Post("/positions/{ticker}/close", withUser(d.TradeHandler.ClosePosition))

			r.Get("/watchlist", withUser(d.WatchlistHandler.List))
			r.Post("/watchlist", withUser(d.WatchlistHandler.Add))
			r.Delete("/watchlist/{ticker}", withUser(d.WatchlistHandler.Remove))

			r.Post("/deposits", withUser(d.LedgerHandler.RequestDeposit))
			r.Get("/deposits", withUser(d.LedgerHandler.Deposits))
			r.Post("/withdrawals", withUser(d.LedgerHandler.RequestWithdrawal))
			r.Get("/withdrawals", withUser(d.LedgerHandler.Withdrawals))
			r.Get("/payout-destination", d.LedgerHandler.PayoutDestination)

			r.Route("/admin", func(r chi.Router) {
				r.Use(RequireAdmin)
				r.Get("/users", d.AdminHandler.Users)
				r.Get("/users/{userID}", d.AdminHandler.UserDetail)
				r.Delete("/users/{userID}", d.AdminHandler.DeleteUser)
				r.Put("/users/{userID}/balance", d.AdminHandler.SetBalance)
				r.Get("/deposits", d.AdminHandler.Deposits)
				r.Post("/deposits/{id}/resolve", d.AdminHandler.ResolveDeposit)
				r.Get("/withdrawals", d.AdminHandler.Withdrawals)
				r.Post("/withdrawals/{id}/resolve", d.AdminHandler.ResolveWithdrawal)
				r.Put("/payout-destination", d.AdminHandler.SetPayoutDestination)
			})
		})
	})

	return r
}

// corsMiddleware reflects the Origin header only for the single configured
// frontend origin. Credentials are allowed, so an unmatched origin gets no
// CORS headers at all.
func corsMiddleware(allowed string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			if origin != "" && strings.EqualFold(origin, allowed) {
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
				w.Header().Set("Access-Control-Allow-Credentials", "true")
			}
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// withUser adapts a handler that needs the session user id, rejecting
// requests whose context lost it.
func withUser(fn func(http.ResponseWriter, *http.Request, string)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := UserID(r)
		if !ok {
			httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "unauthorized"})
			return
		}
		fn(w, r, userID)
	}
}
