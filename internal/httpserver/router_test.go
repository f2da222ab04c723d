package httpserver

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"cryptosim/internal/admin"
	"cryptosim/internal/auth"
	"cryptosim/internal/engine"
	"cryptosim/internal/health"
	"cryptosim/internal/ledger"
	"cryptosim/internal/marketdata"
	"cryptosim/internal/model"
	"cryptosim/internal/watchlist"

	"github.com/shopspring/decimal"
)

func newTestServer(t *testing.T) *httptest.Server {
	t.Helper()

	locks := engine.NewLocks()
	balances := engine.NewBalances()
	eng := engine.New(locks, balances, engine.NewPositionLedger(), engine.NewOrderLog(), nil)
	users := auth.NewService("cryptosim-test", []byte("test-secret"), time.Hour, "admin@example.com")
	workflow := ledger.NewService(locks, balances, nil)
	watch := watchlist.NewStore()
	market := marketdata.NewStore()
	market.SetAll([]model.Ticker{
		{Ticker: "BTC", Name: "Bitcoin", Price: decimal.NewFromInt(60000)},
	}, time.Now().UTC())

	router := NewRouter(RouterDeps{
		AuthHandler:      auth.NewHandler(users),
		TradeHandler:     engine.NewHandler(eng, market, time.Hour),
		LedgerHandler:    ledger.NewHandler(workflow, users),
		WatchlistHandler: watchlist.NewHandler(watch),
		MarketHandler:    marketdata.NewHandler(market, marketdata.NewStreamWS(market, "*", time.Second)),
		AdminHandler:     admin.NewHandler(users, eng, workflow, market, watch, nil),
		HealthHandler:    health.NewHandler(market, time.Hour, time.Now(), ""),
		AuthService:      users,
		AllowedOrigin:    "http://localhost:3000",
	})
	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return srv
}

func doJSON(t *testing.T, method, url, token string, body any, out any) int {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, url, &buf)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			t.Fatalf("%s %s: decode response: %v", method, url, err)
		}
	}
	return resp.StatusCode
}

type session struct {
	AccessToken string `json:"access_token"`
	UserID      string `json:"user_id"`
	Role        string `json:"role"`
}

func register(t *testing.T, base, name, email string) session {
	t.Helper()
	var s session
	code := doJSON(t, http.MethodPost, base+"/v1/auth/register", "", map[string]string{
		"name": name, "email": email, "password": "pw-" + name,
	}, &s)
	if code != http.StatusCreated {
		t.Fatalf("register %s: status %d", email, code)
	}
	return s
}

func TestAPI_TradeLifecycle(t *testing.T) {
	srv := newTestServer(t)
	adminSess := register(t, srv.URL, "Root", "admin@example.com")
	if adminSess.Role != "admin" {
		t.Fatalf("admin role = %q", adminSess.Role)
	}
	userSess := register(t, srv.URL, "Alice", "alice@example.com")
	if userSess.Role != "user" {
		t.Fatalf("user role = %q", userSess.Role)
	}

	// Fresh accounts start with a zero balance.
	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/balance", userSess.AccessToken, nil, &bal); code != http.StatusOK {
		t.Fatalf("balance: status %d", code)
	}
	if !bal.Balance.IsZero() {
		t.Fatalf("initial balance = %s", bal.Balance)
	}

	// Admin funds the account through a balance override.
	if code := doJSON(t, http.MethodPut, srv.URL+"/v1/admin/users/"+userSess.UserID+"/balance",
		adminSess.AccessToken, map[string]string{"balance": "50000"}, nil); code != http.StatusOK {
		t.Fatalf("set balance: status %d", code)
	}

	// Limit buy 0.5 BTC @ 60000.
	var placed struct {
		Balance  decimal.Decimal `json:"balance"`
		Position *model.Position `json:"position"`
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/v1/orders", userSess.AccessToken, map[string]string{
		"ticker": "BTC", "side": "Buy", "amount": "0.5", "price": "60000",
	}, &placed); code != http.StatusCreated {
		t.Fatalf("place order: status %d", code)
	}
	if !placed.Balance.Equal(decimal.NewFromInt(20000)) {
		t.Fatalf("balance after buy = %s", placed.Balance)
	}

	// Market close uses the snapshot price (60000), returning the notional.
	var closed struct {
		Balance    decimal.Decimal `json:"balance"`
		RealizedPL decimal.Decimal `json:"realized_pl"`
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/v1/positions/BTC/close",
		userSess.AccessToken, nil, &closed); code != http.StatusOK {
		t.Fatalf("close: status %d", code)
	}
	if !closed.Balance.Equal(decimal.NewFromInt(50000)) {
		t.Fatalf("balance after close = %s", closed.Balance)
	}
	if !closed.RealizedPL.IsZero() {
		t.Fatalf("realized = %s, want 0 at unchanged price", closed.RealizedPL)
	}

	var orders []model.Order
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/orders", userSess.AccessToken, nil, &orders); code != http.StatusOK {
		t.Fatalf("orders: status %d", code)
	}
	if len(orders) != 2 {
		t.Fatalf("order history has %d entries, want 2", len(orders))
	}
}

func TestAPI_DepositApprovalFlow(t *testing.T) {
	srv := newTestServer(t)
	adminSess := register(t, srv.URL, "Root", "admin@example.com")
	userSess := register(t, srv.URL, "Alice", "alice@example.com")

	var dep model.Deposit
	if code := doJSON(t, http.MethodPost, srv.URL+"/v1/deposits", userSess.AccessToken,
		map[string]string{"amount": "500"}, &dep); code != http.StatusCreated {
		t.Fatalf("request deposit: status %d", code)
	}

	var resolved struct {
		Applied bool          `json:"applied"`
		Deposit model.Deposit `json:"deposit"`
	}
	if code := doJSON(t, http.MethodPost, srv.URL+"/v1/admin/deposits/"+dep.ID+"/resolve",
		adminSess.AccessToken, map[string]string{"status": "Approved"}, &resolved); code != http.StatusOK {
		t.Fatalf("resolve: status %d", code)
	}
	if !resolved.Applied {
		t.Fatal("resolution not applied")
	}

	var bal struct {
		Balance decimal.Decimal `json:"balance"`
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/balance", userSess.AccessToken, nil, &bal)
	if !bal.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance after approval = %s", bal.Balance)
	}

	// Resolving again changes nothing.
	doJSON(t, http.MethodPost, srv.URL+"/v1/admin/deposits/"+dep.ID+"/resolve",
		adminSess.AccessToken, map[string]string{"status": "Approved"}, &resolved)
	if resolved.Applied {
		t.Fatal("second resolution reported applied")
	}
	doJSON(t, http.MethodGet, srv.URL+"/v1/balance", userSess.AccessToken, nil, &bal)
	if !bal.Balance.Equal(decimal.NewFromInt(500)) {
		t.Fatalf("balance after double approval = %s", bal.Balance)
	}
}

func TestAPI_AuthBoundaries(t *testing.T) {
	srv := newTestServer(t)
	userSess := register(t, srv.URL, "Alice", "alice@example.com")

	// No token.
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/balance", "", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("no token: status %d", code)
	}
	// Garbage token.
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/balance", "garbage", nil, nil); code != http.StatusUnauthorized {
		t.Fatalf("bad token: status %d", code)
	}
	// Regular user on an admin route.
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/admin/users", userSess.AccessToken, nil, nil); code != http.StatusForbidden {
		t.Fatalf("user on admin route: status %d", code)
	}
	// Market data is public.
	if code := doJSON(t, http.MethodGet, srv.URL+"/v1/market/tickers", "", nil, nil); code != http.StatusOK {
		t.Fatalf("public tickers: status %d", code)
	}
}

func TestAPI_CORSGatedOnConfiguredOrigin(t *testing.T) {
	srv := newTestServer(t)

	get := func(origin string) *http.Response {
		t.Helper()
		req, err := http.NewRequest(http.MethodGet, srv.URL+"/v1/market/tickers", nil)
		if err != nil {
			t.Fatal(err)
		}
		if origin != "" {
			req.Header.Set("Origin", origin)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		return resp
	}

	resp := get("http://localhost:3000")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Fatalf("allowed origin not reflected, got %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "true" {
		t.Fatalf("credentials header missing for allowed origin, got %q", got)
	}

	resp = get("https://evil.example")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("foreign origin reflected: %q", got)
	}
	if got := resp.Header.Get("Access-Control-Allow-Credentials"); got != "" {
		t.Fatalf("credentials header set for foreign origin: %q", got)
	}

	resp = get("")
	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "" {
		t.Fatalf("same-origin request got CORS header: %q", got)
	}
}
