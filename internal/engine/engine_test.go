package engine

import (
	"errors"
	"sync"
	"testing"

	"cryptosim/internal/types"

	"github.com/shopspring/decimal"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	return New(NewLocks(), NewBalances(), NewPositionLedger(), NewOrderLog(), nil)
}

func TestPlaceOrder_BuyThenPartialSell(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "50000"))

	res, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
		Amount: d(t, "0.5"), Price: d(t, "60000"),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	requireDecimalEq(t, res.Balance, d(t, "20000"), "balance after buy")
	if res.Position == nil {
		t.Fatal("buy: expected a position")
	}
	requireDecimalEq(t, res.Position.Quantity, d(t, "0.5"), "quantity after buy")
	requireDecimalEq(t, res.Position.AvgPrice, d(t, "60000"), "avgPrice after buy")
	if res.Order.Status != types.OrderStatusFilled {
		t.Fatalf("order status = %s, want %s", res.Order.Status, types.OrderStatusFilled)
	}

	res, err = e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideSell,
		Amount: d(t, "0.2"), Price: d(t, "65000"),
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	requireDecimalEq(t, res.Balance, d(t, "33000"), "balance after sell")
	requireDecimalEq(t, res.Position.Quantity, d(t, "0.3"), "quantity after sell")
	requireDecimalEq(t, res.Position.AvgPrice, d(t, "60000"), "avgPrice unchanged by reduction")
	requireDecimalEq(t, res.RealizedPL, d(t, "1000"), "realized")
}

func TestPlaceOrder_RoundTripNetsProfit(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "10000"))

	if _, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "ETH", Side: types.OrderSideBuy,
		Amount: d(t, "1"), Price: d(t, "3000"),
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	res, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "ETH", Side: types.OrderSideSell,
		Amount: d(t, "1"), Price: d(t, "3200"),
	})
	if err != nil {
		t.Fatalf("sell: %v", err)
	}
	requireDecimalEq(t, res.Balance, d(t, "10200"), "balance after round trip")
	if res.Position != nil {
		t.Fatalf("expected position removed, got %+v", res.Position)
	}
	requireDecimalEq(t, res.RealizedPL, d(t, "200"), "realized")
}

func TestPlaceOrder_InsufficientBalance(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "100"))

	_, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
		Amount: d(t, "1"), Price: d(t, "60000"),
	})
	if !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("err = %v, want ErrInsufficientBalance", err)
	}
	// Rejected orders must leave no trace.
	requireDecimalEq(t, e.Balances().Get("u1"), d(t, "100"), "balance untouched")
	if got := len(e.Orders().List("u1")); got != 0 {
		t.Fatalf("order log has %d entries after rejection", got)
	}
}

func TestPlaceOrder_SellWithoutPosition(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))

	_, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideSell,
		Amount: d(t, "1"), Price: d(t, "60000"),
	})
	if !errors.Is(err, ErrNoPosition) {
		t.Fatalf("err = %v, want ErrNoPosition", err)
	}
}

func TestPlaceOrder_OversizedSellRejectedWhole(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "10000"))
	if _, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "ETH", Side: types.OrderSideBuy,
		Amount: d(t, "2"), Price: d(t, "3000"),
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	_, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "ETH", Side: types.OrderSideSell,
		Amount: d(t, "3"), Price: d(t, "3000"),
	})
	if !errors.Is(err, ErrOversizedSell) {
		t.Fatalf("err = %v, want ErrOversizedSell", err)
	}
	// No partial fill: the position is exactly as the buy left it.
	pos, ok := e.Ledger().Get("u1", "ETH")
	if !ok {
		t.Fatal("position missing after rejected sell")
	}
	requireDecimalEq(t, pos.Quantity, d(t, "2"), "quantity after rejected sell")
	requireDecimalEq(t, e.Balances().Get("u1"), d(t, "4000"), "balance after rejected sell")
}

func TestPlaceOrder_Validation(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))

	cases := []struct {
		name string
		req  PlaceOrderRequest
	}{
		{"empty user", PlaceOrderRequest{Ticker: "BTC", Side: types.OrderSideBuy, Amount: d(t, "1"), Price: d(t, "1")}},
		{"empty ticker", PlaceOrderRequest{UserID: "u1", Side: types.OrderSideBuy, Amount: d(t, "1"), Price: d(t, "1")}},
		{"bad side", PlaceOrderRequest{UserID: "u1", Ticker: "BTC", Side: "Hold", Amount: d(t, "1"), Price: d(t, "1")}},
		{"zero amount", PlaceOrderRequest{UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy, Amount: decimal.Zero, Price: d(t, "1")}},
		{"negative amount", PlaceOrderRequest{UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy, Amount: d(t, "-1"), Price: d(t, "1")}},
		{"zero price", PlaceOrderRequest{UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy, Amount: d(t, "1"), Price: decimal.Zero}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := e.PlaceOrder(tc.req); !errors.Is(err, ErrInvalidAmount) {
				t.Fatalf("err = %v, want ErrInvalidAmount", err)
			}
		})
	}
}

func TestPlaceOrder_TickerNormalized(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))

	res, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: " btc ", Side: types.OrderSideBuy,
		Amount: d(t, "1"), Price: d(t, "100"),
	})
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if res.Order.Ticker != "BTC" {
		t.Fatalf("ticker = %q, want BTC", res.Order.Ticker)
	}
	if _, ok := e.Ledger().Get("u1", "BTC"); !ok {
		t.Fatal("position not stored under normalized ticker")
	}
}

func TestPlaceOrder_AppendsOrderLog(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))

	for _, price := range []string{"100", "110", "120"} {
		if _, err := e.PlaceOrder(PlaceOrderRequest{
			UserID: "u1", Ticker: "DOGE", Side: types.OrderSideBuy,
			Amount: d(t, "1"), Price: d(t, price),
		}); err != nil {
			t.Fatalf("buy @ %s: %v", price, err)
		}
	}
	orders := e.Orders().List("u1")
	if len(orders) != 3 {
		t.Fatalf("order log has %d entries, want 3", len(orders))
	}
	// Newest first.
	requireDecimalEq(t, orders[0].Price, d(t, "120"), "first listed price")
	requireDecimalEq(t, orders[2].Price, d(t, "100"), "last listed price")
	if orders[0].ID == orders[1].ID {
		t.Fatal("order IDs must be unique")
	}
}

func TestClosePosition_Long(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "50000"))
	if _, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
		Amount: d(t, "0.5"), Price: d(t, "60000"),
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	res, err := e.ClosePosition("u1", "btc", d(t, "62000"))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.Position != nil {
		t.Fatalf("expected flat after close, got %+v", res.Position)
	}
	if res.Order.Side != types.OrderSideSell {
		t.Fatalf("close side = %s, want Sell", res.Order.Side)
	}
	requireDecimalEq(t, res.Balance, d(t, "51000"), "balance after close")
	requireDecimalEq(t, res.RealizedPL, d(t, "1000"), "realized")
}

func TestClosePosition_Short(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "10000"))
	// Shorts only exist via restored state; seed one directly.
	e.Ledger().ApplyFill("u1", "ETH", types.OrderSideSell, d(t, "2"), d(t, "3000"))

	res, err := e.ClosePosition("u1", "ETH", d(t, "2800"))
	if err != nil {
		t.Fatalf("close: %v", err)
	}
	if res.Order.Side != types.OrderSideBuy {
		t.Fatalf("close side = %s, want Buy", res.Order.Side)
	}
	if res.Position != nil {
		t.Fatalf("expected flat after close, got %+v", res.Position)
	}
	// Buy-to-cover 2 @ 2800 costs 5600.
	requireDecimalEq(t, res.Balance, d(t, "4400"), "balance after cover")
	requireDecimalEq(t, res.RealizedPL, d(t, "400"), "realized")
}

func TestClosePosition_InvalidPrice(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))
	if _, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
		Amount: d(t, "1"), Price: d(t, "100"),
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}
	if _, err := e.ClosePosition("u1", "BTC", decimal.Zero); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want ErrInvalidAmount", err)
	}
}

// The close size is read under the user's lock, so an order landing between
// the read and the fill can no longer make the close oversized.
func TestClosePosition_SerializedWithOrders(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", decimal.NewFromInt(1_000_000))
	one, two, hundred := d(t, "1"), d(t, "2"), d(t, "100")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			e.PlaceOrder(PlaceOrderRequest{
				UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
				Amount: two, Price: hundred,
			})
			e.PlaceOrder(PlaceOrderRequest{
				UserID: "u1", Ticker: "BTC", Side: types.OrderSideSell,
				Amount: one, Price: hundred,
			})
		}
	}()

	for i := 0; i < 500; i++ {
		if _, err := e.ClosePosition("u1", "BTC", decimal.NewFromInt(100)); err != nil && !errors.Is(err, ErrNoPosition) {
			t.Fatalf("close returned %v", err)
		}
	}
	close(stop)
	wg.Wait()
}

// A snapshot taken while orders are in flight must still satisfy balance
// conservation: with every fill at the same price, balance plus open cost
// basis always equals the starting balance.
func TestExportAccounts_AtomicPerUser(t *testing.T) {
	e := newTestEngine(t)
	start := decimal.NewFromInt(1_000_000)
	e.Balances().Set("u1", start)
	one, hundred := d(t, "1"), d(t, "100")

	stop := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		for {
			select {
			case <-stop:
				return
			default:
			}
			if _, err := e.PlaceOrder(PlaceOrderRequest{
				UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
				Amount: one, Price: hundred,
			}); err != nil {
				return
			}
			if _, err := e.PlaceOrder(PlaceOrderRequest{
				UserID: "u1", Ticker: "BTC", Side: types.OrderSideSell,
				Amount: one, Price: hundred,
			}); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 2000; i++ {
		acc := e.ExportAccounts()["u1"]
		basis := decimal.Zero
		for _, pos := range acc.Positions {
			basis = basis.Add(pos.Quantity.Mul(pos.AvgPrice))
		}
		if got := acc.Balance.Add(basis); !got.Equal(start) {
			t.Fatalf("snapshot %d: balance %s + basis %s = %s, want %s (positions=%+v)",
				i, acc.Balance, basis, got, start, acc.Positions)
		}
	}
	close(stop)
	wg.Wait()
}

func TestClosePosition_NoPosition(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.ClosePosition("u1", "BTC", d(t, "60000")); !errors.Is(err, ErrNoPosition) {
		t.Fatalf("err = %v, want ErrNoPosition", err)
	}
}

func TestRemoveUser(t *testing.T) {
	e := newTestEngine(t)
	e.Balances().Set("u1", d(t, "1000"))
	if _, err := e.PlaceOrder(PlaceOrderRequest{
		UserID: "u1", Ticker: "BTC", Side: types.OrderSideBuy,
		Amount: d(t, "1"), Price: d(t, "100"),
	}); err != nil {
		t.Fatalf("buy: %v", err)
	}

	e.RemoveUser("u1")

	if !e.Balances().Get("u1").IsZero() {
		t.Fatal("balance survived removal")
	}
	if got := len(e.Ledger().List("u1")); got != 0 {
		t.Fatalf("%d positions survived removal", got)
	}
	if got := len(e.Orders().List("u1")); got != 0 {
		t.Fatalf("%d orders survived removal", got)
	}
}
