package checkpoint

import (
	"context"
	"time"

	"cryptosim/internal/auth"
	"cryptosim/internal/engine"
	"cryptosim/internal/ledger"
	"cryptosim/internal/model"
	"cryptosim/internal/watchlist"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// Keeper snapshots the in-memory services into a checkpoint Store on an
// interval and restores them at boot. Checkpointing is best-effort: the
// engine keeps trading even when a save fails.
type Keeper struct {
	store    Store
	users    *auth.Service
	engine   *engine.Engine
	workflow *ledger.Service
	watch    *watchlist.Store
	interval time.Duration
	log      *zap.Logger
}

func NewKeeper(store Store, users *auth.Service, eng *engine.Engine, workflow *ledger.Service, watch *watchlist.Store, interval time.Duration, log *zap.Logger) *Keeper {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Keeper{store: store, users: users, engine: eng, workflow: workflow, watch: watch, interval: interval, log: log}
}

// Snapshot assembles the current state of every service into one document.
// Engine state is exported per user under that user's lock, so a snapshot
// taken mid-order never captures a half-applied fill.
func (k *Keeper) Snapshot() *State {
	engineAccounts := k.engine.ExportAccounts()
	watchlists := k.watch.ExportAll()
	workflow := k.workflow.Export()

	accounts := make(map[string]UserState, len(engineAccounts))
	for id, acc := range engineAccounts {
		accounts[id] = UserState{
			Balance:   acc.Balance,
			Positions: acc.Positions,
			Orders:    acc.Orders,
			Watchlist: watchlists[id],
		}
	}
	for id, list := range watchlists {
		if _, ok := accounts[id]; ok {
			continue
		}
		accounts[id] = UserState{Watchlist: list}
	}

	return &State{
		Users:               k.users.Export(),
		Accounts:            accounts,
		Deposits:            workflow.Deposits,
		Withdrawals:         workflow.Withdrawals,
		PayoutDestinationID: workflow.PayoutRef,
	}
}

// Restore loads the last checkpoint, if any, into the services.
func (k *Keeper) Restore(ctx context.Context) error {
	st, err := k.store.Load(ctx)
	if err != nil {
		return err
	}
	if st == nil {
		return nil
	}
	if err := k.users.Restore(st.Users); err != nil {
		return err
	}

	balances := make(map[string]decimal.Decimal, len(st.Accounts))
	positions := make(map[string][]model.Position, len(st.Accounts))
	orders := make(map[string][]model.Order, len(st.Accounts))
	watchlists := make(map[string][]string, len(st.Accounts))
	for id, acc := range st.Accounts {
		balances[id] = acc.Balance
		positions[id] = acc.Positions
		orders[id] = acc.Orders
		if acc.Watchlist != nil {
			watchlists[id] = acc.Watchlist
		}
	}
	k.engine.Balances().Restore(balances)
	k.engine.Ledger().Restore(positions)
	k.engine.Orders().Restore(orders)
	k.watch.Restore(watchlists)
	k.workflow.Restore(ledger.ExportedState{
		Deposits:    st.Deposits,
		Withdrawals: st.Withdrawals,
		PayoutRef:   st.PayoutDestinationID,
	})
	k.log.Info("checkpoint restored",
		zap.Int("users", len(st.Users)),
		zap.Int("accounts", len(st.Accounts)),
	)
	return nil
}

// SaveNow writes one checkpoint immediately.
func (k *Keeper) SaveNow(ctx context.Context) error {
	return k.store.Save(ctx, k.Snapshot())
}

// Run checkpoints on the interval until ctx is cancelled. The caller writes
// the final checkpoint on shutdown via SaveNow.
func (k *Keeper) Run(ctx context.Context) {
	ticker := time.NewTicker(k.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			if err := k.SaveNow(ctx); err != nil {
				k.log.Warn("checkpoint save failed", zap.Error(err))
			}
		case <-ctx.Done():
			return
		}
	}
}
