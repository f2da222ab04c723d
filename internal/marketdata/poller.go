package marketdata

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Poller refreshes the snapshot store on a fixed interval. A failed fetch is
// logged and skipped: the store keeps serving the last-known snapshot and the
// accounting engine is never blocked by the feed.
type Poller struct {
	client   *Client
	store    *Store
	interval time.Duration
	log      *zap.Logger
}

func NewPoller(client *Client, store *Store, interval time.Duration, log *zap.Logger) *Poller {
	if interval <= 0 {
		interval = time.Second
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Poller{client: client, store: store, interval: interval, log: log}
}

func (p *Poller) Interval() time.Duration { return p.interval }

// Run polls until ctx is cancelled. It fetches once immediately so the store
// is warm before the first tick.
func (p *Poller) Run(ctx context.Context) {
	p.refresh(ctx)
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			p.refresh(ctx)
		case <-ctx.Done():
			return
		}
	}
}

func (p *Poller) refresh(ctx context.Context) {
	batch, err := p.client.FetchAll(ctx)
	if err != nil {
		p.log.Warn("market snapshot fetch failed", zap.Error(err))
		return
	}
	p.store.SetAll(batch, time.Now().UTC())
}
