package marketdata

import (
	"net/http"
	"strings"
	"time"

	"cryptosim/internal/model"

	"github.com/gorilla/websocket"
)

type snapshotMessage struct {
	Type      string         `json:"type"`
	Tickers   []model.Ticker `json:"tickers"`
	Timestamp int64          `json:"ts"`
}

// StreamWS pushes the full ticker snapshot to a websocket client on a fixed
// interval, replacing the original UI's 1-second HTTP polling loop.
type StreamWS struct {
	store    *Store
	origin   string
	interval time.Duration
	upgrader websocket.Upgrader
}

func NewStreamWS(store *Store, origin string, interval time.Duration) *StreamWS {
	if interval <= 0 {
		interval = time.Second
	}
	return &StreamWS{
		store:    store,
		origin:   origin,
		interval: interval,
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return allowOrigin(r, origin) }},
	}
}

func (h *StreamWS) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ticker := time.NewTicker(h.interval)
	defer ticker.Stop()

	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case <-ticker.C:
			msg := snapshotMessage{Type: "snapshot", Tickers: h.store.All(), Timestamp: time.Now().UTC().Unix()}
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
		case <-done:
			return
		}
	}
}

func allowOrigin(r *http.Request, origin string) bool {
	if origin == "*" {
		return true
	}
	return strings.EqualFold(r.Header.Get("Origin"), origin)
}
