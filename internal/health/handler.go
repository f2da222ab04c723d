package health

import (
	"crypto/subtle"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"

	"cryptosim/internal/httputil"
	"cryptosim/internal/marketdata"
)

// Handler reports liveness, readiness and basic process metrics. The price
// feed is the only external dependency worth reporting: a stale feed
// degrades market orders but never takes the engine down, so readiness stays
// 200 and only flags the feed state.
type Handler struct {
	market      *marketdata.Store
	maxFeedAge  time.Duration
	startedAt   time.Time
	internalTok string
}

func NewHandler(market *marketdata.Store, maxFeedAge time.Duration, startedAt time.Time, internalToken string) *Handler {
	start := startedAt.UTC()
	if start.IsZero() {
		start = time.Now().UTC()
	}
	if maxFeedAge <= 0 {
		maxFeedAge = 3 * time.Second
	}
	return &Handler{
		market:      market,
		maxFeedAge:  maxFeedAge,
		startedAt:   start,
		internalTok: strings.TrimSpace(internalToken),
	}
}

type liveResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
	UptimeSec int64  `json:"uptime_sec"`
	Uptime    string `json:"uptime"`
}

type readinessResponse struct {
	Status    string   `json:"status"`
	Timestamp string   `json:"timestamp"`
	UptimeSec int64    `json:"uptime_sec"`
	Uptime    string   `json:"uptime"`
	Feed      feedStat `json:"feed"`
}

type feedStat struct {
	Fresh     bool   `json:"fresh"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

func (h *Handler) uptime(now time.Time) time.Duration {
	uptime := now.Sub(h.startedAt)
	if uptime < 0 {
		return 0
	}
	return uptime
}

// Live is a lightweight liveness endpoint and does not check the feed.
func (h *Handler) Live(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	httputil.WriteJSON(w, http.StatusOK, liveResponse{
		Status:    "ok",
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
	})
}

// Ready reports the feed state alongside an always-200 status: the engine
// serves limit orders and last-known data even when the feed is down.
func (h *Handler) Ready(w http.ResponseWriter, r *http.Request) {
	now := time.Now().UTC()
	uptime := h.uptime(now)
	fresh := h.market.Fresh(h.maxFeedAge, now)
	feed := feedStat{Fresh: fresh}
	if updated := h.market.UpdatedAt(); !updated.IsZero() {
		feed.UpdatedAt = updated.Format(time.RFC3339)
	}
	status := "ok"
	if !fresh {
		status = "degraded"
	}
	httputil.WriteJSON(w, http.StatusOK, readinessResponse{
		Status:    status,
		Timestamp: now.Format(time.RFC3339),
		UptimeSec: int64(uptime.Seconds()),
		Uptime:    uptime.String(),
		Feed:      feed,
	})
}

func secureTokenEqual(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Metrics returns basic Prometheus-compatible metrics and is protected by X-Internal-Token.
func (h *Handler) Metrics(w http.ResponseWriter, r *http.Request) {
	if h.internalTok == "" {
		httputil.WriteJSON(w, http.StatusServiceUnavailable, httputil.ErrorResponse{Error: "internal token is not configured"})
		return
	}
	provided := strings.TrimSpace(r.Header.Get("X-Internal-Token"))
	if !secureTokenEqual(provided, h.internalTok) {
		httputil.WriteJSON(w, http.StatusUnauthorized, httputil.ErrorResponse{Error: "invalid internal token"})
		return
	}

	now := time.Now().UTC()
	uptime := h.uptime(now)
	feedUp := 0
	if h.market.Fresh(h.maxFeedAge, now) {
		feedUp = 1
	}
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "# HELP cryptosim_up Service process is running.\n")
	_, _ = fmt.Fprintf(w, "# TYPE cryptosim_up gauge\n")
	_, _ = fmt.Fprintf(w, "cryptosim_up 1\n")

	_, _ = fmt.Fprintf(w, "# HELP cryptosim_uptime_seconds Service uptime in seconds.\n")
	_, _ = fmt.Fprintf(w, "# TYPE cryptosim_uptime_seconds gauge\n")
	_, _ = fmt.Fprintf(w, "cryptosim_uptime_seconds %d\n", int64(uptime.Seconds()))

	_, _ = fmt.Fprintf(w, "# HELP cryptosim_feed_up Market snapshot feed freshness (1=fresh,0=stale).\n")
	_, _ = fmt.Fprintf(w, "# TYPE cryptosim_feed_up gauge\n")
	_, _ = fmt.Fprintf(w, "cryptosim_feed_up %d\n", feedUp)

	_, _ = fmt.Fprintf(w, "# HELP cryptosim_go_goroutines Number of goroutines.\n")
	_, _ = fmt.Fprintf(w, "# TYPE cryptosim_go_goroutines gauge\n")
	_, _ = fmt.Fprintf(w, "cryptosim_go_goroutines %d\n", runtime.NumGoroutine())
	_, _ = fmt.Fprintf(w, "cryptosim_go_mem_alloc_bytes %d\n", mem.Alloc)
	_, _ = fmt.Fprintf(w, "cryptosim_go_mem_heap_inuse_bytes %d\n", mem.HeapInuse)
	_, _ = fmt.Fprintf(w, "cryptosim_go_mem_sys_bytes %d\n", mem.Sys)
	_, _ = fmt.Fprintf(w, "cryptosim_go_gc_count %d\n", mem.NumGC)
}
