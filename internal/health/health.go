// Package health serves the latest poller snapshot as a readiness endpoint:
// 503 until the first update arrived, the snapshot itself afterwards.
package health

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"

	"github.com/clambin/yplan-controller/internal/poller"
)

// Health caches the latest Update and serves it as JSON. While no update has
// arrived yet it reports 503 and asks the poller for a refresh.
type Health struct {
	poller     poller.Poller
	logger     *slog.Logger
	lock       sync.RWMutex
	lastUpdate *poller.Update
}

// New returns a Health fed by p.
func New(p poller.Poller, logger *slog.Logger) *Health {
	return &Health{poller: p, logger: logger}
}

// Run caches poller updates until ctx is canceled.
func (h *Health) Run(ctx context.Context) error {
	h.logger.Debug("started")
	defer h.logger.Debug("stopped")

	ch := h.poller.Subscribe()
	defer h.poller.Unsubscribe(ch)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update := <-ch:
			h.lock.Lock()
			h.lastUpdate = &update
			h.lock.Unlock()
		}
	}
}

func (h *Health) ServeHTTP(w http.ResponseWriter, _ *http.Request) {
	h.lock.RLock()
	update := h.lastUpdate
	h.lock.RUnlock()

	if update == nil {
		h.poller.Refresh()
		http.Error(w, "no update yet", http.StatusServiceUnavailable)
		return
	}

	body, err := json.MarshalIndent(update, "", "  ")
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}
