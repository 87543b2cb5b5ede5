package inventory

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/rogerio-castellano/inventory-sync/internal/alert"
	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
)

const defaultReadyTimeout = 5 * time.Second

type HubConfig struct {
	Items      *repo.InventoryRepository
	Recipients *repo.RecipientRepository
	Registry   *Registry
	Alerts     AlertSink
	Gate       *alert.Gate
	Metrics    *metrics.Metrics
	Logger     *slog.Logger
	// ReadyTimeout bounds how long Tracker waits for the first snapshot of a
	// new location.
	ReadyTimeout time.Duration
}

// Hub runs one tracker per location, started on first use.
type Hub struct {
	cfg    HubConfig
	ctx    context.Context
	cancel context.CancelFunc

	mu       sync.Mutex
	closed   bool
	trackers map[string]*hubEntry
}

// hubEntry is a tracker whose subscription may still be opening. started is
// closed once Start has returned; err is set before that.
type hubEntry struct {
	tracker *Tracker
	started chan struct{}
	err     error
}

func NewHub(cfg HubConfig) *Hub {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.ReadyTimeout <= 0 {
		cfg.ReadyTimeout = defaultReadyTimeout
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		cfg:      cfg,
		ctx:      ctx,
		cancel:   cancel,
		trackers: map[string]*hubEntry{},
	}
}

// Tracker returns the running tracker of location, starting it if needed.
// A new tracker is returned once its first snapshot is installed, or when
// ctx is done or the ready timeout expires, whichever comes first. Opening
// the subscription of one location never holds up another.
func (h *Hub) Tracker(ctx context.Context, location string) (*Tracker, error) {
	if err := ValidateName("location", location); err != nil {
		return nil, err
	}

	h.mu.Lock()
	if h.closed {
		h.mu.Unlock()
		return nil, ErrStopped
	}
	e, ok := h.trackers[location]
	if !ok {
		e = &hubEntry{
			tracker: NewTracker(TrackerConfig{
				Location:   location,
				Items:      h.cfg.Items,
				Recipients: h.cfg.Recipients,
				Registry:   h.cfg.Registry,
				Alerts:     h.cfg.Alerts,
				Gate:       h.cfg.Gate,
				Metrics:    h.cfg.Metrics,
				Logger:     h.cfg.Logger,
			}),
			started: make(chan struct{}),
		}
		h.trackers[location] = e
		go h.start(location, e)
	}
	h.mu.Unlock()

	timer := time.NewTimer(h.cfg.ReadyTimeout)
	defer timer.Stop()

	select {
	case <-e.started:
		if e.err != nil {
			return nil, e.err
		}
	case <-ctx.Done():
		return e.tracker, nil
	case <-timer.C:
		return e.tracker, nil
	}

	select {
	case <-e.tracker.Ready():
	case <-ctx.Done():
	case <-timer.C:
	}
	return e.tracker, nil
}

// start opens the subscription of e outside the hub lock. A tracker that
// fails to start is forgotten so the next call retries.
func (h *Hub) start(location string, e *hubEntry) {
	defer close(e.started)

	if err := e.tracker.Start(h.ctx); err != nil {
		e.err = err
		h.mu.Lock()
		if h.trackers[location] == e {
			delete(h.trackers, location)
		}
		h.mu.Unlock()
		if !errors.Is(err, ErrStopped) {
			h.cfg.Logger.Error("Failed to start tracker", "location", location, "error", err)
		}
	}
}

// Snapshot fetches location once without starting a tracker.
func (h *Hub) Snapshot(ctx context.Context, location string) (models.Snapshot, error) {
	if err := ValidateName("location", location); err != nil {
		return models.Snapshot{}, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return h.cfg.Items.Get(ctx, location)
}

// Statuses reports every running tracker ordered by location.
func (h *Hub) Statuses() []Status {
	h.mu.Lock()
	trackers := make([]*Tracker, 0, len(h.trackers))
	for _, e := range h.trackers {
		trackers = append(trackers, e.tracker)
	}
	h.mu.Unlock()

	out := make([]Status, 0, len(trackers))
	for _, t := range trackers {
		out = append(out, t.Status())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Location < out[j].Location })
	return out
}

// Close stops every tracker. Subscriptions still being opened are
// cancelled.
func (h *Hub) Close() {
	h.mu.Lock()
	h.closed = true
	trackers := h.trackers
	h.trackers = map[string]*hubEntry{}
	h.mu.Unlock()

	h.cancel()
	for _, e := range trackers {
		e.tracker.Stop()
	}
}
