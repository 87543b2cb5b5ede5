package inventory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/rogerio-castellano/inventory-sync/internal/alert"
	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
	"github.com/rogerio-castellano/inventory-sync/internal/repo"
)

const queryTimeout = 3 * time.Second

// Listener receives every installed snapshot. On a failed delivery it gets
// the last good snapshot together with the error. Listeners run while the
// tracker processes the snapshot and must not call back into Apply, Fail,
// Refresh or Stop.
type Listener func(models.Snapshot, error)

// AlertSink accepts alerts for delivery without waiting for it.
type AlertSink interface {
	Notify(events []models.AlertEvent)
}

type TrackerConfig struct {
	Location   string
	Items      *repo.InventoryRepository
	Recipients *repo.RecipientRepository
	Registry   *Registry
	Alerts     AlertSink
	// Gate suppresses repeated alerts for items that stay low. Nil means
	// every low snapshot alerts again.
	Gate    *alert.Gate
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Status describes the sync state of a tracker.
type Status struct {
	Location  string `json:"location"`
	Version   uint64 `json:"version"`
	Items     int    `json:"items"`
	Ready     bool   `json:"ready"`
	Stopped   bool   `json:"stopped"`
	LastError string `json:"lastError,omitempty"`
}

// Tracker keeps the cache of one location in sync with the remote store and
// raises alerts for the recipients registered there. Each snapshot is
// processed as one unit of work: cache swap, listeners, evaluation and
// hand-off to the alert sink.
type Tracker struct {
	cfg    TrackerConfig
	cache  *Cache
	logger *slog.Logger

	mu      sync.Mutex
	stopped bool
	lastErr error

	subMu sync.Mutex
	sub   repo.Subscription

	listenersMu sync.Mutex
	listeners   map[uint64]Listener
	nextID      uint64

	ready     chan struct{}
	readyOnce sync.Once
}

func NewTracker(cfg TrackerConfig) *Tracker {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{
		cfg:       cfg,
		cache:     NewCache(),
		logger:    logger.With("location", cfg.Location),
		listeners: map[uint64]Listener{},
		ready:     make(chan struct{}),
	}
}

func (t *Tracker) Location() string {
	return t.cfg.Location
}

// Start subscribes to the location. Snapshots are applied on the
// subscription's goroutine until Stop is called or ctx is cancelled.
func (t *Tracker) Start(ctx context.Context) error {
	if err := ValidateName("location", t.cfg.Location); err != nil {
		return err
	}

	t.subMu.Lock()
	defer t.subMu.Unlock()

	if t.isStopped() {
		return ErrStopped
	}
	if t.sub != nil {
		return nil
	}

	sub, err := t.cfg.Items.Subscribe(ctx, t.cfg.Location, func(s models.Snapshot, err error) {
		if err != nil {
			t.Fail(err)
			return
		}
		if err := t.Apply(ctx, s); err != nil && !errors.Is(err, ErrStopped) {
			t.logger.Error("Failed to apply snapshot", "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("subscribe to %s: %w", t.cfg.Location, err)
	}
	t.sub = sub
	t.logger.Info("Tracker started", "subscription", sub.ID())
	return nil
}

// Stop ends the subscription. Once it returns no listener is called again.
func (t *Tracker) Stop() {
	t.subMu.Lock()
	sub := t.sub
	t.sub = nil
	t.subMu.Unlock()

	if sub != nil {
		sub.Unsubscribe()
	}

	t.mu.Lock()
	already := t.stopped
	t.stopped = true
	t.mu.Unlock()

	if !already {
		t.logger.Info("Tracker stopped")
	}
}

// Ready is closed once the first snapshot has been installed.
func (t *Tracker) Ready() <-chan struct{} {
	return t.ready
}

// Apply installs s, replacing the cached inventory, notifies listeners and
// evaluates alerts against the installed snapshot.
func (t *Tracker) Apply(ctx context.Context, s models.Snapshot) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return ErrStopped
	}

	s.Location = t.cfg.Location
	if s.ReceivedAt.IsZero() {
		s.ReceivedAt = time.Now()
	}

	t.cache.Apply(s)
	installed, version := t.cache.Snapshot()
	t.lastErr = nil
	t.readyOnce.Do(func() { close(t.ready) })

	if m := t.cfg.Metrics; m != nil {
		m.SnapshotsApplied.WithLabelValues(t.cfg.Location).Inc()
		m.CachedItems.WithLabelValues(t.cfg.Location).Set(float64(len(installed.Items)))
	}
	t.logger.Debug("Snapshot applied", "version", version, "items", len(installed.Items))

	t.emit(installed, nil)
	t.evaluate(ctx, installed)
	return nil
}

// Fail reports a failed delivery. The installed snapshot is kept.
func (t *Tracker) Fail(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.stopped {
		return
	}
	t.lastErr = err
	if m := t.cfg.Metrics; m != nil {
		m.SnapshotErrors.WithLabelValues(t.cfg.Location).Inc()
	}
	t.logger.Warn("Snapshot delivery failed", "error", err)

	current, _ := t.cache.Snapshot()
	t.emit(current, err)
}

// Refresh fetches the location once and applies the result.
func (t *Tracker) Refresh(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	s, err := t.cfg.Items.Get(ctx, t.cfg.Location)
	if err != nil {
		t.Fail(err)
		return err
	}
	return t.Apply(ctx, s)
}

// OnChange registers l for every snapshot or error from now on. The
// returned func removes it.
func (t *Tracker) OnChange(l Listener) (remove func()) {
	t.listenersMu.Lock()
	id := t.nextID
	t.nextID++
	t.listeners[id] = l
	t.listenersMu.Unlock()

	return func() {
		t.listenersMu.Lock()
		delete(t.listeners, id)
		t.listenersMu.Unlock()
	}
}

func (t *Tracker) View(key SortKey, descending bool, query string) []models.Item {
	return View(t.cache.Items(), key, descending, query)
}

func (t *Tracker) Items() []models.Item {
	return t.cache.Items()
}

func (t *Tracker) Lookup(name string) (models.Item, bool) {
	return t.cache.Lookup(name)
}

func (t *Tracker) Snapshot() models.Snapshot {
	s, _ := t.cache.Snapshot()
	return s
}

func (t *Tracker) Status() Status {
	t.mu.Lock()
	defer t.mu.Unlock()

	s, version := t.cache.Snapshot()
	st := Status{
		Location: t.cfg.Location,
		Version:  version,
		Items:    len(s.Items),
		Ready:    version > 0,
		Stopped:  t.stopped,
	}
	if t.lastErr != nil {
		st.LastError = t.lastErr.Error()
	}
	return st
}

// Put adds or overwrites an item. The change reaches the cache through the
// subscription.
func (t *Tracker) Put(ctx context.Context, name string, quantity int) error {
	if err := ValidateName("item name", name); err != nil {
		return err
	}
	if err := validateCount("quantity", quantity); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return t.cfg.Items.Put(ctx, t.cfg.Location, models.Item{Name: name, Quantity: quantity})
}

// UpdateQuantity changes the quantity of an item present in the cache.
func (t *Tracker) UpdateQuantity(ctx context.Context, name string, quantity int) error {
	if err := ValidateName("item name", name); err != nil {
		return err
	}
	if err := validateCount("quantity", quantity); err != nil {
		return err
	}
	if _, ok := t.cache.Lookup(name); !ok {
		return fmt.Errorf("item %q: %w", name, repo.ErrNotFound)
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return t.cfg.Items.UpdateQuantity(ctx, t.cfg.Location, name, quantity)
}

func (t *Tracker) Delete(ctx context.Context, name string) error {
	if err := ValidateName("item name", name); err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return t.cfg.Items.Delete(ctx, t.cfg.Location, name)
}

func (t *Tracker) isStopped() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stopped
}

func (t *Tracker) emit(s models.Snapshot, err error) {
	t.listenersMu.Lock()
	ls := make([]Listener, 0, len(t.listeners))
	for _, l := range t.listeners {
		ls = append(ls, l)
	}
	t.listenersMu.Unlock()

	for _, l := range ls {
		l(s, err)
	}
}

// evaluate raises alerts for every recipient of the location that has a
// phone number. A failure for one recipient does not affect the others.
func (t *Tracker) evaluate(ctx context.Context, s models.Snapshot) {
	if t.cfg.Recipients == nil || t.cfg.Registry == nil || t.cfg.Alerts == nil {
		return
	}

	qctx, cancel := context.WithTimeout(ctx, queryTimeout)
	recipients, err := t.cfg.Recipients.List(qctx, t.cfg.Location)
	cancel()
	if err != nil {
		t.logger.Error("Failed to load alert recipients", "error", err)
		return
	}

	for _, rc := range recipients {
		if rc.PhoneNumber == "" {
			continue
		}

		qctx, cancel := context.WithTimeout(ctx, queryTimeout)
		regs, err := t.cfg.Registry.ListFor(qctx, rc.Owner)
		cancel()
		if err != nil {
			t.logger.Error("Failed to load thresholds", "owner", rc.Owner, "error", err)
			continue
		}

		events := alert.Evaluate(s, regs, rc.PhoneNumber)
		if t.cfg.Gate != nil {
			events = t.cfg.Gate.Admit(t.cfg.Location, rc.Owner, events)
		}
		if len(events) > 0 {
			t.cfg.Alerts.Notify(events)
		}
	}
}
