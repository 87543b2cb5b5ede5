package alert

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/rogerio-castellano/inventory-sync/internal/metrics"
	"github.com/rogerio-castellano/inventory-sync/internal/models"
)

var (
	ErrQueueFull      = errors.New("alert queue full")
	ErrNotifierClosed = errors.New("alert notifier closed")
)

const (
	defaultQueueSize   = 256
	defaultSendTimeout = 10 * time.Second
	historyTimeout     = 3 * time.Second
)

type NotifierConfig struct {
	Dispatcher  Dispatcher
	History     History
	Metrics     *metrics.Metrics
	Logger      *slog.Logger
	QueueSize   int
	SendTimeout time.Duration
}

// Notifier hands alerts to a dispatcher on its own goroutine. Notify does
// not wait for delivery or for the history: when the queue is full the alert
// is dropped and reported, and the worker records the drop. Delivery
// failures are logged and recorded, never retried.
type Notifier struct {
	dispatcher Dispatcher
	history    History
	metrics    *metrics.Metrics
	logger     *slog.Logger
	timeout    time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan models.AlertEvent
	done   chan struct{}

	dropMu sync.Mutex
	drops  []models.AlertDelivery
	wake   chan struct{}
}

func NewNotifier(cfg NotifierConfig) *Notifier {
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = defaultSendTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.History == nil {
		cfg.History = NewMemoryHistory(0)
	}

	n := &Notifier{
		dispatcher: cfg.Dispatcher,
		history:    cfg.History,
		metrics:    cfg.Metrics,
		logger:     cfg.Logger,
		timeout:    cfg.SendTimeout,
		queue:      make(chan models.AlertEvent, cfg.QueueSize),
		done:       make(chan struct{}),
		wake:       make(chan struct{}, 1),
	}
	go n.run()
	return n
}

// Notify enqueues events for delivery. It never blocks.
func (n *Notifier) Notify(events []models.AlertEvent) {
	n.mu.RLock()
	defer n.mu.RUnlock()

	for _, ev := range events {
		if n.metrics != nil {
			n.metrics.AlertsRaised.WithLabelValues(ev.Location).Inc()
		}
		if n.closed {
			n.drop(ev, ErrNotifierClosed)
			continue
		}
		select {
		case n.queue <- ev:
			if n.metrics != nil {
				n.metrics.AlertQueueDepth.Set(float64(len(n.queue)))
			}
		default:
			n.drop(ev, ErrQueueFull)
		}
	}
}

func (n *Notifier) History() History {
	return n.history
}

// Close stops accepting alerts and waits for the queued ones to be sent.
// Alerts arriving afterwards are logged and counted as dropped but not
// recorded in the history.
func (n *Notifier) Close() {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()
	<-n.done
}

func (n *Notifier) run() {
	defer close(n.done)
	for {
		select {
		case ev, ok := <-n.queue:
			if !ok {
				n.flushDrops()
				return
			}
			if n.metrics != nil {
				n.metrics.AlertQueueDepth.Set(float64(len(n.queue)))
			}
			n.deliver(ev)
		case <-n.wake:
			n.flushDrops()
		}
	}
}

func (n *Notifier) deliver(ev models.AlertEvent) {
	ctx, cancel := context.WithTimeout(context.Background(), n.timeout)
	defer cancel()

	if err := n.dispatcher.Send(ctx, ev.Destination, ev.Message()); err != nil {
		n.record(n.outcome(ev, models.DeliveryFailed, err))
		return
	}

	n.logger.Info("Alert sent", "location", ev.Location, "item", ev.ItemKey, "quantity", ev.Quantity, "destination", ev.Destination)
	n.record(models.AlertDelivery{Event: ev, Status: models.DeliverySent, DeliveredAt: time.Now()})
}

// drop must be called with mu held for reading.
func (n *Notifier) drop(ev models.AlertEvent, err error) {
	d := n.outcome(ev, models.DeliveryDropped, err)
	if n.closed {
		n.count(d)
		return
	}

	n.dropMu.Lock()
	n.drops = append(n.drops, d)
	n.dropMu.Unlock()

	select {
	case n.wake <- struct{}{}:
	default:
	}
}

func (n *Notifier) flushDrops() {
	n.dropMu.Lock()
	drops := n.drops
	n.drops = nil
	n.dropMu.Unlock()

	for _, d := range drops {
		n.record(d)
	}
}

// outcome logs a failed delivery and describes it for the history.
func (n *Notifier) outcome(ev models.AlertEvent, status string, err error) models.AlertDelivery {
	derr := &DispatchError{Destination: ev.Destination, Err: err}
	n.logger.Error("Alert not delivered",
		"location", ev.Location,
		"item", ev.ItemKey,
		"status", status,
		"error", derr,
	)
	return models.AlertDelivery{Event: ev, Status: status, Error: derr.Error(), DeliveredAt: time.Now()}
}

func (n *Notifier) count(d models.AlertDelivery) {
	if n.metrics != nil {
		n.metrics.AlertsDispatched.WithLabelValues(d.Status).Inc()
	}
}

func (n *Notifier) record(d models.AlertDelivery) {
	n.count(d)
	ctx, cancel := context.WithTimeout(context.Background(), historyTimeout)
	defer cancel()
	if err := n.history.Record(ctx, d); err != nil {
		n.logger.Warn("Failed to record alert history", "error", err)
	}
}
