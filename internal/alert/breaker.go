package alert

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"
)

var ErrCircuitOpen = errors.New("circuit breaker is open")

type BreakerConfig struct {
	Name string
	// MaxFailures consecutive failures open the circuit.
	MaxFailures uint32
	// Timeout is how long the circuit stays open before a trial request.
	Timeout time.Duration
}

// BreakerDispatcher stops calling a failing dispatcher for a while so a dead
// gateway does not hold up the alert queue.
type BreakerDispatcher struct {
	next Dispatcher
	cb   *gobreaker.CircuitBreaker
}

func NewBreakerDispatcher(next Dispatcher, cfg BreakerConfig, logger *slog.Logger) *BreakerDispatcher {
	if cfg.MaxFailures == 0 {
		cfg.MaxFailures = 5
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}

	settings := gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("Circuit breaker state changed",
				"name", name,
				"from", from.String(),
				"to", to.String(),
			)
		},
	}
	return &BreakerDispatcher{next: next, cb: gobreaker.NewCircuitBreaker(settings)}
}

func (d *BreakerDispatcher) Send(ctx context.Context, destination, message string) error {
	_, err := d.cb.Execute(func() (interface{}, error) {
		return nil, d.next.Send(ctx, destination, message)
	})
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: %s", ErrCircuitOpen, d.cb.Name())
	}
	return err
}

func (d *BreakerDispatcher) State() gobreaker.State {
	return d.cb.State()
}
