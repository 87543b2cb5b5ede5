package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

const reconnectDelay = time.Second

var errFeedClosed = errors.New("change feed closed")

type subscription struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

func (s *subscription) ID() string {
	return s.id
}

func (s *subscription) Unsubscribe() {
	s.cancel()
	<-s.done
}

// signal queues a change notification for a feed. A nil err means "the
// collection changed". Pending signals are coalesced because every delivery
// re-reads the whole collection.
func signal(ch chan<- error, err error) {
	select {
	case ch <- err:
	default:
	}
}

// startFeed runs the delivery goroutine shared by all backends. fetch reads
// the collection; signals wakes the feed up. When signals is closed the feed
// reports ErrUnavailable once and stops.
func startFeed(parent context.Context, fetch func(ctx context.Context) (Documents, error), signals <-chan error, fn SnapshotFunc) *subscription {
	ctx, cancel := context.WithCancel(parent)
	s := &subscription{
		id:     uuid.NewString(),
		cancel: cancel,
		done:   make(chan struct{}),
	}

	deliver := func(docs Documents, err error) {
		if ctx.Err() != nil {
			return
		}
		fn(docs, err)
	}

	go func() {
		defer close(s.done)

		deliver(fetch(ctx))
		for {
			select {
			case <-ctx.Done():
				return
			case err, ok := <-signals:
				if !ok {
					deliver(nil, unavailable("subscribe", errFeedClosed))
					return
				}
				if err != nil {
					deliver(nil, err)
					continue
				}
				deliver(fetch(ctx))
			}
		}
	}()

	return s
}

// sleepCtx waits for d or until ctx is done, reporting whether it slept the
// full duration.
func sleepCtx(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
