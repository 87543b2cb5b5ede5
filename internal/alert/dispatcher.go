package alert

import (
	"context"
	"fmt"
)

// Dispatcher delivers a text message to a destination address such as a
// phone number.
type Dispatcher interface {
	Send(ctx context.Context, destination, message string) error
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(ctx context.Context, destination, message string) error

func (f DispatcherFunc) Send(ctx context.Context, destination, message string) error {
	return f(ctx, destination, message)
}

// DispatchError reports a failed delivery. It is logged and counted but
// never retried.
type DispatchError struct {
	Destination string
	Err         error
}

func (e *DispatchError) Error() string {
	return fmt.Sprintf("dispatch to %s failed: %v", e.Destination, e.Err)
}

func (e *DispatchError) Unwrap() error {
	return e.Err
}
