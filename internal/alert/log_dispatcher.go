package alert

import (
	"context"
	"log/slog"
)

// LogDispatcher writes alerts to the log instead of delivering them.
type LogDispatcher struct {
	logger *slog.Logger
}

func NewLogDispatcher(logger *slog.Logger) *LogDispatcher {
	return &LogDispatcher{logger: logger}
}

func (d *LogDispatcher) Send(ctx context.Context, destination, message string) error {
	d.logger.InfoContext(ctx, "⚠️ low stock alert", "destination", destination, "message", message)
	return nil
}
