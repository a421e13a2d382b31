// Package notify escalates engine events to the people running the shop.
// Notifications are best effort: a failed notification is logged and
// dropped, it never affects message handling.
package notify

import (
	"context"
	"log/slog"
)

// Notifier delivers an operational event to whoever is on duty.
type Notifier interface {
	Notify(ctx context.Context, event, detail string)
}

// Nop discards every notification.
type Nop struct{}

func (Nop) Notify(ctx context.Context, event, detail string) {}

// Multi fans a notification out to several sinks.
type Multi []Notifier

func (m Multi) Notify(ctx context.Context, event, detail string) {
	for _, n := range m {
		n.Notify(ctx, event, detail)
	}
}

// LogNotifier records events in the process log. Always present, so an
// unconfigured deployment still leaves a trace.
type LogNotifier struct {
	Logger *slog.Logger
}

func (l *LogNotifier) Notify(ctx context.Context, event, detail string) {
	l.Logger.Warn("operations event", "event", event, "detail", detail)
}
