// Package notification defines the sink the engine emits lifecycle events
// into. Delivery is best effort: transitions commit first, and a failed
// notification is logged and swallowed, never rolled back into the
// transition.
package notification

import (
	"context"
	"log/slog"

	redisx "github.com/pawcall/pawcall/internal/redis"
)

// Event types emitted by the engine.
const (
	TypeOrderCreated  = "order_created"
	TypeOrderAssigned = "order_assigned"
	TypeOrderStatus   = "order_status"
	TypeOrderCancel   = "order_cancelled"
)

type Notifier interface {
	Notify(ctx context.Context, userID, typ, title, body string, data map[string]any) error
}

// LogNotifier writes events to the process log only. Used in tests and when
// redis is not configured.
type LogNotifier struct {
	logger *slog.Logger
}

func NewLogNotifier(logger *slog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Notify(_ context.Context, userID, typ, title, _ string, _ map[string]any) error {
	n.logger.Info("notification",
		slog.String("user_id", userID),
		slog.String("type", typ),
		slog.String("title", title),
	)
	return nil
}

// PubSubNotifier publishes events onto the redis notifications channel where
// delivery workers pick them up.
type PubSubNotifier struct {
	ps *redisx.NotificationsPubSub
}

func NewPubSubNotifier(ps *redisx.NotificationsPubSub) *PubSubNotifier {
	return &PubSubNotifier{ps: ps}
}

func (n *PubSubNotifier) Notify(ctx context.Context, userID, typ, title, body string, data map[string]any) error {
	return n.ps.Publish(ctx, userID, typ, title, body, data)
}
