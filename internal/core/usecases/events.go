package usecases

import (
	"context"
	"log/slog"
	"time"

	"github.com/samirrijal/brooks/internal/core/domain"
	"github.com/samirrijal/brooks/internal/core/ports"
)

const publishTimeout = 2 * time.Second

// publish records a session event. Failures are logged and never surfaced:
// the audit trail must not affect the session.
func publish(ctx context.Context, p ports.EventPublisher, logger *slog.Logger, t domain.SessionEventType, fields map[string]string) {
	if p == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), publishTimeout)
	defer cancel()

	ev := &domain.SessionEvent{Type: t, At: time.Now().UTC(), Fields: fields}
	if err := p.PublishSessionEvent(ctx, ev); err != nil {
		logger.Warn("publish session event failed", "type", string(t), "error", err)
	}
}

// notifier fans a change signal out to subscribers.
type notifier struct {
	fns []func()
}

func (n *notifier) add(fn func()) { n.fns = append(n.fns, fn) }

func (n *notifier) snapshot() []func() {
	return append([]func(){}, n.fns...)
}

func fire(fns []func()) {
	for _, fn := range fns {
		fn()
	}
}
