// Package notify delivers device pushes synthesized by the engine. Pushes are
// dispatched to all registered senders: the push gateway that reaches user
// devices, plus optional ops channels (Telegram) that mirror the same alerts
// for the operations team.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/tablr/orderwatch/internal/domain"
)

// Sender is one delivery channel for a push notification.
type Sender interface {
	// Send delivers the push. Delivery is treated as reliable once this
	// returns nil; there is no retry layer above it.
	Send(ctx context.Context, n domain.PushNotification) error
	// Name returns a human-readable identifier for the sender (e.g. "push").
	Name() string
}

// Dispatcher fans a push out to all registered senders. It satisfies the
// engine's dispatch contract: the engine hands over each synthesized push
// exactly once and does not track delivery.
type Dispatcher struct {
	senders []Sender
	logger  *slog.Logger
}

// NewDispatcher creates a Dispatcher that delivers to the given senders.
func NewDispatcher(senders []Sender, logger *slog.Logger) *Dispatcher {
	return &Dispatcher{
		senders: senders,
		logger:  logger.With(slog.String("component", "dispatcher")),
	}
}

// Schedule delivers the push to every sender. Errors from individual senders
// are collected and returned as a combined error; a single sender failure does
// not prevent delivery to the remaining senders.
func (d *Dispatcher) Schedule(ctx context.Context, n domain.PushNotification) error {
	if len(d.senders) == 0 {
		return nil
	}

	var errs []string
	for _, s := range d.senders {
		if err := s.Send(ctx, n); err != nil {
			d.logger.ErrorContext(ctx, "sender failed",
				slog.String("sender", s.Name()),
				slog.String("order_id", n.Data.OrderID),
				slog.String("error", err.Error()),
			)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		} else {
			d.logger.DebugContext(ctx, "push sent",
				slog.String("sender", s.Name()),
				slog.String("title", n.Title),
			)
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
