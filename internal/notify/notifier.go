// Package notify pushes operator alerts for relay events over Telegram and
// Discord. Delivery is best-effort; the relay never blocks on a channel.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
)

// Event names operators can subscribe to.
const (
	EventOrderCreated    = "order_created"
	EventTradesCancelled = "trades_cancelled"
	EventError           = "error"
)

// Sender is one delivery channel.
type Sender interface {
	// Send delivers a notification with the given title and message body.
	Send(ctx context.Context, title, message string) error
	// Name returns a human-readable identifier for the sender.
	Name() string
}

// Notifier fans relay events out to the configured senders, filtered by the
// allowed event set.
type Notifier struct {
	senders []Sender
	events  map[string]bool
	logger  *slog.Logger
}

// NewNotifier creates a Notifier delivering to the given senders. Only events
// listed in events are forwarded; an empty list allows everything.
func NewNotifier(senders []Sender, events []string, logger *slog.Logger) *Notifier {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		allowed[strings.TrimSpace(e)] = true
	}
	return &Notifier{
		senders: senders,
		events:  allowed,
		logger:  logger.With(slog.String("component", "notifier")),
	}
}

// OrderCreated announces a newly mirrored order.
func (n *Notifier) OrderCreated(ctx context.Context, orderID string, chainID uint64) {
	n.notify(ctx, EventOrderCreated, "Order created",
		fmt.Sprintf("Order %s on chain %d", orderID, chainID))
}

// TradesCancelled announces the result of an expiry sweep.
func (n *Notifier) TradesCancelled(ctx context.Context, cancelled int, totalCostWei string) {
	n.notify(ctx, EventTradesCancelled, "Expired trades cancelled",
		fmt.Sprintf("Cancelled %d trade(s), gas spent: %s wei", cancelled, totalCostWei))
}

// Error announces an operational failure operators should look at.
func (n *Notifier) Error(ctx context.Context, msg string) {
	n.notify(ctx, EventError, "Relay error", msg)
}

// notify dispatches to every sender when the event passes the filter. Sender
// failures are logged, never returned; an alert channel outage must not
// disturb relay operation.
func (n *Notifier) notify(ctx context.Context, event, title, message string) {
	if len(n.events) > 0 && !n.events[event] {
		return
	}

	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Warn("notification delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", event),
				slog.String("error", err.Error()))
		}
	}
}
