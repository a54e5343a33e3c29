package notification

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/mfs-pay/mfs_pay/internal/money"
)

const (
	// KindMoneyMoved is published when an immediate operation completes.
	KindMoneyMoved = "money.moved"
	// KindRequestCreated is published when a two-phase request is recorded.
	KindRequestCreated = "request.created"
	// KindRequestConfirmed is published when a pending request settles.
	KindRequestConfirmed = "request.confirmed"
	// KindRequestDeclined is published when a pending request is declined or expires.
	KindRequestDeclined = "request.declined"
)

// Message describes a notification payload.
type Message struct {
	Kind        string      `json:"kind"`
	Operation   string      `json:"operation"`
	EntryID     string      `json:"entry_id"`
	Sender      string      `json:"sender"`
	Destination string      `json:"destination"`
	Amount      money.Money `json:"amount"`
	Fee         money.Money `json:"fee"`
	Body        string      `json:"body"`
	OccurredAt  time.Time   `json:"occurred_at"`
}

// Notifier delivers notifications to downstream systems.
type Notifier interface {
	Send(ctx context.Context, message Message) error
}

// LoggerNotifier writes notifications to the structured logger.
type LoggerNotifier struct {
	logger *slog.Logger
}

// NewLoggerNotifier constructs a logging notifier.
func NewLoggerNotifier(logger *slog.Logger) *LoggerNotifier {
	return &LoggerNotifier{logger: logger}
}

// Send writes the message to the structured logger.
func (n *LoggerNotifier) Send(ctx context.Context, message Message) error {
	if n == nil || n.logger == nil {
		return nil
	}
	n.logger.InfoContext(ctx, "notification",
		slog.String("kind", message.Kind),
		slog.String("operation", message.Operation),
		slog.String("entry_id", message.EntryID),
		slog.String("sender", message.Sender),
		slog.String("destination", message.Destination),
		slog.String("amount", message.Amount.String()),
		slog.String("body", message.Body),
	)
	return nil
}

// Multi fans a message out to every notifier and joins their errors.
type Multi []Notifier

// Send delivers to all notifiers even when one fails.
func (m Multi) Send(ctx context.Context, message Message) error {
	var errs []error
	for _, n := range m {
		if n == nil {
			continue
		}
		if err := n.Send(ctx, message); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
