package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/novandria/bankgateway/internal/core/events"
)

// EventHandler lets host-platform integrations observe settlement outcomes
// without polling order state.
type EventHandler struct {
	logger *slog.Logger
}

func NewEventHandler(logger *slog.Logger) *EventHandler {
	return &EventHandler{
		logger: logger,
	}
}

func (h *EventHandler) HandlePaymentCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}

	h.logger.Info("payment settled",
		"order_no", completed.OrderNo,
		"status_code", completed.StatusCode,
		"transaction_id", completed.TransactionID,
		"amount", completed.Amount,
		"currency", completed.Currency,
		"event_id", completed.EventID())

	return nil
}

func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	h.logger.Warn("payment failed",
		"order_no", failed.OrderNo,
		"status_code", failed.StatusCode,
		"reason", failed.Reason,
		"event_id", failed.EventID())

	return nil
}

func (h *EventHandler) HandlePaymentCancelled(ctx context.Context, event events.Event) error {
	cancelled, ok := event.(*events.PaymentCancelledEvent)
	if !ok {
		return fmt.Errorf("expected PaymentCancelledEvent, got %T", event)
	}

	h.logger.Info("payment cancelled",
		"order_no", cancelled.OrderNo,
		"status_code", cancelled.StatusCode,
		"reason", cancelled.Reason,
		"event_id", cancelled.EventID())

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)
	eventBus.Subscribe(events.EventTypePaymentCancelled, h.HandlePaymentCancelled)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{
			events.EventTypePaymentCompleted,
			events.EventTypePaymentFailed,
			events.EventTypePaymentCancelled,
		})
}
