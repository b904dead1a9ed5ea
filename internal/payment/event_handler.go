package payment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/lalunalounge/restaurant-ordering/internal/core/events"
)

// EventHandler runs post-payment side effects off the event bus so the
// notification endpoint can acknowledge the gateway without waiting on
// fulfillment.
type EventHandler struct {
	repository RepositoryAPI
	logger     *slog.Logger
}

func NewEventHandler(repository RepositoryAPI, logger *slog.Logger) *EventHandler {
	return &EventHandler{
		repository: repository,
		logger:     logger,
	}
}

// HandlePaymentCompleted releases reserved stock once an order is paid.
// Payment events fire only when the paid transition actually applied,
// so a duplicate notification never decrements twice.
func (h *EventHandler) HandlePaymentCompleted(ctx context.Context, event events.Event) error {
	completed, ok := event.(*events.PaymentCompletedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment completed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentCompletedEvent, got %T", event)
	}

	h.logger.Info("handling payment completed event",
		"order_id", completed.OrderID,
		"event_id", completed.EventID())

	if err := h.repository.DecrementStock(completed.OrderID); err != nil {
		h.logger.Error("failed to decrement stock for paid order",
			"error", err,
			"order_id", completed.OrderID,
			"event_id", completed.EventID())
		return fmt.Errorf("stock decrement failed for order %s: %w", completed.OrderID, err)
	}

	h.logger.Info("stock decremented for paid order",
		"order_id", completed.OrderID,
		"event_id", completed.EventID())

	return nil
}

// HandlePaymentFailed records failures for operator visibility; stock
// was never released for these orders so there is nothing to restore.
func (h *EventHandler) HandlePaymentFailed(ctx context.Context, event events.Event) error {
	failed, ok := event.(*events.PaymentFailedEvent)
	if !ok {
		h.logger.Error("invalid event type for payment failed handler", "event_type", event.EventType())
		return fmt.Errorf("expected PaymentFailedEvent, got %T", event)
	}

	h.logger.Warn("payment failed for order",
		"order_id", failed.OrderID,
		"payment_status", failed.PaymentStatus,
		"event_id", failed.EventID())

	return nil
}

func (h *EventHandler) RegisterEventHandlers(eventBus *events.EventBus) {
	eventBus.Subscribe(events.EventTypePaymentCompleted, h.HandlePaymentCompleted)
	eventBus.Subscribe(events.EventTypePaymentFailed, h.HandlePaymentFailed)

	h.logger.Info("payment event handlers registered",
		"handlers", []string{events.EventTypePaymentCompleted, events.EventTypePaymentFailed})
}
