package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypePaymentCompleted = "payment.completed"
	EventTypePaymentFailed    = "payment.failed"
)

type PaymentCompletedEvent struct {
	BaseEvent
	OrderID          string `json:"order_id"`
	UserID           string `json:"user_id"`
	MPaymentID       string `json:"m_payment_id"`
	GatewayPaymentID string `json:"gateway_payment_id"`
	AmountGross      string `json:"amount_gross"`
}

func NewPaymentCompletedEvent(orderID, userID, mPaymentID, gatewayPaymentID, amountGross string) *PaymentCompletedEvent {
	return &PaymentCompletedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentCompleted,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":           orderID,
				"user_id":            userID,
				"m_payment_id":       mPaymentID,
				"gateway_payment_id": gatewayPaymentID,
				"amount_gross":       amountGross,
			},
		},
		OrderID:          orderID,
		UserID:           userID,
		MPaymentID:       mPaymentID,
		GatewayPaymentID: gatewayPaymentID,
		AmountGross:      amountGross,
	}
}

type PaymentFailedEvent struct {
	BaseEvent
	OrderID       string `json:"order_id"`
	UserID        string `json:"user_id"`
	MPaymentID    string `json:"m_payment_id"`
	PaymentStatus string `json:"payment_status"`
}

func NewPaymentFailedEvent(orderID, userID, mPaymentID, paymentStatus string) *PaymentFailedEvent {
	return &PaymentFailedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentFailed,
			Timestamp: time.Now(),
			Data: map[string]interface{}{
				"order_id":       orderID,
				"user_id":        userID,
				"m_payment_id":   mPaymentID,
				"payment_status": paymentStatus,
			},
		},
		OrderID:       orderID,
		UserID:        userID,
		MPaymentID:    mPaymentID,
		PaymentStatus: paymentStatus,
	}
}
