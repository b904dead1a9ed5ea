package order

import (
	"time"
)

// Order payment lifecycle. Paid and failed are terminal for the payment
// flow; only failed orders may re-enter checkout.
const (
	StatusPending              = "pending"
	StatusAwaitingConfirmation = "awaiting_confirmation"
	StatusPaid                 = "paid"
	StatusFailed               = "failed"
)

type Order struct {
	ID     string `gorm:"primaryKey;column:id"`
	UserID string `gorm:"column:user_id;not null"`

	Status      string  `gorm:"column:status;default:pending"`
	TotalAmount float64 `gorm:"column:total_amount;not null"`

	ItemName        string `gorm:"column:item_name;not null"`
	ItemDescription string `gorm:"column:item_description"`

	// Identifiers issued to / received from the payment gateway.
	MPaymentID       *string `gorm:"column:m_payment_id"`
	GatewayPaymentID *string `gorm:"column:gateway_payment_id"`

	PaidAt    *time.Time `gorm:"column:paid_at"`
	CreatedAt time.Time  `gorm:"column:created_at;default:now()"`
	UpdatedAt time.Time  `gorm:"column:updated_at;default:now()"`
}

func (Order) TableName() string {
	return "orders"
}

// Payable reports whether a checkout may be started for the order's
// current status. Failed orders are payable again via retry.
func (o *Order) Payable() bool {
	switch o.Status {
	case StatusPending, StatusAwaitingConfirmation, StatusFailed:
		return true
	}
	return false
}

// PaymentNotification is the audit record of one received gateway
// callback, valid or not. Raw payload is stored verbatim; it never
// contains merchant secrets.
type PaymentNotification struct {
	ID      int64  `gorm:"primaryKey"`
	OrderID string `gorm:"column:order_id;index"`

	MPaymentID       string `gorm:"column:m_payment_id"`
	GatewayPaymentID string `gorm:"column:gateway_payment_id"`
	PaymentStatus    string `gorm:"column:payment_status"`
	AmountGross      string `gorm:"column:amount_gross"`

	Valid      bool    `gorm:"column:valid"`
	Reason     *string `gorm:"column:reason"`
	SourceIP   string  `gorm:"column:source_ip"`
	RawPayload string  `gorm:"column:raw_payload;type:text"`

	CreatedAt time.Time `gorm:"column:created_at;default:now()"`
}

func (PaymentNotification) TableName() string {
	return "payment_notifications"
}
