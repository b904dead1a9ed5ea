package payment

import (
	"time"

	"github.com/lalunalounge/restaurant-ordering/internal/core/common/validation"
	"github.com/lalunalounge/restaurant-ordering/internal/core/datamodel/order"
	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
)

// CustomerDetails is the optional customer info forwarded to the
// gateway's checkout page.
type CustomerDetails struct {
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// CreatePaymentRequest starts a checkout for an existing order.
type CreatePaymentRequest struct {
	OrderID  string          `json:"order_id"`
	Customer CustomerDetails `json:"customer"`
}

func (r *CreatePaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required().MaxLength(64)
	validator.Field("customer.email", r.Customer.Email).Email()

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// RetryPaymentRequest restarts checkout for a failed order.
type RetryPaymentRequest struct {
	OrderID  string          `json:"order_id"`
	Customer CustomerDetails `json:"customer"`
}

func (r *RetryPaymentRequest) Validate() error {
	validator := validation.NewValidator()

	validator.Field("order_id", r.OrderID).Required().MaxLength(64)

	if appErr := validator.Validate(); appErr != nil {
		return appErr
	}
	return nil
}

// CheckoutResponse is what the presentation layer turns into a redirect
// or auto-submitting form to the hosted checkout page.
type CheckoutResponse struct {
	PaymentURL  string               `json:"payment_url"`
	PaymentData *payfast.PaymentData `json:"payment_data"`
}

// OrderPaymentView is the read-only payment status of one order.
type OrderPaymentView struct {
	OrderID          string     `json:"order_id"`
	Status           string     `json:"status"`
	TotalAmount      float64    `json:"total_amount"`
	MPaymentID       *string    `json:"m_payment_id,omitempty"`
	GatewayPaymentID *string    `json:"gateway_payment_id,omitempty"`
	PaidAt           *time.Time `json:"paid_at,omitempty"`
}

func ToView(o *order.Order) *OrderPaymentView {
	return &OrderPaymentView{
		OrderID:          o.ID,
		Status:           o.Status,
		TotalAmount:      o.TotalAmount,
		MPaymentID:       o.MPaymentID,
		GatewayPaymentID: o.GatewayPaymentID,
		PaidAt:           o.PaidAt,
	}
}

// MapExternalStatus maps a gateway payment_status onto the order
// lifecycle. Anything that is not an explicit COMPLETE is a failure;
// unknown values must never accidentally mark an order paid.
func MapExternalStatus(gatewayStatus string) string {
	if gatewayStatus == payfast.StatusComplete {
		return order.StatusPaid
	}
	return order.StatusFailed
}
