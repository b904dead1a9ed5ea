package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	errors "github.com/lalunalounge/restaurant-ordering/internal"
	"github.com/lalunalounge/restaurant-ordering/internal/core/datamodel/order"
	"github.com/lalunalounge/restaurant-ordering/internal/core/events"
	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
)

// RepositoryAPI is the order-store boundary this service reconciles
// against. Status transitions are compare-and-swap at the store so
// concurrent duplicate notifications serialize there, not here.
type RepositoryAPI interface {
	GetOrderByID(id string) (*order.Order, error)
	// SetCheckoutIssued records the issued m_payment_id and moves the
	// order to awaiting_confirmation, but only from one of the given
	// statuses. Returns false when the order was in none of them.
	SetCheckoutIssued(orderID, mPaymentID string, from []string) (bool, error)
	// MarkPaid transitions to paid from a non-terminal status. Returns
	// false when no row changed (already paid, failed, or missing).
	MarkPaid(orderID, gatewayPaymentID string) (bool, error)
	// MarkFailed transitions to failed from a non-terminal status.
	MarkFailed(orderID string) (bool, error)
	CreateNotification(n *order.PaymentNotification) error
	// DecrementStock releases the menu stock reserved by a paid order.
	DecrementStock(orderID string) error
}

// ServiceAPI is the surface the HTTP handlers consume.
type ServiceAPI interface {
	CreateCheckout(req *CreatePaymentRequest) (*CheckoutResponse, error)
	RetryCheckout(req *RetryPaymentRequest) (*CheckoutResponse, error)
	ProcessNotification(n payfast.Notification, sourceIP string) (payfast.VerificationResult, error)
	GetOrderPayment(orderID string) (*OrderPaymentView, error)
}

// Service owns checkout creation and notification reconciliation for
// restaurant orders.
type Service struct {
	gateway    *payfast.Service
	repository RepositoryAPI
	eventBus   *events.EventBus
	baseURL    string
	logger     *slog.Logger
}

func NewService(gateway *payfast.Service, repository RepositoryAPI, eventBus *events.EventBus, baseURL string, logger *slog.Logger) *Service {
	return &Service{
		gateway:    gateway,
		repository: repository,
		eventBus:   eventBus,
		baseURL:    strings.TrimRight(baseURL, "/"),
		logger:     logger,
	}
}

// CreateCheckout builds a signed checkout request for a payable order
// and moves it to awaiting_confirmation.
func (s *Service) CreateCheckout(req *CreatePaymentRequest) (*CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ord, err := s.repository.GetOrderByID(strings.TrimSpace(req.OrderID))
	if err != nil {
		s.logger.Error("order not found for checkout", "order_id", req.OrderID, "error", err)
		return nil, errors.ErrOrderNotFound
	}

	if !ord.Payable() {
		s.logger.Warn("checkout refused for non-payable order",
			"order_id", ord.ID, "status", ord.Status)
		return nil, errors.ErrOrderNotPayable
	}

	return s.issueCheckout(ord, req.Customer, []string{
		order.StatusPending, order.StatusAwaitingConfirmation, order.StatusFailed,
	})
}

// RetryCheckout rebuilds checkout for an order whose previous payment
// attempt failed.
func (s *Service) RetryCheckout(req *RetryPaymentRequest) (*CheckoutResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	ord, err := s.repository.GetOrderByID(strings.TrimSpace(req.OrderID))
	if err != nil {
		s.logger.Error("order not found for payment retry", "order_id", req.OrderID, "error", err)
		return nil, errors.ErrOrderNotFound
	}

	if ord.Status != order.StatusFailed {
		s.logger.Warn("payment retry refused",
			"order_id", ord.ID, "status", ord.Status)
		return nil, errors.ErrOrderNotPayable
	}

	return s.issueCheckout(ord, req.Customer, []string{order.StatusFailed})
}

func (s *Service) issueCheckout(ord *order.Order, customer CustomerDetails, from []string) (*CheckoutResponse, error) {
	data, err := s.gateway.BuildPaymentData(payfast.CheckoutParams{
		OrderID:           ord.ID,
		UserID:            ord.UserID,
		Amount:            ord.TotalAmount,
		ItemName:          ord.ItemName,
		ItemDescription:   ord.ItemDescription,
		CustomerFirstName: customer.FirstName,
		CustomerLastName:  customer.LastName,
		CustomerEmail:     customer.Email,
		CustomerPhone:     customer.Phone,
		ReturnURL:         s.baseURL + "/payment/success",
		CancelURL:         s.baseURL + "/payment/cancelled",
		NotifyURL:         s.baseURL + "/api/v1/payments/notify",
	})
	if err != nil {
		return nil, err
	}

	applied, err := s.repository.SetCheckoutIssued(ord.ID, data.MPaymentID, from)
	if err != nil {
		s.logger.Error("failed to record issued checkout", "order_id", ord.ID, "error", err)
		return nil, errors.NewInternalError("failed to record checkout", err)
	}
	if !applied {
		return nil, errors.ErrOrderNotPayable
	}

	s.logger.Info("checkout issued",
		"order_id", ord.ID,
		"m_payment_id", data.MPaymentID,
		"amount", data.Amount)

	return &CheckoutResponse{
		PaymentURL:  s.gateway.ProcessURL(),
		PaymentData: data,
	}, nil
}

// ProcessNotification verifies one inbound notification, records it for
// audit regardless of the outcome, and reconciles the order state when
// the signature holds. The returned VerificationResult tells the handler
// how to acknowledge; err is non-nil only for reconciliation failures on
// a verified notification.
func (s *Service) ProcessNotification(n payfast.Notification, sourceIP string) (payfast.VerificationResult, error) {
	result := s.gateway.VerifyNotification(n, sourceIP)

	s.recordNotification(result, n, sourceIP)

	if !result.Valid {
		return result, nil
	}

	if result.OrderID == "" {
		s.logger.Error("verified notification carries no order id",
			"m_payment_id", result.MPaymentID)
		return result, errors.ErrOrderNotFound
	}

	return result, s.reconcile(result)
}

// reconcile applies the verified callback to the order store. The
// transition is idempotent: delivery is at-least-once and duplicates for
// an already-resolved order must succeed without effect.
func (s *Service) reconcile(result payfast.VerificationResult) error {
	ord, err := s.repository.GetOrderByID(result.OrderID)
	if err != nil {
		s.logger.Error("order not found for verified notification",
			"order_id", result.OrderID, "error", err)
		return errors.ErrOrderNotFound
	}

	if ord.Status == order.StatusPaid {
		s.logger.Info("duplicate notification for paid order, no-op",
			"order_id", ord.ID,
			"m_payment_id", result.MPaymentID)
		return nil
	}

	// The signature proves who sent the amount, not that it matches
	// what we asked for. Cross-check against the stored total before
	// trusting it.
	if result.AmountGross != "" {
		stored, err := payfast.FormatAmount(ord.TotalAmount)
		if err != nil {
			return errors.NewInternalError("stored order total is invalid", err)
		}
		if result.AmountGross != stored {
			s.logger.Error("notification amount does not match order total",
				"order_id", ord.ID,
				"amount_gross", result.AmountGross,
				"order_total", stored)
			return errors.ErrAmountMismatch
		}
	}

	if MapExternalStatus(result.PaymentStatus) == order.StatusPaid {
		return s.markPaid(ord, result)
	}
	return s.markFailed(ord, result)
}

func (s *Service) markPaid(ord *order.Order, result payfast.VerificationResult) error {
	applied, err := s.repository.MarkPaid(ord.ID, result.GatewayPaymentID)
	if err != nil {
		return errors.NewInternalError("failed to mark order paid", err)
	}
	if !applied {
		// Lost the race to a concurrent delivery. If the other won with
		// paid this is the duplicate no-op case; anything else is worth
		// a warning but not a retry storm.
		s.logger.Warn("paid transition not applied",
			"order_id", ord.ID,
			"m_payment_id", result.MPaymentID)
		return nil
	}

	s.logger.Info("order paid",
		"order_id", ord.ID,
		"user_id", result.UserID,
		"m_payment_id", result.MPaymentID,
		"pf_payment_id", result.GatewayPaymentID,
		"amount_gross", result.AmountGross)

	event := events.NewPaymentCompletedEvent(
		ord.ID, result.UserID, result.MPaymentID, result.GatewayPaymentID, result.AmountGross)
	s.eventBus.Publish(context.Background(), event)

	return nil
}

func (s *Service) markFailed(ord *order.Order, result payfast.VerificationResult) error {
	applied, err := s.repository.MarkFailed(ord.ID)
	if err != nil {
		return errors.NewInternalError("failed to mark order failed", err)
	}
	if !applied {
		s.logger.Info("failed transition not applied, order already resolved",
			"order_id", ord.ID,
			"payment_status", result.PaymentStatus)
		return nil
	}

	s.logger.Info("order payment failed",
		"order_id", ord.ID,
		"payment_status", result.PaymentStatus,
		"m_payment_id", result.MPaymentID)

	event := events.NewPaymentFailedEvent(ord.ID, result.UserID, result.MPaymentID, result.PaymentStatus)
	s.eventBus.Publish(context.Background(), event)

	return nil
}

// recordNotification writes the audit row for a received callback.
// Failures here are logged and swallowed: a broken audit trail must not
// turn a valid payment notification into a gateway-visible error.
func (s *Service) recordNotification(result payfast.VerificationResult, n payfast.Notification, sourceIP string) {
	payload, err := json.Marshal(n.Fields())
	if err != nil {
		payload = []byte(fmt.Sprintf("%v", n.Fields()))
	}

	record := &order.PaymentNotification{
		OrderID:          strings.TrimSpace(n.Get("custom_str1")),
		MPaymentID:       strings.TrimSpace(n.Get("m_payment_id")),
		GatewayPaymentID: strings.TrimSpace(n.Get("pf_payment_id")),
		PaymentStatus:    strings.TrimSpace(n.Get("payment_status")),
		AmountGross:      strings.TrimSpace(n.Get("amount_gross")),
		Valid:            result.Valid,
		SourceIP:         sourceIP,
		RawPayload:       string(payload),
		CreatedAt:        time.Now().UTC(),
	}
	if result.Reason != "" {
		reason := result.Reason
		record.Reason = &reason
	}

	if err := s.repository.CreateNotification(record); err != nil {
		s.logger.Error("failed to record payment notification",
			"order_id", record.OrderID,
			"error", err)
	}
}

// GetOrderPayment returns the read-only payment status of an order.
func (s *Service) GetOrderPayment(orderID string) (*OrderPaymentView, error) {
	ord, err := s.repository.GetOrderByID(strings.TrimSpace(orderID))
	if err != nil {
		return nil, errors.ErrOrderNotFound
	}
	return ToView(ord), nil
}
