package payment_test

import (
	"errors"
	"log/slog"
	"os"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	apperrors "github.com/lalunalounge/restaurant-ordering/internal"
	"github.com/lalunalounge/restaurant-ordering/internal/core/datamodel/order"
	"github.com/lalunalounge/restaurant-ordering/internal/core/events"
	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
	paymentPkg "github.com/lalunalounge/restaurant-ordering/internal/payment"
)

const (
	testPassphrase = "jt7NOE43FZPn"
	gatewayIP      = "197.97.145.150"
)

// Mock repository for testing
type mockOrderRepository struct {
	mu sync.Mutex

	orders        map[string]*order.Order
	notifications []*order.PaymentNotification

	stockDecrements []string

	getError          error
	markError         error
	notificationError error
	stockError        error
}

func newMockOrderRepository() *mockOrderRepository {
	return &mockOrderRepository{orders: make(map[string]*order.Order)}
}

func (m *mockOrderRepository) put(o *order.Order) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.orders[o.ID] = o
}

func (m *mockOrderRepository) GetOrderByID(id string) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getError != nil {
		return nil, m.getError
	}
	o, exists := m.orders[id]
	if !exists {
		return nil, errors.New("record not found")
	}
	copied := *o
	return &copied, nil
}

func (m *mockOrderRepository) SetCheckoutIssued(orderID, mPaymentID string, from []string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markError != nil {
		return false, m.markError
	}
	o, exists := m.orders[orderID]
	if !exists || !statusIn(o.Status, from) {
		return false, nil
	}
	o.Status = order.StatusAwaitingConfirmation
	o.MPaymentID = &mPaymentID
	return true, nil
}

func (m *mockOrderRepository) MarkPaid(orderID, gatewayPaymentID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markError != nil {
		return false, m.markError
	}
	o, exists := m.orders[orderID]
	if !exists || !statusIn(o.Status, []string{order.StatusPending, order.StatusAwaitingConfirmation}) {
		return false, nil
	}
	o.Status = order.StatusPaid
	o.GatewayPaymentID = &gatewayPaymentID
	return true, nil
}

func (m *mockOrderRepository) MarkFailed(orderID string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.markError != nil {
		return false, m.markError
	}
	o, exists := m.orders[orderID]
	if !exists || !statusIn(o.Status, []string{order.StatusPending, order.StatusAwaitingConfirmation}) {
		return false, nil
	}
	o.Status = order.StatusFailed
	return true, nil
}

func (m *mockOrderRepository) CreateNotification(n *order.PaymentNotification) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.notificationError != nil {
		return m.notificationError
	}
	m.notifications = append(m.notifications, n)
	return nil
}

func (m *mockOrderRepository) DecrementStock(orderID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stockError != nil {
		return m.stockError
	}
	m.stockDecrements = append(m.stockDecrements, orderID)
	return nil
}

func (m *mockOrderRepository) orderStatus(id string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.orders[id].Status
}

func (m *mockOrderRepository) notificationCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.notifications)
}

func (m *mockOrderRepository) decrementCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.stockDecrements)
}

func statusIn(status string, set []string) bool {
	for _, s := range set {
		if s == status {
			return true
		}
	}
	return false
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func newTestService(repo *mockOrderRepository) (*paymentPkg.Service, *events.EventBus) {
	logger := quietLogger()

	gateway, err := payfast.NewService(payfast.Config{
		MerchantID:  "10000100",
		MerchantKey: "46f0cd694581a",
		Passphrase:  testPassphrase,
		Sandbox:     true,
	}, logger)
	Expect(err).ToNot(HaveOccurred())

	eventBus := events.NewEventBus(logger)
	svc := paymentPkg.NewService(gateway, repo, eventBus, "https://lalunalounge.example", logger)
	return svc, eventBus
}

func pendingOrder(id string) *order.Order {
	return &order.Order{
		ID:          id,
		UserID:      "U-7",
		Status:      order.StatusPending,
		TotalAmount: 149.9,
		ItemName:    "La Luna Lounge Order",
	}
}

// signedITN builds a notification signed the way the gateway signs
// callbacks: every field sorted, configured passphrase appended.
func signedITN(orderID, status, amountGross string) payfast.Notification {
	fields := map[string]string{
		"m_payment_id":   "llo-" + orderID + "-1719830000000",
		"pf_payment_id":  "1089250",
		"payment_status": status,
		"amount_gross":   amountGross,
		"custom_str1":    orderID,
		"custom_str2":    "U-7",
		"merchant_id":    "10000100",
	}
	fields["signature"] = payfast.Sign(fields, payfast.Lexicographic, testPassphrase)
	return payfast.NotificationFromMap(fields)
}

var _ = Describe("PaymentService", func() {
	var (
		repo *mockOrderRepository
		svc  *paymentPkg.Service
		bus  *events.EventBus
	)

	BeforeEach(func() {
		repo = newMockOrderRepository()
		svc, bus = newTestService(repo)
	})

	Describe("CreateCheckout", func() {
		Context("when the order is pending", func() {
			It("should issue a signed checkout and move the order to awaiting_confirmation", func() {
				repo.put(pendingOrder("ORD-42"))

				resp, err := svc.CreateCheckout(&paymentPkg.CreatePaymentRequest{OrderID: "ORD-42"})

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.PaymentURL).To(Equal("https://sandbox.payfast.co.za/eng/process"))
				Expect(resp.PaymentData.CustomStr1).To(Equal("ORD-42"))
				Expect(resp.PaymentData.Amount).To(Equal("149.90"))
				Expect(resp.PaymentData.NotifyURL).To(Equal("https://lalunalounge.example/api/v1/payments/notify"))
				Expect(resp.PaymentData.Signature).ToNot(BeEmpty())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusAwaitingConfirmation))
			})
		})

		Context("when the order does not exist", func() {
			It("should return order not found", func() {
				_, err := svc.CreateCheckout(&paymentPkg.CreatePaymentRequest{OrderID: "missing"})
				Expect(err).To(Equal(apperrors.ErrOrderNotFound))
			})
		})

		Context("when the order is already paid", func() {
			It("should refuse checkout", func() {
				paid := pendingOrder("ORD-42")
				paid.Status = order.StatusPaid
				repo.put(paid)

				_, err := svc.CreateCheckout(&paymentPkg.CreatePaymentRequest{OrderID: "ORD-42"})
				Expect(err).To(Equal(apperrors.ErrOrderNotPayable))
			})
		})

		Context("when the request is invalid", func() {
			It("should return a validation error before touching the store", func() {
				_, err := svc.CreateCheckout(&paymentPkg.CreatePaymentRequest{OrderID: ""})
				appErr, ok := apperrors.IsAppError(err)
				Expect(ok).To(BeTrue())
				Expect(appErr.Type).To(Equal(apperrors.ErrorTypeValidation))
			})
		})
	})

	Describe("RetryCheckout", func() {
		Context("when the order has failed", func() {
			It("should issue a fresh checkout", func() {
				failed := pendingOrder("ORD-42")
				failed.Status = order.StatusFailed
				repo.put(failed)

				resp, err := svc.RetryCheckout(&paymentPkg.RetryPaymentRequest{OrderID: "ORD-42"})

				Expect(err).ToNot(HaveOccurred())
				Expect(resp.PaymentData.CustomStr1).To(Equal("ORD-42"))
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusAwaitingConfirmation))
			})
		})

		Context("when the order has not failed", func() {
			It("should refuse the retry", func() {
				repo.put(pendingOrder("ORD-42"))

				_, err := svc.RetryCheckout(&paymentPkg.RetryPaymentRequest{OrderID: "ORD-42"})
				Expect(err).To(Equal(apperrors.ErrOrderNotPayable))
			})
		})
	})

	Describe("ProcessNotification", func() {
		BeforeEach(func() {
			o := pendingOrder("ORD-42")
			o.Status = order.StatusAwaitingConfirmation
			repo.put(o)
		})

		Context("with a valid COMPLETE notification", func() {
			It("should mark the order paid and record the callback", func() {
				result, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusComplete, "149.90"), gatewayIP)

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Valid).To(BeTrue())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusPaid))
				Expect(repo.notificationCount()).To(Equal(1))
			})

			It("should publish a completion event that triggers fulfillment", func() {
				handler := paymentPkg.NewEventHandler(repo, quietLogger())
				handler.RegisterEventHandlers(bus)

				_, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusComplete, "149.90"), gatewayIP)
				Expect(err).ToNot(HaveOccurred())

				Eventually(repo.decrementCount).Should(Equal(1))
			})
		})

		Context("with a duplicate delivery for a paid order", func() {
			It("should acknowledge without changing anything", func() {
				itn := signedITN("ORD-42", payfast.StatusComplete, "149.90")

				_, err := svc.ProcessNotification(itn, gatewayIP)
				Expect(err).ToNot(HaveOccurred())

				result, err := svc.ProcessNotification(itn, gatewayIP)
				Expect(err).ToNot(HaveOccurred())
				Expect(result.Valid).To(BeTrue())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusPaid))
				Expect(repo.notificationCount()).To(Equal(2))
			})
		})

		Context("with a FAILED notification", func() {
			It("should mark the order failed", func() {
				result, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusFailed, "149.90"), gatewayIP)

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Valid).To(BeTrue())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusFailed))
			})
		})

		Context("with a CANCELLED notification", func() {
			It("should treat it as a failure, never a payment", func() {
				_, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusCancelled, "149.90"), gatewayIP)

				Expect(err).ToNot(HaveOccurred())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusFailed))
			})
		})

		Context("with a mismatched amount", func() {
			It("should reject reconciliation and leave the order untouched", func() {
				result, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusComplete, "1.00"), gatewayIP)

				Expect(result.Valid).To(BeTrue())
				Expect(err).To(Equal(apperrors.ErrAmountMismatch))
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusAwaitingConfirmation))
			})
		})

		Context("with an invalid signature", func() {
			It("should record the callback for audit but not reconcile", func() {
				fields := signedITN("ORD-42", payfast.StatusComplete, "149.90").Fields()
				fields["amount_gross"] = "0.01"

				result, err := svc.ProcessNotification(payfast.NotificationFromMap(fields), gatewayIP)

				Expect(err).ToNot(HaveOccurred())
				Expect(result.Valid).To(BeFalse())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusAwaitingConfirmation))
				Expect(repo.notificationCount()).To(Equal(1))
			})
		})

		Context("for an unknown order", func() {
			It("should return order not found after recording the callback", func() {
				_, err := svc.ProcessNotification(signedITN("missing", payfast.StatusComplete, "149.90"), gatewayIP)

				Expect(err).To(Equal(apperrors.ErrOrderNotFound))
				Expect(repo.notificationCount()).To(Equal(1))
			})
		})

		Context("when the audit write fails", func() {
			It("should still reconcile a valid notification", func() {
				repo.notificationError = errors.New("disk full")

				_, err := svc.ProcessNotification(signedITN("ORD-42", payfast.StatusComplete, "149.90"), gatewayIP)

				Expect(err).ToNot(HaveOccurred())
				Expect(repo.orderStatus("ORD-42")).To(Equal(order.StatusPaid))
			})
		})
	})

	Describe("GetOrderPayment", func() {
		It("should return the payment view for an existing order", func() {
			repo.put(pendingOrder("ORD-42"))

			view, err := svc.GetOrderPayment("ORD-42")

			Expect(err).ToNot(HaveOccurred())
			Expect(view.OrderID).To(Equal("ORD-42"))
			Expect(view.Status).To(Equal(order.StatusPending))
			Expect(view.TotalAmount).To(Equal(149.9))
		})

		It("should return order not found otherwise", func() {
			_, err := svc.GetOrderPayment("missing")
			Expect(err).To(Equal(apperrors.ErrOrderNotFound))
		})
	})
})
