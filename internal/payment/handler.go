package payment

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"

	errors "github.com/lalunalounge/restaurant-ordering/internal"
	"github.com/lalunalounge/restaurant-ordering/internal/transport"
)

type Handler struct {
	*transport.BaseHandler
	PaymentService ServiceAPI
	Logger         *slog.Logger
}

func NewHandler(baseHandler *transport.BaseHandler, paymentService ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler:    baseHandler,
		PaymentService: paymentService,
		Logger:         logger,
	}
}

// CreatePayment handles POST /api/v1/payments
func (h *Handler) CreatePayment(w http.ResponseWriter, r *http.Request) {
	var req CreatePaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("CreatePayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	resp, err := h.PaymentService.CreateCheckout(&req)
	if err != nil {
		h.Logger.Error("CreatePayment: service error", "error", err, "order_id", req.OrderID)
		h.HandleError(w, err)
		return
	}

	h.Logger.Info("CreatePayment: checkout created",
		"order_id", req.OrderID,
		"m_payment_id", resp.PaymentData.MPaymentID)

	h.WriteJSON(w, http.StatusOK, resp)
}

// RetryPayment handles POST /api/v1/payments/retry
func (h *Handler) RetryPayment(w http.ResponseWriter, r *http.Request) {
	var req RetryPaymentRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.Logger.Error("RetryPayment: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	resp, err := h.PaymentService.RetryCheckout(&req)
	if err != nil {
		h.Logger.Error("RetryPayment: service error", "error", err, "order_id", req.OrderID)
		h.HandleError(w, err)
		return
	}

	h.Logger.Info("RetryPayment: checkout reissued",
		"order_id", req.OrderID,
		"m_payment_id", resp.PaymentData.MPaymentID)

	h.WriteJSON(w, http.StatusOK, resp)
}

// GetOrderPayment handles GET /api/v1/orders/{id}/payment
func (h *Handler) GetOrderPayment(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")
	if orderID == "" {
		h.HandleError(w, errors.NewValidationError("order id is required", errors.ErrCodeValidationFailed))
		return
	}

	view, err := h.PaymentService.GetOrderPayment(orderID)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, view)
}
