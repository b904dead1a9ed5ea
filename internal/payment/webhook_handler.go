package payment

import (
	"log/slog"
	"net"
	"net/http"
	"strings"

	"github.com/lalunalounge/restaurant-ordering/internal/payfast"
	"github.com/lalunalounge/restaurant-ordering/internal/transport"
)

// WebhookHandler terminates the gateway's asynchronous payment
// notifications. Everything arriving here is attacker-reachable;
// nothing is trusted until the verifier says so.
type WebhookHandler struct {
	*transport.BaseHandler
	paymentService ServiceAPI
	logger         *slog.Logger
}

func NewWebhookHandler(baseHandler *transport.BaseHandler, paymentService ServiceAPI, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:    baseHandler,
		paymentService: paymentService,
		logger:         logger,
	}
}

type notifyResponse struct {
	Status string `json:"status"`
}

// HandleNotify handles POST /api/v1/payments/notify. The gateway sends
// form-encoded fields and retries until it sees a 200, so only a
// reconciliation failure on a verified notification returns 5xx.
func (h *WebhookHandler) HandleNotify(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.logger.Error("notify: failed to parse form body", "error", err)
		h.WriteError(w, http.StatusBadRequest, "invalid form body")
		return
	}

	notification := payfast.ParseNotification(r.PostForm)
	sourceIP := clientIP(r)

	h.logger.Info("payment notification received",
		"m_payment_id", notification.Get("m_payment_id"),
		"payment_status", notification.Get("payment_status"),
		"source_ip", sourceIP)

	result, err := h.paymentService.ProcessNotification(notification, sourceIP)
	if !result.Valid {
		h.logger.Warn("payment notification rejected",
			"reason", result.Reason,
			"source_ip", sourceIP)
		h.WriteError(w, http.StatusBadRequest, "invalid notification")
		return
	}
	if err != nil {
		h.logger.Error("payment notification reconciliation failed",
			"error", err,
			"order_id", result.OrderID,
			"payment_status", result.PaymentStatus)
		h.HandleError(w, err)
		return
	}

	h.logger.Info("payment notification processed",
		"order_id", result.OrderID,
		"payment_status", result.PaymentStatus)

	h.WriteJSON(w, http.StatusOK, notifyResponse{Status: "ok"})
}

// clientIP prefers the first X-Forwarded-For hop, falling back to the
// socket peer. The result feeds the advisory source-address check only.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		parts := strings.Split(xff, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
