package rest

import (
	"database/sql"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi"
	chiMiddleware "github.com/go-chi/chi/middleware"
	"github.com/lalunalounge/restaurant-ordering/internal/payment"
	"github.com/lalunalounge/restaurant-ordering/internal/transport/middleware"
	"github.com/lalunalounge/restaurant-ordering/internal/transport/swagger"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, gatewayMode string, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db, gatewayMode)

	// Apply global middleware
	router.Use(middleware.CORS)
	router.Use(chiMiddleware.RequestID)
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))

	// Serve OpenAPI spec at root (outside API prefix)
	router.Get("/openapi.yml", func(w http.ResponseWriter, r *http.Request) {
		http.ServeFile(w, r, "./api/openapi.yml")
	})
	// Swagger UI route at root
	router.Handle("/swagger/*", swagger.Handler())

	// Mount API under /api/v1 to match OpenAPI basePath
	router.Route("/api/v1", func(r chi.Router) {
		// Health check route
		r.Get("/health", healthHandler.HandleHealth)
		r.Get("/ping", healthHandler.HandlePing)

		// Gateway notification endpoint, called by the processor, not the
		// frontend. Request logging is skipped here so raw payloads with
		// signatures never hit the access log.
		if webhookHandler != nil {
			r.Post("/payments/notify", webhookHandler.HandleNotify)
		}

		if paymentHandler != nil {
			r.Group(func(pr chi.Router) {
				pr.Use(middleware.LoggingMiddleware(logger))

				pr.Post("/payments", paymentHandler.CreatePayment)             // POST /payments
				pr.Post("/payments/retry", paymentHandler.RetryPayment)        // POST /payments/retry
				pr.Get("/orders/{id}/payment", paymentHandler.GetOrderPayment) // GET /orders/:id/payment
			})
		}
	})
}
