package rest

import (
	"database/sql"
	"log/slog"

	"github.com/go-chi/chi"

	"github.com/novandria/bankgateway/internal/payment"
	"github.com/novandria/bankgateway/internal/transport/middleware"
)

func RegisterAllRoutes(router *chi.Mux, db *sql.DB, paymentHandler *payment.Handler, webhookHandler *payment.WebhookHandler, returnHandler *payment.ReturnHandler, logger *slog.Logger) {
	healthHandler := NewHealthHandler(db)

	// Apply global middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RecoveryMiddleware(logger))
	router.Use(middleware.LoggingMiddleware(logger))

	router.Route("/api/v1", func(r chi.Router) {
		// Health check routes
		r.Get("/health", healthHandler.healthCheckHandler)
		r.Get("/ping", healthHandler.pingHandler)

		r.Route("/payment", func(pr chi.Router) {
			if paymentHandler != nil {
				pr.Post("/checkout", paymentHandler.Checkout)
			}
			if webhookHandler != nil {
				pr.Post("/callback", webhookHandler.HandleNotification)
			}
			if returnHandler != nil {
				pr.Get("/return", returnHandler.HandleReturn)
			}
		})
	})
}
