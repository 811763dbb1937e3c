package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pesaflow/pesaflow/internal/interfaces/http/handlers"
)

// PaymentRouteConfig holds dependencies for payment routes.
type PaymentRouteConfig struct {
	PaymentHandler *handlers.PaymentHandler
}

// SetupPaymentRoutes configures the client-facing payment routes.
func SetupPaymentRoutes(engine *gin.Engine, cfg *PaymentRouteConfig) {
	payments := engine.Group("/payments")
	{
		payments.POST("/initiate", cfg.PaymentHandler.InitiatePayment)
		payments.GET("/status/:checkoutRequestId", cfg.PaymentHandler.GetStatus)
		payments.POST("/cancel", cfg.PaymentHandler.CancelPayment)
		payments.POST("/retry", cfg.PaymentHandler.RetryPayment)
	}
}
