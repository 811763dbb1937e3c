package routes

import (
	"github.com/gin-gonic/gin"

	"github.com/pesaflow/pesaflow/internal/interfaces/http/handlers"
	"github.com/pesaflow/pesaflow/internal/interfaces/http/middleware"
)

// CallbackRouteConfig holds dependencies for the webhook route.
type CallbackRouteConfig struct {
	CallbackHandler *handlers.CallbackHandler
	CallbackAuth    *middleware.CallbackAuth
}

// SetupCallbackRoutes registers the gateway webhook endpoint. The path
// secret is matched by the auth middleware, not the route itself, so a wrong
// secret still gets the generic acknowledgement.
func SetupCallbackRoutes(engine *gin.Engine, cfg *CallbackRouteConfig) {
	callback := engine.Group("/callback")
	callback.Use(cfg.CallbackAuth.Handler())
	{
		callback.POST("/:pathSecret", cfg.CallbackHandler.HandleCallback)
	}
}
