package http

import (
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	paymentUsecases "github.com/pesaflow/pesaflow/internal/application/payment/usecases"
	"github.com/pesaflow/pesaflow/internal/infrastructure/cache"
	"github.com/pesaflow/pesaflow/internal/infrastructure/config"
	"github.com/pesaflow/pesaflow/internal/infrastructure/daraja"
	"github.com/pesaflow/pesaflow/internal/infrastructure/repository"
	"github.com/pesaflow/pesaflow/internal/infrastructure/scheduler"
	"github.com/pesaflow/pesaflow/internal/interfaces/http/handlers"
	"github.com/pesaflow/pesaflow/internal/interfaces/http/middleware"
	"github.com/pesaflow/pesaflow/internal/interfaces/http/routes"
	"github.com/pesaflow/pesaflow/internal/shared/db"
	"github.com/pesaflow/pesaflow/internal/shared/logger"
)

// Router wires the payment subsystem together: repositories, the gateway
// client, usecases, handlers and the reconciliation scheduler.
type Router struct {
	engine    *gin.Engine
	scheduler *scheduler.ReconciliationScheduler
}

// NewRouter creates the HTTP router with all dependencies.
func NewRouter(gdb *gorm.DB, redisClient *redis.Client, cfg *config.Config, log logger.Interface) *Router {
	gin.SetMode(ginMode(cfg.Server.Mode))
	engine := gin.New()
	engine.Use(middleware.Recovery(log))
	engine.Use(middleware.Logger(log))

	txnRepo := repository.NewTransactionRepository(gdb)
	orderRepo := repository.NewOrderRepository(gdb)
	txManager := db.NewTransactionManager(gdb)
	idemStore := cache.NewIdempotencyStore(redisClient, cfg.Idempotency.TTL())

	creds := daraja.NewCredentialManager(
		cfg.Gateway.BaseURL,
		cfg.Gateway.ConsumerKey,
		cfg.Gateway.ConsumerSecret,
		cfg.Gateway.TokenSafetyMargin(),
		cfg.Gateway.Timeout(),
		log,
	)
	pushGateway := daraja.NewClient(cfg.Gateway, creds, log)

	callbackURL := fmt.Sprintf("%s/callback/%s", cfg.Server.BaseURL, cfg.Callback.PathSecret)

	initiateUC := paymentUsecases.NewInitiatePaymentUseCase(
		txnRepo, orderRepo, pushGateway, idemStore, txManager, log,
		cfg.Gateway.AccountReference, callbackURL,
	)
	handleCallbackUC := paymentUsecases.NewHandleCallbackUseCase(txnRepo, orderRepo, txManager, log)
	queryUC := paymentUsecases.NewQueryStatusUseCase(
		txnRepo, orderRepo, pushGateway, txManager, log, cfg.Polling.MinPollInterval(),
	)
	pollUC := paymentUsecases.NewPollStatusUseCase(
		txnRepo, orderRepo, pushGateway, txManager, log,
		cfg.Polling.Interval(), cfg.Polling.Attempts(), cfg.Polling.MinPollInterval(),
	)
	cancelUC := paymentUsecases.NewCancelPaymentUseCase(txnRepo, log)
	retryUC := paymentUsecases.NewRetryPaymentUseCase(txnRepo, initiateUC, log)
	reconcileUC := paymentUsecases.NewReconcileStaleUseCase(txnRepo, orderRepo, pushGateway, txManager, log)

	paymentHandler := handlers.NewPaymentHandler(initiateUC, queryUC, pollUC, cancelUC, retryUC, log)
	callbackHandler := handlers.NewCallbackHandler(handleCallbackUC, log)

	callbackAuth := middleware.NewCallbackAuth(log,
		middleware.NewSourceIPPredicate(cfg.Callback.AllowedCIDRs, log),
		middleware.NewPathSecretPredicate(cfg.Callback.PathSecret),
	)

	routes.SetupPaymentRoutes(engine, &routes.PaymentRouteConfig{
		PaymentHandler: paymentHandler,
	})
	routes.SetupCallbackRoutes(engine, &routes.CallbackRouteConfig{
		CallbackHandler: callbackHandler,
		CallbackAuth:    callbackAuth,
	})

	engine.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{"status": "ok"})
	})

	return &Router{
		engine:    engine,
		scheduler: scheduler.NewReconciliationScheduler(reconcileUC, cfg.Polling.StaleSweepInterval(), log),
	}
}

// Engine returns the underlying gin engine.
func (r *Router) Engine() *gin.Engine {
	return r.engine
}

// Scheduler returns the reconciliation scheduler for lifecycle management.
func (r *Router) Scheduler() *scheduler.ReconciliationScheduler {
	return r.scheduler
}

func ginMode(mode string) string {
	switch mode {
	case "release", "production", "prod":
		return gin.ReleaseMode
	case "test":
		return gin.TestMode
	default:
		return gin.DebugMode
	}
}
