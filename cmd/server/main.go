// Package main runs the NEXENTIA HTTP API server with graceful shutdown.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/nexentia/backend/config"
	"github.com/nexentia/backend/internal/audit"
	"github.com/nexentia/backend/internal/auth"
	"github.com/nexentia/backend/internal/billing"
	"github.com/nexentia/backend/internal/customers"
	"github.com/nexentia/backend/internal/invoices"
	"github.com/nexentia/backend/internal/middleware"
	"github.com/nexentia/backend/internal/models"
	"github.com/nexentia/backend/internal/orgs"
	"github.com/nexentia/backend/internal/subscriptions"
	"github.com/nexentia/backend/internal/worker"
	"github.com/nexentia/backend/pkg/database"
	"github.com/nexentia/backend/pkg/queue"
	"github.com/nexentia/backend/pkg/redis"
	"github.com/nexentia/backend/pkg/response"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}

	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), logger)
	if err != nil {
		logger.Fatal("database", zap.Error(err))
	}
	defer pool.Close()

	if err := database.Migrate(ctx, pool); err != nil {
		logger.Fatal("migrate", zap.Error(err))
	}

	rdb, err := redis.NewClient(ctx, cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	tokenService := auth.NewTokenService(
		cfg.Auth.AccessSecret,
		cfg.Auth.RefreshSecret,
		time.Duration(cfg.Auth.AccessTTLSeconds)*time.Second,
		time.Duration(cfg.Auth.RefreshTTLSeconds)*time.Second,
	)

	// Audit pipeline: handlers enqueue, the processor drains to Postgres.
	jobQueue := queue.NewQueue(rdb.Client, logger)
	auditRepo := audit.NewRepository(pool)
	auditRecorder := audit.NewRecorder(jobQueue, auditRepo, logger)
	auditProcessor := worker.NewAuditProcessor(auditRepo, jobQueue, logger)

	// Auth
	authRepo := auth.NewRepository(pool)
	authService := auth.NewService(authRepo, tokenService, cfg.Auth.PasswordCost, cfg.Auth.TokenCost, logger)
	authHandler := auth.NewHandler(authService, auditRecorder, cfg.Auth.AllowPublicSignup, logger)

	// Subscriptions
	subscriptionRepo := subscriptions.NewRepository(pool)
	subscriptionHandler := subscriptions.NewHandler(subscriptionRepo, auditRecorder, logger)

	// Org surface
	orgRepo := orgs.NewRepository(pool)
	orgHandler := orgs.NewHandler(orgRepo, subscriptionRepo)

	// Customers
	customerRepo := customers.NewRepository(pool)
	customerHandler := customers.NewHandler(customerRepo, auditRecorder, logger)

	// Invoices
	invoiceRepo := invoices.NewRepository(pool)
	invoiceHandler := invoices.NewHandler(invoiceRepo, customerRepo, auditRecorder, logger)

	// Billing (Stripe)
	prices := billing.Prices{
		Classic:    cfg.Stripe.PriceClassic,
		Pro:        cfg.Stripe.PricePro,
		Enterprise: cfg.Stripe.PriceEnterprise,
	}
	stripeProvider := billing.NewStripeProvider(cfg.Stripe.SecretKey, cfg.Stripe.WebhookSecret)
	billingHandler := billing.NewHandler(subscriptionRepo, orgRepo, stripeProvider, prices, cfg.AppURL, auditRecorder, logger)
	webhookHandler := billing.NewWebhookHandler(stripeProvider, subscriptionRepo, billing.NewRedisDeduper(rdb), prices, logger)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(cfg.Server.CORSAllowedOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"ok": true, "app": "NEXENTIA"}) })

	// Auth (public)
	authGroup := router.Group("/auth")
	{
		authGroup.POST("/signup", authHandler.Signup)
		authGroup.POST("/login", authHandler.Login)
		authGroup.POST("/refresh", authHandler.Refresh)
	}

	// Webhooks (no JWT; signature verified in the handler)
	router.POST("/webhooks/stripe", webhookHandler.Handle)

	// Protected API (access token required)
	api := router.Group("")
	api.Use(middleware.Auth(tokenService))
	{
		api.GET("/org/me", orgHandler.Me)
		api.GET("/org/memberships", orgHandler.Memberships)

		api.GET("/customers", middleware.RequireRole(models.RoleViewer), customerHandler.List)
		api.POST("/customers", middleware.RequireRole(models.RoleSales), customerHandler.Create)
		api.PUT("/customers/:id", middleware.RequireRole(models.RoleSales), customerHandler.Update)
		api.DELETE("/customers/:id", middleware.RequireRole(models.RoleAdmin), customerHandler.Delete)

		api.GET("/invoices", middleware.RequireRole(models.RoleViewer), invoiceHandler.List)
		api.POST("/invoices", middleware.RequireRole(models.RoleFinance), invoiceHandler.Create)
		api.PUT("/invoices/:id", middleware.RequireRole(models.RoleFinance), invoiceHandler.Update)
		api.POST("/invoices/:id/mark-paid", middleware.RequireRole(models.RoleFinance), invoiceHandler.MarkPaid)
		api.DELETE("/invoices/:id", middleware.RequireRole(models.RoleAdmin), invoiceHandler.Delete)

		api.GET("/subscription", middleware.RequireRole(models.RoleViewer), subscriptionHandler.Get)
		api.POST("/subscription/set-plan", middleware.RequireRole(models.RoleOwner), subscriptionHandler.SetPlan)

		api.POST("/billing/checkout", middleware.RequireRole(models.RoleOwner), billingHandler.Checkout)
		api.POST("/billing/portal", middleware.RequireRole(models.RoleOwner), billingHandler.Portal)
	}

	srv := &http.Server{
		Addr:         ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// Background audit writer
	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()
	go auditProcessor.Run(workerCtx)
	logger.Info("audit worker started")

	go func() {
		logger.Info("server listening", zap.String("port", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	workerCancel()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown", zap.Error(err))
	}
	logger.Info("server stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
