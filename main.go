package main

import (
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"checkout-svc/auth"
	"checkout-svc/cache"
	"checkout-svc/cart"
	"checkout-svc/config"
	"checkout-svc/database"
	"checkout-svc/esewa"
	"checkout-svc/handlers"
	"checkout-svc/intent"
	"checkout-svc/kafka"
	"checkout-svc/middleware"
	"checkout-svc/orders"
	"checkout-svc/reconcile"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"
)

func main() {
	// Initialize logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load config", zap.Error(err))
	}

	// Initialize database
	db, err := database.InitDB(cfg.DB, logger)
	if err != nil {
		logger.Fatal("Failed to initialize database", zap.Error(err))
	}
	defer db.Close()

	// Initialize Redis
	rdb, err := cache.InitRedis(cfg.Redis, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Redis", zap.Error(err))
	}
	defer rdb.Close()

	// Initialize Kafka producer
	producer, err := kafka.InitProducer(cfg.Kafka, logger)
	if err != nil {
		logger.Fatal("Failed to initialize Kafka producer", zap.Error(err))
	}
	defer producer.Close()

	// Initialize OpenTelemetry
	shutdown, err := middleware.InitTracing("checkout-service", cfg.Tracing.JaegerEndpoint)
	if err != nil {
		logger.Fatal("Failed to initialize tracing", zap.Error(err))
	}
	defer shutdown()

	// Wire up the payment flow
	orderSvc := orders.NewService(db, logger)
	intents := intent.NewRedisStore(rdb, logger)
	carts := cart.NewRedisStore(rdb, logger)
	gateway := esewa.NewClient(cfg.Esewa, logger)
	sink := handlers.NewEffectSink(carts, orderSvc, producer, cfg.Kafka.Topic, logger)
	reconciler := reconcile.NewReconciler(
		intents,
		gateway,
		orderSvc,
		sink,
		auth.NewValidator(cfg.Jwt.Secret),
		logger,
		time.Duration(cfg.Reconcile.TimeoutSeconds)*time.Second,
		cfg.Reconcile.OptimisticFallback,
	)

	orderHandler := handlers.NewOrderHandler(orderSvc, logger)
	paymentHandler := handlers.NewPaymentHandler(gateway, orderSvc, intents, reconciler, logger)
	cartHandler := handlers.NewCartHandler(carts, logger)

	// Setup REST API with Gin
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(otelgin.Middleware("checkout-service"))
	router.Use(middleware.LoggerMiddleware(logger))
	router.Use(middleware.MetricsMiddleware())

	// Health check endpoint
	router.GET("/health", handlers.HealthCheck)

	// Metrics endpoint
	router.GET("/metrics", middleware.PrometheusHandler())

	// Orders
	router.POST("/orders", orderHandler.CreateOrder)
	router.GET("/orders", orderHandler.ListOrders)
	router.GET("/orders/:id", orderHandler.GetOrder)

	// Cart
	router.GET("/cart", cartHandler.GetCart)

	// Payments
	router.POST("/payments/initiate", paymentHandler.InitiatePayment)
	router.GET("/payments/callback", paymentHandler.PaymentCallback)
	router.GET("/payments/status/:orderID", paymentHandler.PaymentStatus)

	// Start REST server
	srv := &http.Server{
		Addr:    cfg.Http.Addr,
		Handler: router,
	}

	go func() {
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start REST server", zap.Error(err))
		}
	}()

	logger.Info("Checkout Service started", zap.String("addr", cfg.Http.Addr))

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")
	logger.Info("Server exited")
}
