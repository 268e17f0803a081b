package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"stock-reservation-engine/internal/config"
	"stock-reservation-engine/internal/handlers"
	"stock-reservation-engine/internal/middleware"
	"stock-reservation-engine/internal/services"
	"stock-reservation-engine/internal/store"
	"stock-reservation-engine/internal/telemetry"

	_ "github.com/go-sql-driver/mysql"
	"github.com/gorilla/mux"
	"github.com/redis/go-redis/v9"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg := config.LoadConfig()

	slog.Info("Starting Stock Reservation Engine", "version", "1.0.0")

	// Initialize OpenTelemetry telemetry system
	ctx := context.Background()
	otelTelemetry := &telemetry.Telemetry{}
	otelTelemetry.InitMetrics("stock-reservation-engine", ctx)
	slog.Info("OpenTelemetry telemetry initialized")

	engineTelemetry := telemetry.NewEngineTelemetry()
	if err := engineTelemetry.InitializeTelemetry(ctx); err != nil {
		slog.Error("Failed to initialize engine telemetry", "error", err)
		return
	}

	// Build storage backends
	persist := cfg.EnableJSONPersistence == "true"
	var ledger store.StockLedger
	var orders store.OrderStore

	switch cfg.StorageBackend {
	case "mysql":
		dsn, err := store.NormalizeMySQLDSN(cfg.MySQLDSN)
		if err != nil {
			slog.Error("Invalid MySQL DSN", "error", err)
			return
		}
		db, err := sql.Open("mysql", dsn)
		if err != nil {
			slog.Error("Failed to open MySQL connection", "error", err)
			return
		}
		if err := db.PingContext(ctx); err != nil {
			slog.Error("Failed to reach MySQL", "error", err)
			return
		}
		mysqlStore := store.NewMySQLStore(db)
		ledger = mysqlStore
		orders = mysqlStore
		slog.Info("Using MySQL storage backend")
	default:
		fileLedger, err := store.NewFileLedger(cfg.DataDir, persist)
		if err != nil {
			slog.Error("Failed to initialize stock ledger", "error", err)
			return
		}
		orderStore, err := store.NewMemoryOrderStore(cfg.DataDir, persist)
		if err != nil {
			slog.Error("Failed to initialize order store", "error", err)
			return
		}
		ledger = fileLedger
		orders = orderStore
		slog.Info("Using in-memory storage backend", "dataDir", cfg.DataDir, "persistence", persist)
	}

	// Build idempotency backend
	ttl, cleanupInterval := cfg.IdempotencyDurations()
	var idempotency store.IdempotencyStore
	switch cfg.IdempotencyBackend {
	case "redis":
		client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		if err := client.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to reach Redis", "error", err)
			return
		}
		idempotency = store.NewRedisIdempotencyStore(client, ttl)
		slog.Info("Using Redis idempotency backend", "addr", cfg.RedisAddr)
	default:
		idempotency = store.NewMemoryIdempotencyStore(ttl, cleanupInterval)
		slog.Info("Using in-memory idempotency backend", "ttl", ttl)
	}

	// Initialize the reservation engine (rebuilds the reservation index)
	engine, err := services.NewEngine(ctx, ledger, orders, idempotency, engineTelemetry)
	if err != nil {
		slog.Error("Failed to initialize reservation engine", "error", err)
		return
	}
	slog.Info("Reservation engine initialized successfully")

	// Initialize handlers
	stockHandler := handlers.NewStockHandler(engine)
	orderHandler := handlers.NewOrderHandler(engine)
	healthHandler := handlers.NewHealthHandler()
	slog.Debug("HTTP handlers initialized")

	r := mux.NewRouter()

	// Apply telemetry middleware to all routes first
	httpTelemetry, err := telemetry.NewHTTPTelemetry()
	if err != nil {
		slog.Error("Failed to initialize HTTP telemetry", "error", err)
		return
	}
	r.Use(httpTelemetry.Middleware)

	// Apply auth middleware to v1 API routes
	v1 := r.PathPrefix("/v1").Subrouter()
	v1.Use(middleware.AuthMiddleware)

	// Stock routes - specific routes first
	v1.HandleFunc("/stock/additions", stockHandler.AddStock).Methods("POST")
	v1.HandleFunc("/stock/{itemId}/events", stockHandler.ListStockEvents).Methods("GET")
	v1.HandleFunc("/stock/{itemId}/reservations", stockHandler.ListItemReservations).Methods("GET")
	v1.HandleFunc("/stock/{itemId}", stockHandler.GetAvailability).Methods("GET")
	v1.HandleFunc("/stock", stockHandler.ListAvailability).Methods("GET")

	// Order routes
	v1.HandleFunc("/orders", orderHandler.CreateOrder).Methods("POST")
	v1.HandleFunc("/orders", orderHandler.ListOrders).Methods("GET")
	v1.HandleFunc("/orders/{orderId}/items/status", orderHandler.TransitionBatch).Methods("PUT")
	v1.HandleFunc("/orders/{orderId}/items/{itemId}/status", orderHandler.TransitionItem).Methods("PUT")
	v1.HandleFunc("/orders/{orderId}", orderHandler.GetOrder).Methods("GET")

	// Health check endpoint (no auth required)
	r.HandleFunc("/health", healthHandler.Health).Methods("GET")

	slog.Info("Starting HTTP server",
		"port", cfg.Port,
		"environment", cfg.Environment)

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	// Start server in a goroutine
	go func() {
		slog.Info("Server ready to accept connections", "address", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("Server failed to start", "error", err)
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	slog.Info("Shutting down server...")

	// Give outstanding requests a deadline for completion
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests and drain in-flight ones before closing
	// the stores they write to
	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("Server forced to shutdown", "error", err)
	}

	// Flush persistent state before closing the telemetry pipeline
	engine.Stop()

	otelTelemetry.Close()
	slog.Info("Telemetry shutdown completed")

	slog.Info("Server exited")
}
