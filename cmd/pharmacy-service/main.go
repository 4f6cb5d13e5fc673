package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/pharmacore/pharmacore-backend/internal/catalog"
	intakeevents "github.com/pharmacore/pharmacore-backend/internal/intake/events"
	intakehandler "github.com/pharmacore/pharmacore-backend/internal/intake/handler"
	intakerepo "github.com/pharmacore/pharmacore-backend/internal/intake/repository"
	intakeservice "github.com/pharmacore/pharmacore-backend/internal/intake/service"
	"github.com/pharmacore/pharmacore-backend/internal/inventory/consumers"
	invevents "github.com/pharmacore/pharmacore-backend/internal/inventory/events"
	invhandler "github.com/pharmacore/pharmacore-backend/internal/inventory/handler"
	invrepo "github.com/pharmacore/pharmacore-backend/internal/inventory/repository"
	invservice "github.com/pharmacore/pharmacore-backend/internal/inventory/service"
	salesevents "github.com/pharmacore/pharmacore-backend/internal/sales/events"
	saleshandler "github.com/pharmacore/pharmacore-backend/internal/sales/handler"
	salesrepo "github.com/pharmacore/pharmacore-backend/internal/sales/repository"
	salesservice "github.com/pharmacore/pharmacore-backend/internal/sales/service"
	"github.com/pharmacore/pharmacore-backend/pkg/auth"
	"github.com/pharmacore/pharmacore-backend/pkg/config"
	"github.com/pharmacore/pharmacore-backend/pkg/database"
	"github.com/pharmacore/pharmacore-backend/pkg/httputil"
	"github.com/pharmacore/pharmacore-backend/pkg/logger"
	"github.com/pharmacore/pharmacore-backend/pkg/messaging"
)

func main() {
	// Load configuration with validation (fails fast in production if required config is missing)
	cfg, err := config.LoadWithValidation("pharmacy-service")
	if err != nil {
		fmt.Fprintf(os.Stderr, "configuration error: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	log := logger.New("pharmacy-service", cfg.Server.Environment)
	log.Info().Msg("starting Pharmacy Service")

	// Connect to database
	db, err := database.New(&cfg.Database, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	// Connect to RabbitMQ
	rmq, err := messaging.New(&cfg.RabbitMQ, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to RabbitMQ")
	}
	defer rmq.Close()

	// Initialize event publishers
	stockPublisher, err := invevents.NewStockEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create stock event publisher")
	}
	salePublisher, err := salesevents.NewSaleEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create sale event publisher")
	}
	intakePublisher, err := intakeevents.NewIntakeEventPublisher(rmq, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create intake event publisher")
	}

	// Initialize repositories
	batchRepo := invrepo.NewBatchRepository(db)
	txRepo := invrepo.NewTransactionRepository(db)
	medicineCacheRepo := invrepo.NewMedicineCacheRepository(db)
	saleRepo := salesrepo.NewSaleRepository(db)
	returnRepo := salesrepo.NewSaleReturnRepository(db)
	orderRepo := intakerepo.NewOrderRepository(db)

	// Initialize catalog resolver
	catalogClient := catalog.NewClient(cfg.Catalog, log)
	resolver := catalog.NewResolver(medicineCacheRepo, catalogClient, log)

	// Initialize services
	stockService := invservice.NewStockService(db, batchRepo, txRepo, resolver, stockPublisher, cfg.Inventory, log)
	salesService := salesservice.NewSalesService(db, saleRepo, returnRepo, batchRepo, stockService, salePublisher, log)
	intakeService := intakeservice.NewIntakeService(db, orderRepo, batchRepo, stockService, resolver, intakePublisher, log)

	// Initialize handlers
	batchHandler := invhandler.NewBatchHandler(stockService, log)
	alertHandler := invhandler.NewAlertHandler(stockService, log)
	transactionHandler := invhandler.NewTransactionHandler(stockService, log)
	medicineHandler := invhandler.NewMedicineHandler(resolver, log)
	saleHandler := saleshandler.NewSaleHandler(salesService, log)
	orderHandler := intakehandler.NewOrderHandler(intakeService, log)

	// JWT auth
	authManager := auth.NewManager(&cfg.JWT)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Start catalog event consumer
	medicineConsumer, err := consumers.NewMedicineEventConsumer(rmq, medicineCacheRepo, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to create medicine event consumer")
	}
	if err := medicineConsumer.Start(ctx); err != nil {
		log.Fatal().Err(err).Msg("failed to start medicine event consumer")
	}

	// Start status sweeper
	sweeper := invservice.NewStatusSweeper(batchRepo, stockPublisher, time.Hour, log)
	sweeper.Start(ctx)
	defer sweeper.Stop()

	// Create router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RealIP)
	r.Use(httputil.RequestID)
	r.Use(httputil.Logger(log))
	r.Use(httputil.Recoverer(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	// Health check
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		httputil.JSON(w, http.StatusOK, map[string]interface{}{
			"status":   "healthy",
			"service":  "pharmacy-service",
			"database": db.Health(r.Context()),
			"rabbitmq": rmq.Health(),
		})
	})

	// API routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Use(auth.Middleware(authManager))

		r.Route("/batches", func(r chi.Router) {
			r.Get("/", batchHandler.List)
			r.Post("/", batchHandler.Create)
			r.Get("/{id}", batchHandler.Get)
			r.Put("/{id}", batchHandler.Update)
			r.Delete("/{id}", batchHandler.Delete)
			r.Post("/{id}/adjust", batchHandler.Adjust)
			r.Get("/{id}/transactions", batchHandler.Transactions)
		})

		r.Route("/stock", func(r chi.Router) {
			r.Get("/summary", alertHandler.Summary)
			r.Get("/transactions", transactionHandler.List)
			r.Route("/alerts", func(r chi.Router) {
				r.Get("/low-stock", alertHandler.LowStock)
				r.Get("/near-expiry", alertHandler.NearExpiry)
				r.Get("/expired", alertHandler.Expired)
				r.Get("/out-of-stock", alertHandler.OutOfStock)
			})
		})

		r.Route("/medicines", func(r chi.Router) {
			r.Get("/", medicineHandler.Search)
			r.Get("/{id}", medicineHandler.Get)
		})

		r.Route("/sales", func(r chi.Router) {
			r.Get("/", saleHandler.List)
			r.Post("/", saleHandler.Create)
			r.Get("/summary", saleHandler.Summary)
			r.Get("/bill/{billNumber}", saleHandler.GetByBillNumber)
			r.Get("/{id}", saleHandler.Get)
			r.Post("/{id}/cancel", saleHandler.Cancel)
			r.Post("/{id}/returns", saleHandler.CreateReturn)
			r.Get("/{id}/returns", saleHandler.ListSaleReturns)
		})

		r.Route("/returns", func(r chi.Router) {
			r.Get("/", saleHandler.ListReturns)
			r.Get("/{id}", saleHandler.GetReturn)
		})

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", orderHandler.List)
			r.Post("/", orderHandler.Create)
			r.Get("/{id}", orderHandler.Get)
			r.Post("/{id}/receive", orderHandler.Receive)
			r.Post("/{id}/post", orderHandler.Post)
			r.Post("/{id}/cancel", orderHandler.Cancel)
		})
	})

	// Create server
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:         addr,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	// Start server
	go func() {
		log.Info().Str("addr", addr).Msg("server listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Cancel context to stop consumers and the sweeper
	cancel()

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}

	log.Info().Msg("server stopped")
}
