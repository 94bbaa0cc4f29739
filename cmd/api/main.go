// cmd/api/main.go
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/config"
	"github.com/your-org/storefront/internal/domain/cart"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/domain/recommendation"
	"github.com/your-org/storefront/internal/domain/user"
	"github.com/your-org/storefront/internal/infrastructure/database/postgres"
	"github.com/your-org/storefront/internal/infrastructure/database/redis"
	"github.com/your-org/storefront/internal/interfaces/http"
	"github.com/your-org/storefront/internal/interfaces/http/handlers"
	"github.com/your-org/storefront/internal/interfaces/http/routes"
	"github.com/your-org/storefront/internal/pkg/export"
	"github.com/your-org/storefront/internal/pkg/logger"
	"github.com/your-org/storefront/internal/pkg/metrics"
	"github.com/your-org/storefront/internal/pkg/pdf"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	appLogger, err := logger.New(cfg.Logging)
	if err != nil {
		log.Fatalf("Failed to configure logger: %v", err)
	}
	appLogger.WithFields(logrus.Fields{
		"app":         cfg.App.Name,
		"version":     cfg.App.Version,
		"environment": cfg.App.Environment,
	}).Info("starting")

	db, err := postgres.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to connect to database")
	}
	defer db.Close()

	redisClient, err := redis.NewConnection(cfg, appLogger)
	if err != nil {
		appLogger.WithError(err).Fatal("failed to connect to redis")
	}
	defer redisClient.Close()

	if cfg.Database.AutoMigrate {
		migration := postgres.NewMigration(db.GetDB(), cfg, appLogger)
		if err := migration.RunAutoMigrations(); err != nil {
			appLogger.WithError(err).Fatal("database migration failed")
		}
		if err := migration.CreateIndexes(); err != nil {
			appLogger.WithError(err).Warn("index creation failed")
		}
		if cfg.IsDevelopment() {
			if err := migration.SeedInitialData(); err != nil {
				appLogger.WithError(err).Warn("data seeding failed")
			}
			if err := migration.GetTableInfo(); err != nil {
				appLogger.WithError(err).Warn("failed to list tables")
			}
		}
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	recorder := metrics.NewRecorder(registry)

	gdb := db.GetDB()
	userService := user.NewService(gdb, cfg, appLogger)
	productService := product.NewService(gdb, cfg, appLogger)
	categoryService := product.NewCategoryService(gdb, cfg)
	inventoryService := inventory.NewService(gdb, cfg, appLogger, recorder)
	cartService := cart.NewService(gdb, redisClient, cfg, appLogger, recorder)
	orderService := order.NewService(gdb, cfg, cartService, appLogger, recorder)
	recommendationService := recommendation.NewService(gdb, cfg, appLogger)
	productService.SetPriceChangeNotifier(cartService)

	server := http.NewServer(cfg, appLogger, http.Dependencies{
		Handlers: &routes.Handlers{
			Auth:           handlers.NewAuthHandler(userService, appLogger),
			Product:        handlers.NewProductHandler(productService, inventoryService, appLogger),
			Category:       handlers.NewCategoryHandler(categoryService, productService, appLogger),
			Inventory:      handlers.NewInventoryHandler(inventoryService, appLogger),
			Cart:           handlers.NewCartHandler(cartService, appLogger),
			Order:          handlers.NewOrderHandler(orderService, appLogger),
			Invoice:        handlers.NewInvoiceHandler(orderService, pdf.NewService(cfg), appLogger),
			Recommendation: handlers.NewRecommendationHandler(recommendationService, appLogger),
			Export:         handlers.NewExportHandler(export.NewCatalogExporter(gdb, appLogger), appLogger),
		},
		JWT:         userService.JWT(),
		Metrics:     recorder,
		Gatherer:    registry,
		RateCounter: redisClient,
		Checks: map[string]http.HealthChecker{
			"database": db,
			"redis":    redisClient,
		},
	})

	go func() {
		if err := server.Start(); err != nil {
			appLogger.WithError(err).Fatal("http server failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	appLogger.Info("shutting down gracefully")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Stop(ctx); err != nil {
		appLogger.WithError(err).Error("failed to shutdown http server gracefully")
	}

	appLogger.Info("server shutdown completed")
}
