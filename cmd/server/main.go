package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"bakery-service/internal/api"
	"bakery-service/internal/api/handlers"
	"bakery-service/internal/cache"
	"bakery-service/internal/config"
	"bakery-service/internal/database"
	"bakery-service/internal/notify"
	"bakery-service/internal/repository"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load configuration")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Connect(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer db.Close()

	if err := database.Migrate(ctx, db); err != nil {
		log.Fatal().Err(err).Msg("failed to run migrations")
	}

	products := repository.NewProductRepository(db)
	categories := repository.NewCategoryRepository(db)
	stock := repository.NewStockRepository(db)
	orders := repository.NewOrderRepository(db, cfg.TaxRate)
	analytics := repository.NewAnalyticsRepository(db)

	var invalidator handlers.CacheInvalidator
	if redisClient, err := cache.ConnectRedis(cfg); err != nil {
		// The catalog cache is an optimization; the service runs without it.
		log.Warn().Err(err).Msg("redis unavailable, serving catalog uncached")
	} else {
		cached := cache.NewCachedProductRepository(products, redisClient)
		products = cached
		invalidator = cached
		defer redisClient.Close()
	}

	dispatcher := notify.NewDispatcher(notify.NewMailer(cfg))
	defer dispatcher.Close()

	router := api.NewRouter(api.Handlers{
		Products:  handlers.NewProductHandler(products, categories),
		Orders:    handlers.NewOrderHandler(orders, dispatcher, invalidator),
		Scan:      handlers.NewScanHandler(orders),
		Stock:     handlers.NewStockHandler(stock, invalidator),
		Dashboard: handlers.NewDashboardHandler(analytics, cfg.LowStockThreshold),
	})

	server := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Info().Str("addr", cfg.HTTPAddr).Msg("http server listening")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal().Err(err).Msg("http server failed")
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("graceful shutdown failed")
	}
}
