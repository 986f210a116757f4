package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/databunker/price-checker/config"
	"github.com/databunker/price-checker/internal/domain"
	httpDelivery "github.com/databunker/price-checker/internal/delivery/http"
	"github.com/databunker/price-checker/internal/infrastructure/cache"
	"github.com/databunker/price-checker/internal/infrastructure/gemini"
	"github.com/databunker/price-checker/internal/infrastructure/logger"
	"github.com/databunker/price-checker/internal/infrastructure/oxylabs"
	"github.com/databunker/price-checker/internal/usecase"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "1.0.0"

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "price-checker: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	log, err := logger.New(cfg.Log.Level, cfg.Log.Format)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info().
		Str("version", version).
		Str("environment", cfg.Server.Environment).
		Str("port", cfg.Server.Port).
		Str("cache", cfg.Cache.Type).
		Msg("starting price checker")

	// Missing credentials are reported per request and by /debug
	if !cfg.Oxylabs.Configured() {
		log.Warn().Msg("oxylabs credentials not set, price checks will fail with NotConfigured")
	}
	if cfg.Gemini.APIKey == "" {
		log.Warn().Msg("gemini api key not set, results will not be refined")
	}

	store, err := cache.New(ctx, cache.Config{
		Type:            cfg.Cache.Type,
		RedisURL:        cfg.Cache.RedisURL,
		KeyPrefix:       cfg.Cache.KeyPrefix,
		CleanupInterval: cfg.Cache.CleanupInterval,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache: %w", err)
	}
	var responseCache domain.CacheRepository
	if store != nil {
		defer store.Close()
		responseCache = store
	}

	provider := oxylabs.NewClient(oxylabs.Config{
		Username:          cfg.Oxylabs.Username,
		Password:          cfg.Oxylabs.Password,
		BaseURL:           cfg.Oxylabs.BaseURL,
		Domain:            cfg.Oxylabs.Domain,
		Locale:            cfg.Oxylabs.Locale,
		GeoLocation:       cfg.Oxylabs.GeoLocation,
		Timeout:           cfg.Oxylabs.Timeout,
		RetryBackoff:      cfg.Oxylabs.RetryBackoff,
		MaxResults:        cfg.Oxylabs.MaxResults,
		RequestsPerSecond: cfg.Oxylabs.RequestsPerSecond,
		Burst:             cfg.Oxylabs.Burst,
	}, log)

	model, err := gemini.NewClient(ctx, gemini.Config{
		APIKey:      cfg.Gemini.APIKey,
		Model:       cfg.Gemini.Model,
		BaseURL:     cfg.Gemini.BaseURL,
		Temperature: cfg.Gemini.Temperature,
	}, log)
	if err != nil {
		return err
	}

	aggregator := usecase.NewAggregator()
	service := usecase.NewPriceService(
		provider,
		usecase.NewNormalizer(cfg.Normalizer.DefaultCurrency),
		aggregator,
		usecase.NewMatchingService(usecase.MatchConfig{
			MinRelevance:      cfg.Matching.MinRelevance,
			ExcludeMultipacks: cfg.Matching.ExcludeMultipacks,
		}, log),
		usecase.NewRefiner(model, aggregator, usecase.RefinerConfig{
			Timeout:   cfg.Gemini.Timeout,
			MaxOffers: cfg.Gemini.MaxOffers,
		}, log),
		responseCache,
		usecase.PriceServiceConfig{CacheTTL: cfg.Cache.TTL},
		log,
	)

	handler := httpDelivery.NewHandler(service, cfg, version)
	if store != nil {
		handler.WithCache(store)
	}
	router := httpDelivery.SetupRouter(cfg, handler, logger.Component(log, "http"))

	if err := httpDelivery.NewServer(cfg.Server, router, log).Run(ctx); err != nil {
		return fmt.Errorf("server stopped with error: %w", err)
	}

	log.Info().Msg("server exited cleanly")
	return nil
}
