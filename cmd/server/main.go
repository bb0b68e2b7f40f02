package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/FranksOps/dossier/internal/analyst"
	"github.com/FranksOps/dossier/internal/config"
	"github.com/FranksOps/dossier/internal/logo"
	"github.com/FranksOps/dossier/internal/metrics"
	"github.com/FranksOps/dossier/internal/pipeline"
	"github.com/FranksOps/dossier/internal/scraper"
	"github.com/FranksOps/dossier/internal/serp"
	"github.com/FranksOps/dossier/internal/server"
	"github.com/FranksOps/dossier/internal/sieve"
	"github.com/FranksOps/dossier/internal/storage"
	"github.com/FranksOps/dossier/internal/storage/postgres"
	"github.com/FranksOps/dossier/internal/storage/sqlite"
	"github.com/FranksOps/dossier/pkg/httpclient"
	"github.com/FranksOps/dossier/pkg/ratelimit"
	"github.com/FranksOps/dossier/pkg/useragent"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := run(logger); err != nil {
		logger.Error("fatal", "err", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := openStore(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	p, err := buildPipeline(cfg, store, logger)
	if err != nil {
		return fmt.Errorf("building pipeline: %w", err)
	}

	if cfg.Metrics.Enabled {
		ms := metrics.Start(cfg.Metrics.Port)
		defer func() {
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = ms.Stop(shutdownCtx)
		}()
		logger.Info("metrics listening", "port", cfg.Metrics.Port)
	}

	srv := server.New(p, logger)
	return srv.ListenAndServe(ctx, cfg.Server.Port, cfg.Server.ShutdownTimeout)
}

func openStore(ctx context.Context, cfg *config.Config) (storage.Store, error) {
	switch cfg.Storage.Backend {
	case "postgres":
		return postgres.New(ctx, cfg.Storage.PostgresDSN)
	case "sqlite":
		return sqlite.New(cfg.Storage.SQLitePath)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", cfg.Storage.Backend)
	}
}

func buildPipeline(cfg *config.Config, store storage.Store, logger *slog.Logger) (*pipeline.Pipeline, error) {
	uaPool := useragent.NewPool(nil)

	searchClient, err := httpclient.New(httpclient.Config{Timeout: 15 * time.Second})
	if err != nil {
		return nil, err
	}
	search, err := serp.NewDuckDuckGo(serp.DuckDuckGoConfig{
		Endpoint: cfg.Search.Endpoint,
		Client:   searchClient,
		UAPool:   uaPool,
		Limiter:  ratelimit.NewLimiter(cfg.Search.RequestsPerSec, cfg.Search.Jitter),
	})
	if err != nil {
		return nil, err
	}

	fetcher, err := scraper.NewFetcher(scraper.FetchConfig{
		Timeout:    cfg.Scrape.FetchTimeout,
		MinTextLen: cfg.Scrape.MinTextLen,
		MaxTextLen: cfg.Scrape.MaxTextLen,
		UAPool:     uaPool,
	})
	if err != nil {
		return nil, err
	}

	model, err := analyst.NewChatClient(analyst.ChatConfig{
		Endpoint:    cfg.Model.Endpoint,
		APIKey:      cfg.Model.APIKey,
		Deployment:  cfg.Model.Deployment,
		Timeout:     cfg.Model.Timeout,
		MaxInputLen: cfg.Model.MaxInputLen,
	})
	if err != nil {
		return nil, err
	}

	logos, err := logo.New(logo.Config{})
	if err != nil {
		return nil, err
	}

	return pipeline.New(
		pipeline.Config{
			ResultsPerQuery:   cfg.Search.ResultsPerQuery,
			ScanLimit:         cfg.Scrape.ScanLimit,
			ScanLimitLite:     cfg.Scrape.ScanLimitLite,
			MaxCompetitors:    cfg.Compare.MaxCompetitors,
			CompetitorWorkers: cfg.Compare.Workers,
			SourcesPerBlob:    cfg.Compare.SourcesPerBlob,
		},
		cfg.Search.MaxTopics,
		pipeline.Deps{
			Search:     search,
			Filter:     sieve.New(nil),
			Pool:       scraper.NewPool(fetcher, cfg.Scrape.Workers, logger),
			Store:      store,
			Validator:  model,
			Comparator: model,
			Logos:      logos,
			Logger:     logger,
		},
	)
}
