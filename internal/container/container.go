package container

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"harvest/scraper/internal/client"
	"harvest/scraper/internal/config"
	"harvest/scraper/internal/extract"
	"harvest/scraper/internal/ledger"
	"harvest/scraper/internal/pipeline"
	"harvest/scraper/internal/proxy"
	"harvest/scraper/internal/repository"
	"harvest/scraper/internal/sink"
	"harvest/scraper/internal/source"
	"harvest/scraper/internal/state"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"
)

// Container holds all initialized components
type Container struct {
	Config       *config.Config
	RunID        uuid.UUID
	Site         extract.Site
	Orchestrator *pipeline.Orchestrator

	fetcher *client.HTTPFetcher
	retry   pipeline.RetryPolicy
	sinks   sink.Multi
	redis   *redis.Client
}

// New creates a new container with all dependencies initialized. Every error it
// returns is a configuration or startup failure; nothing has been fetched yet.
func New(ctx context.Context, cfg *config.Config) (*Container, error) {
	if err := configureLogging(cfg.Log); err != nil {
		return nil, err
	}

	container := &Container{
		Config: cfg,
		RunID:  uuid.New(),
	}

	site, err := extract.ForSite(cfg.Harvest.Site, cfg.Harvest.BaseURL)
	if err != nil {
		return nil, err
	}
	container.Site = site

	if cfg.Redis.Enabled {
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.Database,
		})

		// Test connection
		if _, err := rdb.Ping(ctx).Result(); err != nil {
			_ = rdb.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("✅ Connected to Redis successfully")
		container.redis = rdb
	}

	proxySupplier := proxy.NewSupplier(ctx, cfg.HTTP.Proxies, cfg.HTTP.ProxyTestURL)
	if len(cfg.HTTP.Proxies) > 0 && proxySupplier.Len() == 0 {
		_ = container.Close()
		return nil, errors.New("none of the configured proxies is working")
	}
	container.fetcher = client.NewHTTPFetcher(cfg.HTTP, proxySupplier)

	if err := container.openSinks(ctx); err != nil {
		_ = container.Close()
		return nil, err
	}

	retry := pipeline.RetryPolicy{
		BaseDelay:         cfg.Harvest.BaseDelay,
		MaxAttempts:       cfg.Harvest.MaxAttempts,
		RetryableStatuses: cfg.Harvest.RetryableStatuses,
	}
	container.retry = retry

	sources, err := container.sourceLister()
	if err != nil {
		_ = container.Close()
		return nil, err
	}

	orchestrator := &pipeline.Orchestrator{
		RunID:   container.RunID.String(),
		Sources: sources,
		Collector: &pipeline.Collector{
			Fetcher:   container.fetcher,
			Extractor: site,
			Retry:     retry,
			PageDelay: cfg.Harvest.PageDelay,
			MaxPages:  cfg.Harvest.MaxPages,
		},
		Pool: &pipeline.Pool{
			Fetcher:        container.fetcher,
			Extractor:      site,
			Sink:           container.sinks,
			Ledger:         container.ledger(cfg.Ledger.Path, cfg.Ledger.Stream),
			Retry:          retry,
			MaxConcurrency: cfg.Harvest.MaxConcurrency,
		},
		SourceLedger:       container.ledger(cfg.Ledger.SourcePath, cfg.Ledger.Stream+":sources"),
		CollectConcurrency: cfg.Harvest.CollectConcurrency,
	}
	if container.redis != nil {
		orchestrator.Checkpoints = state.NewRedisCheckpoints(container.redis, cfg.Redis.KeyPrefix)
	}
	container.Orchestrator = orchestrator

	log.Infof("🚀 Run %s harvesting %s", container.RunID, cfg.Harvest.Site)
	return container, nil
}

// Run executes a full harvest
func (c *Container) Run(ctx context.Context) (*pipeline.Report, error) {
	return c.Orchestrator.Run(ctx)
}

// Retry replays the item ledger, or the source ledger when sources is set.
// Failures that persist go to the final ledgers so the input stays untouched.
func (c *Container) Retry(ctx context.Context, sources bool) (*pipeline.Report, error) {
	cfg := c.Config

	if sources {
		input := c.Orchestrator.SourceLedger
		if cfg.Retry.Input != "" {
			input = c.ledger(cfg.Retry.Input, cfg.Retry.Input)
		}
		output := c.ledger(cfg.Retry.SourceOutput, cfg.Ledger.Stream+":sources:final")
		return c.Orchestrator.RetrySources(ctx, input, output, cfg.Retry.Distinct)
	}

	input := c.Orchestrator.Pool.Ledger
	if cfg.Retry.Input != "" {
		input = c.ledger(cfg.Retry.Input, cfg.Retry.Input)
	}
	output := c.ledger(cfg.Retry.Output, cfg.Ledger.Stream+":final")
	return c.Orchestrator.Retry(ctx, input, output, cfg.Retry.Distinct)
}

// Close performs cleanup when shutting down
func (c *Container) Close() error {
	log.Info("Shutting down container...")

	var errs []error
	if c.sinks != nil {
		errs = append(errs, c.sinks.Close())
	}
	if c.fetcher != nil {
		errs = append(errs, c.fetcher.Close())
	}
	if c.redis != nil {
		errs = append(errs, c.redis.Close())
	}

	log.Info("Container shut down successfully")
	return errors.Join(errs...)
}

func (c *Container) openSinks(ctx context.Context) error {
	out := c.Config.Output

	fields := out.Fields
	if len(fields) == 0 {
		fields = c.Site.Fields()
	}

	if out.CSVPath != "" {
		csvSink, err := sink.NewCSVSink(out.CSVPath, fields)
		if err != nil {
			return err
		}
		c.sinks = append(c.sinks, csvSink)
	}

	if out.JSONLPath != "" {
		jsonlSink, err := sink.NewJSONLSink(out.JSONLPath)
		if err != nil {
			return err
		}
		c.sinks = append(c.sinks, jsonlSink)
	}

	if out.Postgres.Enabled {
		db, err := pgxpool.New(ctx, c.Config.Database.DSN())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		if err := db.Ping(ctx); err != nil {
			db.Close()
			return fmt.Errorf("failed to connect to database: %w", err)
		}

		repo := repository.NewRecordRepository(db, out.Postgres.Table, c.RunID)
		if err := repo.EnsureSchema(ctx); err != nil {
			_ = repo.Close()
			return err
		}
		log.Info("✅ Connected to Postgres successfully")
		c.sinks = append(c.sinks, repo)
	}

	return nil
}

func (c *Container) sourceLister() (pipeline.SourceLister, error) {
	cfg := c.Config

	var listers source.Combined
	if cfg.Sources.File != "" {
		listers = append(listers, source.CSVFile{Path: cfg.Sources.File})
	}
	if cfg.Sources.Directory != "" {
		directory, ok := c.Site.(extract.DirectoryExtractor)
		if !ok {
			return nil, fmt.Errorf("site %s has no directory page", cfg.Harvest.Site)
		}
		listers = append(listers, &source.Directory{
			URL:       cfg.Sources.Directory,
			Fetcher:   c.fetcher,
			Extractor: directory,
			Retry:     c.retry,
		})
	}
	if len(cfg.Sources.Seeds) > 0 {
		listers = append(listers, source.Seeds(cfg.Sources.Seeds))
	}

	return listers, nil
}

// ledger opens path with the file backend, or stream with the redis backend.
func (c *Container) ledger(path, stream string) pipeline.Ledger {
	if c.Config.Ledger.Backend == "redis" {
		return ledger.NewRedisLedger(c.redis, c.Config.Redis.KeyPrefix, stream)
	}
	return ledger.NewFileLedger(path)
}

func configureLogging(cfg config.LogConfig) error {
	level, err := log.ParseLevel(cfg.Level)
	if err != nil {
		return fmt.Errorf("invalid log level: %w", err)
	}
	log.SetLevel(level)

	switch strings.ToLower(cfg.Format) {
	case "json":
		log.SetFormatter(&log.JSONFormatter{})
	case "", "text":
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true})
	default:
		return fmt.Errorf("unknown log format %q", cfg.Format)
	}
	return nil
}
