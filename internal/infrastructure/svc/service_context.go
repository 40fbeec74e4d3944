package svc

import (
	"context"
	"fmt"
	"time"

	redisclient "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"

	"cotscan/internal/application/port"
	"cotscan/internal/application/usecase/analysis"
	"cotscan/internal/domain/model"
	"cotscan/internal/infrastructure/cftc"
	"cotscan/internal/infrastructure/config"
	"cotscan/internal/infrastructure/metrics"
	"cotscan/internal/infrastructure/storage/composite"
	filerepo "cotscan/internal/infrastructure/storage/file"
	postgresrepo "cotscan/internal/infrastructure/storage/postgres"
	redisrepo "cotscan/internal/infrastructure/storage/redis"
	sqliterepo "cotscan/internal/infrastructure/storage/sqlite"
	"cotscan/internal/interfaces/console"
)

type ServiceContext struct {
	Ctx    context.Context
	Config *config.Config

	// infrastructure
	redisClient *redisclient.Client
	client      *cftc.Client
	source      *cftc.Source
	repo        *composite.Repo
	metrics     *metrics.Run

	// output port
	Sink port.Sink

	closerChain []func() error
}

// New wires every dependency of a run. cfg must already be validated.
func New(ctx context.Context, cfg *config.Config) (*ServiceContext, error) {
	sc := &ServiceContext{
		Ctx:         ctx,
		Config:      cfg,
		metrics:     metrics.New(),
		closerChain: make([]func() error, 0),
	}
	if cfg.App.Quiet {
		sc.Sink = analysis.NewNoopSink()
	} else {
		sc.Sink = console.NewSink(true)
	}

	if err := sc.initializeComponents(); err != nil {
		_ = sc.Close()
		return nil, err
	}
	return sc, nil
}

// initializeComponents runs in dependency order: redis first since both the
// downloader and the redis exporter use it.
func (sc *ServiceContext) initializeComponents() error {
	if sc.Config.RedisEnabled() {
		if err := sc.initRedis(); err != nil {
			return fmt.Errorf("%w: %w", ErrRedisUnavailable, err)
		}
	}
	sc.initSource()
	if err := sc.initStorage(); err != nil {
		return fmt.Errorf("%w: %w", ErrStorageInitFailed, err)
	}

	log.Info().
		Str("source", sc.source.Name()).
		Str("export", sc.repo.Name()).
		Msg("✓ All components initialized")
	return nil
}

func (sc *ServiceContext) initRedis() error {
	rc := sc.Config.Storage.Redis
	rdb := redisclient.NewClient(&redisclient.Options{
		Addr:     rc.Addr,
		Password: rc.Password,
		DB:       rc.DB,
	})

	ctx, cancel := context.WithTimeout(sc.Ctx, 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return fmt.Errorf("redis ping failed: %w", err)
	}
	sc.redisClient = rdb

	sc.closerChain = append(sc.closerChain, func() error {
		log.Debug().Msg("closing redis connection")
		return rdb.Close()
	})

	log.Info().
		Str("addr", rc.Addr).
		Int("db", rc.DB).
		Msg("✓ Redis initialized")
	return nil
}

func (sc *ServiceContext) initSource() {
	cfg := sc.Config
	urls := make(map[model.ReportType]string, len(cfg.Report.URLs))
	for k, v := range cfg.Report.URLs {
		urls[model.ReportType(k)] = v
	}

	opts := cftc.ClientOptions{
		URLs:          urls,
		CacheDir:      cfg.Report.CacheDir,
		ForceDownload: cfg.Report.ForceDownload,
		Timeout:       cfg.HTTPTimeout(),
		RatePerSecond: cfg.HTTP.RatePerSecond,
		Burst:         cfg.HTTP.Burst,
		UserAgent:     cfg.HTTP.UserAgent,
	}
	if sc.redisClient != nil && cfg.Storage.Redis.CacheRaw {
		opts.Raw = redisrepo.NewRawCache(sc.redisClient, cfg.Storage.Redis.Prefix, cfg.RedisTTL())
	}
	sc.client = cftc.NewClient(opts)

	start, end := cfg.Period()
	sc.source = cftc.NewSource(sc.client, cftc.SourceOptions{
		Report: cfg.ReportType(),
		Start:  start,
		End:    end,
	})
}

// initStorage opens one exporter per requested format.
func (sc *ServiceContext) initStorage() error {
	cfg := sc.Config
	var repos []port.ResultRepository

	for _, f := range cfg.Export.Formats {
		switch f {
		case config.FormatCSV:
			repos = append(repos, filerepo.NewCSVExporter(cfg.Export.OutDir))
		case config.FormatJSON:
			repos = append(repos, filerepo.NewJSONExporter(cfg.Export.OutDir))
		case config.FormatSQLite:
			repo, err := sqliterepo.New(cfg.Storage.SQLite.Path)
			if err != nil {
				_ = composite.New(repos...).Close()
				return fmt.Errorf("sqlite repo creation failed: %w", err)
			}
			repos = append(repos, repo)
			log.Info().Str("path", cfg.Storage.SQLite.Path).Msg("✓ SQLite initialized")
		case config.FormatPostgres:
			repo, err := postgresrepo.New(cfg.Storage.Postgres.DSN)
			if err != nil {
				_ = composite.New(repos...).Close()
				return fmt.Errorf("postgres repo creation failed: %w", err)
			}
			repos = append(repos, repo)
			log.Info().Msg("✓ Postgres initialized")
		case config.FormatRedis:
			repos = append(repos, redisrepo.New(
				sc.redisClient,
				cfg.Storage.Redis.Prefix,
				cfg.RedisTTL(),
				cfg.Storage.Redis.SignalStream,
				cfg.Storage.Redis.SignalChannel,
			))
		}
	}

	sc.repo = composite.New(repos...)
	// registered after redis, so it closes before the client
	sc.closerChain = append(sc.closerChain, func() error {
		log.Debug().Str("export", sc.repo.Name()).Msg("closing exporters")
		return sc.repo.Close()
	})
	return nil
}

// Source exposes the CFTC source, mainly for tests.
func (sc *ServiceContext) Source() *cftc.Source { return sc.source }

func (sc *ServiceContext) Repo() port.ResultRepository { return sc.repo }

func (sc *ServiceContext) Metrics() *metrics.Run { return sc.metrics }

// BuildAnalysisServiceDeps assembles everything analysis.NewService needs.
func (sc *ServiceContext) BuildAnalysisServiceDeps() analysis.ServiceDeps {
	cfg := sc.Config
	start, end := cfg.Period()
	var repo port.ResultRepository = sc.repo
	if sc.repo.Len() == 0 {
		repo = analysis.NewNoopRepo()
	}

	return analysis.ServiceDeps{
		Source:   sc.source,
		Repo:     repo,
		Sink:     sc.Sink,
		Metrics:  sc.metrics,
		Markets:  cfg.MarketTable(),
		Selected: cfg.Analysis.Markets,
		Report:   cfg.ReportType(),
		Group:    cfg.TraderGroup(),
		Window:   cfg.Analysis.Window,
		Extreme:  cfg.Analysis.Extremes,
		Workers:  cfg.Analysis.Workers,
		Start:    start,
		End:      end,
	}
}

// WriteMetrics dumps run metrics when a textfile path is configured.
func (sc *ServiceContext) WriteMetrics() error {
	path := sc.Config.Metrics.Textfile
	if path == "" {
		return nil
	}
	if err := sc.metrics.WriteTextfile(path); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	log.Info().Str("path", path).Msg("metrics written")
	return nil
}

// Close releases resources in reverse order of creation.
func (sc *ServiceContext) Close() error {
	for i := len(sc.closerChain) - 1; i >= 0; i-- {
		if err := sc.closerChain[i](); err != nil {
			log.Error().Err(err).Msg("error closing resource")
		}
	}
	sc.closerChain = nil
	return nil
}
