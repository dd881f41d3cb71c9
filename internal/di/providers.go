package di

import (
	"context"
	"fmt"
	"time"

	drepo "GexFlow/internal/domain/repository"
	"GexFlow/internal/gex"
	"GexFlow/internal/handler/api"
	internalrepo "GexFlow/internal/repository"
	"GexFlow/internal/service/chainfeed"
	"GexFlow/internal/usecase"
	"GexFlow/pkg/cache"
	pkgch "GexFlow/pkg/clickhouse"
	"GexFlow/pkg/config"
	xhttp "GexFlow/pkg/http"
	pkgkafka "GexFlow/pkg/kafka"
	applogger "GexFlow/pkg/logger"
	"GexFlow/pkg/metrics"
	"GexFlow/pkg/server"
)

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() drepo.Metrics {
	return metrics.New()
}

// ProvideChainProvider creates the options-chain feed client.
func ProvideChainProvider(cfg *config.Config, log *applogger.Logger) *chainfeed.Client {
	return chainfeed.New(
		cfg.Provider.BaseURL,
		cfg.Provider.WebSocketURL,
		cfg.Provider.APIKey,
		cfg.Provider.RequestTimeout,
		cfg.Provider.ReconnectDelay,
		cfg.Provider.PingInterval,
		log,
	)
}

// ProvideVolSeedCache creates the in-process vol seed cache. The app owns
// its teardown: the sweep goroutine stops in App.shutdown.
func ProvideVolSeedCache() *cache.MemoryCache {
	return cache.NewMemoryCache(
		cache.WithMaxSize(10000),
		cache.WithCleanupInterval(time.Minute),
	)
}

// ProvideAggregator creates the exposure aggregator with a vol seed cache so
// each recompute starts Newton from the previous solution.
func ProvideAggregator(cfg *config.Config, seedCache *cache.MemoryCache, m drepo.Metrics) *gex.Aggregator {
	agg := gex.NewAggregator(gex.NewSolver())
	agg.SetVolSeeds(internalrepo.NewCachedVolSeeds(seedCache, cfg.Cache.VolSeedTTL))
	agg.SetMetrics(m)
	return agg
}

// ProvideDetector creates the critical-level detector.
func ProvideDetector(cfg *config.Config) *gex.Detector {
	return gex.NewDetector(cfg.Engine.GexThreshold)
}

// ProvideSnapshotStore creates the atomic snapshot store.
func ProvideSnapshotStore() *gex.SnapshotStore {
	return gex.NewSnapshotStore()
}

// ProvideKafkaProducer creates a Kafka producer, or nil when alert
// publishing is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Alerts.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Alerts.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Alerts.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Alerts.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Alerts.Kafka.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Alerts.Kafka.WriteTimeout),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideClickHouseClient creates a ClickHouse client with the snapshot
// history schema initialized, or nil when history is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	ch := cfg.History.ClickHouse
	if !ch.Enabled {
		return nil, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(ch.Host),
		pkgch.WithPort(ch.Port),
		pkgch.WithDatabase(ch.Database),
		pkgch.WithCredentials(ch.User, ch.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(ch.DialTimeout, ch.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.Schema(ch.Database, "gex_snapshots")); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSnapshotMirror creates the Redis latest-snapshot mirror, or nil
// when Redis is disabled.
func ProvideSnapshotMirror(cfg *config.Config) (drepo.SnapshotMirror, error) {
	rd := cfg.Cache.Redis
	if !rd.Enabled {
		return nil, nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithAddr(rd.Addr),
		cache.WithCredentials(rd.Password, rd.DB),
		cache.WithPrefix("gexflow"),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return internalrepo.NewRedisSnapshotMirror(rc), nil
}

// ProvideLevelMonitor assembles the monitor with every configured sink.
func ProvideLevelMonitor(
	cfg *config.Config,
	provider *chainfeed.Client,
	agg *gex.Aggregator,
	det *gex.Detector,
	store *gex.SnapshotStore,
	m drepo.Metrics,
	log *applogger.Logger,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	mirror drepo.SnapshotMirror,
) *usecase.LevelMonitor {
	mon := usecase.NewLevelMonitor(usecase.MonitorConfig{
		Underlying:        cfg.Underlying,
		StrikeRangePct:    cfg.Engine.StrikeRangePct,
		RecomputeInterval: cfg.Engine.RecomputeInterval,
		RiskFreeRate:      cfg.Engine.RiskFreeRate,
		DividendYield:     cfg.Engine.DividendYield,
	}, provider, agg, det, store, m, log)

	mon.AddAlertSink(internalrepo.NewLogAlertSink(log))
	if producer != nil {
		mon.AddAlertSink(internalrepo.NewKafkaAlertPublisher(producer, cfg.Alerts.Kafka.Topic))
	}
	if chClient != nil {
		mon.SetHistory(internalrepo.NewClickHouseHistory(chClient.DB(), cfg.History.ClickHouse.Database+".gex_snapshots"))
	}
	if mirror != nil {
		mon.SetMirror(mirror)
	}
	return mon
}

// ProvideHTTPHandler creates the read-side API handler.
func ProvideHTTPHandler(log *applogger.Logger, monitor *usecase.LevelMonitor) xhttp.Handler {
	return api.NewLevelsHandler(log, monitor)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	provider *chainfeed.Client,
	monitor *usecase.LevelMonitor,
	handler xhttp.Handler,
	producer *pkgkafka.Producer,
	chClient *pkgch.Client,
	mirror drepo.SnapshotMirror,
	seedCache *cache.MemoryCache,
) *server.App {
	return server.New(cfg, log, provider, monitor, handler, producer, chClient, mirror, seedCache)
}
