package di

import (
	"context"
	"fmt"
	"time"

	"FxPredict/internal/domain/models"
	domrepo "FxPredict/internal/domain/repository"
	"FxPredict/internal/handler/api"
	internalrepo "FxPredict/internal/repository"
	"FxPredict/internal/scheduler"
	svcmetrics "FxPredict/internal/service/metrics"
	"FxPredict/internal/service/ratelimit"
	"FxPredict/internal/service/ratesource"
	"FxPredict/internal/services/regression"
	"FxPredict/internal/services/synthesis"
	"FxPredict/internal/usecase"
	"FxPredict/pkg/cache"
	pkgch "FxPredict/pkg/clickhouse"
	"FxPredict/pkg/config"
	xhttp "FxPredict/pkg/http"
	pkgkafka "FxPredict/pkg/kafka"
	applogger "FxPredict/pkg/logger"
	"FxPredict/pkg/metrics"
	"FxPredict/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// ProvideLogger builds the process logger from the log section.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("service", "fxpredict"), applogger.String("env", cfg.Environment)), nil
}

// ProvideRegistry creates the registry scraped at /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.NewWithRegisterer(reg)
}

// ProvideCache returns the in-process LRU, layered over Redis when enabled.
func ProvideCache(cfg *config.Config, l *applogger.Logger) (cache.Service, error) {
	memOpts := []cache.MemoryOption{
		cache.WithMemoryMaxSize(cfg.Cache.MaxSize),
		cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
	}
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(memOpts...), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Addr),
		cache.WithRedisPassword(cfg.Cache.Redis.Password),
		cache.WithRedisDB(cfg.Cache.Redis.DB),
		cache.WithRedisPool(cfg.Cache.Redis.PoolSize, 2, 30*time.Second),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	l.Info("rate cache layered over redis", applogger.String("addr", cfg.Cache.Redis.Addr))
	return cache.NewLayeredCache(rc, cfg.Cache.L1TTL, memOpts...), nil
}

// ProvideCurrencySet returns the build-time currency set; it is not configurable.
func ProvideCurrencySet() models.CurrencySet {
	return models.DefaultCurrencySet()
}

// ProvideRateSource returns the live ER-API source behind the rate-table cache.
func ProvideRateSource(cfg *config.Config, set models.CurrencySet, c cache.Service, l *applogger.Logger) *ratesource.CachedRateSource {
	client := xhttp.NewClient(
		xhttp.WithTimeout(cfg.RateSource.Timeout),
		xhttp.WithRetry(2, 250*time.Millisecond),
	)
	upstream := ratesource.NewERAPIClient(cfg.RateSource.BaseURL, set.Base(), client)
	return ratesource.NewCachedRateSource(upstream, c, set.Base(), cfg.RateSource.CacheTTL, l)
}

func ProvidePipeline(cfg *config.Config, set models.CurrencySet, rates *ratesource.CachedRateSource, rec *metrics.Recorder) (*usecase.PredictionPipeline, error) {
	loc, err := time.LoadLocation(cfg.Forecast.Timezone)
	if err != nil {
		return nil, fmt.Errorf("forecast timezone: %w", err)
	}
	return usecase.NewPredictionPipeline(
		set,
		rates,
		synthesis.New(),
		regression.NewOLS(),
		usecase.WithLocation(loc),
		usecase.WithRateTimeout(cfg.Forecast.RateTimeout),
		usecase.WithConcurrency(cfg.Forecast.Concurrency),
		usecase.WithMetrics(rec),
	), nil
}

// ProvideClickHouseClient connects and creates the snapshot table; nil when disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	client, err := pkgch.NewClient(ctx,
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	if err := client.InitSchema(ctx, internalrepo.SnapshotSchema(cfg.ClickHouse.Database, cfg.ClickHouse.Table)); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideSnapshotStore returns nil when ClickHouse is disabled.
func ProvideSnapshotStore(cfg *config.Config, client *pkgch.Client, l *applogger.Logger) domrepo.SnapshotStore {
	if client == nil {
		return nil
	}
	return internalrepo.NewCHSnapshotStore(client.DB(), cfg.ClickHouse.Database+"."+cfg.ClickHouse.Table, l)
}

// ProvideKafkaProducer returns nil unless snapshots are routed to Kafka.
func ProvideKafkaProducer(cfg *config.Config, reg *prometheus.Registry) (*pkgkafka.Producer, error) {
	if cfg.Backend.Type != usecase.BackendKafka {
		return nil, nil
	}
	p, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithWriteTimeout(cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.BatchTimeout),
		pkgkafka.WithHashByKey(true),
		pkgkafka.WithProducerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return p, nil
}

func ProvideSnapshotPublisher(cfg *config.Config, producer *pkgkafka.Producer) domrepo.SnapshotPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaSnapshotPublisher(producer, cfg.Kafka.Topic)
}

func ProvideStreamHub(cfg *config.Config, l *applogger.Logger) *api.StreamHub {
	return api.NewStreamHub(l, cfg.Stream.PingInterval)
}

func ProvideSnapshotProcessor(
	cfg *config.Config,
	pipeline *usecase.PredictionPipeline,
	pub domrepo.SnapshotPublisher,
	store domrepo.SnapshotStore,
	hub *api.StreamHub,
	rec *metrics.Recorder,
	l *applogger.Logger,
) (*usecase.SnapshotProcessor, error) {
	p, err := usecase.NewSnapshotProcessor(pipeline, cfg.Backend.Type, pub, store, hub, rec, l)
	if err != nil {
		return nil, fmt.Errorf("snapshot processor: %w", err)
	}
	return p, nil
}

// ProvideScheduler returns nil when scheduling is disabled. Redis-backed caches
// double as the cross-instance run lock.
func ProvideScheduler(cfg *config.Config, proc *usecase.SnapshotProcessor, c cache.Service, l *applogger.Logger) (*scheduler.Scheduler, error) {
	if !cfg.Scheduler.Enabled {
		return nil, nil
	}
	var lock cache.Service
	if cfg.Cache.Redis.Enabled {
		lock = c
	}
	s := scheduler.NewScheduler(proc, lock, l, cfg.Scheduler.Timeout)
	if err := s.Register(cfg.Scheduler.Spec); err != nil {
		return nil, err
	}
	return s, nil
}

// ProvideKafkaConsumer returns nil unless snapshot ingestion is enabled.
func ProvideKafkaConsumer(
	cfg *config.Config,
	store domrepo.SnapshotStore,
	rec *metrics.Recorder,
	reg *prometheus.Registry,
	l *applogger.Logger,
) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Consumer.Enabled || store == nil {
		return nil, nil
	}
	c, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerRegisterer(reg),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	c.RegisterHandler(usecase.NewKafkaSnapshotHandler(cfg.Kafka.Topic, store, rec))
	return c, nil
}

// ProvideRateLimiter returns nil when rate limiting is disabled.
func ProvideRateLimiter(cfg *config.Config) *ratelimit.Limiter {
	if !cfg.RateLimit.Enabled {
		return nil
	}
	return ratelimit.New(cfg.RateLimit.Burst, cfg.RateLimit.RefillPerSec, cfg.RateLimit.ExpiresIn)
}

func ProvideEndpointMetrics(reg *prometheus.Registry) *svcmetrics.EndpointMetrics {
	return svcmetrics.NewEndpointMetrics(reg)
}

func ProvidePredictionsHandler(
	l *applogger.Logger,
	pipeline *usecase.PredictionPipeline,
	store domrepo.SnapshotStore,
	limiter *ratelimit.Limiter,
	em *svcmetrics.EndpointMetrics,
) *api.PredictionsEchoHandler {
	return api.NewPredictionsEchoHandler(l, pipeline, store, limiter, em)
}

func ProvideHTTPServer(
	cfg *config.Config,
	l *applogger.Logger,
	predictions *api.PredictionsEchoHandler,
	hub *api.StreamHub,
	reg *prometheus.Registry,
) *xhttp.Server {
	opts := []xhttp.ServerOption{
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithRegistry(reg),
	}
	if cfg.Server.Host != "" {
		opts = append(opts, xhttp.WithHost(cfg.Server.Host))
	}
	if len(cfg.Server.CORSOrigins) > 0 {
		opts = append(opts, xhttp.WithCORSOrigins(cfg.Server.CORSOrigins))
	}
	return xhttp.NewServer(l, []xhttp.Handler{predictions, hub}, opts...)
}

func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	srv *xhttp.Server,
	sched *scheduler.Scheduler,
	consumer *pkgkafka.Consumer,
	proc *usecase.SnapshotProcessor,
	hub *api.StreamHub,
	chClient *pkgch.Client,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, srv, sched, consumer, proc, hub, chClient, c)
}
