package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"daytrade/internal/domain/repository"
	"daytrade/internal/handler/api"
	"daytrade/internal/model"
	internalrepo "daytrade/internal/repository"
	"daytrade/internal/service/marketdata"
	"daytrade/internal/service/stream"
	"daytrade/internal/usecase"
	"daytrade/pkg/cache"
	pkgch "daytrade/pkg/clickhouse"
	"daytrade/pkg/config"
	xhttp "daytrade/pkg/http"
	pkgkafka "daytrade/pkg/kafka"
	applogger "daytrade/pkg/logger"
	"daytrade/pkg/metrics"
	"daytrade/pkg/queue"
	"daytrade/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// schema through the stores' Init.
func ProvideClickHouseClient(cfg *config.Config, l *applogger.Logger) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithAddr(cfg.ClickHouse.Host, cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := internalrepo.NewCHBarStore(client, l).Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	if err := internalrepo.NewCHDatasetStore(client, l).Init(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, nil
}

// ProvideBarStore creates the daily bar repository.
func ProvideBarStore(ch *pkgch.Client, l *applogger.Logger) repository.BarStore {
	return internalrepo.NewCHBarStore(ch, l)
}

// ProvideDatasetStore creates the feature row repository.
func ProvideDatasetStore(ch *pkgch.Client, l *applogger.Logger) repository.DatasetStore {
	return internalrepo.NewCHDatasetStore(ch, l)
}

// ProvideMarketData creates the historical bar provider client.
func ProvideMarketData(cfg *config.Config, l *applogger.Logger) (repository.MarketData, error) {
	return marketdata.New(l, marketdata.Config{
		BaseURL:        cfg.Market.BaseURL,
		Interval:       cfg.Market.Interval,
		Timezone:       cfg.Market.Timezone,
		RetryCount:     cfg.Market.RetryCount,
		RetryBaseDelay: cfg.Market.RetryBaseDelay,
		RetryMaxDelay:  cfg.Market.RetryMaxDelay,
	})
}

// ProvideMarketStream creates the realtime tick stream, or nil when
// streaming is disabled.
func ProvideMarketStream(cfg *config.Config, l *applogger.Logger) repository.MarketStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.New(l,
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Market.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
	)
}

// ProvideKafkaProducer creates a Kafka producer, or nil when Kafka is
// disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher creates the Kafka-backed event publisher.
func ProvidePublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.Publisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.BarTopic, cfg.Kafka.EventTopic)
}

// ProvideKafkaConsumer creates the bar consumer, or nil when Kafka is
// disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *applogger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(l,
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideBarHandler creates the Kafka bar ingest handler.
func ProvideBarHandler(cfg *config.Config, barStore repository.BarStore, m repository.Metrics, l *applogger.Logger) pkgkafka.MessageHandler {
	return usecase.NewBarIngestHandler(cfg.Kafka.BarTopic, barStore, m, l)
}

// ProvideRedisClient creates a Redis connection for the queue, or nil
// when Redis is disabled.
func ProvideRedisClient(cfg *config.Config) *redis.Client {
	if !cfg.Cache.Redis.Enabled {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.Cache.Redis.Addr,
		Password: cfg.Cache.Redis.Password,
		DB:       cfg.Cache.Redis.DB,
	})
}

// ProvideCache creates the prediction cache: layered over Redis when
// available, in-process LRU otherwise.
func ProvideCache(cfg *config.Config, l *applogger.Logger) cache.Service {
	mem := cache.NewMemoryCache()
	if !cfg.Cache.Redis.Enabled {
		return mem
	}
	rc, err := cache.NewRedisCache(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
	if err != nil {
		l.Warn("redis cache unavailable, using memory cache", applogger.Error(err))
		return mem
	}
	return cache.NewLayeredCache(mem, rc)
}

// ProvideQueue creates the background job queue, or nil without Redis.
func ProvideQueue(cfg *config.Config, client *redis.Client, l *applogger.Logger) *queue.RedisQueue {
	if client == nil {
		return nil
	}
	return queue.NewRedisQueue(l, &queue.Config{
		Workers:    2,
		RetryLimit: 3,
		RetryDelay: 30 * time.Second,
	}, client)
}

// ProvideDatasetBuilder creates the dataset build use case.
func ProvideDatasetBuilder(
	cfg *config.Config,
	marketData repository.MarketData,
	barStore repository.BarStore,
	datasetStore repository.DatasetStore,
	publisher repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.DatasetBuilder {
	return usecase.NewDatasetBuilder(usecase.BuilderConfig{
		MarginPct:    cfg.Dataset.MarginPct,
		WinsorizePct: cfg.Dataset.WinsorizePct,
		MinDays:      cfg.Dataset.MinTradingDays,
		OutputPath:   cfg.Dataset.OutputPath,
	}, marketData, barStore, datasetStore, publisher, m, l)
}

// ProvideTrainer creates the training use case.
func ProvideTrainer(cfg *config.Config, builder *usecase.DatasetBuilder, m repository.Metrics, l *applogger.Logger) *usecase.Trainer {
	params := model.DefaultParams()
	params.NumLeaves = cfg.Model.NumLeaves
	params.LearningRate = cfg.Model.LearningRate
	params.NEstimators = cfg.Model.NEstimators

	return usecase.NewTrainer(usecase.TrainerConfig{
		ModelPath: cfg.Model.Path,
		CVSplits:  cfg.Model.CVSplits,
		Params:    params,
	}, builder, m, l)
}

// ProvidePredictor creates the prediction use case.
func ProvidePredictor(
	cfg *config.Config,
	barStore repository.BarStore,
	marketData repository.MarketData,
	cacheSvc cache.Service,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.Predictor {
	return usecase.NewPredictor(usecase.PredictorConfig{
		ModelPath: cfg.Model.Path,
		CacheTTL:  cfg.Cache.PredictionTTL,
	}, barStore, marketData, cacheSvc, m, l)
}

// ProvideBuildJob creates the queue job for async dataset builds.
func ProvideBuildJob(builder *usecase.DatasetBuilder, l *applogger.Logger) queue.Job {
	return usecase.NewDatasetBuildJob(builder, l)
}

// ProvideStreamIngestor creates the tick aggregator, or nil when the
// stream is disabled.
func ProvideStreamIngestor(
	ms repository.MarketStream,
	barStore repository.BarStore,
	publisher repository.Publisher,
	m repository.Metrics,
	l *applogger.Logger,
) *usecase.StreamIngestor {
	if ms == nil {
		return nil
	}
	return usecase.NewStreamIngestor(ms, barStore, publisher, m, l, time.Minute)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(l *applogger.Logger, predictor *usecase.Predictor, q *queue.RedisQueue, barStore repository.BarStore) xhttp.Handler {
	var svc queue.Service
	if q != nil {
		svc = q
	}
	return api.NewPredictionsHandler(l, predictor, svc, barStore)
}

// ProvideApp assembles the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	barHandler pkgkafka.MessageHandler,
	q *queue.RedisQueue,
	buildJob queue.Job,
	ingestor *usecase.StreamIngestor,
	chClient *pkgch.Client,
) *server.App {
	return server.New(cfg, l, httpHandler, consumer, barHandler, q, buildJob, ingestor, chClient)
}
