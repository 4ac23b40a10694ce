package di

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	domrepo "HelixPull/internal/domain/repository"
	"HelixPull/internal/handler/api"
	mid "HelixPull/internal/middleware"
	internalrepo "HelixPull/internal/repository"
	"HelixPull/internal/service/activity"
	"HelixPull/internal/service/binance"
	"HelixPull/internal/service/broadcast"
	"HelixPull/internal/service/cache"
	"HelixPull/internal/usecase"
	pkgch "HelixPull/pkg/clickhouse"
	"HelixPull/pkg/config"
	xhttp "HelixPull/pkg/http"
	pkgkafka "HelixPull/pkg/kafka"
	applogger "HelixPull/pkg/logger"
	"HelixPull/pkg/metrics"
	"HelixPull/pkg/server"
)

// ProvideLogger builds the app logger; Kafka-backed log aggregation is
// attached later once a producer exists.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates the Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient opens the connection pool and applies the
// schema for both the market and helix tables.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideMarketStore creates the ClickHouse market store and applies
// its schema.
func ProvideMarketStore(client *pkgch.Client) (domrepo.MarketStore, error) {
	store := internalrepo.NewMarketStore(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("market schema: %w", err)
	}
	return store, nil
}

// ProvideHelixStore creates the helix history store and applies its
// schema.
func ProvideHelixStore(client *pkgch.Client) (domrepo.HelixStore, error) {
	store := internalrepo.NewHelixStore(client)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("helix schema: %w", err)
	}
	return store, nil
}

// ProvideLatestStore creates the Redis mirror when enabled, nil
// otherwise. The engine and collectors treat nil as "no mirror".
func ProvideLatestStore(cfg *config.Config) (domrepo.LatestStore, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return internalrepo.NewLatestStore(client), nil
}

// ProvideKafkaProducer creates the producer when brokers are
// configured. Without brokers everything Kafka-backed stays off.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvidePublisher picks the persistence path for market events: via
// Kafka topics with the kafka backend, straight into ClickHouse
// otherwise.
func ProvidePublisher(
	cfg *config.Config,
	producer *pkgkafka.Producer,
	store domrepo.MarketStore,
) (domrepo.Publisher, error) {
	if cfg.Backend.Type == "kafka" {
		if producer == nil {
			return nil, fmt.Errorf("kafka backend requires brokers")
		}
		return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.TradesTopic, cfg.Kafka.CandlesTopic), nil
	}
	return internalrepo.NewStorePublisher(store), nil
}

// ProvideKafkaConsumer creates the store-side consumer for the kafka
// backend, nil otherwise.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if cfg.Backend.Type != "kafka" {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NoopHook{})
	return consumer, nil
}

// ProvideStoreHandlers builds the consumer-side topic handlers for the
// kafka backend.
func ProvideStoreHandlers(cfg *config.Config, store domrepo.MarketStore) []pkgkafka.MessageHandler {
	if cfg.Backend.Type != "kafka" {
		return nil
	}
	return []pkgkafka.MessageHandler{
		usecase.NewTradeStoreHandler(cfg.Kafka.TradesTopic, store),
		usecase.NewCandleStoreHandler(cfg.Kafka.CandlesTopic, store),
	}
}

// ProvidePriceCache creates the shared price cache.
func ProvidePriceCache() *cache.PriceCache {
	return cache.NewPriceCache()
}

// ProvideActivityLog creates the bounded activity ring.
func ProvideActivityLog(cfg *config.Config) *activity.Log {
	return activity.NewLog(cfg.Activity.MaxEntries)
}

// ProvideAccumulator creates the cumulative accumulator seeded from the
// persisted helix history so totals survive restarts.
func ProvideAccumulator(store domrepo.HelixStore, log *applogger.Logger) *usecase.Accumulator {
	acc := usecase.NewAccumulator()
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	acc.Hydrate(ctx, store, log)
	return acc
}

// ProvideHub creates the websocket fan-out hub.
func ProvideHub(log *applogger.Logger, m domrepo.Metrics) *broadcast.Hub {
	return broadcast.NewHub(log, m)
}

// ProvideEngine wires the recompute engine. The Redis mirror attaches
// only when enabled.
func ProvideEngine(
	cfg *config.Config,
	priceCache *cache.PriceCache,
	accumulator *usecase.Accumulator,
	helixStore domrepo.HelixStore,
	hub *broadcast.Hub,
	m domrepo.Metrics,
	log *applogger.Logger,
	latestStore domrepo.LatestStore,
) *usecase.Engine {
	var opts []usecase.EngineOption
	if latestStore != nil {
		opts = append(opts, usecase.WithLatestStore(latestStore))
	}
	return usecase.NewEngine(
		cfg.Binance.BaseSymbol,
		cfg.Binance.ComparisonSymbol,
		priceCache,
		accumulator,
		helixStore,
		hub,
		m,
		log,
		opts...,
	)
}

// ProvidePipeline creates the fire-and-forget persistence pipeline.
func ProvidePipeline(cfg *config.Config, log *applogger.Logger, m domrepo.Metrics) *mid.PersistPipeline {
	return mid.NewPersistPipeline(cfg.Backend.Workers, cfg.Backend.BufferSize, log, m)
}

// ProvideCollectors builds one candle collector per (symbol,
// timeframe) and one trade collector per symbol. Every collector is an
// independent reconnect loop.
func ProvideCollectors(
	cfg *config.Config,
	priceCache *cache.PriceCache,
	engine *usecase.Engine,
	pipeline *mid.PersistPipeline,
	sink domrepo.Publisher,
	latestStore domrepo.LatestStore,
	activityLog *activity.Log,
	m domrepo.Metrics,
	log *applogger.Logger,
) []server.Runner {
	var runners []server.Runner
	for _, symbol := range cfg.Symbols() {
		for _, tf := range domrepo.Timeframes() {
			stream := binance.NewCandleStream(cfg.Binance.WebSocketURL, symbol, tf, cfg.Binance.PingInterval)
			runners = append(runners, usecase.NewCandleCollector(
				stream, symbol, tf,
				priceCache, engine, pipeline, sink, latestStore,
				activityLog, m, log, cfg.Binance.ReconnectDelay,
			))
		}
		stream := binance.NewTradeStream(cfg.Binance.WebSocketURL, symbol, cfg.Binance.PingInterval)
		runners = append(runners, usecase.NewTradeCollector(
			stream, symbol,
			priceCache, engine, pipeline, sink, latestStore,
			activityLog, m, log, cfg.Binance.ReconnectDelay,
		))
	}
	return runners
}

// ProvideHTTPHandler builds the read-side API handler.
func ProvideHTTPHandler(
	cfg *config.Config,
	engine *usecase.Engine,
	helixStore domrepo.HelixStore,
	priceCache *cache.PriceCache,
	activityLog *activity.Log,
	hub *broadcast.Hub,
	marketStore domrepo.MarketStore,
) xhttp.Handler {
	return api.NewHelixHandler(engine, helixStore, priceCache, activityLog, hub, marketStore, cfg.Symbols())
}

// ProvideApp assembles the application. The producer doubles as the
// sink for aggregated error logs when present.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	collectors []server.Runner,
	pipeline *mid.PersistPipeline,
	hub *broadcast.Hub,
	httpHandler xhttp.Handler,
	consumer *pkgkafka.Consumer,
	handlers []pkgkafka.MessageHandler,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	latestStore domrepo.LatestStore,
) *server.App {
	if producer != nil && cfg.Kafka.LogsTopic != "" {
		log.AddCollector(&applogger.CollectorConfig{
			FlushInterval:  30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      producer,
		})
	}
	return server.New(cfg, log, collectors, pipeline, hub, httpHandler,
		consumer, handlers, chClient, producer, latestStore)
}
