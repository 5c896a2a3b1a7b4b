package di

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"QuantBench/internal/backtest"
	"QuantBench/internal/domain/repository"
	"QuantBench/internal/ensemble"
	"QuantBench/internal/handler/api"
	mid "QuantBench/internal/middleware"
	internalrepo "QuantBench/internal/repository"
	"QuantBench/internal/service/stream"
	"QuantBench/internal/usecase"
	pkgcache "QuantBench/pkg/cache"
	pkgch "QuantBench/pkg/clickhouse"
	"QuantBench/pkg/config"
	xhttp "QuantBench/pkg/http"
	pkgkafka "QuantBench/pkg/kafka"
	applogger "QuantBench/pkg/logger"
	"QuantBench/pkg/metrics"
	"QuantBench/pkg/queue"
	"QuantBench/pkg/server"
)

// Optional subsystems (ClickHouse, Kafka, the market stream, the Redis queue)
// return nil from their providers when disabled in config; downstream
// providers and the App treat a nil collaborator as "feature off".

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	return applogger.New(&applogger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New()
}

// ProvideHistoryStore creates the in-memory price history.
func ProvideHistoryStore(cfg *config.Config) repository.HistoryStore {
	return internalrepo.NewMemoryHistory(cfg.Backtest.HistoryLimit)
}

// ProvideTracker creates the model performance tracker.
func ProvideTracker() *ensemble.PerformanceTracker {
	return ensemble.NewPerformanceTracker()
}

// ProvideRegimeDetector creates the market regime detector.
func ProvideRegimeDetector(cfg *config.Config) *ensemble.RegimeDetector {
	return ensemble.NewRegimeDetector(
		ensemble.WithLookback(cfg.Ensemble.RegimeLookback),
		ensemble.WithThresholds(cfg.Ensemble.VolatilityThreshold, cfg.Ensemble.TrendThreshold),
	)
}

// ProvideWeighter creates the ensemble weighter.
func ProvideWeighter(tracker *ensemble.PerformanceTracker, log *applogger.Logger, cfg *config.Config) *ensemble.Weighter {
	return ensemble.NewWeighter(tracker,
		ensemble.WithModelBounds(cfg.Ensemble.MinModels, cfg.Ensemble.MaxModels),
		ensemble.WithLogger(log),
	)
}

// ProvideCache creates the run/job cache: layered memory+Redis when Redis is
// enabled, plain memory otherwise.
func ProvideCache(cfg *config.Config) (pkgcache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return pkgcache.NewMemoryCache(), nil
	}

	host, portStr, err := net.SplitHostPort(cfg.Cache.Redis.Addr)
	if err != nil {
		return nil, fmt.Errorf("cache redis addr: %w", err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("cache redis port: %w", err)
	}

	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(host),
		pkgcache.WithRedisPort(port),
		pkgcache.WithRedisPassword(cfg.Cache.Redis.Password),
		pkgcache.WithRedisDB(cfg.Cache.Redis.DB),
		pkgcache.WithRedisPrefix("quantbench"),
	)
	if err != nil {
		return nil, err
	}
	return pkgcache.NewLayeredCache(rc), nil
}

// ProvideClickHouseClient creates a ClickHouse client and ensures the
// database exists. Returns nil when ClickHouse is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
	}

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

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, []string{
		fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", cfg.ClickHouse.Database),
	}); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}

	return client, nil
}

// ProvideResultStore creates the ClickHouse-backed run store. Table creation
// happens in App.Run via Init.
func ProvideResultStore(chClient *pkgch.Client, cfg *config.Config) repository.ResultStore {
	if chClient == nil {
		return nil
	}
	db := cfg.ClickHouse.Database
	return internalrepo.NewClickHouseResultStore(chClient.DB(), db+".backtest_runs", db+".backtest_trades")
}

// ProvideKafkaProducer creates a Kafka producer, nil when no brokers are
// configured.
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

// ProvideRunPublisher creates the Kafka run announcer.
func ProvideRunPublisher(producer *pkgkafka.Producer, cfg *config.Config) repository.RunPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaRunPublisher(producer, cfg.Kafka.ResultsTopic)
}

// ProvideKafkaConsumer creates a Kafka consumer, nil when no brokers are
// configured.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if len(cfg.Kafka.Brokers) == 0 {
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
	return consumer, nil
}

// ProvideSignalIngest creates the prediction-ingest handler, nil when there
// is no Kafka to consume from.
func ProvideSignalIngest(
	cfg *config.Config,
	history repository.HistoryStore,
	tracker *ensemble.PerformanceTracker,
	detector *ensemble.RegimeDetector,
	m repository.Metrics,
) *usecase.SignalIngest {
	if len(cfg.Kafka.Brokers) == 0 {
		return nil
	}
	return usecase.NewSignalIngest(cfg.Kafka.SignalsTopic, history, tracker, detector, m)
}

// ProvideMarketStream creates the WebSocket market stream, nil when disabled.
func ProvideMarketStream(cfg *config.Config) repository.MarketStream {
	if !cfg.Stream.Enabled {
		return nil
	}
	return stream.New(
		cfg.Stream.APIKey,
		cfg.Stream.WebSocketURL,
		cfg.Stream.Symbols,
		cfg.Stream.ReconnectDelay,
		cfg.Stream.PingInterval,
		cfg.Stream.BufferSize,
	)
}

// ProvideTickProcessor creates the tick-to-history processor.
func ProvideTickProcessor(history repository.HistoryStore, m repository.Metrics) *usecase.TickProcessor {
	return usecase.NewTickProcessor(history, m, "stream")
}

// ProvidePriceCollector wires the stream through the realtime pipeline into
// the tick processor, nil when the stream is disabled.
func ProvidePriceCollector(
	ms repository.MarketStream,
	proc *usecase.TickProcessor,
	m repository.Metrics,
	cfg *config.Config,
) *usecase.PriceCollector {
	if ms == nil {
		return nil
	}
	pipe := mid.NewRealtimePipeline(proc, m,
		mid.WithMaxRPS(cfg.Stream.MaxRPS),
		mid.WithBufferSize(cfg.Stream.BufferSize),
	)
	return usecase.NewPriceCollector(ms, proc, m, pipe)
}

// ProvideBacktestRunner creates the core run orchestrator.
func ProvideBacktestRunner(
	weighter *ensemble.Weighter,
	detector *ensemble.RegimeDetector,
	m repository.Metrics,
	log *applogger.Logger,
	cfg *config.Config,
	cache pkgcache.Service,
	store repository.ResultStore,
	pub repository.RunPublisher,
) *usecase.BacktestRunner {
	strategy, err := ensemble.ParseStrategy(cfg.Ensemble.DefaultStrategy)
	if err != nil {
		strategy = ensemble.StrategyRegimeAware
	}
	rcfg := usecase.RunnerConfig{
		Sim: backtest.SimConfig{
			InitialCapital:   cfg.Backtest.InitialCapital,
			TransactionCosts: cfg.Backtest.TransactionCosts,
		},
		Eval: backtest.EvalConfig{
			RiskFreeRate: cfg.Backtest.RiskFreeRate,
			PeriodsYear:  cfg.Backtest.TradingDays,
		},
		DefaultStrategy: strategy,
		ResultTTL:       cfg.Cache.ResultTTL,
		LiveTTL:         cfg.Cache.RegimeTTL,
	}

	opts := []usecase.RunnerOption{usecase.WithResultCache(cache)}
	if store != nil {
		opts = append(opts, usecase.WithResultStore(store))
	}
	if pub != nil {
		opts = append(opts, usecase.WithRunPublisher(pub))
	}
	return usecase.NewBacktestRunner(weighter, detector, m, log, rcfg, opts...)
}

// ProvideJobQueue creates the Redis-backed job queue, nil when disabled.
func ProvideJobQueue(cfg *config.Config, log *applogger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr: cfg.Queue.RedisAddr,
		DB:   cfg.Queue.RedisDB,
	})
	return queue.NewRedisQueue(log, &queue.QueueConfig{
		Workers:    cfg.Queue.Workers,
		RetryLimit: 3,
		RetryDelay: 10 * time.Second,
	}, client, queue.ModeProducerConsumer)
}

// ProvideAsyncBacktest creates the async job runner, nil without a queue.
func ProvideAsyncBacktest(
	runner *usecase.BacktestRunner,
	q *queue.RedisQueue,
	cache pkgcache.Service,
	cfg *config.Config,
	log *applogger.Logger,
) *usecase.AsyncBacktest {
	if q == nil {
		return nil
	}
	return usecase.NewAsyncBacktest(runner, q, cache, cfg.Queue.JobTTL, log)
}

// ProvideHTTPHandler creates the Echo route handler.
func ProvideHTTPHandler(
	log *applogger.Logger,
	runner *usecase.BacktestRunner,
	async *usecase.AsyncBacktest,
	signals *usecase.SignalIngest,
	history repository.HistoryStore,
	store repository.ResultStore,
) xhttp.Handler {
	return api.NewBacktestHandler(log, runner, async, signals, history, store)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	collector *usecase.PriceCollector,
	consumer *pkgkafka.Consumer,
	signals *usecase.SignalIngest,
	q *queue.RedisQueue,
	async *usecase.AsyncBacktest,
	store repository.ResultStore,
	chClient *pkgch.Client,
	producer *pkgkafka.Producer,
	httpHandler xhttp.Handler,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	if producer != nil {
		// Aggregate repeated error logs and ship them over Kafka.
		log.AddCollector(&applogger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Kafka.LogsTopic,
			Publisher:      kafkaLogSink{producer: producer},
		})
	}
	return server.New(cfg, log, collector, consumer, signals, q, async, store, chClient, producer, httpHandler)
}

// kafkaLogSink adapts the Kafka producer to the log collector's Publisher.
type kafkaLogSink struct {
	producer *pkgkafka.Producer
}

func (s kafkaLogSink) PublishMessage(ctx context.Context, topic string, payload interface{}) error {
	return s.producer.Publish(ctx, topic, nil, payload)
}
