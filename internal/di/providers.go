package di

import (
	"context"
	"fmt"
	"time"

	"AOWI/internal/domain/models"
	"AOWI/internal/domain/repository"
	"AOWI/internal/domain/service"
	"AOWI/internal/handler/api"
	mid "AOWI/internal/middleware"
	internalrepo "AOWI/internal/repository"
	"AOWI/internal/service/broker"
	"AOWI/internal/service/marketdata"
	"AOWI/internal/services/strategies"
	"AOWI/internal/usecase"
	"AOWI/pkg/cache"
	pkgch "AOWI/pkg/clickhouse"
	"AOWI/pkg/config"
	xhttp "AOWI/pkg/http"
	pkgkafka "AOWI/pkg/kafka"
	applogger "AOWI/pkg/logger"
	"AOWI/pkg/metrics"
	"AOWI/pkg/server"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// RunID identifies one process run across the loop, sinks and logs.
type RunID string

// ProvideRunID generates a fresh run identifier.
func ProvideRunID() RunID { return RunID(uuid.NewString()) }

// ProvideLogger creates the application logger.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:      cfg.Log.Level,
		Format:     cfg.Log.Format,
		Output:     cfg.Log.Output,
		TimeFormat: cfg.Log.TimeFormat,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(applogger.String("env", cfg.Environment)), nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() repository.Metrics {
	return metrics.New(prometheus.DefaultRegisterer)
}

// ProvideStrategies builds every configured strategy unit.
func ProvideStrategies(cfg *config.Config) ([]service.Strategy, error) {
	opts := make(map[string]models.Options, len(cfg.Strategies))
	for name, o := range cfg.Strategies {
		opts[name] = models.Options(o)
	}
	units, err := strategies.Default().Build(opts)
	if err != nil {
		return nil, fmt.Errorf("strategies: %w", err)
	}
	return units, nil
}

func noCleanup() {}

func closeWith(log *applogger.Logger, name string, close func() error) func() {
	return func() {
		if err := close(); err != nil {
			log.Warn("close error", applogger.String("client", name), applogger.Error(err))
		}
	}
}

// ProvideRedisClient opens Redis when quotes come from a snapshot. It returns nil otherwise.
func ProvideRedisClient(cfg *config.Config, log *applogger.Logger) (*redis.Client, func(), error) {
	if cfg.MarketData.Source != config.SourceRedis {
		return nil, noCleanup, nil
	}
	rc := cfg.MarketData.Redis
	client, err := cache.NewRedisClient(
		cache.WithRedisAddr(rc.Addr),
		cache.WithRedisPassword(rc.Password),
		cache.WithRedisDB(rc.DB),
		cache.WithRedisPool(rc.PoolSize, 2, 30*time.Second),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis client: %w", err)
	}
	return client, closeWith(log, "redis", client.Close), nil
}

// ProvideMarketSource picks the quote source.
func ProvideMarketSource(cfg *config.Config, rdb *redis.Client, log *applogger.Logger) repository.MarketSource {
	md := cfg.MarketData
	if md.Source == config.SourceRedis && rdb != nil {
		return marketdata.NewRedisSnapshot(rdb, md.Redis.KeyPrefix, md.Symbols,
			marketdata.WithMaxAge(md.Redis.MaxAge),
			marketdata.WithSnapshotLogger(log),
		)
	}
	return marketdata.NewSynthetic(marketdata.SyntheticConfig{
		Symbols:   md.Symbols,
		Seed:      md.Synthetic.Seed,
		StepBps:   md.Synthetic.StepBps,
		SpreadBps: md.Synthetic.SpreadBps,
	})
}

// ProvideKafkaProducer creates a Kafka producer when the kafka sink is enabled.
func ProvideKafkaProducer(cfg *config.Config, log *applogger.Logger) (*pkgkafka.Producer, func(), error) {
	kc := cfg.Outcomes.Kafka
	if !kc.Enabled {
		return nil, noCleanup, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(kc.Brokers),
		pkgkafka.WithCompression(kc.Compression),
		pkgkafka.WithRequiredAcks(kc.RequiredAcks),
		pkgkafka.WithBatchSize(kc.BatchSize),
		pkgkafka.WithBatchBytes(kc.BatchBytes),
		pkgkafka.WithBatchTimeout(kc.BatchTimeout),
		pkgkafka.WithTimeouts(kc.WriteTimeout, kc.WriteTimeout),
		pkgkafka.WithMaxAttempts(kc.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, closeWith(log, "kafka", producer.Close), nil
}

// ProvideClickHouseClient creates a ClickHouse client and the results table when enabled.
func ProvideClickHouseClient(cfg *config.Config, log *applogger.Logger) (*pkgch.Client, func(), error) {
	cc := cfg.Outcomes.ClickHouse
	if !cc.Enabled {
		return nil, noCleanup, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cc.Host),
		pkgch.WithPort(cc.Port),
		pkgch.WithDatabase(cc.Database),
		pkgch.WithCredentials(cc.User, cc.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cc.UseHTTP),
		pkgch.WithAsyncInsert(cc.AsyncInsert, cc.WaitForAsync),
		pkgch.WithTimeouts(cc.DialTimeout, cc.ReadTimeout, cc.WriteTimeout),
		pkgch.WithMaxExecutionTime(cc.MaxExecutionTime),
		pkgch.WithPingTimeout(cc.PingTimeout),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := client.InitSchema(ctx, internalrepo.ResultSchema(cc.Database, resultsTable(cfg))); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, closeWith(log, "clickhouse", client.Close), nil
}

func resultsTable(cfg *config.Config) string {
	cc := cfg.Outcomes.ClickHouse
	if cc.Database == "" {
		return cc.Table
	}
	return cc.Database + "." + cc.Table
}

// ProvideResultSinks collects the enabled outcome sinks.
func ProvideResultSinks(cfg *config.Config, runID RunID, producer *pkgkafka.Producer, ch *pkgch.Client) []repository.ResultSink {
	var sinks []repository.ResultSink
	if producer != nil {
		sinks = append(sinks, internalrepo.NewKafkaResultPublisher(producer, cfg.Outcomes.Kafka.Topic, string(runID)))
	}
	if ch != nil {
		sinks = append(sinks, internalrepo.NewClickHouseResultStore(ch.DB(), resultsTable(cfg), string(runID)))
	}
	return sinks
}

// ProvideOutcomePipeline creates the background forwarder to the sinks.
func ProvideOutcomePipeline(cfg *config.Config, sinks []repository.ResultSink, m repository.Metrics, log *applogger.Logger) *mid.OutcomePipeline {
	p := cfg.Outcomes.Pipeline
	return mid.NewOutcomePipeline(sinks, m,
		mid.WithBufferSize(p.BufferSize),
		mid.WithRetry(p.RetryMax, p.BackoffMin, p.BackoffMax),
		mid.WithPipelineLogger(log.With(applogger.String("component", "outcome_pipeline"))),
	)
}

// ProvideLiveAdapter returns the MT5 adapter in live mode and nil otherwise.
func ProvideLiveAdapter(cfg *config.Config, log *applogger.Logger) repository.BrokerAdapter {
	if cfg.Broker.Mode != config.ModeLive {
		return nil
	}
	m := cfg.Broker.MT5
	return broker.NewLive(broker.LiveConfig{
		BaseURL:            m.BaseURL,
		Login:              m.Login,
		Password:           m.Password,
		Server:             m.Server,
		Timeout:            m.Timeout,
		Deviation:          m.Deviation,
		Magic:              m.Magic,
		MaxOrdersPerSecond: m.MaxOrdersPerSecond,
		Burst:              m.Burst,
	}, broker.WithLiveLogger(log))
}

// ProvideOutcomeLog creates the in-memory outcome log.
func ProvideOutcomeLog() *usecase.OutcomeLog { return usecase.NewOutcomeLog() }

// ProvideDispatchConfig maps the dispatch and risk sections onto loop settings.
func ProvideDispatchConfig(cfg *config.Config) (usecase.DispatchConfig, error) {
	d := cfg.Dispatch
	policy, err := usecase.ParseConflictPolicy(d.ConflictPolicy)
	if err != nil {
		return usecase.DispatchConfig{}, fmt.Errorf("dispatch config: %w", err)
	}
	maxVol, perSymbol, err := cfg.Risk.Volumes()
	if err != nil {
		return usecase.DispatchConfig{}, fmt.Errorf("dispatch config: %w", err)
	}
	return usecase.DispatchConfig{
		Cycles:            d.CycleBudget(),
		Interval:          d.Interval,
		Workers:           d.Workers,
		ConnectTimeout:    d.ConnectTimeout,
		ViewTimeout:       d.ViewTimeout,
		EvaluateTimeout:   d.EvaluateTimeout,
		SubmitTimeout:     d.SubmitTimeout,
		DisconnectTimeout: d.DisconnectTimeout,
		DrainTimeout:      d.DrainTimeout,
		ConflictPolicy:    policy,
		Limits: models.RiskLimits{
			AllowedSymbols:  cfg.Risk.AllowedSymbols,
			MaxVolume:       maxVol,
			SymbolMaxVolume: perSymbol,
		},
	}, nil
}

// ProvideDispatchLoop creates the dispatch loop use case.
func ProvideDispatchLoop(
	units []service.Strategy,
	source repository.MarketSource,
	dcfg usecase.DispatchConfig,
	live repository.BrokerAdapter,
	pipeline *mid.OutcomePipeline,
	outcomes *usecase.OutcomeLog,
	m repository.Metrics,
	log *applogger.Logger,
	runID RunID,
) (*usecase.DispatchLoop, error) {
	opts := []usecase.DispatchOption{
		usecase.WithRunID(string(runID)),
		usecase.WithSimulationAdapter(broker.NewSimulation()),
		usecase.WithForwarder(pipeline),
		usecase.WithOutcomeLog(outcomes),
		usecase.WithDispatchMetrics(m),
		usecase.WithDispatchLogger(log.With(applogger.String("component", "dispatch"))),
	}
	if live != nil {
		opts = append(opts, usecase.WithLiveAdapter(live))
	}
	loop, err := usecase.NewDispatchLoop(units, source, dcfg, opts...)
	if err != nil {
		return nil, fmt.Errorf("dispatch loop: %w", err)
	}
	return loop, nil
}

// ProvideHTTPServer creates the status API server. It returns nil when disabled.
// Enabled infrastructure clients are reported by /healthz.
func ProvideHTTPServer(cfg *config.Config, loop *usecase.DispatchLoop, log *applogger.Logger, rdb *redis.Client, ch *pkgch.Client) *xhttp.Server {
	sc := cfg.Server
	if !sc.Enabled {
		return nil
	}
	h := api.NewDispatchEchoHandler(log, loop,
		api.WithRequestLimit(sc.Burst, sc.RequestsPerSecond),
		api.WithPingInterval(sc.PingInterval),
	)
	opts := []xhttp.ServerOption{
		xhttp.WithPort(sc.Port),
		xhttp.WithTimeouts(sc.ReadTimeout, 0, sc.ShutdownTimeout),
		xhttp.WithSlowThreshold(sc.SlowThreshold),
		xhttp.WithCORS(sc.CORS),
		xhttp.WithLogger(log),
	}
	if rdb != nil {
		opts = append(opts, xhttp.WithHealthCheck("redis", func(ctx context.Context) error { return rdb.Ping(ctx).Err() }))
	}
	if ch != nil {
		opts = append(opts, xhttp.WithHealthCheck("clickhouse", ch.Health))
	}
	return xhttp.NewServer(h, opts...)
}

// ProvideApp creates the application server. Infrastructure clients are closed
// by the injector's cleanup once Run returns.
func ProvideApp(
	cfg *config.Config,
	log *applogger.Logger,
	loop *usecase.DispatchLoop,
	pipeline *mid.OutcomePipeline,
	httpServer *xhttp.Server,
) *server.App {
	return server.New(cfg, log, loop, pipeline, httpServer)
}
