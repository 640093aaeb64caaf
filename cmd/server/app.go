package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/twmb/franz-go/pkg/kgo"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"

	cataloghandler "tiptap/internal/catalog/handler"
	catalogmetrics "tiptap/internal/catalog/metrics"
	catalogservice "tiptap/internal/catalog/service"
	"tiptap/internal/catalog/store/product"
	"tiptap/internal/order/events"
	orderhandler "tiptap/internal/order/handler"
	ordermetrics "tiptap/internal/order/metrics"
	orderservice "tiptap/internal/order/service"
	"tiptap/internal/order/store/order"
	"tiptap/internal/platform/config"
	"tiptap/internal/platform/database"
	"tiptap/internal/platform/httpserver"
	"tiptap/internal/platform/logger"
	"tiptap/internal/platform/metrics"
	"tiptap/internal/platform/redis"
	ratelimitmetrics "tiptap/internal/ratelimit/metrics"
	ratelimitmw "tiptap/internal/ratelimit/middleware"
	ratelimitmodels "tiptap/internal/ratelimit/models"
	ratelimitservice "tiptap/internal/ratelimit/service"
	"tiptap/internal/ratelimit/store/bucket"
	"tiptap/internal/tag"
	httptransport "tiptap/internal/transport/http"
)

// loadConfig reads the environment and applies global flag overrides.
func loadConfig(c *cli.Context) (config.Config, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return config.Config{}, err
	}
	if c.IsSet("port") {
		cfg.Server.Port = c.Int("port")
	}
	if c.IsSet("database-url") {
		cfg.Database.URL = c.String("database-url")
	}
	if c.IsSet("redis-url") {
		cfg.Redis.URL = c.String("redis-url")
	}
	if c.IsSet("kafka-broker") {
		cfg.Kafka.Brokers = c.StringSlice("kafka-broker")
	}
	if c.IsSet("log-level") {
		cfg.Log.Level = c.String("log-level")
	}
	return cfg, nil
}

// infra holds the optional backing services; nil members are not configured.
type infra struct {
	db    *sqlx.DB
	redis *redis.Client
	kafka *kgo.Client
}

func (i *infra) Close(log *slog.Logger) {
	if i.kafka != nil {
		i.kafka.Close()
	}
	if i.redis != nil {
		if err := i.redis.Close(); err != nil {
			log.Warn("closing redis failed", "error", err)
		}
	}
	if i.db != nil {
		if err := i.db.Close(); err != nil {
			log.Warn("closing database failed", "error", err)
		}
	}
}

func connect(ctx context.Context, cfg config.Config, log *slog.Logger) (*infra, error) {
	in := &infra{}
	var err error
	if in.db, err = database.Open(ctx, cfg.Database); err != nil {
		return nil, err
	}
	if in.redis, err = redis.New(ctx, cfg.Redis); err != nil {
		in.Close(log)
		return nil, err
	}
	if len(cfg.Kafka.Brokers) > 0 {
		if in.kafka, err = events.NewKafkaClient(cfg.Kafka.Brokers, cfg.Kafka.ClientID); err != nil {
			in.Close(log)
			return nil, err
		}
	}
	log.InfoContext(ctx, "backing services",
		"postgres", in.db != nil,
		"redis", in.redis != nil,
		"kafka", in.kafka != nil,
	)
	return in, nil
}

func newCatalogService(cfg config.Config, in *infra, log *slog.Logger) (*catalogservice.Service, error) {
	grammar, err := tag.NewGrammar(cfg.Catalog.CategoryCodes)
	if err != nil {
		return nil, fmt.Errorf("category codes: %w", err)
	}
	var store product.Store = product.NewInMemory()
	if in.db != nil {
		store = product.NewPostgres(in.db)
	}
	if in.redis != nil {
		store = product.NewCached(store, in.redis.Client,
			product.WithCacheTTL(cfg.Redis.ProductTTL),
			product.WithCacheLogger(log),
		)
	}
	return catalogservice.New(store, grammar,
		catalogservice.WithLogger(log),
		catalogservice.WithMetrics(catalogmetrics.New()),
	), nil
}

func newOrderService(cfg config.Config, in *infra, log *slog.Logger) (*orderservice.Service, *events.Dispatcher) {
	var store orderservice.OrderStore = order.NewInMemory()
	if in.db != nil {
		store = order.NewPostgres(in.db)
	}
	opts := []orderservice.Option{
		orderservice.WithLogger(log),
		orderservice.WithMetrics(ordermetrics.New()),
	}
	var dispatcher *events.Dispatcher
	if in.kafka != nil {
		dispatcher = events.NewDispatcher(
			events.NewPublisher(in.kafka, cfg.Kafka.OrderTopic, events.WithLogger(log)),
			cfg.Kafka.BufferSize,
			events.WithFlushInterval(cfg.Kafka.FlushInterval),
			events.WithDrainTimeout(cfg.Server.ShutdownTimeout),
			events.WithDispatcherLogger(log),
		)
		opts = append(opts, orderservice.WithEventPublisher(dispatcher))
	}
	return orderservice.New(store, cfg.Checkout.TaxRate, opts...), dispatcher
}

// newRateLimiter returns the limiting middleware and the in-process store
// that needs periodic sweeping. Redis, when present, holds the shared windows.
func newRateLimiter(cfg config.Config, in *infra, log *slog.Logger) (*ratelimitmw.Middleware, *bucket.InMemoryBucketStore, error) {
	memory := bucket.NewInMemory()
	limits := ratelimitservice.Limits{
		ratelimitmodels.ClassRead:  {RequestsPerWindow: cfg.RateLimit.ReadRequests, Window: cfg.RateLimit.Window},
		ratelimitmodels.ClassWrite: {RequestsPerWindow: cfg.RateLimit.WriteRequests, Window: cfg.RateLimit.Window},
	}
	opts := []ratelimitservice.Option{
		ratelimitservice.WithLogger(log),
		ratelimitservice.WithMetrics(ratelimitmetrics.New()),
	}

	var store ratelimitservice.BucketStore = memory
	if in.redis != nil {
		store = bucket.NewRedis(in.redis.Client)
		opts = append(opts, ratelimitservice.WithFallback(memory))
	}
	limiter, err := ratelimitservice.New(store, limits, opts...)
	if err != nil {
		return nil, nil, fmt.Errorf("rate limits: %w", err)
	}
	return ratelimitmw.New(limiter, log, ratelimitmw.WithDisabled(cfg.RateLimit.Disabled)), memory, nil
}

func sweepLoop(ctx context.Context, store *bucket.InMemoryBucketStore, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			store.Sweep()
		}
	}
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	log := logger.New(cfg.Log)
	ctx := c.Context

	in, err := connect(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer in.Close(log)

	if in.db != nil && c.Bool("migrate") {
		if err := database.Migrate(in.db); err != nil {
			return err
		}
	}

	products, err := newCatalogService(cfg, in, log)
	if err != nil {
		return err
	}
	if c.Bool("seed-if-empty") {
		if _, err := products.SeedIfEmpty(ctx); err != nil {
			return err
		}
	}
	orders, dispatcher := newOrderService(cfg, in, log)
	limiter, limiterMemory, err := newRateLimiter(cfg, in, log)
	if err != nil {
		return err
	}

	var dbHealth httptransport.HealthCheck
	if in.db != nil {
		dbHealth = func(ctx context.Context) error { return database.Health(ctx, in.db) }
	}
	router := httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Metrics:        metrics.New(),
		Database:       dbHealth,
		RequestTimeout: cfg.Server.RequestTimeout,
		Handlers: []httptransport.Registrar{
			cataloghandler.New(products, log),
			orderhandler.New(orders, log),
		},
		RateLimit: limiter.Handler,
	})
	srv := httpserver.New(context.WithoutCancel(ctx), cfg.Server, router)

	g, gctx := errgroup.WithContext(ctx)
	if dispatcher != nil {
		g.Go(func() error { return dispatcher.Run(gctx) })
	}
	g.Go(func() error { return sweepLoop(gctx, limiterMemory, cfg.RateLimit.Window) })
	g.Go(func() error {
		log.Info("starting tiptap server", "addr", cfg.Server.Addr())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		log.Info("shutting down server")
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		return nil
	})
	return g.Wait()
}

func requireDatabase(c *cli.Context) (config.Config, *slog.Logger, *sqlx.DB, error) {
	cfg, err := loadConfig(c)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	log := logger.New(cfg.Log)
	db, err := database.Open(c.Context, cfg.Database)
	if err != nil {
		return config.Config{}, nil, nil, err
	}
	if db == nil {
		return config.Config{}, nil, nil, errors.New("DATABASE_URL or --database-url is required")
	}
	return cfg, log, db, nil
}

func migrateCmd(c *cli.Context) error {
	_, log, db, err := requireDatabase(c)
	if err != nil {
		return err
	}
	defer db.Close()

	if err := database.Migrate(db); err != nil {
		return err
	}
	version, dirty, err := database.Version(db)
	if err != nil {
		return err
	}
	log.Info("migrations applied", "version", version, "dirty", dirty)
	return nil
}

func seedCmd(c *cli.Context) error {
	cfg, log, db, err := requireDatabase(c)
	if err != nil {
		return err
	}
	in := &infra{db: db}
	defer in.Close(log)

	if err := database.Migrate(db); err != nil {
		return err
	}
	products, err := newCatalogService(cfg, in, log)
	if err != nil {
		return err
	}
	seeded, err := products.Seed(c.Context)
	if err != nil {
		return err
	}
	log.Info("catalog seeded", "count", len(seeded))
	return nil
}
