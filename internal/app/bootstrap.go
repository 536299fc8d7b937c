package app

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"time"

	"order_engine/internal/api"
	"order_engine/internal/engine"
	"order_engine/internal/event"
	"order_engine/internal/execution"
	"order_engine/internal/infra"
	"order_engine/internal/infra/storage"
	"order_engine/internal/queue"
	"order_engine/internal/service"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const defaultConfigPath = "configs/config.yaml"

// Bootstrap owns every long-lived component and the order they start and stop in.
type Bootstrap struct {
	Config      *infra.Config
	Storage     *storage.Storage
	Queue       queue.Queue
	Redis       *redis.Client
	Router      *execution.Router
	Broadcaster *event.Broadcaster
	Pool        *engine.Pool
	Service     *service.OrderService
	Registry    *prometheus.Registry
	Server      *api.Server
}

// NewBootstrap creates a new Bootstrap instance
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize loads configuration and wires the engine. CONFIG_PATH overrides
// the default config location.
func (b *Bootstrap) Initialize(ctx context.Context) error {
	slog.Info("🚀 Bootstrapping Order Engine...")

	// 1. Load Config
	path := os.Getenv("CONFIG_PATH")
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := infra.LoadConfig(path)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)

	// 3. Initialize Storage (DB)
	store, err := storage.NewStorage(cfg.Database, logger)
	if err != nil {
		return err
	}
	b.Storage = store
	slog.Info("✅ Database initialized", slog.String("driver", cfg.Database.Driver))

	// 4. Work queue
	if err := b.initQueue(ctx); err != nil {
		return err
	}

	// 5. Venues and router
	venues := execution.NewVenues(cfg.Venues)
	b.Router = execution.NewRouter(venues,
		execution.WithQuoteTimeout(millis(cfg.Router.QuoteTimeoutMS)),
		execution.WithSwapTimeout(millis(cfg.Router.SwapTimeoutMS)),
	)
	slog.Info("✅ Router ready", slog.Any("venues", b.Router.Venues()))

	// 6. Event broadcaster, orchestrator and workers
	metrics := infra.GlobalMetrics
	event.Warmup()
	b.Broadcaster = event.NewBroadcaster(
		event.WithSendBuffer(cfg.Websocket.SendBuffer),
		event.WithWriteTimeout(millis(cfg.Websocket.WriteTimeoutMS)),
		event.WithMetrics(metrics),
	)

	orch := engine.NewOrchestrator(store, b.Broadcaster)
	proc := engine.NewProcessor(orch, store, b.Router)
	b.Pool = engine.NewPool(b.Queue, proc,
		engine.WithSize(cfg.Queue.Concurrency),
		engine.WithPolicy(engine.Policy{
			SuppressIntermediateFailures: cfg.Queue.SuppressIntermediateFailures,
			RetryNotFound:                cfg.Queue.RetriesNotFound(),
		}),
		engine.WithPoolMetrics(metrics),
	)
	b.Service = service.NewOrderService(orch, store, b.Queue, queue.OptionsFromConfig(cfg.Queue), metrics)

	// 7. Metrics registry and API
	b.Registry = prometheus.NewRegistry()
	b.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		infra.NewPrometheusCollector(metrics),
	)
	b.Server = api.NewServer(b.Service, b.Broadcaster, b.Registry)

	slog.Info("✅ Engine wired",
		slog.Int("workers", b.Pool.Size()),
		slog.Int("attempts", cfg.Queue.Attempts),
		slog.String("queue", cfg.Queue.Backend),
	)
	return nil
}

func (b *Bootstrap) initQueue(ctx context.Context) error {
	cfg := b.Config.Queue
	switch cfg.Backend {
	case "redis":
		client, err := infra.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return err
		}
		rq := queue.NewRedisQueue(client, cfg.Name)
		// Jobs left active by a crashed process go back to the wait list
		// before any worker reserves.
		recovered, err := rq.Recover(ctx)
		if err != nil {
			client.Close()
			return err
		}
		b.Redis = client
		b.Queue = rq
		slog.Info("✅ Redis queue connected", slog.String("name", cfg.Name), slog.Int("recovered", recovered))
	default:
		b.Queue = queue.NewMemoryQueue()
		slog.Info("✅ In-memory queue ready")
	}
	return nil
}

// Shutdown stops the components in reverse dependency order. The HTTP server
// goes first so no new orders arrive while workers drain.
func (b *Bootstrap) Shutdown(ctx context.Context) error {
	var errs []error

	if b.Server != nil {
		if err := b.Server.Shutdown(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Pool != nil {
		b.Pool.Stop()
	}
	if b.Broadcaster != nil {
		b.Broadcaster.Close()
	}
	if b.Queue != nil {
		if err := b.Queue.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Redis != nil {
		if err := b.Redis.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	if b.Storage != nil {
		if err := b.Storage.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func millis(ms int) time.Duration {
	return time.Duration(ms) * time.Millisecond
}
