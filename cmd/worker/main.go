package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/db"
	"github.com/guidemeet/backend/internal/events"
	"github.com/guidemeet/backend/internal/logging"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/guidemeet/backend/internal/obs"
	"github.com/guidemeet/backend/internal/repositories"
	"github.com/guidemeet/backend/internal/services"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// The worker flips booking requests whose response or payment window has
// lapsed, so travelers and guides hear about it without touching the
// request again.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}

	log := logging.New(cfg.Env)
	defer log.Sync()
	cfg.Validate(log)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	shutdownTracer, err := obs.InitTracer(ctx, "guidemeet-worker", cfg.Env, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() { _ = shutdownTracer(context.Background()) }()

	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "guidemeet-worker", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bus, err := events.Open(events.TransportConfig{
		Transport:    cfg.NotifyTransport,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		QueuePrefix:  "worker",
	}, rdb, log)
	if err != nil {
		log.Fatal("failed to open event transport", zap.Error(err))
	}
	defer bus.Close()

	requestService := services.NewRequestService(services.Deps{
		Store:     repositories.NewStore(pool),
		Identity:  repositories.NewUserRepo(pool),
		Notifier:  notify.NewEventNotifier(bus),
		Publisher: bus,
		Log:       log,
	}, cfg)

	log.Info("worker started", zap.Duration("sweep_interval", cfg.SweepInterval))

	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	// a backlog is drained in consecutive batches, at most one per second
	limiter := rate.NewLimiter(rate.Every(time.Second), 1)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	runSweep(ctx, requestService, limiter, cfg.SweepBatchSize, log)
	for {
		select {
		case <-ticker.C:
			runSweep(ctx, requestService, limiter, cfg.SweepBatchSize, log)
		case <-sigCh:
			log.Info("shutting down worker")
			cancel()
			return
		case <-ctx.Done():
			return
		}
	}
}

func runSweep(ctx context.Context, svc *services.RequestService, limiter *rate.Limiter, batchSize int, log *zap.Logger) {
	total := 0
	for {
		if err := limiter.Wait(ctx); err != nil {
			return
		}
		n, err := svc.SweepExpired(ctx, batchSize)
		total += n
		if err != nil {
			log.Error("sweep failed", zap.Int("flipped", n), zap.Error(err))
			break
		}
		if n < batchSize {
			break
		}
	}
	if total > 0 {
		log.Info("expired booking requests", zap.Int("count", total))
	}
}
