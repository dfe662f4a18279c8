package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/db"
	"github.com/guidemeet/backend/internal/events"
	apphttp "github.com/guidemeet/backend/internal/http"
	"github.com/guidemeet/backend/internal/http/handlers"
	"github.com/guidemeet/backend/internal/logging"
	"github.com/guidemeet/backend/internal/notify"
	"github.com/guidemeet/backend/internal/obs"
	"github.com/guidemeet/backend/internal/repositories"
	"github.com/guidemeet/backend/internal/services"
	"go.uber.org/zap"
)

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

	shutdownTracer, err := obs.InitTracer(ctx, "guidemeet-api", cfg.Env, cfg.OTLPEndpoint, log)
	if err != nil {
		log.Fatal("failed to init tracing", zap.Error(err))
	}
	defer func() {
		sctx, scancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer scancel()
		_ = shutdownTracer(sctx)
	}()

	// Database
	pool, err := db.NewPostgresPool(ctx, cfg.PostgresDSN, db.PoolOptions{
		MaxConns: cfg.PostgresMaxConns,
		MinConns: cfg.PostgresMinConns,
	}, log)
	if err != nil {
		log.Fatal("failed to connect to postgres", zap.Error(err))
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, pool, log); err != nil {
		log.Fatal("failed to run migrations", zap.Error(err))
	}

	// Redis
	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "guidemeet-api", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	// Events
	bus, err := events.Open(events.TransportConfig{
		Transport:    cfg.NotifyTransport,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		QueuePrefix:  "api",
	}, rdb, log)
	if err != nil {
		log.Fatal("failed to open event transport", zap.Error(err))
	}
	defer bus.Close()

	// Repositories
	store := repositories.NewStore(pool)
	userRepo := repositories.NewUserRepo(pool)

	// Services
	deps := services.Deps{
		Store:     store,
		Identity:  userRepo,
		Notifier:  notify.NewEventNotifier(bus),
		Publisher: bus,
		Log:       log,
	}
	bookingService := services.NewBookingService(deps, cfg)
	requestService := services.NewRequestService(deps, cfg)
	disputeService := services.NewDisputeService(deps)
	settlementService := services.NewSettlementService(deps)

	// Handlers
	wsHub := handlers.NewWSHub(cfg, bus, log)
	if err := wsHub.Start(ctx); err != nil {
		log.Fatal("failed to start ws hub", zap.Error(err))
	}

	app := fiber.New(fiber.Config{
		ErrorHandler: handlers.ErrorHandler(log),
	})

	apphttp.SetupRouter(app, cfg, log, rdb, apphttp.Handlers{
		Auth:    handlers.NewAuthHandler(userRepo, cfg, log),
		User:    handlers.NewUserHandler(userRepo, log),
		Booking: handlers.NewBookingHandler(bookingService, log),
		Request: handlers.NewRequestHandler(requestService, log),
		Admin:   handlers.NewAdminHandler(bookingService, disputeService, settlementService, requestService, log),
		WSHub:   wsHub,
	})

	// Graceful shutdown
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Info("shutting down...")
		cancel()
		_ = app.ShutdownWithTimeout(10 * time.Second)
	}()

	addr := fmt.Sprintf(":%s", cfg.APIPort)
	log.Info("starting API server", zap.String("addr", addr))
	if err := app.Listen(addr); err != nil {
		log.Fatal("server error", zap.Error(err))
	}
}
