package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/guidemeet/backend/internal/config"
	"github.com/guidemeet/backend/internal/db"
	"github.com/guidemeet/backend/internal/events"
	"github.com/guidemeet/backend/internal/logging"
	"github.com/guidemeet/backend/internal/notify"
	"go.uber.org/zap"
)

// Notify Bridge subscribes to notification events and forwards them to
// the delivery service (email, push) at a bounded rate.
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

	rdb, err := db.NewRedisClient(ctx, cfg.RedisURL, "guidemeet-notify-bridge", log)
	if err != nil {
		log.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer rdb.Close()

	bus, err := events.Open(events.TransportConfig{
		Transport:    cfg.NotifyTransport,
		AMQPURL:      cfg.AMQPURL,
		AMQPExchange: cfg.AMQPExchange,
		QueuePrefix:  "notify-bridge",
	}, rdb, log)
	if err != nil {
		log.Fatal("failed to open event transport", zap.Error(err))
	}
	defer bus.Close()

	bridge := notify.NewBridge(notify.NewDeliveryClient(cfg.NotifyDeliveryURL, cfg.NotifyRatePerSecond, log), log)
	if err := bus.Subscribe(ctx, events.StreamNotifications, bridge.Handle); err != nil {
		log.Fatal("failed to subscribe", zap.Error(err))
	}

	log.Info("notify-bridge started",
		zap.String("transport", cfg.NotifyTransport),
		zap.String("delivery_url", cfg.NotifyDeliveryURL))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh

	log.Info("shutting down notify-bridge")
	cancel()
}
