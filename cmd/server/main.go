package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/nats-io/nats.go"
	"go.uber.org/zap"

	"github.com/t77yq/nextrun/internal/config"
	"github.com/t77yq/nextrun/internal/model"
	"github.com/t77yq/nextrun/internal/scheduler"
	"github.com/t77yq/nextrun/internal/service"
	"github.com/t77yq/nextrun/internal/storage"
)

func newLogger(cfg config.LogConfig) (*zap.Logger, error) {
	zcfg := zap.NewProductionConfig()
	if cfg.Development {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	zcfg.Level = level
	return zcfg.Build()
}

func main() {
	configPath := flag.String("config", "", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	logger, err := newLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to create logger: %v", err)
	}
	defer logger.Sync()

	opts := []nats.Option{
		nats.Name(cfg.App.Name),
		nats.MaxReconnects(cfg.NATS.MaxReconnects),
		nats.ReconnectWait(cfg.NATS.ReconnectWait),
		nats.Timeout(cfg.NATS.ConnectTimeout),
		nats.PingInterval(20 * time.Second),
		nats.MaxPingsOutstanding(5),
		nats.DrainTimeout(30 * time.Second),
		nats.ErrorHandler(func(nc *nats.Conn, sub *nats.Subscription, err error) {
			subject := ""
			if sub != nil {
				subject = sub.Subject
			}
			logger.Error("NATS connection error",
				zap.String("subject", subject),
				zap.Error(err))
		}),
		nats.DisconnectErrHandler(func(nc *nats.Conn, err error) {
			logger.Warn("NATS disconnected", zap.Error(err))
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("NATS reconnected",
				zap.String("url", nc.ConnectedUrl()))
		}),
	}

	var nc *nats.Conn
	maxRetries := 5
	for i := 0; i < maxRetries; i++ {
		nc, err = nats.Connect(cfg.NATS.URL, opts...)
		if err == nil {
			break
		}
		logger.Warn("Failed to connect to NATS, retrying...",
			zap.Int("attempt", i+1),
			zap.Error(err))
		time.Sleep(time.Second * time.Duration(i+1))
	}
	if err != nil {
		logger.Fatal("Failed to connect to NATS after retries", zap.Error(err))
	}
	defer nc.Close()

	logger.Info("Connected to NATS successfully",
		zap.String("url", nc.ConnectedUrl()))

	js, err := nc.JetStream()
	if err != nil {
		logger.Fatal("Failed to create JetStream context", zap.Error(err))
	}

	store, err := storage.NewSQLiteScheduleStore(logger, cfg.Storage.Path)
	if err != nil {
		logger.Fatal("Failed to open schedule store", zap.Error(err))
	}
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		sig := <-sigCh
		logger.Info("Received shutdown signal", zap.String("signal", sig.String()))
		cancel()
	}()

	publisher := service.NewTriggerService(js, nil, cfg.NATS.PublishRetries, logger)
	triggerScheduler := scheduler.NewTriggerScheduler(js, store, publisher, logger)
	if err := triggerScheduler.Start(ctx); err != nil {
		logger.Fatal("Failed to start scheduler", zap.Error(err))
	}
	defer triggerScheduler.Stop()

	for _, sc := range cfg.Schedules {
		if err := triggerScheduler.AddSchedule(ctx, sc.Job()); err != nil {
			logger.Error("Failed to add configured schedule",
				zap.String("id", sc.ID),
				zap.String("name", sc.Name),
				zap.Error(err))
		}
	}

	err = publisher.Subscribe(ctx, "", func(event *model.TriggerEvent) {
		logger.Info("Schedule triggered",
			zap.String("schedule_id", event.ScheduleID),
			zap.String("name", event.Name),
			zap.String("marker", event.Marker),
			zap.String("next_run", event.NextMarker))
	})
	if err != nil {
		logger.Error("Failed to subscribe to triggers", zap.Error(err))
	}

	for _, job := range triggerScheduler.ListSchedules() {
		logger.Info("Upcoming run",
			zap.String("id", job.ID),
			zap.String("name", job.Name),
			zap.String("next_run", job.NextRunMarker))
	}

	go func() {
		cleanupTicker := time.NewTicker(24 * time.Hour)
		defer cleanupTicker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-cleanupTicker.C:
				cutoff := time.Now().UTC().Add(-cfg.History.Retention)
				if _, err := store.DeleteTriggersBefore(ctx, cutoff); err != nil {
					logger.Error("Failed to cleanup old trigger history", zap.Error(err))
				}
			}
		}
	}()

	<-ctx.Done()
	logger.Info("Server shutting down gracefully")
}
