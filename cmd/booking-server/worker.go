package main

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/hibiken/asynq"
	"github.com/spf13/cobra"

	"github.com/lawfirm/booking/internal/platform/notification"
)

func workerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "worker",
		Short: "Run the notification dispatcher and delivery worker",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWorker()
		},
	}
}

func runWorker() error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Env).With().Str("process", "worker").Logger()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := openPool(ctx, cfg, "booking-worker")
	if err != nil {
		return err
	}
	defer pool.Close()

	store := notification.NewStorePG(pool)
	rc := redisConfig(cfg)

	client := notification.NewClient(rc)
	defer client.Close()

	srv := notification.NewServer(rc, cfg.WorkerConcurrency, logger)
	mux := asynq.NewServeMux()
	notification.NewWorker(store, notification.LogEmailSender{Logger: logger}, logger).Register(mux)
	if err := srv.Start(mux); err != nil {
		return fmt.Errorf("start asynq server: %w", err)
	}

	dispatcher := notification.NewDispatcher(store, client, logger.With().Str("component", "dispatcher").Logger())
	dispatcher.PollInterval = cfg.NotifyPollInterval
	dispatcher.BatchSize = cfg.NotifyBatchSize

	done := make(chan struct{})
	go func() {
		defer close(done)
		dispatcher.Start(ctx)
	}()

	<-ctx.Done()
	logger.Info().Msg("shutting down worker")
	<-done
	srv.Shutdown()
	logger.Info().Msg("worker stopped")
	return nil
}
