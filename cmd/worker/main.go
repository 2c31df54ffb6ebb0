package main

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"userhub/api/internal/cache"
	"userhub/api/internal/config"
	"userhub/api/internal/jobs"
	"userhub/api/internal/log"
	"userhub/api/internal/mail"
	"userhub/api/internal/queue"
	"userhub/api/internal/tasks"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.WithComponent(log.New(cfg.Environment), "worker")

	client, err := cache.NewRedisClient(context.Background(), cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("redis connection failed")
	}
	defer client.Close()

	processor := tasks.NewMailProcessor(mail.NewSender(cfg.Mail, logger), time.Now, logger)
	consumer := queue.NewConsumer(
		client,
		cfg.Redis.MailStream,
		cfg.Redis.Group,
		cfg.Redis.Consumer,
		logger,
		processor,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := consumer.EnsureGroup(ctx); err != nil {
		logger.Fatal().Err(err).Msg("create consumer group failed")
	}

	scheduler := jobs.NewScheduler(consumer, cfg.Worker, logger)
	if err := scheduler.Start(); err != nil {
		logger.Fatal().Err(err).Msg("scheduler start failed")
	}

	go func() {
		if err := consumer.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logger.Fatal().Err(err).Msg("consumer stopped unexpectedly")
		}
	}()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	scheduler.Stop(stopCtx)
}
