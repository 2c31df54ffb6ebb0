package main

import (
	"context"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"userhub/api/internal/cache"
	"userhub/api/internal/config"
	"userhub/api/internal/database"
	"userhub/api/internal/handlers"
	"userhub/api/internal/log"
	"userhub/api/internal/mail"
	"userhub/api/internal/queue"
	"userhub/api/internal/repository"
	"userhub/api/internal/security"
	"userhub/api/internal/server"
	"userhub/api/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger := log.New(cfg.Environment)

	ctx := context.Background()

	dbPool, err := database.Open(ctx, cfg.Postgres, log.WithComponent(logger, "database"))
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect postgres")
	}

	redisClient, err := cache.NewRedisClient(ctx, cfg.Redis)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to connect redis")
	}

	handlerSet := handlers.NewHandlerSet(logger, cfg, buildDependencies(cfg, logger, dbPool, redisClient))
	httpServer := server.NewHTTPServer(cfg, logger, handlerSet)

	go func() {
		if err := httpServer.Start(); err != nil {
			logger.Fatal().Err(err).Msg("http server failed")
		}
	}()

	waitForShutdown(logger, httpServer, dbPool, redisClient)
}

func buildDependencies(cfg *config.AppConfig, logger zerolog.Logger, db *pgxpool.Pool, redisClient *redis.Client) handlers.Dependencies {
	users := repository.NewUserRepository(db)
	tokens := repository.NewActivationRepository(db)
	hasher := security.NewPasswordHasher(cfg.Security.BcryptCost)
	issuer := security.NewTokenIssuer(cfg.Security.JWTSecret, cfg.Security.SessionTTL, time.Now)

	sender := mail.NewSender(cfg.Mail, log.WithComponent(logger, "mail"))
	composer := mail.NewActivationComposer(
		mail.Address{Name: cfg.Mail.FromName, Address: cfg.Mail.FromAddress},
		cfg.Mail.ActivationBaseURL,
	)
	retries := queue.NewProducer(redisClient, cfg.Redis.MailStream)

	tx := service.NewRepositoryTransactor(repository.NewTxManager(db))
	activation := service.NewActivationService(tokens, users, tx, cfg.Security.ActivationTTL, time.Now, log.WithComponent(logger, "activation"))

	return handlers.Dependencies{
		Registration: service.NewRegistrationService(
			users, activation, hasher, sender, composer, retries, log.WithComponent(logger, "registration"),
		),
		Authentication: service.NewAuthenticationService(users, hasher, issuer, log.WithComponent(logger, "authentication")),
		Activation:     activation,
		Profiles:       service.NewProfileService(users, hasher, log.WithComponent(logger, "profile")),
		Sessions:       issuer,
		Users:          users,
		Checks: map[string]handlers.PingFunc{
			"postgres": db.Ping,
			"redis":    func(ctx context.Context) error { return redisClient.Ping(ctx).Err() },
		},
	}
}

func waitForShutdown(logger zerolog.Logger, srv *server.HTTPServer, db *pgxpool.Pool, redisClient *redis.Client) {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	<-ctx.Done()
	logger.Info().Msg("shutdown signal received")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
		if err := srv.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("forced shutdown failed")
		}
	}

	db.Close()
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("redis close error")
	}

	logger.Info().Msg("server exited cleanly")
}
