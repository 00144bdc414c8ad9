package main

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"legalestate/auth"
	"legalestate/config"
	"legalestate/consumer"
	"legalestate/events"
	"legalestate/handlers"
	"legalestate/middleware"
	"legalestate/models"
	"legalestate/server"
	"legalestate/services"
	"legalestate/utils"
)

func main() {
	app := fx.New(
		fx.Provide(
			newConfig,
			newLogger,
			newRepository,
			newRedisClient,
			newRevocationStore,
			newTokenIssuer,
			newKafkaProducer,
			newPublisher,
			newElasticsearchClient,
			newMailer,
			services.NewAuthService,
			services.NewInvitationService,
			services.NewEstateService,
			services.NewDashboardService,
			handlers.NewLawyerHandler,
			handlers.NewClientHandler,
			handlers.NewSessionHandler,
			handlers.NewInvitationHandler,
			handlers.NewHealthHandler,
			newHandlers,
			newAuthMiddleware,
			newRateLimiter,
			server.NewRouter,
			server.NewHTTPServer,
		),
		fx.Invoke(initSentry, startConsumer, startHTTPServer),
	)

	app.Run()
}

func newConfig() (config.Config, error) {
	return config.Load()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var (
		logger *zap.Logger
		err    error
	)
	if cfg.Environment == "development" {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)

	if cfg.UsingDefaultSecret {
		logger.Warn("JWT_SECRET not set, using the built-in development secret")
	}
	return logger, nil
}

// connectWithRetry gives dependencies started alongside the app (docker compose) time to come up.
func connectWithRetry[T any](logger *zap.Logger, name string, connect func() (T, error)) (T, error) {
	const (
		maxRetries = 5
		retryDelay = 3 * time.Second
	)

	var (
		conn T
		err  error
	)
	for i := 0; i < maxRetries; i++ {
		conn, err = connect()
		if err == nil {
			return conn, nil
		}
		logger.Warn("connection attempt failed",
			zap.String("dependency", name),
			zap.Int("attempt", i+1),
			zap.Error(err),
		)
		if i < maxRetries-1 {
			time.Sleep(retryDelay)
		}
	}
	return conn, fmt.Errorf("failed to initialize %s after %d attempts: %w", name, maxRetries, err)
}

func newRepository(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (models.Repository, error) {
	if cfg.StoreDriver == config.StoreDriverMemory {
		logger.Warn("using in-memory store, data is lost on restart")
		return models.NewMemoryRepository(), nil
	}

	repo, err := connectWithRetry(logger, "postgres", func() (*models.PostgresRepository, error) {
		return models.NewPostgresRepository(cfg.DB.DSN())
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			return repo.Close()
		},
	})
	return repo, nil
}

// newRedisClient returns a nil client when REDIS_HOST is unset.
func newRedisClient(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (utils.RedisClient, error) {
	if cfg.RedisHost == "" {
		return nil, nil
	}

	client, err := connectWithRetry(logger, "redis", func() (utils.RedisClient, error) {
		return utils.NewRedisClient(cfg.RedisHost, cfg.RedisPassword)
	})
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := client.Close(); err != nil {
				logger.Warn("error closing Redis connection", zap.Error(err))
			}
			return nil
		},
	})
	return client, nil
}

func newRevocationStore(cache utils.RedisClient, logger *zap.Logger) auth.RevocationStore {
	if cache == nil {
		logger.Info("token revocation kept in process memory")
		return auth.NewMemoryRevocationStore()
	}
	return utils.NewRedisRevocationStore(cache)
}

func newTokenIssuer(cfg config.Config, store auth.RevocationStore) *auth.TokenIssuer {
	return auth.NewTokenIssuer(cfg.JWTSecret, store)
}

// newKafkaProducer returns a nil producer when KAFKA_BROKER is unset.
func newKafkaProducer(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) (utils.KafkaProducer, error) {
	if cfg.KafkaBroker == "" {
		return nil, nil
	}

	producer, err := utils.NewKafkaProducer(cfg.KafkaBroker)
	if err != nil {
		return nil, err
	}

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			if err := producer.Close(); err != nil {
				logger.Warn("error closing Kafka producer", zap.Error(err))
			}
			return nil
		},
	})
	return producer, nil
}

func newPublisher(producer utils.KafkaProducer, logger *zap.Logger) events.Publisher {
	if producer == nil {
		return events.NewLogPublisher(logger)
	}
	return events.NewKafkaPublisher(producer)
}

// newElasticsearchClient is best effort: search is disabled rather than failing startup.
func newElasticsearchClient(cfg config.Config, logger *zap.Logger) utils.ElasticsearchClient {
	if cfg.ElasticsearchURL == "" {
		return nil
	}

	client, err := utils.NewElasticsearchClient(cfg.ElasticsearchURL)
	if err != nil {
		logger.Warn("Elasticsearch unavailable, client search disabled", zap.Error(err))
		return nil
	}
	return client
}

func newMailer(cfg config.Config, logger *zap.Logger) utils.Mailer {
	if cfg.Mail.Driver == config.MailDriverLog {
		return utils.NewLogMailer(logger)
	}
	return utils.NewSMTPMailer(cfg.Mail.Host, cfg.Mail.Port, cfg.Mail.User, cfg.Mail.Password, cfg.Mail.From)
}

func newHandlers(
	lawyer *handlers.LawyerHandler,
	client *handlers.ClientHandler,
	session *handlers.SessionHandler,
	invitation *handlers.InvitationHandler,
	health *handlers.HealthHandler,
) server.Handlers {
	return server.Handlers{
		Lawyer:     lawyer,
		Client:     client,
		Session:    session,
		Invitation: invitation,
		Health:     health,
	}
}

func newAuthMiddleware(tokens *auth.TokenIssuer, logger *zap.Logger) *middleware.Auth {
	return &middleware.Auth{Tokens: tokens, Logger: logger}
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitMax, cfg.RateLimitWindow)
}

func initSentry(lc fx.Lifecycle, cfg config.Config, logger *zap.Logger) error {
	if cfg.SentryDSN == "" {
		return nil
	}
	if err := utils.InitSentry(cfg.SentryDSN, cfg.Environment, cfg.Version); err != nil {
		return err
	}
	logger.Info("sentry enabled")

	lc.Append(fx.Hook{
		OnStop: func(context.Context) error {
			utils.FlushSentry()
			return nil
		},
	})
	return nil
}

// startConsumer runs the client directory projection when Kafka is configured.
func startConsumer(lc fx.Lifecycle, cfg config.Config, cache utils.RedisClient, es utils.ElasticsearchClient, logger *zap.Logger) {
	if cfg.KafkaBroker == "" {
		return
	}

	c := consumer.NewClientConsumer(cfg.KafkaBroker, cfg.KafkaGroupID, cache, es, logger)
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			c.Start(context.Background())
			return nil
		},
		OnStop: func(context.Context) error {
			c.Stop()
			return nil
		},
	})
}

func startHTTPServer(lc fx.Lifecycle, srv *server.HTTPServer, cfg config.Config, logger *zap.Logger) {
	addr := ":" + cfg.Port
	var (
		cancel context.CancelFunc
		done   chan struct{}
	)

	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			runCtx, stop := context.WithCancel(context.Background())
			cancel = stop
			done = make(chan struct{})

			go func() {
				logger.Info("server is running", zap.String("addr", addr))
				if err := srv.Run(runCtx, addr); err != nil {
					logger.Error("http server stopped", zap.Error(err))
				}
				close(done)
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			if cancel != nil {
				cancel()
			}
			if done == nil {
				return nil
			}
			select {
			case <-done:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		},
	})
}
