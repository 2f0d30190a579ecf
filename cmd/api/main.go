package main

import (
	"context"
	"fmt"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"

	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/adapter/cache"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/bootstrap"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/config"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/db"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/federated"
	internalhttp "github.com/MYMxZENITSUop/Habit-tracker-backend/internal/http"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/identity"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/middleware"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/notify"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/repository"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/server"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/service"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/telemetry"
	"github.com/MYMxZENITSUop/Habit-tracker-backend/internal/token"
)

func main() {
	fx.New(
		fx.Provide(
			config.Load,
			newLogger,
			newPool,
			newRedis,
			newCooldownStore,
			newSnowflakeNode,
			newCodec,
			newSender,
			newVerifier,
			fx.Annotate(repository.NewPostgresUserRepo, fx.As(new(repository.UserRepository))),
			fx.Annotate(repository.NewPostgresTokenRepo, fx.As(new(repository.TokenRepository))),
			fx.Annotate(repository.NewPostgresOTPRepo, fx.As(new(repository.OTPRepository))),
			fx.Annotate(repository.NewPostgresTaskRepo, fx.As(new(repository.TaskRepository))),
			fx.Annotate(repository.NewPostgresHabitRepo, fx.As(new(repository.HabitRepository))),
			identity.NewResolver,
			service.NewAuthService,
			service.NewUserService,
			service.NewTaskService,
			service.NewHabitService,
			newRateLimiter,
			newRouter,
			newServer,
		),
		fx.Invoke(registerLifecycle),
		fx.WithLogger(func(logger *zap.Logger) fxevent.Logger {
			return &fxevent.ZapLogger{Logger: logger}
		}),
	).Run()
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	var logger *zap.Logger
	var err error
	if cfg.Environment == "production" {
		logger, err = zap.NewProduction()
	} else {
		logger, err = zap.NewDevelopment()
	}
	if err != nil {
		return nil, err
	}
	zap.ReplaceGlobals(logger)
	return logger, nil
}

func newPool(cfg config.Config) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(context.Background(), cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("open database pool: %w", err)
	}
	return pool, nil
}

func newRedis(cfg config.Config) *redis.Client {
	if cfg.RedisAddr == "" {
		return nil
	}
	return redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
}

func newCooldownStore(client *redis.Client) cache.CooldownStore {
	if client == nil {
		return cache.NoopCooldownStore{}
	}
	return cache.NewRedisCooldownStore(client)
}

func newSnowflakeNode(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

func newCodec(cfg config.Config) *token.Codec {
	return token.NewCodec(cfg.AccessTokenSecret, cfg.RefreshTokenSecret, cfg.AccessTokenTTL, cfg.RefreshTokenTTL)
}

func newSender(cfg config.Config, logger *zap.Logger) notify.Sender {
	if cfg.NotifierBaseURL == "" {
		return notify.NewLogSender(logger)
	}
	return notify.NewHTTPSender(cfg.NotifierBaseURL, cfg.NotifierAPIKey, cfg.NotifierFrom, nil)
}

func newVerifier(cfg config.Config) federated.Verifier {
	return federated.NewHTTPVerifier(cfg.IdentityVerifyURL, nil)
}

func newRateLimiter(cfg config.Config) *middleware.RateLimiter {
	return middleware.NewRateLimiter(cfg.RateLimitRPM)
}

func newRouter(
	cfg config.Config,
	logger *zap.Logger,
	pool *pgxpool.Pool,
	auth *service.AuthService,
	users *service.UserService,
	tasks *service.TaskService,
	habits *service.HabitService,
	limiter *middleware.RateLimiter,
) *gin.Engine {
	return internalhttp.NewRouter(internalhttp.RouterParams{
		Config:  cfg,
		Logger:  logger,
		Pool:    pool,
		Auth:    auth,
		Users:   users,
		Tasks:   tasks,
		Habits:  habits,
		Limiter: limiter,
	})
}

func newServer(cfg config.Config, router *gin.Engine, logger *zap.Logger) *server.Server {
	return server.New(fmt.Sprintf(":%s", cfg.HTTPPort), router, logger)
}

func registerLifecycle(
	lc fx.Lifecycle,
	cfg config.Config,
	logger *zap.Logger,
	pool *pgxpool.Pool,
	redisClient *redis.Client,
	users repository.UserRepository,
	node *snowflake.Node,
	srv *server.Server,
) {
	var provider *telemetry.Provider

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			p, err := telemetry.Setup(ctx, cfg.ServiceName, cfg.TelemetryEndpoint, cfg.TelemetryInsecure)
			if err != nil {
				return err
			}
			provider = p

			if err := db.Migrate(ctx, pool); err != nil {
				return err
			}
			if err := bootstrap.EnsureAdmin(ctx, cfg, users, node, logger); err != nil {
				return err
			}
			return srv.Start(ctx)
		},
		OnStop: func(ctx context.Context) error {
			if err := srv.Stop(ctx); err != nil {
				logger.Warn("server shutdown", zap.Error(err))
			}
			if provider != nil {
				if err := provider.Shutdown(ctx); err != nil {
					logger.Warn("telemetry shutdown", zap.Error(err))
				}
			}
			if redisClient != nil {
				if err := redisClient.Close(); err != nil {
					logger.Warn("redis close", zap.Error(err))
				}
			}
			pool.Close()
			return nil
		},
	})
}
