package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/example/slothbucket/internal/auth"
	"github.com/example/slothbucket/internal/classifier"
	"github.com/example/slothbucket/internal/config"
	"github.com/example/slothbucket/internal/handlers"
	"github.com/example/slothbucket/internal/imaging"
	"github.com/example/slothbucket/internal/logging"
	"github.com/example/slothbucket/internal/repository"
	"github.com/example/slothbucket/internal/usecase"
)

func main() {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	cfg := config.Load()

	logger, err := logging.NewLogger(cfg.Debug)
	if err != nil {
		panic(err)
	}
	defer logger.Sync() //nolint:errcheck

	db := initDatabase(ctx, cfg, logger)
	repo := repository.NewImageRepository(db, logger)
	if err := repo.AutoMigrate(ctx); err != nil {
		logger.Fatal("auto migrate failed", zap.Error(err))
	}

	redisCtx, redisCancel := context.WithTimeout(ctx, 5*time.Second)
	defer redisCancel()
	redisClient := initRedis(redisCtx, cfg, logger)

	materializer, err := imaging.NewMaterializer(cfg.WorkDir, logger)
	if err != nil {
		logger.Fatal("failed to prepare working directory", zap.Error(err))
	}

	invoker := newInvoker(cfg, logger)
	cache := usecase.NewRedisCache(redisClient)
	uc := usecase.NewClassifyUseCase(repo, cache, materializer, invoker, logger)

	r := gin.Default()
	authMiddleware := auth.JWTMiddleware(cfg.JWTSecret, cfg.JWTAudience)
	handlers.RegisterRoutes(r, uc, authMiddleware, logger)

	server := &http.Server{
		Addr:    cfg.ListenAddr,
		Handler: r,
	}

	logger.Info("slothbucket API listening",
		zap.String("addr", cfg.ListenAddr),
		zap.String("env", cfg.Env),
		zap.String("work_dir", cfg.WorkDir))
	if err := serveHTTPServer(server, 15*time.Second, logger); err != nil {
		logger.Fatal("server failed", zap.Error(err))
	}
}

// newInvoker selects the deployment mode once at startup: production runs the
// classifier directly, anything else stages images into a docker container.
func newInvoker(cfg *config.Config, logger *zap.Logger) classifier.Invoker {
	if cfg.ProductionMode() {
		return classifier.NewDirectInvoker(cfg.ClassifierDir, cfg.WorkDir, cfg.ClassifyTimeout, logger)
	}
	return classifier.NewDockerInvoker(cfg.DockerContainer, cfg.WorkDir, cfg.ClassifyTimeout, logger)
}

func initDatabase(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *gorm.DB {
	db, err := gorm.Open(postgres.Open(cfg.DatabaseDSN), &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Warn)})
	if err != nil {
		zapLogger.Fatal("failed to connect to database", zap.Error(err))
	}

	sqlDB, err := db.DB()
	if err != nil {
		zapLogger.Fatal("failed to access db handle", zap.Error(err))
	}
	sqlDB.SetMaxIdleConns(5)
	sqlDB.SetMaxOpenConns(10)
	sqlDB.SetConnMaxLifetime(time.Hour)

	if err := sqlDB.PingContext(ctx); err != nil {
		zapLogger.Fatal("database ping failed", zap.Error(err))
	}

	return db
}

func initRedis(ctx context.Context, cfg *config.Config, zapLogger *zap.Logger) *redis.Client {
	client := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	if err := client.Ping(ctx).Err(); err != nil {
		zapLogger.Fatal("redis connection failed", zap.Error(err))
	}
	return client
}

func serveHTTPServer(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger) error {
	return serveHTTPServerWithOptions(server, shutdownTimeout, logger, nil, nil)
}

func serveHTTPServerWithOptions(server *http.Server, shutdownTimeout time.Duration, logger *zap.Logger, listener net.Listener, signalCh <-chan os.Signal) error {
	errCh := make(chan error, 1)
	go func() {
		var err error
		if listener != nil {
			err = server.Serve(listener)
		} else {
			err = server.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			err = nil
		}
		errCh <- err
	}()

	var (
		sigCh       <-chan os.Signal
		stopSignals func()
	)

	if signalCh != nil {
		sigCh = signalCh
		stopSignals = func() {}
	} else {
		ch := make(chan os.Signal, 1)
		signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
		sigCh = ch
		stopSignals = func() {
			signal.Stop(ch)
		}
	}
	defer stopSignals()

	select {
	case err := <-errCh:
		return err
	case sig, ok := <-sigCh:
		if !ok {
			return <-errCh
		}
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := server.Shutdown(ctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return <-errCh
	}
}
