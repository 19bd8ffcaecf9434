// Package main runs the background job worker (sermon media archiving to S3).
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/lumen-church/backend/config"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/internal/realtime"
	"github.com/lumen-church/backend/internal/worker"
	"github.com/lumen-church/backend/pkg/database"
	"github.com/lumen-church/backend/pkg/localstore"
	"github.com/lumen-church/backend/pkg/queue"
	"github.com/lumen-church/backend/pkg/redis"
	"github.com/lumen-church/backend/pkg/storage"
)

func main() {
	logger := newLogger()
	defer logger.Sync()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("load config", zap.Error(err))
	}
	if cfg.Redis.Addr == "" {
		logger.Fatal("worker needs REDIS_ADDR")
	}

	ctx := context.Background()
	rdb, err := redis.NewClient(ctx, redis.Config{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB}, logger)
	if err != nil {
		logger.Fatal("redis", zap.Error(err))
	}
	defer rdb.Close()

	s3Client, err := storage.NewS3(ctx, storage.S3Config{
		Region:               cfg.AWS.Region,
		AccessKeyID:          cfg.AWS.AccessKeyID,
		SecretAccessKey:      cfg.AWS.SecretAccessKey,
		MediaBucket:          cfg.AWS.MediaBucket,
		PresignExpireMinutes: cfg.AWS.PresignExpireMinutes,
	}, logger)
	if err != nil {
		logger.Fatal("s3", zap.Error(err))
	}

	var sermons worker.Sermons
	if cfg.Storage.Backend == config.BackendLocal {
		kv, err := localstore.OpenSQLite(cfg.Storage.LocalPath, logger)
		if err != nil {
			logger.Fatal("local store", zap.Error(err))
		}
		defer kv.Close()
		local := entity.NewLocalRepository[models.Sermon, *models.Sermon](kv, entity.SermonSchema)
		// Other processes only learn about archived media through Redis.
		sermons = entity.NewPublishingRepository[models.Sermon, *models.Sermon](local, entity.SermonSchema.Table, realtime.NewRedisPubSub(rdb.Client, logger), logger)
	} else {
		pool, err := database.NewPostgresPool(ctx, cfg.Database.DSN(), database.PoolOptions{
			MaxConns:        int32(cfg.Database.MaxConns),
			MaxConnLifetime: cfg.Database.MaxConnLifetime,
		}, logger)
		if err != nil {
			logger.Fatal("database", zap.Error(err))
		}
		defer pool.Close()
		db, err := database.NewGorm(pool, logger)
		if err != nil {
			logger.Fatal("gorm", zap.Error(err))
		}
		remote := entity.NewRemoteRepository[models.Sermon, *models.Sermon](db, entity.SermonSchema, cfg.Database.QueryTimeout)
		if cfg.Realtime.Source == config.SourceRedis {
			sermons = entity.NewPublishingRepository[models.Sermon, *models.Sermon](remote, entity.SermonSchema.Table, realtime.NewRedisPubSub(rdb.Client, logger), logger)
		} else {
			sermons = remote
		}
	}

	jobQueue := queue.NewQueue(rdb.Client, logger)
	archiver := worker.NewMediaArchiver(sermons, s3Client, jobQueue, logger)

	workerCtx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go archiver.Run(workerCtx)
	if waiting, dead, err := jobQueue.Pending(ctx); err == nil {
		logger.Info("worker started", zap.Int64("waiting", waiting), zap.Int64("dead", dead))
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	cancel()
	time.Sleep(2 * time.Second)
	logger.Info("worker stopped")
}

func newLogger() *zap.Logger {
	config := zap.NewProductionConfig()
	config.EncoderConfig.TimeKey = "timestamp"
	config.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	logger, _ := config.Build()
	return logger
}
