package main

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"github.com/lumen-church/backend/config"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/interactions"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/internal/registrations"
	"github.com/lumen-church/backend/pkg/database"
	"github.com/lumen-church/backend/pkg/localstore"
)

// backend builds the repositories of the configured storage backend. The
// remote backend goes through gorm/pgx; the local one through the SQLite
// key-value store. A non-nil publisher announces every write.
type backend struct {
	pool      *pgxpool.Pool
	db        *gorm.DB
	kv        *localstore.SQLite
	timeout   time.Duration
	publisher entity.Publisher
	logger    *zap.Logger
}

func newBackend(ctx context.Context, cfg *config.Config, pool *pgxpool.Pool, publisher entity.Publisher, logger *zap.Logger) (*backend, error) {
	b := &backend{pool: pool, timeout: cfg.Database.QueryTimeout, publisher: publisher, logger: logger}
	switch cfg.Storage.Backend {
	case config.BackendLocal:
		kv, err := localstore.OpenSQLite(cfg.Storage.LocalPath, logger)
		if err != nil {
			return nil, err
		}
		b.kv = kv
	default:
		db, err := database.NewGorm(pool, logger)
		if err != nil {
			return nil, err
		}
		b.db = db
	}
	logger.Info("storage backend ready", zap.String("backend", cfg.Storage.Backend))
	return b, nil
}

func (b *backend) local() bool { return b.kv != nil }

func (b *backend) Close() {
	if b.kv != nil {
		_ = b.kv.Close()
	}
}

func repository[T any, P entity.Row[T]](b *backend, schema entity.Schema[T]) entity.Repository[T] {
	var repo entity.Repository[T]
	if b.local() {
		repo = entity.NewLocalRepository[T, P](b.kv, schema)
	} else {
		repo = entity.NewRemoteRepository[T, P](b.db, schema, b.timeout)
	}
	if b.publisher != nil {
		repo = entity.NewPublishingRepository[T, P](repo, schema.Table, b.publisher, b.logger)
	}
	return repo
}

func (b *backend) registrations(events entity.Repository[models.Event]) (registrations.Repository, error) {
	if !b.local() {
		return registrations.NewPostgresRepository(b.pool, events), nil
	}
	m, ok := events.(entity.Modifier[models.Event, *models.Event])
	if !ok {
		return nil, fmt.Errorf("events repository %T cannot modify rows", events)
	}
	return registrations.NewLocalRepository(b.kv, m, b.logger), nil
}

func (b *backend) interactionStore(ns models.Namespace) interactions.Store {
	if b.local() {
		return interactions.NewLocalStore(b.kv, ns)
	}
	return interactions.NewPostgresStore(b.pool, ns)
}
