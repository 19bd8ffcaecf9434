package entity

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/internal/realtime"
)

// Publisher broadcasts row changes to realtime subscribers.
type Publisher interface {
	PublishChange(ctx context.Context, c realtime.Change) error
}

// PublishingRepository announces every successful write of the wrapped
// repository. Publish failures are logged; the write itself has succeeded.
type PublishingRepository[T any, P Row[T]] struct {
	Repository[T]
	table  string
	pub    Publisher
	logger *zap.Logger
}

// NewPublishingRepository wraps repo so that writes to table are published.
func NewPublishingRepository[T any, P Row[T]](repo Repository[T], table string, pub Publisher, logger *zap.Logger) *PublishingRepository[T, P] {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PublishingRepository[T, P]{Repository: repo, table: table, pub: pub, logger: logger}
}

func (r *PublishingRepository[T, P]) publish(ctx context.Context, typ realtime.EventType, row, old map[string]any) {
	c := realtime.Change{Table: r.table, Type: typ, Record: row, OldRecord: old, At: time.Now().UTC()}
	if err := r.pub.PublishChange(context.WithoutCancel(ctx), c); err != nil {
		r.logger.Warn("publish change failed",
			zap.String("table", r.table),
			zap.String("type", string(typ)),
			zap.String("id", c.ID()),
			zap.Error(err))
	}
}

func (r *PublishingRepository[T, P]) record(row T) map[string]any {
	m, err := realtime.RowMap(row)
	if err != nil {
		r.logger.Warn("encode change record", zap.String("table", r.table), zap.Error(err))
		return map[string]any{"id": P(&row).RowMeta().ID.String()}
	}
	return m
}

func (r *PublishingRepository[T, P]) Insert(ctx context.Context, row T) (T, error) {
	stored, err := r.Repository.Insert(ctx, row)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, realtime.EventInsert, r.record(stored), nil)
	return stored, nil
}

func (r *PublishingRepository[T, P]) Update(ctx context.Context, row T, expectedVersion int64) (T, error) {
	stored, err := r.Repository.Update(ctx, row, expectedVersion)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, realtime.EventUpdate, r.record(stored), nil)
	return stored, nil
}

func (r *PublishingRepository[T, P]) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.Repository.Delete(ctx, id); err != nil {
		return err
	}
	r.publish(ctx, realtime.EventDelete, nil, map[string]any{"id": id.String()})
	return nil
}

// Modify forwards to the wrapped repository when it supports atomic
// modification.
func (r *PublishingRepository[T, P]) Modify(ctx context.Context, id uuid.UUID, fn func(P) error) (T, error) {
	m, ok := r.Repository.(Modifier[T, P])
	if !ok {
		var zero T
		return zero, &apperr.Error{Kind: apperr.KindDatabase, Op: r.table + ".modify", Message: "repository does not support modify"}
	}
	stored, err := m.Modify(ctx, id, fn)
	if err != nil {
		return stored, err
	}
	r.publish(ctx, realtime.EventUpdate, r.record(stored), nil)
	return stored, nil
}

var _ Repository[models.Event] = (*PublishingRepository[models.Event, *models.Event])(nil)
