package realtime

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"
)

// NotifyChannel is the LISTEN channel the change triggers notify for table.
func NotifyChannel(table string) string {
	return "changes_" + table
}

// PGSource listens for trigger notifications on a dedicated connection per
// table. Each channel holds one connection taken out of the pool.
type PGSource struct {
	pool   *pgxpool.Pool
	logger *zap.Logger
}

func NewPGSource(pool *pgxpool.Pool, logger *zap.Logger) *PGSource {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PGSource{pool: pool, logger: logger}
}

func (s *PGSource) Open(ctx context.Context, table string, deliver func(Change)) (Channel, error) {
	pc, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire listen conn: %w", err)
	}
	conn := pc.Hijack()

	name := NotifyChannel(table)
	if _, err := conn.Exec(ctx, "LISTEN "+pgx.Identifier{name}.Sanitize()); err != nil {
		conn.Close(context.Background())
		return nil, fmt.Errorf("listen %s: %w", name, err)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	ch := newChannel(cancel)
	go func() {
		defer conn.Close(context.Background())
		for {
			n, err := conn.WaitForNotification(runCtx)
			if err != nil {
				if runCtx.Err() == nil {
					s.logger.Warn("listen connection lost", zap.String("table", table), zap.Error(err))
					ch.finish(fmt.Errorf("%w: %v", ErrDisconnected, err))
				}
				return
			}
			c, err := ParseChange(table, []byte(n.Payload))
			if err != nil {
				s.logger.Warn("discarding malformed notification", zap.String("table", table), zap.Error(err))
				continue
			}
			deliver(c)
		}
	}()
	return ch, nil
}
