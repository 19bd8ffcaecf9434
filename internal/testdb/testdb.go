// Package testdb connects integration tests to the PostgreSQL database named
// by TEST_DATABASE_URL, migrated to the current schema. Tests skip when it is
// unset.
package testdb

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/pkg/database"
)

// EnvURL names the variable holding the test database DSN.
const EnvURL = "TEST_DATABASE_URL"

// Open returns a migrated pool, closed when the test ends.
func Open(t testing.TB) *pgxpool.Pool {
	t.Helper()
	dsn := os.Getenv(EnvURL)
	if dsn == "" {
		t.Skipf("%s not set", EnvURL)
	}
	ctx := context.Background()
	pool, err := database.NewPostgresPool(ctx, dsn, database.PoolOptions{MaxConns: 12}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(pool.Close)
	require.NoError(t, database.Migrate(ctx, pool, zap.NewNop()))
	return pool
}

// EventRow describes an event to insert. Rows get a fresh id and slug, so
// tests sharing the database never collide.
type EventRow struct {
	Title        string
	Published    bool
	RequiresRSVP bool
	MaxAttendees *int
	Current      int
}

// InsertEvent inserts e and removes it when the test ends.
func InsertEvent(t testing.TB, pool *pgxpool.Pool, e EventRow) uuid.UUID {
	t.Helper()
	id := uuid.New()
	if e.Title == "" {
		e.Title = "Culto"
	}
	_, err := pool.Exec(context.Background(), `INSERT INTO events
		(id, slug, title, event_date, max_attendees, current_attendees, requires_rsvp, is_published)
		VALUES ($1, $2, $3, CURRENT_DATE, $4, $5, $6, $7)`,
		id, "test-"+id.String(), e.Title, e.MaxAttendees, e.Current, e.RequiresRSVP, e.Published)
	require.NoError(t, err)
	t.Cleanup(func() {
		_, _ = pool.Exec(context.Background(), `DELETE FROM events WHERE id = $1`, id)
	})
	return id
}
