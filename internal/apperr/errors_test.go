package apperr

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Kind
	}{
		{"no rows", pgx.ErrNoRows, KindNotFound},
		{"gorm not found", fmt.Errorf("load: %w", gorm.ErrRecordNotFound), KindNotFound},
		{"unique violation", &pgconn.PgError{Code: "23505", ConstraintName: "events_slug_key"}, KindConflict},
		{"other pg error", &pgconn.PgError{Code: "42P01", Message: "relation does not exist"}, KindDatabase},
		{"canceled", context.Canceled, KindCanceled},
		{"deadline", fmt.Errorf("query: %w", context.DeadlineExceeded), KindNetwork},
		{"foreign key", &pgconn.PgError{Code: "23503", ConstraintName: "event_likes_entity_id_fkey"}, KindNotFound},
		{"plain", errors.New("boom"), KindDatabase},
		{"already classified", Authorization("delete", "nope"), KindAuthorization},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Classify("op", tt.err)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got.Kind)
			assert.True(t, Is(got, tt.want))
		})
	}
}

func TestClassifyNil(t *testing.T) {
	assert.Nil(t, Classify("op", nil))
}

func TestErrorMessageAndContext(t *testing.T) {
	err := NotFound("events.update", "event not found").With("id", "42")
	assert.Equal(t, "events.update: event not found", err.Error())
	assert.Equal(t, "42", err.Context["id"])

	wrapped := fmt.Errorf("handler: %w", err)
	assert.Equal(t, KindNotFound, KindOf(wrapped))
	assert.Equal(t, KindDatabase, KindOf(errors.New("x")))
}

func TestWrapfKeepsKind(t *testing.T) {
	err := Wrapf("sermons.list", pgx.ErrNoRows, "sermon %s missing", "abc")
	assert.Equal(t, KindNotFound, err.Kind)
	assert.Equal(t, "sermon abc missing", err.Message)
	assert.ErrorIs(t, err, pgx.ErrNoRows)
}
