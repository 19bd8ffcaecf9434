package queue

import (
	"context"
	"encoding/json"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestQueue connects to REDIS_TEST_ADDR, using a scratch database.
func newTestQueue(t *testing.T) *Queue {
	t.Helper()
	addr := os.Getenv("REDIS_TEST_ADDR")
	if addr == "" {
		t.Skip("REDIS_TEST_ADDR not set")
	}
	client := redis.NewClient(&redis.Options{Addr: addr, DB: 15})
	ctx := context.Background()
	require.NoError(t, client.Ping(ctx).Err())
	require.NoError(t, client.Del(ctx, QueueMedia, QueueDLQ).Err())
	t.Cleanup(func() {
		client.Del(context.Background(), QueueMedia, QueueDLQ)
		client.Close()
	})
	return NewQueue(client, nil)
}

func TestEnqueueRejectsUnknownKind(t *testing.T) {
	q := NewQueue(nil, nil)
	_, err := q.EnqueueMediaArchive(context.Background(), MediaArchivePayload{SermonID: uuid.New(), Kind: "slides"})
	assert.Error(t, err)
}

func TestEnqueueDequeue(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	payload := MediaArchivePayload{SermonID: uuid.New(), Kind: MediaAudio, SourceURL: "https://cdn.example.org/a.mp3"}

	id, err := q.EnqueueMediaArchive(ctx, payload)
	require.NoError(t, err)

	job, key, err := q.Dequeue(ctx)
	require.NoError(t, err)
	require.NotNil(t, job)
	assert.Equal(t, QueueMedia, key)
	assert.Equal(t, id, job.ID)
	assert.Equal(t, JobTypeMediaArchive, job.Type)

	var got MediaArchivePayload
	require.NoError(t, json.Unmarshal(job.Payload, &got))
	assert.Equal(t, payload, got)
}

func TestRetryDeadLetters(t *testing.T) {
	q := newTestQueue(t)
	ctx := context.Background()
	job := &Job{ID: uuid.NewString(), Type: JobTypeMediaArchive}

	for i := 1; i < MaxRetries; i++ {
		require.NoError(t, q.Retry(ctx, job))
		waiting, dead, err := q.Pending(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), waiting)
		assert.Zero(t, dead)
		_, _, err = q.Dequeue(ctx)
		require.NoError(t, err)
	}

	require.NoError(t, q.Retry(ctx, job))
	waiting, dead, err := q.Pending(ctx)
	require.NoError(t, err)
	assert.Zero(t, waiting)
	assert.Equal(t, int64(1), dead)
}
