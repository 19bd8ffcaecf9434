package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	channelPrefix = "changes:"
	publishTTL    = 5 * time.Second
)

// RedisPubSub carries changes between instances over Redis pub/sub. It is
// both a change publisher and a Source.
type RedisPubSub struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisPubSub creates a Redis pub/sub bridge for table changes.
func NewRedisPubSub(client *redis.Client, logger *zap.Logger) *RedisPubSub {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RedisPubSub{client: client, logger: logger}
}

// PublishChange publishes c to the table's Redis channel.
func (r *RedisPubSub) PublishChange(ctx context.Context, c Change) error {
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	body, err := json.Marshal(c)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, publishTTL)
	defer cancel()
	return r.client.Publish(ctx, channelPrefix+c.Table, body).Err()
}

// Open subscribes to the table's Redis channel. The channel ends when the
// subscription's message stream closes.
func (r *RedisPubSub) Open(ctx context.Context, table string, deliver func(Change)) (Channel, error) {
	runCtx, cancel := context.WithCancel(context.Background())
	pubsub := r.client.Subscribe(runCtx, channelPrefix+table)
	if _, err := pubsub.Receive(ctx); err != nil {
		cancel()
		_ = pubsub.Close()
		return nil, fmt.Errorf("subscribe %s: %w", table, err)
	}

	ch := newChannel(cancel)
	msgs := pubsub.Channel()
	go func() {
		defer pubsub.Close()
		for {
			select {
			case <-runCtx.Done():
				return
			case msg, ok := <-msgs:
				if !ok {
					ch.finish(ErrDisconnected)
					return
				}
				c, err := ParseChange(table, []byte(msg.Payload))
				if err != nil {
					r.logger.Warn("discarding malformed change", zap.String("table", table), zap.Error(err))
					continue
				}
				deliver(c)
			}
		}
	}()
	return ch, nil
}
