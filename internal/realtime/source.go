package realtime

import (
	"context"
	"errors"
	"sync"
)

// ErrDisconnected is reported by channels whose transport went away.
var ErrDisconnected = errors.New("realtime: transport disconnected")

// Source opens change channels, one per table.
type Source interface {
	// Open starts delivering changes of table to deliver, sequentially and in
	// emission order, until the channel is closed or its transport drops.
	Open(ctx context.Context, table string, deliver func(Change)) (Channel, error)
}

// Channel is an open change subscription.
type Channel interface {
	// Done is closed when the channel stops delivering, for any reason.
	Done() <-chan struct{}
	// Err is the transport error that ended the channel, nil after Close.
	Err() error
	Close() error
}

type channel struct {
	done chan struct{}
	once sync.Once
	stop func()

	mu  sync.Mutex
	err error
}

func newChannel(stop func()) *channel {
	return &channel{done: make(chan struct{}), stop: stop}
}

func (c *channel) Done() <-chan struct{} { return c.done }

func (c *channel) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *channel) finish(err error) {
	c.once.Do(func() {
		c.mu.Lock()
		c.err = err
		c.mu.Unlock()
		close(c.done)
		if c.stop != nil {
			c.stop()
		}
	})
}

func (c *channel) Close() error {
	c.finish(nil)
	return nil
}
