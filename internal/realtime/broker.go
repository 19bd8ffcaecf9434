package realtime

import (
	"context"
	"sync"
)

// Broker is an in-process Source and change publisher, used when changes
// originate in this process only (local storage without Redis).
type Broker struct {
	mu   sync.RWMutex
	subs map[string]map[*brokerChannel]struct{}
}

type brokerChannel struct {
	*channel
	queue chan Change
}

func NewBroker() *Broker {
	return &Broker{subs: make(map[string]map[*brokerChannel]struct{})}
}

func (b *Broker) Open(_ context.Context, table string, deliver func(Change)) (Channel, error) {
	bc := &brokerChannel{queue: make(chan Change, 64)}
	bc.channel = newChannel(func() { b.remove(table, bc) })

	b.mu.Lock()
	if b.subs[table] == nil {
		b.subs[table] = make(map[*brokerChannel]struct{})
	}
	b.subs[table][bc] = struct{}{}
	b.mu.Unlock()

	go func() {
		for {
			select {
			case c := <-bc.queue:
				deliver(c)
			case <-bc.Done():
				return
			}
		}
	}()
	return bc, nil
}

func (b *Broker) remove(table string, bc *brokerChannel) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.subs[table], bc)
	if len(b.subs[table]) == 0 {
		delete(b.subs, table)
	}
}

// PublishChange queues c on every channel open for c.Table.
func (b *Broker) PublishChange(ctx context.Context, c Change) error {
	b.mu.RLock()
	targets := make([]*brokerChannel, 0, len(b.subs[c.Table]))
	for bc := range b.subs[c.Table] {
		targets = append(targets, bc)
	}
	b.mu.RUnlock()

	for _, bc := range targets {
		select {
		case bc.queue <- c:
		case <-bc.Done():
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Disconnect ends every open channel as a transport failure would.
func (b *Broker) Disconnect() {
	b.mu.Lock()
	var all []*brokerChannel
	for _, set := range b.subs {
		for bc := range set {
			all = append(all, bc)
		}
	}
	b.subs = make(map[string]map[*brokerChannel]struct{})
	b.mu.Unlock()

	for _, bc := range all {
		bc.finish(ErrDisconnected)
	}
}
