package realtime

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-church/backend/internal/apperr"
)

func newTestManager(t *testing.T, src Source) *Manager {
	t.Helper()
	m := NewManager(src, Options{ReconnectDelay: 30 * time.Millisecond, ResubscribeDelay: 10 * time.Millisecond})
	t.Cleanup(m.Close)
	return m
}

func publish(t *testing.T, b *Broker, c Change) {
	t.Helper()
	require.NoError(t, b.PublishChange(context.Background(), c))
}

type statusLog struct {
	mu  sync.Mutex
	all []Status
}

func (l *statusLog) add(s Status) {
	l.mu.Lock()
	l.all = append(l.all, s)
	l.mu.Unlock()
}

func (l *statusLog) get() []Status {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Status(nil), l.all...)
}

func TestInsertFiresOnce(t *testing.T) {
	b := NewBroker()
	m := newTestManager(t, b)

	var inserts, changes, global atomic.Int32
	var got atomic.Value
	require.NoError(t, m.Subscribe(context.Background(), Config{
		Table: "events",
		OnInsert: func(c Change) {
			inserts.Add(1)
			got.Store(c)
		},
		OnChange: func(Change) { changes.Add(1) },
	}))
	m.OnAny(func(Change) { global.Add(1) })

	publish(t, b, Change{Table: "events", Type: EventInsert, Record: map[string]any{"id": "e1", "title": "Culto"}})

	require.Eventually(t, func() bool { return global.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, inserts.Load())
	assert.EqualValues(t, 1, changes.Load())
	assert.EqualValues(t, 1, global.Load())
	assert.Equal(t, "Culto", got.Load().(Change).Record["title"])
	assert.EqualValues(t, 1, m.Activity().Table("events").Count)
}

func TestEventsAndFilter(t *testing.T) {
	b := NewBroker()
	m := newTestManager(t, b)

	var seen []string
	var mu sync.Mutex
	require.NoError(t, m.Subscribe(context.Background(), Config{
		Table:  "sermons",
		Events: []EventType{EventUpdate, EventDelete},
		Filter: "series=eq.Romans",
		OnChange: func(c Change) {
			mu.Lock()
			seen = append(seen, string(c.Type)+":"+c.ID())
			mu.Unlock()
		},
	}))

	publish(t, b, Change{Table: "sermons", Type: EventInsert, Record: map[string]any{"id": "1", "series": "Romans"}})
	publish(t, b, Change{Table: "sermons", Type: EventUpdate, Record: map[string]any{"id": "2", "series": "Acts"}})
	publish(t, b, Change{Table: "sermons", Type: EventUpdate, Record: map[string]any{"id": "3", "series": "Romans"}})
	publish(t, b, Change{Table: "sermons", Type: EventDelete, OldRecord: map[string]any{"id": "4", "series": "Romans"}})

	require.Eventually(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(seen) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"UPDATE:3", "DELETE:4"}, seen)
}

func TestSubscribeRejectsBadFilter(t *testing.T) {
	m := newTestManager(t, NewBroker())
	err := m.Subscribe(context.Background(), Config{Table: "events", Filter: "title~like.x"})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Empty(t, m.Tables())
}

func TestResubscribeDoesNotDuplicate(t *testing.T) {
	b := NewBroker()
	m := newTestManager(t, b)

	var n atomic.Int32
	cfg := Config{Table: "events", OnChange: func(Change) { n.Add(1) }}
	require.NoError(t, m.Subscribe(context.Background(), cfg))
	require.NoError(t, m.Subscribe(context.Background(), cfg))
	require.NoError(t, m.SubscribeAll(context.Background()))

	publish(t, b, Change{Table: "events", Type: EventUpdate, Record: map[string]any{"id": "1"}})
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, n.Load())
}

type slowSource struct {
	*Broker
	delay time.Duration
}

func (s *slowSource) Open(ctx context.Context, table string, deliver func(Change)) (Channel, error) {
	time.Sleep(s.delay)
	return s.Broker.Open(ctx, table, deliver)
}

func TestConcurrentSubscribeDeliversOnce(t *testing.T) {
	src := &slowSource{Broker: NewBroker(), delay: 20 * time.Millisecond}
	m := newTestManager(t, src)

	var n atomic.Int32
	cfg := Config{Table: "events", OnInsert: func(Change) { n.Add(1) }}
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, m.Subscribe(context.Background(), cfg))
		}()
	}
	wg.Wait()

	publish(t, src.Broker, Change{Table: "events", Type: EventInsert, Record: map[string]any{"id": "1"}})
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
	time.Sleep(30 * time.Millisecond)
	assert.EqualValues(t, 1, n.Load())
	assert.Equal(t, StatusOpen, m.Status())
}

func TestUnsubscribeIsIdempotent(t *testing.T) {
	b := NewBroker()
	m := newTestManager(t, b)

	var n atomic.Int32
	require.NoError(t, m.Subscribe(context.Background(),
		Config{Table: "events", OnChange: func(Change) { n.Add(1) }},
		Config{Table: "sermons", OnChange: func(Change) { n.Add(1) }},
	))
	assert.Equal(t, []string{"events", "sermons"}, m.Tables())

	m.Unsubscribe("events")
	m.Unsubscribe("events")
	m.Unsubscribe("nothing")
	assert.Equal(t, []string{"sermons"}, m.Tables())

	publish(t, b, Change{Table: "events", Type: EventInsert, Record: map[string]any{"id": "1"}})
	publish(t, b, Change{Table: "sermons", Type: EventInsert, Record: map[string]any{"id": "2"}})
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)

	m.UnsubscribeAll()
	m.UnsubscribeAll()
	publish(t, b, Change{Table: "sermons", Type: EventInsert, Record: map[string]any{"id": "3"}})
	time.Sleep(20 * time.Millisecond)
	assert.EqualValues(t, 1, n.Load())
}

func TestAutoReconnect(t *testing.T) {
	b := NewBroker()
	m := newTestManager(t, b)
	log := &statusLog{}
	m.OnStatus(log.add)

	var n atomic.Int32
	require.NoError(t, m.Subscribe(context.Background(), Config{Table: "events", OnInsert: func(Change) { n.Add(1) }}))
	assert.Equal(t, StatusOpen, m.Status())
	assert.Equal(t, []Status{StatusConnecting, StatusOpen}, log.get())

	b.Disconnect()
	require.Eventually(t, func() bool { return m.Status() == StatusClosed }, time.Second, time.Millisecond)
	require.Eventually(t, func() bool { return len(log.get()) == 5 && m.Status() == StatusOpen }, 2*time.Second, 5*time.Millisecond)
	assert.Equal(t, []Status{StatusConnecting, StatusOpen, StatusClosed, StatusConnecting, StatusOpen}, log.get())

	publish(t, b, Change{Table: "events", Type: EventInsert, Record: map[string]any{"id": "1"}})
	require.Eventually(t, func() bool { return n.Load() == 1 }, time.Second, 5*time.Millisecond)
}

type flakySource struct {
	*Broker
	fails atomic.Int32
}

func (s *flakySource) Open(ctx context.Context, table string, deliver func(Change)) (Channel, error) {
	if s.fails.Add(-1) >= 0 {
		return nil, errors.New("connection refused")
	}
	return s.Broker.Open(ctx, table, deliver)
}

func TestReconnectRetriesFailedOpen(t *testing.T) {
	src := &flakySource{Broker: NewBroker()}
	src.fails.Store(2)
	m := newTestManager(t, src)

	err := m.Subscribe(context.Background(), Config{Table: "events"})
	require.Error(t, err)
	assert.Equal(t, StatusClosed, m.Status())
	require.Eventually(t, func() bool { return m.Status() == StatusOpen }, 2*time.Second, 5*time.Millisecond)
}

func TestCloseStopsReconnect(t *testing.T) {
	b := NewBroker()
	m := NewManager(b, Options{ReconnectDelay: 10 * time.Millisecond, ResubscribeDelay: time.Millisecond})
	require.NoError(t, m.Subscribe(context.Background(), Config{Table: "events"}))
	m.Close()
	b.Disconnect()
	time.Sleep(40 * time.Millisecond)
	assert.Equal(t, StatusClosed, m.Status())
}
