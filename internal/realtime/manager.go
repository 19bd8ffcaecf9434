package realtime

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
)

// Status is the aggregate connection state of a Manager.
type Status string

const (
	StatusConnecting Status = "CONNECTING"
	StatusOpen       Status = "OPEN"
	StatusClosed     Status = "CLOSED"
)

const (
	DefaultReconnectDelay   = 3 * time.Second
	DefaultResubscribeDelay = time.Second
)

// Config describes one table subscription. Events defaults to all three
// change types. Filter is a predicate such as "category_id=eq.<uuid>".
type Config struct {
	Table    string
	Events   []EventType
	Filter   string
	OnInsert func(Change)
	OnUpdate func(Change)
	OnDelete func(Change)
	OnChange func(Change)
}

// Options tunes a Manager. Zero delays take the defaults.
type Options struct {
	ReconnectDelay   time.Duration
	ResubscribeDelay time.Duration
	Logger           *zap.Logger
}

type subscription struct {
	cfg    Config
	filter *Filter
	events map[EventType]bool
	ch     Channel
	closed bool
}

// Manager owns one channel per table, dispatches changes to the configured
// handlers and reconnects on its own when a channel drops.
type Manager struct {
	source           Source
	logger           *zap.Logger
	reconnectDelay   time.Duration
	resubscribeDelay time.Duration
	activity         *Activity

	life   context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	configs   map[string]Config
	order     []string
	subs      map[string]*subscription
	status    Status
	onStatus  []func(Status)
	onAny     []func(Change)
	scheduled *time.Timer
}

func NewManager(source Source, opts Options) *Manager {
	if opts.ReconnectDelay <= 0 {
		opts.ReconnectDelay = DefaultReconnectDelay
	}
	if opts.ResubscribeDelay <= 0 {
		opts.ResubscribeDelay = DefaultResubscribeDelay
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	life, cancel := context.WithCancel(context.Background())
	return &Manager{
		source:           source,
		logger:           opts.Logger,
		reconnectDelay:   opts.ReconnectDelay,
		resubscribeDelay: opts.ResubscribeDelay,
		activity:         NewActivity(),
		life:             life,
		cancel:           cancel,
		configs:          make(map[string]Config),
		subs:             make(map[string]*subscription),
		status:           StatusClosed,
	}
}

// Status returns the aggregate connection state.
func (m *Manager) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Activity returns the per-table change counters.
func (m *Manager) Activity() *Activity { return m.activity }

// OnStatus registers fn to run on every status transition.
func (m *Manager) OnStatus(fn func(Status)) {
	m.mu.Lock()
	m.onStatus = append(m.onStatus, fn)
	m.mu.Unlock()
}

// OnAny registers fn to run for every dispatched change of any table,
// after the table's own handlers.
func (m *Manager) OnAny(fn func(Change)) {
	m.mu.Lock()
	m.onAny = append(m.onAny, fn)
	m.mu.Unlock()
}

// Tables returns the subscribed tables in subscription order.
func (m *Manager) Tables() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.order...)
}

func (m *Manager) setStatus(s Status) {
	m.mu.Lock()
	if m.status == s {
		m.mu.Unlock()
		return
	}
	m.status = s
	fns := append([]func(Status){}, m.onStatus...)
	m.mu.Unlock()

	m.logger.Info("realtime status", zap.String("status", string(s)))
	for _, fn := range fns {
		fn(s)
	}
}

func prepare(cfg Config) (*subscription, error) {
	if cfg.Table == "" {
		return nil, apperr.Validation("subscription needs a table", nil)
	}
	f, err := ParseFilter(cfg.Filter)
	if err != nil {
		return nil, apperr.Validation(err.Error(), map[string]string{"filter": cfg.Filter})
	}
	events := cfg.Events
	if len(events) == 0 {
		events = []EventType{EventAll}
	}
	set := make(map[EventType]bool, 3)
	for _, e := range events {
		if e == EventAll {
			set[EventInsert], set[EventUpdate], set[EventDelete] = true, true, true
			continue
		}
		set[e] = true
	}
	return &subscription{cfg: cfg, filter: f, events: set}, nil
}

// Subscribe opens a channel for every config, replacing any channel already
// open for the same table. The configs are remembered for SubscribeAll and
// automatic reconnects.
func (m *Manager) Subscribe(ctx context.Context, configs ...Config) error {
	for _, cfg := range configs {
		if _, err := prepare(cfg); err != nil {
			return err
		}
	}
	m.mu.Lock()
	for _, cfg := range configs {
		if _, ok := m.configs[cfg.Table]; !ok {
			m.order = append(m.order, cfg.Table)
		}
		m.configs[cfg.Table] = cfg
	}
	m.mu.Unlock()

	return m.open(ctx, configs)
}

// SubscribeAll reopens every remembered subscription.
func (m *Manager) SubscribeAll(ctx context.Context) error {
	m.mu.Lock()
	configs := make([]Config, 0, len(m.order))
	for _, t := range m.order {
		configs = append(configs, m.configs[t])
	}
	m.mu.Unlock()
	return m.open(ctx, configs)
}

func (m *Manager) open(ctx context.Context, configs []Config) error {
	if len(configs) == 0 {
		return nil
	}
	m.setStatus(StatusConnecting)

	var errs []error
	for _, cfg := range configs {
		m.closeTable(cfg.Table)

		sub, _ := prepare(cfg)
		ch, err := m.source.Open(ctx, cfg.Table, func(c Change) { m.dispatch(sub, c) })
		if err != nil {
			m.logger.Error("realtime subscribe failed", zap.String("table", cfg.Table), zap.Error(err))
			errs = append(errs, fmt.Errorf("subscribe %s: %w", cfg.Table, err))
			continue
		}
		sub.ch = ch

		m.mu.Lock()
		if _, wanted := m.configs[cfg.Table]; !wanted || m.life.Err() != nil {
			m.mu.Unlock()
			_ = ch.Close()
			continue
		}
		// A concurrent open of the same table may have stored its channel
		// while this one was opening.
		replaced := m.subs[cfg.Table]
		if replaced != nil {
			replaced.closed = true
		}
		m.subs[cfg.Table] = sub
		m.mu.Unlock()
		if replaced != nil {
			_ = replaced.ch.Close()
		}

		go m.watch(sub)
		m.logger.Debug("realtime subscribed", zap.String("table", cfg.Table))
	}

	if len(errs) > 0 {
		m.setStatus(StatusClosed)
		m.scheduleReconnect()
		return apperr.Classify("realtime.subscribe", errors.Join(errs...))
	}
	m.setStatus(StatusOpen)
	return nil
}

func (m *Manager) watch(sub *subscription) {
	<-sub.ch.Done()

	m.mu.Lock()
	current := m.subs[sub.cfg.Table] == sub && !sub.closed
	if current {
		delete(m.subs, sub.cfg.Table)
		sub.closed = true
	}
	m.mu.Unlock()
	if !current {
		return
	}

	m.logger.Warn("realtime channel dropped", zap.String("table", sub.cfg.Table), zap.Error(sub.ch.Err()))
	m.setStatus(StatusClosed)
	m.scheduleReconnect()
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.scheduled != nil || m.life.Err() != nil {
		return
	}
	m.scheduled = time.AfterFunc(m.reconnectDelay, func() {
		m.mu.Lock()
		m.scheduled = nil
		m.mu.Unlock()
		if err := m.Reconnect(m.life); err != nil && m.life.Err() == nil {
			m.logger.Warn("realtime reconnect failed", zap.Error(err))
		}
	})
}

// Reconnect closes every channel, waits the resubscribe delay and opens them
// again.
func (m *Manager) Reconnect(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.setStatus(StatusConnecting)
	m.UnsubscribeAll()

	t := time.NewTimer(m.resubscribeDelay)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
		return ctx.Err()
	}
	return m.SubscribeAll(ctx)
}

func (m *Manager) closeTable(table string) {
	m.mu.Lock()
	sub, ok := m.subs[table]
	if ok {
		delete(m.subs, table)
		sub.closed = true
	}
	m.mu.Unlock()
	if ok {
		_ = sub.ch.Close()
	}
}

// Unsubscribe closes and forgets the table's subscription. Unknown or
// already closed tables are ignored.
func (m *Manager) Unsubscribe(table string) {
	m.mu.Lock()
	if _, ok := m.configs[table]; ok {
		delete(m.configs, table)
		for i, t := range m.order {
			if t == table {
				m.order = append(m.order[:i:i], m.order[i+1:]...)
				break
			}
		}
	}
	m.mu.Unlock()
	m.closeTable(table)
}

// UnsubscribeAll closes every channel but keeps the configs for
// SubscribeAll.
func (m *Manager) UnsubscribeAll() {
	m.mu.Lock()
	tables := make([]string, 0, len(m.subs))
	for t := range m.subs {
		tables = append(tables, t)
	}
	m.mu.Unlock()
	for _, t := range tables {
		m.closeTable(t)
	}
}

// Close stops reconnecting and closes every channel.
func (m *Manager) Close() {
	m.cancel()
	m.mu.Lock()
	if m.scheduled != nil {
		m.scheduled.Stop()
		m.scheduled = nil
	}
	m.mu.Unlock()
	m.UnsubscribeAll()
	m.setStatus(StatusClosed)
}

func (m *Manager) dispatch(sub *subscription, c Change) {
	m.mu.Lock()
	live := !sub.closed
	global := append([]func(Change){}, m.onAny...)
	m.mu.Unlock()
	if !live || !sub.events[c.Type] || !sub.filter.Match(c.Row()) {
		return
	}
	m.activity.Record(c)

	var typed func(Change)
	switch c.Type {
	case EventInsert:
		typed = sub.cfg.OnInsert
	case EventUpdate:
		typed = sub.cfg.OnUpdate
	case EventDelete:
		typed = sub.cfg.OnDelete
	}
	if typed != nil {
		typed(c)
	}
	if sub.cfg.OnChange != nil {
		sub.cfg.OnChange(c)
	}
	for _, fn := range global {
		fn(c)
	}
}
