package realtime

import (
	"sync"
	"time"
)

// TableActivity counts the changes seen on one table.
type TableActivity struct {
	Count      int64     `json:"count"`
	LastUpdate time.Time `json:"last_update"`
}

// Activity tracks change counts for display. It plays no part in cache
// correctness.
type Activity struct {
	mu     sync.RWMutex
	tables map[string]TableActivity
	last   time.Time
}

func NewActivity() *Activity {
	return &Activity{tables: make(map[string]TableActivity)}
}

func (a *Activity) Record(c Change) {
	at := c.At
	if at.IsZero() {
		at = time.Now().UTC()
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	t := a.tables[c.Table]
	t.Count++
	t.LastUpdate = at
	a.tables[c.Table] = t
	if at.After(a.last) {
		a.last = at
	}
}

func (a *Activity) Table(name string) TableActivity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.tables[name]
}

// LastUpdate is the time of the most recent change on any table.
func (a *Activity) LastUpdate() time.Time {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.last
}

func (a *Activity) Snapshot() map[string]TableActivity {
	a.mu.RLock()
	defer a.mu.RUnlock()
	out := make(map[string]TableActivity, len(a.tables))
	for k, v := range a.tables {
		out[k] = v
	}
	return out
}
