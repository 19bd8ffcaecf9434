package realtime

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// EventType is a row change kind.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
	EventAll    EventType = "*"
)

// Change is a normalized row change notification for one table.
type Change struct {
	Table     string         `json:"table"`
	Type      EventType      `json:"type"`
	Record    map[string]any `json:"record,omitempty"`
	OldRecord map[string]any `json:"old_record,omitempty"`
	At        time.Time      `json:"commit_timestamp"`
}

// Row returns the record a filter applies to: the new row, or the old one for deletes.
func (c Change) Row() map[string]any {
	if c.Type == EventDelete && c.OldRecord != nil {
		return c.OldRecord
	}
	return c.Record
}

// ID returns the changed row's id as a string, if present.
func (c Change) ID() string {
	if v, ok := c.Row()["id"]; ok {
		return fmt.Sprint(v)
	}
	return ""
}

// privateColumns never reach public clients.
var privateColumns = []string{"user_email", "email", "phone"}

// Public returns a copy of c without its private columns.
func (c Change) Public() Change {
	c.Record = withoutPrivate(c.Record)
	c.OldRecord = withoutPrivate(c.OldRecord)
	return c
}

func withoutPrivate(row map[string]any) map[string]any {
	if row == nil {
		return nil
	}
	out := make(map[string]any, len(row))
	for k, v := range row {
		out[k] = v
	}
	for _, col := range privateColumns {
		delete(out, col)
	}
	return out
}

// ParseChange decodes a change payload and normalizes its type.
func ParseChange(table string, payload []byte) (Change, error) {
	var c Change
	if err := json.Unmarshal(payload, &c); err != nil {
		return Change{}, fmt.Errorf("decode change: %w", err)
	}
	if c.Table == "" {
		c.Table = table
	}
	c.Type = EventType(strings.ToUpper(string(c.Type)))
	switch c.Type {
	case EventInsert, EventUpdate, EventDelete:
	default:
		return Change{}, fmt.Errorf("unknown change type %q", c.Type)
	}
	if c.At.IsZero() {
		c.At = time.Now().UTC()
	}
	return c, nil
}

// RowMap converts a typed row into the map form carried by changes.
func RowMap(row any) (map[string]any, error) {
	raw, err := json.Marshal(row)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, err
	}
	return m, nil
}
