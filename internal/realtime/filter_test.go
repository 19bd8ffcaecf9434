package realtime

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter("")
	require.NoError(t, err)
	assert.Nil(t, f)
	assert.True(t, f.Match(map[string]any{"x": 1}))

	for _, bad := range []string{"title", "=eq.1", "title=like.x", "title=eq"} {
		_, err := ParseFilter(bad)
		assert.Error(t, err, bad)
	}
}

func TestFilterMatch(t *testing.T) {
	row := map[string]any{"type": "youth", "max_attendees": float64(50), "is_published": true, "category_id": nil}
	tests := []struct {
		filter string
		want   bool
	}{
		{"type=eq.youth", true},
		{"type=eq.service", false},
		{"type=neq.service", true},
		{"max_attendees=eq.50", true},
		{"is_published=eq.true", true},
		{"type=in.(service,youth)", true},
		{"type=in.(service, prayer)", false},
		{"category_id=eq.abc", false},
		{"missing=neq.x", true},
	}
	for _, tt := range tests {
		t.Run(tt.filter, func(t *testing.T) {
			f, err := ParseFilter(tt.filter)
			require.NoError(t, err)
			assert.Equal(t, tt.want, f.Match(row))
		})
	}
}

func TestParseChange(t *testing.T) {
	c, err := ParseChange("events", []byte(`{"type":"insert","record":{"id":"a1","title":"Culto"}}`))
	require.NoError(t, err)
	assert.Equal(t, "events", c.Table)
	assert.Equal(t, EventInsert, c.Type)
	assert.Equal(t, "a1", c.ID())
	assert.False(t, c.At.IsZero())

	c, err = ParseChange("events", []byte(`{"type":"DELETE","old_record":{"id":"a2"},"commit_timestamp":"2025-03-01T10:00:00Z"}`))
	require.NoError(t, err)
	assert.Equal(t, "a2", c.ID())
	assert.Equal(t, time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC), c.At)

	_, err = ParseChange("events", []byte(`{"type":"TRUNCATE"}`))
	assert.Error(t, err)
	_, err = ParseChange("events", []byte(`nope`))
	assert.Error(t, err)
}

func TestActivity(t *testing.T) {
	a := NewActivity()
	t1 := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	a.Record(Change{Table: "events", At: t1})
	a.Record(Change{Table: "events", At: t1.Add(time.Minute)})
	a.Record(Change{Table: "sermons", At: t1.Add(-time.Hour)})

	assert.EqualValues(t, 2, a.Table("events").Count)
	assert.Equal(t, t1.Add(time.Minute), a.Table("events").LastUpdate)
	assert.Equal(t, t1.Add(time.Minute), a.LastUpdate())
	assert.Len(t, a.Snapshot(), 2)
}

func TestClientHidesDrafts(t *testing.T) {
	public := &Client{}
	admin := &Client{Privileged: true}
	draft := Change{Type: EventUpdate, Record: map[string]any{"id": "1", "is_published": false}}
	live := Change{Type: EventUpdate, Record: map[string]any{"id": "1", "is_published": true}}
	gone := Change{Type: EventDelete, OldRecord: map[string]any{"id": "1"}}

	assert.False(t, public.canSee(draft))
	assert.True(t, public.canSee(live))
	assert.True(t, public.canSee(gone))
	assert.True(t, admin.canSee(draft))
}

func TestClientHidesPendingAndInactiveRows(t *testing.T) {
	public := &Client{}
	moderator := &Client{Privileged: true}
	pending := Change{Table: "blog_post_comments", Type: EventInsert, Record: map[string]any{
		"id": "c1", "is_approved": false, "content": "spam", "user_email": "a@b.c",
	}}
	approved := Change{Table: "blog_post_comments", Type: EventUpdate, Record: map[string]any{
		"id": "c1", "is_approved": true, "content": "hello", "user_email": "a@b.c",
	}}
	inactive := Change{Table: "ministries", Type: EventUpdate, Record: map[string]any{"id": "m1", "is_active": false}}

	assert.False(t, public.canSee(pending))
	assert.False(t, public.canSee(inactive))
	assert.True(t, public.canSee(approved))
	assert.True(t, moderator.canSee(pending))
	assert.True(t, moderator.canSee(inactive))
}

func TestPublicChangeDropsPrivateColumns(t *testing.T) {
	c := Change{Table: "sermon_comments", Type: EventDelete, OldRecord: map[string]any{
		"id": "c1", "user_email": "a@b.c", "user_name": "Ana",
	}}
	p := c.Public()
	assert.NotContains(t, p.OldRecord, "user_email")
	assert.Equal(t, "Ana", p.OldRecord["user_name"])
	assert.Contains(t, c.OldRecord, "user_email")
	assert.Nil(t, p.Record)
}

func TestHubSendsRedactedChangesToPublicClients(t *testing.T) {
	hub := NewHub(nil, nil)
	public := &Client{ID: "pub", send: make(chan WSMessage, 1)}
	admin := &Client{ID: "adm", Privileged: true, send: make(chan WSMessage, 1)}
	require.True(t, hub.Join(public, "event_comments"))
	require.True(t, hub.Join(admin, "event_comments"))

	hub.Broadcast(Change{Table: "event_comments", Type: EventInsert, Record: map[string]any{
		"id": "c1", "is_approved": true, "user_email": "a@b.c",
	}})

	var got Change
	require.NoError(t, json.Unmarshal((<-public.send).Data, &got))
	assert.NotContains(t, got.Record, "user_email")
	require.NoError(t, json.Unmarshal((<-admin.send).Data, &got))
	assert.Equal(t, "a@b.c", got.Record["user_email"])
}
