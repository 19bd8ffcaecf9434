package registrations

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
)

type fixture struct {
	kv     *localstore.SQLite
	events *entity.LocalRepository[models.Event, *models.Event]
	list   *entity.Collection[models.Event, *models.Event]
	repo   *LocalRepository
	svc    *Service
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	kv, err := localstore.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })

	f := &fixture{kv: kv}
	f.events = entity.NewLocalRepository[models.Event, *models.Event](kv, entity.EventSchema)
	f.list = entity.NewCollection[models.Event, *models.Event](f.events, entity.EventSchema, models.ListOptions{}, nil)
	t.Cleanup(f.list.Close)
	f.repo = NewLocalRepository(kv, f.events, nil)
	f.svc = NewService(f.repo, f.events, nil, WithCollection(f.list))
	return f
}

func (f *fixture) event(t *testing.T, title string, max *int, current int) models.Event {
	t.Helper()
	ev, err := f.list.Create(context.Background(), models.Event{
		Title:            title,
		EventDate:        models.NewDate(2025, 3, 1),
		MaxAttendees:     max,
		CurrentAttendees: current,
		RequiresRSVP:     true,
		IsPublished:      true,
	})
	require.NoError(t, err)
	return ev
}

func intp(n int) *int { return &n }

func form(guests int) Form {
	return Form{Name: "Ana Souza", Email: "ana@example.com", Phone: "+351 912 345 678", Guests: guests}
}

func TestRegisterCulto(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Culto", intp(50), 0)

	a, err := f.svc.Register(ctx, ev.ID, form(3))
	require.NoError(t, err)
	assert.Equal(t, StateSuccess, a.State())

	reg, updated := a.Result()
	require.NotNil(t, reg)
	assert.Equal(t, 3, reg.Guests)
	assert.Equal(t, models.RegistrationConfirmed, reg.Status)
	assert.Equal(t, 3, updated.CurrentAttendees)
	assert.Equal(t, 47, updated.RemainingCapacity())

	cached, ok := f.list.Find(ev.ID)
	require.True(t, ok)
	assert.Equal(t, 3, cached.CurrentAttendees)

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentAttendees)

	regs, err := f.svc.ListByEvent(ctx, ev.ID)
	require.NoError(t, err)
	require.Len(t, regs, 1)
	assert.Equal(t, reg.ID, regs[0].ID)
}

func TestRegisterRespectsCapacity(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Retiro", intp(10), 8)

	a, err := f.svc.Register(ctx, ev.ID, form(3))
	require.Error(t, err)
	assert.Equal(t, StateFailed, a.State())
	assert.Equal(t, "only 2 places left", a.Fields()["guests"])

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 8, stored.CurrentAttendees)

	a, err = f.svc.Register(ctx, ev.ID, form(2))
	require.NoError(t, err)
	_, updated := a.Result()
	assert.Equal(t, 10, updated.CurrentAttendees)
	assert.Zero(t, updated.RemainingCapacity())
}

func TestRegisterValidatesForm(t *testing.T) {
	f := newFixture(t)
	ev := f.event(t, "Estudo", nil, 0)

	a, err := f.svc.Register(context.Background(), ev.ID, Form{Name: " A ", Email: "not-an-email", Phone: "abc", Guests: 0})
	require.Error(t, err)
	assert.True(t, apperr.Is(err, apperr.KindValidation))
	assert.Equal(t, StateFailed, a.State())
	fields := a.Fields()
	assert.Contains(t, fields, "name")
	assert.Contains(t, fields, "email")
	assert.Contains(t, fields, "phone")
	assert.Contains(t, fields, "guests")

	_, err = f.svc.Register(context.Background(), ev.ID, Form{Name: "Ana", Email: "ana@example.com", Guests: MaxGuests + 1})
	assert.True(t, apperr.Is(err, apperr.KindValidation))
}

func TestRegisterClosedEvent(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Jantar", nil, 0)
	_, err := f.list.Update(ctx, ev.ID, entity.Patch{"requires_rsvp": false}, ev.Version)
	require.NoError(t, err)

	a, err := f.svc.Register(ctx, ev.ID, form(1))
	require.Error(t, err)
	assert.Equal(t, StateFailed, a.State())
	assert.Empty(t, a.Fields())
	assert.Equal(t, "this event is not open for registration", a.Message())

	_, err = f.svc.Register(ctx, uuid.New(), form(1))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestRegisterBySlug(t *testing.T) {
	f := newFixture(t)
	f.event(t, "Noite de Louvor", nil, 5)

	a, err := f.svc.RegisterBySlug(context.Background(), "noite-de-louvor", form(2))
	require.NoError(t, err)
	_, ev := a.Result()
	assert.Equal(t, 7, ev.CurrentAttendees)

	_, err = f.svc.RegisterBySlug(context.Background(), "missing", form(2))
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestConcurrentRegistrationsNeverOverbook(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Conferencia", intp(10), 0)

	var wg sync.WaitGroup
	var mu sync.Mutex
	ok, full := 0, 0
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := f.repo.Register(ctx, ev.ID, form(2))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case apperr.Is(err, apperr.KindConflict):
				full++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 5, ok)
	assert.Equal(t, 3, full)
	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 10, stored.CurrentAttendees)
}

type brokenKV struct{}

func (brokenKV) Get(context.Context, string) (string, bool, error) { return "", false, nil }
func (brokenKV) Set(context.Context, string, string) error         { return errors.New("disk full") }

func TestFailedWriteRevertsAttendees(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Batismo", intp(20), 4)
	repo := NewLocalRepository(brokenKV{}, f.events, nil)

	_, _, err := repo.Register(ctx, ev.ID, form(3))
	require.Error(t, err)
	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, stored.CurrentAttendees)
}

func TestCancelKeepsSeats(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Culto", intp(50), 0)
	a, err := f.svc.Register(ctx, ev.ID, form(3))
	require.NoError(t, err)
	reg, _ := a.Result()

	cancelled, err := f.svc.Cancel(ctx, reg.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RegistrationCancelled, cancelled.Status)

	stored, err := f.events.Get(ctx, ev.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, stored.CurrentAttendees)

	_, err = f.svc.Cancel(ctx, uuid.New())
	assert.True(t, apperr.Is(err, apperr.KindNotFound))
}

func TestAttemptTransitions(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	ev := f.event(t, "Culto", nil, 0)

	a := NewAttempt()
	assert.Equal(t, StateIdle, a.State())
	require.NoError(t, f.svc.Submit(ctx, a, ev.ID, form(1)))
	assert.Equal(t, StateSuccess, a.State())

	err := f.svc.Submit(ctx, a, ev.ID, form(1))
	assert.True(t, apperr.Is(err, apperr.KindConflict))

	require.NoError(t, a.Reset())
	assert.Equal(t, StateIdle, a.State())
	reg, got := a.Result()
	assert.Nil(t, reg)
	assert.Nil(t, got)
	assert.Error(t, a.Reset())
}

func TestRegisterHandler(t *testing.T) {
	gin.SetMode(gin.TestMode)
	f := newFixture(t)
	f.event(t, "Culto", intp(50), 0)

	r := gin.New()
	r.POST("/events/:slug/register", NewHandler(f.svc, nil).Register)

	post := func(body string) *httptest.ResponseRecorder {
		w := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodPost, "/events/culto/register", strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
		r.ServeHTTP(w, req)
		return w
	}

	w := post(`{"name":"Ana","email":"ana@example.com","guests":3}`)
	require.Equal(t, http.StatusCreated, w.Code)
	var ok struct {
		Data AttemptView `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &ok))
	assert.Equal(t, StateSuccess, ok.Data.State)
	require.NotNil(t, ok.Data.Remaining)
	assert.Equal(t, 47, *ok.Data.Remaining)

	w = post(`{"name":"Ana","email":"nope","guests":3}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	var bad struct {
		Fields map[string]string `json:"fields"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &bad))
	assert.Equal(t, "invalid email address", bad.Fields["email"])
}
