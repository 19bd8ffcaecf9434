package content

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
	"github.com/lumen-church/backend/pkg/queue"
)

type envelope struct {
	Success bool              `json:"success"`
	Data    json.RawMessage   `json:"data"`
	Error   string            `json:"error"`
	Fields  map[string]string `json:"fields"`
}

func openKV(t *testing.T) localstore.Store {
	t.Helper()
	kv, err := localstore.OpenSQLite(":memory:", nil)
	require.NoError(t, err)
	t.Cleanup(func() { kv.Close() })
	return kv
}

func newEventsRouter(t *testing.T) (*gin.Engine, *Events) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	repo := entity.NewLocalRepository[models.Event, *models.Event](openKV(t), entity.EventSchema)
	events := NewEvents(repo, nil)
	t.Cleanup(events.Close)

	r := gin.New()
	pub := r.Group("/events")
	pub.GET("/:slug/calendar", Calendar(events, nil))
	events.Routes(pub, r.Group("/admin/events"))
	return r, events
}

func do(r http.Handler, method, path, body string, headers ...string) (*httptest.ResponseRecorder, envelope) {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	for i := 0; i+1 < len(headers); i += 2 {
		req.Header.Set(headers[i], headers[i+1])
	}
	r.ServeHTTP(w, req)
	var env envelope
	_ = json.Unmarshal(w.Body.Bytes(), &env)
	return w, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

func TestEventCRUD(t *testing.T) {
	r, _ := newEventsRouter(t)

	w, env := do(r, http.MethodPost, "/admin/events", `{"title":""}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "required", env.Fields["title"])
	assert.Equal(t, "required", env.Fields["event_date"])

	w, env = do(r, http.MethodPost, "/admin/events",
		`{"title":"Culto de Domingo","event_date":"2025-03-02","start_time":"10:00","is_published":true,"requires_rsvp":true,"max_attendees":50}`)
	require.Equal(t, http.StatusCreated, w.Code)
	culto := decode[models.Event](t, env.Data)
	assert.Equal(t, "culto-de-domingo", culto.Slug)
	assert.Equal(t, int64(1), culto.Version)

	w, env = do(r, http.MethodPost, "/admin/events", `{"title":"Ensaio","event_date":"2025-03-01"}`)
	require.Equal(t, http.StatusCreated, w.Code)
	draft := decode[models.Event](t, env.Data)

	w, env = do(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[[]models.Event](t, env.Data)
	require.Len(t, list, 1)
	assert.Equal(t, culto.ID, list[0].ID)

	w, _ = do(r, http.MethodGet, "/events/ensaio", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	w, _ = do(r, http.MethodGet, "/events/culto-de-domingo", "")
	assert.Equal(t, http.StatusOK, w.Code)

	w, env = do(r, http.MethodGet, "/admin/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	all := decode[[]models.Event](t, env.Data)
	require.Len(t, all, 2)
	assert.Equal(t, draft.ID, all[0].ID, "events are ordered by date")

	w, env = do(r, http.MethodPatch, "/admin/events/"+draft.ID.String(), `{"is_published":true,"base_version":1}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2", w.Header().Get("ETag"))
	w, _ = do(r, http.MethodPatch, "/admin/events/"+draft.ID.String(), `{"title":"Ensaio Geral"}`, "If-Match", `"1"`)
	assert.Equal(t, http.StatusConflict, w.Code)
	w, env = do(r, http.MethodPatch, "/admin/events/"+draft.ID.String(), `{"start_time":"25:99"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Contains(t, env.Fields, "start_time")

	w, env = do(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Event](t, env.Data), 2)

	w, _ = do(r, http.MethodDelete, "/admin/events/"+draft.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = do(r, http.MethodDelete, "/admin/events/"+draft.ID.String(), "")
	assert.Equal(t, http.StatusNoContent, w.Code)
	w, _ = do(r, http.MethodGet, "/admin/events/"+draft.ID.String(), "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestEventFilters(t *testing.T) {
	r, events := newEventsRouter(t)
	ctx := context.Background()
	for _, e := range []models.Event{
		{Title: "Culto", EventDate: models.NewDate(2025, 3, 2), Type: models.EventTypeService, IsPublished: true},
		{Title: "Jovens", EventDate: models.NewDate(2025, 4, 5), Type: models.EventTypeYouth, IsPublished: true, IsFeatured: true},
		{Title: "Oração", EventDate: models.NewDate(2025, 4, 9), Type: models.EventTypePrayer},
	} {
		_, err := events.Collection().Create(ctx, e)
		require.NoError(t, err)
	}

	w, env := do(r, http.MethodGet, "/events?featured=true", "")
	require.Equal(t, http.StatusOK, w.Code)
	got := decode[[]models.Event](t, env.Data)
	require.Len(t, got, 1)
	assert.Equal(t, "Jovens", got[0].Title)

	w, env = do(r, http.MethodGet, "/events?from=2025-04-01&published=false", "")
	require.Equal(t, http.StatusOK, w.Code)
	got = decode[[]models.Event](t, env.Data)
	require.Len(t, got, 1, "public lists never include drafts")
	assert.Equal(t, "Jovens", got[0].Title)

	w, env = do(r, http.MethodGet, "/events?type=service&limit=5", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[[]models.Event](t, env.Data), 1)

	w, env = do(r, http.MethodGet, "/events?from=April&featured=maybe&category=x", "")
	require.Equal(t, http.StatusBadRequest, w.Code)
	assert.Len(t, env.Fields, 3)
}

func TestCalendar(t *testing.T) {
	r, events := newEventsRouter(t)
	start := "19:30"
	_, err := events.Collection().Create(context.Background(), models.Event{
		Title: "Vigília", EventDate: models.NewDate(2025, 3, 7), StartTime: &start,
		Location: "Templo", City: "Porto", IsPublished: true,
	})
	require.NoError(t, err)

	w, env := do(r, http.MethodGet, "/events/vigilia/calendar", "")
	require.Equal(t, http.StatusOK, w.Code)
	entry := decode[models.CalendarEntry](t, env.Data)
	assert.Equal(t, "Vigília", entry.Title)
	assert.Equal(t, "Templo, Porto", entry.Location)
	assert.Equal(t, 19, entry.StartDate.Hour())
	assert.Equal(t, 21, entry.EndDate.Hour())
}

func TestCategorySet(t *testing.T) {
	gin.SetMode(gin.TestMode)
	kv := openKV(t)
	set := CategorySet{}
	for _, kind := range entity.CategoryKinds {
		schema, err := entity.CategorySchema(kind)
		require.NoError(t, err)
		set[kind] = NewCategories(entity.NewLocalRepository[models.Category, *models.Category](kv, schema), schema, nil)
	}
	t.Cleanup(set.Close)

	r := gin.New()
	set.Routes(r.Group("/categories"), r.Group("/admin/categories"))

	w, _ := do(r, http.MethodPost, "/admin/categories/sermon", `{"name":"Série Romanos","is_active":true}`)
	require.Equal(t, http.StatusCreated, w.Code)
	w, _ = do(r, http.MethodPost, "/admin/categories/sermon", `{"name":"Arquivo"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w, env := do(r, http.MethodGet, "/categories/sermon", "")
	require.Equal(t, http.StatusOK, w.Code)
	cats := decode[[]models.Category](t, env.Data)
	require.Len(t, cats, 1)
	assert.Equal(t, "serie-romanos", cats[0].Slug)

	w, env = do(r, http.MethodGet, "/categories/blog", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, decode[[]models.Category](t, env.Data))

	w, _ = do(r, http.MethodGet, "/categories/podcast", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

type fakeArchiver struct{ jobs []queue.MediaArchivePayload }

func (f *fakeArchiver) EnqueueMediaArchive(_ context.Context, p queue.MediaArchivePayload) (string, error) {
	f.jobs = append(f.jobs, p)
	return "job-" + string(p.Kind), nil
}

type fakePresigner struct{}

func (fakePresigner) KeyForURL(u string) (string, bool) {
	if strings.HasPrefix(u, "https://media.test/") {
		return strings.TrimPrefix(u, "https://media.test/"), true
	}
	return "", false
}

func (fakePresigner) PresignDownload(_ context.Context, key string) (string, error) {
	return "https://media.test/" + key + "?signed=1", nil
}

func TestSermonMedia(t *testing.T) {
	gin.SetMode(gin.TestMode)
	repo := entity.NewLocalRepository[models.Sermon, *models.Sermon](openKV(t), entity.SermonSchema)
	sermons := NewSermons(repo, nil)
	t.Cleanup(sermons.Close)
	jobs := &fakeArchiver{}
	media := NewSermonMedia(sermons, jobs, fakePresigner{}, nil)

	r := gin.New()
	r.GET("/sermons/:slug/download", media.Download)
	r.POST("/admin/sermons/:id/archive", media.Archive)

	audio := "https://cdn.example.com/graca.mp3"
	video := "https://media.test/sermons/x/video.mp4"
	s, err := sermons.Collection().Create(context.Background(), models.Sermon{
		Title: "Graça", Speaker: "Pr. João", SermonDate: models.NewDate(2025, 3, 2),
		AudioURL: &audio, VideoURL: &video, IsPublished: true,
	})
	require.NoError(t, err)

	w, env := do(r, http.MethodPost, "/admin/sermons/"+s.ID.String()+"/archive", "")
	require.Equal(t, http.StatusAccepted, w.Code)
	require.Len(t, jobs.jobs, 1, "archived video is skipped")
	assert.Equal(t, queue.MediaAudio, jobs.jobs[0].Kind)
	assert.Equal(t, audio, jobs.jobs[0].SourceURL)
	assert.Contains(t, string(env.Data), "job-audio")

	w, _ = do(r, http.MethodPost, "/admin/sermons/"+s.ID.String()+"/archive", `{"kind":"video"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	w, _ = do(r, http.MethodPost, "/admin/sermons/"+s.ID.String()+"/archive", `{"kind":"slides"}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w, env = do(r, http.MethodGet, "/sermons/graca/download", "")
	require.Equal(t, http.StatusOK, w.Code)
	dl := decode[Download](t, env.Data)
	assert.False(t, dl.Archived)
	assert.Equal(t, audio, dl.URL)

	w, env = do(r, http.MethodGet, "/sermons/graca/download?kind=video", "")
	require.Equal(t, http.StatusOK, w.Code)
	dl = decode[Download](t, env.Data)
	assert.True(t, dl.Archived)
	assert.Equal(t, "https://media.test/sermons/x/video.mp4?signed=1", dl.URL)
}
