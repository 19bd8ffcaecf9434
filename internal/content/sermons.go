package content

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/queue"
	"github.com/lumen-church/backend/pkg/response"
)

// Archiver queues media archive jobs.
type Archiver interface {
	EnqueueMediaArchive(ctx context.Context, p queue.MediaArchivePayload) (string, error)
}

// Presigner signs downloads of archived media.
type Presigner interface {
	KeyForURL(rawURL string) (string, bool)
	PresignDownload(ctx context.Context, key string) (string, error)
}

// SermonMedia serves sermon downloads and queues media archiving. Either
// collaborator may be nil when object storage is not configured.
type SermonMedia struct {
	sermons *Sermons
	jobs    Archiver
	store   Presigner
	logger  *zap.Logger
}

func NewSermonMedia(sermons *Sermons, jobs Archiver, store Presigner, logger *zap.Logger) *SermonMedia {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SermonMedia{sermons: sermons, jobs: jobs, store: store, logger: logger}
}

// ArchiveRequest is the body for POST /admin/sermons/:id/archive. An empty
// kind archives every media URL the sermon has.
type ArchiveRequest struct {
	Kind queue.MediaKind `json:"kind"`
}

// Download is the response of GET /sermons/:slug/download.
type Download struct {
	Kind     queue.MediaKind `json:"kind"`
	URL      string          `json:"url"`
	Archived bool            `json:"archived"`
}

func mediaURL(s *models.Sermon, kind queue.MediaKind) string {
	p := s.AudioURL
	if kind == queue.MediaVideo {
		p = s.VideoURL
	}
	if p == nil {
		return ""
	}
	return *p
}

// Archive handles POST /admin/sermons/:id/archive.
func (h *SermonMedia) Archive(c *gin.Context) {
	if h.jobs == nil {
		response.ServiceUnavailable(c, "media archiving is not configured")
		return
	}
	id, ok := parseID(c)
	if !ok {
		return
	}
	var req ArchiveRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request body")
			return
		}
	}
	kinds := []queue.MediaKind{queue.MediaAudio, queue.MediaVideo}
	if req.Kind != "" {
		if !req.Kind.Valid() {
			response.BadRequest(c, "kind must be audio or video")
			return
		}
		kinds = []queue.MediaKind{req.Kind}
	}

	ctx := c.Request.Context()
	sermon, err := h.sermons.repo.Get(ctx, id)
	if err != nil {
		response.Error(c, err)
		return
	}
	jobs := map[queue.MediaKind]string{}
	for _, kind := range kinds {
		src := mediaURL(&sermon, kind)
		if src == "" {
			continue
		}
		if h.store != nil {
			if _, archived := h.store.KeyForURL(src); archived {
				continue
			}
		}
		jobID, err := h.jobs.EnqueueMediaArchive(ctx, queue.MediaArchivePayload{SermonID: id, Kind: kind, SourceURL: src})
		if err != nil {
			h.logger.Error("enqueue media archive failed", zap.String("sermon_id", id.String()), zap.Error(err))
			response.Internal(c, "failed to queue media archive")
			return
		}
		jobs[kind] = jobID
	}
	if len(jobs) == 0 {
		response.BadRequest(c, "nothing to archive")
		return
	}
	c.JSON(http.StatusAccepted, response.Body{Success: true, Data: gin.H{"jobs": jobs}})
}

// Download handles GET /sermons/:slug/download?kind=audio|video. Archived
// media is served through a pre-signed URL; other media links are returned
// as stored.
func (h *SermonMedia) Download(c *gin.Context) {
	kind := queue.MediaKind(c.DefaultQuery("kind", string(queue.MediaAudio)))
	if !kind.Valid() {
		response.BadRequest(c, "kind must be audio or video")
		return
	}
	ctx := c.Request.Context()
	sermon, err := h.sermons.lookup(ctx, c.Param("slug"))
	if err != nil {
		response.Error(c, err)
		return
	}
	src := mediaURL(sermon, kind)
	if src == "" {
		response.NotFound(c, "sermon has no "+string(kind))
		return
	}
	if h.store != nil {
		if key, ok := h.store.KeyForURL(src); ok {
			signed, err := h.store.PresignDownload(ctx, key)
			if err != nil {
				h.logger.Error("presign download failed", zap.String("key", key), zap.Error(err))
				response.Internal(c, "failed to sign download")
				return
			}
			response.OK(c, Download{Kind: kind, URL: signed, Archived: true})
			return
		}
	}
	response.OK(c, Download{Kind: kind, URL: src})
}
