package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/queue"
	"github.com/lumen-church/backend/pkg/storage"
)

var errMediaChanged = errors.New("media url changed")

// Jobs is the queue the archiver consumes.
type Jobs interface {
	Dequeue(ctx context.Context) (*queue.Job, string, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ObjectStore receives archived media.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) (string, error)
	KeyForURL(rawURL string) (string, bool)
}

// Sermons reads and atomically updates sermon rows.
type Sermons interface {
	Get(ctx context.Context, id uuid.UUID) (models.Sermon, error)
	Modify(ctx context.Context, id uuid.UUID, fn func(*models.Sermon) error) (models.Sermon, error)
}

// MediaArchiver processes media archive jobs: download the sermon's media
// from its current URL, upload it to S3, point the sermon at the copy.
type MediaArchiver struct {
	sermons Sermons
	store   ObjectStore
	jobs    Jobs
	client  *http.Client
	backoff time.Duration
	logger  *zap.Logger
}

// NewMediaArchiver creates a media archive processor.
func NewMediaArchiver(sermons Sermons, store ObjectStore, jobs Jobs, logger *zap.Logger) *MediaArchiver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MediaArchiver{
		sermons: sermons,
		store:   store,
		jobs:    jobs,
		client:  &http.Client{Timeout: 30 * time.Minute},
		backoff: queue.RetryBackoff,
		logger:  logger,
	}
}

func mediaField(s *models.Sermon, kind queue.MediaKind) **string {
	if kind == queue.MediaVideo {
		return &s.VideoURL
	}
	return &s.AudioURL
}

// Process executes one media archive job.
func (p *MediaArchiver) Process(ctx context.Context, job *queue.Job) error {
	if job.Type != queue.JobTypeMediaArchive {
		return fmt.Errorf("unknown job type: %s", job.Type)
	}
	var payload queue.MediaArchivePayload
	if err := json.Unmarshal(job.Payload, &payload); err != nil {
		return fmt.Errorf("unmarshal payload: %w", err)
	}
	if !payload.Kind.Valid() {
		return fmt.Errorf("unknown media kind: %s", payload.Kind)
	}
	log := p.logger.With(zap.String("sermon_id", payload.SermonID.String()), zap.String("kind", string(payload.Kind)))

	sermon, err := p.sermons.Get(ctx, payload.SermonID)
	if err != nil {
		return fmt.Errorf("load sermon: %w", err)
	}
	current := *mediaField(&sermon, payload.Kind)
	if current == nil || *current != payload.SourceURL {
		log.Info("sermon media changed since the job was queued, skipping")
		return nil
	}
	if _, ok := p.store.KeyForURL(*current); ok {
		log.Info("sermon media already archived")
		return nil
	}

	// Download from the source (streaming)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, payload.SourceURL, nil)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	ext := storage.ExtensionFor(contentType, payload.SourceURL)
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	key := storage.MediaKey(payload.SermonID.String(), string(payload.Kind), ext)

	archived, err := p.store.Upload(ctx, key, contentType, resp.Body, resp.ContentLength)
	if err != nil {
		return fmt.Errorf("s3 upload: %w", err)
	}

	_, err = p.sermons.Modify(ctx, payload.SermonID, func(s *models.Sermon) error {
		field := mediaField(s, payload.Kind)
		if *field == nil || **field != payload.SourceURL {
			return errMediaChanged
		}
		*field = &archived
		return nil
	})
	if errors.Is(err, errMediaChanged) {
		log.Info("sermon media changed during upload, keeping the new value", zap.String("s3_key", key))
		return nil
	}
	if err != nil {
		log.Error("update sermon media url failed", zap.Error(err))
		return fmt.Errorf("update sermon: %w", err)
	}

	log.Info("media archive completed", zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *MediaArchiver) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("media worker stopping")
			return
		default:
		}

		job, _, err := p.jobs.Dequeue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.sleep(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.jobs.Retry(context.WithoutCancel(ctx), job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.sleep(ctx)
		}
	}
}

func (p *MediaArchiver) sleep(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}
