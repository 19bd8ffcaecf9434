package registrations

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
)

// Service drives RSVP attempts. The capacity check on the form runs
// against a fresh read of the event; the repository repeats it atomically.
type Service struct {
	repo      Repository
	events    entity.Repository[models.Event]
	tracked   *entity.Collection[models.Event, *models.Event]
	onSuccess func(models.EventRegistration, models.Event)
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithCollection folds the updated event into c after each registration.
func WithCollection(c *entity.Collection[models.Event, *models.Event]) Option {
	return func(s *Service) { s.tracked = c }
}

// OnSuccess registers fn to run after each successful registration.
func OnSuccess(fn func(models.EventRegistration, models.Event)) Option {
	return func(s *Service) { s.onSuccess = fn }
}

func NewService(repo Repository, events entity.Repository[models.Event], logger *zap.Logger, opts ...Option) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{repo: repo, events: events, logger: logger}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Submit runs a through validation and submission. The returned error is
// the failure that ended the attempt, if any; a holds the same outcome.
func (s *Service) Submit(ctx context.Context, a *Attempt, eventID uuid.UUID, f Form) error {
	if err := a.move(StateValidating); err != nil {
		return apperr.Conflict("registrations.submit", err.Error())
	}

	ev, err := s.events.Get(ctx, eventID)
	if err != nil {
		err = apperr.Classify("registrations.submit", err)
		a.fail(err)
		return err
	}
	if err := f.Validate(&ev); err != nil {
		a.fail(err)
		return err
	}

	if err := a.move(StateSubmitting); err != nil {
		return apperr.Conflict("registrations.submit", err.Error())
	}
	reg, updated, err := s.repo.Register(ctx, eventID, f)
	if err != nil {
		s.logger.Warn("registration rejected",
			zap.String("event_id", eventID.String()), zap.Int("guests", f.Guests), zap.Error(err))
		// Server-side rejections never map onto form fields.
		if apperr.Is(err, apperr.KindValidation) {
			err = apperr.Validation(generalMessage(err), nil)
		}
		a.fail(err)
		return err
	}

	if s.tracked != nil {
		s.tracked.Track(updated)
	}
	if s.onSuccess != nil {
		s.onSuccess(reg, updated)
	}
	a.succeed(reg, updated)
	s.logger.Info("event registration",
		zap.String("event_id", eventID.String()),
		zap.String("registration_id", reg.ID.String()),
		zap.Int("guests", reg.Guests),
		zap.Int("current_attendees", updated.CurrentAttendees))
	return nil
}

// Register is Submit on a fresh attempt.
func (s *Service) Register(ctx context.Context, eventID uuid.UUID, f Form) (*Attempt, error) {
	a := NewAttempt()
	return a, s.Submit(ctx, a, eventID, f)
}

// RegisterBySlug resolves slug and registers for that event.
func (s *Service) RegisterBySlug(ctx context.Context, slug string, f Form) (*Attempt, error) {
	ev, err := s.events.FindBySlug(ctx, slug)
	if err != nil {
		return nil, apperr.Classify("registrations.register", err)
	}
	if ev == nil {
		return nil, apperr.NotFound("registrations.register", "event not found").With("slug", slug)
	}
	return s.Register(ctx, ev.ID, f)
}

func (s *Service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventRegistration, error) {
	return s.repo.ListByEvent(ctx, eventID)
}

// Cancel marks a registration cancelled. The seats are not released.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (models.EventRegistration, error) {
	return s.repo.Cancel(ctx, id)
}
