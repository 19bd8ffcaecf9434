package registrations

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/apperr"
	"github.com/lumen-church/backend/internal/entity"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/localstore"
)

// StorageKey is the local store key holding every registration.
const StorageKey = "church_event_registrations"

// Repository stores registrations. Register must add the guests to the
// event's attendee count atomically with storing the registration.
type Repository interface {
	Register(ctx context.Context, eventID uuid.UUID, f Form) (models.EventRegistration, models.Event, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventRegistration, error)
	Cancel(ctx context.Context, id uuid.UUID) (models.EventRegistration, error)
}

const registrationColumns = `id, event_id, name, email, phone, guests, notes, status, created_at`

// PostgresRepository registers through the register_for_event function,
// which locks the event row for the capacity check and the increment.
type PostgresRepository struct {
	pool   *pgxpool.Pool
	events entity.Repository[models.Event]
}

func NewPostgresRepository(pool *pgxpool.Pool, events entity.Repository[models.Event]) *PostgresRepository {
	return &PostgresRepository{pool: pool, events: events}
}

func scanRegistration(row pgx.Row) (models.EventRegistration, error) {
	var r models.EventRegistration
	err := row.Scan(&r.ID, &r.EventID, &r.Name, &r.Email, &r.Phone, &r.Guests, &r.Notes, &r.Status, &r.CreatedAt)
	return r, err
}

func (r *PostgresRepository) Register(ctx context.Context, eventID uuid.UUID, f Form) (models.EventRegistration, models.Event, error) {
	const op = "registrations.register"
	reg, err := scanRegistration(r.pool.QueryRow(ctx,
		`SELECT `+registrationColumns+` FROM register_for_event($1, $2, $3, $4, $5, $6)`,
		eventID, f.Name, f.Email, f.Phone, f.Guests, f.Notes))
	if err != nil {
		return models.EventRegistration{}, models.Event{}, registerError(op, err)
	}
	ev, err := r.events.Get(ctx, eventID)
	if err != nil {
		return reg, models.Event{}, apperr.Classify(op, err)
	}
	return reg, ev, nil
}

func registerError(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "P0002":
			return apperr.NotFound(op, "event not found")
		case "RG001":
			return apperr.Validation("this event is not open for registration", nil)
		case "RG002":
			return apperr.Conflict(op, "not enough places left")
		}
	}
	return apperr.Classify(op, err)
}

func (r *PostgresRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventRegistration, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+registrationColumns+` FROM event_registrations
		WHERE event_id = $1 ORDER BY created_at`, eventID)
	if err != nil {
		return nil, apperr.Classify("registrations.list", err)
	}
	defer rows.Close()
	var out []models.EventRegistration
	for rows.Next() {
		reg, err := scanRegistration(rows)
		if err != nil {
			return nil, apperr.Classify("registrations.list", err)
		}
		out = append(out, reg)
	}
	if err := rows.Err(); err != nil {
		return nil, apperr.Classify("registrations.list", err)
	}
	return out, nil
}

func (r *PostgresRepository) Cancel(ctx context.Context, id uuid.UUID) (models.EventRegistration, error) {
	reg, err := scanRegistration(r.pool.QueryRow(ctx, `UPDATE event_registrations SET status = 'cancelled'
		WHERE id = $1 RETURNING `+registrationColumns, id))
	if err != nil {
		return reg, apperr.Classify("registrations.cancel", err)
	}
	return reg, nil
}

// LocalRepository keeps registrations in the local store. The attendee
// increment runs through the events repository's Modify; when storing the
// registration then fails, the increment is reverted.
type LocalRepository struct {
	mu     sync.Mutex
	store  localstore.Store
	events entity.Modifier[models.Event, *models.Event]
	logger *zap.Logger
	now    func() time.Time
}

func NewLocalRepository(store localstore.Store, events entity.Modifier[models.Event, *models.Event], logger *zap.Logger) *LocalRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalRepository{store: store, events: events, logger: logger, now: time.Now}
}

func (r *LocalRepository) load(ctx context.Context) ([]models.EventRegistration, error) {
	var regs []models.EventRegistration
	if err := localstore.LoadJSON(ctx, r.store, StorageKey, &regs); err != nil {
		return nil, err
	}
	return regs, nil
}

func (r *LocalRepository) Register(ctx context.Context, eventID uuid.UUID, f Form) (models.EventRegistration, models.Event, error) {
	const op = "registrations.register"
	ev, err := r.events.Modify(ctx, eventID, func(e *models.Event) error {
		if !e.IsPublished || !e.RequiresRSVP {
			return apperr.Validation("this event is not open for registration", nil)
		}
		if left := e.RemainingCapacity(); left >= 0 && f.Guests > left {
			return apperr.Conflict(op, "not enough places left")
		}
		e.CurrentAttendees += f.Guests
		return nil
	})
	if err != nil {
		return models.EventRegistration{}, models.Event{}, apperr.Classify(op, err)
	}

	reg := models.EventRegistration{
		ID:        uuid.New(),
		EventID:   eventID,
		Name:      f.Name,
		Email:     f.Email,
		Phone:     f.Phone,
		Guests:    f.Guests,
		Notes:     f.Notes,
		Status:    models.RegistrationConfirmed,
		CreatedAt: r.now(),
	}
	if err := r.append(ctx, reg); err != nil {
		r.revert(context.WithoutCancel(ctx), eventID, f.Guests)
		return models.EventRegistration{}, models.Event{}, apperr.Classify(op, err)
	}
	return reg, ev, nil
}

func (r *LocalRepository) append(ctx context.Context, reg models.EventRegistration) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	regs, err := r.load(ctx)
	if err != nil {
		return err
	}
	return localstore.SaveJSON(ctx, r.store, StorageKey, append(regs, reg))
}

func (r *LocalRepository) revert(ctx context.Context, eventID uuid.UUID, guests int) {
	_, err := r.events.Modify(ctx, eventID, func(e *models.Event) error {
		e.CurrentAttendees -= guests
		if e.CurrentAttendees < 0 {
			e.CurrentAttendees = 0
		}
		return nil
	})
	if err != nil {
		r.logger.Error("failed to revert attendee count",
			zap.String("event_id", eventID.String()), zap.Int("guests", guests), zap.Error(err))
	}
}

func (r *LocalRepository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.EventRegistration, error) {
	r.mu.Lock()
	regs, err := r.load(ctx)
	r.mu.Unlock()
	if err != nil {
		return nil, apperr.Classify("registrations.list", err)
	}
	var out []models.EventRegistration
	for _, reg := range regs {
		if reg.EventID == eventID {
			out = append(out, reg)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (r *LocalRepository) Cancel(ctx context.Context, id uuid.UUID) (models.EventRegistration, error) {
	const op = "registrations.cancel"
	r.mu.Lock()
	defer r.mu.Unlock()
	regs, err := r.load(ctx)
	if err != nil {
		return models.EventRegistration{}, apperr.Classify(op, err)
	}
	for i := range regs {
		if regs[i].ID != id {
			continue
		}
		regs[i].Status = models.RegistrationCancelled
		if err := localstore.SaveJSON(ctx, r.store, StorageKey, regs); err != nil {
			return models.EventRegistration{}, apperr.Classify(op, err)
		}
		return regs[i], nil
	}
	return models.EventRegistration{}, apperr.NotFound(op, "registration not found").With("id", id.String())
}
