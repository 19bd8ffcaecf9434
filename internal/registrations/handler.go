package registrations

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/response"
)

// AttemptView is the response body for a registration attempt.
type AttemptView struct {
	State        State                     `json:"state"`
	Registration *models.EventRegistration `json:"registration,omitempty"`
	Event        *models.Event             `json:"event,omitempty"`
	Remaining    *int                      `json:"remaining,omitempty"`
}

type Handler struct {
	svc    *Service
	logger *zap.Logger
}

func NewHandler(svc *Service, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, logger: logger}
}

// Register handles POST /events/:slug/register.
func (h *Handler) Register(c *gin.Context) {
	var f Form
	if err := c.ShouldBindJSON(&f); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	a, err := h.svc.RegisterBySlug(c.Request.Context(), c.Param("slug"), f)
	if err != nil {
		response.Error(c, err)
		return
	}
	reg, ev := a.Result()
	view := AttemptView{State: a.State(), Registration: reg, Event: ev}
	if ev != nil {
		if left := ev.RemainingCapacity(); left >= 0 {
			view.Remaining = &left
		}
	}
	response.Created(c, view)
}

// ListByEvent handles GET /admin/events/:id/registrations.
func (h *Handler) ListByEvent(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event id")
		return
	}
	regs, err := h.svc.ListByEvent(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	if regs == nil {
		regs = []models.EventRegistration{}
	}
	response.OK(c, regs)
}

// Cancel handles POST /admin/registrations/:id/cancel.
func (h *Handler) Cancel(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid registration id")
		return
	}
	reg, err := h.svc.Cancel(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, reg)
}
