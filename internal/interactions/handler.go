package interactions

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/lumen-church/backend/internal/auth"
	"github.com/lumen-church/backend/internal/models"
	"github.com/lumen-church/backend/pkg/response"
)

// CommentRequest is the body for POST /interactions/:ns/:id/comments.
type CommentRequest struct {
	Content string `json:"content"`
}

// Summary is the public view of one entity's interactions.
type Summary struct {
	Likes         int              `json:"likes"`
	Liked         bool             `json:"liked"`
	CommentsCount int              `json:"comments_count"`
	Comments      []models.Comment `json:"comments"`
}

// Handler serves the interaction endpoints of every namespace.
type Handler struct {
	services Registry
	logger   *zap.Logger
}

func NewHandler(services Registry, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{services: services, logger: logger}
}

func (h *Handler) service(c *gin.Context) (*Service, bool) {
	s, ok := h.services[models.Namespace(c.Param("ns"))]
	if !ok {
		response.NotFound(c, "unknown namespace")
	}
	return s, ok
}

func (h *Handler) ids(c *gin.Context, param string) (*Service, uuid.UUID, bool) {
	s, ok := h.service(c)
	if !ok {
		return nil, uuid.Nil, false
	}
	id, err := uuid.Parse(c.Param(param))
	if err != nil {
		response.BadRequest(c, "invalid id")
		return nil, uuid.Nil, false
	}
	return s, id, true
}

// Get handles GET /interactions/:ns/:id.
func (h *Handler) Get(c *gin.Context) {
	s, id, ok := h.ids(c, "id")
	if !ok {
		return
	}
	who := auth.IdentityFrom(c)
	comments := s.Comments(id, false)
	response.OK(c, Summary{
		Likes:         s.LikesCount(id),
		Liked:         s.HasLiked(who, id),
		CommentsCount: len(comments),
		Comments:      comments,
	})
}

// ToggleLike handles POST /interactions/:ns/:id/like.
func (h *Handler) ToggleLike(c *gin.Context) {
	s, id, ok := h.ids(c, "id")
	if !ok {
		return
	}
	liked, n, err := s.ToggleLike(c.Request.Context(), auth.IdentityFrom(c), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, gin.H{"liked": liked, "likes": n})
}

// AddComment handles POST /interactions/:ns/:id/comments.
func (h *Handler) AddComment(c *gin.Context) {
	s, id, ok := h.ids(c, "id")
	if !ok {
		return
	}
	var req CommentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	comment, err := s.AddComment(c.Request.Context(), auth.IdentityFrom(c), id, req.Content)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, comment)
}

// DeleteComment handles DELETE /interactions/:ns/comments/:commentId.
func (h *Handler) DeleteComment(c *gin.Context) {
	s, id, ok := h.ids(c, "commentId")
	if !ok {
		return
	}
	if err := s.DeleteComment(c.Request.Context(), auth.IdentityFrom(c), id); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Pending handles GET /admin/interactions/:ns/pending.
func (h *Handler) Pending(c *gin.Context) {
	s, ok := h.service(c)
	if !ok {
		return
	}
	response.OK(c, s.Pending())
}

// ApproveComment handles PATCH /admin/interactions/:ns/comments/:commentId/approve.
func (h *Handler) ApproveComment(c *gin.Context) {
	s, id, ok := h.ids(c, "commentId")
	if !ok {
		return
	}
	comment, err := s.ApproveComment(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	h.logger.Info("comment approved", zap.String("namespace", string(s.Namespace())), zap.String("comment_id", id.String()))
	response.OK(c, comment)
}
