package broadcasts

import (
	"errors"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/pkg/response"
)

// Handler handles broadcast HTTP endpoints.
type Handler struct {
	svc    *Service
	linker *Linker
	logger *zap.Logger
}

// NewHandler creates a broadcasts handler.
func NewHandler(svc *Service, linker *Linker, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{svc: svc, linker: linker, logger: logger}
}

// Create handles POST /api/v1/broadcasts.
func (h *Handler) Create(c *gin.Context) {
	var req models.Request
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "contactName and a valid contactEmail are required")
		return
	}
	b, match, err := h.svc.Create(c.Request.Context(), req)
	if errors.Is(err, ErrNoMatches) {
		response.UnprocessableEntity(c, response.CodeNoMatches, "no venue matches the request")
		return
	}
	if err != nil {
		h.logger.Error("create broadcast failed", zap.Error(err))
		response.Internal(c, "failed to create broadcast")
		return
	}
	response.Created(c, gin.H{
		"broadcast":        b,
		"district":         match.District,
		"locationResolved": match.LocationResolved,
		"minCapacity":      match.MinCapacity,
	})
}

// Get handles GET /api/v1/broadcasts/:id.
func (h *Handler) Get(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid broadcast id")
		return
	}
	b, err := h.svc.Get(c.Request.Context(), id)
	if errors.Is(err, ErrNotFound) {
		response.NotFound(c, "broadcast not found")
		return
	}
	if err != nil {
		h.logger.Error("get broadcast failed", zap.Error(err), zap.String("broadcast_id", id.String()))
		response.Internal(c, "failed to load broadcast")
		return
	}
	response.OK(c, b)
}

// LinkEventRequest handles POST /api/v1/admin/event-requests/:id/link.
func (h *Handler) LinkEventRequest(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid event request id")
		return
	}
	res, err := h.linker.LinkOrCreate(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrEventRequestNotFound):
		response.NotFound(c, "event request not found")
	case errors.Is(err, ErrNoMatches):
		response.UnprocessableEntity(c, response.CodeNoMatches, "no venue matches the event request")
	case err != nil:
		h.logger.Error("link event request failed", zap.Error(err), zap.String("event_request_id", id.String()))
		response.Internal(c, "failed to link event request")
	default:
		response.OK(c, res)
	}
}

// Resend handles POST /api/v1/admin/broadcasts/:id/resend.
func (h *Handler) Resend(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.BadRequest(c, "invalid broadcast id")
		return
	}
	res, err := h.svc.Resend(c.Request.Context(), id)
	switch {
	case errors.Is(err, ErrNotFound):
		response.NotFound(c, "broadcast not found")
	case errors.Is(err, ErrNotResendable), errors.Is(err, ErrNothingToResend):
		response.Conflict(c, err.Error())
	case errors.Is(err, ErrNoTransport):
		response.ServiceUnavailable(c, err.Error())
	case err != nil:
		h.logger.Error("resend broadcast failed", zap.Error(err), zap.String("broadcast_id", id.String()))
		response.ServiceUnavailable(c, "failed to queue broadcast")
	default:
		response.OK(c, res)
	}
}
