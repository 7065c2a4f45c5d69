package venues

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/internal/location"
	"github.com/martinmuron/prostormat-sub002/internal/models"
	"github.com/martinmuron/prostormat-sub002/pkg/response"
)

// Handler serves matching and location resolution.
type Handler struct {
	matcher    *Matcher
	normalizer *location.Normalizer
	logger     *zap.Logger
}

// NewHandler creates a venues handler.
func NewHandler(matcher *Matcher, normalizer *location.Normalizer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{matcher: matcher, normalizer: normalizer, logger: logger}
}

// Match handles POST /api/v1/matches.
func (h *Handler) Match(c *gin.Context) {
	var body models.MatchCriteria
	if err := c.ShouldBindJSON(&body); err != nil {
		response.BadRequest(c, "invalid request body")
		return
	}
	res, err := h.matcher.MatchRequest(c.Request.Context(), body)
	if err != nil {
		h.logger.Error("match venues failed", zap.Error(err))
		response.Internal(c, "failed to match venues")
		return
	}
	response.OK(c, res)
}

// ResolveLocation handles GET /api/v1/locations/resolve?address=&district=&venue_id=.
func (h *Handler) ResolveLocation(c *gin.Context) {
	address := c.Query("address")
	district := c.Query("district")
	if address == "" && district == "" {
		response.BadRequest(c, "address or district required")
		return
	}
	response.OK(c, h.normalizer.Resolve(address, district, c.Query("venue_id")))
}
