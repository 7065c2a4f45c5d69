package backfill

import (
	"errors"

	"github.com/gin-gonic/gin"

	"github.com/martinmuron/prostormat-sub002/pkg/response"
)

// Handler exposes manual backfill runs.
type Handler struct {
	runner *Runner
}

// NewHandler creates a backfill handler.
func NewHandler(runner *Runner) *Handler {
	return &Handler{runner: runner}
}

// Run handles POST /api/v1/admin/backfill. The run is synchronous and the
// report is returned in the response.
func (h *Handler) Run(c *gin.Context) {
	report, err := h.runner.Run(c.Request.Context())
	if errors.Is(err, ErrRunning) {
		response.Conflict(c, err.Error())
		return
	}
	if err != nil {
		response.Internal(c, "backfill failed")
		return
	}
	response.OK(c, report)
}
