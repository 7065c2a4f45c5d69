package districts

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/martinmuron/prostormat-sub002/pkg/response"
)

// Handler serves the district maintenance endpoints.
type Handler struct {
	auditor  *Auditor
	exporter *Exporter
	logger   *zap.Logger
}

// NewHandler creates a districts handler. A nil exporter disables export.
func NewHandler(auditor *Auditor, exporter *Exporter, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{auditor: auditor, exporter: exporter, logger: logger}
}

// Audit handles GET /api/v1/admin/districts/audit.
func (h *Handler) Audit(c *gin.Context) {
	report, err := h.auditor.Audit(c.Request.Context())
	if err != nil {
		h.logger.Error("district audit failed", zap.Error(err))
		response.Internal(c, "failed to audit districts")
		return
	}
	response.OK(c, report)
}

// Apply handles POST /api/v1/admin/districts/apply.
func (h *Handler) Apply(c *gin.Context) {
	report, err := h.auditor.Apply(c.Request.Context())
	if errors.Is(err, ErrUnresolvedLocations) {
		response.ConflictWithData(c, response.CodeUnresolvedLocations, err.Error(), report.Unresolved)
		return
	}
	if err != nil {
		h.logger.Error("district apply failed", zap.Error(err))
		response.Internal(c, "failed to apply districts")
		return
	}
	response.OK(c, gin.H{"changed": report.Changed})
}

// Export handles POST /api/v1/admin/districts/audit/export. With storage
// configured the file is uploaded and a download link returned, otherwise
// the workbook is streamed back.
func (h *Handler) Export(c *gin.Context) {
	report, err := h.auditor.Audit(c.Request.Context())
	if err != nil {
		h.logger.Error("district audit failed", zap.Error(err))
		response.Internal(c, "failed to audit districts")
		return
	}
	if h.exporter != nil && h.exporter.store != nil {
		exp, err := h.exporter.Upload(c.Request.Context(), report)
		if err != nil {
			h.logger.Error("district export upload failed", zap.Error(err))
			response.Internal(c, "failed to export audit")
			return
		}
		response.Created(c, exp)
		return
	}
	data, err := RenderXLSX(report)
	if err != nil {
		h.logger.Error("district export failed", zap.Error(err))
		response.Internal(c, "failed to export audit")
		return
	}
	c.Header("Content-Disposition", `attachment; filename="district-audit.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}
