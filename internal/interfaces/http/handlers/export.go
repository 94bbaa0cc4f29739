// internal/interfaces/http/handlers/export.go
package handlers

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/export"
)

// ExportHandler serves admin spreadsheet exports
type ExportHandler struct {
	exporter *export.CatalogExporter
	logger   *logrus.Logger
}

// NewExportHandler creates a new export handler
func NewExportHandler(exporter *export.CatalogExporter, logger *logrus.Logger) *ExportHandler {
	return &ExportHandler{
		exporter: exporter,
		logger:   logger,
	}
}

// ExportCatalog handles GET /admin/products/export
func (h *ExportHandler) ExportCatalog(c *gin.Context) {
	// buffered so a failed build can still answer with JSON
	var buf bytes.Buffer
	if err := h.exporter.Write(c.Request.Context(), &buf); err != nil {
		respondError(c, h.logger, apperr.Internal(err, "failed to export catalog"))
		return
	}

	filename := fmt.Sprintf("catalog-%s.xlsx", time.Now().UTC().Format("20060102-150405"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, export.ContentType, buf.Bytes())
}
