// internal/interfaces/http/handlers/invoice.go
package handlers

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/order"
	"github.com/your-org/storefront/internal/pkg/apperr"
	"github.com/your-org/storefront/internal/pkg/pdf"
)

// InvoiceHandler handles invoice-related endpoints
type InvoiceHandler struct {
	orderService *order.Service
	pdfService   *pdf.Service
	logger       *logrus.Logger
}

// NewInvoiceHandler creates a new invoice handler
func NewInvoiceHandler(orderService *order.Service, pdfService *pdf.Service, logger *logrus.Logger) *InvoiceHandler {
	return &InvoiceHandler{
		orderService: orderService,
		pdfService:   pdfService,
		logger:       logger,
	}
}

// GenerateInvoice handles GET /orders/:id/invoice and streams a PDF
func (h *InvoiceHandler) GenerateInvoice(c *gin.Context) {
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}

	buf, err := h.pdfService.GenerateInvoice(o)
	if err != nil {
		respondError(c, h.logger, apperr.Internal(err, "failed to generate invoice"))
		return
	}

	filename := fmt.Sprintf("invoice-%s.pdf", o.OrderNumber)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", buf.Bytes())
}

// GetInvoiceData handles GET /orders/:id/invoice/data
func (h *InvoiceHandler) GetInvoiceData(c *gin.Context) {
	o, ok := h.ownedOrder(c)
	if !ok {
		return
	}

	respondOK(c, "Invoice data retrieved successfully", h.pdfService.BuildInvoiceData(o))
}

func (h *InvoiceHandler) ownedOrder(c *gin.Context) (*order.Order, bool) {
	userID, ok := requireUser(c)
	if !ok {
		return nil, false
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	o, err := h.orderService.GetUserOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return o, true
}
