// internal/interfaces/http/handlers/inventory.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/inventory"
)

// InventoryHandler handles admin inventory endpoints
type InventoryHandler struct {
	inventoryService *inventory.Service
	logger           *logrus.Logger
}

// NewInventoryHandler creates a new inventory handler
func NewInventoryHandler(inventoryService *inventory.Service, logger *logrus.Logger) *InventoryHandler {
	return &InventoryHandler{
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// CreateInventory handles POST /admin/inventory
func (h *InventoryHandler) CreateInventory(c *gin.Context) {
	var req inventory.CreateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.inventoryService.CreateInventory(c.Request.Context(), &req, actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Inventory created successfully", item)
}

// GetInventory handles GET /admin/inventory/:id
func (h *InventoryHandler) GetInventory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	item, err := h.inventoryService.GetInventory(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Inventory retrieved successfully", item)
}

// UpdateInventory handles PUT /admin/inventory/:id
func (h *InventoryHandler) UpdateInventory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req inventory.UpdateInventoryRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.inventoryService.UpdateInventory(c.Request.Context(), id, &req, actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Inventory updated successfully", item)
}

// AdjustInventory handles POST /admin/inventory/:id/adjust
func (h *InventoryHandler) AdjustInventory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req inventory.AdjustCountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.inventoryService.AdjustCount(c.Request.Context(), id, &req, actor(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Inventory adjusted successfully", item)
}

// DeleteInventory handles DELETE /admin/inventory/:id
func (h *InventoryHandler) DeleteInventory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.inventoryService.DeleteInventory(c.Request.Context(), id, actor(c)); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Inventory deleted successfully", nil)
}

// GetMovements handles GET /admin/inventory/:id/movements?limit=
func (h *InventoryHandler) GetMovements(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))

	movements, err := h.inventoryService.ListMovements(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Inventory movements retrieved successfully", movements)
}

// GetProductInventory handles GET /admin/products/:id/inventory, inactive rows included
func (h *InventoryHandler) GetProductInventory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	rows, err := h.inventoryService.ListProductInventory(c.Request.Context(), id, false)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product inventory retrieved successfully", rows)
}

// GetStockLevel handles GET /admin/products/:id/stock
func (h *InventoryHandler) GetStockLevel(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	level, err := h.inventoryService.GetStockLevel(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Stock level retrieved successfully", level)
}

// ReconcileStock handles POST /admin/inventory/reconcile
func (h *InventoryHandler) ReconcileStock(c *gin.Context) {
	fixed, err := h.inventoryService.ReconcileAll(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithField("corrected", fixed).Info("stock reconciliation finished")
	respondOK(c, "Stock reconciled successfully", gin.H{"corrected": fixed})
}
