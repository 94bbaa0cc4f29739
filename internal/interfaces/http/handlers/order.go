// internal/interfaces/http/handlers/order.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/order"
)

// OrderHandler handles checkout and order endpoints
type OrderHandler struct {
	orderService *order.Service
	logger       *logrus.Logger
}

// NewOrderHandler creates a new order handler
func NewOrderHandler(orderService *order.Service, logger *logrus.Logger) *OrderHandler {
	return &OrderHandler{
		orderService: orderService,
		logger:       logger,
	}
}

// CreateOrder handles POST /orders. The caller's cart becomes the order.
func (h *OrderHandler) CreateOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req order.ShippingInfo
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	created, err := h.orderService.CreateOrder(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Order created successfully", created)
}

// GetOrders handles GET /orders
func (h *OrderHandler) GetOrders(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	response, err := h.orderService.ListUserOrders(c.Request.Context(), userID, page, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Orders retrieved successfully", response)
}

// GetOrder handles GET /orders/:id
func (h *OrderHandler) GetOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	o, err := h.orderService.GetUserOrder(c.Request.Context(), userID, orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Order retrieved successfully", o)
}

// CancelOrder handles POST /orders/:id/cancel
func (h *OrderHandler) CancelOrder(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req order.CancelOrderRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBindError(c, err)
			return
		}
	}

	o, err := h.orderService.CancelOrder(c.Request.Context(), userID, orderID, req.Reason)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Order cancelled successfully", o)
}

// AdminGetOrders handles GET /admin/orders
func (h *OrderHandler) AdminGetOrders(c *gin.Context) {
	var req order.OrderListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.orderService.ListOrders(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Orders retrieved successfully", response)
}

// AdminGetOrder handles GET /admin/orders/:id
func (h *OrderHandler) AdminGetOrder(c *gin.Context) {
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	o, err := h.orderService.GetOrder(c.Request.Context(), orderID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Order retrieved successfully", o)
}

// AdminGetOrderByNumber handles GET /admin/orders/number/:number
func (h *OrderHandler) AdminGetOrderByNumber(c *gin.Context) {
	o, err := h.orderService.GetOrderByNumber(c.Request.Context(), c.Param("number"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Order retrieved successfully", o)
}

// AdminUpdateOrderStatus handles PUT /admin/orders/:id/status
func (h *OrderHandler) AdminUpdateOrderStatus(c *gin.Context) {
	adminID, ok := requireUser(c)
	if !ok {
		return
	}
	orderID, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req order.UpdateStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	o, err := h.orderService.UpdateStatus(c.Request.Context(), orderID, req.Status, req.Comment, adminID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	h.logger.WithFields(logrus.Fields{
		"order_id": orderID,
		"status":   req.Status,
		"admin_id": adminID,
	}).Info("order status updated")
	respondOK(c, "Order status updated successfully", o)
}
