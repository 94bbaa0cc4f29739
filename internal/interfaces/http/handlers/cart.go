// internal/interfaces/http/handlers/cart.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/cart"
)

// CartHandler handles shopping cart endpoints for the authenticated user
type CartHandler struct {
	cartService *cart.Service
	logger      *logrus.Logger
}

// NewCartHandler creates a new cart handler
func NewCartHandler(cartService *cart.Service, logger *logrus.Logger) *CartHandler {
	return &CartHandler{
		cartService: cartService,
		logger:      logger,
	}
}

// GetCart handles GET /cart
func (h *CartHandler) GetCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	response, err := h.cartService.GetCart(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Cart retrieved successfully", response)
}

// GetCartSummary handles GET /cart/summary
func (h *CartHandler) GetCartSummary(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	summary, err := h.cartService.Summary(c.Request.Context(), userID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Cart summary retrieved successfully", summary)
}

// AddToCart handles POST /cart/items
func (h *CartHandler) AddToCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	var req cart.AddToCartRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.cartService.AddItem(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Item added to cart successfully", item)
}

// UpdateCartItem handles PUT /cart/items/:item_id. Quantity zero removes the line.
func (h *CartHandler) UpdateCartItem(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return
	}

	var req cart.UpdateCartItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	item, err := h.cartService.SetQuantity(c.Request.Context(), userID, itemID, req.Quantity)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	if item == nil {
		respondOK(c, "Item removed from cart successfully", nil)
		return
	}
	respondOK(c, "Cart item updated successfully", item)
}

// RemoveFromCart handles DELETE /cart/items/:item_id
func (h *CartHandler) RemoveFromCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}
	itemID, ok := parseID(c, "item_id")
	if !ok {
		return
	}

	if err := h.cartService.RemoveItem(c.Request.Context(), userID, itemID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Item removed from cart successfully", nil)
}

// ClearCart handles DELETE /cart
func (h *CartHandler) ClearCart(c *gin.Context) {
	userID, ok := requireUser(c)
	if !ok {
		return
	}

	if err := h.cartService.Clear(c.Request.Context(), userID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Cart cleared successfully", nil)
}
