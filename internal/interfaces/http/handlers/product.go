// internal/interfaces/http/handlers/product.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/inventory"
	"github.com/your-org/storefront/internal/domain/product"
	"github.com/your-org/storefront/internal/pkg/apperr"
)

// ProductHandler handles catalog endpoints
type ProductHandler struct {
	productService   *product.Service
	inventoryService *inventory.Service
	logger           *logrus.Logger
}

// NewProductHandler creates a new product handler
func NewProductHandler(productService *product.Service, inventoryService *inventory.Service, logger *logrus.Logger) *ProductHandler {
	return &ProductHandler{
		productService:   productService,
		inventoryService: inventoryService,
		logger:           logger,
	}
}

// GetProducts handles GET /products. Only published products are listed.
func (h *ProductHandler) GetProducts(c *gin.Context) {
	var req product.ProductListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}
	req.Status = string(product.StatusPublished)

	response, err := h.productService.ListProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Products retrieved successfully", response)
}

// GetProduct handles GET /products/:id and counts the view
func (h *ProductHandler) GetProduct(c *gin.Context) {
	p, ok := h.publishedProduct(c)
	if !ok {
		return
	}

	if err := h.productService.RecordView(c.Request.Context(), p.ID); err != nil {
		h.logger.WithError(err).WithField("product_id", p.ID).Warn("failed to record product view")
	}

	respondOK(c, "Product retrieved successfully", p)
}

// GetProductBySlug handles GET /products/slug/:slug
func (h *ProductHandler) GetProductBySlug(c *gin.Context) {
	p, err := h.productService.GetProductBySlug(c.Request.Context(), c.Param("slug"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product retrieved successfully", p)
}

// GetProductImages handles GET /products/:id/images
func (h *ProductHandler) GetProductImages(c *gin.Context) {
	p, ok := h.publishedProduct(c)
	if !ok {
		return
	}

	images, err := h.productService.ListImages(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product images retrieved successfully", images)
}

// GetProductAttributes handles GET /products/:id/attributes
func (h *ProductHandler) GetProductAttributes(c *gin.Context) {
	p, ok := h.publishedProduct(c)
	if !ok {
		return
	}

	values, err := h.productService.ListProductAttributes(c.Request.Context(), p.ID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product attributes retrieved successfully", values)
}

// GetProductInventory handles GET /products/:id/inventory (active variants only)
func (h *ProductHandler) GetProductInventory(c *gin.Context) {
	p, ok := h.publishedProduct(c)
	if !ok {
		return
	}

	rows, err := h.inventoryService.ListProductInventory(c.Request.Context(), p.ID, true)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product inventory retrieved successfully", rows)
}

// AdminGetProducts handles GET /admin/products with every status visible
func (h *ProductHandler) AdminGetProducts(c *gin.Context) {
	var req product.ProductListRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	response, err := h.productService.ListProducts(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Products retrieved successfully", response)
}

// AdminGetProduct handles GET /admin/products/:id
func (h *ProductHandler) AdminGetProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	p, err := h.productService.GetProduct(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	missing, err := h.productService.MissingRequiredAttributes(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product retrieved successfully", gin.H{
		"product":                     p,
		"missing_required_attributes": missing,
	})
}

// AdminCreateProduct handles POST /admin/products
func (h *ProductHandler) AdminCreateProduct(c *gin.Context) {
	var req product.ProductCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.productService.CreateProduct(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Product created successfully", p)
}

// AdminUpdateProduct handles PUT /admin/products/:id
func (h *ProductHandler) AdminUpdateProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req product.ProductUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.productService.UpdateProduct(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product updated successfully", p)
}

// AdminSetProductStatus handles PUT /admin/products/:id/status
func (h *ProductHandler) AdminSetProductStatus(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req struct {
		Status product.Status `json:"status" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	p, err := h.productService.SetStatus(c.Request.Context(), id, req.Status)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product status updated successfully", p)
}

// AdminDeleteProduct handles DELETE /admin/products/:id
func (h *ProductHandler) AdminDeleteProduct(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.productService.DeleteProduct(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product deleted successfully", nil)
}

// AdminAddImage handles POST /admin/products/:id/images
func (h *ProductHandler) AdminAddImage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req product.AddImageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	image, err := h.productService.AddImage(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Image added successfully", image)
}

// AdminDeleteImage handles DELETE /admin/products/:id/images/:image_id
func (h *ProductHandler) AdminDeleteImage(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	imageID, ok := parseID(c, "image_id")
	if !ok {
		return
	}

	if err := h.productService.DeleteImage(c.Request.Context(), id, imageID); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Image deleted successfully", nil)
}

// AdminSetAttribute handles PUT /admin/products/:id/attributes
func (h *ProductHandler) AdminSetAttribute(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req product.AttributeValueRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	value, err := h.productService.SetProductAttribute(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Product attribute saved successfully", value)
}

// publishedProduct loads the :id product and hides it unless published
func (h *ProductHandler) publishedProduct(c *gin.Context) (*product.Product, bool) {
	id, ok := parseID(c, "id")
	if !ok {
		return nil, false
	}

	p, err := h.productService.GetProduct(c.Request.Context(), id)
	if err == nil && !p.IsPublished() {
		err = apperr.NotFound("product")
	}
	if err != nil {
		respondError(c, h.logger, err)
		return nil, false
	}
	return p, true
}
