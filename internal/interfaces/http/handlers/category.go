// internal/interfaces/http/handlers/category.go
package handlers

import (
	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/product"
)

// CategoryHandler handles category and variant lookup endpoints
type CategoryHandler struct {
	categoryService *product.CategoryService
	productService  *product.Service
	logger          *logrus.Logger
}

// NewCategoryHandler creates a new category handler
func NewCategoryHandler(categoryService *product.CategoryService, productService *product.Service, logger *logrus.Logger) *CategoryHandler {
	return &CategoryHandler{
		categoryService: categoryService,
		productService:  productService,
		logger:          logger,
	}
}

// GetCategories handles GET /categories. Admins may pass include_inactive=true.
func (h *CategoryHandler) GetCategories(c *gin.Context) {
	categories, err := h.categoryService.GetCategories(c.Request.Context(), h.includeInactive(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Categories retrieved successfully", categories)
}

// GetCategoryTree handles GET /categories/tree
func (h *CategoryHandler) GetCategoryTree(c *gin.Context) {
	tree, err := h.categoryService.GetCategoryTree(c.Request.Context(), h.includeInactive(c))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Category tree retrieved successfully", tree)
}

// GetCategory handles GET /categories/:id
func (h *CategoryHandler) GetCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	category, err := h.categoryService.GetCategory(c.Request.Context(), id)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Category retrieved successfully", category)
}

// AdminCreateCategory handles POST /admin/categories
func (h *CategoryHandler) AdminCreateCategory(c *gin.Context) {
	var req product.CategoryCreateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	category, err := h.categoryService.CreateCategory(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondCreated(c, "Category created successfully", category)
}

// AdminUpdateCategory handles PUT /admin/categories/:id
func (h *CategoryHandler) AdminUpdateCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	var req product.CategoryUpdateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	category, err := h.categoryService.UpdateCategory(c.Request.Context(), id, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Category updated successfully", category)
}

// AdminDeleteCategory handles DELETE /admin/categories/:id. Descendants go with it.
func (h *CategoryHandler) AdminDeleteCategory(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}

	if err := h.categoryService.DeleteCategory(c.Request.Context(), id); err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Category deleted successfully", nil)
}

// GetSizes handles GET /sizes
func (h *CategoryHandler) GetSizes(c *gin.Context) {
	sizes, err := h.productService.ListSizes(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "Sizes retrieved successfully", sizes)
}

// GetColors handles GET /colors
func (h *CategoryHandler) GetColors(c *gin.Context) {
	colors, err := h.productService.ListColors(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "Colors retrieved successfully", colors)
}

// AdminGetAttributes handles GET /admin/attributes
func (h *CategoryHandler) AdminGetAttributes(c *gin.Context) {
	attributes, err := h.productService.ListAttributes(c.Request.Context())
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondOK(c, "Attributes retrieved successfully", attributes)
}

// AdminCreateSize handles POST /admin/sizes
func (h *CategoryHandler) AdminCreateSize(c *gin.Context) {
	var req product.SizeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	size, err := h.productService.CreateSize(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "Size created successfully", size)
}

// AdminCreateColor handles POST /admin/colors
func (h *CategoryHandler) AdminCreateColor(c *gin.Context) {
	var req product.ColorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	color, err := h.productService.CreateColor(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "Color created successfully", color)
}

// AdminCreateAttribute handles POST /admin/attributes
func (h *CategoryHandler) AdminCreateAttribute(c *gin.Context) {
	var req product.AttributeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBindError(c, err)
		return
	}

	attribute, err := h.productService.CreateAttribute(c.Request.Context(), &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}
	respondCreated(c, "Attribute created successfully", attribute)
}

func (h *CategoryHandler) includeInactive(c *gin.Context) bool {
	return c.Query("include_inactive") == "true" && isAdmin(c)
}
