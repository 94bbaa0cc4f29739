// internal/interfaces/http/handlers/recommendation.go
package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/domain/recommendation"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
)

// RecommendationHandler serves product recommendations
type RecommendationHandler struct {
	recommendationService *recommendation.Service
	logger                *logrus.Logger
}

// NewRecommendationHandler creates a new recommendation handler
func NewRecommendationHandler(recommendationService *recommendation.Service, logger *logrus.Logger) *RecommendationHandler {
	return &RecommendationHandler{
		recommendationService: recommendationService,
		logger:                logger,
	}
}

// GetRecommendations handles GET /recommendations?type=cart|hot|new|featured|related.
// Signed-in shoppers get cart-aware results; anonymous ones get the fallback list.
func (h *RecommendationHandler) GetRecommendations(c *gin.Context) {
	var req recommendation.Request
	if err := c.ShouldBindQuery(&req); err != nil {
		respondBindError(c, err)
		return
	}

	var userID *uint
	if id, ok := middleware.GetUserIDFromContext(c); ok {
		userID = &id
	}

	response, err := h.recommendationService.Recommend(c.Request.Context(), userID, &req)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Recommendations retrieved successfully", response)
}

// GetRelatedProducts handles GET /products/:id/related
func (h *RecommendationHandler) GetRelatedProducts(c *gin.Context) {
	id, ok := parseID(c, "id")
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.Query("limit"))

	products, err := h.recommendationService.RelatedTo(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	respondOK(c, "Related products retrieved successfully", gin.H{
		"count":           len(products),
		"recommendations": products,
	})
}
