// internal/interfaces/http/handlers/response.go
package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/your-org/storefront/internal/interfaces/http/middleware"
	"github.com/your-org/storefront/internal/pkg/apperr"
)

// respondError writes err as {"error", "code", "details"} using the status
// registered for its code. Untyped errors become 500 with a generic message.
func respondError(c *gin.Context, logger *logrus.Logger, err error) {
	typed := apperr.As(err)
	if typed == nil {
		typed = apperr.Internal(err, "unexpected error")
	}

	meta := apperr.MetadataFor(typed.Code())
	body := gin.H{
		"error": typed.Message(),
		"code":  typed.Code(),
	}
	if meta.HTTPStatus >= http.StatusInternalServerError {
		body["error"] = meta.PublicMessage
		logger.WithError(err).WithFields(logrus.Fields{
			"request_id": c.GetString(middleware.ContextRequestID),
			"path":       c.FullPath(),
		}).Error("request failed")
	}
	if meta.DetailsAllowed && typed.Details() != nil {
		body["details"] = typed.Details()
	}

	_ = c.Error(err)
	c.AbortWithStatusJSON(meta.HTTPStatus, body)
}

// respondBindError reports malformed request bodies and query strings
func respondBindError(c *gin.Context, err error) {
	var numErr *strconv.NumError
	details := err.Error()
	if errors.As(err, &numErr) {
		details = "invalid number: " + numErr.Num
	}
	c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
		"error":   "Invalid request data",
		"code":    apperr.CodeValidation,
		"details": details,
	})
}

func respondOK(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusOK, gin.H{
		"message": message,
		"data":    data,
	})
}

func respondCreated(c *gin.Context, message string, data interface{}) {
	c.JSON(http.StatusCreated, gin.H{
		"message": message,
		"data":    data,
	})
}

// parseID reads a positive numeric path parameter
func parseID(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 32)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{
			"error": "Invalid " + name,
			"code":  apperr.CodeValidation,
		})
		return 0, false
	}
	return uint(id), true
}

// requireUser returns the authenticated user id or writes 401
func requireUser(c *gin.Context) (uint, bool) {
	userID, ok := middleware.GetUserIDFromContext(c)
	if !ok {
		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
			"error": "User not authenticated",
			"code":  apperr.CodeUnauthorized,
		})
		return 0, false
	}
	return userID, true
}

// actor returns the authenticated user id as an audit reference
func actor(c *gin.Context) *uint {
	if userID, ok := middleware.GetUserIDFromContext(c); ok {
		return &userID
	}
	return nil
}

func isAdmin(c *gin.Context) bool {
	return middleware.IsAdminFromContext(c)
}
