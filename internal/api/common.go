// Package api serves the dashboard REST endpoints. Every route below
// /api/businesses/:businessId is scoped to that tenant.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"whatsapp-inbox/internal/models"
	"whatsapp-inbox/pkg/logger"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const businessKey = "business"

// BusinessScope loads the business named by :businessId or answers 404.
func BusinessScope(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "businessId")
		if !ok {
			return
		}

		var business models.BusinessProfile
		err := db.WithContext(c.Request.Context()).First(&business, id).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "Business not found"})
			return
		}
		if err != nil {
			internalError(c, "Failed to load business", err)
			c.Abort()
			return
		}

		c.Set(businessKey, &business)
		c.Next()
	}
}

func currentBusiness(c *gin.Context) *models.BusinessProfile {
	return c.MustGet(businessKey).(*models.BusinessProfile)
}

// uintParam parses a numeric path parameter, answering 400 when it is not one.
func uintParam(c *gin.Context, name string) (uint, bool) {
	id, err := strconv.ParseUint(c.Param(name), 10, 64)
	if err != nil || id == 0 {
		c.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "Invalid " + name})
		return 0, false
	}
	return uint(id), true
}

func queryInt(c *gin.Context, name string, def int) int {
	v, err := strconv.Atoi(c.Query(name))
	if err != nil {
		return def
	}
	return v
}

func internalError(c *gin.Context, msg string, err error) {
	logger.Error(msg, zap.String("path", c.FullPath()), zap.Error(err))
	c.JSON(http.StatusInternalServerError, gin.H{"error": msg})
}
