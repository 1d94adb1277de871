package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/services"
)

// ListCharacters handles GET /api/v1/characters - the static catalog of
// purchasable characters
func ListCharacters(c *gin.Context) {
	catalog := services.GetCharacterCatalog()
	if catalog == nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "CATALOG_UNAVAILABLE",
				"message": "Character catalog is not loaded",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    catalog.Characters(),
	})
}
