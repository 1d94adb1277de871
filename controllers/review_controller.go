package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/models"
)

// ListRecentReviews handles GET /api/v1/reviews - the ten best recent reviews
func ListRecentReviews(c *gin.Context) {
	db := config.GetDB()

	var reviews []models.Comment
	err := db.Order("rating DESC").
		Order("created_at DESC").
		Limit(10).
		Find(&reviews).Error
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to fetch reviews",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    reviews,
	})
}

// DeleteReview handles DELETE /api/v1/reviews/:id - removes a review copy
// without touching the order it was denormalized from (staff only)
func DeleteReview(c *gin.Context) {
	db := config.GetDB()

	result := db.Delete(&models.Comment{}, "id = ?", c.Param("id"))
	if result.Error != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to delete review",
			},
		})
		return
	}
	if result.RowsAffected == 0 {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "REVIEW_NOT_FOUND",
				"message": "Review not found",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
