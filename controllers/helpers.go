package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/middleware"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
	"github.com/team-gs/gs-orders-api/utils"
)

// findRequestUser resolves the authenticated user's profile. On failure it
// writes the error response and returns false, so handlers can bail early.
func findRequestUser(c *gin.Context) (*models.User, bool) {
	auth0ID, err := middleware.GetUserID(c)
	if err != nil {
		c.JSON(http.StatusUnauthorized, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "UNAUTHORIZED",
				"message": "Could not extract user information",
			},
		})
		return nil, false
	}

	db := config.GetDB()
	var user models.User
	if err := db.Where("auth0_id = ?", auth0ID).First(&user).Error; err != nil {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "USER_NOT_FOUND",
				"message": "User profile not found. Please create a profile first.",
			},
		})
		return nil, false
	}

	return &user, true
}

// actorFor builds the lifecycle actor identity for a user profile
func actorFor(user *models.User) services.Actor {
	return services.Actor{
		ID:     user.Auth0ID,
		Email:  user.Email,
		Name:   user.Name,
		Avatar: user.AvatarURL,
	}
}

// respondServiceError maps a service error onto the JSON error envelope
func respondServiceError(c *gin.Context, err error) {
	var validationErr *services.ValidationError
	if errors.As(err, &validationErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    validationErr.Code,
				"message": validationErr.Message,
			},
		})
		return
	}

	var notFoundErr *services.NotFoundError
	if errors.As(err, &notFoundErr) {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    notFoundErr.Code,
				"message": notFoundErr.Message,
			},
		})
		return
	}

	var conflictErr *services.ConflictError
	if errors.As(err, &conflictErr) {
		c.JSON(http.StatusConflict, gin.H{
			"success": false,
			"error": gin.H{
				"code":    conflictErr.Code,
				"message": conflictErr.Message,
			},
		})
		return
	}

	var uploadErr *utils.FileUploadError
	if errors.As(err, &uploadErr) {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    uploadErr.Code,
				"message": uploadErr.Message,
			},
		})
		return
	}

	c.JSON(http.StatusInternalServerError, gin.H{
		"success": false,
		"error": gin.H{
			"code":    "INTERNAL_ERROR",
			"message": err.Error(),
		},
	})
}
