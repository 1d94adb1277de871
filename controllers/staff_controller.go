package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
)

// SetStaffRoleRequest represents the request body for assigning role tags
type SetStaffRoleRequest struct {
	Role string `json:"role" binding:"required"`
}

// UpsertRoleRequest represents the request body for defining a role
type UpsertRoleRequest struct {
	Name        string `json:"name" binding:"required"`
	Icon        string `json:"icon"`
	Color       string `json:"color"`
	Permissions string `json:"permissions"`
}

// ListStaff handles GET /api/v1/staff - returns the cached staff directory
func ListStaff(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    services.GetStaffDirectory().Staff(),
	})
}

// GetMyStats handles GET /api/v1/staff/me/stats - the caller's staff record
// with cumulative earnings
func GetMyStats(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	directory := services.GetStaffDirectory()
	member, found := directory.Lookup(user.Auth0ID)
	if !found {
		member, found = directory.Lookup(user.Email)
	}
	if !found {
		c.JSON(http.StatusNotFound, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "STAFF_NOT_FOUND",
				"message": "No staff record for this user",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    member,
	})
}

// SetStaffRole handles PUT /api/v1/staff/:id/role - assigns role tags to a
// staff record keyed by email or id
func SetStaffRole(c *gin.Context) {
	var req SetStaffRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	if err := services.GetStaffDirectory().SetRole(c.Param("id"), req.Role); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// DeleteStaff handles DELETE /api/v1/staff/:id - removes a staff record
func DeleteStaff(c *gin.Context) {
	if err := services.GetStaffDirectory().DeleteStaff(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// ListRoles handles GET /api/v1/roles - returns the cached role definitions
func ListRoles(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    services.GetStaffDirectory().Roles(),
	})
}

// UpsertRole handles PUT /api/v1/roles/:id - creates or replaces a role
func UpsertRole(c *gin.Context) {
	var req UpsertRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	role := models.Role{
		ID:          c.Param("id"),
		Name:        req.Name,
		Icon:        req.Icon,
		Color:       req.Color,
		Permissions: req.Permissions,
	}
	if err := services.GetStaffDirectory().UpsertRole(&role); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    role,
	})
}

// DeleteRole handles DELETE /api/v1/roles/:id - removes a role definition
func DeleteRole(c *gin.Context) {
	if err := services.GetStaffDirectory().DeleteRole(c.Param("id")); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}
