package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
)

// SendMessageRequest represents the JSON body for sending a text message
type SendMessageRequest struct {
	Text string `json:"text" binding:"required"`
}

// canChat decides whether a user may participate in an order's thread:
// the owning client, the assigned worker, or any staff member.
func canChat(user *models.User, order *models.Order) bool {
	if order.ClientID == user.Auth0ID {
		return true
	}
	if order.WorkerID != nil && *order.WorkerID == user.Auth0ID {
		return true
	}
	directory := services.GetStaffDirectory()
	return directory.IsWorker(user.Auth0ID) || directory.IsWorker(user.Email)
}

// loadChatOrder fetches the order behind a thread and checks participation.
// It writes the error response and returns false on failure.
func loadChatOrder(c *gin.Context) (*models.User, *models.Order, bool) {
	user, ok := findRequestUser(c)
	if !ok {
		return nil, nil, false
	}

	order, err := services.GetOrderService().OrderByID(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return nil, nil, false
	}

	if !canChat(user, order) {
		c.PureJSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to message on this order",
			},
		})
		return nil, nil, false
	}

	return user, order, true
}

// SendMessage handles POST /api/v1/orders/:id/messages - appends a text or
// image message to the order's thread. Text arrives as JSON; an image
// arrives as a multipart form with an "image" file.
func SendMessage(c *gin.Context) {
	user, order, ok := loadChatOrder(c)
	if !ok {
		return
	}

	chat := services.GetChatService()

	if image, err := c.FormFile("image"); err == nil {
		message, sendErr := chat.SendImage(order.ID, actorFor(user), image)
		if sendErr != nil {
			respondServiceError(c, sendErr)
			return
		}
		c.PureJSON(http.StatusCreated, gin.H{
			"success": true,
			"data":    message,
		})
		return
	}

	var req SendMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.PureJSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "VALIDATION_ERROR",
				"message": "Invalid request data",
				"details": err.Error(),
			},
		})
		return
	}

	message, err := chat.Send(order.ID, actorFor(user), req.Text)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    message,
	})
}

// ListMessages handles GET /api/v1/orders/:id/messages - returns the thread
// and advances the viewer's read cursor when unread messages exist
func ListMessages(c *gin.Context) {
	user, order, ok := loadChatOrder(c)
	if !ok {
		return
	}

	messages, err := services.GetChatService().OpenThread(order.ID, user.Auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data":    messages,
	})
}

// MarkMessagesRead handles POST /api/v1/orders/:id/messages/read - moves the
// caller's read cursor to now
func MarkMessagesRead(c *gin.Context) {
	user, order, ok := loadChatOrder(c)
	if !ok {
		return
	}

	if err := services.GetChatService().MarkRead(order.ID, user.Auth0ID); err != nil {
		respondServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// GetUnreadCount handles GET /api/v1/orders/:id/messages/unread-count
func GetUnreadCount(c *gin.Context) {
	user, order, ok := loadChatOrder(c)
	if !ok {
		return
	}

	count, err := services.GetChatService().UnreadCount(order.ID, user.Auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.PureJSON(http.StatusOK, gin.H{
		"success": true,
		"data": gin.H{
			"unread": count,
		},
	})
}
