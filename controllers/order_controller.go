package controllers

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/services"
)

// CreateOrderRequest represents the request body for creating an order
type CreateOrderRequest struct {
	Tier       string                        `json:"tier" binding:"required"`
	Characters []services.CharacterSelection `json:"characters" binding:"required"`
	SteamLogin *string                       `json:"steam_login"`
}

// UpdateOrderStatusRequest represents the request body for a status transition
type UpdateOrderStatusRequest struct {
	Status string `json:"status" binding:"required"`
}

// RateOrderRequest represents the request body for rating a completed order
type RateOrderRequest struct {
	Rating int    `json:"rating" binding:"required,gte=1,lte=5"`
	Review string `json:"review"`
}

// CreateOrder handles POST /api/v1/orders - places a new order
func CreateOrder(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	var req CreateOrderRequest
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

	order, err := services.GetOrderService().CreateOrder(actorFor(user), req.Tier, req.Characters, req.SteamLogin)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	// Payment instructions ride along so the client can proceed straight to
	// the proof submission step.
	cfg := config.GetConfig()
	c.JSON(http.StatusCreated, gin.H{
		"success": true,
		"data":    order,
		"payment": gin.H{
			"wallet_number": cfg.PaymentWalletNumber,
			"wallet_type":   cfg.PaymentWalletType,
			"total_price":   order.TotalPrice,
		},
	})
}

// GetOrder handles GET /api/v1/orders/:id - fetches a single order
func GetOrder(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	order, err := services.GetOrderService().OrderByID(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	directory := services.GetStaffDirectory()
	isStaff := directory.IsWorker(user.Auth0ID) || directory.IsWorker(user.Email)
	if order.ClientID != user.Auth0ID && !isStaff {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You do not have permission to view this order",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// ListMyOrders handles GET /api/v1/orders - lists the caller's order history
func ListMyOrders(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	orders, err := services.GetOrderService().OrdersByClient(user.Auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetQueue handles GET /api/v1/orders/queue - active orders, oldest first
func GetQueue(c *gin.Context) {
	orders, err := services.GetOrderService().Queue()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetActiveOrders handles GET /api/v1/orders/active - active orders, newest first
func GetActiveOrders(c *gin.Context) {
	orders, err := services.GetOrderService().ActiveOrders()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// GetCompletedOrders handles GET /api/v1/orders/completed - the caller's
// finished orders as a worker
func GetCompletedOrders(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	orders, err := services.GetOrderService().CompletedByWorker(user.Auth0ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    orders,
	})
}

// SubmitPaymentProof handles POST /api/v1/orders/:id/payment-proof -
// uploads the receipt and moves the order to pending_verification
func SubmitPaymentProof(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	orderService := services.GetOrderService()
	order, err := orderService.OrderByID(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if order.ClientID != user.Auth0ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You can only submit payment for your own orders",
			},
		})
		return
	}

	receipt, err := c.FormFile("receipt")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "MISSING_RECEIPT",
				"message": "A receipt image is required",
			},
		})
		return
	}
	senderWallet := c.PostForm("sender_wallet")

	updated, err := orderService.SubmitPaymentProof(order.ID, receipt, senderWallet)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    updated,
	})
}

// UpdateOrderStatus handles PATCH /api/v1/orders/:id/status - executes a
// lifecycle transition (staff only, enforced at the route)
func UpdateOrderStatus(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	var req UpdateOrderStatusRequest
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

	order, err := services.GetOrderService().Transition(c.Param("id"), req.Status, actorFor(user))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// AbandonOrder handles POST /api/v1/orders/:id/abandon - returns a working
// order to the queue
func AbandonOrder(c *gin.Context) {
	if _, ok := findRequestUser(c); !ok {
		return
	}

	order, err := services.GetOrderService().Abandon(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    order,
	})
}

// RateOrder handles POST /api/v1/orders/:id/rating - rates a completed order
func RateOrder(c *gin.Context) {
	user, ok := findRequestUser(c)
	if !ok {
		return
	}

	orderService := services.GetOrderService()
	order, err := orderService.OrderByID(c.Param("id"))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	if order.ClientID != user.Auth0ID {
		c.JSON(http.StatusForbidden, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "FORBIDDEN",
				"message": "You can only rate your own orders",
			},
		})
		return
	}

	var req RateOrderRequest
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

	if err := orderService.Rate(order.ID, req.Rating, req.Review); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
	})
}

// StreamOrders handles GET /api/v1/orders/stream - delivers order snapshots
// over SSE as they change. The subscription is torn down when the client
// disconnects.
func StreamOrders(c *gin.Context) {
	if _, ok := findRequestUser(c); !ok {
		return
	}

	broadcaster := services.GetOrderBroadcaster()
	channel := broadcaster.Register()
	defer broadcaster.Unregister(channel)

	c.Header("Content-Type", "text/event-stream")
	c.Header("Cache-Control", "no-cache")
	c.Header("Connection", "keep-alive")
	c.Writer.Flush()

	for {
		select {
		case order, open := <-channel:
			if !open {
				return
			}
			jsonData, err := json.Marshal(order)
			if err != nil {
				return
			}
			if _, err := fmt.Fprintf(c.Writer, "data: %s\n\n", jsonData); err != nil {
				return
			}
			c.Writer.Flush()
		case <-c.Request.Context().Done():
			return
		}
	}
}
