package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
)

// recentOperationsLimit caps the operations console listing
const recentOperationsLimit = 20

// operationsStatusLabels are the localized status labels shown on the console
var operationsStatusLabels = map[string]string{
	models.StatusAwaitingPayment:     "💸 بانتظار الدفع",
	models.StatusPendingVerification: "⏳ مراجعة الإيصال",
	models.StatusWaiting:             "⏰ بانتظار البدء",
	models.StatusWorking:             "🔥 جارِ العمل",
	models.StatusDone:                "✅ مكتمل",
	models.StatusRejected:            "❌ مرفوض",
}

// operationView projects an order for the operations console
func operationView(order *models.Order) gin.H {
	label, ok := operationsStatusLabels[order.Status]
	if !ok {
		label = order.Status
	}
	return gin.H{
		"id":            order.ID,
		"client_name":   order.ClientName,
		"tier":          order.Tier,
		"total_price":   order.TotalPrice,
		"status":        order.Status,
		"status_label":  label,
		"sender_wallet": order.SenderWallet,
		"receipt_url":   order.ReceiptURL,
		"created_at":    order.CreatedAt,
	}
}

// ListRecentOperations handles GET /api/v1/operations/recent - the most
// recent orders, newest first (staff only)
func ListRecentOperations(c *gin.Context) {
	orders, err := services.GetOrderService().RecentOrders(recentOperationsLimit)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	views := make([]gin.H, 0, len(orders))
	for i := range orders {
		views = append(views, operationView(&orders[i]))
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    views,
	})
}

// SearchOperations handles GET /api/v1/operations/search?id= - exact lookup
// by order id (staff only)
func SearchOperations(c *gin.Context) {
	orderID := c.Query("id")
	if orderID == "" {
		c.JSON(http.StatusBadRequest, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "INVALID_REQUEST",
				"message": "Order ID is required",
			},
		})
		return
	}

	order, err := services.GetOrderService().OrderByID(orderID)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"data":    operationView(order),
	})
}
