package main

import (
	"log"
	"net/http"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/controllers"
	"github.com/team-gs/gs-orders-api/middleware"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
)

func main() {
	// Basic logging
	log.Println("Starting GS Orders API server...")

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Connect to database
	if err := config.ConnectDatabase(); err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}

	// Auto-migrate database models
	db := config.GetDB()
	if err := db.AutoMigrate(
		&models.User{},
		&models.Order{},
		&models.OrderCharacter{},
		&models.StaffMember{},
		&models.Role{},
		&models.Message{},
		&models.ChatCursor{},
		&models.Comment{},
	); err != nil {
		log.Fatalf("Failed to migrate database: %v", err)
	}
	log.Println("Database migration completed successfully")

	// Initialize services
	if _, err := services.InitS3Service(); err != nil {
		log.Fatalf("Failed to initialize S3 service: %v", err)
	}
	services.InitImageService(services.GetS3Service())
	services.InitDiscordService(cfg.DiscordWebhookURL)

	directory := services.InitStaffDirectory(db)
	if err := directory.Refresh(); err != nil {
		log.Printf("Warning: failed to load staff directory: %v", err)
	}

	broadcaster := services.InitOrderBroadcaster()
	services.InitOrderService(db, services.GetDiscordService(), directory, broadcaster)
	services.InitChatService(db, services.GetImageService())

	if _, err := services.LoadCharacterCatalog(cfg.CharactersFile); err != nil {
		log.Printf("Warning: failed to load character catalog: %v", err)
	}

	// Initialize Gin router
	router := gin.Default()

	// CORS for the browser frontend
	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Authorization"}
	router.Use(cors.New(corsConfig))

	auth := middleware.EnsureValidToken(cfg)
	staff := middleware.RequireStaff(directory)

	// API v1 routes
	v1 := router.Group("/api/v1")
	{
		// Health check endpoint
		v1.GET("/health", healthCheck)

		// Database status endpoint
		v1.GET("/database/status", databaseStatus)

		// Character catalog
		v1.GET("/characters", controllers.ListCharacters)

		// Reviews feed is public; deletion is staff-only
		v1.GET("/reviews", controllers.ListRecentReviews)
		v1.DELETE("/reviews/:id", auth, staff, controllers.DeleteReview)

		// Users
		v1.POST("/users", auth, controllers.CreateUser)
		v1.GET("/users/me", auth, controllers.GetMyProfile)
		v1.PUT("/users/me", auth, controllers.UpdateMyProfile)

		// Orders
		orders := v1.Group("/orders", auth)
		{
			orders.POST("", controllers.CreateOrder)
			orders.GET("", controllers.ListMyOrders)
			orders.GET("/queue", staff, controllers.GetQueue)
			orders.GET("/active", staff, controllers.GetActiveOrders)
			orders.GET("/completed", staff, controllers.GetCompletedOrders)
			orders.GET("/stream", staff, controllers.StreamOrders)
			orders.GET("/:id", controllers.GetOrder)
			orders.POST("/:id/payment-proof", controllers.SubmitPaymentProof)
			orders.PATCH("/:id/status", staff, controllers.UpdateOrderStatus)
			orders.POST("/:id/abandon", staff, controllers.AbandonOrder)
			orders.POST("/:id/rating", controllers.RateOrder)

			// Per-order chat
			orders.GET("/:id/messages", controllers.ListMessages)
			orders.POST("/:id/messages", controllers.SendMessage)
			orders.POST("/:id/messages/read", controllers.MarkMessagesRead)
			orders.GET("/:id/messages/unread-count", controllers.GetUnreadCount)
		}

		// Staff directory
		v1.GET("/staff", auth, staff, controllers.ListStaff)
		v1.GET("/staff/me/stats", auth, staff, controllers.GetMyStats)
		v1.PUT("/staff/:id/role", auth, middleware.RequirePermission(directory, "manage_staff"), controllers.SetStaffRole)
		v1.DELETE("/staff/:id", auth, middleware.RequirePermission(directory, "manage_staff"), controllers.DeleteStaff)
		v1.GET("/roles", auth, staff, controllers.ListRoles)
		v1.PUT("/roles/:id", auth, middleware.RequirePermission(directory, "manage_roles"), controllers.UpsertRole)
		v1.DELETE("/roles/:id", auth, middleware.RequirePermission(directory, "manage_roles"), controllers.DeleteRole)

		// Operations console
		v1.GET("/operations/recent", auth, staff, controllers.ListRecentOperations)
		v1.GET("/operations/search", auth, staff, controllers.SearchOperations)
	}

	// Start server
	port := ":" + cfg.Port
	log.Printf("Server is running on http://localhost%s", port)
	if err := router.Run(port); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// healthCheck handles the health check endpoint
func healthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "GS Orders API is running",
	})
}

// databaseStatus checks database connectivity and returns table information
func databaseStatus(c *gin.Context) {
	db := config.GetDB()

	// Get the underlying SQL database to check connection
	sqlDB, err := db.DB()
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_ERROR",
				"message": "Failed to get database instance",
			},
		})
		return
	}

	// Ping the database to verify connection
	if err := sqlDB.Ping(); err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_CONNECTION_ERROR",
				"message": "Database connection failed",
			},
		})
		return
	}

	// Get list of tables
	var tables []string
	if err := db.Raw("SELECT tablename FROM pg_tables WHERE schemaname = 'public'").Scan(&tables).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{
			"success": false,
			"error": gin.H{
				"code":    "DATABASE_QUERY_ERROR",
				"message": "Failed to query tables",
			},
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "Database connected",
		"tables":  tables,
	})
}
