package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/auth0/go-jwt-middleware/v2/validator"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/middleware"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

func setupTestRouter() *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	return router
}

// mockAuthMiddleware simulates the JWT middleware by setting the context the
// same way the real one does
func mockAuthMiddleware(auth0ID, accessToken string) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set("user_id", auth0ID)
		c.Set("access_token", accessToken)

		mockClaims := &validator.ValidatedClaims{
			CustomClaims: &middleware.CustomClaims{},
		}
		c.Set("validated_claims", mockClaims)

		c.Next()
	}
}

// setupControllerTest wires the full service stack onto an in-memory database
func setupControllerTest(t *testing.T) (*gorm.DB, *services.MockDiscordService) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	if err != nil {
		t.Fatalf("Failed to connect to test database: %v", err)
	}

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
		t.Fatalf("Failed to migrate test database: %v", err)
	}

	config.SetDB(db)
	config.SetConfig(&config.Config{
		DatabaseURL:         "sqlite://:memory:",
		PaymentWalletNumber: "01000000000",
		PaymentWalletType:   "Vodafone Cash / InstaPay",
	})

	mirror := services.NewMockDiscordService()
	mirror.SetAsMockForTesting()

	mockS3 := services.NewMockS3Service()
	mockS3.SetAsMockForTesting()
	images := services.InitImageService(mockS3)

	directory := services.InitStaffDirectory(db)
	require.NoError(t, directory.Refresh())
	broadcaster := services.InitOrderBroadcaster()
	services.InitOrderService(db, mirror, directory, broadcaster)
	services.InitChatService(db, images)

	return db, mirror
}

func createTestUser(t *testing.T, db *gorm.DB, auth0ID, name, email string) *models.User {
	user := &models.User{
		Auth0ID: auth0ID,
		Name:    name,
		Email:   email,
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

func createStaffRecord(t *testing.T, db *gorm.DB, id, email, role string) {
	require.NoError(t, db.Create(&models.StaffMember{
		ID:    id,
		Email: email,
		Role:  role,
	}).Error)
	require.NoError(t, services.GetStaffDirectory().Refresh())
}

func orderRequestBody() map[string]interface{} {
	return map[string]interface{}{
		"tier": models.TierPro,
		"characters": []map[string]string{
			{"id": "char-a", "name": "Alpha", "image": "https://cdn.example.com/a.png"},
			{"id": "char-b", "name": "Beta", "image": "https://cdn.example.com/b.png"},
		},
	}
}

func TestCreateOrderEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	tests := []struct {
		name           string
		auth0ID        string
		requestBody    map[string]interface{}
		expectedStatus int
		expectedError  string
		checkResponse  func(t *testing.T, response map[string]interface{})
	}{
		{
			name:           "Successfully create order",
			auth0ID:        client.Auth0ID,
			requestBody:    orderRequestBody(),
			expectedStatus: http.StatusCreated,
			checkResponse: func(t *testing.T, response map[string]interface{}) {
				assert.True(t, response["success"].(bool))
				data := response["data"].(map[string]interface{})
				assert.Equal(t, models.TierPro, data["tier"])
				assert.Equal(t, float64(18), data["total_price"])
				assert.Equal(t, models.StatusAwaitingPayment, data["status"])
				assert.Equal(t, client.Auth0ID, data["client_id"])

				// Payment instructions ride along with the created order
				payment := response["payment"].(map[string]interface{})
				assert.Equal(t, "01000000000", payment["wallet_number"])
				assert.Equal(t, float64(18), payment["total_price"])
			},
		},
		{
			name:    "Fail with unknown tier",
			auth0ID: client.Auth0ID,
			requestBody: map[string]interface{}{
				"tier": "Diamond",
				"characters": []map[string]string{
					{"id": "char-a", "name": "Alpha"},
				},
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "INVALID_TIER",
		},
		{
			name:    "Fail with missing characters",
			auth0ID: client.Auth0ID,
			requestBody: map[string]interface{}{
				"tier": models.TierPro,
			},
			expectedStatus: http.StatusBadRequest,
			expectedError:  "VALIDATION_ERROR",
		},
		{
			name:           "Fail with user not found",
			auth0ID:        "auth0|nonexistent",
			requestBody:    orderRequestBody(),
			expectedStatus: http.StatusNotFound,
			expectedError:  "USER_NOT_FOUND",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.POST("/orders",
				mockAuthMiddleware(tt.auth0ID, "mock-token"),
				CreateOrder,
			)

			body, _ := json.Marshal(tt.requestBody)
			req, _ := http.NewRequest(http.MethodPost, "/orders", bytes.NewBuffer(body))
			req.Header.Set("Content-Type", "application/json")

			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)

			var response map[string]interface{}
			err := json.Unmarshal(w.Body.Bytes(), &response)
			assert.NoError(t, err)

			if tt.expectedError != "" {
				errorData := response["error"].(map[string]interface{})
				assert.Equal(t, tt.expectedError, errorData["code"])
			}
			if tt.checkResponse != nil {
				tt.checkResponse(t, response)
			}
		})
	}
}

func TestGetOrderEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")
	stranger := createTestUser(t, db, "auth0|stranger", "Stranger", "stranger@example.com")
	staff := createTestUser(t, db, "auth0|staff1", "Staff One", "staff1@example.com")
	createStaffRecord(t, db, staff.Auth0ID, staff.Email, "staff")

	order, err := services.GetOrderService().CreateOrder(
		services.Actor{ID: client.Auth0ID, Name: client.Name, Email: client.Email},
		models.TierStarter,
		[]services.CharacterSelection{{ID: "char-a", Name: "Alpha"}},
		nil,
	)
	require.NoError(t, err)

	tests := []struct {
		name           string
		auth0ID        string
		expectedStatus int
	}{
		{"Owner can view", client.Auth0ID, http.StatusOK},
		{"Staff can view", staff.Auth0ID, http.StatusOK},
		{"Stranger cannot view", stranger.Auth0ID, http.StatusForbidden},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := setupTestRouter()
			router.GET("/orders/:id",
				mockAuthMiddleware(tt.auth0ID, "mock-token"),
				GetOrder,
			)

			req, _ := http.NewRequest(http.MethodGet, "/orders/"+order.ID, nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
		})
	}
}

func TestUpdateOrderStatusEndpoint(t *testing.T) {
	db, mirror := setupControllerTest(t)
	staff := createTestUser(t, db, "auth0|staff1", "Staff One", "staff1@example.com")
	createStaffRecord(t, db, staff.Auth0ID, staff.Email, "staff")
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	order, err := services.GetOrderService().CreateOrder(
		services.Actor{ID: client.Auth0ID, Name: client.Name, Email: client.Email},
		models.TierPro,
		[]services.CharacterSelection{{ID: "char-a", Name: "Alpha"}},
		nil,
	)
	require.NoError(t, err)
	messageID := *order.DiscordMessageID

	router := setupTestRouter()
	router.PATCH("/orders/:id/status",
		mockAuthMiddleware(staff.Auth0ID, "mock-token"),
		UpdateOrderStatus,
	)

	// A valid edge succeeds and patches the mirrored message
	body, _ := json.Marshal(map[string]string{"status": models.StatusRejected})
	req, _ := http.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mirror.PatchCount(messageID))

	// The order is now terminal, further transitions are invalid
	body, _ = json.Marshal(map[string]string{"status": models.StatusWaiting})
	req, _ = http.NewRequest(http.MethodPatch, "/orders/"+order.ID+"/status", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	errorData := response["error"].(map[string]interface{})
	assert.Equal(t, "INVALID_TRANSITION", errorData["code"])
}

func TestRateOrderEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")
	stranger := createTestUser(t, db, "auth0|stranger", "Stranger", "stranger@example.com")

	order, err := services.GetOrderService().CreateOrder(
		services.Actor{ID: client.Auth0ID, Name: client.Name, Email: client.Email},
		models.TierPro,
		[]services.CharacterSelection{{ID: "char-a", Name: "Alpha"}},
		nil,
	)
	require.NoError(t, err)
	require.NoError(t, db.Model(&models.Order{}).Where("id = ?", order.ID).Update("status", models.StatusDone).Error)

	rate := func(auth0ID string, body map[string]interface{}) *httptest.ResponseRecorder {
		router := setupTestRouter()
		router.POST("/orders/:id/rating",
			mockAuthMiddleware(auth0ID, "mock-token"),
			RateOrder,
		)
		payload, _ := json.Marshal(body)
		req, _ := http.NewRequest(http.MethodPost, "/orders/"+order.ID+"/rating", bytes.NewBuffer(payload))
		req.Header.Set("Content-Type", "application/json")
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// Only the owning client may rate
	w := rate(stranger.Auth0ID, map[string]interface{}{"rating": 5})
	assert.Equal(t, http.StatusForbidden, w.Code)

	// Out-of-range ratings are rejected by binding
	w = rate(client.Auth0ID, map[string]interface{}{"rating": 6})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = rate(client.Auth0ID, map[string]interface{}{"rating": 5, "review": "Great work"})
	assert.Equal(t, http.StatusOK, w.Code)

	// Rating is once only
	w = rate(client.Auth0ID, map[string]interface{}{"rating": 4})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	errorData := response["error"].(map[string]interface{})
	assert.Equal(t, "ALREADY_RATED", errorData["code"])
}

func TestSubmitPaymentProofEndpoint_MissingReceipt(t *testing.T) {
	db, _ := setupControllerTest(t)
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	order, err := services.GetOrderService().CreateOrder(
		services.Actor{ID: client.Auth0ID, Name: client.Name, Email: client.Email},
		models.TierPro,
		[]services.CharacterSelection{{ID: "char-a", Name: "Alpha"}},
		nil,
	)
	require.NoError(t, err)

	router := setupTestRouter()
	router.POST("/orders/:id/payment-proof",
		mockAuthMiddleware(client.Auth0ID, "mock-token"),
		SubmitPaymentProof,
	)

	req, _ := http.NewRequest(http.MethodPost, "/orders/"+order.ID+"/payment-proof", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	errorData := response["error"].(map[string]interface{})
	assert.Equal(t, "MISSING_RECEIPT", errorData["code"])
}

func TestOrderListEndpoints(t *testing.T) {
	db, _ := setupControllerTest(t)
	client := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	for i := 0; i < 2; i++ {
		_, err := services.GetOrderService().CreateOrder(
			services.Actor{ID: client.Auth0ID, Name: client.Name, Email: client.Email},
			models.TierStarter,
			[]services.CharacterSelection{{ID: "char-a", Name: "Alpha"}},
			nil,
		)
		require.NoError(t, err)
	}

	router := setupTestRouter()
	auth := mockAuthMiddleware(client.Auth0ID, "mock-token")
	router.GET("/orders", auth, ListMyOrders)
	router.GET("/orders/queue", auth, GetQueue)
	router.GET("/orders/active", auth, GetActiveOrders)

	for _, path := range []string{"/orders", "/orders/queue", "/orders/active"} {
		req, _ := http.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code, path)

		var response map[string]interface{}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
		assert.True(t, response["success"].(bool))
		assert.Len(t, response["data"].([]interface{}), 2, path)
	}
}
