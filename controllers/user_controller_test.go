package controllers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team-gs/gs-orders-api/config"
	"github.com/team-gs/gs-orders-api/models"
	"github.com/team-gs/gs-orders-api/services"
)

// setupMockAuth0Server creates a mock HTTP server that simulates Auth0's
// /userinfo endpoint, keyed by the bearer token
func setupMockAuth0Server(userInfoMap map[string]*services.Auth0UserInfo) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/userinfo" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		authHeader := r.Header.Get("Authorization")
		if !strings.HasPrefix(authHeader, "Bearer ") {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		token := strings.TrimPrefix(authHeader, "Bearer ")

		userInfo, exists := userInfoMap[token]
		if !exists {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(userInfo); err != nil {
			w.WriteHeader(http.StatusInternalServerError)
		}
	}))
}

func TestCreateUserEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)

	auth0Server := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
		"token-client": {
			Sub:     "auth0|newclient",
			Email:   "newclient@example.com",
			Name:    "New Client",
			Picture: "https://cdn.example.com/avatars/newclient.png",
		},
		"token-noemail": {
			Sub:  "auth0|noemail",
			Name: "No Email",
		},
	})
	defer auth0Server.Close()

	cfg := config.GetConfig()
	cfg.Auth0Domain = auth0Server.URL

	createUser := func(auth0ID, token string) *httptest.ResponseRecorder {
		router := setupTestRouter()
		router.POST("/users", mockAuthMiddleware(auth0ID, token), CreateUser)
		req, _ := http.NewRequest(http.MethodPost, "/users", nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	// First creation succeeds with the Auth0 profile data
	w := createUser("auth0|newclient", "token-client")
	assert.Equal(t, http.StatusCreated, w.Code)

	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "New Client", data["name"])
	assert.Equal(t, "newclient@example.com", data["email"])
	assert.Equal(t, "https://cdn.example.com/avatars/newclient.png", data["avatar_url"])

	// Creating the same user again conflicts
	w = createUser("auth0|newclient", "token-client")
	assert.Equal(t, http.StatusConflict, w.Code)

	// Missing email from Auth0 is rejected
	w = createUser("auth0|noemail", "token-noemail")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	// Unknown token fails the userinfo call
	w = createUser("auth0|whoever", "token-unknown")
	assert.Equal(t, http.StatusInternalServerError, w.Code)

	var count int64
	require.NoError(t, db.Model(&models.User{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)
}

func TestCreateUserEndpoint_SyncsLegacyStaffRecord(t *testing.T) {
	db, _ := setupControllerTest(t)

	// A legacy email-keyed staff record exists before the worker first signs in
	require.NoError(t, db.Create(&models.StaffMember{
		ID:            "worker@example.com",
		Email:         "worker@example.com",
		Name:          "Old Name",
		Role:          "staff",
		TotalEarnings: 50,
	}).Error)
	require.NoError(t, services.GetStaffDirectory().Refresh())

	auth0Server := setupMockAuth0Server(map[string]*services.Auth0UserInfo{
		"token-worker": {
			Sub:   "auth0|worker1",
			Email: "worker@example.com",
			Name:  "Worker One",
		},
	})
	defer auth0Server.Close()
	config.GetConfig().Auth0Domain = auth0Server.URL

	router := setupTestRouter()
	router.POST("/users", mockAuthMiddleware("auth0|worker1", "token-worker"), CreateUser)
	req, _ := http.NewRequest(http.MethodPost, "/users", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusCreated, w.Code)

	// The staff record is now keyed by the Auth0 ID with earnings preserved
	directory := services.GetStaffDirectory()
	member, ok := directory.Lookup("auth0|worker1")
	require.True(t, ok)
	assert.Equal(t, "worker@example.com", member.Email)
	assert.Equal(t, "Worker One", member.Name)
	assert.Equal(t, "staff", member.Role)
	assert.Equal(t, float64(50), member.TotalEarnings)

	var count int64
	require.NoError(t, db.Model(&models.StaffMember{}).Where("id = ?", "worker@example.com").Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGetMyProfileEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)
	user := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	router := setupTestRouter()
	router.GET("/users/me", mockAuthMiddleware(user.Auth0ID, "mock-token"), GetMyProfile)

	req, _ := http.NewRequest(http.MethodGet, "/users/me", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "client@example.com", data["email"])

	// Unknown identity has no profile
	router = setupTestRouter()
	router.GET("/users/me", mockAuthMiddleware("auth0|ghost", "mock-token"), GetMyProfile)
	req, _ = http.NewRequest(http.MethodGet, "/users/me", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestUpdateMyProfileEndpoint(t *testing.T) {
	db, _ := setupControllerTest(t)
	user := createTestUser(t, db, "auth0|client123", "Test Client", "client@example.com")

	router := setupTestRouter()
	router.PUT("/users/me", mockAuthMiddleware(user.Auth0ID, "mock-token"), UpdateMyProfile)

	body, _ := json.Marshal(map[string]string{
		"name":       "Renamed Client",
		"avatar_url": "https://cdn.example.com/avatars/new.png",
	})
	req, _ := http.NewRequest(http.MethodPut, "/users/me", bytes.NewBuffer(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	data := response["data"].(map[string]interface{})
	assert.Equal(t, "Renamed Client", data["name"])
	assert.Equal(t, "https://cdn.example.com/avatars/new.png", data["avatar_url"])
	assert.Equal(t, "client@example.com", data["email"])
}
