package controllers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/team-gs/gs-orders-api/services"
)

func TestListCharactersEndpoint(t *testing.T) {
	services.SetCharacterCatalog(services.NewCharacterCatalog([]services.Character{
		{ID: "char-a", Name: "Alpha", Image: "https://cdn.example.com/a.png"},
		{ID: "char-b", Name: "Beta", Image: "https://cdn.example.com/b.png"},
	}))
	t.Cleanup(func() { services.SetCharacterCatalog(nil) })

	router := setupTestRouter()
	router.GET("/characters", ListCharacters)

	req, _ := http.NewRequest(http.MethodGet, "/characters", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var response map[string]interface{}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &response))
	assert.Len(t, response["data"].([]interface{}), 2)
}

func TestListCharactersEndpoint_CatalogUnavailable(t *testing.T) {
	services.SetCharacterCatalog(nil)

	router := setupTestRouter()
	router.GET("/characters", ListCharacters)

	req, _ := http.NewRequest(http.MethodGet, "/characters", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
