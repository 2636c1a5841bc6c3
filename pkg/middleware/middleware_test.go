package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func corsRouter(origins []string) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(CORS(origins))
	router.GET("/api/v1/alerts", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router
}

func preflight(router *gin.Engine, origin string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/alerts", nil)
	req.Header.Set("Origin", origin)
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestCORS_AnyOrigin(t *testing.T) {
	w := preflight(corsRouter(nil), "http://pharmacy.local")

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "*", w.Header().Get("Access-Control-Allow-Origin"))
}

func TestCORS_RestrictedOrigins(t *testing.T) {
	router := corsRouter([]string{"http://pharmacy.local"})

	w := preflight(router, "http://pharmacy.local")
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://pharmacy.local", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))

	w = preflight(router, "http://elsewhere.example")
	assert.Equal(t, http.StatusForbidden, w.Code)
}
