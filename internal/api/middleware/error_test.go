package middleware

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/authware/rbac-core/pkg/logger"
)

func TestNotFoundHandlerEnvelope(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.NoRoute(NotFoundHandler())

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/nowhere", nil))
	require.Equal(t, http.StatusNotFound, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Not Found", env.Error)
	assert.Equal(t, http.StatusNotFound, env.StatusCode)
	assert.Equal(t, "/nowhere", env.Path)
}

func TestRecoveryProductionHidesDetails(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(logger.NewNop(), false))
	router.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Internal Server Error", env.Error)
	assert.Nil(t, env.Exception)
	assert.NotContains(t, env.Detail, "kaput")
}

func TestRecoveryDebugIncludesException(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(Recovery(logger.NewNop(), true))
	router.GET("/boom", func(c *gin.Context) { panic("kaput") })

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/boom", nil))
	require.Equal(t, http.StatusInternalServerError, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	require.NotNil(t, env.Exception)
	assert.Equal(t, "kaput", env.Exception.Message)
	assert.NotEmpty(t, env.Exception.Stack)
}

func TestErrorHandlerTranslatesHandlerErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.Use(ErrorHandler(logger.NewNop(), false))
	router.GET("/bad", func(c *gin.Context) {
		c.Status(http.StatusBadRequest)
		_ = c.Error(errors.New("name is required"))
	})

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/bad", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	var env Envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	assert.Equal(t, "Bad Request", env.Error)
	assert.Equal(t, "name is required", env.Detail)
	assert.Equal(t, "/bad", env.Path)
}
