package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ignatzorin/smartque-backend/internal/config"
	"github.com/ignatzorin/smartque-backend/internal/http/handlers"
	"github.com/ignatzorin/smartque-backend/internal/models"
	"github.com/ignatzorin/smartque-backend/internal/service"
)

func newTestRouter(t *testing.T) (*gin.Engine, *service.TokenManager, sqlmock.Sqlmock) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mockDB, sqlMock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	t.Cleanup(func() { mockDB.Close() })

	tokens := service.NewTokenManager("router-test-secret-router-test-secret", time.Hour)
	cfg := &config.Config{
		Env:             "test",
		AllowedOrigins:  []string{"http://localhost:8081"},
		RateLimitLimit:  100,
		RateLimitPeriod: time.Minute,
	}

	r := SetupRouter(cfg, Handlers{
		OTP:          handlers.NewOTPHandler(nil),
		Auth:         handlers.NewAuthHandler(nil),
		Appointments: handlers.NewAppointmentHandler(nil),
		Health:       handlers.NewHealthHandler(sqlx.NewDb(mockDB, "postgres")),
		WS:           handlers.NewWSHandler(nil, tokens, cfg.AllowedOrigins),
	}, tokens)

	return r, tokens, sqlMock
}

func serve(r http.Handler, method, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestRouter_Health(t *testing.T) {
	r, _, sqlMock := newTestRouter(t)
	sqlMock.ExpectPing()

	w := serve(r, http.MethodGet, "/api/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRouter_ProtectedRoutesRequireToken(t *testing.T) {
	r, _, _ := newTestRouter(t)
	id := uuid.NewString()

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/api/auth/me"},
		{http.MethodGet, "/api/appointments/next-queue?department=A&date=2024-01-01"},
		{http.MethodPost, "/api/appointments/book"},
		{http.MethodGet, "/api/appointments/user/" + id},
		{http.MethodPost, "/api/appointments/cancel/" + id},
		{http.MethodPost, "/api/appointments/reschedule/" + id},
		{http.MethodPost, "/api/appointments/complete/" + id},
	}

	for _, rt := range routes {
		w := serve(r, rt.method, rt.path, "")
		assert.Equal(t, http.StatusUnauthorized, w.Code, rt.path)
	}
}

func TestRouter_CompleteRequiresAdmin(t *testing.T) {
	r, tokens, _ := newTestRouter(t)
	token, err := tokens.Issue(&models.User{ID: uuid.New(), Role: models.RoleUser})
	require.NoError(t, err)

	w := serve(r, http.MethodPost, "/api/appointments/complete/"+uuid.NewString(), token)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRouter_InvalidPathUUID(t *testing.T) {
	r, tokens, _ := newTestRouter(t)
	token, err := tokens.Issue(&models.User{ID: uuid.New(), Role: models.RoleUser})
	require.NoError(t, err)

	w := serve(r, http.MethodPost, "/api/appointments/cancel/not-a-uuid", token)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestRouter_NoRoute(t *testing.T) {
	r, _, _ := newTestRouter(t)
	w := serve(r, http.MethodGet, "/api/unknown", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), `"success":false`)
}
