package response

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
)

func fixedNow(t *testing.T) {
	t.Helper()
	prev := now
	now = func() time.Time { return time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC) }
	t.Cleanup(func() { now = prev })
}

func decode(t *testing.T, rec *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var body map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestOKEnvelope(t *testing.T) {
	fixedNow(t)
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), rec)

	require.NoError(t, OK(c, "done", map[string]string{"email": "a@x.com"}))

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decode(t, rec)
	assert.EqualValues(t, 200, body["statusCode"])
	assert.Equal(t, "done", body["message"])
	assert.Equal(t, "2025-03-01T10:00:00Z", body["timestamp"])
	assert.Equal(t, "a@x.com", body["data"].(map[string]any)["email"])
}

func TestCreatedEnvelope(t *testing.T) {
	e := echo.New()
	rec := httptest.NewRecorder()
	c := e.NewContext(httptest.NewRequest(http.MethodPost, "/", nil), rec)

	require.NoError(t, Created(c, "created", nil))
	assert.Equal(t, http.StatusCreated, rec.Code)
	_, hasData := decode(t, rec)["data"]
	assert.False(t, hasData)
}

func TestErrorHandler(t *testing.T) {
	tests := []struct {
		name    string
		err     error
		status  int
		message string
	}{
		{"app error", apperror.Conflict("Email already exists"), http.StatusConflict, "Email already exists"},
		{"wrapped app error", fmt.Errorf("x: %w", apperror.NotFound("User not found")), http.StatusNotFound, "User not found"},
		{"echo error", echo.NewHTTPError(http.StatusMethodNotAllowed, "nope"), http.StatusMethodNotAllowed, "nope"},
		{"echo 404", echo.ErrNotFound, http.StatusNotFound, "Not Found"},
		{"foreign error", errors.New("sql: connection refused"), http.StatusInternalServerError, "Internal server error"},
		{"internal app error hides cause", apperror.Internal("Could not issue tokens", errors.New("secret")), http.StatusInternalServerError, "Could not issue tokens"},
	}
	h := ErrorHandler(zap.NewNop())
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := echo.New()
			rec := httptest.NewRecorder()
			c := e.NewContext(httptest.NewRequest(http.MethodGet, "/x", nil), rec)

			h(tt.err, c)

			assert.Equal(t, tt.status, rec.Code)
			body := decode(t, rec)
			assert.EqualValues(t, tt.status, body["statusCode"])
			assert.Equal(t, tt.message, body["message"])
			_, hasData := body["data"]
			assert.False(t, hasData)
			assert.NotContains(t, rec.Body.String(), "secret")
		})
	}
}
