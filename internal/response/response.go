// Package response writes the JSON envelope every endpoint returns:
// {statusCode, message, data, timestamp}.  Errors use the same shape with
// data omitted.
package response

import (
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/iliyamo/identity-service/internal/apperror"
)

// Envelope is the response body shared by success and error replies.
type Envelope struct {
	StatusCode int    `json:"statusCode"`
	Message    string `json:"message"`
	Data       any    `json:"data,omitempty"`
	Timestamp  string `json:"timestamp"`
}

var now = func() time.Time { return time.Now().UTC() }

func envelope(status int, msg string, data any) Envelope {
	return Envelope{StatusCode: status, Message: msg, Data: data, Timestamp: now().Format(time.RFC3339)}
}

// OK writes a 200 envelope.
func OK(c echo.Context, msg string, data any) error {
	return c.JSON(http.StatusOK, envelope(http.StatusOK, msg, data))
}

// Created writes a 201 envelope.
func Created(c echo.Context, msg string, data any) error {
	return c.JSON(http.StatusCreated, envelope(http.StatusCreated, msg, data))
}

// Error writes an error envelope without data.
func Error(c echo.Context, status int, msg string) error {
	return c.JSON(status, envelope(status, msg, nil))
}

// ErrorHandler returns an echo.HTTPErrorHandler that is the single place
// where errors become responses.  Domain errors keep their message; foreign
// errors are logged and reported as a generic 500.
func ErrorHandler(log *zap.Logger) echo.HTTPErrorHandler {
	return func(err error, c echo.Context) {
		if c.Response().Committed {
			return
		}
		status, msg := classify(err)
		fields := []zap.Field{
			zap.String("method", c.Request().Method),
			zap.String("path", c.Request().URL.Path),
			zap.Int("status", status),
			zap.Error(err),
		}
		switch {
		case status >= http.StatusInternalServerError:
			log.Error("request failed", fields...)
		case status == http.StatusTooManyRequests || status == http.StatusUnauthorized || status == http.StatusForbidden:
			log.Debug("request rejected", fields...)
		default:
			log.Info("request error", fields...)
		}
		if c.Request().Method == http.MethodHead {
			_ = c.NoContent(status)
			return
		}
		_ = Error(c, status, msg)
	}
}

func classify(err error) (int, string) {
	if ae, ok := apperror.As(err); ok {
		return ae.HTTPStatus, ae.Message
	}
	var he *echo.HTTPError
	if errors.As(err, &he) {
		msg := http.StatusText(he.Code)
		if s, ok := he.Message.(string); ok && s != "" && he.Code < http.StatusInternalServerError {
			msg = s
		}
		return he.Code, msg
	}
	return http.StatusInternalServerError, "Internal server error"
}
