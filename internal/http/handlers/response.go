// Package handlers provides the Gin handlers of the handle registry.
//
// Every failure is answered with ErrorResponse and a stable code from
// errors.go. Successful resolutions are plain text (the well-known DID
// document); everything else is JSON.
//
//	HTTP/1.1 404 Not Found
//	{"request_id":"123e4567-e89b-12d3-a456-426614174000","code":"handle_not_found","message":"handle not found"}
package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/tbourn/atproto-handles/internal/http/middleware"
)

// ErrorResponse is the standard error envelope returned by all endpoints.
type ErrorResponse struct {
	// Echo of X-Request-ID, for correlating client reports with server logs
	RequestID string `json:"request_id,omitempty" example:"123e4567-e89b-12d3-a456-426614174000"`
	// Stable, machine-readable code (see errors.go constants)
	Code string `json:"code" example:"not_found"`
	// Human-readable message, never carries internal detail
	Message string `json:"message" example:"resource not found"`
}

// fail aborts the request with an ErrorResponse. The code is recorded on the
// request span; 5xx responses also mark the span as failed and are logged
// with the request-scoped logger.
func fail(c *gin.Context, status int, code, msg string) {
	span := trace.SpanFromContext(c.Request.Context())
	span.SetAttributes(attribute.String("error.code", code))

	if status >= http.StatusInternalServerError {
		span.SetStatus(codes.Error, code)
		middleware.LoggerFrom(c).Error().
			Int("status", status).
			Str("code", code).
			Str("message", msg).
			Msg("api error")
	}

	c.AbortWithStatusJSON(status, ErrorResponse{
		RequestID: c.Writer.Header().Get("X-Request-ID"),
		Code:      code,
		Message:   msg,
	})
}

// Fail is the exported variant of fail, used by the router fallbacks.
func Fail(c *gin.Context, status int, code, msg string) { fail(c, status, code, msg) }

// ok writes body as JSON.
func ok(c *gin.Context, status int, body any) {
	c.JSON(status, body)
}

// text writes body as text/plain.
func text(c *gin.Context, status int, body string) {
	c.Data(status, "text/plain; charset=utf-8", []byte(body))
}
