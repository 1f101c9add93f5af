// Package middleware holds shared gin middleware.
package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	traceIDHeader   = "X-Trace-Id"
	requestIDHeader = "X-Request-Id"

	traceIDContextKey   = "trace_id"
	requestIDContextKey = "request_id"
)

// TraceContext ensures every request carries a trace id and request id, in
// the request context and the response headers. The logger picks both up
// from the context.
func TraceContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := strings.TrimSpace(c.GetHeader(traceIDHeader))
		if traceID == "" {
			traceID = uuid.NewString()
		}
		requestID := strings.TrimSpace(c.GetHeader(requestIDHeader))
		if requestID == "" {
			requestID = uuid.NewString()
		}

		ctx := context.WithValue(c.Request.Context(), traceIDContextKey, traceID) //nolint:staticcheck
		ctx = context.WithValue(ctx, requestIDContextKey, requestID)              //nolint:staticcheck
		c.Request = c.Request.WithContext(ctx)

		c.Set(traceIDContextKey, traceID)
		c.Set(requestIDContextKey, requestID)
		c.Writer.Header().Set(traceIDHeader, traceID)
		c.Writer.Header().Set(requestIDHeader, requestID)

		c.Next()
	}
}
