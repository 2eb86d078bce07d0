package httphelpers

import (
	"context"
	"time"

	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/lithammer/shortuuid/v4"

	"broker/pkg/helpers"
	"broker/pkg/logger"
)

type middlewareHandler struct {
	client *Client
	log    *logger.Log
}

// Duration stamps the request's handling time into the gin context.
func (m *middlewareHandler) Duration(ctx context.Context) gin.HandlerFunc {
	_, span := m.client.tracer.Start(ctx, "httphelpers:middleware:Duration")
	defer span.End()

	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		c.Set("duration", time.Since(start))
	}
}

// RequestID stamps a unique request id into the gin context and response
// headers.
func (m *middlewareHandler) RequestID(ctx context.Context) gin.HandlerFunc {
	_, span := m.client.tracer.Start(ctx, "httphelpers:middleware:RequestID")
	defer span.End()

	return func(c *gin.Context) {
		id := shortuuid.New()
		c.Set("req_id", id)
		c.Header("X-Request-Id", id)
		c.Next()
	}
}

// Logger logs one structured line per request.
func (m *middlewareHandler) Logger(ctx context.Context) gin.HandlerFunc {
	_, span := m.client.tracer.Start(ctx, "httphelpers:middleware:Logger")
	defer span.End()

	log := m.log.New("http")
	return func(c *gin.Context) {
		c.Next()
		log.Info("request",
			"status", c.Writer.Status(),
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
			"req_id", c.GetString("req_id"))
	}
}

// Crash recovers from panics in downstream handlers, logging them and
// rendering a 500 instead of tearing down the server.
func (m *middlewareHandler) Crash(ctx context.Context) gin.HandlerFunc {
	ctx, span := m.client.tracer.Start(ctx, "httphelpers:middleware:Crash")
	defer span.End()

	log := m.log.New("http")
	return func(c *gin.Context) {
		defer func() {
			if r := recover(); r != nil {
				log.Trace("crash", "error", r, "path", c.Request.URL.Path, "method", c.Request.Method)
				m.client.Rendering.Content(ctx, c, 500, helpers.ErrorResponse{Error: helpers.New(helpers.InternalError)})
			}
		}()
		c.Next()
	}
}

// Gzip compresses responses above gin's default threshold.
func (m *middlewareHandler) Gzip(ctx context.Context) gin.HandlerFunc {
	return gzip.Gzip(gzip.DefaultCompression)
}
