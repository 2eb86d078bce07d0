package httphelpers

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"

	"broker/pkg/helpers"
	"broker/pkg/logger"
)

type serverHandler struct {
	client *Client
	log    *logger.Log
}

// ListenAndServe starts the HTTP server.
func (s *serverHandler) ListenAndServe(ctx context.Context, server *http.Server) error {
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		s.log.Error(err, "listen_and_serve")
		return err
	}
	return nil
}

// RegEndpoint registers a handler that returns (response, error); errors are
// rendered through Client.Rendering using the Kind-to-status mapping.
func (s *serverHandler) RegEndpoint(ctx context.Context, rg *gin.RouterGroup, method, path string, defaultStatus int, handler func(context.Context, *gin.Context) (any, error)) {
	rg.Handle(method, path, func(c *gin.Context) {
		spanName := fmt.Sprintf("endpoint %s:%s%s", method, rg.BasePath(), path)
		ctx, span := s.client.tracer.Start(ctx, spanName)
		defer span.End()

		res, err := handler(ctx, c)
		if err != nil {
			s.log.Debug("endpoint error", "path", path, "error", err)
			s.client.Rendering.Content(ctx, c, StatusCode(ctx, err), helpers.ErrorResponse{Error: helpers.NewErrorFromError(err)})
			return
		}
		s.client.Rendering.Content(ctx, c, defaultStatus, res)
	})
}

// SetGinMode puts gin into release mode in production, debug mode otherwise.
func (s *serverHandler) SetGinMode() {
	if s.client.cfg.Production {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
}

// Default installs the standard middleware stack and timeouts and returns
// the root router group.
func (s *serverHandler) Default(ctx context.Context, server *http.Server, engine *gin.Engine, addr string) (*gin.RouterGroup, error) {
	s.SetGinMode()

	var err error
	binding.Validator, err = s.client.Binding.Validator()
	if err != nil {
		return nil, err
	}

	server.Handler = engine
	server.Addr = addr
	server.ReadTimeout = 5 * time.Second
	server.WriteTimeout = 30 * time.Second
	server.IdleTimeout = 90 * time.Second
	server.ReadHeaderTimeout = 2 * time.Second

	engine.Use(s.client.Middleware.RequestID(ctx))
	engine.Use(s.client.Middleware.Duration(ctx))
	engine.Use(s.client.Middleware.Logger(ctx))
	engine.Use(s.client.Middleware.Crash(ctx))
	engine.Use(s.client.Middleware.Gzip(ctx))

	problem404 := helpers.Problem404()
	engine.NoRoute(func(c *gin.Context) { c.JSON(http.StatusNotFound, problem404) })

	return engine.Group("/"), nil
}
