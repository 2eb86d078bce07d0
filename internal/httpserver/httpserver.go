// Package httpserver registers the broker's HTTP routes and renders the
// relying-party auto-submit form.
package httpserver

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"broker/internal/apiv1"
	"broker/pkg/helpers"
	"broker/pkg/httphelpers"
	"broker/pkg/logger"
	"broker/pkg/model"
	"broker/pkg/trace"
)

// Service owns the gin engine and the HTTP server wrapping it.
type Service struct {
	cfg         *model.Config
	log         *logger.Log
	server      *http.Server
	apiv1       *apiv1.Client
	gin         *gin.Engine
	tracer      *trace.Tracer
	httpHelpers *httphelpers.Client
}

// New wires the broker's routes onto a fresh gin engine.
func New(ctx context.Context, cfg *model.Config, api *apiv1.Client, tracer *trace.Tracer, log *logger.Log) (*Service, error) {
	s := &Service{
		cfg:    cfg,
		log:    log.New("httpserver"),
		apiv1:  api,
		gin:    gin.New(),
		tracer: tracer,
		server: &http.Server{ReadHeaderTimeout: 3 * time.Second},
	}

	var err error
	s.httpHelpers, err = httphelpers.New(ctx, s.tracer, s.cfg, s.log)
	if err != nil {
		return nil, err
	}

	rgRoot, err := s.httpHelpers.Server.Default(ctx, s.server, s.gin, addrFromBaseURL(cfg.BaseURL))
	if err != nil {
		return nil, err
	}

	s.httpHelpers.Server.RegEndpoint(ctx, rgRoot, http.MethodGet, "/", http.StatusOK, s.endpointIndex)
	s.httpHelpers.Server.RegEndpoint(ctx, rgRoot, http.MethodGet, "/.well-known/openid-configuration", http.StatusOK, s.endpointDiscovery)
	s.httpHelpers.Server.RegEndpoint(ctx, rgRoot, http.MethodGet, "/keys.json", http.StatusOK, s.endpointJWKS)

	rgRoot.POST("/auth", func(c *gin.Context) { s.endpointAuth(ctx, c) })
	rgRoot.GET("/confirm", func(c *gin.Context) { s.endpointConfirm(ctx, c) })
	rgRoot.GET("/callback", func(c *gin.Context) { s.endpointCallback(ctx, c) })

	return s, nil
}

// ListenAndServe starts the HTTP server and blocks until it stops.
func (s *Service) ListenAndServe(ctx context.Context) error {
	return s.httpHelpers.Server.ListenAndServe(ctx, s.server)
}

// Close gracefully stops the HTTP server.
func (s *Service) Close(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

func (s *Service) endpointIndex(ctx context.Context, c *gin.Context) (any, error) {
	return s.apiv1.Index(ctx)
}

func (s *Service) endpointDiscovery(ctx context.Context, c *gin.Context) (any, error) {
	return s.apiv1.Discovery(ctx)
}

func (s *Service) endpointJWKS(ctx context.Context, c *gin.Context) (any, error) {
	return s.apiv1.JWKSet(ctx)
}

func (s *Service) endpointAuth(ctx context.Context, c *gin.Context) {
	var req apiv1.AuthRequest
	if err := s.httpHelpers.Binding.Request(ctx, c, &req); err != nil {
		s.renderError(ctx, c, helpers.Wrap(helpers.BadRequest, err))
		return
	}

	result, err := s.apiv1.Auth(ctx, &req)
	if err != nil {
		s.renderError(ctx, c, err)
		return
	}

	if result.RedirectURL != "" {
		c.Redirect(http.StatusFound, result.RedirectURL)
		return
	}
	s.httpHelpers.Rendering.Content(ctx, c, http.StatusOK, result.Body)
}

func (s *Service) endpointConfirm(ctx context.Context, c *gin.Context) {
	sessionID := c.Query("session")
	code := c.Query("code")

	result, err := s.apiv1.Confirm(ctx, sessionID, code)
	if err != nil {
		s.renderError(ctx, c, err)
		return
	}
	s.renderForm(ctx, c, result)
}

func (s *Service) endpointCallback(ctx context.Context, c *gin.Context) {
	state := c.Query("state")
	code := c.Query("code")

	result, err := s.apiv1.Callback(ctx, state, code)
	if err != nil {
		s.renderError(ctx, c, err)
		return
	}
	s.renderForm(ctx, c, result)
}

func (s *Service) renderForm(ctx context.Context, c *gin.Context, result *apiv1.FormResult) {
	if err := s.httpHelpers.Rendering.HTML(ctx, c, http.StatusOK, formTemplate, formData{
		RedirectURI: result.RedirectURI,
		IDToken:     result.JWT,
	}); err != nil {
		s.log.Error(err, "rendering rp form")
	}
}

func (s *Service) renderError(ctx context.Context, c *gin.Context, err error) {
	s.httpHelpers.Rendering.Content(ctx, c, httphelpers.StatusCode(ctx, err), helpers.ErrorResponse{Error: helpers.NewErrorFromError(err)})
}
