package httphelpers

import (
	"context"
	"html/template"
	"time"

	"github.com/gin-gonic/gin"

	"broker/pkg/logger"
)

type renderingHandler struct {
	client *Client
	log    *logger.Log
}

// Content negotiates between JSON and plain-text rendering for the data
// endpoints (discovery document, JWK set, email-loop/OIDC errors).
func (r *renderingHandler) Content(ctx context.Context, c *gin.Context, code int, data any) {
	ctx, cancel := context.WithTimeout(ctx, 1*time.Second)
	defer cancel()

	_, span := r.client.tracer.Start(ctx, "httphelpers:Content")
	defer span.End()

	negotiated := c.NegotiateFormat(gin.MIMEJSON, gin.MIMEPlain, "*/*")
	switch negotiated {
	case gin.MIMEPlain:
		c.String(code, "%v", data)
	default:
		c.JSON(code, data)
	}
}

// HTML renders a parsed html/template, auto-escaping every substituted
// value, and writes it with the given status code.
func (r *renderingHandler) HTML(ctx context.Context, c *gin.Context, code int, tpl *template.Template, data any) error {
	_, span := r.client.tracer.Start(ctx, "httphelpers:HTML")
	defer span.End()

	c.Status(code)
	c.Header("Content-Type", "text/html; charset=utf-8")
	return tpl.Execute(c.Writer, data)
}
