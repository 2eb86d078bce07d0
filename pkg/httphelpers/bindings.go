package httphelpers

import (
	"context"
	"encoding/json"

	"github.com/gin-gonic/gin"

	"broker/pkg/logger"
)

type bindingHandler struct {
	client *Client
	log    *logger.Log
}

// JSON binds the request body as JSON without relying on gin's struct-tag
// based binder.
func (b *bindingHandler) JSON(ctx context.Context, c *gin.Context, v any) error {
	_, span := b.client.tracer.Start(ctx, "httphelpers:bindJSON")
	defer span.End()

	return json.NewDecoder(c.Request.Body).Decode(v)
}

// Request binds query and form parameters onto v using gin's own binder.
func (b *bindingHandler) Request(ctx context.Context, c *gin.Context, v any) error {
	_, span := b.client.tracer.Start(ctx, "httphelpers:bindRequest")
	defer span.End()

	return c.ShouldBind(v)
}

// Validator returns the binding.StructValidator used by gin for all struct
// tag validation.
func (b *bindingHandler) Validator() (*DefaultValidator, error) {
	return b.client.Validator.New(), nil
}
