// Package httphelpers bundles the gin-facing concerns shared by the
// broker's HTTP surface: request binding, content negotiation, standard
// middleware, and server bootstrap.
package httphelpers

import (
	"context"

	"broker/pkg/logger"
	"broker/pkg/model"
	"broker/pkg/trace"
)

// Client is the shared handle passed into gin handlers.
type Client struct {
	tracer *trace.Tracer
	log    *logger.Log
	cfg    *model.Config

	Binding    *bindingHandler
	Middleware *middlewareHandler
	Rendering  *renderingHandler
	Server     *serverHandler
	Validator  *validatorHandler
}

// New wires up the httphelpers client.
func New(ctx context.Context, tracer *trace.Tracer, cfg *model.Config, log *logger.Log) (*Client, error) {
	c := &Client{tracer: tracer, log: log, cfg: cfg}

	c.Binding = &bindingHandler{client: c, log: log}
	c.Middleware = &middlewareHandler{client: c, log: log}
	c.Rendering = &renderingHandler{client: c, log: log}
	c.Server = &serverHandler{client: c, log: log}
	c.Validator = &validatorHandler{client: c, log: log}

	return c, nil
}
