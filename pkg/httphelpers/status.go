package httphelpers

import (
	"context"
	"net/http"

	"broker/pkg/helpers"
)

// StatusCode maps a handler error onto the HTTP status code it should
// render as, per the broker's tagged Error kind.
func StatusCode(ctx context.Context, err error) int {
	if err == nil {
		return http.StatusOK
	}
	return helpers.StatusCode(err)
}
