package httphelpers

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"

	"broker/pkg/helpers"
)

func TestStatusCode(t *testing.T) {
	assert.Equal(t, http.StatusOK, StatusCode(context.Background(), nil))
	assert.Equal(t, http.StatusNotFound, StatusCode(context.Background(), helpers.New(helpers.NotFound)))
	assert.Equal(t, http.StatusBadRequest, StatusCode(context.Background(), helpers.New(helpers.Mismatch)))
	assert.Equal(t, http.StatusInternalServerError, StatusCode(context.Background(), helpers.New(helpers.InternalError)))
}
