package helpers

import (
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStatusCode(t *testing.T) {
	cases := []struct {
		kind Kind
		want int
	}{
		{BadRequest, http.StatusBadRequest},
		{Mismatch, http.StatusBadRequest},
		{ProviderMismatch, http.StatusBadRequest},
		{InvalidIdToken, http.StatusBadRequest},
		{NotFound, http.StatusNotFound},
		{UpstreamFailure, http.StatusBadGateway},
		{EmailSendFailure, http.StatusInternalServerError},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, StatusCode(New(c.kind)), c.kind)
	}

	assert.Equal(t, http.StatusInternalServerError, StatusCode(errors.New("plain")))
}

func TestWrapErrorString(t *testing.T) {
	cause := errors.New("boom")
	wrapped := Wrap(UpstreamFailure, cause)
	assert.Equal(t, "UpstreamFailure: boom", wrapped.Error())
}
