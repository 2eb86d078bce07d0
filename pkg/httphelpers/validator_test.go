package httphelpers

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type validatorFixture struct {
	Email string `validate:"required,email"`
}

func TestDefaultValidator(t *testing.T) {
	v := newDefaultValidator()

	assert.NoError(t, v.ValidateStruct(&validatorFixture{Email: "a@example.com"}))
	assert.Error(t, v.ValidateStruct(&validatorFixture{Email: "not-an-email"}))
	assert.NoError(t, v.ValidateStruct("not a struct"))
	assert.NotNil(t, v.Engine())
}
