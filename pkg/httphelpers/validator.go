package httphelpers

import (
	"reflect"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"broker/pkg/logger"
)

type validatorHandler struct {
	client *Client
	log    *logger.Log
}

// New builds the DefaultValidator gin installs as its global struct
// validator.
func (v *validatorHandler) New() *DefaultValidator {
	return newDefaultValidator()
}

// DefaultValidator adapts go-playground/validator to gin's
// binding.StructValidator interface.
type DefaultValidator struct {
	Validate *validator.Validate
}

var _ binding.StructValidator = &DefaultValidator{}

func newDefaultValidator() *DefaultValidator {
	return &DefaultValidator{Validate: validator.New()}
}

// ValidateStruct satisfies binding.StructValidator.
func (v *DefaultValidator) ValidateStruct(obj any) error {
	if kindOfData(obj) == reflect.Struct {
		return v.Validate.Struct(obj)
	}
	return nil
}

// Engine satisfies binding.StructValidator.
func (v *DefaultValidator) Engine() any {
	return v.Validate
}

func kindOfData(data any) reflect.Kind {
	value := reflect.ValueOf(data)
	valueType := value.Kind()
	if valueType == reflect.Ptr {
		valueType = value.Elem().Kind()
	}
	return valueType
}
