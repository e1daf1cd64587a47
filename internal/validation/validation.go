package validation

import (
	"github.com/go-playground/validator/v10"

	"github.com/korawit-s/thriftmarket/internal/apperr"
)

// Validator adapts go-playground/validator to echo's Validator interface so
// handlers can call c.Validate(&req) after binding.
type Validator struct {
	validate *validator.Validate
}

func New() *Validator {
	return &Validator{validate: validator.New()}
}

func (v *Validator) Validate(i interface{}) error {
	if err := v.validate.Struct(i); err != nil {
		return apperr.E(apperr.ErrValidation, "%v", err)
	}
	return nil
}
