// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"strings"

	"plumbing_backend/platform/phone"

	"github.com/go-playground/validator/v10"
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator with the project's custom tags registered:
//
//	usphone  - normalizes to exactly 10 digits
//	usstate  - two-letter state abbreviation
func New() *Validator {
	v := validator.New()
	_ = v.RegisterValidation("usphone", func(fl validator.FieldLevel) bool {
		return phone.IsTenDigit(fl.Field().String())
	})
	_ = v.RegisterValidation("usstate", func(fl validator.FieldLevel) bool {
		s := strings.TrimSpace(fl.Field().String())
		if len(s) != 2 {
			return false
		}
		for _, r := range s {
			if (r < 'A' || r > 'Z') && (r < 'a' || r > 'z') {
				return false
			}
		}
		return true
	})
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s interface{}) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field interface{}, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}
