// Package validator provides validation infrastructure for the application.
// This is part of the platform layer and contains no business logic.
package validator

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

var (
	callsignPattern   = regexp.MustCompile(`^[A-Z0-9]{2,10}$`)
	tailNumberPattern = regexp.MustCompile(`^[A-Z0-9-]{2,10}$`)
	icaoPattern       = regexp.MustCompile(`^[A-Z]{4}$`)
)

// Validator wraps the go-playground validator for structured validation.
type Validator struct {
	v *validator.Validate
}

// New creates a new Validator instance with the aviation tags registered:
// callsign, tailnumber and icao.
func New() *Validator {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("callsign", matchUpper(callsignPattern))
	_ = v.RegisterValidation("tailnumber", matchUpper(tailNumberPattern))
	_ = v.RegisterValidation("icao", matchUpper(icaoPattern))
	return &Validator{v: v}
}

// Struct validates a struct based on validation tags.
func (val *Validator) Struct(s any) error {
	return val.v.Struct(s)
}

// Var validates a single variable against a tag.
func (val *Validator) Var(field any, tag string) error {
	return val.v.Var(field, tag)
}

// RegisterValidation registers a custom validation function.
func (val *Validator) RegisterValidation(tag string, fn validator.Func) error {
	return val.v.RegisterValidation(tag, fn)
}

// FieldErrors flattens validation errors into field -> tag pairs for API responses.
func FieldErrors(err error) map[string]string {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return nil
	}
	out := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		out[fe.Field()] = fe.Tag()
	}
	return out
}

func matchUpper(pattern *regexp.Regexp) validator.Func {
	return func(fl validator.FieldLevel) bool {
		value := fl.Field().String()
		if value == "" {
			return true
		}
		return pattern.MatchString(strings.ToUpper(value))
	}
}
