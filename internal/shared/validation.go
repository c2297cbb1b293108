package shared

import (
	"reflect"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/keystone-id/keystone/internal/platform/httpx"
)

// NewValidator builds the struct validator with the password strength rule
// registered. Violations are reported under the field's JSON name.
func NewValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("strongpassword", validateStrongPassword)
	return v
}

// validateStrongPassword requires at least one uppercase letter and one
// digit. Length bounds are handled by min/max tags.
func validateStrongPassword(fl validator.FieldLevel) bool {
	var hasUpper, hasDigit bool
	for _, r := range fl.Field().String() {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	return hasUpper && hasDigit
}

// FieldErrors converts validator output into the envelope's per-field detail,
// enumerating every violation rather than stopping at the first.
func FieldErrors(err error) []httpx.FieldError {
	verrs, ok := err.(validator.ValidationErrors)
	if !ok {
		return []httpx.FieldError{{Field: "body", Message: err.Error()}}
	}
	details := make([]httpx.FieldError, 0, len(verrs))
	for _, fe := range verrs {
		details = append(details, httpx.FieldError{
			Field:   fe.Field(),
			Message: messageForTag(fe),
		})
	}
	return details
}

func messageForTag(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return fe.Field() + " is required"
	case "email":
		return "Invalid email format"
	case "min":
		return fe.Field() + " must be at least " + fe.Param() + " characters"
	case "max":
		return fe.Field() + " is too long"
	case "oneof":
		return fe.Field() + " must be one of: " + fe.Param()
	case "strongpassword":
		return "Password must contain at least 1 uppercase letter and 1 number"
	default:
		return fe.Field() + " is invalid"
	}
}
