// Package validation configures go-playground/validator for request payloads and
// converts its failures into API validation errors.
package validation

import (
	"errors"
	"reflect"
	"strings"
	"unicode"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

const (
	TagPasswordStrength = "password_strength"
	TagScope            = "scope"
)

// New returns a validator with the custom tags registered and JSON field names reported.
func New() *validator.Validate {
	v := validator.New()
	_ = Register(v)
	return v
}

// Register installs the custom tags on v.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(jsonFieldName)
	if err := v.RegisterValidation(TagPasswordStrength, passwordStrength); err != nil {
		return err
	}
	return v.RegisterValidation(TagScope, knownScope)
}

// RegisterGin installs the custom tags on gin's binding validator so `binding:` tags can use them.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("unexpected gin validator engine")
	}
	return Register(v)
}

// PasswordStrong reports whether password mixes digits, upper and lower case letters.
func PasswordStrong(password string) bool {
	var digit, upper, lower bool
	for _, r := range password {
		switch {
		case unicode.IsDigit(r):
			digit = true
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		}
	}
	return digit && upper && lower
}

func passwordStrength(fl validator.FieldLevel) bool {
	return PasswordStrong(fl.Field().String())
}

func knownScope(fl validator.FieldLevel) bool {
	return models.IsKnownScope(fl.Field().String())
}

func jsonFieldName(field reflect.StructField) string {
	name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
	if name == "-" || name == "" {
		return field.Name
	}
	return name
}

// Error converts a validator failure into a 422 error naming the first offending field and
// listing every failed field under details.errors. Other errors become a generic validation error.
func Error(err error, message string) *appErrors.Error {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		e := appErrors.Validation("", message, nil)
		e.Err = err
		return e
	}

	fields := make(map[string]string, len(verrs))
	for _, fe := range verrs {
		fields[fe.Field()] = describe(fe)
	}

	e := appErrors.Validation(verrs[0].Field(), message, map[string]interface{}{"errors": fields})
	e.Err = err
	return e
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "email":
		return "must be a valid email address"
	case "uuid":
		return "must be a valid UUID"
	case "min":
		return "must be at least " + fe.Param() + " characters"
	case "max":
		return "must be at most " + fe.Param() + " characters"
	case "oneof":
		return "must be one of: " + fe.Param()
	case TagPasswordStrength:
		return "must contain at least one digit, one uppercase and one lowercase letter"
	case TagScope:
		return "unknown scope"
	default:
		return "failed " + fe.Tag() + " validation"
	}
}
