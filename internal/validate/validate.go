// Package validate wraps go-playground/validator with JSON field names and
// the phone and OTP formats used across the API.
package validate

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
)

var (
	phoneRe = regexp.MustCompile(`^[6-9]\d{9}$`)
	otpRe   = regexp.MustCompile(`^\d{6}$`)
)

// Phone reports whether s is a 10 digit mobile number starting with 6-9.
func Phone(s string) bool { return phoneRe.MatchString(s) }

// OTP reports whether s is exactly six digits.
func OTP(s string) bool { return otpRe.MatchString(s) }

// FieldError names the first field that failed validation.
type FieldError struct {
	Field string // JSON name of the field
	Tag   string // failing rule, e.g. "min" or "oneof"
	Param string // rule parameter, e.g. "2"
}

func (e *FieldError) Error() string {
	if e.Param != "" {
		return fmt.Sprintf("%s %s=%s", e.Field, e.Tag, e.Param)
	}
	return fmt.Sprintf("%s %s", e.Field, e.Tag)
}

var (
	once     sync.Once
	instance *validator.Validate
)

func get() *validator.Validate {
	once.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
			if name == "-" {
				return ""
			}
			return name
		})
		_ = v.RegisterValidation("phone", func(fl validator.FieldLevel) bool {
			return Phone(fl.Field().String())
		})
		_ = v.RegisterValidation("otp", func(fl validator.FieldLevel) bool {
			return OTP(fl.Field().String())
		})
		instance = v
	})
	return instance
}

// Struct validates s and returns a *FieldError for the first failing
// field in declaration order.
func Struct(s interface{}) error {
	if s == nil {
		return errors.New("is nil")
	}
	if !isStruct(s) {
		return errors.New("not a struct")
	}
	err := get().Struct(s)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	var invalidValidationError *validator.InvalidValidationError
	switch {
	case errors.As(err, &validationErrors):
		fe := validationErrors[0]
		return &FieldError{Field: fe.Field(), Tag: fe.Tag(), Param: fe.Param()}
	case errors.As(err, &invalidValidationError):
		return fmt.Errorf("invalid validation error: %w", err)
	default:
		return fmt.Errorf("unknown validation error: %w", err)
	}
}

func isStruct(s interface{}) bool {
	r := reflect.TypeOf(s)
	if r.Kind() == reflect.Ptr {
		r = r.Elem()
	}
	return r.Kind() == reflect.Struct
}
