package service

import (
	"errors"
	"fmt"
	"time"

	"github.com/iliyamo/ration-connect/internal/model"
)

// Error kinds surfaced to the HTTP layer.  Each maps to exactly one status
// and message in handler.writeError.
var (
	ErrInvalidPhoneFormat = errors.New("invalid phone number format")
	ErrInvalidOTPFormat   = errors.New("invalid otp format")
	ErrInvalidCode        = errors.New("invalid otp code")
	ErrExpired            = errors.New("otp expired")
	ErrTooManyAttempts    = errors.New("too many failed attempts")
	ErrOTPNotVerified     = errors.New("otp not verified")
	ErrAlreadyRegistered  = errors.New("profile already registered")
	ErrProfileNotFound    = errors.New("profile not found")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrInvalidStatus      = errors.New("invalid usage status")
	ErrInvalidDelivery    = errors.New("invalid delivery method")
	ErrInvalidMonth       = errors.New("month must be formatted as YYYY-MM")
	ErrStorage            = errors.New("storage error")
	ErrDispatch           = errors.New("sms dispatch failed")
)

// FieldError reports an invalid registration or profile field.
type FieldError struct {
	Field string
}

func (e *FieldError) Error() string {
	return "invalid field: " + e.Field
}

// QuotaExceededError is returned when a posting would exceed the monthly
// entitlement.
type QuotaExceededError struct {
	Remaining model.Grams
}

func (e *QuotaExceededError) Error() string {
	return fmt.Sprintf("monthly quota exceeded: %.3f kg remaining", e.Remaining.Kg())
}

// RateLimitError is returned when OTP sends to a phone are throttled.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("too many otp requests, retry in %s", e.RetryAfter.Round(time.Second))
}

func storageErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", ErrStorage, op, err)
}
