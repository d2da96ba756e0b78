package handler

import (
	"errors"
	"math"
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/service"
)

// writeError maps a service error to its status and message.  Unknown
// errors become a 500 without details.
func writeError(c echo.Context, err error) error {
	var (
		fe *service.FieldError
		qe *service.QuotaExceededError
		rl *service.RateLimitError
	)
	switch {
	case errors.As(err, &fe):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid field: " + fe.Field, "field": fe.Field})
	case errors.As(err, &qe):
		return c.JSON(http.StatusConflict, echo.Map{"error": "monthly quota exceeded", "remaining_kg": qe.Remaining.Kg()})
	case errors.As(err, &rl):
		secs := int(math.Ceil(rl.RetryAfter.Seconds()))
		c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many otp requests", "retry_after": secs})
	case errors.Is(err, service.ErrInvalidPhoneFormat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "phone number must be 10 digits starting with 6-9"})
	case errors.Is(err, service.ErrInvalidOTPFormat):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "otp must be 6 digits"})
	case errors.Is(err, service.ErrInvalidCode):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid otp"})
	case errors.Is(err, service.ErrExpired):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "otp expired, request a new one"})
	case errors.Is(err, service.ErrTooManyAttempts):
		return c.JSON(http.StatusTooManyRequests, echo.Map{"error": "too many failed attempts, request a new otp"})
	case errors.Is(err, service.ErrOTPNotVerified):
		return c.JSON(http.StatusForbidden, echo.Map{"error": "phone number not verified"})
	case errors.Is(err, service.ErrAlreadyRegistered):
		return c.JSON(http.StatusConflict, echo.Map{"error": "profile already registered"})
	case errors.Is(err, service.ErrProfileNotFound):
		return c.JSON(http.StatusNotFound, echo.Map{"error": "profile not found"})
	case errors.Is(err, service.ErrInvalidQuantity):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "quantity_kg must be greater than zero"})
	case errors.Is(err, service.ErrInvalidStatus):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid usage status"})
	case errors.Is(err, service.ErrInvalidDelivery):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid delivery_method"})
	case errors.Is(err, service.ErrInvalidMonth):
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "month must be formatted as YYYY-MM"})
	case errors.Is(err, service.ErrDispatch):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "failed to send otp", "details": "sms gateway unavailable"})
	case errors.Is(err, service.ErrStorage):
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "storage unavailable"})
	}
	return c.JSON(http.StatusInternalServerError, echo.Map{"error": "internal error"})
}
