package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/service"
)

// OTPFlow is the OTP issue/verify state machine.
type OTPFlow interface {
	Issue(ctx context.Context, phone string) (service.IssueResult, error)
	Verify(ctx context.Context, phone, code string) (service.VerifyResult, error)
}

// OTPHandler serves /send-otp and /verify-otp.
type OTPHandler struct {
	OTP OTPFlow
}

func NewOTPHandler(otp OTPFlow) *OTPHandler { return &OTPHandler{OTP: otp} }

type sendOTPReq struct {
	PhoneNumber string `json:"phone_number"`
}

type verifyOTPReq struct {
	PhoneNumber string `json:"phone_number"`
	OTPCode     string `json:"otp_code"`
}

type verifyOTPResp struct {
	Success      bool           `json:"success"`
	IsRegistered bool           `json:"is_registered"`
	Profile      *model.Profile `json:"profile"`
	Roles        []string       `json:"roles,omitempty"`
	Session      *sessionPart   `json:"session,omitempty"`
}

// SendOTP issues a code.  The response never says whether the phone is
// registered.
func (h *OTPHandler) SendOTP(c echo.Context) error {
	var req sendOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	res, err := h.OTP.Issue(ctx, strings.TrimSpace(req.PhoneNumber))
	if err != nil {
		if errors.Is(err, service.ErrDispatch) && res.DebugCode != "" {
			return c.JSON(http.StatusInternalServerError, echo.Map{
				"error":    "failed to send otp",
				"details":  "sms gateway unavailable",
				"otp_code": res.DebugCode,
			})
		}
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"success": true, "expires_at": res.ExpiresAt})
}

// VerifyOTP checks a code and reports registration status.
func (h *OTPHandler) VerifyOTP(c echo.Context) error {
	var req verifyOTPReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.OTP.Verify(ctx, strings.TrimSpace(req.PhoneNumber), strings.TrimSpace(req.OTPCode))
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, verifyOTPResp{
		Success:      true,
		IsRegistered: res.IsRegistered,
		Profile:      res.Profile,
		Roles:        res.Roles,
		Session:      toSession(res.Session),
	})
}
