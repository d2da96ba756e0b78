package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/service"
)

// Registrar creates profiles behind a verified OTP.
type Registrar interface {
	Register(ctx context.Context, in service.RegisterInput) (service.RegisterResult, error)
}

// RegistrationHandler serves /register-profile.
type RegistrationHandler struct {
	Reg Registrar
}

func NewRegistrationHandler(r Registrar) *RegistrationHandler { return &RegistrationHandler{Reg: r} }

// RegisterProfile creates the caller's profile.
func (h *RegistrationHandler) RegisterProfile(c echo.Context) error {
	var req service.RegisterInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.PhoneNumber = strings.TrimSpace(req.PhoneNumber)

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	res, err := h.Reg.Register(ctx, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"profile": res.Profile,
		"roles":   res.Roles,
		"session": toSession(&res.Session),
	})
}
