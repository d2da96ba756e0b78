package handler

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/middleware"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/service"
)

// Profiles reads and edits profiles and their roles.
type Profiles interface {
	Get(ctx context.Context, id uint64) (model.Profile, []string, error)
	Update(ctx context.Context, id uint64, in service.ProfileUpdateInput) (model.Profile, error)
	GrantRole(ctx context.Context, id uint64, role string) ([]string, error)
}

// ProfileHandler serves /v1/me and the admin role grant.
type ProfileHandler struct {
	Profiles Profiles
}

func NewProfileHandler(p Profiles) *ProfileHandler { return &ProfileHandler{Profiles: p} }

// Me returns the signed-in profile.
func (h *ProfileHandler) Me(c echo.Context) error {
	id, ok := middleware.ProfileID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, roles, err := h.Profiles.Get(ctx, id)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": p, "roles": roles})
}

// UpdateMe edits name, address and card type of the signed-in profile.
func (h *ProfileHandler) UpdateMe(c echo.Context) error {
	id, ok := middleware.ProfileID(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}
	var req service.ProfileUpdateInput
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	p, err := h.Profiles.Update(ctx, id, req)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"profile": p})
}

type grantRoleReq struct {
	Role string `json:"role"`
}

// GrantRole adds a role to the profile in the path.  Admin only.
func (h *ProfileHandler) GrantRole(c echo.Context) error {
	id, err := pathID(c)
	if err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid profile id"})
	}
	var req grantRoleReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	roles, err := h.Profiles.GrantRole(ctx, id, req.Role)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, echo.Map{"profile_id": id, "roles": roles})
}

func pathID(c echo.Context) (uint64, error) {
	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err == nil && id == 0 {
		err = strconv.ErrRange
	}
	return id, err
}
