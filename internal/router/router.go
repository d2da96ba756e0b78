package router // package router registers the HTTP routes of the API

import (
	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/handler"
	"github.com/iliyamo/ration-connect/internal/middleware"
	"github.com/iliyamo/ration-connect/internal/model"
)

// Handlers bundles every route handler.
type Handlers struct {
	Health       echo.HandlerFunc
	OTP          *handler.OTPHandler
	Registration *handler.RegistrationHandler
	Profile      *handler.ProfileHandler
	Quota        *handler.QuotaHandler
}

// RegisterRoutes registers the health check.  It is not rate limited so
// load balancers can poll freely.
func RegisterRoutes(e *echo.Echo, h Handlers) {
	e.GET("/healthz", h.Health)
}

// RegisterOTP registers the unauthenticated OTP and registration flow.
func RegisterOTP(e *echo.Echo, h Handlers, limit echo.MiddlewareFunc) {
	g := e.Group("", limit)
	g.POST("/send-otp", h.OTP.SendOTP)
	g.POST("/verify-otp", h.OTP.VerifyOTP)
	g.POST("/register-profile", h.Registration.RegisterProfile)
}

// RegisterV1 registers the session-protected API.  JWTAuth runs before the
// limiter so buckets can be keyed by profile.
func RegisterV1(e *echo.Echo, h Handlers, jwtSecret string, limit echo.MiddlewareFunc) {
	v1 := e.Group("/v1", middleware.JWTAuth(jwtSecret), limit)

	citizen := v1.Group("", middleware.RequireRole(model.RoleCitizen, model.RoleAdmin))
	citizen.GET("/me", h.Profile.Me)
	citizen.PATCH("/me", h.Profile.UpdateMe)
	citizen.GET("/quota", h.Quota.Quota)
	citizen.GET("/quota/records", h.Quota.Records)
	citizen.POST("/quota/claims", h.Quota.Claim)
	citizen.POST("/quota/sales", h.Quota.Sell)
	citizen.POST("/quota/conversions", h.Quota.Convert)

	admin := v1.Group("/admin", middleware.RequireRole(model.RoleAdmin))
	admin.GET("/profiles/:id/quota", h.Quota.ProfileQuota)
	admin.POST("/profiles/:id/roles", h.Profile.GrantRole)
}
