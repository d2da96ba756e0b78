package router

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ration-connect/internal/handler"
	"github.com/iliyamo/ration-connect/internal/utils"
)

func passthrough(next echo.HandlerFunc) echo.HandlerFunc { return next }

func newTestEcho() *echo.Echo {
	e := echo.New()
	h := Handlers{
		Health:       handler.Health(nil),
		OTP:          handler.NewOTPHandler(nil),
		Registration: handler.NewRegistrationHandler(nil),
		Profile:      handler.NewProfileHandler(nil),
		Quota:        handler.NewQuotaHandler(nil),
	}
	RegisterRoutes(e, h)
	RegisterOTP(e, h, passthrough)
	RegisterV1(e, h, "router-secret", passthrough)
	return e
}

func TestRoutesRegistered(t *testing.T) {
	e := newTestEcho()
	want := map[string]bool{
		"GET /healthz":                      false,
		"POST /send-otp":                    false,
		"POST /verify-otp":                  false,
		"POST /register-profile":            false,
		"GET /v1/me":                        false,
		"PATCH /v1/me":                      false,
		"GET /v1/quota":                     false,
		"GET /v1/quota/records":             false,
		"POST /v1/quota/claims":             false,
		"POST /v1/quota/sales":              false,
		"POST /v1/quota/conversions":        false,
		"GET /v1/admin/profiles/:id/quota":  false,
		"POST /v1/admin/profiles/:id/roles": false,
	}
	for _, r := range e.Routes() {
		k := r.Method + " " + r.Path
		if _, ok := want[k]; ok {
			want[k] = true
		}
	}
	for k, found := range want {
		if !found {
			t.Errorf("route %s not registered", k)
		}
	}
}

func TestV1RequiresSession(t *testing.T) {
	e := newTestEcho()
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/quota", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("no token: %d", rec.Code)
	}
}

func TestAdminRequiresRole(t *testing.T) {
	e := newTestEcho()
	tok, err := utils.NewSessionToken("router-secret", 4, []string{"citizen"}, time.Hour, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	req := httptest.NewRequest(http.MethodGet, "/v1/admin/profiles/9/quota", nil)
	req.Header.Set("Authorization", "Bearer "+tok.Token)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Errorf("citizen on admin route: %d", rec.Code)
	}
}
