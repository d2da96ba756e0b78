package config

import (
	"errors"
	"time"
)

// OTPConfig controls the lifetime, hashing and send throttling of OTP
// challenges.
type OTPConfig struct {
	TTL         time.Duration // validity window of an issued code
	MaxAttempts int           // wrong codes tolerated per challenge
	BcryptCost  int           // cost used to hash codes at rest

	// ExposeOnDispatchFailure returns the code to the caller when the SMS
	// gateway fails.  Testing aid only; refused in prod.
	ExposeOnDispatchFailure bool

	SendCooldown time.Duration // minimum gap between two sends to one phone
	SendWindow   time.Duration // counting window for SendMax
	SendMax      int           // sends allowed per phone per window
}

// ErrExposeInProd is returned when the dispatch-failure bypass is enabled
// in production.
var ErrExposeInProd = errors.New("OTP_EXPOSE_ON_DISPATCH_FAILURE cannot be enabled when APP_ENV=prod")

// LoadOTPConfig reads OTP settings.  env is the application environment and
// gates the dispatch-failure bypass.
func LoadOTPConfig(env string) (OTPConfig, error) {
	cfg := OTPConfig{
		TTL:                     envDur("OTP_TTL", 10*time.Minute),
		MaxAttempts:             envInt("OTP_MAX_ATTEMPTS", 5),
		BcryptCost:              envInt("BCRYPT_COST", 10),
		ExposeOnDispatchFailure: envBool("OTP_EXPOSE_ON_DISPATCH_FAILURE", false),
		SendCooldown:            envDur("OTP_SEND_COOLDOWN", time.Minute),
		SendWindow:              envDur("OTP_SEND_WINDOW", 15*time.Minute),
		SendMax:                 envInt("OTP_SEND_MAX", 5),
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 10 * time.Minute
	}
	if cfg.MaxAttempts < 1 {
		cfg.MaxAttempts = 1
	}
	if cfg.BcryptCost < 4 || cfg.BcryptCost > 31 {
		cfg.BcryptCost = 10
	}
	if cfg.ExposeOnDispatchFailure && env == EnvProd {
		return OTPConfig{}, ErrExposeInProd
	}
	return cfg, nil
}
