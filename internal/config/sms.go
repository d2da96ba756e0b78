package config

import (
	"errors"
	"time"
)

// SMS drivers.  "log" writes the message to the application log and is
// only allowed outside prod.
const (
	SMSDriverTwilio = "twilio"
	SMSDriverLog    = "log"
)

// SMSConfig holds the gateway credentials.  Missing credentials are not
// fatal at startup; every send then fails with a dispatch error.
type SMSConfig struct {
	Driver      string
	CountryCode string // prefix turning a 10 digit number into E.164
	AccountSID  string
	AuthToken   string
	FromNumber  string
	BaseURL     string
	Timeout     time.Duration
}

// ErrLogDriverInProd is returned when the log driver is selected in prod.
var ErrLogDriverInProd = errors.New("SMS_DRIVER=log is not allowed when APP_ENV=prod")

// LoadSMSConfig reads SMS gateway settings.
func LoadSMSConfig(env string) (SMSConfig, error) {
	cfg := SMSConfig{
		Driver:      envStr("SMS_DRIVER", SMSDriverTwilio),
		CountryCode: envStr("SMS_COUNTRY_CODE", "+91"),
		AccountSID:  envStr("TWILIO_ACCOUNT_SID", ""),
		AuthToken:   envStr("TWILIO_AUTH_TOKEN", ""),
		FromNumber:  envStr("TWILIO_FROM_NUMBER", ""),
		BaseURL:     envStr("TWILIO_BASE_URL", "https://api.twilio.com"),
		Timeout:     envDur("SMS_TIMEOUT", 10*time.Second),
	}
	switch cfg.Driver {
	case SMSDriverTwilio:
	case SMSDriverLog:
		if env == EnvProd {
			return SMSConfig{}, ErrLogDriverInProd
		}
	default:
		return SMSConfig{}, errors.New("unknown SMS_DRIVER: " + cfg.Driver)
	}
	return cfg, nil
}
