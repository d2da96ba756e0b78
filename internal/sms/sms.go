// Package sms delivers OTP messages.  The Twilio driver talks to the
// Messages REST endpoint; the log driver is for local and dev use.
package sms

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/ration-connect/internal/config"
	"github.com/iliyamo/ration-connect/internal/logger"
)

// ErrNotConfigured is returned when the gateway credentials are missing.
var ErrNotConfigured = errors.New("sms gateway not configured")

// Sender delivers a text message to a 10 digit phone number.
type Sender interface {
	Send(ctx context.Context, phone, body string) error
}

// New builds the sender selected by cfg.Driver.
func New(cfg config.SMSConfig, log *slog.Logger) Sender {
	if cfg.Driver == config.SMSDriverLog {
		return NewLogSender(cfg.CountryCode, log)
	}
	return NewTwilioSender(cfg, nil)
}

// E164 prefixes a national number with the country code.
func E164(countryCode, phone string) string {
	cc := strings.TrimSpace(countryCode)
	if cc == "" {
		return phone
	}
	if !strings.HasPrefix(cc, "+") {
		cc = "+" + cc
	}
	return cc + phone
}

// LogSender writes messages to the application log instead of sending
// them.
type LogSender struct {
	countryCode string
	log         *slog.Logger
}

// NewLogSender returns a LogSender.
func NewLogSender(countryCode string, log *slog.Logger) *LogSender {
	return &LogSender{countryCode: countryCode, log: log.With(logger.Module("sms.log"))}
}

// Send logs body at info level.
func (s *LogSender) Send(ctx context.Context, phone, body string) error {
	s.log.InfoContext(ctx, "sms", slog.String("to", E164(s.countryCode, phone)), slog.String("body", body))
	return nil
}
