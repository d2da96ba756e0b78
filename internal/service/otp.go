package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/iliyamo/ration-connect/internal/config"
	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/repository"
	"github.com/iliyamo/ration-connect/internal/sms"
	"github.com/iliyamo/ration-connect/internal/utils"
	"github.com/iliyamo/ration-connect/internal/validate"
)

// OTPService issues and verifies one-time codes.
type OTPService struct {
	challenges ChallengeStore
	profiles   ProfileStore
	roles      RoleStore
	sender     sms.Sender
	limiter    SendLimiter
	sessions   SessionIssuer
	cfg        config.OTPConfig
	log        *slog.Logger

	now      func() time.Time
	generate func() (string, error)
}

// NewOTPService wires an OTPService.  limiter and roles may be nil.
func NewOTPService(challenges ChallengeStore, profiles ProfileStore, roles RoleStore, sender sms.Sender,
	limiter SendLimiter, sessions SessionIssuer, cfg config.OTPConfig, log *slog.Logger) *OTPService {
	return &OTPService{
		challenges: challenges,
		profiles:   profiles,
		roles:      roles,
		sender:     sender,
		limiter:    limiter,
		sessions:   sessions,
		cfg:        cfg,
		log:        log.With(logger.Module("service.otp")),
		now:        time.Now,
		generate:   utils.GenerateCode,
	}
}

// IssueResult describes an issued challenge.  DebugCode is only set when
// dispatch failed and the exposure policy is enabled.
type IssueResult struct {
	ExpiresAt time.Time
	DebugCode string
}

// Issue creates a fresh challenge for phone, superseding any previous one,
// and sends the code by SMS.  The challenge is persisted before sending;
// when dispatch fails it stays valid and an ErrDispatch error is returned
// together with the result.
func (s *OTPService) Issue(ctx context.Context, phone string) (IssueResult, error) {
	if !validate.Phone(phone) {
		return IssueResult{}, ErrInvalidPhoneFormat
	}
	log := s.log.With(logger.Phone(phone))

	if s.limiter != nil {
		retry, err := s.limiter.Allow(ctx, phone)
		if err != nil {
			log.Warn("otp limiter unavailable", logger.Err(err))
		} else if retry > 0 {
			return IssueResult{}, &RateLimitError{RetryAfter: retry}
		}
	}

	code, err := s.generate()
	if err != nil {
		return IssueResult{}, fmt.Errorf("generate code: %w", err)
	}
	hash, err := utils.HashCode(code, s.cfg.BcryptCost)
	if err != nil {
		return IssueResult{}, fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	c := model.OTPChallenge{
		PhoneNumber: phone,
		CodeHash:    hash,
		CreatedAt:   now,
		ExpiresAt:   now.Add(s.cfg.TTL),
	}
	if err := s.challenges.Upsert(ctx, c); err != nil {
		log.Error("store challenge failed", logger.Err(err))
		return IssueResult{}, storageErr("store challenge", err)
	}
	res := IssueResult{ExpiresAt: c.ExpiresAt}

	body := fmt.Sprintf("Your Ration-Connect verification code is %s. It expires in %d minutes.",
		code, int(s.cfg.TTL.Minutes()))
	if err := s.sender.Send(ctx, phone, body); err != nil {
		log.Error("otp dispatch failed", logger.Err(err))
		if s.cfg.ExposeOnDispatchFailure {
			res.DebugCode = code
		}
		return res, fmt.Errorf("%w: %v", ErrDispatch, err)
	}
	log.Info("otp issued", slog.Time("expires_at", c.ExpiresAt))
	return res, nil
}

// VerifyResult is the outcome of a successful verification.  Profile,
// Roles and Session are only set for registered phones.
type VerifyResult struct {
	IsRegistered bool
	Profile      *model.Profile
	Roles        []string
	Session      *utils.SessionToken
}

// Verify checks code against the live challenge for phone.  An expired
// challenge fails with ErrExpired whatever the code; a challenge can be
// verified at most once, so replays fail with ErrInvalidCode.
func (s *OTPService) Verify(ctx context.Context, phone, code string) (VerifyResult, error) {
	if !validate.Phone(phone) {
		return VerifyResult{}, ErrInvalidPhoneFormat
	}
	if !validate.OTP(code) {
		return VerifyResult{}, ErrInvalidOTPFormat
	}
	log := s.log.With(logger.Phone(phone))

	c, err := s.challenges.GetUnverified(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return VerifyResult{}, ErrInvalidCode
	}
	if err != nil {
		return VerifyResult{}, storageErr("load challenge", err)
	}

	now := s.now().UTC()
	if c.ExpiredAt(now) {
		return VerifyResult{}, ErrExpired
	}
	if c.FailedAttempts >= s.cfg.MaxAttempts {
		return VerifyResult{}, ErrTooManyAttempts
	}
	if !utils.CompareCode(c.CodeHash, code) {
		if err := s.challenges.RecordFailedAttempt(ctx, phone, c.CodeHash); err != nil {
			log.Warn("record failed attempt", logger.Err(err))
		}
		return VerifyResult{}, ErrInvalidCode
	}

	ok, err := s.challenges.MarkVerified(ctx, phone, c.CodeHash, now)
	if err != nil {
		return VerifyResult{}, storageErr("mark verified", err)
	}
	if !ok {
		return VerifyResult{}, ErrInvalidCode
	}
	log.Info("otp verified")

	p, err := s.profiles.GetByPhone(ctx, phone)
	if errors.Is(err, repository.ErrNotFound) {
		return VerifyResult{}, nil
	}
	if err != nil {
		return VerifyResult{}, storageErr("load profile", err)
	}

	roles := rolesOrDefault(ctx, s.roles, s.log, p.ID)
	tok, err := s.sessions.Issue(p.ID, roles, now)
	if err != nil {
		return VerifyResult{}, fmt.Errorf("issue session: %w", err)
	}
	return VerifyResult{IsRegistered: true, Profile: &p, Roles: roles, Session: &tok}, nil
}
