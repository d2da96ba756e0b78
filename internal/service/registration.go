package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/queue"
	"github.com/iliyamo/ration-connect/internal/repository"
	"github.com/iliyamo/ration-connect/internal/utils"
	"github.com/iliyamo/ration-connect/internal/validate"
)

// RegisterInput carries the registration form.  Fields are validated in
// declaration order and the first failure is reported.
type RegisterInput struct {
	PhoneNumber   string  `json:"phone_number"`
	Name          string  `json:"name" validate:"min=2,max=100"`
	RationCardNo  string  `json:"ration_card_no" validate:"min=4,max=50"`
	CardType      string  `json:"card_type" validate:"oneof=apl bpl aay priority"`
	FamilyMembers int     `json:"family_members" validate:"min=1,max=20"`
	Address       *string `json:"address" validate:"omitnil,max=255"`
}

// RegisterResult is a freshly created profile and its first session.
type RegisterResult struct {
	Profile model.Profile
	Roles   []string
	Session utils.SessionToken
}

// RegistrationService creates profiles behind a verified OTP.
type RegistrationService struct {
	profiles ProfileStore
	roles    RoleStore
	events   EventPublisher
	sessions SessionIssuer
	log      *slog.Logger
	now      func() time.Time
}

// NewRegistrationService wires a RegistrationService.  roles and events may
// be nil.
func NewRegistrationService(profiles ProfileStore, roles RoleStore, events EventPublisher, sessions SessionIssuer, log *slog.Logger) *RegistrationService {
	return &RegistrationService{
		profiles: profiles,
		roles:    roles,
		events:   events,
		sessions: sessions,
		log:      log.With(logger.Module("service.registration")),
		now:      time.Now,
	}
}

// Register validates in, then atomically creates the profile and consumes
// the verified challenge.  Nothing is written when validation fails.
func (s *RegistrationService) Register(ctx context.Context, in RegisterInput) (RegisterResult, error) {
	if !validate.Phone(in.PhoneNumber) {
		return RegisterResult{}, ErrInvalidPhoneFormat
	}
	in.Name = strings.TrimSpace(in.Name)
	in.RationCardNo = strings.TrimSpace(in.RationCardNo)
	in.CardType = strings.ToLower(strings.TrimSpace(in.CardType))
	if in.Address != nil {
		a := strings.TrimSpace(*in.Address)
		in.Address = &a
		if a == "" {
			in.Address = nil
		}
	}
	if err := fieldErr(validate.Struct(&in)); err != nil {
		return RegisterResult{}, err
	}

	log := s.log.With(logger.Phone(in.PhoneNumber))
	p := model.Profile{
		PhoneNumber:   in.PhoneNumber,
		RationCardNo:  in.RationCardNo,
		CardType:      in.CardType,
		Name:          in.Name,
		Address:       in.Address,
		FamilyMembers: in.FamilyMembers,
	}
	now := s.now().UTC()
	err := s.profiles.CreateWithVerifiedChallenge(ctx, &p, now)
	switch {
	case errors.Is(err, repository.ErrChallengeNotVerified):
		return RegisterResult{}, ErrOTPNotVerified
	case errors.Is(err, repository.ErrDuplicate):
		return RegisterResult{}, ErrAlreadyRegistered
	case err != nil:
		log.Error("create profile failed", logger.Err(err))
		return RegisterResult{}, storageErr("create profile", err)
	}
	log.Info("profile registered", slog.Uint64("profile_id", p.ID))

	if s.events != nil {
		ev := queue.ProfileRegisteredEvent{
			ProfileID:     p.ID,
			Phone:         logger.MaskPhone(p.PhoneNumber),
			CardType:      p.CardType,
			FamilyMembers: p.FamilyMembers,
			RegisteredAt:  now.Format(time.RFC3339),
		}
		publishAsync(s.log, queue.TypeProfileRegistered, func(ctx context.Context) error {
			return s.events.ProfileRegistered(ctx, ev)
		})
	}

	roles := rolesOrDefault(ctx, s.roles, s.log, p.ID)
	tok, err := s.sessions.Issue(p.ID, roles, now)
	if err != nil {
		return RegisterResult{}, fmt.Errorf("issue session: %w", err)
	}
	return RegisterResult{Profile: p, Roles: roles, Session: tok}, nil
}

// fieldErr converts a validation failure into a FieldError.
func fieldErr(err error) error {
	if err == nil {
		return nil
	}
	var fe *validate.FieldError
	if errors.As(err, &fe) {
		return &FieldError{Field: fe.Field}
	}
	return err
}
