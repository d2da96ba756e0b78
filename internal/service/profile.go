package service

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/iliyamo/ration-connect/internal/logger"
	"github.com/iliyamo/ration-connect/internal/model"
	"github.com/iliyamo/ration-connect/internal/repository"
	"github.com/iliyamo/ration-connect/internal/validate"
)

// ProfileUpdateInput carries the owner-editable fields.  Nil leaves a
// field unchanged; an empty address clears it.
type ProfileUpdateInput struct {
	Name     *string `json:"name" validate:"omitnil,min=2,max=100"`
	Address  *string `json:"address" validate:"omitnil,max=255"`
	CardType *string `json:"card_type" validate:"omitnil,oneof=apl bpl aay priority"`
}

// ProfileService serves the signed-in profile and the admin role grants.
type ProfileService struct {
	profiles ProfileStore
	roles    RoleStore
	log      *slog.Logger
}

// NewProfileService wires a ProfileService.
func NewProfileService(profiles ProfileStore, roles RoleStore, log *slog.Logger) *ProfileService {
	return &ProfileService{profiles: profiles, roles: roles, log: log.With(logger.Module("service.profile"))}
}

// Get returns a profile with its roles.
func (s *ProfileService) Get(ctx context.Context, id uint64) (model.Profile, []string, error) {
	p, err := s.profiles.GetByID(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return model.Profile{}, nil, ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, nil, storageErr("load profile", err)
	}
	return p, rolesOrDefault(ctx, s.roles, s.log, id), nil
}

// Update applies in to the profile.  Family size and ration card number
// are not editable.
func (s *ProfileService) Update(ctx context.Context, id uint64, in ProfileUpdateInput) (model.Profile, error) {
	trim := func(p *string) *string {
		if p == nil {
			return nil
		}
		v := strings.TrimSpace(*p)
		return &v
	}
	in.Name = trim(in.Name)
	in.Address = trim(in.Address)
	in.CardType = trim(in.CardType)
	if in.CardType != nil {
		v := strings.ToLower(*in.CardType)
		in.CardType = &v
	}
	if err := fieldErr(validate.Struct(&in)); err != nil {
		return model.Profile{}, err
	}

	p, err := s.profiles.Update(ctx, id, model.ProfileUpdate{Name: in.Name, Address: in.Address, CardType: in.CardType})
	if errors.Is(err, repository.ErrNotFound) {
		return model.Profile{}, ErrProfileNotFound
	}
	if err != nil {
		return model.Profile{}, storageErr("update profile", err)
	}
	return p, nil
}

// GrantRole adds role to a profile.
func (s *ProfileService) GrantRole(ctx context.Context, id uint64, role string) ([]string, error) {
	if role != model.RoleCitizen && role != model.RoleAdmin {
		return nil, &FieldError{Field: "role"}
	}
	err := s.roles.Grant(ctx, id, role)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, ErrProfileNotFound
	}
	if err != nil {
		return nil, storageErr("grant role", err)
	}
	s.log.Info("role granted", slog.Uint64("profile_id", id), slog.String("role", role))
	return rolesOrDefault(ctx, s.roles, s.log, id), nil
}
