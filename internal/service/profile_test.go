package service

import (
	"context"
	"errors"
	"testing"

	"github.com/iliyamo/ration-connect/internal/model"
)

func ptr(s string) *string { return &s }

func TestProfileGetAndUpdate(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := f.store.seedProfile(phone, 3)

	p, roles, err := f.prof.Get(ctx, id)
	if err != nil || p.ID != id || len(roles) != 1 || roles[0] != model.RoleCitizen {
		t.Fatalf("Get = %+v, %v, %v", p, roles, err)
	}

	p, err = f.prof.Update(ctx, id, ProfileUpdateInput{Name: ptr("  Ravi Kumar "), CardType: ptr("AAY"), Address: ptr("Ward 7")})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if p.Name != "Ravi Kumar" || p.CardType != model.CardAAY || p.Address == nil || *p.Address != "Ward 7" {
		t.Errorf("updated = %+v", p)
	}
	if p.FamilyMembers != 3 {
		t.Error("family size must not change")
	}

	p, err = f.prof.Update(ctx, id, ProfileUpdateInput{Address: ptr("")})
	if err != nil || p.Address != nil {
		t.Errorf("clear address: %+v, %v", p, err)
	}
}

func TestProfileUpdateValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := f.store.seedProfile(phone, 3)
	cases := []struct {
		in    ProfileUpdateInput
		field string
	}{
		{ProfileUpdateInput{Name: ptr("")}, "name"},
		{ProfileUpdateInput{Name: ptr("X")}, "name"},
		{ProfileUpdateInput{CardType: ptr("gold")}, "card_type"},
	}
	for _, tc := range cases {
		_, err := f.prof.Update(ctx, id, tc.in)
		var fe *FieldError
		if !errors.As(err, &fe) || fe.Field != tc.field {
			t.Errorf("err = %v, want FieldError(%s)", err, tc.field)
		}
	}
	if _, err := f.prof.Update(ctx, 999, ProfileUpdateInput{}); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("unknown profile: %v", err)
	}
}

func TestGrantRole(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	id := f.store.seedProfile(phone, 3)

	roles, err := f.prof.GrantRole(ctx, id, model.RoleAdmin)
	if err != nil || len(roles) != 2 || roles[1] != model.RoleAdmin {
		t.Fatalf("GrantRole = %v, %v", roles, err)
	}
	var fe *FieldError
	if _, err := f.prof.GrantRole(ctx, id, "root"); !errors.As(err, &fe) {
		t.Errorf("unknown role: %v", err)
	}
	if _, err := f.prof.GrantRole(ctx, 999, model.RoleAdmin); !errors.Is(err, ErrProfileNotFound) {
		t.Errorf("unknown profile: %v", err)
	}
}
