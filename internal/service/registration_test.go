package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

func validInput() RegisterInput {
	addr := "12 Gandhi Road, Pune"
	return RegisterInput{
		PhoneNumber:   phone,
		Name:          "Asha Patil",
		RationCardNo:  "MH-12-0042",
		CardType:      "bpl",
		FamilyMembers: 4,
		Address:       &addr,
	}
}

// verifyPhone runs the OTP flow up to VERIFIED.
func verifyPhone(t *testing.T, f *fixture) {
	t.Helper()
	ctx := context.Background()
	if _, err := f.otp.Issue(ctx, phone); err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := f.otp.Verify(ctx, phone, f.code); err != nil {
		t.Fatalf("Verify: %v", err)
	}
}

func TestRegisterFieldValidation(t *testing.T) {
	long := strings.Repeat("x", 256)
	cases := []struct {
		name  string
		mut   func(in *RegisterInput)
		field string
	}{
		{"short name", func(in *RegisterInput) { in.Name = "A" }, "name"},
		{"blank name", func(in *RegisterInput) { in.Name = "   " }, "name"},
		{"long name", func(in *RegisterInput) { in.Name = strings.Repeat("a", 101) }, "name"},
		{"short card", func(in *RegisterInput) { in.RationCardNo = "abc" }, "ration_card_no"},
		{"long card", func(in *RegisterInput) { in.RationCardNo = strings.Repeat("9", 51) }, "ration_card_no"},
		{"card type", func(in *RegisterInput) { in.CardType = "gold" }, "card_type"},
		{"zero members", func(in *RegisterInput) { in.FamilyMembers = 0 }, "family_members"},
		{"too many members", func(in *RegisterInput) { in.FamilyMembers = 21 }, "family_members"},
		{"long address", func(in *RegisterInput) { in.Address = &long }, "address"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newFixture()
			verifyPhone(t, f)
			in := validInput()
			tc.mut(&in)
			_, err := f.reg.Register(context.Background(), in)
			var fe *FieldError
			if !errors.As(err, &fe) || fe.Field != tc.field {
				t.Fatalf("err = %v, want FieldError(%s)", err, tc.field)
			}
			if c, _ := f.store.challenge(phone); c.ConsumedAt != nil {
				t.Error("validation failure must not consume the challenge")
			}
		})
	}
}

func TestRegisterBoundaryValues(t *testing.T) {
	f := newFixture()
	verifyPhone(t, f)
	in := validInput()
	in.Name = "Al"
	in.RationCardNo = "RC01"
	in.FamilyMembers = 20
	in.CardType = " AAY "
	in.Address = nil
	res, err := f.reg.Register(context.Background(), in)
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Profile.CardType != "aay" || res.Profile.Address != nil {
		t.Errorf("profile = %+v", res.Profile)
	}
}

func TestRegisterPhoneCheckedFirst(t *testing.T) {
	f := newFixture()
	in := validInput()
	in.PhoneNumber = "123"
	in.Name = ""
	if _, err := f.reg.Register(context.Background(), in); !errors.Is(err, ErrInvalidPhoneFormat) {
		t.Fatalf("err = %v, want ErrInvalidPhoneFormat", err)
	}
}

func TestRegisterRequiresVerifiedOTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	if _, err := f.reg.Register(ctx, validInput()); !errors.Is(err, ErrOTPNotVerified) {
		t.Fatalf("no challenge: err = %v", err)
	}
	if _, err := f.otp.Issue(ctx, phone); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Register(ctx, validInput()); !errors.Is(err, ErrOTPNotVerified) {
		t.Fatalf("issued only: err = %v", err)
	}
	if _, err := f.store.GetByPhone(ctx, phone); err == nil {
		t.Fatal("profile created without verification")
	}
}

func TestRegisterAfterVerifiedChallengeExpired(t *testing.T) {
	f := newFixture()
	verifyPhone(t, f)
	f.clock.Advance(11 * time.Minute)
	if _, err := f.reg.Register(context.Background(), validInput()); !errors.Is(err, ErrOTPNotVerified) {
		t.Fatalf("err = %v, want ErrOTPNotVerified", err)
	}
}

func TestRegisterSuccessConsumesChallenge(t *testing.T) {
	ctx := context.Background()
	f := newFixture()
	verifyPhone(t, f)

	res, err := f.reg.Register(ctx, validInput())
	if err != nil {
		t.Fatalf("Register: %v", err)
	}
	if res.Profile.ID == 0 || res.Profile.PhoneNumber != phone || res.Session.Token == "" {
		t.Fatalf("result = %+v", res)
	}
	if c, _ := f.store.challenge(phone); c.ConsumedAt == nil {
		t.Error("challenge not consumed")
	}

	select {
	case ev := <-f.events.registered:
		if ev.ProfileID != res.Profile.ID || ev.Phone != "******6780" {
			t.Errorf("event = %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("profile.registered not published")
	}

	// Same verification cannot be reused.
	if _, err := f.reg.Register(ctx, validInput()); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("second register: err = %v, want ErrAlreadyRegistered", err)
	}
	// A fresh, unverified issue does not open the gate again.
	if _, err := f.otp.Issue(ctx, phone); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Register(ctx, validInput()); !errors.Is(err, ErrOTPNotVerified) {
		t.Fatalf("unverified reissue: err = %v, want ErrOTPNotVerified", err)
	}
	// Verifying again lets the caller learn the phone is registered.
	if _, err := f.otp.Verify(ctx, phone, f.code); err != nil {
		t.Fatal(err)
	}
	if _, err := f.reg.Register(ctx, validInput()); !errors.Is(err, ErrAlreadyRegistered) {
		t.Fatalf("reverified: err = %v, want ErrAlreadyRegistered", err)
	}
}

func TestRegisterConcurrentExactlyOne(t *testing.T) {
	f := newFixture()
	verifyPhone(t, f)

	const n = 12
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		dup     int
	)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.reg.Register(context.Background(), validInput())
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				created++
			case errors.Is(err, ErrAlreadyRegistered):
				dup++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	if created != 1 || dup != n-1 {
		t.Fatalf("created=%d duplicates=%d", created, dup)
	}
}
