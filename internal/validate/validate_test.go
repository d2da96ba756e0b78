package validate

import (
	"errors"
	"testing"
)

type sample struct {
	Phone    string  `json:"phone_number" validate:"phone"`
	Name     string  `json:"name" validate:"min=2,max=100"`
	CardType string  `json:"card_type" validate:"oneof=apl bpl aay priority"`
	Members  int     `json:"family_members" validate:"min=1,max=20"`
	Address  *string `json:"address" validate:"omitempty,max=10"`
}

func TestStruct(t *testing.T) {
	long := "0123456789x"
	ok := sample{Phone: "9123456780", Name: "Asha", CardType: "bpl", Members: 4}

	cases := []struct {
		name  string
		mut   func(s *sample)
		field string
	}{
		{"valid", func(s *sample) {}, ""},
		{"bad phone", func(s *sample) { s.Phone = "5123456780" }, "phone_number"},
		{"short name", func(s *sample) { s.Name = "A" }, "name"},
		{"card type", func(s *sample) { s.CardType = "gold" }, "card_type"},
		{"no members", func(s *sample) { s.Members = 0 }, "family_members"},
		{"too many members", func(s *sample) { s.Members = 21 }, "family_members"},
		{"long address", func(s *sample) { s.Address = &long }, "address"},
		{"first field wins", func(s *sample) { s.Name = ""; s.Members = 0 }, "name"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := ok
			tc.mut(&s)
			err := Struct(&s)
			if tc.field == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			var fe *FieldError
			if !errors.As(err, &fe) {
				t.Fatalf("err = %v, want *FieldError", err)
			}
			if fe.Field != tc.field {
				t.Errorf("field = %q, want %q", fe.Field, tc.field)
			}
		})
	}
}

func TestStructRejectsNonStruct(t *testing.T) {
	if err := Struct(nil); err == nil {
		t.Error("nil accepted")
	}
	if err := Struct(42); err == nil {
		t.Error("int accepted")
	}
}

func TestFormats(t *testing.T) {
	phones := map[string]bool{
		"9123456780": true, "6000000000": true, "5123456780": false,
		"912345678": false, "91234567801": false, "91234a6780": false, "": false,
	}
	for p, want := range phones {
		if Phone(p) != want {
			t.Errorf("Phone(%q) = %v", p, !want)
		}
	}
	codes := map[string]bool{"012345": true, "482913": true, "48291": false, "4829134": false, "48291a": false}
	for c, want := range codes {
		if OTP(c) != want {
			t.Errorf("OTP(%q) = %v", c, !want)
		}
	}
}
