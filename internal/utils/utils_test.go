package utils

import (
	"strconv"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

func TestGenerateCodeRange(t *testing.T) {
	for i := 0; i < 200; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode: %v", err)
		}
		if len(code) != 6 {
			t.Fatalf("code %q: want 6 digits", code)
		}
		n, err := strconv.Atoi(code)
		if err != nil || n < 100000 || n > 999999 {
			t.Fatalf("code %q out of range", code)
		}
	}
}

func TestHashAndCompareCode(t *testing.T) {
	h, err := HashCode("482913", bcrypt.MinCost)
	if err != nil {
		t.Fatalf("HashCode: %v", err)
	}
	if h == "482913" {
		t.Fatal("hash must not equal the code")
	}
	if !CompareCode(h, "482913") {
		t.Error("matching code rejected")
	}
	if CompareCode(h, "482914") {
		t.Error("wrong code accepted")
	}
}

func TestSessionTokenRoundTrip(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tok, err := NewSessionToken("s3cret", 42, []string{"citizen", "admin"}, time.Hour, now)
	if err != nil {
		t.Fatalf("NewSessionToken: %v", err)
	}
	if !tok.Exp.Equal(now.Add(time.Hour)) {
		t.Errorf("exp = %v", tok.Exp)
	}
	claims, err := ParseSessionToken("s3cret", tok.Token, now.Add(30*time.Minute))
	if err != nil {
		t.Fatalf("ParseSessionToken: %v", err)
	}
	id, _ := claims.ProfileID()
	if id != 42 {
		t.Errorf("profile id = %d", id)
	}
	if len(claims.Roles) != 2 || claims.Roles[1] != "admin" {
		t.Errorf("roles = %v", claims.Roles)
	}
}

func TestParseSessionTokenRejects(t *testing.T) {
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	tok, _ := NewSessionToken("s3cret", 7, nil, time.Minute, now)

	none, _ := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.RegisteredClaims{
		Subject:   "7",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)

	badSub, _ := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Subject:   "abc",
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}).SignedString([]byte("s3cret"))

	cases := []struct {
		name, secret, raw string
		at                time.Time
	}{
		{"expired", "s3cret", tok.Token, now.Add(2 * time.Minute)},
		{"wrong secret", "other", tok.Token, now},
		{"alg none", "s3cret", none, now},
		{"non numeric subject", "s3cret", badSub, now},
		{"garbage", "s3cret", "not.a.jwt", now},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := ParseSessionToken(tc.secret, tc.raw, tc.at); err != ErrInvalidSession {
				t.Fatalf("err = %v, want ErrInvalidSession", err)
			}
		})
	}
}
