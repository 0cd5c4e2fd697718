package utils

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

func TestIsValidGSTIN(t *testing.T) {
	cases := []struct {
		in   string
		want bool
	}{
		{"27AAPFU0939F1ZV", true},
		{"27aapfu0939f1zv", true},
		{" 29ABCDE1234F1Z5 ", true},
		{"27AAPFU0939F1AV", false},
		{"27AAPFU0939F", false},
		{"", false},
	}
	for _, tc := range cases {
		if got := IsValidGSTIN(tc.in); got != tc.want {
			t.Fatalf("IsValidGSTIN(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
}

func TestRegisterGSTIN(t *testing.T) {
	v := validator.New()
	if err := RegisterGSTIN(v); err != nil {
		t.Fatalf("register: %v", err)
	}

	type customer struct {
		GSTIN string `validate:"gstin"`
	}
	if err := v.Struct(customer{GSTIN: ""}); err != nil {
		t.Fatalf("empty gstin should pass: %v", err)
	}
	if err := v.Struct(customer{GSTIN: "27AAPFU0939F1ZV"}); err != nil {
		t.Fatalf("valid gstin rejected: %v", err)
	}
	if err := v.Struct(customer{GSTIN: "not-a-gstin"}); err == nil {
		t.Fatalf("expected invalid gstin to fail")
	}
}

func TestFormatPhone(t *testing.T) {
	if got := FormatPhone("", "IN"); got != "" {
		t.Fatalf("empty phone formatted as %q", got)
	}
	if got := FormatPhone("12", "IN"); got != "12" {
		t.Fatalf("unparseable phone should be returned as is, got %q", got)
	}
	got := FormatPhone("9876543210", "")
	if !strings.HasPrefix(got, "+91") {
		t.Fatalf("expected +91 prefix, got %q", got)
	}
}

func TestJWTManager_RoundTrip(t *testing.T) {
	m := NewJWTManager("secret", "gstbill", time.Minute)
	userID, tenantID := uuid.New(), uuid.New()

	token, err := m.GenerateAccessToken(userID, tenantID, "a@b.c", []string{"admin"}, []string{"manage-printer"})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	claims, err := m.ValidateAccessToken(token)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if claims.UserID != userID || claims.TenantID != tenantID {
		t.Fatalf("claims mismatch: %+v", claims)
	}

	other := NewJWTManager("other", "gstbill", time.Minute)
	if _, err := other.ValidateAccessToken(token); err == nil {
		t.Fatalf("token signed with another secret must fail")
	}
}

func TestJWTManager_Rejects(t *testing.T) {
	userID := uuid.New()

	expired, err := NewJWTManager("secret", "gstbill", -time.Minute).GenerateAccessToken(userID, uuid.Nil, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTManager("secret", "gstbill", time.Minute).ValidateAccessToken(expired); !errors.Is(err, jwt.ErrTokenExpired) {
		t.Fatalf("expired token: err = %v", err)
	}

	foreign, err := NewJWTManager("secret", "someone-else", time.Minute).GenerateAccessToken(userID, uuid.Nil, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTManager("secret", "gstbill", time.Minute).ValidateAccessToken(foreign); !errors.Is(err, jwt.ErrTokenInvalidIssuer) {
		t.Fatalf("foreign issuer: err = %v", err)
	}

	anonymous, err := NewJWTManager("secret", "gstbill", time.Minute).GenerateAccessToken(uuid.Nil, uuid.Nil, "", nil, nil)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewJWTManager("secret", "gstbill", time.Minute).ValidateAccessToken(anonymous); err == nil {
		t.Fatal("token without a user must fail")
	}
}

func TestGenerateReferenceNo(t *testing.T) {
	ref := GenerateReferenceNo("TEST")
	if !strings.HasPrefix(ref, "TEST-") || len(ref) != len("TEST-")+8 {
		t.Fatalf("unexpected reference %q", ref)
	}
}
