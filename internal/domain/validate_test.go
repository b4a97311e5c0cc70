package domain

import (
	"errors"
	"testing"
)

func TestValidatePhone(t *testing.T) {
	if err := ValidatePhone("1234567890"); err != nil {
		t.Fatalf("valid phone rejected: %v", err)
	}
	for _, phone := range []string{"", "123456789", "12345678901", "12345abcde"} {
		if err := ValidatePhone(phone); !errors.Is(err, ErrValidation) {
			t.Errorf("phone %q: expected validation error, got %v", phone, err)
		}
	}
}

func TestValidateUsername(t *testing.T) {
	for _, username := range []string{"alice", "user_1", "A1_b"} {
		if err := ValidateUsername(username); err != nil {
			t.Errorf("valid username %q rejected: %v", username, err)
		}
	}
	for _, username := range []string{"abc", "has space", "dash-ed", ""} {
		if err := ValidateUsername(username); !errors.Is(err, ErrValidation) {
			t.Errorf("username %q: expected validation error, got %v", username, err)
		}
	}
}

func TestValidatePassword(t *testing.T) {
	if err := ValidatePassword("Abc123xy"); err != nil {
		t.Fatalf("valid password rejected: %v", err)
	}
	for _, password := range []string{"short", "alllower1", "ALLUPPER1", "NoDigits"} {
		if err := ValidatePassword(password); !errors.Is(err, ErrValidation) {
			t.Errorf("password %q: expected validation error, got %v", password, err)
		}
	}
}

func TestValidateName(t *testing.T) {
	if err := ValidateName("Alice Smith"); err != nil {
		t.Fatalf("valid name rejected: %v", err)
	}
	for _, name := range []string{"", "Alice2", "Bob!"} {
		if err := ValidateName(name); !errors.Is(err, ErrValidation) {
			t.Errorf("name %q: expected validation error, got %v", name, err)
		}
	}
}

func TestParseAmountPrecision(t *testing.T) {
	amount, err := ParseAmount("100.50")
	if err != nil {
		t.Fatalf("parse 100.50: %v", err)
	}
	if amount.StringFixed(2) != "100.50" {
		t.Fatalf("parse 100.50: got %s", amount.StringFixed(2))
	}

	if _, err := ParseAmount("0.001"); !errors.Is(err, ErrValidation) {
		t.Errorf("sub-cent amount: expected validation error, got %v", err)
	}
	if _, err := ParseAmount("abc"); !errors.Is(err, ErrValidation) {
		t.Errorf("non-numeric amount: expected validation error, got %v", err)
	}
}

func TestParsePositiveAmount(t *testing.T) {
	for _, raw := range []string{"0", "0.00", "-5"} {
		if _, err := ParsePositiveAmount(raw); !errors.Is(err, ErrValidation) {
			t.Errorf("amount %q: expected validation error, got %v", raw, err)
		}
	}
	if _, err := ParsePositiveAmount("0.01"); err != nil {
		t.Fatalf("smallest positive amount rejected: %v", err)
	}
}
