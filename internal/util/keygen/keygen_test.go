package keygen

import (
	"encoding/base64"
	"strings"
	"testing"
)

func TestPassword(t *testing.T) {
	t.Parallel()
	tests := []struct {
		name   string
		length int
	}{
		{"default length", PasswordLength},
		{"short", 8},
		{"long", 128},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			pw, err := Password(tt.length)
			if err != nil {
				t.Fatalf("Password(%d) failed: %v", tt.length, err)
			}
			if len(pw) != tt.length {
				t.Errorf("expected length %d, got %d", tt.length, len(pw))
			}
			for _, c := range pw {
				if !strings.ContainsRune(alphanumeric, c) {
					t.Errorf("unexpected character %q in %q", c, pw)
				}
			}
		})
	}
}

func TestPassword_Unique(t *testing.T) {
	t.Parallel()

	a, err := Password(PasswordLength)
	if err != nil {
		t.Fatal(err)
	}
	b, err := Password(PasswordLength)
	if err != nil {
		t.Fatal(err)
	}
	if a == b {
		t.Error("two generated passwords are identical")
	}
}

func TestPassword_InvalidLength(t *testing.T) {
	t.Parallel()

	for _, n := range []int{0, -1} {
		if _, err := Password(n); err == nil {
			t.Errorf("Password(%d) should fail", n)
		}
	}
}

func TestToken(t *testing.T) {
	t.Parallel()

	tok, err := Token(32)
	if err != nil {
		t.Fatalf("Token failed: %v", err)
	}
	raw, err := base64.RawURLEncoding.DecodeString(tok)
	if err != nil {
		t.Fatalf("token is not base64url: %v", err)
	}
	if len(raw) != 32 {
		t.Errorf("expected 32 bytes, got %d", len(raw))
	}

	if _, err := Token(0); err == nil {
		t.Error("Token(0) should fail")
	}
}
