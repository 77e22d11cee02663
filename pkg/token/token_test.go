package token

import (
	"context"
	"errors"
	"testing"
	"time"
)

func newTestSigner(t *testing.T) *Signer {
	t.Helper()
	s, err := NewSigner(Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}
	return s
}

func TestNewSigner_RejectsBadConfig(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"missing access secret", Config{RefreshSecret: "r"}},
		{"missing refresh secret", Config{AccessSecret: "a"}},
		{"shared secret", Config{AccessSecret: "same", RefreshSecret: "same"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewSigner(tt.cfg); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestSignVerify_RoundTrip(t *testing.T) {
	s := newTestSigner(t)

	in := Claims{Email: "j@x.com", Role: "CUSTOMER", TenantID: "t1"}
	in.Subject = "u1"

	signed, err := s.Sign(in, Access)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	got, err := s.Verify(signed, Access)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}

	if got.Subject != "u1" || got.Email != "j@x.com" || got.Role != "CUSTOMER" || got.TenantID != "t1" {
		t.Errorf("claims round trip mismatch: %+v", got)
	}
	if got.IssuedAt == nil || got.ExpiresAt == nil {
		t.Error("iat/exp not embedded")
	}
	if got.ID == "" {
		t.Error("jti not embedded")
	}
}

func TestSign_RequiresSubject(t *testing.T) {
	s := newTestSigner(t)
	if _, err := s.Sign(Claims{Email: "j@x.com"}, Access); err == nil {
		t.Error("expected error for empty subject")
	}
}

func TestVerify_WrongDomainRejected(t *testing.T) {
	s := newTestSigner(t)

	claims := Claims{}
	claims.Subject = "u1"

	access, err := s.Sign(claims, Access)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := s.Verify(access, Refresh); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("access token verified in refresh domain: err=%v", err)
	}

	refresh, err := s.Sign(claims, Refresh)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := s.Verify(refresh, Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("refresh token verified in access domain: err=%v", err)
	}
}

func TestVerify_Expired(t *testing.T) {
	s, err := NewSigner(Config{
		AccessSecret:  "access-secret",
		RefreshSecret: "refresh-secret",
		AccessTTL:     -time.Minute,
	})
	if err != nil {
		t.Fatalf("NewSigner: %v", err)
	}

	claims := Claims{}
	claims.Subject = "u1"

	signed, err := s.Sign(claims, Access)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	if _, err := s.Verify(signed, Access); !errors.Is(err, ErrExpiredToken) {
		t.Errorf("err = %v, want ErrExpiredToken", err)
	}
}

func TestVerify_Garbage(t *testing.T) {
	s := newTestSigner(t)
	if _, err := s.Verify("not-a-jwt", Access); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("err = %v, want ErrInvalidToken", err)
	}
}

func TestPair_TokensDiffer(t *testing.T) {
	s := newTestSigner(t)

	claims := Claims{TenantID: "t1"}
	claims.Subject = "u1"

	pair, err := s.Pair(claims)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatal("empty token in pair")
	}
	if pair.AccessToken == pair.RefreshToken {
		t.Error("access and refresh tokens are identical")
	}

	// Two consecutive pairs for the same subject must not collide (jti).
	pair2, err := s.Pair(claims)
	if err != nil {
		t.Fatalf("Pair: %v", err)
	}
	if pair.RefreshToken == pair2.RefreshToken {
		t.Error("consecutive refresh tokens are identical")
	}
}

func TestParseLifetime(t *testing.T) {
	tests := []struct {
		in      string
		want    time.Duration
		wantErr bool
	}{
		{"15m", 15 * time.Minute, false},
		{"36h", 36 * time.Hour, false},
		{"7d", 7 * 24 * time.Hour, false},
		{"2w", 14 * 24 * time.Hour, false},
		{" 7d ", 7 * 24 * time.Hour, false},
		{"", 0, true},
		{"-5m", 0, true},
		{"0d", 0, true},
		{"sevend", 0, true},
	}

	for _, tt := range tests {
		got, err := ParseLifetime(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Errorf("ParseLifetime(%q): expected error", tt.in)
			}
			continue
		}
		if err != nil {
			t.Errorf("ParseLifetime(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseLifetime(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestPrincipalContext(t *testing.T) {
	ctx := context.Background()

	if PrincipalFromContext(ctx) != nil {
		t.Error("expected nil principal from empty context")
	}

	claims := &Claims{TenantID: "t1"}
	claims.Subject = "u1"
	ctx = SetPrincipal(ctx, claims)

	got := PrincipalFromContext(ctx)
	if got == nil || got.Subject != "u1" {
		t.Errorf("got %v, want principal u1", got)
	}
}
