// Package token creates and verifies the signed credentials used by the
// auth subsystem. There are two independent signing domains: short-lived
// access tokens and long-lived refresh tokens. Each domain has its own
// HMAC secret, so a token signed for one domain can never verify in the
// other regardless of its payload.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Domain selects the signing domain of a token.
type Domain string

const (
	// Access is the short-lived domain used to authorize API calls.
	Access Domain = "access"

	// Refresh is the long-lived domain exchanged for new token pairs.
	Refresh Domain = "refresh"
)

// Default lifetimes, overridable via configuration.
const (
	DefaultAccessTTL  = 15 * time.Minute
	DefaultRefreshTTL = 7 * 24 * time.Hour
)

// Sentinel errors.
var (
	// ErrInvalidToken is returned for malformed tokens, bad signatures,
	// and tokens signed for the wrong domain.
	ErrInvalidToken = errors.New("token is invalid")

	// ErrExpiredToken is returned when a structurally valid token has
	// passed its expiry.
	ErrExpiredToken = errors.New("token is expired")
)

// Claims is the payload carried by both token domains. Subject holds the
// user id; iat, exp and jti are filled in by Sign.
type Claims struct {
	Email    string `json:"email,omitempty"`
	Role     string `json:"role,omitempty"`
	TenantID string `json:"tenantId,omitempty"`
	jwt.RegisteredClaims
}

// Pair bundles a freshly issued access and refresh token.
type Pair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
}

// Config holds the signer secrets and lifetimes.
type Config struct {
	AccessSecret  string
	RefreshSecret string
	AccessTTL     time.Duration // default: 15m
	RefreshTTL    time.Duration // default: 7d
}

// Signer signs and verifies tokens for both domains.
type Signer struct {
	access  domainKey
	refresh domainKey
}

type domainKey struct {
	secret []byte
	ttl    time.Duration
}

// NewSigner validates the configuration and returns a Signer.
// The two secrets must be set and must differ: domain separation is
// enforced by disjoint keys, not by a type claim in the payload.
func NewSigner(cfg Config) (*Signer, error) {
	if cfg.AccessSecret == "" {
		return nil, fmt.Errorf("access secret is required")
	}
	if cfg.RefreshSecret == "" {
		return nil, fmt.Errorf("refresh secret is required")
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, fmt.Errorf("access and refresh secrets must differ")
	}

	if cfg.AccessTTL == 0 {
		cfg.AccessTTL = DefaultAccessTTL
	}
	if cfg.RefreshTTL == 0 {
		cfg.RefreshTTL = DefaultRefreshTTL
	}

	return &Signer{
		access:  domainKey{secret: []byte(cfg.AccessSecret), ttl: cfg.AccessTTL},
		refresh: domainKey{secret: []byte(cfg.RefreshSecret), ttl: cfg.RefreshTTL},
	}, nil
}

// Sign issues a token in the given domain. The claims' iat and exp are
// set from the domain lifetime; jti gets a fresh UUID so that two tokens
// issued for the same subject in the same second still differ.
func (s *Signer) Sign(claims Claims, d Domain) (string, error) {
	if claims.Subject == "" {
		return "", fmt.Errorf("claims subject is required")
	}

	key, err := s.key(d)
	if err != nil {
		return "", err
	}

	now := time.Now()
	claims.ID = uuid.NewString()
	claims.IssuedAt = jwt.NewNumericDate(now)
	claims.ExpiresAt = jwt.NewNumericDate(now.Add(key.ttl))

	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString(key.secret)
	if err != nil {
		return "", fmt.Errorf("signing %s token: %w", d, err)
	}
	return signed, nil
}

// Verify checks the signature and expiry of a token in the given domain
// and returns its claims. A token signed for the other domain fails with
// ErrInvalidToken because the secrets are disjoint.
func (s *Signer) Verify(tokenStr string, d Domain) (*Claims, error) {
	key, err := s.key(d)
	if err != nil {
		return nil, err
	}

	claims := &Claims{}
	_, err = jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (any, error) {
		return key.secret, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		default:
			return nil, ErrInvalidToken
		}
	}

	if claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Pair issues a fresh access+refresh token pair for the same claims.
func (s *Signer) Pair(claims Claims) (*Pair, error) {
	access, err := s.Sign(claims, Access)
	if err != nil {
		return nil, err
	}
	refresh, err := s.Sign(claims, Refresh)
	if err != nil {
		return nil, err
	}
	return &Pair{AccessToken: access, RefreshToken: refresh}, nil
}

// RefreshTTL reports the configured refresh lifetime, used by callers to
// compute the persisted expiry of refresh token records.
func (s *Signer) RefreshTTL() time.Duration {
	return s.refresh.ttl
}

func (s *Signer) key(d Domain) (domainKey, error) {
	switch d {
	case Access:
		return s.access, nil
	case Refresh:
		return s.refresh, nil
	default:
		return domainKey{}, fmt.Errorf("unknown token domain %q", d)
	}
}
