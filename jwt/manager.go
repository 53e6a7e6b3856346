package jwt

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrMissingSecret is returned by NewManager when no signing secret is configured.
	ErrMissingSecret = errors.New("token signing secret is not configured")
	// ErrInvalidConfig is returned by NewManager for unusable lifetime, issuer or audience values.
	ErrInvalidConfig = errors.New("invalid token configuration")
	// ErrEmptySubject is returned by Issue when the identity is blank.
	ErrEmptySubject = errors.New("token subject is empty")

	// ErrMalformed means the token could not be parsed.
	ErrMalformed = errors.New("token malformed")
	// ErrSignatureInvalid means the signature does not match the payload under the configured secret.
	ErrSignatureInvalid = errors.New("token signature invalid")
	// ErrTokenExpired means the token is past its expiresAt claim.
	ErrTokenExpired = errors.New("token expired")
	// ErrIssuerMismatch means the issuer claim differs from the configured issuer.
	ErrIssuerMismatch = errors.New("token issuer mismatch")
	// ErrAudienceMismatch means the audience claim differs from the configured audience.
	ErrAudienceMismatch = errors.New("token audience mismatch")
)

// Config holds the codec settings. Secret is copied by NewManager and never
// mutated afterwards.
type Config struct {
	Secret   []byte
	Issuer   string
	Audience string
	Lifetime time.Duration

	// Clock defaults to time.Now.
	Clock func() time.Time
}

// Claims is the signed payload. Field names on the wire are fixed.
type Claims struct {
	Issuer      string           `json:"issuer"`
	Audience    jwt.ClaimStrings `json:"audience"`
	Subject     string           `json:"subject"`
	IssuedAt    *jwt.NumericDate `json:"issuedAt"`
	Authorities []string         `json:"authorities"`
	ExpiresAt   *jwt.NumericDate `json:"expiresAt"`
}

var _ jwt.Claims = (*Claims)(nil)

// The accessors below implement jwt.Claims over the portal's own field names,
// so the registered-claim validator reads issuer, audience and expiresAt.
func (c *Claims) GetExpirationTime() (*jwt.NumericDate, error) { return c.ExpiresAt, nil }
func (c *Claims) GetIssuedAt() (*jwt.NumericDate, error)       { return c.IssuedAt, nil }
func (c *Claims) GetNotBefore() (*jwt.NumericDate, error)      { return nil, nil }
func (c *Claims) GetIssuer() (string, error)                   { return c.Issuer, nil }
func (c *Claims) GetSubject() (string, error)                  { return c.Subject, nil }
func (c *Claims) GetAudience() (jwt.ClaimStrings, error)       { return c.Audience, nil }

// Verified is the result of a successful Verify.
type Verified struct {
	Subject     string
	Authorities []string
	IssuedAt    time.Time
	ExpiresAt   time.Time
}

// Manager issues and verifies HS256 tokens. It holds no mutable state and is
// safe for concurrent use.
type Manager struct {
	secret   []byte
	issuer   string
	audience string
	lifetime time.Duration
	now      func() time.Time
	parser   *jwt.Parser
}

// NewManager validates cfg and returns a ready codec. An empty secret fails
// here rather than at first use.
func NewManager(cfg Config) (*Manager, error) {
	if len(cfg.Secret) == 0 {
		return nil, ErrMissingSecret
	}
	if cfg.Lifetime <= 0 {
		return nil, fmt.Errorf("%w: lifetime must be positive", ErrInvalidConfig)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	audience := strings.TrimSpace(cfg.Audience)
	if issuer == "" || audience == "" {
		return nil, fmt.Errorf("%w: issuer and audience are required", ErrInvalidConfig)
	}

	now := cfg.Clock
	if now == nil {
		now = time.Now
	}

	secret := make([]byte, len(cfg.Secret))
	copy(secret, cfg.Secret)

	m := &Manager{
		secret:   secret,
		issuer:   issuer,
		audience: audience,
		lifetime: cfg.Lifetime,
		now:      now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithStrictDecoding(),
		jwt.WithExpirationRequired(),
		jwt.WithIssuer(issuer),
		jwt.WithAudience(audience),
		jwt.WithTimeFunc(now),
	)
	return m, nil
}

// Lifetime reports the configured token lifetime.
func (m *Manager) Lifetime() time.Duration {
	return m.lifetime
}

// Issue signs a token for subject carrying a copy of authorities.
func (m *Manager) Issue(subject string, authorities []string) (string, error) {
	if strings.TrimSpace(subject) == "" {
		return "", ErrEmptySubject
	}

	now := m.now()
	list := make([]string, len(authorities))
	copy(list, authorities)

	claims := &Claims{
		Issuer:      m.issuer,
		Audience:    jwt.ClaimStrings{m.audience},
		Subject:     subject,
		IssuedAt:    jwt.NewNumericDate(now),
		Authorities: list,
		ExpiresAt:   jwt.NewNumericDate(now.Add(m.lifetime)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

// Verify checks signature, expiry, issuer and audience, in that order, and
// returns the subject and authorities without any lookup.
func (m *Manager) Verify(tokenStr string) (*Verified, error) {
	tokenStr = strings.TrimSpace(tokenStr)
	if tokenStr == "" {
		return nil, ErrMalformed
	}

	claims := &Claims{}
	token, err := m.parser.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
		if t.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing algorithm: %s", t.Method.Alg())
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, classify(err)
	}
	if !token.Valid {
		return nil, ErrSignatureInvalid
	}
	if strings.TrimSpace(claims.Subject) == "" || claims.IssuedAt == nil {
		return nil, ErrMalformed
	}

	authorities := claims.Authorities
	if authorities == nil {
		authorities = []string{}
	}
	return &Verified{
		Subject:     claims.Subject,
		Authorities: authorities,
		IssuedAt:    claims.IssuedAt.Time,
		ExpiresAt:   claims.ExpiresAt.Time,
	}, nil
}

// classify maps library errors onto the codec's taxonomy. Claims errors are
// joined by the library, so precedence is decided here.
func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenMalformed),
		errors.Is(err, jwt.ErrTokenRequiredClaimMissing):
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	case errors.Is(err, jwt.ErrTokenSignatureInvalid),
		errors.Is(err, jwt.ErrTokenUnverifiable):
		return fmt.Errorf("%w: %v", ErrSignatureInvalid, err)
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrTokenExpired
	case errors.Is(err, jwt.ErrTokenInvalidIssuer):
		return ErrIssuerMismatch
	case errors.Is(err, jwt.ErrTokenInvalidAudience):
		return ErrAudienceMismatch
	default:
		return fmt.Errorf("%w: %v", ErrMalformed, err)
	}
}
