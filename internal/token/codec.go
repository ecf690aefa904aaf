// Package token signs and verifies the JWTs handed out by the auth service.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

var (
	// ErrTokenExpired is returned by Decode when exp has passed.
	ErrTokenExpired = errors.New("token expired")
	// ErrInvalidToken covers every other signature, structure or claim failure.
	ErrInvalidToken = errors.New("invalid token")
)

var signingMethods = map[string]jwt.SigningMethod{
	"HS256": jwt.SigningMethodHS256,
	"HS384": jwt.SigningMethodHS384,
	"HS512": jwt.SigningMethodHS512,
}

// Config defines how tokens are signed and how long they live.
type Config struct {
	Secret     string
	Algorithm  string
	AccessTTL  time.Duration
	RefreshTTL time.Duration
	Issuer     string
}

// Codec issues and decodes access and refresh tokens.
type Codec struct {
	cfg    Config
	method jwt.SigningMethod
	key    []byte
	now    func() time.Time
}

// Option customises a Codec.
type Option func(*Codec)

// WithClock overrides the time source.
func WithClock(now func() time.Time) Option {
	return func(c *Codec) {
		if now != nil {
			c.now = now
		}
	}
}

// NewCodec validates cfg and returns a Codec.
func NewCodec(cfg Config, opts ...Option) (*Codec, error) {
	if cfg.Secret == "" {
		return nil, errors.New("token secret is required")
	}
	if cfg.Algorithm == "" {
		cfg.Algorithm = "HS256"
	}
	method, ok := signingMethods[cfg.Algorithm]
	if !ok {
		return nil, fmt.Errorf("unsupported signing algorithm %q", cfg.Algorithm)
	}
	if cfg.AccessTTL <= 0 || cfg.RefreshTTL <= 0 {
		return nil, errors.New("token lifetimes must be positive")
	}

	c := &Codec{
		cfg:    cfg,
		method: method,
		key:    []byte(cfg.Secret),
		now:    func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// AccessTTL is the lifetime of access tokens.
func (c *Codec) AccessTTL() time.Duration { return c.cfg.AccessTTL }

// RefreshTTL is the lifetime of refresh tokens.
func (c *Codec) RefreshTTL() time.Duration { return c.cfg.RefreshTTL }

// IssueAccess signs an access token for userID carrying scopes.
func (c *Codec) IssueAccess(userID string, scopes []string) (*models.AccessToken, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.cfg.AccessTTL)

	if scopes == nil {
		scopes = []string{}
	}
	claims := &models.TokenClaims{
		Scopes:           scopes,
		Type:             models.TokenTypeAccess,
		RegisteredClaims: c.registered(userID, "", issuedAt, expiresAt),
	}

	signed, err := c.sign(claims)
	if err != nil {
		return nil, err
	}

	return &models.AccessToken{
		Token:     signed,
		TokenType: models.BearerType,
		ExpiresIn: int64(c.cfg.AccessTTL.Seconds()),
		ExpiresAt: expiresAt,
	}, nil
}

// IssueRefresh signs a refresh token for userID with a fresh jti.
func (c *Codec) IssueRefresh(userID string) (*models.RefreshToken, error) {
	issuedAt := c.now()
	expiresAt := issuedAt.Add(c.cfg.RefreshTTL)
	jti := uuid.NewString()

	claims := &models.TokenClaims{
		Type:             models.TokenTypeRefresh,
		RegisteredClaims: c.registered(userID, jti, issuedAt, expiresAt),
	}

	signed, err := c.sign(claims)
	if err != nil {
		return nil, err
	}

	return &models.RefreshToken{
		Token:     signed,
		TokenType: models.BearerType,
		ExpiresIn: int64(c.cfg.RefreshTTL.Seconds()),
		ExpiresAt: expiresAt,
		JTI:       jti,
	}, nil
}

// IssuePair issues an access and a refresh token for the same user.
func (c *Codec) IssuePair(userID string, scopes []string) (*models.TokenPair, error) {
	access, err := c.IssueAccess(userID, scopes)
	if err != nil {
		return nil, err
	}
	refresh, err := c.IssueRefresh(userID)
	if err != nil {
		return nil, err
	}
	return &models.TokenPair{AccessToken: *access, RefreshToken: *refresh}, nil
}

// Decode verifies raw and returns its claims. It returns ErrTokenExpired once exp
// has passed and ErrInvalidToken for anything else.
func (c *Codec) Decode(raw string) (*models.TokenClaims, error) {
	if raw == "" {
		return nil, ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{c.method.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(c.now),
	}
	if c.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(c.cfg.Issuer))
	}

	claims := &models.TokenClaims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return c.key, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrTokenExpired
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !parsed.Valid {
		return nil, ErrInvalidToken
	}

	return claims, nil
}

func (c *Codec) registered(subject, jti string, issuedAt, expiresAt time.Time) jwt.RegisteredClaims {
	return jwt.RegisteredClaims{
		Issuer:    c.cfg.Issuer,
		Subject:   subject,
		ID:        jti,
		IssuedAt:  jwt.NewNumericDate(issuedAt),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
}

func (c *Codec) sign(claims *models.TokenClaims) (string, error) {
	signed, err := jwt.NewWithClaims(c.method, claims).SignedString(c.key)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", claims.Type, err)
	}
	return signed, nil
}
