package models

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token types carried in the "type" claim.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"

	// BearerType is reported to clients alongside issued tokens.
	BearerType = "Bearer"
)

// LoginRequest holds credentials for authenticating a user.
type LoginRequest struct {
	Email     string `json:"email" binding:"required" validate:"required"`
	Password  string `json:"password" binding:"required" validate:"required"`
	IP        string `json:"-"`
	UserAgent string `json:"-"`
}

// RequestMeta describes the client behind a request for audit purposes.
// ActorID is empty for anonymous callers.
type RequestMeta struct {
	ActorID   string
	IP        string
	UserAgent string
}

// TokenClaims is the JWT payload shared by access and refresh tokens.
// Scopes are only populated on access tokens; the jti (RegisteredClaims.ID)
// only on refresh tokens.
type TokenClaims struct {
	Scopes []string `json:"scopes,omitempty"`
	Type   string   `json:"type"`
	jwt.RegisteredClaims
}

// UserID returns the token subject.
func (c *TokenClaims) UserID() string {
	if c == nil {
		return ""
	}
	return c.Subject
}

// AccessToken is a signed short-lived token.
type AccessToken struct {
	Token     string    `json:"access_token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
}

// RefreshToken is a signed single-use token identified by its jti.
type RefreshToken struct {
	Token     string    `json:"refresh_token"`
	TokenType string    `json:"token_type"`
	ExpiresIn int64     `json:"expires_in"`
	ExpiresAt time.Time `json:"expires_at"`
	JTI       string    `json:"-"`
}

// TokenPair is returned by login and refresh.
type TokenPair struct {
	AccessToken  AccessToken  `json:"access"`
	RefreshToken RefreshToken `json:"refresh"`
}

// SessionResponse is returned by login and refresh. Browsers use the cookies set alongside it;
// other clients read the tokens from the body.
type SessionResponse struct {
	TokenType        string     `json:"token_type"`
	ExpiresIn        int64      `json:"expires_in"`
	ExpiresAt        time.Time  `json:"expires_at"`
	RefreshExpiresIn int64      `json:"refresh_expires_in"`
	Tokens           *TokenPair `json:"tokens"`
	User             *User      `json:"user,omitempty"`
}

// RefreshTokenRequest carries a refresh token for clients that do not use cookies.
type RefreshTokenRequest struct {
	RefreshToken string `json:"refresh_token"`
}

// AuthSession is the outcome of a successful login or refresh.
type AuthSession struct {
	Tokens *TokenPair
	User   *User
}
