package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/logger"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

const (
	// ContextUserKey is the gin context key storing access token claims.
	ContextUserKey = "currentUser"

	// AccessTokenCookie and RefreshTokenCookie name the session cookies.
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"
)

type accessTokenDecoder interface {
	DecodeAccessToken(raw string) (*models.TokenClaims, error)
}

// Authenticate requires a valid access token from the access_token cookie or an
// Authorization: Bearer header.
func Authenticate(decoder accessTokenDecoder) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw := AccessToken(c)
		if raw == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		claims, err := decoder.DecodeAccessToken(raw)
		if err != nil {
			if appErrors.Is(err, appErrors.ErrTokenExpired) {
				response.Abort(c, appErrors.ErrTokenExpired)
				return
			}
			response.Abort(c, appErrors.Clone(appErrors.ErrInvalidToken, "could not validate credentials"))
			return
		}

		setClaims(c, claims)
		c.Next()
	}
}

// AccessToken returns the raw access token of the request, preferring the cookie.
func AccessToken(c *gin.Context) string {
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	return bearer(c.GetHeader("Authorization"))
}

// Claims returns the claims stored by Authenticate.
func Claims(c *gin.Context) (*models.TokenClaims, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	claims, ok := value.(*models.TokenClaims)
	return claims, ok && claims != nil
}

func setClaims(c *gin.Context, claims *models.TokenClaims) {
	c.Set(ContextUserKey, claims)
	c.Set(logger.ContextSubjectKey, claims.Subject)
}

func bearer(header string) string {
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], models.BearerType) {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
