package handler

import (
	"context"
	"math"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/middleware"
	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type authService interface {
	Register(ctx context.Context, req models.RegisterRequest, meta models.RequestMeta) (*models.User, error)
	Login(ctx context.Context, req models.LoginRequest) (*models.AuthSession, error)
	Logout(ctx context.Context, refreshToken string, meta models.RequestMeta) error
	Refresh(ctx context.Context, refreshToken string, meta models.RequestMeta) (*models.AuthSession, error)
}

// CookieConfig controls the session cookies.
type CookieConfig struct {
	Secure bool
}

// AuthHandler wires HTTP endpoints to the auth service.
type AuthHandler struct {
	service authService
	cookies CookieConfig
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc authService, cookies CookieConfig) *AuthHandler {
	return &AuthHandler{service: svc, cookies: cookies}
}

// Register godoc
// @Summary Register account
// @Description Self-service registration with the default scopes
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RegisterRequest true "Registration payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req models.RegisterRequest
	if !bindJSON(c, &req, "invalid registration payload") {
		return
	}

	user, err := h.service.Register(c.Request.Context(), req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	response.Created(c, user)
}

// Login godoc
// @Summary Authenticate user
// @Description Authenticate user by email and password; sets access_token and refresh_token cookies
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.LoginRequest true "Login payload"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req models.LoginRequest
	if !bindJSON(c, &req, "invalid login payload") {
		return
	}
	req.IP = c.ClientIP()
	req.UserAgent = c.GetHeader("User-Agent")

	session, err := h.service.Login(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	h.writeSession(c, session)
}

// Refresh godoc
// @Summary Rotate tokens
// @Description Exchange the refresh token (cookie or body) for a new pair; the old refresh token stops working
// @Tags Authentication
// @Accept json
// @Produce json
// @Param payload body models.RefreshTokenRequest false "Refresh token for non-browser clients"
// @Success 200 {object} response.Envelope
// @Failure 401 {object} response.Envelope
// @Failure 429 {object} response.Envelope
// @Router /auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	raw := refreshToken(c)
	if raw == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "refresh token not found"))
		return
	}

	session, err := h.service.Refresh(c.Request.Context(), raw, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}

	h.writeSession(c, session)
}

// Logout godoc
// @Summary Logout current session
// @Description Revoke the refresh token and clear session cookies
// @Tags Authentication
// @Accept json
// @Param payload body models.RefreshTokenRequest false "Refresh token for non-browser clients"
// @Success 204
// @Failure 401 {object} response.Envelope
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	raw := refreshToken(c)
	h.clearCookies(c)
	if raw != "" {
		if err := h.service.Logout(c.Request.Context(), raw, requestMeta(c)); err != nil {
			response.Error(c, err)
			return
		}
	}
	response.NoContent(c)
}

func (h *AuthHandler) writeSession(c *gin.Context, session *models.AuthSession) {
	tokens := session.Tokens
	h.setCookie(c, middleware.AccessTokenCookie, tokens.AccessToken.Token, cookieMaxAge(tokens.AccessToken.ExpiresIn))
	h.setCookie(c, middleware.RefreshTokenCookie, tokens.RefreshToken.Token, cookieMaxAge(tokens.RefreshToken.ExpiresIn))

	response.OK(c, models.SessionResponse{
		TokenType:        models.BearerType,
		ExpiresIn:        tokens.AccessToken.ExpiresIn,
		ExpiresAt:        tokens.AccessToken.ExpiresAt,
		RefreshExpiresIn: tokens.RefreshToken.ExpiresIn,
		Tokens:           tokens,
		User:             session.User,
	})
}

func (h *AuthHandler) setCookie(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, maxAge, "/", "", h.cookies.Secure, true)
}

func (h *AuthHandler) clearCookies(c *gin.Context) {
	for _, name := range []string{middleware.AccessTokenCookie, middleware.RefreshTokenCookie} {
		if _, err := c.Cookie(name); err == nil {
			h.setCookie(c, name, "", -1)
		}
	}
}

// refreshToken reads the refresh_token cookie, falling back to a JSON body.
func refreshToken(c *gin.Context) string {
	if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil && cookie != "" {
		return cookie
	}
	if c.Request.Body == nil || c.Request.ContentLength == 0 {
		return ""
	}
	var req models.RefreshTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return ""
	}
	return req.RefreshToken
}

func cookieMaxAge(seconds int64) int {
	return int(math.Ceil(float64(seconds)))
}
