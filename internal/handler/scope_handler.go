package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type scopeService interface {
	GetUserScopes(ctx context.Context, id string) ([]string, error)
	AddScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error)
	UpdateScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error)
	RemoveScopes(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error)
}

type scopeMutation func(ctx context.Context, id string, scopes []string, meta models.RequestMeta) ([]string, error)

// ScopeHandler exposes scope management.
type ScopeHandler struct {
	service scopeService
}

// NewScopeHandler constructs a scope handler.
func NewScopeHandler(svc scopeService) *ScopeHandler {
	return &ScopeHandler{service: svc}
}

// Mine godoc
// @Summary My scopes
// @Description Scopes currently granted to the caller
// @Tags Scopes
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /secured/scopes/me [get]
func (h *ScopeHandler) Mine(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	h.respond(c, claims.Subject)
}

// Get godoc
// @Summary User scopes
// @Tags Scopes
// @Produce json
// @Param id path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /secured/scopes/users/{id} [get]
func (h *ScopeHandler) Get(c *gin.Context) {
	h.respond(c, c.Param("id"))
}

// Add godoc
// @Summary Grant scopes
// @Tags Scopes
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.ScopesRequest true "Scopes to add"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /secured/scopes/users/{id} [post]
func (h *ScopeHandler) Add(c *gin.Context) {
	h.mutate(c, h.service.AddScopes)
}

// Replace godoc
// @Summary Replace scopes
// @Tags Scopes
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.ScopesRequest true "Complete scope set"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /secured/scopes/users/{id} [put]
func (h *ScopeHandler) Replace(c *gin.Context) {
	h.mutate(c, h.service.UpdateScopes)
}

// Remove godoc
// @Summary Revoke scopes
// @Tags Scopes
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param payload body models.ScopesRequest true "Scopes to remove"
// @Success 200 {object} response.Envelope
// @Router /secured/scopes/users/{id} [delete]
func (h *ScopeHandler) Remove(c *gin.Context) {
	h.mutate(c, h.service.RemoveScopes)
}

func (h *ScopeHandler) respond(c *gin.Context, id string) {
	scopes, err := h.service.GetUserScopes(c.Request.Context(), id)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.UserScopes{UserID: id, Scopes: scopes})
}

func (h *ScopeHandler) mutate(c *gin.Context, apply scopeMutation) {
	var req models.ScopesRequest
	if !bindJSON(c, &req, "invalid scopes payload") {
		return
	}

	id := c.Param("id")
	scopes, err := apply(c.Request.Context(), id, req.Scopes, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, models.UserScopes{UserID: id, Scopes: scopes})
}
