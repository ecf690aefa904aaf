package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/car-marketplace-api/internal/middleware"
	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

func claimsFromContext(c *gin.Context) *models.TokenClaims {
	claims, ok := middleware.Claims(c)
	if !ok {
		return nil
	}
	return claims
}

// requestMeta describes the caller for audit entries.
func requestMeta(c *gin.Context) models.RequestMeta {
	meta := models.RequestMeta{IP: c.ClientIP(), UserAgent: c.GetHeader("User-Agent")}
	if claims := claimsFromContext(c); claims != nil {
		meta.ActorID = claims.Subject
	}
	return meta
}

// bindJSON decodes the body into dest. Malformed JSON is a 400; tag failures are a 422 naming
// the offending field. It reports whether the handler may continue.
func bindJSON(c *gin.Context, dest interface{}, message string) bool {
	err := c.ShouldBindJSON(dest)
	if err == nil {
		return true
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		response.Error(c, validation.Error(err, message))
		return false
	}
	response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, message))
	return false
}
