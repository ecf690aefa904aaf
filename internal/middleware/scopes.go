package middleware

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

// ScopeSource loads the current scopes of a user.
type ScopeSource interface {
	GetUserScopes(ctx context.Context, id string) ([]string, error)
}

// RequireScopes grants access when the authenticated user holds every required scope or the
// admin scope. With a nil source the scopes embedded in the access token are used. Anything but
// a missing scope fails closed with 401.
func RequireScopes(source ScopeSource, required ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok || claims.Subject == "" {
			response.Abort(c, appErrors.ErrUnauthorized)
			return
		}

		granted := claims.Scopes
		if source != nil {
			scopes, err := source.GetUserScopes(c.Request.Context(), claims.Subject)
			if err != nil {
				response.Abort(c, appErrors.Clone(appErrors.ErrUnauthorized, "could not validate credentials"))
				return
			}
			granted = scopes
		}

		missing := MissingScopes(granted, required)
		if len(missing) > 0 {
			response.Abort(c, appErrors.WithDetails(appErrors.ErrPermissionDenied, "not enough permissions",
				map[string]interface{}{"missing_scopes": missing}))
			return
		}
		c.Next()
	}
}

// MissingScopes returns the entries of required that granted does not cover. The admin scope
// covers everything.
func MissingScopes(granted, required []string) []string {
	have := make(map[string]struct{}, len(granted))
	for _, s := range granted {
		if s == models.ScopeAdmin {
			return nil
		}
		have[s] = struct{}{}
	}
	var missing []string
	for _, s := range required {
		if _, ok := have[s]; !ok {
			missing = append(missing, s)
		}
	}
	return missing
}
