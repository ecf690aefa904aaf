package models

// Recognised permission scopes.
const (
	ScopeUserRead       = "user:read"
	ScopeUserUpdate     = "user:update"
	ScopeCarRead        = "car:read"
	ScopeCarCreate      = "car:create"
	ScopeCarUpdate      = "car:update"
	ScopeCarDelete      = "car:delete"
	ScopeAdmin          = "admin"
	ScopeAdminCarCreate = "admin:car:create"
	ScopeAdminCarUpdate = "admin:car:update"
	ScopeAdminCarDelete = "admin:car:delete"
)

// AllowedScopes lists every scope the API recognises, in display order.
var AllowedScopes = []string{
	ScopeUserRead,
	ScopeUserUpdate,
	ScopeCarRead,
	ScopeCarCreate,
	ScopeCarUpdate,
	ScopeCarDelete,
	ScopeAdmin,
	ScopeAdminCarCreate,
	ScopeAdminCarUpdate,
	ScopeAdminCarDelete,
}

var allowedScopeSet = func() map[string]struct{} {
	set := make(map[string]struct{}, len(AllowedScopes))
	for _, s := range AllowedScopes {
		set[s] = struct{}{}
	}
	return set
}()

// IsKnownScope reports whether scope is in the allow-list.
func IsKnownScope(scope string) bool {
	_, ok := allowedScopeSet[scope]
	return ok
}

// UnknownScopes returns the entries of scopes missing from the allow-list, preserving order
// and dropping repeats.
func UnknownScopes(scopes []string) []string {
	var unknown []string
	seen := make(map[string]struct{})
	for _, s := range scopes {
		if IsKnownScope(s) {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		unknown = append(unknown, s)
	}
	return unknown
}

// ScopesRequest is the body of scope mutation endpoints.
type ScopesRequest struct {
	Scopes []string `json:"scopes" binding:"required" validate:"required"`
}

// UserScopes is returned by scope endpoints.
type UserScopes struct {
	UserID string   `json:"user_id"`
	Scopes []string `json:"scopes"`
}
