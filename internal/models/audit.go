package models

import "time"

// AuditAction constants represent actions to be logged.
const (
	AuditActionRegister     = "REGISTER"
	AuditActionUserCreate   = "USER_CREATE"
	AuditActionUserUpdate   = "USER_UPDATE"
	AuditActionLogin        = "LOGIN"
	AuditActionLogout       = "LOGOUT"
	AuditActionRefresh      = "TOKEN_REFRESH"
	AuditActionScopesChange = "SCOPES_CHANGE"
	AuditActionUserBlock    = "USER_BLOCK"
	AuditActionUserUnblock  = "USER_UNBLOCK"
)

// AuditLog represents an audit trail record.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	UserID     *string   `db:"user_id" json:"user_id,omitempty"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resource_id,omitempty"`
	NewValues  []byte    `db:"new_values" json:"new_values,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ip_address"`
	UserAgent  string    `db:"user_agent" json:"user_agent"`
	CreatedAt  time.Time `db:"created_at" json:"created_at"`
}

// Catalog administration actions.
const (
	AuditActionBrandCreate   = "BRAND_CREATE"
	AuditActionBrandUpdate   = "BRAND_UPDATE"
	AuditActionBrandDelete   = "BRAND_DELETE"
	AuditActionModelCreate   = "MODEL_CREATE"
	AuditActionModelUpdate   = "MODEL_UPDATE"
	AuditActionModelDelete   = "MODEL_DELETE"
	AuditActionListingUpdate = "LISTING_UPDATE"
	AuditActionListingDelete = "LISTING_DELETE"
)
