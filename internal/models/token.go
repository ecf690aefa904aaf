package models

import "time"

// BannedRefreshToken is an entry of the append-only refresh token denylist.
type BannedRefreshToken struct {
	ID        string    `db:"id" json:"id"`
	JTI       string    `db:"jti" json:"jti"`
	ExpiresAt time.Time `db:"expires_at" json:"expires_at"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}
