package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// BannedTokenRepository stores the jti denylist of consumed or revoked refresh tokens.
// Rows are never deleted.
type BannedTokenRepository struct {
	db *sqlx.DB
}

// NewBannedTokenRepository creates a new instance of BannedTokenRepository.
func NewBannedTokenRepository(db *sqlx.DB) *BannedTokenRepository {
	return &BannedTokenRepository{db: db}
}

// BanJTI records jti as banned and reports whether this call inserted the row. Banning the
// same jti again is a no-op that returns false.
func (r *BannedTokenRepository) BanJTI(ctx context.Context, jti string, expiresAt time.Time) (bool, error) {
	const query = `INSERT INTO banned_refresh_tokens (id, jti, expires_at, created_at) VALUES ($1, $2, $3, $4) ON CONFLICT (jti) DO NOTHING`
	result, err := r.db.ExecContext(ctx, query, uuid.NewString(), jti, expiresAt.UTC(), time.Now().UTC())
	if err != nil {
		return false, fmt.Errorf("ban jti: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("ban jti rows affected: %w", err)
	}
	return affected == 1, nil
}

// IsBanned reports whether jti is on the denylist.
func (r *BannedTokenRepository) IsBanned(ctx context.Context, jti string) (bool, error) {
	const query = `SELECT EXISTS(SELECT 1 FROM banned_refresh_tokens WHERE jti = $1)`
	var banned bool
	if err := r.db.GetContext(ctx, &banned, query, jti); err != nil {
		return false, fmt.Errorf("check banned jti: %w", err)
	}
	return banned, nil
}
