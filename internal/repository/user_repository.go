package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

const userColumns = `id, email, password_hash, name, surname, active, superuser, scopes, blocked_at, last_login, created_at, updated_at`

// UserRepository provides database access for user accounts and their scopes.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new instance of UserRepository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail returns a user by exact email address.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE email = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, email); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by email: %w", err)
	}
	return &user, nil
}

// FindByID returns a user by identifier.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	const query = `SELECT ` + userColumns + ` FROM users WHERE id = $1 LIMIT 1`
	var user models.User
	if err := r.db.GetContext(ctx, &user, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find user by id: %w", err)
	}
	return &user, nil
}

// Create inserts a new user.
func (r *UserRepository) Create(ctx context.Context, user *models.User) error {
	if user.ID == "" {
		user.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	if user.Scopes == nil {
		user.Scopes = pq.StringArray{}
	}

	const query = `INSERT INTO users (id, email, password_hash, name, surname, active, superuser, scopes, created_at, updated_at) VALUES (:id, :email, :password_hash, :name, :surname, :active, :superuser, :scopes, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, user); err != nil {
		return fmt.Errorf("create user: %w", err)
	}
	return nil
}

// Update writes the mutable profile fields. It returns sql.ErrNoRows when the user does not exist.
func (r *UserRepository) Update(ctx context.Context, user *models.User) error {
	user.UpdatedAt = time.Now().UTC()
	const query = `UPDATE users SET email = :email, password_hash = :password_hash, name = :name, surname = :surname, active = :active, superuser = :superuser, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, user)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	return expectAffected(res, "update user")
}

// UpdateLastLogin updates the last_login timestamp for a user.
func (r *UserRepository) UpdateLastLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE users SET last_login = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts, ts); err != nil {
		return fmt.Errorf("update last login: %w", err)
	}
	return nil
}

// SetBlockedAt sets or clears the block timestamp.
func (r *UserRepository) SetBlockedAt(ctx context.Context, id string, blockedAt *time.Time) error {
	const query = `UPDATE users SET blocked_at = $2, updated_at = $3 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, blockedAt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("set blocked_at: %w", err)
	}
	return expectAffected(res, "set blocked_at")
}

// GetScopes returns the stored scopes of a user.
func (r *UserRepository) GetScopes(ctx context.Context, id string) ([]string, error) {
	const query = `SELECT scopes FROM users WHERE id = $1`
	return r.scopes(ctx, "get scopes", query, id)
}

// AddScopes appends scopes the user does not have yet, keeping the existing order.
func (r *UserRepository) AddScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	const query = `UPDATE users SET scopes = ARRAY(
		SELECT s FROM unnest(scopes || $2::text[]) WITH ORDINALITY AS t(s, ord) GROUP BY s ORDER BY MIN(ord)
	), updated_at = $3 WHERE id = $1 RETURNING scopes`
	return r.scopes(ctx, "add scopes", query, id, pq.Array(scopes), time.Now().UTC())
}

// ReplaceScopes overwrites the scopes of a user.
func (r *UserRepository) ReplaceScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	const query = `UPDATE users SET scopes = $2::text[], updated_at = $3 WHERE id = $1 RETURNING scopes`
	return r.scopes(ctx, "replace scopes", query, id, pq.Array(scopes), time.Now().UTC())
}

// RemoveScopes drops the given scopes from a user.
func (r *UserRepository) RemoveScopes(ctx context.Context, id string, scopes []string) ([]string, error) {
	const query = `UPDATE users SET scopes = ARRAY(
		SELECT s FROM unnest(scopes) WITH ORDINALITY AS t(s, ord) WHERE NOT (s = ANY($2::text[])) ORDER BY ord
	), updated_at = $3 WHERE id = $1 RETURNING scopes`
	return r.scopes(ctx, "remove scopes", query, id, pq.Array(scopes), time.Now().UTC())
}

func (r *UserRepository) scopes(ctx context.Context, op, query string, args ...interface{}) ([]string, error) {
	var scopes pq.StringArray
	if err := r.db.GetContext(ctx, &scopes, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if scopes == nil {
		return []string{}, nil
	}
	return []string(scopes), nil
}

// CreateAuditLog stores an audit log entry.
func (r *UserRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}
	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, new_values, ip_address, user_agent, created_at) VALUES (:id, :user_id, :action, :resource, :resource_id, :new_values, :ip_address, :user_agent, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}

func expectAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
