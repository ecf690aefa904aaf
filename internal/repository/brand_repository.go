package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

const brandColumns = `id, name, country, logo_url, created_at, updated_at`

// BrandRepository handles persistence for car brands.
type BrandRepository struct {
	db *sqlx.DB
}

// NewBrandRepository creates a new repository instance.
func NewBrandRepository(db *sqlx.DB) *BrandRepository {
	return &BrandRepository{db: db}
}

// List returns every brand ordered by name.
func (r *BrandRepository) List(ctx context.Context) ([]models.Brand, error) {
	const query = `SELECT ` + brandColumns + ` FROM brands ORDER BY name ASC`
	brands := []models.Brand{}
	if err := r.db.SelectContext(ctx, &brands, query); err != nil {
		return nil, fmt.Errorf("list brands: %w", err)
	}
	return brands, nil
}

// FindByID returns a brand by id.
func (r *BrandRepository) FindByID(ctx context.Context, id string) (*models.Brand, error) {
	const query = `SELECT ` + brandColumns + ` FROM brands WHERE id = $1`
	var brand models.Brand
	if err := r.db.GetContext(ctx, &brand, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find brand: %w", err)
	}
	return &brand, nil
}

// FindByName looks a brand up case-insensitively.
func (r *BrandRepository) FindByName(ctx context.Context, name string) (*models.Brand, error) {
	const query = `SELECT ` + brandColumns + ` FROM brands WHERE LOWER(name) = LOWER($1) LIMIT 1`
	var brand models.Brand
	if err := r.db.GetContext(ctx, &brand, query, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find brand by name: %w", err)
	}
	return &brand, nil
}

// ExistsByName checks case-insensitive uniqueness of a brand name.
func (r *BrandRepository) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM brands WHERE LOWER(name) = LOWER($1)"
	args := []interface{}{name}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check brand name: %w", err)
	}
	return true, nil
}

// Create persists a new brand.
func (r *BrandRepository) Create(ctx context.Context, brand *models.Brand) error {
	if brand.ID == "" {
		brand.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if brand.CreatedAt.IsZero() {
		brand.CreatedAt = now
	}
	brand.UpdatedAt = now

	const query = `INSERT INTO brands (id, name, country, logo_url, created_at, updated_at) VALUES (:id, :name, :country, :logo_url, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, brand); err != nil {
		return fmt.Errorf("create brand: %w", err)
	}
	return nil
}

// Update modifies a brand.
func (r *BrandRepository) Update(ctx context.Context, brand *models.Brand) error {
	brand.UpdatedAt = time.Now().UTC()
	const query = `UPDATE brands SET name = :name, country = :country, logo_url = :logo_url, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, brand)
	if err != nil {
		return fmt.Errorf("update brand: %w", err)
	}
	return expectAffected(res, "update brand")
}

// Delete removes a brand.
func (r *BrandRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM brands WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete brand: %w", err)
	}
	return expectAffected(res, "delete brand")
}
