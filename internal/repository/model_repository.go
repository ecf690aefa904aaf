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

const modelColumns = `id, brand_id, name, year_from, year_to, created_at, updated_at`

// ModelRepository handles persistence for brand model lines.
type ModelRepository struct {
	db *sqlx.DB
}

// NewModelRepository creates a new repository instance.
func NewModelRepository(db *sqlx.DB) *ModelRepository {
	return &ModelRepository{db: db}
}

// List returns models, optionally restricted to one brand.
func (r *ModelRepository) List(ctx context.Context, brandID string) ([]models.Model, error) {
	query := `SELECT ` + modelColumns + ` FROM models`
	var args []interface{}
	if brandID != "" {
		query += ` WHERE brand_id = $1`
		args = append(args, brandID)
	}
	query += ` ORDER BY name ASC`

	list := []models.Model{}
	if err := r.db.SelectContext(ctx, &list, query, args...); err != nil {
		return nil, fmt.Errorf("list models: %w", err)
	}
	return list, nil
}

// FindByID returns a model by id.
func (r *ModelRepository) FindByID(ctx context.Context, id string) (*models.Model, error) {
	const query = `SELECT ` + modelColumns + ` FROM models WHERE id = $1`
	var model models.Model
	if err := r.db.GetContext(ctx, &model, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find model: %w", err)
	}
	return &model, nil
}

// FindByName looks a model up within a brand case-insensitively.
func (r *ModelRepository) FindByName(ctx context.Context, brandID, name string) (*models.Model, error) {
	const query = `SELECT ` + modelColumns + ` FROM models WHERE brand_id = $1 AND LOWER(name) = LOWER($2) LIMIT 1`
	var model models.Model
	if err := r.db.GetContext(ctx, &model, query, brandID, name); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find model by name: %w", err)
	}
	return &model, nil
}

// ExistsByName checks case-insensitive uniqueness of a model name within a brand.
func (r *ModelRepository) ExistsByName(ctx context.Context, brandID, name, excludeID string) (bool, error) {
	query := "SELECT 1 FROM models WHERE brand_id = $1 AND LOWER(name) = LOWER($2)"
	args := []interface{}{brandID, name}
	if excludeID != "" {
		query += " AND id <> $3"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check model name: %w", err)
	}
	return true, nil
}

// CountByBrand returns how many models reference a brand.
func (r *ModelRepository) CountByBrand(ctx context.Context, brandID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM models WHERE brand_id = $1`, brandID); err != nil {
		return 0, fmt.Errorf("count models: %w", err)
	}
	return total, nil
}

// Create persists a new model.
func (r *ModelRepository) Create(ctx context.Context, model *models.Model) error {
	if model.ID == "" {
		model.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if model.CreatedAt.IsZero() {
		model.CreatedAt = now
	}
	model.UpdatedAt = now

	const query = `INSERT INTO models (id, brand_id, name, year_from, year_to, created_at, updated_at) VALUES (:id, :brand_id, :name, :year_from, :year_to, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, model); err != nil {
		return fmt.Errorf("create model: %w", err)
	}
	return nil
}

// Update modifies a model.
func (r *ModelRepository) Update(ctx context.Context, model *models.Model) error {
	model.UpdatedAt = time.Now().UTC()
	const query = `UPDATE models SET brand_id = :brand_id, name = :name, year_from = :year_from, year_to = :year_to, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, model)
	if err != nil {
		return fmt.Errorf("update model: %w", err)
	}
	return expectAffected(res, "update model")
}

// Delete removes a model.
func (r *ModelRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM models WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete model: %w", err)
	}
	return expectAffected(res, "delete model")
}
