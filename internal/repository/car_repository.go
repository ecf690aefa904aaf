package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

const (
	carSelect = `SELECT c.id, c.model_id, c.seller_id, c.year, c.price, c.mileage, c.condition, c.fuel_type, c.transmission, c.drive_type, c.color, c.engine_volume, c.power, c.description, c.vin, c.is_sold, c.photos, m.brand_id, b.name AS brand_name, m.name AS model_name, c.created_at, c.updated_at`
	carFrom   = `FROM cars c JOIN models m ON m.id = c.model_id JOIN brands b ON b.id = m.brand_id`

	defaultCarLimit = 100
	maxCarLimit     = 1000
)

// CarRepository handles persistence for marketplace listings.
type CarRepository struct {
	db *sqlx.DB
}

// NewCarRepository creates a new repository instance.
func NewCarRepository(db *sqlx.DB) *CarRepository {
	return &CarRepository{db: db}
}

// List returns listings matching filter, newest first, with the total match count.
func (r *CarRepository) List(ctx context.Context, filter models.CarFilter) ([]models.Car, int, error) {
	base := carFrom + " WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.ModelID != "" {
		conditions = append(conditions, fmt.Sprintf("c.model_id = $%d", len(args)+1))
		args = append(args, filter.ModelID)
	}
	if filter.BrandID != "" {
		conditions = append(conditions, fmt.Sprintf("m.brand_id = $%d", len(args)+1))
		args = append(args, filter.BrandID)
	}
	if filter.SellerID != "" {
		conditions = append(conditions, fmt.Sprintf("c.seller_id = $%d", len(args)+1))
		args = append(args, filter.SellerID)
	}
	if filter.Condition != "" {
		conditions = append(conditions, fmt.Sprintf("c.condition = $%d", len(args)+1))
		args = append(args, filter.Condition)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	limit := filter.Limit
	if limit <= 0 || limit > maxCarLimit {
		limit = defaultCarLimit
	}
	offset := filter.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf("%s %s ORDER BY c.created_at DESC LIMIT %d OFFSET %d", carSelect, base, limit, offset)
	cars := []models.Car{}
	if err := r.db.SelectContext(ctx, &cars, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list cars: %w", err)
	}

	var total int
	if err := r.db.GetContext(ctx, &total, "SELECT COUNT(*) "+base, args...); err != nil {
		return nil, 0, fmt.Errorf("count cars: %w", err)
	}

	return cars, total, nil
}

// FindByID returns a listing with its brand and model names.
func (r *CarRepository) FindByID(ctx context.Context, id string) (*models.Car, error) {
	query := carSelect + " " + carFrom + " WHERE c.id = $1"
	var car models.Car
	if err := r.db.GetContext(ctx, &car, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find car: %w", err)
	}
	return &car, nil
}

// ExistsByVIN checks case-insensitive uniqueness of a VIN.
func (r *CarRepository) ExistsByVIN(ctx context.Context, vin string, excludeID string) (bool, error) {
	query := "SELECT 1 FROM cars WHERE LOWER(vin) = LOWER($1)"
	args := []interface{}{vin}
	if excludeID != "" {
		query += " AND id <> $2"
		args = append(args, excludeID)
	}

	var exists int
	if err := r.db.GetContext(ctx, &exists, query+" LIMIT 1", args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("check vin: %w", err)
	}
	return true, nil
}

// CountActiveBySeller returns the number of unsold listings of a seller.
func (r *CarRepository) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM cars WHERE seller_id = $1 AND is_sold = FALSE`, sellerID); err != nil {
		return 0, fmt.Errorf("count seller cars: %w", err)
	}
	return total, nil
}

// CountByModel returns how many listings reference a model.
func (r *CarRepository) CountByModel(ctx context.Context, modelID string) (int, error) {
	var total int
	if err := r.db.GetContext(ctx, &total, `SELECT COUNT(*) FROM cars WHERE model_id = $1`, modelID); err != nil {
		return 0, fmt.Errorf("count model cars: %w", err)
	}
	return total, nil
}

// Create persists a new listing.
func (r *CarRepository) Create(ctx context.Context, car *models.Car) error {
	if car.ID == "" {
		car.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if car.CreatedAt.IsZero() {
		car.CreatedAt = now
	}
	car.UpdatedAt = now
	if car.Photos == nil {
		car.Photos = pq.StringArray{}
	}

	const query = `INSERT INTO cars (id, model_id, seller_id, year, price, mileage, condition, fuel_type, transmission, drive_type, color, engine_volume, power, description, vin, is_sold, photos, created_at, updated_at) VALUES (:id, :model_id, :seller_id, :year, :price, :mileage, :condition, :fuel_type, :transmission, :drive_type, :color, :engine_volume, :power, :description, :vin, :is_sold, :photos, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, car); err != nil {
		return fmt.Errorf("create car: %w", err)
	}
	return nil
}

// Update writes every mutable column of a listing.
func (r *CarRepository) Update(ctx context.Context, car *models.Car) error {
	car.UpdatedAt = time.Now().UTC()
	if car.Photos == nil {
		car.Photos = pq.StringArray{}
	}
	const query = `UPDATE cars SET model_id = :model_id, year = :year, price = :price, mileage = :mileage, condition = :condition, fuel_type = :fuel_type, transmission = :transmission, drive_type = :drive_type, color = :color, engine_volume = :engine_volume, power = :power, description = :description, vin = :vin, is_sold = :is_sold, photos = :photos, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, car)
	if err != nil {
		return fmt.Errorf("update car: %w", err)
	}
	return expectAffected(res, "update car")
}

// MarkSold flags a listing as sold.
func (r *CarRepository) MarkSold(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE cars SET is_sold = TRUE, updated_at = $2 WHERE id = $1`, id, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("mark car sold: %w", err)
	}
	return expectAffected(res, "mark car sold")
}

// Delete removes a listing.
func (r *CarRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM cars WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete car: %w", err)
	}
	return expectAffected(res, "delete car")
}
