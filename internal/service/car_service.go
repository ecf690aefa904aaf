package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/lib/pq"
	"go.uber.org/zap"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/internal/validation"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

const (
	catalogCachePattern = "catalog:*"
	brandsCacheKey      = "catalog:brands"
	modelsCacheKeyFmt   = "catalog:models:%s"

	minModelYear = 1900
	vinLength    = 17

	defaultCarLimit = 100
	maxCarLimit     = 1000
)

type brandRepository interface {
	List(ctx context.Context) ([]models.Brand, error)
	FindByID(ctx context.Context, id string) (*models.Brand, error)
	ExistsByName(ctx context.Context, name string, excludeID string) (bool, error)
	Create(ctx context.Context, brand *models.Brand) error
	Update(ctx context.Context, brand *models.Brand) error
	Delete(ctx context.Context, id string) error
}

type modelRepository interface {
	List(ctx context.Context, brandID string) ([]models.Model, error)
	FindByID(ctx context.Context, id string) (*models.Model, error)
	ExistsByName(ctx context.Context, brandID, name, excludeID string) (bool, error)
	CountByBrand(ctx context.Context, brandID string) (int, error)
	Create(ctx context.Context, model *models.Model) error
	Update(ctx context.Context, model *models.Model) error
	Delete(ctx context.Context, id string) error
}

type carRepository interface {
	List(ctx context.Context, filter models.CarFilter) ([]models.Car, int, error)
	FindByID(ctx context.Context, id string) (*models.Car, error)
	ExistsByVIN(ctx context.Context, vin string, excludeID string) (bool, error)
	CountActiveBySeller(ctx context.Context, sellerID string) (int, error)
	CountByModel(ctx context.Context, modelID string) (int, error)
	Create(ctx context.Context, car *models.Car) error
	Update(ctx context.Context, car *models.Car) error
	MarkSold(ctx context.Context, id string) error
	Delete(ctx context.Context, id string) error
}

// CarServiceConfig tunes catalog behaviour.
type CarServiceConfig struct {
	CacheTTL    time.Duration
	MaxListings int
}

// CarServiceParams groups constructor dependencies.
type CarServiceParams struct {
	Brands    brandRepository
	Models    modelRepository
	Cars      carRepository
	Cache     *CacheService
	Validator *validator.Validate
	Logger    *zap.Logger
	Config    CarServiceConfig
}

// CarService implements brand, model and listing management.
type CarService struct {
	brands    brandRepository
	models    modelRepository
	cars      carRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	cfg       CarServiceConfig
	now       func() time.Time
}

// NewCarService constructs a CarService.
func NewCarService(params CarServiceParams) *CarService {
	logger := params.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	validate := params.Validator
	if validate == nil {
		validate = validation.New()
	}
	cfg := params.Config
	if cfg.MaxListings <= 0 {
		cfg.MaxListings = 10
	}
	return &CarService{
		brands:    params.Brands,
		models:    params.Models,
		cars:      params.Cars,
		cache:     params.Cache,
		validator: validate,
		logger:    logger,
		cfg:       cfg,
		now:       time.Now,
	}
}

// ListBrands returns every brand, served from cache when possible.
func (s *CarService) ListBrands(ctx context.Context) ([]models.Brand, error) {
	var cached []models.Brand
	if s.fromCache(ctx, brandsCacheKey, &cached) {
		return cached, nil
	}
	brands, err := s.brands.List(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list brands")
	}
	s.persistCache(ctx, brandsCacheKey, brands)
	return brands, nil
}

// GetBrand returns a brand by id.
func (s *CarService) GetBrand(ctx context.Context, id string) (*models.Brand, error) {
	if err := checkUUID("id", id); err != nil {
		return nil, err
	}
	brand, err := s.brands.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "brand", id)
	}
	return brand, nil
}

// CreateBrand adds a brand; names are unique ignoring case.
func (s *CarService) CreateBrand(ctx context.Context, req models.CreateBrandRequest) (*models.Brand, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid brand payload")
	}
	if err := s.ensureBrandNameFree(ctx, req.Name, ""); err != nil {
		return nil, err
	}

	brand := &models.Brand{Name: req.Name, Country: req.Country, LogoURL: req.LogoURL}
	if err := s.brands.Create(ctx, brand); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create brand")
	}
	s.invalidateCatalog(ctx)
	return brand, nil
}

// UpdateBrand applies a partial update to a brand.
func (s *CarService) UpdateBrand(ctx context.Context, id string, req models.UpdateBrandRequest) (*models.Brand, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid brand payload")
	}
	brand, err := s.GetBrand(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.Name != nil {
		name := strings.TrimSpace(*req.Name)
		if !strings.EqualFold(name, brand.Name) {
			if err := s.ensureBrandNameFree(ctx, name, brand.ID); err != nil {
				return nil, err
			}
		}
		brand.Name = name
	}
	if req.Country != nil {
		brand.Country = req.Country
	}
	if req.LogoURL != nil {
		brand.LogoURL = req.LogoURL
	}

	if err := s.brands.Update(ctx, brand); err != nil {
		return nil, writeError(err, "brand", id, "update")
	}
	s.invalidateCatalog(ctx)
	return brand, nil
}

// DeleteBrand removes a brand that no model references.
func (s *CarService) DeleteBrand(ctx context.Context, id string) error {
	if err := checkUUID("id", id); err != nil {
		return err
	}
	count, err := s.models.CountByBrand(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count brand models")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrInvalidRequest, "brand cannot be deleted while models reference it")
	}
	if err := s.brands.Delete(ctx, id); err != nil {
		return writeError(err, "brand", id, "delete")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CarService) ensureBrandNameFree(ctx context.Context, name, excludeID string) error {
	exists, err := s.brands.ExistsByName(ctx, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check brand name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateEntry, fmt.Sprintf("brand %q already exists", name))
	}
	return nil
}

// ListModels returns models, optionally restricted to one brand.
func (s *CarService) ListModels(ctx context.Context, brandID string) ([]models.Model, error) {
	if brandID != "" {
		if err := checkUUID("brand_id", brandID); err != nil {
			return nil, err
		}
	}
	key := fmt.Sprintf(modelsCacheKeyFmt, cacheSegment(brandID))
	var cached []models.Model
	if s.fromCache(ctx, key, &cached) {
		return cached, nil
	}
	list, err := s.models.List(ctx, brandID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list models")
	}
	s.persistCache(ctx, key, list)
	return list, nil
}

// GetModel returns a model by id.
func (s *CarService) GetModel(ctx context.Context, id string) (*models.Model, error) {
	if err := checkUUID("id", id); err != nil {
		return nil, err
	}
	model, err := s.models.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "model", id)
	}
	return model, nil
}

// CreateModel adds a model to an existing brand.
func (s *CarService) CreateModel(ctx context.Context, req models.CreateModelRequest) (*models.Model, error) {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid model payload")
	}
	if _, err := s.GetBrand(ctx, req.BrandID); err != nil {
		return nil, err
	}
	if err := s.ensureModelNameFree(ctx, req.BrandID, req.Name, ""); err != nil {
		return nil, err
	}
	if err := s.checkProductionRange(req.YearFrom, req.YearTo); err != nil {
		return nil, err
	}

	model := &models.Model{BrandID: req.BrandID, Name: req.Name, YearFrom: req.YearFrom, YearTo: req.YearTo}
	if err := s.models.Create(ctx, model); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create model")
	}
	s.invalidateCatalog(ctx)
	return model, nil
}

// UpdateModel applies a partial update to a model.
func (s *CarService) UpdateModel(ctx context.Context, id string, req models.UpdateModelRequest) (*models.Model, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid model payload")
	}
	model, err := s.GetModel(ctx, id)
	if err != nil {
		return nil, err
	}

	if req.BrandID != nil && *req.BrandID != model.BrandID {
		if _, err := s.GetBrand(ctx, *req.BrandID); err != nil {
			return nil, err
		}
		model.BrandID = *req.BrandID
	}
	if req.Name != nil {
		model.Name = strings.TrimSpace(*req.Name)
	}
	if req.BrandID != nil || req.Name != nil {
		if err := s.ensureModelNameFree(ctx, model.BrandID, model.Name, model.ID); err != nil {
			return nil, err
		}
	}
	if req.YearFrom != nil {
		model.YearFrom = req.YearFrom
	}
	if req.YearTo != nil {
		model.YearTo = req.YearTo
	}
	if err := s.checkProductionRange(model.YearFrom, model.YearTo); err != nil {
		return nil, err
	}

	if err := s.models.Update(ctx, model); err != nil {
		return nil, writeError(err, "model", id, "update")
	}
	s.invalidateCatalog(ctx)
	return model, nil
}

// DeleteModel removes a model that no listing references.
func (s *CarService) DeleteModel(ctx context.Context, id string) error {
	if err := checkUUID("id", id); err != nil {
		return err
	}
	count, err := s.cars.CountByModel(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count model cars")
	}
	if count > 0 {
		return appErrors.Clone(appErrors.ErrInvalidRequest, "model cannot be deleted while cars reference it")
	}
	if err := s.models.Delete(ctx, id); err != nil {
		return writeError(err, "model", id, "delete")
	}
	s.invalidateCatalog(ctx)
	return nil
}

func (s *CarService) ensureModelNameFree(ctx context.Context, brandID, name, excludeID string) error {
	exists, err := s.models.ExistsByName(ctx, brandID, name, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check model name")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateEntry, fmt.Sprintf("model %q already exists for this brand", name))
	}
	return nil
}

func (s *CarService) checkProductionRange(from, to *int) error {
	maxYear := s.now().Year() + 5
	bounds := []struct {
		field string
		year  *int
	}{{"year_from", from}, {"year_to", to}}
	for _, b := range bounds {
		if b.year != nil && (*b.year < minModelYear || *b.year > maxYear) {
			return appErrors.Validation(b.field, fmt.Sprintf("%s must be between %d and %d", b.field, minModelYear, maxYear), nil)
		}
	}
	if from != nil && to != nil && *from > *to {
		e := appErrors.Clone(appErrors.ErrInvalidDateRange,
			fmt.Sprintf("production start year (%d) is after end year (%d)", *from, *to))
		e.Field = "year_range"
		return e
	}
	return nil
}

// ListCars returns listings matching filter together with the total match count.
func (s *CarService) ListCars(ctx context.Context, filter models.CarFilter) ([]models.Car, *models.Pagination, error) {
	if filter.Limit == 0 {
		filter.Limit = defaultCarLimit
	}
	if filter.Limit < 1 || filter.Limit > maxCarLimit {
		return nil, nil, appErrors.Validation("limit", fmt.Sprintf("limit must be between 1 and %d", maxCarLimit), nil)
	}
	if filter.Offset < 0 {
		return nil, nil, appErrors.Validation("offset", "offset must not be negative", nil)
	}
	ids := []struct{ field, id string }{{"model_id", filter.ModelID}, {"brand_id", filter.BrandID}, {"seller_id", filter.SellerID}}
	for _, f := range ids {
		if f.id != "" {
			if err := checkUUID(f.field, f.id); err != nil {
				return nil, nil, err
			}
		}
	}
	if filter.Condition != "" && filter.Condition != models.ConditionNew && filter.Condition != models.ConditionUsed {
		return nil, nil, appErrors.Validation("condition", "condition must be one of: new used", nil)
	}

	cars, total, err := s.cars.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list cars")
	}
	return cars, &models.Pagination{Limit: filter.Limit, Offset: filter.Offset, TotalCount: total}, nil
}

// GetCar returns a listing by id.
func (s *CarService) GetCar(ctx context.Context, id string) (*models.Car, error) {
	if err := checkUUID("id", id); err != nil {
		return nil, err
	}
	car, err := s.cars.FindByID(ctx, id)
	if err != nil {
		return nil, lookupError(err, "car", id)
	}
	return car, nil
}

// CreateCar publishes a listing. A seller may hold at most MaxListings unsold listings.
func (s *CarService) CreateCar(ctx context.Context, req models.CreateCarRequest) (*models.Car, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid car payload")
	}

	model, err := s.GetModel(ctx, req.ModelID)
	if err != nil {
		return nil, err
	}
	if err := checkCarYear(model, req.Year); err != nil {
		return nil, err
	}
	vin := normaliseVIN(req.VIN)
	if err := s.checkVIN(ctx, vin, ""); err != nil {
		return nil, err
	}
	if err := checkPrice(req.Price); err != nil {
		return nil, err
	}
	if req.SellerID != nil && *req.SellerID != "" {
		count, err := s.cars.CountActiveBySeller(ctx, *req.SellerID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to count seller listings")
		}
		if count >= s.cfg.MaxListings {
			return nil, appErrors.WithDetails(appErrors.ErrTooManyListings,
				fmt.Sprintf("active listing limit (%d) reached", s.cfg.MaxListings),
				map[string]interface{}{"max_listings": s.cfg.MaxListings})
		}
	}

	car := &models.Car{
		ModelID:      req.ModelID,
		SellerID:     req.SellerID,
		Year:         req.Year,
		Price:        req.Price,
		Mileage:      req.Mileage,
		Condition:    req.Condition,
		FuelType:     req.FuelType,
		Transmission: req.Transmission,
		DriveType:    req.DriveType,
		Color:        req.Color,
		EngineVolume: req.EngineVolume,
		Power:        req.Power,
		Description:  req.Description,
		VIN:          vin,
		Photos:       pq.StringArray(req.Photos),
	}
	if err := s.cars.Create(ctx, car); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create car")
	}
	return s.reload(ctx, car)
}

// UpdateCar applies a partial update to an unsold listing. A non-empty sellerID restricts the
// update to that seller's own listings.
func (s *CarService) UpdateCar(ctx context.Context, id, sellerID string, req models.UpdateCarRequest) (*models.Car, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validation.Error(err, "invalid car payload")
	}
	car, err := s.ownedCar(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	if car.IsSold {
		return nil, appErrors.Clone(appErrors.ErrCarNotAvailable, "sold cars cannot be updated")
	}

	if req.ModelID != nil {
		car.ModelID = *req.ModelID
	}
	if req.Year != nil {
		car.Year = *req.Year
	}
	model, err := s.GetModel(ctx, car.ModelID)
	if err != nil {
		return nil, err
	}
	if err := checkCarYear(model, car.Year); err != nil {
		return nil, err
	}

	if req.VIN != nil {
		vin := normaliseVIN(req.VIN)
		if vin != nil && (car.VIN == nil || !strings.EqualFold(*car.VIN, *vin)) {
			if err := s.checkVIN(ctx, vin, car.ID); err != nil {
				return nil, err
			}
		}
		car.VIN = vin
	}
	if req.Price != nil {
		car.Price = *req.Price
	}
	if err := checkPrice(car.Price); err != nil {
		return nil, err
	}

	if req.Mileage != nil {
		car.Mileage = *req.Mileage
	}
	if req.Condition != nil {
		car.Condition = *req.Condition
	}
	if req.FuelType != nil {
		car.FuelType = *req.FuelType
	}
	if req.Transmission != nil {
		car.Transmission = *req.Transmission
	}
	if req.DriveType != nil {
		car.DriveType = *req.DriveType
	}
	if req.Color != nil {
		car.Color = req.Color
	}
	if req.EngineVolume != nil {
		car.EngineVolume = req.EngineVolume
	}
	if req.Power != nil {
		car.Power = req.Power
	}
	if req.Description != nil {
		car.Description = req.Description
	}
	if req.Photos != nil {
		car.Photos = pq.StringArray(req.Photos)
	}

	if err := s.cars.Update(ctx, car); err != nil {
		return nil, writeError(err, "car", id, "update")
	}
	return s.reload(ctx, car)
}

// DeleteCar removes an unsold listing.
func (s *CarService) DeleteCar(ctx context.Context, id, sellerID string) error {
	car, err := s.ownedCar(ctx, id, sellerID)
	if err != nil {
		return err
	}
	if car.IsSold {
		return appErrors.Clone(appErrors.ErrCarNotAvailable, "sold cars cannot be deleted")
	}
	if err := s.cars.Delete(ctx, id); err != nil {
		return writeError(err, "car", id, "delete")
	}
	return nil
}

// MarkSold flags a listing as sold.
func (s *CarService) MarkSold(ctx context.Context, id, sellerID string) (*models.Car, error) {
	car, err := s.ownedCar(ctx, id, sellerID)
	if err != nil {
		return nil, err
	}
	if car.IsSold {
		return nil, appErrors.Clone(appErrors.ErrCarNotAvailable, "car is already marked as sold")
	}
	if err := s.cars.MarkSold(ctx, id); err != nil {
		return nil, writeError(err, "car", id, "update")
	}
	car.IsSold = true
	return s.reload(ctx, car)
}

func (s *CarService) ownedCar(ctx context.Context, id, sellerID string) (*models.Car, error) {
	car, err := s.GetCar(ctx, id)
	if err != nil {
		return nil, err
	}
	if sellerID != "" && (car.SellerID == nil || *car.SellerID != sellerID) {
		return nil, appErrors.Clone(appErrors.ErrPermissionDenied, "listing belongs to another seller")
	}
	return car, nil
}

func (s *CarService) checkVIN(ctx context.Context, vin *string, excludeID string) error {
	if vin == nil {
		return nil
	}
	if len(*vin) != vinLength {
		return appErrors.WithDetails(appErrors.ErrInvalidVIN,
			fmt.Sprintf("VIN must be exactly %d characters", vinLength),
			map[string]interface{}{"length": vinLength})
	}
	exists, err := s.cars.ExistsByVIN(ctx, *vin, excludeID)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check VIN")
	}
	if exists {
		return appErrors.Clone(appErrors.ErrDuplicateVIN, fmt.Sprintf("a car with VIN %s already exists", *vin))
	}
	return nil
}

// reload returns the stored listing with joined brand and model names; the written value is
// returned if the read fails.
func (s *CarService) reload(ctx context.Context, car *models.Car) (*models.Car, error) {
	stored, err := s.cars.FindByID(ctx, car.ID)
	if err != nil {
		s.logger.Warn("failed to reload car", zap.String("car_id", car.ID), zap.Error(err))
		return car, nil
	}
	return stored, nil
}

func (s *CarService) fromCache(ctx context.Context, key string, dest interface{}) bool {
	if s.cache == nil {
		return false
	}
	hit, err := s.cache.Get(ctx, key, dest)
	return err == nil && hit
}

func (s *CarService) persistCache(ctx context.Context, key string, value interface{}) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("catalog cache write failed", zap.String("key", key), zap.Error(err))
	}
}

func (s *CarService) invalidateCatalog(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, catalogCachePattern); err != nil {
		s.logger.Warn("catalog cache invalidation failed", zap.Error(err))
	}
}

func checkCarYear(model *models.Model, year int) error {
	outOfRange := (model.YearFrom != nil && year < *model.YearFrom) || (model.YearTo != nil && year > *model.YearTo)
	if !outOfRange {
		return nil
	}
	details := map[string]interface{}{}
	if model.YearFrom != nil {
		details["year_from"] = *model.YearFrom
	}
	if model.YearTo != nil {
		details["year_to"] = *model.YearTo
	}
	return appErrors.WithDetails(appErrors.ErrModelYear,
		fmt.Sprintf("year %d is outside the production range of model %s", year, model.Name), details)
}

func checkPrice(price float64) error {
	if price <= 0 {
		return appErrors.WithDetails(appErrors.ErrInvalidPrice, "price must be positive", map[string]interface{}{"min_price": 1})
	}
	return nil
}

func normaliseVIN(vin *string) *string {
	if vin == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*vin)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func checkUUID(field, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return appErrors.Validation(field, fmt.Sprintf("%s must be a valid UUID", field), nil)
	}
	return nil
}

func lookupError(err error, resource, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load "+resource)
}

func writeError(err error, resource, id, op string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, fmt.Sprintf("%s %s not found", resource, id))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to %s %s", op, resource))
}

func cacheSegment(id string) string {
	if id == "" {
		return "all"
	}
	return id
}
