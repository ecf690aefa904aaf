package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"path"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

type fakeBrandRepo struct {
	items     map[string]*models.Brand
	listCalls int
}

func (f *fakeBrandRepo) List(ctx context.Context) ([]models.Brand, error) {
	f.listCalls++
	out := make([]models.Brand, 0, len(f.items))
	for _, b := range f.items {
		out = append(out, *b)
	}
	return out, nil
}

func (f *fakeBrandRepo) FindByID(ctx context.Context, id string) (*models.Brand, error) {
	b, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *b
	return &clone, nil
}

func (f *fakeBrandRepo) ExistsByName(ctx context.Context, name string, excludeID string) (bool, error) {
	for id, b := range f.items {
		if id != excludeID && strings.EqualFold(b.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeBrandRepo) Create(ctx context.Context, brand *models.Brand) error {
	brand.ID = uuid.NewString()
	clone := *brand
	f.items[brand.ID] = &clone
	return nil
}

func (f *fakeBrandRepo) Update(ctx context.Context, brand *models.Brand) error {
	if _, ok := f.items[brand.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *brand
	f.items[brand.ID] = &clone
	return nil
}

func (f *fakeBrandRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type fakeModelRepo struct {
	items map[string]*models.Model
}

func (f *fakeModelRepo) List(ctx context.Context, brandID string) ([]models.Model, error) {
	out := []models.Model{}
	for _, m := range f.items {
		if brandID == "" || m.BrandID == brandID {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (f *fakeModelRepo) FindByID(ctx context.Context, id string) (*models.Model, error) {
	m, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *m
	return &clone, nil
}

func (f *fakeModelRepo) ExistsByName(ctx context.Context, brandID, name, excludeID string) (bool, error) {
	for id, m := range f.items {
		if id != excludeID && m.BrandID == brandID && strings.EqualFold(m.Name, name) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeModelRepo) CountByBrand(ctx context.Context, brandID string) (int, error) {
	n := 0
	for _, m := range f.items {
		if m.BrandID == brandID {
			n++
		}
	}
	return n, nil
}

func (f *fakeModelRepo) Create(ctx context.Context, model *models.Model) error {
	model.ID = uuid.NewString()
	clone := *model
	f.items[model.ID] = &clone
	return nil
}

func (f *fakeModelRepo) Update(ctx context.Context, model *models.Model) error {
	if _, ok := f.items[model.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *model
	f.items[model.ID] = &clone
	return nil
}

func (f *fakeModelRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type fakeCarRepo struct {
	items      map[string]*models.Car
	lastFilter models.CarFilter
}

func (f *fakeCarRepo) List(ctx context.Context, filter models.CarFilter) ([]models.Car, int, error) {
	f.lastFilter = filter
	out := []models.Car{}
	for _, c := range f.items {
		out = append(out, *c)
	}
	return out, len(out), nil
}

func (f *fakeCarRepo) FindByID(ctx context.Context, id string) (*models.Car, error) {
	c, ok := f.items[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	clone := *c
	return &clone, nil
}

func (f *fakeCarRepo) ExistsByVIN(ctx context.Context, vin string, excludeID string) (bool, error) {
	for id, c := range f.items {
		if id != excludeID && c.VIN != nil && strings.EqualFold(*c.VIN, vin) {
			return true, nil
		}
	}
	return false, nil
}

func (f *fakeCarRepo) CountActiveBySeller(ctx context.Context, sellerID string) (int, error) {
	n := 0
	for _, c := range f.items {
		if c.SellerID != nil && *c.SellerID == sellerID && !c.IsSold {
			n++
		}
	}
	return n, nil
}

func (f *fakeCarRepo) CountByModel(ctx context.Context, modelID string) (int, error) {
	n := 0
	for _, c := range f.items {
		if c.ModelID == modelID {
			n++
		}
	}
	return n, nil
}

func (f *fakeCarRepo) Create(ctx context.Context, car *models.Car) error {
	car.ID = uuid.NewString()
	clone := *car
	f.items[car.ID] = &clone
	return nil
}

func (f *fakeCarRepo) Update(ctx context.Context, car *models.Car) error {
	if _, ok := f.items[car.ID]; !ok {
		return sql.ErrNoRows
	}
	clone := *car
	f.items[car.ID] = &clone
	return nil
}

func (f *fakeCarRepo) MarkSold(ctx context.Context, id string) error {
	c, ok := f.items[id]
	if !ok {
		return sql.ErrNoRows
	}
	c.IsSold = true
	return nil
}

func (f *fakeCarRepo) Delete(ctx context.Context, id string) error {
	if _, ok := f.items[id]; !ok {
		return sql.ErrNoRows
	}
	delete(f.items, id)
	return nil
}

type mapCacheRepo struct {
	data map[string][]byte
}

func (m *mapCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.data[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *mapCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.data[key] = raw
	return nil
}

func (m *mapCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	for key := range m.data {
		if ok, _ := path.Match(pattern, key); ok {
			delete(m.data, key)
		}
	}
	return nil
}

type catalogFixture struct {
	svc    *CarService
	brands *fakeBrandRepo
	models *fakeModelRepo
	cars   *fakeCarRepo
	cache  *mapCacheRepo
}

func newCatalogFixture(maxListings int) *catalogFixture {
	f := &catalogFixture{
		brands: &fakeBrandRepo{items: map[string]*models.Brand{}},
		models: &fakeModelRepo{items: map[string]*models.Model{}},
		cars:   &fakeCarRepo{items: map[string]*models.Car{}},
		cache:  &mapCacheRepo{data: map[string][]byte{}},
	}
	f.svc = NewCarService(CarServiceParams{
		Brands: f.brands,
		Models: f.models,
		Cars:   f.cars,
		Cache:  NewCacheService(f.cache, nil, time.Minute, nil, true),
		Config: CarServiceConfig{MaxListings: maxListings},
	})
	return f
}

func intPtr(v int) *int { return &v }
func strPtr(v string) *string { return &v }
func floatPtr(v float64) *float64 { return &v }

func (f *catalogFixture) seedModel(t *testing.T, from, to *int) *models.Model {
	t.Helper()
	brand, err := f.svc.CreateBrand(context.Background(), models.CreateBrandRequest{Name: "Toyota"})
	require.NoError(t, err)
	model, err := f.svc.CreateModel(context.Background(), models.CreateModelRequest{BrandID: brand.ID, Name: "Corolla", YearFrom: from, YearTo: to})
	require.NoError(t, err)
	return model
}

func carRequest(modelID string, year int) models.CreateCarRequest {
	return models.CreateCarRequest{
		ModelID:      modelID,
		Year:         year,
		Price:        15000,
		Condition:    models.ConditionUsed,
		FuelType:     models.FuelPetrol,
		Transmission: models.TransmissionAutomatic,
		DriveType:    models.DriveFront,
	}
}

func TestCreateBrandRejectsDuplicateNameIgnoringCase(t *testing.T) {
	f := newCatalogFixture(0)
	_, err := f.svc.CreateBrand(context.Background(), models.CreateBrandRequest{Name: "BMW"})
	require.NoError(t, err)

	_, err = f.svc.CreateBrand(context.Background(), models.CreateBrandRequest{Name: " bmw "})
	requireAppError(t, err, appErrors.ErrDuplicateEntry)
}

func TestDeleteBrandRefusedWhileModelsExist(t *testing.T) {
	f := newCatalogFixture(0)
	model := f.seedModel(t, nil, nil)

	err := f.svc.DeleteBrand(context.Background(), model.BrandID)
	requireAppError(t, err, appErrors.ErrInvalidRequest)

	require.NoError(t, f.svc.DeleteModel(context.Background(), model.ID))
	require.NoError(t, f.svc.DeleteBrand(context.Background(), model.BrandID))

	err = f.svc.DeleteBrand(context.Background(), model.BrandID)
	requireAppError(t, err, appErrors.ErrNotFound)
}

func TestBrandListingIsCachedAndInvalidated(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()
	_, err := f.svc.CreateBrand(ctx, models.CreateBrandRequest{Name: "Audi"})
	require.NoError(t, err)

	first, err := f.svc.ListBrands(ctx)
	require.NoError(t, err)
	second, err := f.svc.ListBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, first, 1)
	assert.Equal(t, first[0].Name, second[0].Name)
	assert.Equal(t, 1, f.brands.listCalls)

	_, err = f.svc.CreateBrand(ctx, models.CreateBrandRequest{Name: "Skoda"})
	require.NoError(t, err)
	third, err := f.svc.ListBrands(ctx)
	require.NoError(t, err)
	assert.Len(t, third, 2)
	assert.Equal(t, 2, f.brands.listCalls)
}

func TestCreateModelRules(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()
	model := f.seedModel(t, intPtr(2000), intPtr(2010))

	_, err := f.svc.CreateModel(ctx, models.CreateModelRequest{BrandID: uuid.NewString(), Name: "Ghost"})
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.CreateModel(ctx, models.CreateModelRequest{BrandID: model.BrandID, Name: "COROLLA"})
	requireAppError(t, err, appErrors.ErrDuplicateEntry)

	_, err = f.svc.CreateModel(ctx, models.CreateModelRequest{BrandID: model.BrandID, Name: "Camry", YearFrom: intPtr(2015), YearTo: intPtr(2010)})
	appErr := requireAppError(t, err, appErrors.ErrInvalidDateRange)
	assert.Equal(t, "year_range", appErr.Field)

	_, err = f.svc.CreateModel(ctx, models.CreateModelRequest{BrandID: model.BrandID, Name: "Crown", YearFrom: intPtr(1850)})
	requireAppError(t, err, appErrors.ErrValidation)
}

func TestUpdateModelKeepsRangeConsistent(t *testing.T) {
	f := newCatalogFixture(0)
	model := f.seedModel(t, intPtr(2000), intPtr(2010))

	_, err := f.svc.UpdateModel(context.Background(), model.ID, models.UpdateModelRequest{YearFrom: intPtr(2012)})
	requireAppError(t, err, appErrors.ErrInvalidDateRange)

	updated, err := f.svc.UpdateModel(context.Background(), model.ID, models.UpdateModelRequest{Name: strPtr("Corolla Cross")})
	require.NoError(t, err)
	assert.Equal(t, "Corolla Cross", updated.Name)
}

func TestCreateCarRules(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()
	model := f.seedModel(t, intPtr(2000), intPtr(2010))

	_, err := f.svc.CreateCar(ctx, carRequest(uuid.NewString(), 2005))
	requireAppError(t, err, appErrors.ErrNotFound)

	_, err = f.svc.CreateCar(ctx, carRequest(model.ID, 2015))
	appErr := requireAppError(t, err, appErrors.ErrModelYear)
	assert.Equal(t, 2000, appErr.Details["year_from"])
	assert.Equal(t, 2010, appErr.Details["year_to"])

	req := carRequest(model.ID, 2005)
	req.VIN = strPtr("SHORTVIN")
	_, err = f.svc.CreateCar(ctx, req)
	requireAppError(t, err, appErrors.ErrInvalidVIN)

	req = carRequest(model.ID, 2005)
	req.Price = 0
	_, err = f.svc.CreateCar(ctx, req)
	requireAppError(t, err, appErrors.ErrInvalidPrice)

	req = carRequest(model.ID, 2005)
	req.VIN = strPtr("JTDBR32E720123456")
	car, err := f.svc.CreateCar(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "JTDBR32E720123456", *car.VIN)

	req.VIN = strPtr("jtdbr32e720123456")
	_, err = f.svc.CreateCar(ctx, req)
	requireAppError(t, err, appErrors.ErrDuplicateVIN)
}

func TestCreateCarEnforcesListingLimit(t *testing.T) {
	f := newCatalogFixture(2)
	ctx := context.Background()
	model := f.seedModel(t, nil, nil)
	seller := uuid.NewString()

	var first *models.Car
	for i := 0; i < 2; i++ {
		req := carRequest(model.ID, 2020)
		req.SellerID = &seller
		car, err := f.svc.CreateCar(ctx, req)
		require.NoError(t, err)
		if first == nil {
			first = car
		}
	}

	req := carRequest(model.ID, 2020)
	req.SellerID = &seller
	_, err := f.svc.CreateCar(ctx, req)
	appErr := requireAppError(t, err, appErrors.ErrTooManyListings)
	assert.Equal(t, 2, appErr.Details["max_listings"])

	_, err = f.svc.MarkSold(ctx, first.ID, seller)
	require.NoError(t, err)
	_, err = f.svc.CreateCar(ctx, req)
	require.NoError(t, err)
}

func TestSoldCarsAreFrozen(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()
	model := f.seedModel(t, nil, nil)
	car, err := f.svc.CreateCar(ctx, carRequest(model.ID, 2020))
	require.NoError(t, err)

	sold, err := f.svc.MarkSold(ctx, car.ID, "")
	require.NoError(t, err)
	assert.True(t, sold.IsSold)

	_, err = f.svc.MarkSold(ctx, car.ID, "")
	requireAppError(t, err, appErrors.ErrCarNotAvailable)
	_, err = f.svc.UpdateCar(ctx, car.ID, "", models.UpdateCarRequest{Price: floatPtr(9000)})
	requireAppError(t, err, appErrors.ErrCarNotAvailable)
	err = f.svc.DeleteCar(ctx, car.ID, "")
	requireAppError(t, err, appErrors.ErrCarNotAvailable)
}

func TestUpdateCarOwnershipAndRules(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()
	model := f.seedModel(t, intPtr(2000), intPtr(2010))
	seller := uuid.NewString()
	req := carRequest(model.ID, 2005)
	req.SellerID = &seller
	car, err := f.svc.CreateCar(ctx, req)
	require.NoError(t, err)

	_, err = f.svc.UpdateCar(ctx, car.ID, uuid.NewString(), models.UpdateCarRequest{Price: floatPtr(1)})
	requireAppError(t, err, appErrors.ErrPermissionDenied)

	_, err = f.svc.UpdateCar(ctx, car.ID, seller, models.UpdateCarRequest{Year: intPtr(2011)})
	requireAppError(t, err, appErrors.ErrModelYear)

	_, err = f.svc.UpdateCar(ctx, car.ID, seller, models.UpdateCarRequest{Price: floatPtr(-5)})
	requireAppError(t, err, appErrors.ErrInvalidPrice)

	updated, err := f.svc.UpdateCar(ctx, car.ID, seller, models.UpdateCarRequest{Price: floatPtr(12500), Mileage: intPtr(42000)})
	require.NoError(t, err)
	assert.Equal(t, 12500.0, updated.Price)
	assert.Equal(t, 42000, updated.Mileage)

	err = f.svc.DeleteCar(ctx, car.ID, uuid.NewString())
	requireAppError(t, err, appErrors.ErrPermissionDenied)
	require.NoError(t, f.svc.DeleteCar(ctx, car.ID, seller))
}

func TestListCarsValidatesPaging(t *testing.T) {
	f := newCatalogFixture(0)
	ctx := context.Background()

	_, page, err := f.svc.ListCars(ctx, models.CarFilter{})
	require.NoError(t, err)
	assert.Equal(t, 100, page.Limit)
	assert.Equal(t, 100, f.cars.lastFilter.Limit)

	_, _, err = f.svc.ListCars(ctx, models.CarFilter{Limit: 1001})
	requireAppError(t, err, appErrors.ErrValidation)
	_, _, err = f.svc.ListCars(ctx, models.CarFilter{Limit: 10, Offset: -1})
	requireAppError(t, err, appErrors.ErrValidation)
	_, _, err = f.svc.ListCars(ctx, models.CarFilter{Condition: "broken"})
	requireAppError(t, err, appErrors.ErrValidation)
	_, _, err = f.svc.ListCars(ctx, models.CarFilter{BrandID: "nope"})
	appErr := requireAppError(t, err, appErrors.ErrValidation)
	assert.Equal(t, "brand_id", appErr.Field)
}
