package catalogcsv

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

const header = "brand_name,brand_country,brand_logo_url,model_name,model_year_from,model_year_to,car_year,car_price,car_mileage,car_condition,car_fuel_type,car_transmission,car_drive_type,car_color,car_engine_volume,car_power,car_description,car_vin,car_photos\n"

func TestReadParsesRows(t *testing.T) {
	data := header +
		"Lada,Russia,,Niva,1977,,2015,5000.5,120000,used,petrol,manual,full,white,1.7,83,Solid,,https://a.example/1.jpg;https://a.example/2.jpg\n" +
		"Tesla,USA,https://logo.example/t.png,Model 3,2017,2024,2021,35000,20000,used,electric,automatic,rear,,null,,,5YJ3E1EA7KF000001,\n"

	rows, err := Read(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, rows, 2)

	first := rows[0]
	assert.Equal(t, 2, first.Line)
	assert.Equal(t, "Lada", first.BrandName)
	require.NotNil(t, first.BrandCountry)
	assert.Equal(t, "Russia", *first.BrandCountry)
	assert.Nil(t, first.BrandLogoURL)
	require.NotNil(t, first.ModelYearFrom)
	assert.Equal(t, 1977, *first.ModelYearFrom)
	assert.Nil(t, first.ModelYearTo)
	assert.Equal(t, 5000.5, first.Car.Price)
	assert.Equal(t, models.ConditionUsed, first.Car.Condition)
	require.NotNil(t, first.Car.EngineVolume)
	assert.Equal(t, 1.7, *first.Car.EngineVolume)
	assert.Equal(t, []string{"https://a.example/1.jpg", "https://a.example/2.jpg"}, first.Car.Photos)
	assert.Nil(t, first.Car.VIN)

	second := rows[1]
	assert.Nil(t, second.Car.EngineVolume)
	assert.Nil(t, second.Car.Power)
	assert.Nil(t, second.Car.Color)
	assert.Empty(t, second.Car.Photos)
	require.NotNil(t, second.Car.VIN)
	assert.Equal(t, "5YJ3E1EA7KF000001", *second.Car.VIN)
}

func TestReadReportsMissingColumns(t *testing.T) {
	_, err := Read(strings.NewReader("brand_name,model_name\nLada,Niva\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "car_year")
}

func TestReadReportsBadValuesWithLine(t *testing.T) {
	data := header + "Lada,,,Niva,,,soon,1,1,used,petrol,manual,full,,,,,,\n"

	_, err := Read(strings.NewReader(data))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Contains(t, err.Error(), "car_year")
}

func TestReadEmpty(t *testing.T) {
	_, err := Read(strings.NewReader(""))
	require.Error(t, err)
}

type fakeCatalog struct {
	brands   []models.Brand
	models   []models.Model
	cars     []models.CreateCarRequest
	listCall int
	carErr   error
}

func (f *fakeCatalog) ListBrands(context.Context) ([]models.Brand, error) {
	return f.brands, nil
}

func (f *fakeCatalog) CreateBrand(_ context.Context, req models.CreateBrandRequest) (*models.Brand, error) {
	b := models.Brand{ID: fmt.Sprintf("brand-%d", len(f.brands)+1), Name: req.Name}
	f.brands = append(f.brands, b)
	return &b, nil
}

func (f *fakeCatalog) ListModels(_ context.Context, brandID string) ([]models.Model, error) {
	f.listCall++
	var out []models.Model
	for _, m := range f.models {
		if m.BrandID == brandID {
			out = append(out, m)
		}
	}
	return out, nil
}

func (f *fakeCatalog) CreateModel(_ context.Context, req models.CreateModelRequest) (*models.Model, error) {
	m := models.Model{ID: fmt.Sprintf("model-%d", len(f.models)+1), BrandID: req.BrandID, Name: req.Name}
	f.models = append(f.models, m)
	return &m, nil
}

func (f *fakeCatalog) CreateCar(_ context.Context, req models.CreateCarRequest) (*models.Car, error) {
	if f.carErr != nil {
		return nil, f.carErr
	}
	f.cars = append(f.cars, req)
	return &models.Car{ModelID: req.ModelID}, nil
}

func importRows(names ...[2]string) []Row {
	rows := make([]Row, 0, len(names))
	for i, n := range names {
		rows = append(rows, Row{Line: i + 2, BrandName: n[0], ModelName: n[1], Car: models.CreateCarRequest{Year: 2020, Price: 1}})
	}
	return rows
}

func TestImporterReusesBrandsAndModels(t *testing.T) {
	catalog := &fakeCatalog{brands: []models.Brand{{ID: "existing", Name: "Lada"}}}
	imp := NewImporter(catalog, nil)

	summary, err := imp.Import(context.Background(), importRows(
		[2]string{"lada", "Niva"},
		[2]string{"Lada", "niva"},
		[2]string{"Volga", "GAZ-21"},
	))
	require.NoError(t, err)

	assert.Equal(t, Summary{Brands: 1, Models: 2, Cars: 3}, summary)
	require.Len(t, catalog.cars, 3)
	assert.Equal(t, catalog.cars[0].ModelID, catalog.cars[1].ModelID)
	assert.Equal(t, "existing", catalog.models[0].BrandID)
	assert.Equal(t, 2, catalog.listCall)
}

func TestImporterStopsAtFirstFailure(t *testing.T) {
	catalog := &fakeCatalog{carErr: errors.New("invalid VIN")}
	imp := NewImporter(catalog, nil)

	summary, err := imp.Import(context.Background(), importRows([2]string{"Lada", "Niva"}, [2]string{"Lada", "Vesta"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
	assert.Equal(t, Summary{Brands: 1, Models: 1}, summary)
}
