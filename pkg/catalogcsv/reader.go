// Package catalogcsv loads brands, models and car listings from a flat CSV export where every
// row describes one car together with its brand and model.
package catalogcsv

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

// Columns every file must carry, in any order.
var Columns = []string{
	"brand_name", "brand_country", "brand_logo_url",
	"model_name", "model_year_from", "model_year_to",
	"car_year", "car_price", "car_mileage", "car_condition", "car_fuel_type",
	"car_transmission", "car_drive_type", "car_color", "car_engine_volume",
	"car_power", "car_description", "car_vin", "car_photos",
}

// Row is one parsed line. Car.ModelID is filled in by the importer.
type Row struct {
	Line          int
	BrandName     string
	BrandCountry  *string
	BrandLogoURL  *string
	ModelName     string
	ModelYearFrom *int
	ModelYearTo   *int
	Car           models.CreateCarRequest
}

// Read parses every row of r. Errors carry the 1-based line number.
func Read(r io.Reader) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("catalog csv is empty")
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, name := range header {
		index[strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))] = i
	}
	var missing []string
	for _, col := range Columns {
		if _, ok := index[col]; !ok {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("catalog csv is missing columns: %s", strings.Join(missing, ", "))
	}

	var rows []Row
	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		row, err := parseRow(fields{index: index, record: record}, line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

type fields struct {
	index  map[string]int
	record []string
}

func (f fields) get(col string) string {
	i := f.index[col]
	if i >= len(f.record) {
		return ""
	}
	v := strings.TrimSpace(f.record[i])
	if strings.EqualFold(v, "null") {
		return ""
	}
	return v
}

func (f fields) optional(col string) *string {
	if v := f.get(col); v != "" {
		return &v
	}
	return nil
}

func (f fields) optionalInt(col string) (*int, error) {
	v := f.get(col)
	if v == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return nil, fmt.Errorf("%s: %q is not an integer", col, v)
	}
	return &n, nil
}

func (f fields) requiredInt(col string) (int, error) {
	n, err := f.optionalInt(col)
	if err != nil {
		return 0, err
	}
	if n == nil {
		return 0, fmt.Errorf("%s is required", col)
	}
	return *n, nil
}

func parseRow(f fields, line int) (Row, error) {
	row := Row{
		Line:         line,
		BrandName:    f.get("brand_name"),
		BrandCountry: f.optional("brand_country"),
		BrandLogoURL: f.optional("brand_logo_url"),
		ModelName:    f.get("model_name"),
	}
	if row.BrandName == "" {
		return Row{}, errors.New("brand_name is required")
	}
	if row.ModelName == "" {
		return Row{}, errors.New("model_name is required")
	}

	var err error
	if row.ModelYearFrom, err = f.optionalInt("model_year_from"); err != nil {
		return Row{}, err
	}
	if row.ModelYearTo, err = f.optionalInt("model_year_to"); err != nil {
		return Row{}, err
	}

	car := models.CreateCarRequest{
		Condition:    models.CarCondition(f.get("car_condition")),
		FuelType:     models.FuelType(f.get("car_fuel_type")),
		Transmission: models.TransmissionType(f.get("car_transmission")),
		DriveType:    models.DriveType(f.get("car_drive_type")),
		Color:        f.optional("car_color"),
		Description:  f.optional("car_description"),
		VIN:          f.optional("car_vin"),
	}
	if car.Year, err = f.requiredInt("car_year"); err != nil {
		return Row{}, err
	}
	if car.Mileage, err = f.requiredInt("car_mileage"); err != nil {
		return Row{}, err
	}
	if car.Power, err = f.optionalInt("car_power"); err != nil {
		return Row{}, err
	}
	if car.Price, err = strconv.ParseFloat(f.get("car_price"), 64); err != nil {
		return Row{}, fmt.Errorf("car_price: %q is not a number", f.get("car_price"))
	}
	if v := f.get("car_engine_volume"); v != "" {
		volume, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return Row{}, fmt.Errorf("car_engine_volume: %q is not a number", v)
		}
		car.EngineVolume = &volume
	}
	if v := f.get("car_photos"); v != "" {
		for _, p := range strings.Split(v, ";") {
			if p = strings.TrimSpace(p); p != "" {
				car.Photos = append(car.Photos, p)
			}
		}
	}
	row.Car = car
	return row, nil
}
