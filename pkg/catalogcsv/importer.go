package catalogcsv

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/car-marketplace-api/internal/models"
)

// Catalog is the subset of the catalog service the importer writes through, so every
// listing passes the same rules as one created over HTTP.
type Catalog interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	CreateBrand(ctx context.Context, req models.CreateBrandRequest) (*models.Brand, error)
	ListModels(ctx context.Context, brandID string) ([]models.Model, error)
	CreateModel(ctx context.Context, req models.CreateModelRequest) (*models.Model, error)
	CreateCar(ctx context.Context, req models.CreateCarRequest) (*models.Car, error)
}

// Summary counts the records created by an import.
type Summary struct {
	Brands int
	Models int
	Cars   int
}

// Importer resolves brands and models by name, creating the missing ones, then adds one
// listing per row.
type Importer struct {
	catalog  Catalog
	logger   *zap.Logger
	brandIDs map[string]string
	modelIDs map[string]string
}

// NewImporter builds an importer over catalog.
func NewImporter(catalog Catalog, logger *zap.Logger) *Importer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Importer{catalog: catalog, logger: logger, brandIDs: map[string]string{}, modelIDs: map[string]string{}}
}

// Import writes rows in order and stops at the first failure. The summary reflects what
// was written before it.
func (i *Importer) Import(ctx context.Context, rows []Row) (Summary, error) {
	var summary Summary
	if err := i.loadBrands(ctx); err != nil {
		return summary, err
	}

	for _, row := range rows {
		brandID, created, err := i.brand(ctx, row)
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if created {
			summary.Brands++
		}

		modelID, created, err := i.model(ctx, brandID, row)
		if err != nil {
			return summary, fmt.Errorf("line %d: %w", row.Line, err)
		}
		if created {
			summary.Models++
		}

		req := row.Car
		req.ModelID = modelID
		if _, err := i.catalog.CreateCar(ctx, req); err != nil {
			return summary, fmt.Errorf("line %d: create car: %w", row.Line, err)
		}
		summary.Cars++
	}

	i.logger.Info("catalog import finished",
		zap.Int("brands", summary.Brands), zap.Int("models", summary.Models), zap.Int("cars", summary.Cars))
	return summary, nil
}

func (i *Importer) loadBrands(ctx context.Context) error {
	brands, err := i.catalog.ListBrands(ctx)
	if err != nil {
		return fmt.Errorf("list brands: %w", err)
	}
	for _, b := range brands {
		i.brandIDs[nameKey(b.Name)] = b.ID
	}
	return nil
}

func (i *Importer) brand(ctx context.Context, row Row) (string, bool, error) {
	if id, ok := i.brandIDs[nameKey(row.BrandName)]; ok {
		return id, false, nil
	}
	brand, err := i.catalog.CreateBrand(ctx, models.CreateBrandRequest{
		Name:    row.BrandName,
		Country: row.BrandCountry,
		LogoURL: row.BrandLogoURL,
	})
	if err != nil {
		return "", false, fmt.Errorf("create brand %q: %w", row.BrandName, err)
	}
	i.brandIDs[nameKey(brand.Name)] = brand.ID
	return brand.ID, true, nil
}

func (i *Importer) model(ctx context.Context, brandID string, row Row) (string, bool, error) {
	key := brandID + "/" + nameKey(row.ModelName)
	if id, ok := i.modelIDs[key]; ok {
		return id, false, nil
	}

	existing, err := i.catalog.ListModels(ctx, brandID)
	if err != nil {
		return "", false, fmt.Errorf("list models: %w", err)
	}
	for _, m := range existing {
		i.modelIDs[brandID+"/"+nameKey(m.Name)] = m.ID
	}
	if id, ok := i.modelIDs[key]; ok {
		return id, false, nil
	}

	model, err := i.catalog.CreateModel(ctx, models.CreateModelRequest{
		BrandID:  brandID,
		Name:     row.ModelName,
		YearFrom: row.ModelYearFrom,
		YearTo:   row.ModelYearTo,
	})
	if err != nil {
		return "", false, fmt.Errorf("create model %q: %w", row.ModelName, err)
	}
	i.modelIDs[key] = model.ID
	return model.ID, true, nil
}

func nameKey(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}
