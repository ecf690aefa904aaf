package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/car-marketplace-api/internal/middleware"
	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
)

type fakeCarSrv struct {
	filter     models.CarFilter
	created    *models.CreateCarRequest
	lastSeller *string
	err        error
}

func (f *fakeCarSrv) ListCars(_ context.Context, filter models.CarFilter) ([]models.Car, *models.Pagination, error) {
	f.filter = filter
	if f.err != nil {
		return nil, nil, f.err
	}
	return []models.Car{{ID: "car-1"}}, &models.Pagination{Limit: 100, TotalCount: 1}, nil
}

func (f *fakeCarSrv) GetCar(_ context.Context, id string) (*models.Car, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &models.Car{ID: id}, nil
}

func (f *fakeCarSrv) CreateCar(_ context.Context, req models.CreateCarRequest) (*models.Car, error) {
	f.created = &req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Car{ID: "car-1", SellerID: req.SellerID}, nil
}

func (f *fakeCarSrv) UpdateCar(_ context.Context, id, sellerID string, _ models.UpdateCarRequest) (*models.Car, error) {
	f.lastSeller = &sellerID
	return &models.Car{ID: id}, f.err
}

func (f *fakeCarSrv) DeleteCar(_ context.Context, _ string, sellerID string) error {
	f.lastSeller = &sellerID
	return f.err
}

func (f *fakeCarSrv) MarkSold(_ context.Context, id, sellerID string) (*models.Car, error) {
	f.lastSeller = &sellerID
	if f.err != nil {
		return nil, f.err
	}
	return &models.Car{ID: id, IsSold: true}, nil
}

func withCaller(c *gin.Context, id string) {
	c.Set(middleware.ContextUserKey, &models.TokenClaims{
		Type:             models.TokenTypeAccess,
		Scopes:           []string{models.ScopeCarCreate},
		RegisteredClaims: jwt.RegisteredClaims{Subject: id},
	})
}

func TestCarHandlerListParsesFilter(t *testing.T) {
	srv := &fakeCarSrv{}
	h := NewCarHandler(srv)

	c, rec := newAuthContext(http.MethodGet, "/public/cars?brand_id=b1&condition=used&limit=5&offset=10", "")
	h.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "b1", srv.filter.BrandID)
	assert.Equal(t, models.ConditionUsed, srv.filter.Condition)
	assert.Equal(t, 5, srv.filter.Limit)
	assert.Equal(t, 10, srv.filter.Offset)

	var envelope struct {
		Pagination models.Pagination `json:"pagination"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, 1, envelope.Pagination.TotalCount)
}

func TestCarHandlerListRejectsNonNumericLimit(t *testing.T) {
	h := NewCarHandler(&fakeCarSrv{})

	c, rec := newAuthContext(http.MethodGet, "/public/cars?limit=ten", "")
	h.List(c)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Body.String(), `"field":"limit"`)
}

func TestCarHandlerCreateUsesCallerAsSeller(t *testing.T) {
	srv := &fakeCarSrv{}
	h := NewCarHandler(srv)

	c, rec := newAuthContext(http.MethodPost, "/secured/cars", `{"model_id":"m","seller_id":"someone-else","year":2020,"price":1}`)
	withCaller(c, "seller-1")
	h.Create(c)

	assert.Equal(t, http.StatusCreated, rec.Code)
	require.NotNil(t, srv.created)
	require.NotNil(t, srv.created.SellerID)
	assert.Equal(t, "seller-1", *srv.created.SellerID)
}

func TestCarHandlerCreateRequiresCaller(t *testing.T) {
	srv := &fakeCarSrv{}
	h := NewCarHandler(srv)

	c, rec := newAuthContext(http.MethodPost, "/secured/cars", `{}`)
	h.Create(c)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Nil(t, srv.created)
}

func TestCarHandlerOwnershipScoping(t *testing.T) {
	srv := &fakeCarSrv{}
	h := NewCarHandler(srv)

	c, rec := newAuthContext(http.MethodPatch, "/secured/cars/car-1", `{"mileage":10}`)
	withCaller(c, "seller-1")
	h.Update(c)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "seller-1", *srv.lastSeller)

	c, rec = newAuthContext(http.MethodDelete, "/secured/admin/listings/car-1", "")
	withCaller(c, "admin-1")
	h.AdminDelete(c)
	require.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "", *srv.lastSeller)
}

func TestCarHandlerMarkSoldPropagatesDomainError(t *testing.T) {
	h := NewCarHandler(&fakeCarSrv{err: appErrors.ErrCarNotAvailable})

	c, rec := newAuthContext(http.MethodPost, "/secured/cars/car-1/sold", "")
	withCaller(c, "seller-1")
	h.MarkSold(c)

	assert.Equal(t, appErrors.ErrCarNotAvailable.Status, rec.Code)
	assert.Contains(t, rec.Body.String(), appErrors.ErrCarNotAvailable.Code)
}

type fakeBrandSrv struct {
	deleteErr error
}

func (f *fakeBrandSrv) ListBrands(context.Context) ([]models.Brand, error) {
	return []models.Brand{{ID: "b1", Name: "Lada"}}, nil
}

func (f *fakeBrandSrv) GetBrand(_ context.Context, id string) (*models.Brand, error) {
	return nil, appErrors.Clone(appErrors.ErrNotFound, "brand not found")
}

func (f *fakeBrandSrv) CreateBrand(_ context.Context, req models.CreateBrandRequest) (*models.Brand, error) {
	return &models.Brand{ID: "b2", Name: req.Name}, nil
}

func (f *fakeBrandSrv) UpdateBrand(_ context.Context, id string, _ models.UpdateBrandRequest) (*models.Brand, error) {
	return &models.Brand{ID: id}, nil
}

func (f *fakeBrandSrv) DeleteBrand(context.Context, string) error {
	return f.deleteErr
}

func TestBrandHandlerEndpoints(t *testing.T) {
	h := NewBrandHandler(&fakeBrandSrv{deleteErr: appErrors.Clone(appErrors.ErrInvalidRequest, "brand has models")})

	c, rec := newAuthContext(http.MethodGet, "/public/brands", "")
	h.List(c)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Lada")

	c, rec = newAuthContext(http.MethodGet, "/public/brands/missing", "")
	c.Params = gin.Params{{Key: "id", Value: "missing"}}
	h.Get(c)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	c, rec = newAuthContext(http.MethodPost, "/secured/admin/brands", `{"name":"Volga"}`)
	h.Create(c)
	assert.Equal(t, http.StatusCreated, rec.Code)

	c, rec = newAuthContext(http.MethodDelete, "/secured/admin/brands/b1", "")
	h.Delete(c)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
