package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type brandService interface {
	ListBrands(ctx context.Context) ([]models.Brand, error)
	GetBrand(ctx context.Context, id string) (*models.Brand, error)
	CreateBrand(ctx context.Context, req models.CreateBrandRequest) (*models.Brand, error)
	UpdateBrand(ctx context.Context, id string, req models.UpdateBrandRequest) (*models.Brand, error)
	DeleteBrand(ctx context.Context, id string) error
}

// BrandHandler manages brand endpoints.
type BrandHandler struct {
	service brandService
}

// NewBrandHandler constructs the handler.
func NewBrandHandler(svc brandService) *BrandHandler {
	return &BrandHandler{service: svc}
}

// List godoc
// @Summary List brands
// @Tags Catalog
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /public/brands [get]
func (h *BrandHandler) List(c *gin.Context) {
	brands, err := h.service.ListBrands(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, brands)
}

// Get godoc
// @Summary Get brand
// @Tags Catalog
// @Produce json
// @Param id path string true "Brand ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/brands/{id} [get]
func (h *BrandHandler) Get(c *gin.Context) {
	brand, err := h.service.GetBrand(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, brand)
}

// Create godoc
// @Summary Create brand
// @Tags Catalog Admin
// @Accept json
// @Produce json
// @Param payload body models.CreateBrandRequest true "Brand payload"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /secured/admin/brands [post]
func (h *BrandHandler) Create(c *gin.Context) {
	var req models.CreateBrandRequest
	if !bindJSON(c, &req, "invalid brand payload") {
		return
	}

	brand, err := h.service.CreateBrand(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, brand)
}

// Update godoc
// @Summary Update brand
// @Tags Catalog Admin
// @Accept json
// @Produce json
// @Param id path string true "Brand ID"
// @Param payload body models.UpdateBrandRequest true "Brand payload"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /secured/admin/brands/{id} [patch]
func (h *BrandHandler) Update(c *gin.Context) {
	var req models.UpdateBrandRequest
	if !bindJSON(c, &req, "invalid brand payload") {
		return
	}

	brand, err := h.service.UpdateBrand(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, brand)
}

// Delete godoc
// @Summary Delete brand
// @Description Refused while models still reference the brand
// @Tags Catalog Admin
// @Param id path string true "Brand ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /secured/admin/brands/{id} [delete]
func (h *BrandHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteBrand(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
