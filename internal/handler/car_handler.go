package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	appErrors "github.com/noah-isme/car-marketplace-api/pkg/errors"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type carService interface {
	ListCars(ctx context.Context, filter models.CarFilter) ([]models.Car, *models.Pagination, error)
	GetCar(ctx context.Context, id string) (*models.Car, error)
	CreateCar(ctx context.Context, req models.CreateCarRequest) (*models.Car, error)
	UpdateCar(ctx context.Context, id, sellerID string, req models.UpdateCarRequest) (*models.Car, error)
	DeleteCar(ctx context.Context, id, sellerID string) error
	MarkSold(ctx context.Context, id, sellerID string) (*models.Car, error)
}

// CarHandler manages listing endpoints. Seller routes act on the caller's own listings;
// admin routes skip the ownership check.
type CarHandler struct {
	service carService
}

// NewCarHandler constructs the handler.
func NewCarHandler(svc carService) *CarHandler {
	return &CarHandler{service: svc}
}

// List godoc
// @Summary List cars
// @Tags Cars
// @Produce json
// @Param model_id query string false "Model filter"
// @Param brand_id query string false "Brand filter"
// @Param seller_id query string false "Seller filter"
// @Param condition query string false "new or used"
// @Param limit query int false "Page size (1-1000)"
// @Param offset query int false "Offset"
// @Success 200 {object} response.Envelope
// @Failure 422 {object} response.Envelope
// @Router /public/cars [get]
func (h *CarHandler) List(c *gin.Context) {
	filter := models.CarFilter{
		ModelID:   c.Query("model_id"),
		BrandID:   c.Query("brand_id"),
		SellerID:  c.Query("seller_id"),
		Condition: models.CarCondition(c.Query("condition")),
	}

	var err error
	if filter.Limit, err = queryInt(c, "limit"); err != nil {
		response.Error(c, err)
		return
	}
	if filter.Offset, err = queryInt(c, "offset"); err != nil {
		response.Error(c, err)
		return
	}

	cars, pagination, err := h.service.ListCars(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, cars, pagination)
}

// Get godoc
// @Summary Get car
// @Tags Cars
// @Produce json
// @Param id path string true "Car ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/cars/{id} [get]
func (h *CarHandler) Get(c *gin.Context) {
	car, err := h.service.GetCar(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, car)
}

// Create godoc
// @Summary Create listing
// @Description The caller becomes the seller
// @Tags Cars
// @Accept json
// @Produce json
// @Param payload body models.CreateCarRequest true "Listing payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /secured/cars [post]
func (h *CarHandler) Create(c *gin.Context) {
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateCarRequest
	if !bindJSON(c, &req, "invalid car payload") {
		return
	}
	seller := claims.Subject
	req.SellerID = &seller

	car, err := h.service.CreateCar(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, car)
}

// Update godoc
// @Summary Update own listing
// @Tags Cars
// @Accept json
// @Produce json
// @Param id path string true "Car ID"
// @Param payload body models.UpdateCarRequest true "Listing payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /secured/cars/{id} [patch]
func (h *CarHandler) Update(c *gin.Context) {
	h.update(c, true)
}

// AdminUpdate godoc
// @Summary Update any listing
// @Tags Catalog Admin
// @Accept json
// @Produce json
// @Param id path string true "Car ID"
// @Param payload body models.UpdateCarRequest true "Listing payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /secured/admin/listings/{id} [patch]
func (h *CarHandler) AdminUpdate(c *gin.Context) {
	h.update(c, false)
}

// Delete godoc
// @Summary Delete own listing
// @Tags Cars
// @Param id path string true "Car ID"
// @Success 204
// @Failure 403 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /secured/cars/{id} [delete]
func (h *CarHandler) Delete(c *gin.Context) {
	h.delete(c, true)
}

// AdminDelete godoc
// @Summary Delete any listing
// @Tags Catalog Admin
// @Param id path string true "Car ID"
// @Success 204
// @Failure 404 {object} response.Envelope
// @Router /secured/admin/listings/{id} [delete]
func (h *CarHandler) AdminDelete(c *gin.Context) {
	h.delete(c, false)
}

// MarkSold godoc
// @Summary Mark own listing sold
// @Tags Cars
// @Produce json
// @Param id path string true "Car ID"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /secured/cars/{id}/sold [post]
func (h *CarHandler) MarkSold(c *gin.Context) {
	seller, ok := h.seller(c, true)
	if !ok {
		return
	}
	car, err := h.service.MarkSold(c.Request.Context(), c.Param("id"), seller)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, car)
}

func (h *CarHandler) update(c *gin.Context, owned bool) {
	seller, ok := h.seller(c, owned)
	if !ok {
		return
	}

	var req models.UpdateCarRequest
	if !bindJSON(c, &req, "invalid car payload") {
		return
	}

	car, err := h.service.UpdateCar(c.Request.Context(), c.Param("id"), seller, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, car)
}

func (h *CarHandler) delete(c *gin.Context, owned bool) {
	seller, ok := h.seller(c, owned)
	if !ok {
		return
	}
	if err := h.service.DeleteCar(c.Request.Context(), c.Param("id"), seller); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// seller resolves the ownership constraint: the caller for seller routes, none for admin routes.
func (h *CarHandler) seller(c *gin.Context, owned bool) (string, bool) {
	if !owned {
		return "", true
	}
	claims := claimsFromContext(c)
	if claims == nil || claims.Subject == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return "", false
	}
	return claims.Subject, true
}

func queryInt(c *gin.Context, key string) (int, error) {
	raw := c.Query(key)
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, appErrors.Validation(key, key+" must be an integer", nil)
	}
	return v, nil
}
