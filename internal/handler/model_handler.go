package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/car-marketplace-api/internal/models"
	"github.com/noah-isme/car-marketplace-api/pkg/response"
)

type modelService interface {
	ListModels(ctx context.Context, brandID string) ([]models.Model, error)
	GetModel(ctx context.Context, id string) (*models.Model, error)
	CreateModel(ctx context.Context, req models.CreateModelRequest) (*models.Model, error)
	UpdateModel(ctx context.Context, id string, req models.UpdateModelRequest) (*models.Model, error)
	DeleteModel(ctx context.Context, id string) error
}

// ModelHandler manages car model endpoints.
type ModelHandler struct {
	service modelService
}

// NewModelHandler constructs the handler.
func NewModelHandler(svc modelService) *ModelHandler {
	return &ModelHandler{service: svc}
}

// List godoc
// @Summary List models
// @Tags Catalog
// @Produce json
// @Param brand_id query string false "Brand filter"
// @Success 200 {object} response.Envelope
// @Router /public/models [get]
func (h *ModelHandler) List(c *gin.Context) {
	list, err := h.service.ListModels(c.Request.Context(), c.Query("brand_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, list)
}

// Get godoc
// @Summary Get model
// @Tags Catalog
// @Produce json
// @Param id path string true "Model ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /public/models/{id} [get]
func (h *ModelHandler) Get(c *gin.Context) {
	model, err := h.service.GetModel(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, model)
}

// Create godoc
// @Summary Create model
// @Tags Catalog Admin
// @Accept json
// @Produce json
// @Param payload body models.CreateModelRequest true "Model payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /secured/admin/models [post]
func (h *ModelHandler) Create(c *gin.Context) {
	var req models.CreateModelRequest
	if !bindJSON(c, &req, "invalid model payload") {
		return
	}

	model, err := h.service.CreateModel(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, model)
}

// Update godoc
// @Summary Update model
// @Tags Catalog Admin
// @Accept json
// @Produce json
// @Param id path string true "Model ID"
// @Param payload body models.UpdateModelRequest true "Model payload"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /secured/admin/models/{id} [patch]
func (h *ModelHandler) Update(c *gin.Context) {
	var req models.UpdateModelRequest
	if !bindJSON(c, &req, "invalid model payload") {
		return
	}

	model, err := h.service.UpdateModel(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, model)
}

// Delete godoc
// @Summary Delete model
// @Description Refused while listings still reference the model
// @Tags Catalog Admin
// @Param id path string true "Model ID"
// @Success 204
// @Failure 400 {object} response.Envelope
// @Router /secured/admin/models/{id} [delete]
func (h *ModelHandler) Delete(c *gin.Context) {
	if err := h.service.DeleteModel(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
