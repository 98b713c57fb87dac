package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tatamihq/academy-api/internal/service"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/response"
)

// SeriesHandler exposes recurring-series endpoints.
type SeriesHandler struct {
	series *service.SeriesService
}

// NewSeriesHandler constructs SeriesHandler.
func NewSeriesHandler(series *service.SeriesService) *SeriesHandler {
	return &SeriesHandler{series: series}
}

// List godoc
// @Summary List recurring series
// @Tags Series
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /series [get]
func (h *SeriesHandler) List(c *gin.Context) {
	series, err := h.series.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// Get godoc
// @Summary Get series detail including exceptions
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /series/{id} [get]
func (h *SeriesHandler) Get(c *gin.Context) {
	series, err := h.series.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// Create godoc
// @Summary Create recurring series
// @Tags Series
// @Accept json
// @Produce json
// @Param payload body service.CreateSeriesRequest true "Series payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /series [post]
func (h *SeriesHandler) Create(c *gin.Context) {
	var req service.CreateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	series, err := h.series.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, series)
}

// Update godoc
// @Summary Update recurring series
// @Tags Series
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body service.UpdateSeriesRequest true "Series payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /series/{id} [put]
func (h *SeriesHandler) Update(c *gin.Context) {
	var req service.UpdateSeriesRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	series, err := h.series.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, series, nil)
}

// Delete godoc
// @Summary Delete recurring series and its exceptions
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Success 204
// @Security BearerAuth
// @Router /series/{id} [delete]
func (h *SeriesHandler) Delete(c *gin.Context) {
	if err := h.series.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// UpsertException godoc
// @Summary Create or replace a date-keyed exception
// @Tags Series
// @Accept json
// @Produce json
// @Param id path string true "Series ID"
// @Param payload body service.UpsertExceptionRequest true "Exception payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /series/{id}/exceptions [put]
func (h *SeriesHandler) UpsertException(c *gin.Context) {
	var req service.UpsertExceptionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	exception, err := h.series.UpsertException(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, exception, nil)
}

// DeleteException godoc
// @Summary Remove the exception for a date
// @Tags Series
// @Produce json
// @Param id path string true "Series ID"
// @Param date path string true "Exception date (YYYY-MM-DD)"
// @Success 204
// @Security BearerAuth
// @Router /series/{id}/exceptions/{date} [delete]
func (h *SeriesHandler) DeleteException(c *gin.Context) {
	if err := h.series.DeleteException(c.Request.Context(), c.Param("id"), c.Param("date")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
