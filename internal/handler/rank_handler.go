package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/tatamihq/academy-api/internal/service"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/response"
)

// RankHandler exposes progression-ladder endpoints.
type RankHandler struct {
	ranks *service.RankService
}

// NewRankHandler constructs RankHandler.
func NewRankHandler(ranks *service.RankService) *RankHandler {
	return &RankHandler{ranks: ranks}
}

// List godoc
// @Summary List ranks ordered by ordinal
// @Tags Ranks
// @Produce json
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /ranks [get]
func (h *RankHandler) List(c *gin.Context) {
	ranks, err := h.ranks.ListAll(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, ranks, nil)
}

// Create godoc
// @Summary Create rank
// @Tags Ranks
// @Accept json
// @Produce json
// @Param payload body service.SaveRankRequest true "Rank payload"
// @Success 201 {object} response.Envelope
// @Security BearerAuth
// @Router /ranks [post]
func (h *RankHandler) Create(c *gin.Context) {
	var req service.SaveRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rank, err := h.ranks.Create(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, rank)
}

// Update godoc
// @Summary Update rank
// @Tags Ranks
// @Accept json
// @Produce json
// @Param id path string true "Rank ID"
// @Param payload body service.SaveRankRequest true "Rank payload"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /ranks/{id} [put]
func (h *RankHandler) Update(c *gin.Context) {
	var req service.SaveRankRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	rank, err := h.ranks.Update(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, rank, nil)
}

// Delete godoc
// @Summary Delete rank
// @Tags Ranks
// @Produce json
// @Param id path string true "Rank ID"
// @Success 204
// @Security BearerAuth
// @Router /ranks/{id} [delete]
func (h *RankHandler) Delete(c *gin.Context) {
	if err := h.ranks.Delete(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
