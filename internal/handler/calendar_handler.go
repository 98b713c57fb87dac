package handler

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tatamihq/academy-api/internal/models"
	"github.com/tatamihq/academy-api/internal/service"
	appErrors "github.com/tatamihq/academy-api/pkg/errors"
	"github.com/tatamihq/academy-api/pkg/response"
)

// CalendarHandler exposes the expanded calendar read surface.
type CalendarHandler struct {
	calendar *service.CalendarService
}

// NewCalendarHandler constructs CalendarHandler.
func NewCalendarHandler(calendar *service.CalendarService) *CalendarHandler {
	return &CalendarHandler{calendar: calendar}
}

// Instances godoc
// @Summary List concrete class instances for a date window
// @Tags Calendar
// @Produce json
// @Param from query string false "Window start (YYYY-MM-DD)"
// @Param to query string false "Window end (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Security BearerAuth
// @Router /calendar [get]
func (h *CalendarHandler) Instances(c *gin.Context) {
	window := h.calendar.DefaultWindow()

	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid from date, expected YYYY-MM-DD"))
			return
		}
		window.From = from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse("2006-01-02", raw)
		if err != nil {
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid to date, expected YYYY-MM-DD"))
			return
		}
		window.To = to
	}

	instances, err := h.calendar.Instances(c.Request.Context(), window)
	if err != nil {
		response.Error(c, err)
		return
	}
	if instances == nil {
		instances = []models.CalendarInstance{}
	}
	response.JSON(c, http.StatusOK, instances, nil, map[string]interface{}{
		"from": window.From.Format("2006-01-02"),
		"to":   window.To.Format("2006-01-02"),
	})
}
