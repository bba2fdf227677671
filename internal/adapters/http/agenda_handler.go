package http

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/logger"
)

// AgendaHandler handles agenda and sweep requests
type AgendaHandler struct {
	agendaService *services.AgendaService
	logger        *logger.Logger
}

// NewAgendaHandler creates a new agenda handler
func NewAgendaHandler(agendaService *services.AgendaService, logger *logger.Logger) *AgendaHandler {
	return &AgendaHandler{
		agendaService: agendaService,
		logger:        logger,
	}
}

// GetAgenda handles the participant's daily view
// @Summary Get the participant's agenda
// @Description Returns Today and Overdue buckets across recurring tasks, extraordinary tasks and events
// @Tags agenda
// @Produce json
// @Param date query string false "Reference date (YYYY-MM-DD), defaults to now"
// @Success 200 {object} ports.AgendaResponse
// @Router /agenda [get]
func (h *AgendaHandler) GetAgenda(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	var referenceDate *time.Time
	if dateStr := c.QueryParam("date"); dateStr != "" {
		t, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid date parameter")
		}
		referenceDate = &t
	}

	agenda, err := h.agendaService.GetAgenda(c.Request().Context(), participantID, referenceDate)
	if err != nil {
		h.logger.Errorw("Get agenda failed", "error", err, "participant_id", participantID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, agenda)
}

// TriggerSweep handles a manual expiration sweep
// @Summary Run the expiration sweep now
// @Tags admin
// @Produce json
// @Success 200 {object} SweepResponse
// @Router /admin/sweep [post]
func (h *AgendaHandler) TriggerSweep(c echo.Context) error {
	expired, err := h.agendaService.ExpireStale(c.Request().Context(), time.Now())
	if err != nil {
		h.logger.Errorw("Manual sweep failed", "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Sweep failed")
	}

	return c.JSON(http.StatusOK, SweepResponse{Expired: expired})
}

type SweepResponse struct {
	Expired int `json:"expired"`
}
