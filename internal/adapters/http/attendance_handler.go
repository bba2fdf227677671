package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/logger"
)

// AttendanceHandler handles check-in strike requests
type AttendanceHandler struct {
	attendanceService *services.AttendanceService
	logger            *logger.Logger
}

// NewAttendanceHandler creates a new attendance handler
func NewAttendanceHandler(attendanceService *services.AttendanceService, logger *logger.Logger) *AttendanceHandler {
	return &AttendanceHandler{
		attendanceService: attendanceService,
		logger:            logger,
	}
}

// GetState handles fetching the participant's lives budget
// @Summary Get attendance state
// @Tags attendance
// @Produce json
// @Success 200 {object} ports.AttendanceState
// @Router /attendance [get]
func (h *AttendanceHandler) GetState(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	state, err := h.attendanceService.GetState(c.Request().Context(), participantID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, state)
}

// RecordMiss handles a missed mandatory check-in reported by the call
// subsystem. The target participant comes from the request body, not
// the caller's token.
// @Summary Record a missed check-in
// @Tags attendance
// @Accept json
// @Produce json
// @Param request body MissRequest true "Participant who missed"
// @Success 200 {object} ports.AttendanceState
// @Router /attendance/miss [post]
func (h *AttendanceHandler) RecordMiss(c echo.Context) error {
	var req MissRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	participantID, err := uuid.Parse(req.ParticipantID)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid participant ID")
	}

	state, err := h.attendanceService.RecordMiss(c.Request().Context(), participantID)
	if err != nil {
		h.logger.Errorw("Record miss failed", "error", err, "participant_id", participantID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, state)
}

type MissRequest struct {
	ParticipantID string `json:"participant_id" validate:"required,uuid"`
}
