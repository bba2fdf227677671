package http

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// EnrollmentHandler handles cycle enrollment requests
type EnrollmentHandler struct {
	enrollmentService *services.EnrollmentService
	logger            *logger.Logger
}

// NewEnrollmentHandler creates a new enrollment handler
func NewEnrollmentHandler(enrollmentService *services.EnrollmentService, logger *logger.Logger) *EnrollmentHandler {
	return &EnrollmentHandler{
		enrollmentService: enrollmentService,
		logger:            logger,
	}
}

// Start handles opening a new cycle
// @Summary Start a program cycle
// @Tags enrollments
// @Accept json
// @Produce json
// @Param request body ports.StartEnrollmentRequest true "Cycle definition"
// @Success 201 {object} entities.CycleEnrollment
// @Router /enrollments [post]
func (h *EnrollmentHandler) Start(c echo.Context) error {
	var req ports.StartEnrollmentRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	req.ParticipantID = getParticipantIDFromContext(c)

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	enrollment, err := h.enrollmentService.Start(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Start enrollment failed", "error", err, "participant_id", req.ParticipantID)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, enrollment)
}

// GetActive handles fetching the current cycle
// @Summary Get the active enrollment
// @Tags enrollments
// @Produce json
// @Success 200 {object} entities.CycleEnrollment
// @Router /enrollments/active [get]
func (h *EnrollmentHandler) GetActive(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	enrollment, err := h.enrollmentService.GetActive(c.Request().Context(), participantID)
	if err != nil {
		return domainError(err)
	}

	return c.JSON(http.StatusOK, enrollment)
}

// Withdraw handles voluntarily leaving the cycle
// @Summary Withdraw from the active enrollment
// @Tags enrollments
// @Produce json
// @Success 200 {object} entities.CycleEnrollment
// @Router /enrollments/withdraw [post]
func (h *EnrollmentHandler) Withdraw(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	enrollment, err := h.enrollmentService.Withdraw(c.Request().Context(), participantID)
	if err != nil {
		h.logger.Errorw("Withdraw enrollment failed", "error", err, "participant_id", participantID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, enrollment)
}

// Complete handles closing the cycle as finished
// @Summary Complete the active enrollment
// @Tags enrollments
// @Produce json
// @Success 200 {object} entities.CycleEnrollment
// @Router /enrollments/complete [post]
func (h *EnrollmentHandler) Complete(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	enrollment, err := h.enrollmentService.Complete(c.Request().Context(), participantID)
	if err != nil {
		h.logger.Errorw("Complete enrollment failed", "error", err, "participant_id", participantID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, enrollment)
}
