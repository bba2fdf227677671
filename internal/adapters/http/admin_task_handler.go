package http

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// AdminTaskHandler handles mentor-issued task requests
type AdminTaskHandler struct {
	adminTaskService *services.AdminTaskService
	logger           *logger.Logger
}

// NewAdminTaskHandler creates a new admin task handler
func NewAdminTaskHandler(adminTaskService *services.AdminTaskService, logger *logger.Logger) *AdminTaskHandler {
	return &AdminTaskHandler{
		adminTaskService: adminTaskService,
		logger:           logger,
	}
}

// Create handles admin task creation and audience fan-out
// @Summary Create an extraordinary task or event
// @Tags admin-tasks
// @Accept json
// @Produce json
// @Param request body ports.CreateAdminTaskRequest true "Task definition"
// @Success 201 {object} ports.CreateAdminTaskResult
// @Router /admin-tasks [post]
func (h *AdminTaskHandler) Create(c echo.Context) error {
	var req ports.CreateAdminTaskRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	req.CreatedBy = getParticipantIDFromContext(c)

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.adminTaskService.Create(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Create admin task failed", "error", err, "title", req.Title)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, result)
}

// SubmitWork handles a participant turning in work for a submission
// @Summary Submit work for an assigned task
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param request body EvidenceRequest true "Evidence reference"
// @Success 200 {object} entities.TaskSubmission
// @Router /submissions/{id}/submit [post]
func (h *AdminTaskHandler) SubmitWork(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid submission ID")
	}

	var req EvidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	submission, err := h.adminTaskService.SubmitWork(c.Request().Context(), participantID, submissionID, req.EvidenceRef)
	if err != nil {
		h.logger.Errorw("Submit work failed", "error", err, "submission_id", submissionID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, submission)
}

// Review handles a mentor's verdict on a submission
// @Summary Review a submission
// @Tags submissions
// @Accept json
// @Produce json
// @Param id path string true "Submission ID"
// @Param request body ReviewRequest true "Verdict"
// @Success 200 {object} entities.TaskSubmission
// @Router /submissions/{id}/review [post]
func (h *AdminTaskHandler) Review(c echo.Context) error {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid submission ID")
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	submission, err := h.adminTaskService.ReviewSubmission(c.Request().Context(), submissionID, req.Approved, req.Feedback)
	if err != nil {
		h.logger.Errorw("Review submission failed", "error", err, "submission_id", submissionID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, submission)
}

// Reopen handles restoring an expired submission
// @Summary Reopen an expired submission
// @Tags submissions
// @Produce json
// @Param id path string true "Submission ID"
// @Success 200 {object} entities.TaskSubmission
// @Router /submissions/{id}/reopen [post]
func (h *AdminTaskHandler) Reopen(c echo.Context) error {
	submissionID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid submission ID")
	}

	submission, err := h.adminTaskService.ReopenSubmission(c.Request().Context(), submissionID)
	if err != nil {
		h.logger.Errorw("Reopen submission failed", "error", err, "submission_id", submissionID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, submission)
}
