package http

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	"github.com/cyclepact/core/internal/application/services"
	"github.com/cyclepact/core/internal/domain/entities"
	"github.com/cyclepact/core/internal/infrastructure/logger"
	"github.com/cyclepact/core/internal/ports"
)

// TaskHandler handles recurring action registration and task instance requests
type TaskHandler struct {
	scheduleService *services.ScheduleService
	logger          *logger.Logger
}

// NewTaskHandler creates a new task handler
func NewTaskHandler(scheduleService *services.ScheduleService, logger *logger.Logger) *TaskHandler {
	return &TaskHandler{
		scheduleService: scheduleService,
		logger:          logger,
	}
}

// RegisterAction handles action registration from the goal provider
// @Summary Register a recurring action
// @Description Registers an action and materializes its task instances over the active cycle
// @Tags actions
// @Accept json
// @Produce json
// @Param request body ports.RegisterActionRequest true "Action definition"
// @Success 201 {object} ports.RegisterActionResult
// @Router /actions [post]
func (h *TaskHandler) RegisterAction(c echo.Context) error {
	var req ports.RegisterActionRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	req.ParticipantID = getParticipantIDFromContext(c)

	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	result, err := h.scheduleService.RegisterAction(c.Request().Context(), req)
	if err != nil {
		h.logger.Errorw("Register action failed", "error", err, "action_id", req.ActionID)
		return domainError(err)
	}

	return c.JSON(http.StatusCreated, result)
}

// ListTasks handles listing task instances
// @Summary List task instances
// @Tags tasks
// @Produce json
// @Param status query string false "Filter by status"
// @Param from query string false "Due date lower bound (YYYY-MM-DD)"
// @Param to query string false "Due date upper bound (YYYY-MM-DD)"
// @Success 200 {array} entities.TaskInstance
// @Router /tasks [get]
func (h *TaskHandler) ListTasks(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	filter := ports.InstanceFilter{}
	if status := c.QueryParam("status"); status != "" {
		instanceStatus := entities.InstanceStatus(status)
		if !instanceStatus.IsValid() {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid status parameter")
		}
		filter.Status = &instanceStatus
	}
	if from := c.QueryParam("from"); from != "" {
		t, err := time.Parse("2006-01-02", from)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid from parameter")
		}
		filter.DueAfter = &t
	}
	if to := c.QueryParam("to"); to != "" {
		t, err := time.Parse("2006-01-02", to)
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid to parameter")
		}
		filter.DueUntil = &t
	}
	if limitStr := c.QueryParam("limit"); limitStr != "" {
		limit, err := strconv.Atoi(limitStr)
		if err != nil || limit < 1 {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid limit parameter")
		}
		filter.Limit = limit
	} else {
		filter.Limit = 50
	}

	instances, err := h.scheduleService.ListInstances(c.Request().Context(), participantID, filter)
	if err != nil {
		h.logger.Errorw("List tasks failed", "error", err, "participant_id", participantID)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to retrieve tasks")
	}

	return c.JSON(http.StatusOK, instances)
}

// CompleteTask handles marking a task instance as done
// @Summary Complete a task instance
// @Tags tasks
// @Produce json
// @Param id path string true "Task instance ID"
// @Success 200 {object} entities.TaskInstance
// @Router /tasks/{id}/complete [post]
func (h *TaskHandler) CompleteTask(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	instance, err := h.scheduleService.CompleteTask(c.Request().Context(), participantID, instanceID)
	if err != nil {
		h.logger.Errorw("Complete task failed", "error", err, "instance_id", instanceID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, instance)
}

// PostponeTask handles pushing a task instance's due date forward
// @Summary Postpone a task instance
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task instance ID"
// @Param request body PostponeRequest true "Days to postpone"
// @Success 200 {object} entities.TaskInstance
// @Router /tasks/{id}/postpone [post]
func (h *TaskHandler) PostponeTask(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	var req PostponeRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	instance, err := h.scheduleService.PostponeTask(c.Request().Context(), participantID, instanceID, req.Days)
	if err != nil {
		h.logger.Errorw("Postpone task failed", "error", err, "instance_id", instanceID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, instance)
}

// SubmitEvidence handles attaching evidence to a task instance
// @Summary Submit evidence for a task instance
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task instance ID"
// @Param request body EvidenceRequest true "Evidence reference"
// @Success 200 {object} entities.TaskInstance
// @Router /tasks/{id}/evidence [post]
func (h *TaskHandler) SubmitEvidence(c echo.Context) error {
	participantID := getParticipantIDFromContext(c)

	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	var req EvidenceRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}
	if err := c.Validate(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}

	instance, err := h.scheduleService.SubmitEvidence(c.Request().Context(), participantID, instanceID, req.EvidenceRef)
	if err != nil {
		h.logger.Errorw("Submit evidence failed", "error", err, "instance_id", instanceID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, instance)
}

// ReviewEvidence handles a mentor's verdict on submitted evidence
// @Summary Review evidence on a task instance
// @Tags tasks
// @Accept json
// @Produce json
// @Param id path string true "Task instance ID"
// @Param request body ReviewRequest true "Verdict"
// @Success 200 {object} entities.TaskInstance
// @Router /tasks/{id}/evidence/review [post]
func (h *TaskHandler) ReviewEvidence(c echo.Context) error {
	instanceID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid task ID")
	}

	var req ReviewRequest
	if err := c.Bind(&req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request format")
	}

	instance, err := h.scheduleService.ReviewEvidence(c.Request().Context(), instanceID, req.Approved)
	if err != nil {
		h.logger.Errorw("Review evidence failed", "error", err, "instance_id", instanceID)
		return domainError(err)
	}

	return c.JSON(http.StatusOK, instance)
}

// Utility functions and helper types

func getParticipantIDFromContext(c echo.Context) uuid.UUID {
	participant := c.Get("participant_id")
	if participant == nil {
		return uuid.Nil
	}

	if idStr, ok := participant.(string); ok {
		participantID, _ := uuid.Parse(idStr)
		return participantID
	}

	return uuid.Nil
}

// domainError maps domain sentinel errors to HTTP status codes.
func domainError(err error) error {
	switch {
	case errors.Is(err, entities.ErrInvalidConfiguration):
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	case errors.Is(err, entities.ErrActionNotFound),
		errors.Is(err, entities.ErrInstanceNotFound),
		errors.Is(err, entities.ErrAdminTaskNotFound),
		errors.Is(err, entities.ErrSubmissionNotFound),
		errors.Is(err, entities.ErrEnrollmentNotFound),
		errors.Is(err, entities.ErrAttendanceNotFound):
		return echo.NewHTTPError(http.StatusNotFound, err.Error())
	case errors.Is(err, entities.ErrEnrollmentSuspended):
		return echo.NewHTTPError(http.StatusForbidden, err.Error())
	case errors.Is(err, entities.ErrEnrollmentExists),
		errors.Is(err, entities.ErrEnrollmentNotActive),
		errors.Is(err, entities.ErrPreconditionFailed),
		errors.Is(err, entities.ErrEvidenceNotApproved),
		errors.Is(err, entities.ErrInvalidStatus):
		return echo.NewHTTPError(http.StatusConflict, err.Error())
	default:
		return echo.NewHTTPError(http.StatusInternalServerError, "Internal server error")
	}
}

// Request/Response types
type PostponeRequest struct {
	Days int `json:"days" validate:"required,min=1,max=365"`
}

type EvidenceRequest struct {
	EvidenceRef string `json:"evidence_ref" validate:"required,max=500"`
}

type ReviewRequest struct {
	Approved bool    `json:"approved"`
	Feedback *string `json:"feedback" validate:"omitempty,max=2000"`
}

type MessageResponse struct {
	Message string `json:"message"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}
