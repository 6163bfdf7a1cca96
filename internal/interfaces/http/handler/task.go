package handler

import (
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/scheduler"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// TaskHandler exposes the periodic task control surface: listing state,
// flipping enable flags, manual triggers and run history
type TaskHandler struct {
	BaseHandler
	scheduler *scheduler.TaskScheduler
	states    fulfillment.TaskStateRepository
	runs      fulfillment.TaskRunRepository
}

// NewTaskHandler creates a new TaskHandler
func NewTaskHandler(
	sched *scheduler.TaskScheduler,
	states fulfillment.TaskStateRepository,
	runs fulfillment.TaskRunRepository,
) *TaskHandler {
	return &TaskHandler{
		scheduler: sched,
		states:    states,
		runs:      runs,
	}
}

// TaskStateResponse represents the scheduling state of one task
// @Description Task scheduling state
type TaskStateResponse struct {
	Task                string     `json:"task" example:"UPLOAD"`
	Enabled             bool       `json:"enabled" example:"true"`
	IntervalSeconds     int        `json:"interval_seconds" example:"300"`
	TimeoutSeconds      int        `json:"timeout_seconds" example:"600"`
	LastRunAt           *time.Time `json:"last_run_at,omitempty"`
	LastOutcome         string     `json:"last_outcome,omitempty" example:"SUCCESS"`
	ConsecutiveTimeouts int        `json:"consecutive_timeouts" example:"0"`
	Healthy             bool       `json:"healthy" example:"true"`
}

// TaskRunResponse represents one recorded task execution
// @Description Task run record
type TaskRunResponse struct {
	ID             string     `json:"id"`
	Task           string     `json:"task" example:"UPLOAD"`
	StartedAt      time.Time  `json:"started_at"`
	FinishedAt     *time.Time `json:"finished_at,omitempty"`
	Outcome        string     `json:"outcome" example:"SUCCESS"`
	Detail         string     `json:"detail,omitempty"`
	ItemsProcessed int        `json:"items_processed" example:"12"`
	ItemsFailed    int        `json:"items_failed" example:"0"`
	DurationMillis int64      `json:"duration_ms" example:"1523"`
}

func toTaskStateResponse(state *fulfillment.TaskState) TaskStateResponse {
	return TaskStateResponse{
		Task:                state.Task.String(),
		Enabled:             state.Enabled,
		IntervalSeconds:     state.IntervalSeconds,
		TimeoutSeconds:      state.TimeoutSeconds,
		LastRunAt:           state.LastRunAt,
		LastOutcome:         state.LastOutcome.String(),
		ConsecutiveTimeouts: state.ConsecutiveTimeouts,
		Healthy:             state.Healthy,
	}
}

func toTaskRunResponse(run *fulfillment.TaskRun) TaskRunResponse {
	return TaskRunResponse{
		ID:             run.ID.String(),
		Task:           run.Task.String(),
		StartedAt:      run.StartedAt,
		FinishedAt:     run.FinishedAt,
		Outcome:        run.Outcome.String(),
		Detail:         run.Detail,
		ItemsProcessed: run.ItemsProcessed,
		ItemsFailed:    run.ItemsFailed,
		DurationMillis: run.Duration().Milliseconds(),
	}
}

// parseKind resolves the :kind path parameter to a task kind
func parseKind(c *gin.Context) (fulfillment.TaskKind, bool) {
	kind := fulfillment.TaskKind(strings.ToUpper(c.Param("kind")))
	return kind, kind.IsValid()
}

// List godoc
// @Summary      List task states
// @Description  Returns the scheduling state of every periodic task
// @Tags         tasks
// @Produce      json
// @Success      200 {object} dto.Response{data=[]TaskStateResponse}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks [get]
func (h *TaskHandler) List(c *gin.Context) {
	states, err := h.states.FindAll(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]TaskStateResponse, len(states))
	for i := range states {
		responses[i] = toTaskStateResponse(&states[i])
	}
	h.Success(c, responses)
}

// Enable godoc
// @Summary      Enable a task
// @Description  Turns a periodic task on; it runs on its next tick
// @Tags         tasks
// @Produce      json
// @Param        kind path string true "Task kind" Enums(INGESTION, UPLOAD, STATUS_SYNC, LOT_SYNC, DUPLICATE_SCAN, LEDGER_REFRESH)
// @Success      200 {object} dto.Response{data=TaskStateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{kind}/enable [post]
func (h *TaskHandler) Enable(c *gin.Context) {
	h.setEnabled(c, true)
}

// Disable godoc
// @Summary      Disable a task
// @Description  Turns a periodic task off; ticks are skipped until re-enabled
// @Tags         tasks
// @Produce      json
// @Param        kind path string true "Task kind" Enums(INGESTION, UPLOAD, STATUS_SYNC, LOT_SYNC, DUPLICATE_SCAN, LEDGER_REFRESH)
// @Success      200 {object} dto.Response{data=TaskStateResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      404 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{kind}/disable [post]
func (h *TaskHandler) Disable(c *gin.Context) {
	h.setEnabled(c, false)
}

func (h *TaskHandler) setEnabled(c *gin.Context, enabled bool) {
	kind, ok := parseKind(c)
	if !ok {
		h.BadRequest(c, "Unknown task kind")
		return
	}

	ctx := c.Request.Context()
	state, err := h.states.FindByKind(ctx, kind)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if state == nil {
		h.NotFound(c, "Task state not found")
		return
	}

	if enabled {
		state.Enable()
	} else {
		state.Disable()
	}
	if err := h.states.Save(ctx, state); err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, toTaskStateResponse(state))
}

// Trigger godoc
// @Summary      Trigger a task
// @Description  Runs a task immediately, outside its schedule, and returns the finished run
// @Tags         tasks
// @Produce      json
// @Param        kind path string true "Task kind" Enums(INGESTION, UPLOAD, STATUS_SYNC, LOT_SYNC, DUPLICATE_SCAN, LEDGER_REFRESH)
// @Success      200 {object} dto.Response{data=TaskRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      409 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      503 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{kind}/trigger [post]
func (h *TaskHandler) Trigger(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		h.BadRequest(c, "Unknown task kind")
		return
	}

	run, err := h.scheduler.TriggerNow(c.Request.Context(), kind)
	if err != nil {
		switch {
		case errors.Is(err, scheduler.ErrTaskAlreadyRunning):
			h.Conflict(c, "Task is already running")
		case errors.Is(err, scheduler.ErrSchedulerNotRunning):
			h.Error(c, http.StatusServiceUnavailable, dto.ErrCodeServiceUnavailable, "Scheduler is not running")
		case errors.Is(err, scheduler.ErrUnknownTask):
			h.BadRequest(c, "No executor registered for task kind")
		default:
			h.HandleError(c, err)
		}
		return
	}

	h.Success(c, toTaskRunResponse(run))
}

// Runs godoc
// @Summary      Task run history
// @Description  Returns the latest runs of a task, newest first
// @Tags         tasks
// @Produce      json
// @Param        kind path string true "Task kind" Enums(INGESTION, UPLOAD, STATUS_SYNC, LOT_SYNC, DUPLICATE_SCAN, LEDGER_REFRESH)
// @Param        limit query int false "Maximum runs to return" default(20) maximum(200)
// @Success      200 {object} dto.Response{data=[]TaskRunResponse}
// @Failure      400 {object} dto.Response{error=dto.ErrorInfo}
// @Failure      500 {object} dto.Response{error=dto.ErrorInfo}
// @Security     BearerAuth
// @Router       /tasks/{kind}/runs [get]
func (h *TaskHandler) Runs(c *gin.Context) {
	kind, ok := parseKind(c)
	if !ok {
		h.BadRequest(c, "Unknown task kind")
		return
	}

	limit := 20
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			h.BadRequest(c, "Limit must be a positive integer")
			return
		}
		if parsed > 200 {
			parsed = 200
		}
		limit = parsed
	}

	runs, err := h.runs.FindRecentByKind(c.Request.Context(), kind, limit)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	responses := make([]TaskRunResponse, len(runs))
	for i := range runs {
		responses[i] = toTaskRunResponse(&runs[i])
	}
	h.Success(c, responses)
}
