package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/persistence"
	"github.com/oms/backend/internal/interfaces/http/dto"
)

// DatabaseStatus is the slice of the database the system endpoints need
type DatabaseStatus interface {
	Ping() error
	Stats() (persistence.ConnectionStats, error)
}

// SchedulerStatus is the slice of the scheduler the system endpoints need
type SchedulerStatus interface {
	IsRunning() bool
	Running() []fulfillment.TaskKind
}

// SystemHandler handles health, readiness and stats endpoints
type SystemHandler struct {
	BaseHandler
	db        DatabaseStatus
	scheduler SchedulerStatus
	version   string
	startTime time.Time
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(db DatabaseStatus, scheduler SchedulerStatus, version string) *SystemHandler {
	return &SystemHandler{
		db:        db,
		scheduler: scheduler,
		version:   version,
		startTime: time.Now(),
	}
}

// HealthResponse represents the health check response
// @name HandlerHealthResponse
type HealthResponse struct {
	Status   string `json:"status" example:"healthy"`
	Time     string `json:"time" example:"2026-01-23T12:00:00Z"`
	Database string `json:"database" example:"ok"`
}

// Health godoc
// @ID           getHealth
// @Summary      Health check
// @Description  Reports process liveness and database reachability
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[HealthResponse]
// @Failure      503 {object} APIResponse[HealthResponse]
// @Router       /health [get]
func (h *SystemHandler) Health(c *gin.Context) {
	resp := HealthResponse{
		Status:   "healthy",
		Time:     time.Now().Format(time.RFC3339),
		Database: "ok",
	}

	if err := h.db.Ping(); err != nil {
		resp.Status = "unhealthy"
		resp.Database = "error"
		c.JSON(http.StatusServiceUnavailable, dto.NewSuccessResponse(resp))
		return
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(resp))
}

// ReadyResponse represents the readiness check response
// @name HandlerReadyResponse
type ReadyResponse struct {
	Ready     bool   `json:"ready" example:"true"`
	Database  string `json:"database" example:"ok"`
	Scheduler string `json:"scheduler" example:"running"`
}

// Ready godoc
// @ID           getReady
// @Summary      Readiness check
// @Description  Reports whether the service can take traffic: database reachable and scheduler started
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[ReadyResponse]
// @Failure      503 {object} APIResponse[ReadyResponse]
// @Router       /ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	resp := ReadyResponse{
		Ready:     true,
		Database:  "ok",
		Scheduler: "running",
	}

	if err := h.db.Ping(); err != nil {
		resp.Ready = false
		resp.Database = "error"
	}
	if !h.scheduler.IsRunning() {
		resp.Ready = false
		resp.Scheduler = "stopped"
	}

	status := http.StatusOK
	if !resp.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.NewSuccessResponse(resp))
}

// StatsResponse represents operational statistics
// @name HandlerStatsResponse
type StatsResponse struct {
	Version    string      `json:"version" example:"1.0.0"`
	GoVersion  string      `json:"go_version" example:"go1.25.5"`
	Uptime     string      `json:"uptime" example:"1h30m45s"`
	Goroutines int         `json:"goroutines" example:"24"`
	Database   DBPoolStats `json:"database"`
	Scheduler  SchedStats  `json:"scheduler"`
}

// DBPoolStats represents connection pool statistics
// @name HandlerDBPoolStats
type DBPoolStats struct {
	MaxOpen      int    `json:"max_open" example:"25"`
	Open         int    `json:"open" example:"3"`
	InUse        int    `json:"in_use" example:"1"`
	Idle         int    `json:"idle" example:"2"`
	WaitCount    int64  `json:"wait_count" example:"0"`
	WaitDuration string `json:"wait_duration" example:"0s"`
}

// SchedStats represents scheduler state
// @name HandlerSchedStats
type SchedStats struct {
	Running     bool     `json:"running" example:"true"`
	ActiveTasks []string `json:"active_tasks"`
}

// Stats godoc
// @ID           getStats
// @Summary      Operational statistics
// @Description  Returns version, uptime, database pool and scheduler state
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[StatsResponse]
// @Failure      500 {object} ErrorResponse
// @Router       /stats [get]
func (h *SystemHandler) Stats(c *gin.Context) {
	poolStats, err := h.db.Stats()
	if err != nil {
		h.InternalError(c, "Failed to read database statistics")
		return
	}

	running := h.scheduler.Running()
	active := make([]string, len(running))
	for i, kind := range running {
		active[i] = kind.String()
	}

	resp := StatsResponse{
		Version:    h.version,
		GoVersion:  runtime.Version(),
		Uptime:     time.Since(h.startTime).Round(time.Second).String(),
		Goroutines: runtime.NumGoroutine(),
		Database: DBPoolStats{
			MaxOpen:      poolStats.MaxOpenConnections,
			Open:         poolStats.OpenConnections,
			InUse:        poolStats.InUse,
			Idle:         poolStats.Idle,
			WaitCount:    poolStats.WaitCount,
			WaitDuration: poolStats.WaitDuration.String(),
		},
		Scheduler: SchedStats{
			Running:     h.scheduler.IsRunning(),
			ActiveTasks: active,
		},
	}

	h.Success(c, resp)
}
