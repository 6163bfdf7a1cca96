package handler

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/oms/backend/internal/domain/fulfillment"
	"github.com/oms/backend/internal/infrastructure/persistence"
)

type stubDatabaseStatus struct {
	pingErr  error
	stats    persistence.ConnectionStats
	statsErr error
}

func (s *stubDatabaseStatus) Ping() error { return s.pingErr }

func (s *stubDatabaseStatus) Stats() (persistence.ConnectionStats, error) {
	return s.stats, s.statsErr
}

type stubSchedulerStatus struct {
	running bool
	active  []fulfillment.TaskKind
}

func (s *stubSchedulerStatus) IsRunning() bool { return s.running }

func (s *stubSchedulerStatus) Running() []fulfillment.TaskKind { return s.active }

func newSystemTestRouter(db DatabaseStatus, sched SchedulerStatus) *gin.Engine {
	gin.SetMode(gin.TestMode)
	h := NewSystemHandler(db, sched, "1.2.3")

	router := gin.New()
	router.GET("/health", h.Health)
	router.GET("/ready", h.Ready)
	router.GET("/stats", h.Stats)
	return router
}

func TestSystemHandler_Health(t *testing.T) {
	t.Run("healthy when database responds", func(t *testing.T) {
		router := newSystemTestRouter(&stubDatabaseStatus{}, &stubSchedulerStatus{running: true})

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool           `json:"success"`
			Data    HealthResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.True(t, resp.Success)
		assert.Equal(t, "healthy", resp.Data.Status)
		assert.Equal(t, "ok", resp.Data.Database)
		assert.NotEmpty(t, resp.Data.Time)
	})

	t.Run("unhealthy when database is down", func(t *testing.T) {
		router := newSystemTestRouter(
			&stubDatabaseStatus{pingErr: errors.New("connection refused")},
			&stubSchedulerStatus{running: true},
		)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/health", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusServiceUnavailable, w.Code)

		var resp struct {
			Data HealthResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		assert.Equal(t, "unhealthy", resp.Data.Status)
		assert.Equal(t, "error", resp.Data.Database)
	})
}

func TestSystemHandler_Ready(t *testing.T) {
	tests := []struct {
		name          string
		pingErr       error
		schedRunning  bool
		wantCode      int
		wantReady     bool
		wantDatabase  string
		wantScheduler string
	}{
		{
			name:          "ready when everything is up",
			schedRunning:  true,
			wantCode:      http.StatusOK,
			wantReady:     true,
			wantDatabase:  "ok",
			wantScheduler: "running",
		},
		{
			name:          "not ready when database is down",
			pingErr:       errors.New("connection refused"),
			schedRunning:  true,
			wantCode:      http.StatusServiceUnavailable,
			wantReady:     false,
			wantDatabase:  "error",
			wantScheduler: "running",
		},
		{
			name:          "not ready when scheduler is stopped",
			schedRunning:  false,
			wantCode:      http.StatusServiceUnavailable,
			wantReady:     false,
			wantDatabase:  "ok",
			wantScheduler: "stopped",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			router := newSystemTestRouter(
				&stubDatabaseStatus{pingErr: tt.pingErr},
				&stubSchedulerStatus{running: tt.schedRunning},
			)

			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/ready", nil)
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.wantCode, w.Code)

			var resp struct {
				Data ReadyResponse `json:"data"`
			}
			require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantReady, resp.Data.Ready)
			assert.Equal(t, tt.wantDatabase, resp.Data.Database)
			assert.Equal(t, tt.wantScheduler, resp.Data.Scheduler)
		})
	}
}

func TestSystemHandler_Stats(t *testing.T) {
	t.Run("reports pool and scheduler state", func(t *testing.T) {
		db := &stubDatabaseStatus{
			stats: persistence.ConnectionStats{
				MaxOpenConnections: 25,
				OpenConnections:    3,
				InUse:              1,
				Idle:               2,
				WaitCount:          7,
				WaitDuration:       150 * time.Millisecond,
			},
		}
		sched := &stubSchedulerStatus{
			running: true,
			active:  []fulfillment.TaskKind{fulfillment.TaskIngestion, fulfillment.TaskUpload},
		}
		router := newSystemTestRouter(db, sched)

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/stats", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var resp struct {
			Success bool          `json:"success"`
			Data    StatsResponse `json:"data"`
		}
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))

		assert.True(t, resp.Success)
		assert.Equal(t, "1.2.3", resp.Data.Version)
		assert.NotEmpty(t, resp.Data.GoVersion)
		assert.NotEmpty(t, resp.Data.Uptime)
		assert.Greater(t, resp.Data.Goroutines, 0)

		assert.Equal(t, 25, resp.Data.Database.MaxOpen)
		assert.Equal(t, 3, resp.Data.Database.Open)
		assert.Equal(t, 1, resp.Data.Database.InUse)
		assert.Equal(t, 2, resp.Data.Database.Idle)
		assert.Equal(t, int64(7), resp.Data.Database.WaitCount)
		assert.Equal(t, "150ms", resp.Data.Database.WaitDuration)

		assert.True(t, resp.Data.Scheduler.Running)
		assert.Equal(t, []string{"INGESTION", "UPLOAD"}, resp.Data.Scheduler.ActiveTasks)
	})

	t.Run("fails when pool stats are unavailable", func(t *testing.T) {
		db := &stubDatabaseStatus{statsErr: errors.New("database is closed")}
		router := newSystemTestRouter(db, &stubSchedulerStatus{running: true})

		w := httptest.NewRecorder()
		req := httptest.NewRequest("GET", "/stats", nil)
		router.ServeHTTP(w, req)

		assert.Equal(t, http.StatusInternalServerError, w.Code)
	})
}
