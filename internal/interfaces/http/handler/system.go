package handler

import (
	"context"
	"net/http"
	"runtime"
	"sort"
	"time"

	"github.com/gin-gonic/gin"
	"golang.org/x/sync/errgroup"

	"github.com/docgen/backend/internal/interfaces/http/dto"
)

// HealthCheck probes one dependency
type HealthCheck func(ctx context.Context) error

// SystemHandler serves liveness, readiness and build information
type SystemHandler struct {
	BaseHandler
	name         string
	version      string
	startTime    time.Time
	checkTimeout time.Duration
	checks       map[string]HealthCheck
}

// NewSystemHandler creates a new SystemHandler
func NewSystemHandler(name, version string) *SystemHandler {
	return &SystemHandler{
		name:         name,
		version:      version,
		startTime:    time.Now(),
		checkTimeout: 2 * time.Second,
		checks:       make(map[string]HealthCheck),
	}
}

// AddCheck registers a readiness probe under name
func (h *SystemHandler) AddCheck(name string, check HealthCheck) *SystemHandler {
	h.checks[name] = check
	return h
}

// RegisterRoutes mounts the probes. They sit outside the versioned API so
// orchestrators can reach them without credentials.
func (h *SystemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/health/live", h.Ping)
	rg.GET("/health/ready", h.Ready)
	rg.GET("/system/info", h.GetSystemInfo)
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"docgen"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo godoc
// @ID           getSystemSystemInfo
// @Summary      Get system information
// @Description  Returns basic system information including version and uptime
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[SystemInfoResponse]
// @Router       /system/info [get]
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	h.Success(c, SystemInfoResponse{
		Name:      h.name,
		Version:   h.version,
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	})
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping godoc
// @ID           pingSystem
// @Summary      Liveness probe
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[PingResponse]
// @Router       /health/live [get]
func (h *SystemHandler) Ping(c *gin.Context) {
	h.Success(c, PingResponse{
		Message:   "pong",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

// DependencyStatus is the outcome of one readiness probe
type DependencyStatus struct {
	Name      string `json:"name"`
	Healthy   bool   `json:"healthy"`
	Error     string `json:"error,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

// ReadyResponse lists every probe outcome
type ReadyResponse struct {
	Ready        bool               `json:"ready"`
	Dependencies []DependencyStatus `json:"dependencies"`
}

// Ready godoc
// @ID           readySystem
// @Summary      Readiness probe
// @Description  Runs every dependency probe; 503 when any of them fails
// @Tags         system
// @Produce      json
// @Success      200 {object} APIResponse[ReadyResponse]
// @Failure      503 {object} APIResponse[ReadyResponse]
// @Router       /health/ready [get]
func (h *SystemHandler) Ready(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), h.checkTimeout)
	defer cancel()

	names := make([]string, 0, len(h.checks))
	for name := range h.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	deps := make([]DependencyStatus, len(names))
	var g errgroup.Group
	for i, name := range names {
		check := h.checks[name]
		g.Go(func() error {
			start := time.Now()
			err := check(ctx)
			deps[i] = DependencyStatus{Name: name, Healthy: err == nil, LatencyMS: time.Since(start).Milliseconds()}
			if err != nil {
				deps[i].Error = err.Error()
			}
			return nil
		})
	}
	_ = g.Wait()

	out := ReadyResponse{Ready: true, Dependencies: deps}
	for _, d := range deps {
		if !d.Healthy {
			out.Ready = false
		}
	}

	status := http.StatusOK
	if !out.Ready {
		status = http.StatusServiceUnavailable
	}
	c.JSON(status, dto.Response{Success: out.Ready, Data: out})
}
