package handler

import (
	"context"
	"fmt"
	"net/http"
	"runtime"
	"syscall"
	"time"

	"github.com/mstgnz/idpay/infra/config"
	"github.com/mstgnz/idpay/infra/response"
	"github.com/mstgnz/idpay/provider"
)

// Pinger is a dependency whose reachability can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler handles health check requests
type HealthHandler struct {
	storage    Pinger
	sessions   Pinger
	opensearch Pinger
	registry   *provider.ProviderRegistry
	startTime  time.Time
}

// HealthStatus represents overall system health
type HealthStatus struct {
	Status      string                    `json:"status"`
	Version     string                    `json:"version"`
	Timestamp   time.Time                 `json:"timestamp"`
	Uptime      string                    `json:"uptime"`
	Environment string                    `json:"environment"`
	Providers   []string                  `json:"providers"`
	System      *SystemHealth             `json:"system"`
	Services    map[string]*ServiceHealth `json:"services"`
}

// SystemHealth represents system resource health
type SystemHealth struct {
	Memory     *MemoryHealth `json:"memory"`
	Disk       *DiskHealth   `json:"disk"`
	GoRoutines int           `json:"goroutines"`
}

// MemoryHealth represents memory usage
type MemoryHealth struct {
	Alloc        string  `json:"alloc"`
	TotalAlloc   string  `json:"total_alloc"`
	Sys          string  `json:"sys"`
	GCRuns       uint32  `json:"gc_runs"`
	UsagePercent float64 `json:"usage_percent"`
}

// DiskHealth represents disk usage
type DiskHealth struct {
	Available    string  `json:"available"`
	Used         string  `json:"used"`
	Total        string  `json:"total"`
	UsagePercent float64 `json:"usage_percent"`
	Status       string  `json:"status"`
}

// ServiceHealth represents individual service health
type ServiceHealth struct {
	Status       string `json:"status"`
	Healthy      bool   `json:"healthy"`
	Critical     bool   `json:"critical"`
	ResponseTime string `json:"response_time,omitempty"`
	LastCheck    string `json:"last_check"`
	Description  string `json:"description,omitempty"`
	Error        string `json:"error,omitempty"`
}

// NewHealthHandler creates a new health handler. A nil opensearch pinger means
// log shipping is disabled.
func NewHealthHandler(storage, sessions, opensearch Pinger, registry *provider.ProviderRegistry) *HealthHandler {
	return &HealthHandler{
		storage:    storage,
		sessions:   sessions,
		opensearch: opensearch,
		registry:   registry,
		startTime:  time.Now(),
	}
}

// CheckHealth performs comprehensive health checks
func (h *HealthHandler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
	defer cancel()

	health := &HealthStatus{
		Version:     "1.0.0",
		Timestamp:   time.Now().UTC(),
		Uptime:      time.Since(h.startTime).String(),
		Environment: getEnvironment(),
		Providers:   h.providerNames(),
		System:      h.checkSystemHealth(),
		Services: map[string]*ServiceHealth{
			"storage":         h.checkService(ctx, h.storage, true, "Purchase requests, profiles and payment logs"),
			"session_backend": h.checkService(ctx, h.sessions, true, "Redirect target leases"),
			"opensearch":      h.checkService(ctx, h.opensearch, false, "Payment and system log shipping"),
		},
	}

	health.Status = h.determineOverallStatus(health)

	statusCode := http.StatusOK
	if health.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	_ = response.WriteJSON(w, statusCode, response.Response{
		Code:    statusCode,
		Success: health.Status != "unhealthy",
		Message: fmt.Sprintf("Service is %s", health.Status),
		Data:    health,
	})
}

// checkService pings one dependency
func (h *HealthHandler) checkService(ctx context.Context, p Pinger, critical bool, description string) *ServiceHealth {
	service := &ServiceHealth{
		Critical:    critical,
		LastCheck:   time.Now().UTC().Format(time.RFC3339),
		Description: description,
	}

	if p == nil {
		service.Status = "not_configured"
		return service
	}

	start := time.Now()
	err := p.Ping(ctx)
	elapsed := time.Since(start)
	service.ResponseTime = fmt.Sprintf("%.0fms", float64(elapsed.Nanoseconds())/1e6)

	switch {
	case err != nil:
		service.Status = "unhealthy"
		service.Error = err.Error()
	case elapsed > time.Second:
		service.Status = "degraded"
		service.Healthy = true
	default:
		service.Status = "healthy"
		service.Healthy = true
	}

	return service
}

func (h *HealthHandler) providerNames() []string {
	if h.registry == nil {
		return []string{}
	}
	return h.registry.GetProviderNames()
}

// checkSystemHealth checks system resource health
func (h *HealthHandler) checkSystemHealth() *SystemHealth {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	return &SystemHealth{
		Memory: &MemoryHealth{
			Alloc:        formatBytes(memStats.Alloc),
			TotalAlloc:   formatBytes(memStats.TotalAlloc),
			Sys:          formatBytes(memStats.Sys),
			GCRuns:       memStats.NumGC,
			UsagePercent: calculateMemoryUsagePercent(memStats),
		},
		Disk:       h.getDiskUsage(),
		GoRoutines: runtime.NumGoroutine(),
	}
}

// determineOverallStatus determines overall system status
func (h *HealthHandler) determineOverallStatus(health *HealthStatus) string {
	// A missing or failing critical service makes the gateway unusable
	for _, service := range health.Services {
		if service.Critical && !service.Healthy {
			return "unhealthy"
		}
	}

	if len(health.Providers) == 0 {
		return "unhealthy"
	}

	for _, service := range health.Services {
		if service.Status == "degraded" || service.Status == "unhealthy" {
			return "degraded"
		}
	}

	if health.System != nil {
		if health.System.Memory.UsagePercent > 90 {
			return "degraded"
		}
		if health.System.Disk != nil && health.System.Disk.UsagePercent > 90 {
			return "degraded"
		}
	}

	return "healthy"
}

// Helper functions

func getEnvironment() string {
	if env := config.GetEnv("ENVIRONMENT", ""); env != "" {
		return env
	}
	if env := config.GetEnv("ENV", ""); env != "" {
		return env
	}
	return "development"
}

func formatBytes(bytes uint64) string {
	const unit = 1024
	if bytes < unit {
		return fmt.Sprintf("%d B", bytes)
	}
	div, exp := int64(unit), 0
	for n := bytes / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(bytes)/float64(div), "KMGTPE"[exp])
}

func calculateMemoryUsagePercent(memStats runtime.MemStats) float64 {
	if memStats.Sys == 0 {
		return 0
	}
	return (float64(memStats.Alloc) / float64(memStats.Sys)) * 100
}

func (h *HealthHandler) getDiskUsage() *DiskHealth {
	var stat syscall.Statfs_t

	disk := &DiskHealth{
		Status: "unknown",
	}

	if err := syscall.Statfs("/", &stat); err != nil {
		disk.Status = "error"
		return disk
	}

	available := stat.Bavail * uint64(stat.Bsize)
	total := stat.Blocks * uint64(stat.Bsize)
	used := total - (stat.Bfree * uint64(stat.Bsize))

	disk.Available = formatBytes(available)
	disk.Total = formatBytes(total)
	disk.Used = formatBytes(used)
	if total > 0 {
		disk.UsagePercent = (float64(used) / float64(total)) * 100
	}

	switch {
	case disk.UsagePercent > 90:
		disk.Status = "critical"
	case disk.UsagePercent > 80:
		disk.Status = "warning"
	default:
		disk.Status = "healthy"
	}

	return disk
}
