package api

import (
	"net/http"
	"runtime"
	"time"

	oscbridge "github.com/nerrad567/osc-bridge/internal/bridges/osc"
)

// StatusResponse is the body of GET /api/v1/status.
type StatusResponse struct {
	Timestamp     string           `json:"timestamp"`
	Version       string           `json:"version"`
	UptimeSeconds int64            `json:"uptime_seconds"`
	Runtime       RuntimeMetrics   `json:"runtime"`
	Entities      int              `json:"entities"`
	Bridge        *oscbridge.Stats `json:"bridge,omitempty"`
	Database      *DatabaseMetrics `json:"database,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// DatabaseMetrics contains database connection pool statistics.
type DatabaseMetrics struct {
	OpenConnections int   `json:"open_connections"`
	InUse           int   `json:"in_use"`
	Idle            int   `json:"idle"`
	WaitCount       int64 `json:"wait_count"`
}

const bytesPerMB = 1024 * 1024

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	resp := StatusResponse{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / bytesPerMB,
			MemoryTotalMB: float64(memStats.TotalAlloc) / bytesPerMB,
			NumGC:         memStats.NumGC,
		},
		Entities: s.entities.Len(),
	}

	if s.bridge != nil {
		stats := s.bridge.Stats()
		resp.Bridge = &stats
	}

	if s.dbStats != nil {
		db := s.dbStats()
		resp.Database = &DatabaseMetrics{
			OpenConnections: db.OpenConnections,
			InUse:           db.InUse,
			Idle:            db.Idle,
			WaitCount:       db.WaitCount,
		}
	}

	writeJSON(w, http.StatusOK, resp)
}
