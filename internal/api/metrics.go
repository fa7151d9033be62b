package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete system metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	MQTT          MQTTMetrics    `json:"mqtt"`
	Cycles        CycleMetrics   `json:"cycles"`
	Devices       DeviceMetrics  `json:"devices"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// MQTTMetrics contains MQTT client statistics.
type MQTTMetrics struct {
	Connected bool `json:"connected"`
}

// CycleMetrics summarises the scan loop.
type CycleMetrics struct {
	Total           uint64  `json:"total"`
	LastID          string  `json:"last_id,omitempty"`
	LastStarted     string  `json:"last_started,omitempty"`
	LastElapsedMS   int64   `json:"last_elapsed_ms"`
	LastFound       int     `json:"last_found"`
	LastProcessed   int     `json:"last_processed"`
	SensingFailures int     `json:"last_sensing_failures"`
	BroadcastRan    bool    `json:"last_broadcast"`
	FoundRatio      float64 `json:"last_found_ratio"`
}

// DeviceMetrics counts devices by classification.
type DeviceMetrics struct {
	Total   int `json:"total"`
	Home    int `json:"home"`
	NotHome int `json:"not_home"`
}

// handleMetrics returns runtime, sink and scan loop metrics.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
	}

	if s.sink != nil {
		metrics.MQTT.Connected = s.sink.IsConnected()
	}

	last, total := s.store.LastCycle()
	metrics.Cycles = CycleMetrics{
		Total:           total,
		LastID:          last.ID,
		LastElapsedMS:   last.Elapsed.Milliseconds(),
		LastFound:       last.Found,
		LastProcessed:   last.Processed,
		SensingFailures: last.SensingFailures,
		BroadcastRan:    last.Broadcast,
	}
	if !last.Started.IsZero() {
		metrics.Cycles.LastStarted = last.Started.UTC().Format(time.RFC3339)
	}
	if last.Processed > 0 {
		metrics.Cycles.FoundRatio = float64(last.Found) / float64(last.Processed)
	}

	for _, rec := range s.store.List() {
		metrics.Devices.Total++
		if rec.Home() {
			metrics.Devices.Home++
		} else {
			metrics.Devices.NotHome++
		}
	}

	writeJSON(w, http.StatusOK, metrics)
}
