package trainstore

import (
	"time"

	"github.com/localrivet/schemarecall/internal/ledger"
	"github.com/localrivet/schemarecall/internal/telemetry"
)

// HealthStatus represents the health status of the store
type HealthStatus string

const (
	// StatusHealthy indicates the store is fully operational
	StatusHealthy HealthStatus = "healthy"

	// StatusDegraded indicates recent embedding or persistence failures
	StatusDegraded HealthStatus = "degraded"

	// StatusUnhealthy indicates every recent embedding call failed
	StatusUnhealthy HealthStatus = "unhealthy"
)

// degradedThreshold is the embed success rate, in percent, below which the
// store reports itself degraded.
const degradedThreshold = 90.0

// HealthReport contains information about the current health of the store
type HealthReport struct {
	Status        HealthStatus       `json:"status"`
	Timestamp     time.Time          `json:"timestamp"`
	Embedder      string             `json:"embedder"`
	Dimension     int                `json:"dimension"`
	Records       int                `json:"records"`
	RecordsByKind map[string]int     `json:"records_by_kind"`
	ResponseTimes map[string]float64 `json:"response_times_ms"`
	SuccessRate   float64            `json:"embed_success_rate"`
	TotalRequests int64              `json:"embed_requests"`
	Rollbacks     int64              `json:"rollbacks"`
}

// Health builds a health report from the store's state and metrics.
func (s *Store) Health() *HealthReport {
	s.mu.RLock()
	counts := s.led.CountByKind()
	records := s.led.Len()
	dim := s.idx.Dimension()
	s.mu.RUnlock()

	m := s.metrics
	total := m.GetCounter(telemetry.MetricEmbedCalls)
	failures := m.GetCounter(telemetry.MetricEmbedFailures)

	successRate := 100.0
	if total > 0 {
		successRate = float64(total-failures) / float64(total) * 100.0
	}

	status := StatusHealthy
	switch {
	case total > 0 && failures == total:
		status = StatusUnhealthy
	case successRate < degradedThreshold:
		status = StatusDegraded
	}

	byKind := make(map[string]int, len(ledger.Kinds))
	for _, k := range ledger.Kinds {
		byKind[string(k)] = counts[k]
	}

	return &HealthReport{
		Status:        status,
		Timestamp:     time.Now(),
		Embedder:      s.embedder.Name(),
		Dimension:     dim,
		Records:       records,
		RecordsByKind: byKind,
		ResponseTimes: map[string]float64{
			"embed":   millis(m.GetTimerAverage(telemetry.MetricEmbedTime)),
			"search":  millis(m.GetTimerAverage(telemetry.MetricSearchTime)),
			"persist": millis(m.GetTimerAverage(telemetry.MetricPersistTime)),
		},
		SuccessRate:   successRate,
		TotalRequests: total,
		Rollbacks:     m.GetCounter(telemetry.MetricRollbacks),
	}
}

func millis(d time.Duration) float64 {
	return float64(d) / float64(time.Millisecond)
}
