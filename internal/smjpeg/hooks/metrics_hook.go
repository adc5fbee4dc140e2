// Metrics hook implementation: feeds playback events into a
// metrics.Registry. This is the only hook that is not adapted from the
// teacher's hook set; it exists because the prometheus instrumentation
// must observe events through the same channel as every other hook rather
// than being threaded into the scheduler directly.
package hooks

import (
	"context"

	"github.com/alxayo/go-smjpeg/internal/smjpeg/metrics"
)

// MetricsHook updates a metrics.Registry in response to playback events.
type MetricsHook struct {
	id  string
	reg *metrics.Registry
}

// NewMetricsHook wraps reg as a Hook.
func NewMetricsHook(id string, reg *metrics.Registry) *MetricsHook {
	return &MetricsHook{id: id, reg: reg}
}

// Execute updates the wrapped registry's counters/gauges for event.
func (h *MetricsHook) Execute(ctx context.Context, event Event) error {
	track := event.Track
	switch event.Type {
	case EventFramePlayed:
		h.reg.ChunksPlayed.WithLabelValues(track).Inc()
	case EventFrameSkipped:
		h.reg.ChunksSkipped.WithLabelValues(track).Inc()
	case EventSeek:
		h.reg.SeekOperations.Inc()
	case EventTruncated:
		h.reg.TruncatedFrames.Inc()
	case EventTrackDisabled:
		if track == "audio" {
			h.reg.AudioUnderruns.Inc()
		}
	}

	if occ, ok := event.Data["ring_occupancy"]; ok {
		if n, ok := occ.(int); ok {
			h.reg.RingOccupancy.Set(float64(n))
		}
	}

	return nil
}

// Type returns the hook type.
func (h *MetricsHook) Type() string { return "metrics" }

// ID returns the hook ID.
func (h *MetricsHook) ID() string { return h.id }
