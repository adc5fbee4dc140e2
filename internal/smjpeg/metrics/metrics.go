// Package metrics exposes Prometheus instrumentation for a playback
// session: chunks played and skipped per track, ring-buffer occupancy, and
// audio underrun counts. It is consumed only through the hooks package's
// MetricsHook, so instrumentation never reaches into playback.Movie state
// directly.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Registry bundles the collectors one playback session updates. Callers
// typically register it once against prometheus.DefaultRegisterer (or a
// custom registry in tests) via Register.
type Registry struct {
	ChunksPlayed     *prometheus.CounterVec
	ChunksSkipped    *prometheus.CounterVec
	RingOccupancy    prometheus.Gauge
	AudioUnderruns   prometheus.Counter
	SeekOperations   prometheus.Counter
	TruncatedFrames  prometheus.Counter
}

// NewRegistry constructs the collector set without registering it anywhere.
func NewRegistry() *Registry {
	return &Registry{
		ChunksPlayed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smjpeg",
			Name:      "chunks_played_total",
			Help:      "Data chunks successfully decoded and delivered, by track.",
		}, []string{"track"}),
		ChunksSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "smjpeg",
			Name:      "chunks_skipped_total",
			Help:      "Data chunks skipped for arriving past the lateness tolerance, by track.",
		}, []string{"track"}),
		RingOccupancy: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "smjpeg",
			Name:      "audio_ring_occupancy",
			Help:      "Filled slots in the audio ring buffer.",
		}),
		AudioUnderruns: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smjpeg",
			Name:      "audio_underruns_total",
			Help:      "Audio sink reads that found the ring buffer empty.",
		}),
		SeekOperations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smjpeg",
			Name:      "seek_operations_total",
			Help:      "Completed seek operations.",
		}),
		TruncatedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "smjpeg",
			Name:      "truncated_frames_total",
			Help:      "Video frames whose JPEG source underflowed its declared chunk length.",
		}),
	}
}

// Register registers every collector against reg.
func (r *Registry) Register(reg prometheus.Registerer) error {
	collectors := []prometheus.Collector{
		r.ChunksPlayed, r.ChunksSkipped, r.RingOccupancy, r.AudioUnderruns,
		r.SeekOperations, r.TruncatedFrames,
	}
	for _, c := range collectors {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}
