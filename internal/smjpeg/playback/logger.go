package playback

// Playback statistics logger
// ---------------------------
// Periodically logs aggregated playback counters (chunks played/skipped per
// track) for one movie, the same periodic-ticker shape the
// reference media logger used for connection-level packet stats.

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
)

// PlaybackLogger tracks and periodically logs playback statistics for one
// Movie by subscribing to its published events.
type PlaybackLogger struct {
	movieID string
	log     *slog.Logger
	mu      sync.Mutex

	played  map[string]uint64
	skipped map[string]uint64

	statsInterval time.Duration
	ticker        *time.Ticker
	stopChan      chan struct{}
}

// NewPlaybackLogger creates a logger for movieID that logs a summary every
// statsInterval (default 30s if zero).
func NewPlaybackLogger(movieID string, logger *slog.Logger, statsInterval time.Duration) *PlaybackLogger {
	if logger == nil {
		logger = slog.Default()
	}
	if statsInterval == 0 {
		statsInterval = 30 * time.Second
	}
	pl := &PlaybackLogger{
		movieID:       movieID,
		log:           logger.With("component", "playback_logger", "movie_id", movieID),
		played:        make(map[string]uint64),
		skipped:       make(map[string]uint64),
		statsInterval: statsInterval,
		stopChan:      make(chan struct{}),
	}
	pl.ticker = time.NewTicker(statsInterval)
	go pl.statsLoop()
	return pl
}

// Observe records one scheduler decision for track ("audio" or "video").
func (pl *PlaybackLogger) Observe(track string, decision Decision) {
	pl.mu.Lock()
	defer pl.mu.Unlock()
	switch decision {
	case DecisionPlayed:
		pl.played[track]++
	case DecisionSkipped:
		pl.skipped[track]++
	}
}

// Execute implements hooks.Hook, letting a PlaybackLogger be registered
// directly against a hooks.Manager instead of requiring the scheduler to
// call Observe itself.
func (pl *PlaybackLogger) Execute(ctx context.Context, event hooks.Event) error {
	switch event.Type {
	case hooks.EventFramePlayed:
		pl.Observe(event.Track, DecisionPlayed)
	case hooks.EventFrameSkipped:
		pl.Observe(event.Track, DecisionSkipped)
	}
	return nil
}

// Type implements hooks.Hook.
func (pl *PlaybackLogger) Type() string { return "playback_logger" }

// ID implements hooks.Hook.
func (pl *PlaybackLogger) ID() string { return "playback_logger:" + pl.movieID }

func (pl *PlaybackLogger) statsLoop() {
	for {
		select {
		case <-pl.stopChan:
			return
		case <-pl.ticker.C:
			pl.logStats()
		}
	}
}

func (pl *PlaybackLogger) logStats() {
	pl.mu.Lock()
	defer pl.mu.Unlock()

	total := uint64(0)
	for _, n := range pl.played {
		total += n
	}
	if total == 0 {
		return
	}

	pl.log.Info("playback statistics",
		"audio_played", pl.played["audio"],
		"video_played", pl.played["video"],
		"audio_skipped", pl.skipped["audio"],
		"video_skipped", pl.skipped["video"])
}

// Stop halts periodic logging and logs a final summary.
func (pl *PlaybackLogger) Stop() {
	close(pl.stopChan)
	pl.ticker.Stop()
	pl.logStats()
}
