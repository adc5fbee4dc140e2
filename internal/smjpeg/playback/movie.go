// Package playback implements the SMJPEG playback scheduler: a Movie wraps
// a demux.Reader and drives it chunk by chunk, deciding whether each data
// chunk is played, skipped for arriving too late, or deferred because its
// presentation time hasn't arrived yet. It owns the audio ring buffer, the
// optional hook/metrics wiring, and the target-surface render path; demux,
// mux, adpcm, jpegsrc, and colorspace do only structural parsing/encoding
// and never know about wall-clock timing.
package playback

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/demux"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/ring"
)

// latenessToleranceMs is the fixed window past a chunk's timestamp within
// which it is still played instead of skipped. The reference decoder once
// carried a second, commented-out timestamp field meant to widen this
// tolerance dynamically; that field was never wired up, so only this fixed
// constant remains.
const latenessToleranceMs = 90

// Status reports why a Movie stopped advancing.
type Status struct {
	Code    int
	Message string
}

// Decision is what the scheduler did with one chunk. step reports one per
// chunk; Advance uses it to decide whether to continue and returns only the
// count of played chunks.
type Decision int

const (
	// DecisionPlayed means the chunk was decoded and delivered.
	DecisionPlayed Decision = iota
	// DecisionSkipped means the chunk arrived past the lateness tolerance.
	DecisionSkipped
	// DecisionDeferred means a video chunk's presentation time hasn't
	// arrived and the caller must retry later (do_wait was false).
	DecisionDeferred
	// DecisionEnded means the "DONE" sentinel was reached.
	DecisionEnded
)

// VideoSurface receives decoded video frames. Render is called with the
// frame's presentation timestamp and the already-decoded image bytes
// (packed per the format Target negotiated); callers own buffering.
type VideoSurface interface {
	Render(timestampMs uint32, rows [][]byte) error
}

// Movie is one open SMJPEG stream plus its playback cursor.
type Movie struct {
	ID     string
	reader *demux.Reader
	closer io.Closer
	logger *slog.Logger

	mu       sync.Mutex
	status   Status
	atEnd    bool
	videoPos uint32 // last played video chunk's timestamp
	audioPos uint32 // last played audio chunk's timestamp
	frame    uint32 // video chunks played, plus those the last Seek passed over

	audioEnabled bool
	videoEnabled bool

	ring  *ring.Buffer
	hooks *hooks.Manager

	target *Target

	running     bool
	clockBase   uint32 // playback timestamp, ms, that clockAnchor corresponds to
	clockAnchor time.Time
}

// Open loads an SMJPEG stream from r (which must also support Seek) and
// returns a ready-to-drive Movie. hm may be nil, in which case lifecycle
// events are not published anywhere.
func Open(r io.ReadSeeker, closer io.Closer, logger *slog.Logger, hm *hooks.Manager) (*Movie, error) {
	if logger == nil {
		logger = slog.Default()
	}
	rd, err := demux.Load(r, logger)
	if err != nil {
		return nil, err
	}

	id := uuid.NewString()
	m := &Movie{
		ID:           id,
		reader:       rd,
		closer:       closer,
		logger:       logger,
		audioEnabled: rd.Audio != nil,
		videoEnabled: rd.Video != nil,
		ring:         ring.New(),
		hooks:        hm,
	}
	if !m.audioEnabled {
		m.ring.SetEnabled(false)
	}
	m.ring.SetFullHook(func() {
		m.logger.Warn("audio ring full, encoder stalling", "movie_id", m.ID)
	})

	m.publish(hooks.EventMovieLoaded, "", nil)
	return m, nil
}

// Close releases the underlying stream.
func (m *Movie) Close() error {
	if m.closer != nil {
		return m.closer.Close()
	}
	return nil
}

// Status returns why the movie stopped advancing (a non-zero Code). A Status
// with Code 0 and a Message is a warning naming a disabled track; a zero
// Status means neither has happened.
func (m *Movie) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// AtEnd reports whether playback has reached the "DONE" sentinel.
func (m *Movie) AtEnd() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.atEnd
}

// AudioHeader returns the parsed audio track header, or nil if the stream
// has no audio track or it was disabled on load.
func (m *Movie) AudioHeader() *container.AudioHeader { return m.reader.Audio }

// VideoHeader returns the parsed video track header, or nil if the stream
// has no video track or it was disabled on load.
func (m *Movie) VideoHeader() *container.VideoHeader { return m.reader.Video }

// AudioRing exposes the audio ring buffer so an audio-sink callback can
// drain it independently of the scheduler goroutine. The consumer side
// only ever touches this buffer and the Enabled flag it already owns,
// never Movie's own fields.
func (m *Movie) AudioRing() *ring.Buffer { return m.ring }

// Frame returns the current video frame count: the video chunks played since
// the stream opened, or, after a Seek, the video chunks that precede the
// seek position plus those played since.
func (m *Movie) Frame() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame
}

// GetPosition reports the current playback position in milliseconds: the
// latest of the most recently played chunk's timestamp on either track and
// the position a Seek last parked the cursor at (covering the case where
// the caller asks right after seeking, before any chunk past that point has
// played). Unlike Seek, this is a read-only query of the public demuxer API
// and does not touch the reader, the ring, or the playback clock.
func (m *Movie) GetPosition() uint32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	pos := m.clockBase
	if m.audioPos > pos {
		pos = m.audioPos
	}
	if m.videoPos > pos {
		pos = m.videoPos
	}
	return pos
}

// SetPosition moves playback to targetMs, the other half of the public
// demuxer API's get/set position pair. It is a thin wrapper over Seek,
// which already does the real work of walking the chunk stream and
// re-arming the playback clock.
func (m *Movie) SetPosition(targetMs uint32) error {
	return m.Seek(targetMs)
}

// DisableTrack turns off the named track ("audio" or "video") after a
// decode error, matching the warning-class error behavior of §7: a bad
// track stops playing without aborting the rest of the movie.
func (m *Movie) DisableTrack(track string) {
	m.mu.Lock()
	switch track {
	case "audio":
		m.audioEnabled = false
		m.ring.SetEnabled(false)
	case "video":
		m.videoEnabled = false
	}
	if m.status.Code == 0 {
		m.status.Message = track + " track disabled"
	}
	m.mu.Unlock()
	m.publish(hooks.EventTrackDisabled, track, nil)
}

func (m *Movie) fail(op string, err error) error {
	code := smjpegerrors.StatusCode(err)
	m.mu.Lock()
	m.status = Status{Code: code, Message: err.Error()}
	m.atEnd = true
	m.mu.Unlock()
	m.logger.Error("playback error, stopping", "op", op, "movie_id", m.ID, "error", err)
	return err
}

func (m *Movie) publish(t hooks.EventType, track string, data map[string]interface{}) {
	if m.hooks == nil {
		return
	}
	e := hooks.NewEvent(t).WithMovieID(m.ID)
	if track != "" {
		e = e.WithTrack(track)
	}
	for k, v := range data {
		e = e.WithData(k, v)
	}
	m.hooks.TriggerEvent(context.Background(), *e)
}

// Start arms the playback clock so that the chunk timeline begins advancing
// from the later of the last played video chunk's timestamp and the position
// a prior Seek left the reader at. Advance's timing decisions are
// meaningless until Start has been called.
func (m *Movie) Start() {
	m.mu.Lock()
	if m.videoPos > m.clockBase {
		m.clockBase = m.videoPos
	}
	m.clockAnchor = time.Now()
	m.running = true
	m.mu.Unlock()
	m.publish(hooks.EventPlaybackStart, "", nil)
}

// Stop halts the playback clock and then waits, for at most one second, for
// the audio consumer to drain the ring.
func (m *Movie) Stop() {
	m.mu.Lock()
	m.running = false
	m.mu.Unlock()
	m.ring.Drain(time.Second)
	m.publish(hooks.EventPlaybackStop, "", nil)
}

// now returns the current playback-timeline position in milliseconds. It is
// only meaningful while running; while stopped it returns clockBase, and the
// scheduler skips its lateness and wait checks entirely, so every chunk is
// treated as arriving on time.
func (m *Movie) now() uint32 {
	if !m.running {
		return m.clockBase
	}
	elapsed := uint32(time.Since(m.clockAnchor).Milliseconds())
	return m.clockBase + elapsed
}
