package playback

import (
	"time"

	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
)

// Seek repositions the stream so the next Advance call resumes at the first
// chunk whose timestamp is >= targetMs. It walks the chunk stream from the
// body start reading headers only (seeking over payloads rather than
// decoding them), counting video chunks as it passes them so Frame stays
// consistent with the new position. The audio ring is cleared since any
// audio it held belonged to the pre-seek position.
func (m *Movie) Seek(targetMs uint32) error {
	if err := m.reader.Rewind(); err != nil {
		return m.fail("playback.seek_rewind", err)
	}

	m.mu.Lock()
	m.frame = 0
	m.audioPos = 0
	m.videoPos = 0
	m.atEnd = false
	m.mu.Unlock()
	m.ring.Drain(0)

	for {
		kind, err := m.reader.NextChunkKind()
		if err != nil {
			return m.fail("playback.seek_next_kind", err)
		}
		if kind == container.TagStreamEnd {
			if err := m.reader.SeekRelative(-4); err != nil {
				return m.fail("playback.seek_rewind_done", err)
			}
			m.mu.Lock()
			m.atEnd = true
			m.mu.Unlock()
			break
		}

		hdr, err := m.reader.ReadChunkHeaderBody(kind)
		if err != nil {
			return m.fail("playback.seek_read_header", err)
		}

		if kind == container.TagVideoData {
			m.mu.Lock()
			m.frame++
			m.mu.Unlock()
		}

		if hdr.Timestamp >= targetMs {
			if err := m.reader.SeekRelative(-int64(chunkHeaderSize)); err != nil {
				return m.fail("playback.seek_rewind_match", err)
			}
			if kind == container.TagVideoData {
				m.mu.Lock()
				m.frame--
				m.mu.Unlock()
			}
			break
		}

		if err := m.reader.SkipPayload(hdr.Length); err != nil {
			return m.fail("playback.seek_skip_payload", err)
		}
	}

	m.mu.Lock()
	m.clockBase = targetMs
	if m.running {
		m.clockAnchor = time.Now()
	}
	m.mu.Unlock()

	m.publish(hooks.EventSeek, "", map[string]interface{}{"target_ms": targetMs})
	return nil
}

// Rewind seeks back to the beginning of the chunk stream.
func (m *Movie) Rewind() error {
	return m.Seek(0)
}
