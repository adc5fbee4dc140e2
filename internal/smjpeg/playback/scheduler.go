package playback

import (
	"fmt"
	"time"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"

	"github.com/alxayo/go-smjpeg/internal/bufpool"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/adpcm"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
)

// chunkHeaderSize is the byte length of kind+timestamp+length, the unit
// SeekRelative(-chunkHeaderSize) rewinds over when a chunk's decision must
// be replayed on a later Advance call.
const chunkHeaderSize = container.ChunkHeaderSize

// Advance drives up to n data chunks through the scheduler, returning how
// many were actually played (decoded and delivered) rather than skipped.
// When doWait is true, a video chunk whose presentation time hasn't
// arrived yet is waited out with a bounded sleep; when false, encountering
// such a chunk stops the batch early (DecisionDeferred) so the caller can
// retry on its own schedule instead of blocking.
func (m *Movie) Advance(n int, doWait bool) (played int, err error) {
	for i := 0; i < n; i++ {
		decision, err := m.step(doWait)
		if err != nil {
			return played, err
		}
		switch decision {
		case DecisionPlayed:
			played++
		case DecisionEnded, DecisionDeferred:
			return played, nil
		case DecisionSkipped:
			// keep advancing
		}
	}
	return played, nil
}

// step processes exactly one data chunk (or the stream-end sentinel) and
// reports what happened to it.
func (m *Movie) step(doWait bool) (Decision, error) {
	kind, err := m.reader.NextChunkKind()
	if err != nil {
		return DecisionEnded, m.fail("playback.next_chunk_kind", err)
	}

	switch kind {
	case container.TagStreamEnd:
		if err := m.reader.SeekRelative(-4); err != nil {
			return DecisionEnded, m.fail("playback.rewind_stream_end", err)
		}
		m.mu.Lock()
		m.atEnd = true
		m.mu.Unlock()
		return DecisionEnded, nil

	case container.TagAudioData:
		return m.stepAudio()

	case container.TagVideoData:
		return m.stepVideo(doWait)

	default:
		hdr, err := m.reader.ReadChunkHeaderBody(kind)
		if err != nil {
			return DecisionEnded, m.fail("playback.read_unknown_header", err)
		}
		if err := m.reader.SkipPayload(hdr.Length); err != nil {
			return DecisionEnded, m.fail("playback.skip_unknown_payload", err)
		}
		return DecisionSkipped, nil
	}
}

func (m *Movie) stepAudio() (Decision, error) {
	hdr, err := m.reader.ReadChunkHeaderBody(container.TagAudioData)
	if err != nil {
		return DecisionEnded, m.fail("playback.read_audio_header", err)
	}

	m.mu.Lock()
	enabled := m.audioEnabled
	late := m.running && m.now() > hdr.Timestamp+latenessToleranceMs
	m.mu.Unlock()

	if !enabled || late {
		if err := m.reader.SkipPayload(hdr.Length); err != nil {
			return DecisionEnded, m.fail("playback.skip_audio_payload", err)
		}
		if late {
			m.publish(hooks.EventFrameSkipped, "audio", map[string]interface{}{"timestamp_ms": hdr.Timestamp})
		}
		return DecisionSkipped, nil
	}

	payload, err := m.reader.ReadPayload(hdr.Length)
	if err != nil {
		return DecisionEnded, m.fail("playback.read_audio_payload", err)
	}

	pcm, err := m.decodeAudio(payload)
	if err != nil {
		m.logger.Warn("audio chunk decode failed, disabling audio track", "movie_id", m.ID, "error", err)
		m.DisableTrack("audio")
		return DecisionSkipped, nil
	}

	for off := 0; off < len(pcm); off += ringPushChunk(len(pcm) - off) {
		end := off + ringPushChunk(len(pcm)-off)
		m.ring.Push(pcm[off:end])
	}
	bufpool.Put(pcm)

	m.mu.Lock()
	m.audioPos = hdr.Timestamp
	m.mu.Unlock()
	m.publish(hooks.EventFramePlayed, "audio", map[string]interface{}{
		"timestamp_ms":   hdr.Timestamp,
		"ring_occupancy": m.ring.Occupancy(),
	})
	return DecisionPlayed, nil
}

// ringPushChunk bounds one Push call to the ring's fixed slot size.
func ringPushChunk(remaining int) int {
	const slotSize = 4096
	if remaining > slotSize {
		return slotSize
	}
	return remaining
}

// decodeAudio turns one audio chunk's payload into raw PCM bytes, resetting
// the ADPCM predictor from the chunk's own embedded prefix when the track
// is APCM-encoded (decode never carries state across chunks; only the
// encoder's running state does that).
func (m *Movie) decodeAudio(payload []byte) ([]byte, error) {
	switch m.reader.Audio.Encoding {
	case container.AudioEncodingNone:
		return payload, nil
	case container.AudioEncodingADPCM:
		// fall through to the ADPCM path below
	default:
		return nil, smjpegerrors.NewUnsupportedError("playback.decode_audio",
			fmt.Errorf("unknown audio encoding %q", string(m.reader.Audio.Encoding[:])))
	}
	state, err := adpcm.ReadPrefix(payload)
	if err != nil {
		return nil, err
	}
	nibbles := payload[adpcm.PrefixSize:]
	samples := make([]int16, len(nibbles)*2)
	adpcm.Decode(&state, nibbles, samples)

	out := bufpool.Get(len(samples) * 2)
	for i, s := range samples {
		out[i*2] = byte(uint16(s))
		out[i*2+1] = byte(uint16(s) >> 8)
	}
	return out, nil
}

func (m *Movie) stepVideo(doWait bool) (Decision, error) {
	hdr, err := m.reader.ReadChunkHeaderBody(container.TagVideoData)
	if err != nil {
		return DecisionEnded, m.fail("playback.read_video_header", err)
	}

	m.mu.Lock()
	running := m.running
	now := m.now()
	m.mu.Unlock()

	window := hdr.Timestamp + latenessToleranceMs

	if running && now > window {
		if err := m.reader.SkipPayload(hdr.Length); err != nil {
			return DecisionEnded, m.fail("playback.skip_video_payload", err)
		}
		m.publish(hooks.EventFrameSkipped, "video", map[string]interface{}{"timestamp_ms": hdr.Timestamp})
		return DecisionSkipped, nil
	}

	if running && now < hdr.Timestamp {
		if !doWait {
			// Rewind over the kind tag and the header just read so the next
			// Advance call sees this exact chunk again and re-decides.
			if err := m.reader.SeekRelative(-int64(chunkHeaderSize)); err != nil {
				return DecisionEnded, m.fail("playback.rewind_video_defer", err)
			}
			return DecisionDeferred, nil
		}
		wait := hdr.Timestamp - now
		if wait > 10 {
			wait -= 10
		} else {
			wait = 0
		}
		time.Sleep(time.Duration(wait) * time.Millisecond)
	}

	if !m.videoTrackEnabled() {
		if err := m.reader.SkipPayload(hdr.Length); err != nil {
			return DecisionEnded, m.fail("playback.skip_video_payload", err)
		}
		return DecisionSkipped, nil
	}

	if err := m.decodeAndRenderVideo(hdr); err != nil {
		m.logger.Warn("video chunk decode failed, disabling video track", "movie_id", m.ID, "error", err)
		m.DisableTrack("video")
		return DecisionSkipped, nil
	}

	m.mu.Lock()
	m.videoPos = hdr.Timestamp
	m.frame++
	m.mu.Unlock()
	m.publish(hooks.EventFramePlayed, "video", map[string]interface{}{"timestamp_ms": hdr.Timestamp})
	return DecisionPlayed, nil
}

func (m *Movie) videoTrackEnabled() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.videoEnabled
}
