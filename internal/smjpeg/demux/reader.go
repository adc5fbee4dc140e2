// Package demux implements SMJPEG container loading: validating the magic
// and version, parsing the track header list up to the "HEND" sentinel,
// and then walking the interleaved data-chunk stream one header at a time.
// It owns only structural parsing; chunk timing decisions (skip/wait/play)
// belong to the playback package, which drives this Reader.
package demux

import (
	"fmt"
	"io"
	"log/slog"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/byteio"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
)

// maxHeaderBodySize guards against a corrupt or adversarial declared length
// ballooning an allocation; no real SMJPEG header body approaches this.
const maxHeaderBodySize = 1 << 20

// Reader parses an SMJPEG file from a seekable source. Loading populates
// Global and the optional Audio/Video headers; after Load returns, the
// underlying stream is positioned at BodyStart, the first data chunk.
type Reader struct {
	r      io.ReadSeeker
	logger *slog.Logger

	Global container.GlobalHeader
	Audio  *container.AudioHeader
	Video  *container.VideoHeader

	bodyStart int64
}

// Load opens and validates an SMJPEG stream: magic, version, duration, and
// the track header list. logger may be nil, in which case slog.Default is
// used for warnings about rejected track headers (unrecognized track kinds
// are logged at debug level and skipped).
func Load(r io.ReadSeeker, logger *slog.Logger) (*Reader, error) {
	if logger == nil {
		logger = slog.Default()
	}
	global, err := container.ReadGlobalHeader(r)
	if err != nil {
		return nil, err
	}
	rd := &Reader{r: r, logger: logger, Global: global}

	for {
		kind, err := container.ReadChunkKind(r)
		if err != nil {
			return nil, err
		}
		switch kind {
		case container.TagHeaderEnd:
			pos, err := r.Seek(0, io.SeekCurrent)
			if err != nil {
				return nil, smjpegerrors.NewIoError("demux.tell_body_start", err)
			}
			rd.bodyStart = pos
			return rd, nil
		case container.TagAudioHeader:
			length, err := readLen(r)
			if err != nil {
				return nil, err
			}
			body, err := container.ReadAudioHeaderBody(r, length)
			if err != nil {
				logger.Warn("audio track header rejected, audio disabled", "error", err)
				continue
			}
			rd.Audio = &body
		case container.TagVideoHeader:
			length, err := readLen(r)
			if err != nil {
				return nil, err
			}
			body, err := container.ReadVideoHeaderBody(r, length)
			if err != nil {
				logger.Warn("video track header rejected, video disabled", "error", err)
				continue
			}
			rd.Video = &body
		default:
			length, err := readLen(r)
			if err != nil {
				return nil, err
			}
			logger.Debug("skipping unrecognized track header", "kind", fmt.Sprintf("%q", kind), "length", length)
			if err := container.SkipBody(r, length); err != nil {
				return nil, err
			}
		}
	}
}

func readLen(r io.Reader) (uint32, error) {
	length, err := byteio.ReadUint32(r)
	if err != nil {
		return 0, smjpegerrors.NewIoError("demux.read_header_length", err)
	}
	if length > maxHeaderBodySize {
		return 0, smjpegerrors.NewOutOfMemoryError("demux.read_header_length")
	}
	return length, nil
}

// BodyStart returns the stream offset of the first data chunk, the rewind
// target for Seek(0) and the starting point every seek walk replays from.
func (rd *Reader) BodyStart() int64 { return rd.bodyStart }

// Rewind seeks back to BodyStart.
func (rd *Reader) Rewind() error {
	if _, err := rd.r.Seek(rd.bodyStart, io.SeekStart); err != nil {
		return smjpegerrors.NewIoError("demux.rewind", err)
	}
	return nil
}

// Pos returns the current stream offset.
func (rd *Reader) Pos() (int64, error) {
	pos, err := rd.r.Seek(0, io.SeekCurrent)
	if err != nil {
		return 0, smjpegerrors.NewIoError("demux.tell", err)
	}
	return pos, nil
}

// SeekTo seeks the underlying stream to an absolute offset, used by the
// playback scheduler's rewind-after-peek logic.
func (rd *Reader) SeekTo(offset int64) error {
	if _, err := rd.r.Seek(offset, io.SeekStart); err != nil {
		return smjpegerrors.NewIoError("demux.seek_to", err)
	}
	return nil
}

// SeekRelative seeks the underlying stream by a relative offset from the
// current position (negative to rewind), used to back up over a just-read
// chunk header when a decision needs to be replayed later.
func (rd *Reader) SeekRelative(delta int64) error {
	if _, err := rd.r.Seek(delta, io.SeekCurrent); err != nil {
		return smjpegerrors.NewIoError("demux.seek_relative", err)
	}
	return nil
}

// NextChunkKind reads the next 4-byte chunk kind tag without consuming any
// further header bytes. Callers use this to detect the "DONE" sentinel,
// which has no trailing timestamp/length, before deciding whether to parse
// a full ChunkHeader.
func (rd *Reader) NextChunkKind() ([4]byte, error) {
	kind, err := container.ReadChunkKind(rd.r)
	if err != nil {
		return kind, err
	}
	return kind, nil
}

// ReadChunkHeaderBody reads the timestamp and length following an
// already-consumed kind tag (see NextChunkKind).
func (rd *Reader) ReadChunkHeaderBody(kind [4]byte) (container.ChunkHeader, error) {
	return container.ReadChunkHeaderBody(rd.r, kind)
}

// SkipPayload discards n bytes of chunk payload.
func (rd *Reader) SkipPayload(n uint32) error {
	return container.SkipBody(rd.r, n)
}

// ReadPayload reads exactly n bytes of chunk payload into a fresh buffer.
func (rd *Reader) ReadPayload(n uint32) ([]byte, error) {
	buf := make([]byte, n)
	if _, err := io.ReadFull(rd.r, buf); err != nil {
		return nil, smjpegerrors.NewIoError("demux.read_payload", err)
	}
	return buf, nil
}

// Payload exposes the underlying reader directly, positioned at the start
// of the current chunk's payload, for streaming consumers (the JPEG source
// shim) that must not buffer the whole chunk up front.
func (rd *Reader) Payload() io.Reader { return rd.r }
