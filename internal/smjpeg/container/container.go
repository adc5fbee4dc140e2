// Package container defines the SMJPEG wire format: the magic number, the
// fixed-size header structures that precede the track list, and the
// fixed 12-byte chunk header that precedes every audio/video data unit.
// It owns only structural encode/decode — timing, codec, and playback
// semantics live in the mux, demux, and playback packages built on top
// of it.
package container

import (
	"fmt"
	"io"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/byteio"
)

// FormatVersion is the only version this implementation accepts, matching
// the file's single supported wire revision.
const FormatVersion uint32 = 0

// Magic is the 8-byte signature that opens every SMJPEG file.
var Magic = [8]byte{0x00, 0x0A, 'S', 'M', 'J', 'P', 'E', 'G'}

// Tag identifiers. Audio/video header tags and the header-end sentinel
// appear once, in the track list; data-chunk kinds and the stream-end
// sentinel repeat for the life of the file.
var (
	TagAudioHeader = byteio.Tag4("_SND")
	TagVideoHeader = byteio.Tag4("_VID")
	TagHeaderEnd   = byteio.Tag4("HEND")
	TagAudioData   = byteio.Tag4("sndD")
	TagVideoData   = byteio.Tag4("vidD")
	TagStreamEnd   = byteio.Tag4("DONE")
)

// Encoding identifiers carried inside AudioHeader.Encoding / VideoHeader.Encoding.
var (
	AudioEncodingNone  = byteio.Tag4("NONE")
	AudioEncodingADPCM = byteio.Tag4("APCM")
	VideoEncodingJFIF  = byteio.Tag4("JFIF")
)

// Sizes, in bytes, of each header body (excluding its leading tag+length).
const (
	AudioHeaderBodySize = 8
	VideoHeaderBodySize = 12
	ChunkHeaderSize     = 12
)

// GlobalHeader is the 8-byte block that follows the magic number.
type GlobalHeader struct {
	Version  uint32
	Duration uint32 // total playback duration, milliseconds
}

// WriteGlobalHeader writes the magic and the global header.
func WriteGlobalHeader(w io.Writer, h GlobalHeader) error {
	if _, err := w.Write(Magic[:]); err != nil {
		return smjpegerrors.NewIoError("container.write_magic", err)
	}
	if err := byteio.WriteUint32(w, h.Version); err != nil {
		return smjpegerrors.NewIoError("container.write_version", err)
	}
	if err := byteio.WriteUint32(w, h.Duration); err != nil {
		return smjpegerrors.NewIoError("container.write_duration", err)
	}
	return nil
}

// ReadGlobalHeader reads and validates the magic number and global header.
// An unrecognized magic yields a BadMagicError; an unsupported version
// yields a BadVersionError, both of which are fatal per the status model.
func ReadGlobalHeader(r io.Reader) (GlobalHeader, error) {
	var magic [8]byte
	if _, err := io.ReadFull(r, magic[:]); err != nil {
		return GlobalHeader{}, smjpegerrors.NewIoError("container.read_magic", err)
	}
	if magic != Magic {
		return GlobalHeader{}, smjpegerrors.NewBadMagicError(fmt.Sprintf("container.read_magic: got % x", magic))
	}
	version, err := byteio.ReadUint32(r)
	if err != nil {
		return GlobalHeader{}, smjpegerrors.NewIoError("container.read_version", err)
	}
	if version != FormatVersion {
		return GlobalHeader{}, smjpegerrors.NewBadVersionError(fmt.Sprintf("container.read_version: got %d, want %d", version, FormatVersion))
	}
	duration, err := byteio.ReadUint32(r)
	if err != nil {
		return GlobalHeader{}, smjpegerrors.NewIoError("container.read_duration", err)
	}
	return GlobalHeader{Version: version, Duration: duration}, nil
}

// AudioHeader describes the single audio track, when present.
type AudioHeader struct {
	Rate     uint16
	Bits     uint8
	Channels uint8
	Encoding [4]byte
}

// WriteAudioHeader writes the "_SND" tag, its declared body length, and the
// 8-byte body.
func WriteAudioHeader(w io.Writer, h AudioHeader) error {
	if err := byteio.WriteTag(w, "_SND"); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_tag", err)
	}
	if err := byteio.WriteUint32(w, AudioHeaderBodySize); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_len", err)
	}
	if err := byteio.WriteUint16(w, h.Rate); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_rate", err)
	}
	if err := byteio.WriteUint8(w, h.Bits); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_bits", err)
	}
	if err := byteio.WriteUint8(w, h.Channels); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_channels", err)
	}
	if _, err := w.Write(h.Encoding[:]); err != nil {
		return smjpegerrors.NewIoError("container.write_audio_encoding", err)
	}
	return nil
}

// ReadAudioHeaderBody reads an already-identified "_SND" body of the given
// declared length. Bodies longer than AudioHeaderBodySize are tolerated by
// skipping the trailing bytes (forward-compatible field growth); bodies
// shorter are an Io error.
func ReadAudioHeaderBody(r io.Reader, bodyLen uint32) (AudioHeader, error) {
	if bodyLen < AudioHeaderBodySize {
		return AudioHeader{}, smjpegerrors.NewIoError("container.read_audio_body", fmt.Errorf("body length %d too short", bodyLen))
	}
	var h AudioHeader
	var err error
	if h.Rate, err = byteio.ReadUint16(r); err != nil {
		return AudioHeader{}, smjpegerrors.NewIoError("container.read_audio_rate", err)
	}
	if h.Bits, err = byteio.ReadUint8(r); err != nil {
		return AudioHeader{}, smjpegerrors.NewIoError("container.read_audio_bits", err)
	}
	if h.Channels, err = byteio.ReadUint8(r); err != nil {
		return AudioHeader{}, smjpegerrors.NewIoError("container.read_audio_channels", err)
	}
	if h.Encoding, err = byteio.ReadTag(r); err != nil {
		return AudioHeader{}, smjpegerrors.NewIoError("container.read_audio_encoding", err)
	}
	if extra := bodyLen - AudioHeaderBodySize; extra > 0 {
		if err := SkipBody(r, extra); err != nil {
			return AudioHeader{}, err
		}
	}
	return h, nil
}

// VideoHeader describes the single video track, when present.
type VideoHeader struct {
	Frames   uint32
	Width    uint16
	Height   uint16
	Encoding [4]byte
}

// WriteVideoHeader writes the "_VID" tag, its declared body length, and the
// 12-byte body.
func WriteVideoHeader(w io.Writer, h VideoHeader) error {
	if err := byteio.WriteTag(w, "_VID"); err != nil {
		return smjpegerrors.NewIoError("container.write_video_tag", err)
	}
	if err := byteio.WriteUint32(w, VideoHeaderBodySize); err != nil {
		return smjpegerrors.NewIoError("container.write_video_len", err)
	}
	if err := byteio.WriteUint32(w, h.Frames); err != nil {
		return smjpegerrors.NewIoError("container.write_video_frames", err)
	}
	if err := byteio.WriteUint16(w, h.Width); err != nil {
		return smjpegerrors.NewIoError("container.write_video_width", err)
	}
	if err := byteio.WriteUint16(w, h.Height); err != nil {
		return smjpegerrors.NewIoError("container.write_video_height", err)
	}
	if _, err := w.Write(h.Encoding[:]); err != nil {
		return smjpegerrors.NewIoError("container.write_video_encoding", err)
	}
	return nil
}

// ReadVideoHeaderBody mirrors ReadAudioHeaderBody for the video track.
func ReadVideoHeaderBody(r io.Reader, bodyLen uint32) (VideoHeader, error) {
	if bodyLen < VideoHeaderBodySize {
		return VideoHeader{}, smjpegerrors.NewIoError("container.read_video_body", fmt.Errorf("body length %d too short", bodyLen))
	}
	var h VideoHeader
	var err error
	if h.Frames, err = byteio.ReadUint32(r); err != nil {
		return VideoHeader{}, smjpegerrors.NewIoError("container.read_video_frames", err)
	}
	if h.Width, err = byteio.ReadUint16(r); err != nil {
		return VideoHeader{}, smjpegerrors.NewIoError("container.read_video_width", err)
	}
	if h.Height, err = byteio.ReadUint16(r); err != nil {
		return VideoHeader{}, smjpegerrors.NewIoError("container.read_video_height", err)
	}
	if h.Encoding, err = byteio.ReadTag(r); err != nil {
		return VideoHeader{}, smjpegerrors.NewIoError("container.read_video_encoding", err)
	}
	if extra := bodyLen - VideoHeaderBodySize; extra > 0 {
		if err := SkipBody(r, extra); err != nil {
			return VideoHeader{}, err
		}
	}
	return h, nil
}

// WriteHeaderEnd writes the "HEND" sentinel that closes the track list.
func WriteHeaderEnd(w io.Writer) error {
	if err := byteio.WriteTag(w, "HEND"); err != nil {
		return smjpegerrors.NewIoError("container.write_header_end", err)
	}
	return nil
}

// WriteStreamEnd writes the "DONE" sentinel that closes the chunk stream.
func WriteStreamEnd(w io.Writer) error {
	if err := byteio.WriteTag(w, "DONE"); err != nil {
		return smjpegerrors.NewIoError("container.write_stream_end", err)
	}
	return nil
}

// ChunkHeader precedes every data chunk: a 4-byte kind tag, a millisecond
// timestamp, and the payload length.
type ChunkHeader struct {
	Kind      [4]byte
	Timestamp uint32
	Length    uint32
}

// WriteChunkHeader writes a data-chunk header (kind, timestamp, length).
func WriteChunkHeader(w io.Writer, h ChunkHeader) error {
	if _, err := w.Write(h.Kind[:]); err != nil {
		return smjpegerrors.NewIoError("container.write_chunk_kind", err)
	}
	if err := byteio.WriteUint32(w, h.Timestamp); err != nil {
		return smjpegerrors.NewIoError("container.write_chunk_timestamp", err)
	}
	if err := byteio.WriteUint32(w, h.Length); err != nil {
		return smjpegerrors.NewIoError("container.write_chunk_length", err)
	}
	return nil
}

// ReadChunkKind reads only the 4-byte kind tag, used by the header-list and
// chunk-stream loops to dispatch before committing to a full header parse.
func ReadChunkKind(r io.Reader) ([4]byte, error) {
	tag, err := byteio.ReadTag(r)
	if err != nil {
		return tag, smjpegerrors.NewIoError("container.read_chunk_kind", err)
	}
	return tag, nil
}

// ReadChunkHeaderBody reads the timestamp and length that follow an
// already-consumed kind tag.
func ReadChunkHeaderBody(r io.Reader, kind [4]byte) (ChunkHeader, error) {
	ts, err := byteio.ReadUint32(r)
	if err != nil {
		return ChunkHeader{}, smjpegerrors.NewIoError("container.read_chunk_timestamp", err)
	}
	length, err := byteio.ReadUint32(r)
	if err != nil {
		return ChunkHeader{}, smjpegerrors.NewIoError("container.read_chunk_length", err)
	}
	return ChunkHeader{Kind: kind, Timestamp: ts, Length: length}, nil
}

// SkipBody discards n bytes, using Seek when the reader supports it and
// falling back to a bounded copy otherwise. Used both for forward-compatible
// header-body padding and for skipping unknown chunk kinds during demux.
func SkipBody(r io.Reader, n uint32) error {
	if n == 0 {
		return nil
	}
	if seeker, ok := r.(io.Seeker); ok {
		if _, err := seeker.Seek(int64(n), io.SeekCurrent); err != nil {
			return smjpegerrors.NewIoError("container.skip_body", err)
		}
		return nil
	}
	if _, err := io.CopyN(io.Discard, r, int64(n)); err != nil {
		return smjpegerrors.NewIoError("container.skip_body", err)
	}
	return nil
}
