package mux

import (
	"bytes"
	"errors"
	"testing"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
)

type sliceSource struct {
	items [][]byte
	pos   int
}

func (s *sliceSource) Next() ([]byte, bool) {
	if s.pos >= len(s.items) {
		return nil, false
	}
	v := s.items[s.pos]
	s.pos++
	return v, true
}

func TestWriteHeaderStructure(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	video := &VideoConfig{FPS: 10, Width: 4, Height: 4, Frames: 1}
	if err := w.WriteHeader(0, nil, video); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	data := buf.Bytes()
	if !bytes.Equal(data[:8], container.Magic[:]) {
		t.Fatalf("magic mismatch: % x", data[:8])
	}
	// version(4) + duration(4) then "_VID" tag
	tagOff := 8 + 8
	if string(data[tagOff:tagOff+4]) != "_VID" {
		t.Fatalf("expected _VID tag at %d, got %q", tagOff, data[tagOff:tagOff+4])
	}
}

// TestDurationBytesMatchOneFrameFifteenFPS pins the exact duration bytes a
// single 16x16 frame at 15fps must produce: callers compute duration as
// frame_count * trunc(1000/fps) ms, matching the per-chunk timestamp math
// the muxer itself uses, not a rounded total.
func TestDurationBytesMatchOneFrameFifteenFPS(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)
	video := &VideoConfig{FPS: 15, Width: 16, Height: 16, Frames: 1}
	duration := uint32(1) * msPerVideoFrame(15)
	if err := w.WriteHeader(duration, nil, video); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	data := buf.Bytes()
	want := []byte{0x00, 0x0A, 0x53, 0x4D, 0x4A, 0x50, 0x45, 0x47, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x00, 0x42}
	if !bytes.Equal(data[:16], want) {
		t.Fatalf("header bytes = % x, want % x", data[:16], want)
	}
}

// failOnTagWriter lets every write through except one matching a specific
// 4-byte tag, isolating a failure to a single sentinel write regardless of
// how many underlying Write calls the container package splits a header or
// chunk into.
type failOnTagWriter struct {
	buf     bytes.Buffer
	failTag []byte
}

func (f *failOnTagWriter) Write(p []byte) (int, error) {
	if bytes.Equal(p, f.failTag) {
		return 0, errors.New("disk full")
	}
	return f.buf.Write(p)
}

func TestStreamEndFailureIsFinalizeError(t *testing.T) {
	fw := &failOnTagWriter{failTag: []byte("DONE")}
	w := NewWriter(fw, nil)
	video := &VideoConfig{FPS: 10, Width: 2, Height: 2, Frames: 0}
	if err := w.WriteHeader(0, nil, video); err != nil {
		t.Fatalf("WriteHeader: %v", err)
	}
	err := w.WriteStreamEnd()
	if err == nil {
		t.Fatal("expected an error from the failing writer")
	}
	if got := smjpegerrors.StatusCode(err); got != 6 {
		t.Fatalf("status code = %d, want 6", got)
	}
}

func TestMuxAudioStaysWithinTwoFrameBound(t *testing.T) {
	var buf bytes.Buffer
	w := NewWriter(&buf, nil)

	audioCfg := &AudioConfig{Rate: 11025, Bits: 16, Channels: 1, ADPCM: false}
	videoCfg := &VideoConfig{FPS: 10, Width: 2, Height: 2, Frames: 3}

	frameBytes := audioFrameSize(16)
	audioFrames := &sliceSource{items: make([][]byte, 0, 20)}
	for i := 0; i < 20; i++ {
		audioFrames.items = append(audioFrames.items, make([]byte, frameBytes))
	}
	videoFrames := &sliceSource{items: [][]byte{{0xFF, 0xD8}, {0xFF, 0xD8}, {0xFF, 0xD8}}}

	if err := w.Mux(0, audioCfg, videoCfg, audioFrames, videoFrames); err != nil {
		t.Fatalf("Mux: %v", err)
	}

	data := buf.Bytes()
	if !bytes.HasSuffix(data, []byte("DONE")) {
		t.Fatalf("stream does not end with DONE sentinel")
	}
	// Walk chunks after HEND and verify that, while video frames remain to
	// be written, no audio timestamp reaches 2*msPerVideoFrame past the
	// timestamp of the next video frame. Audio flushed after the last video
	// frame is not bounded.
	idx := bytes.Index(data, []byte("HEND"))
	if idx < 0 {
		t.Fatal("HEND sentinel not found")
	}
	pos := idx + 4
	msPerVideo := msPerVideoFrame(10)
	nextVideo := uint32(0)
	videoSeen := uint32(0)
	for pos+12 <= len(data) {
		kind := string(data[pos : pos+4])
		if kind == "DONE" {
			break
		}
		ts := uint32(data[pos+4])<<24 | uint32(data[pos+5])<<16 | uint32(data[pos+6])<<8 | uint32(data[pos+7])
		length := uint32(data[pos+8])<<24 | uint32(data[pos+9])<<16 | uint32(data[pos+10])<<8 | uint32(data[pos+11])
		pos += 12
		if kind == "sndD" {
			if videoSeen < videoCfg.Frames && ts >= nextVideo+2*msPerVideo {
				t.Fatalf("audio chunk at %dms reaches 2-frame bound ahead of next video frame at %dms", ts, nextVideo)
			}
		} else if kind == "vidD" {
			nextVideo = ts + msPerVideo
			videoSeen++
		}
		pos += int(length)
	}
}
