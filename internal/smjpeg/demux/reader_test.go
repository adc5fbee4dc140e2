package demux

import (
	"bytes"
	"io"
	"testing"

	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
)

type seekableBuffer struct {
	*bytes.Reader
}

func newSeekable(b []byte) *seekableBuffer {
	return &seekableBuffer{bytes.NewReader(b)}
}

func buildMinimalStream(t *testing.T) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := container.WriteGlobalHeader(&buf, container.GlobalHeader{Version: 0, Duration: 1000}); err != nil {
		t.Fatal(err)
	}
	if err := container.WriteVideoHeader(&buf, container.VideoHeader{
		Frames: 1, Width: 4, Height: 4, Encoding: container.VideoEncodingJFIF,
	}); err != nil {
		t.Fatal(err)
	}
	if err := container.WriteHeaderEnd(&buf); err != nil {
		t.Fatal(err)
	}
	if err := container.WriteChunkHeader(&buf, container.ChunkHeader{
		Kind: container.TagVideoData, Timestamp: 0, Length: 3,
	}); err != nil {
		t.Fatal(err)
	}
	buf.Write([]byte{0xFF, 0xD8, 0xFF})
	if err := container.WriteStreamEnd(&buf); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestLoadParsesVideoHeader(t *testing.T) {
	data := buildMinimalStream(t)
	rd, err := Load(newSeekable(data), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if rd.Video == nil {
		t.Fatal("expected video header parsed")
	}
	if rd.Video.Width != 4 || rd.Video.Height != 4 {
		t.Fatalf("unexpected video dims: %+v", rd.Video)
	}
	if rd.Audio != nil {
		t.Fatal("expected no audio header")
	}
}

func TestWalkChunksToStreamEnd(t *testing.T) {
	data := buildMinimalStream(t)
	rd, err := Load(newSeekable(data), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	kind, err := rd.NextChunkKind()
	if err != nil {
		t.Fatalf("NextChunkKind: %v", err)
	}
	if kind != container.TagVideoData {
		t.Fatalf("got kind %q, want vidD", kind)
	}
	hdr, err := rd.ReadChunkHeaderBody(kind)
	if err != nil {
		t.Fatalf("ReadChunkHeaderBody: %v", err)
	}
	if hdr.Length != 3 {
		t.Fatalf("got length %d, want 3", hdr.Length)
	}
	if err := rd.SkipPayload(hdr.Length); err != nil {
		t.Fatalf("SkipPayload: %v", err)
	}
	kind, err = rd.NextChunkKind()
	if err != nil {
		t.Fatalf("NextChunkKind (end): %v", err)
	}
	if kind != container.TagStreamEnd {
		t.Fatalf("got kind %q, want DONE", kind)
	}
}

func TestRewindReplaysIdenticalSequence(t *testing.T) {
	data := buildMinimalStream(t)
	rd, err := Load(newSeekable(data), nil)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	first, _ := rd.NextChunkKind()
	if err := rd.Rewind(); err != nil {
		t.Fatalf("Rewind: %v", err)
	}
	second, _ := rd.NextChunkKind()
	if first != second {
		t.Fatalf("rewind produced different first chunk: %q vs %q", first, second)
	}
}

func TestBadMagicRejected(t *testing.T) {
	bad := []byte("not-an-smjpeg-file-------------")
	if _, err := Load(newSeekable(bad), nil); err == nil {
		t.Fatal("expected error for bad magic")
	}
}

func TestBadVersionRejected(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(container.Magic[:])
	buf.Write([]byte{0, 0, 0, 1}) // version 1, unsupported
	buf.Write([]byte{0, 0, 0, 0})
	if _, err := Load(newSeekable(buf.Bytes()), nil); err == nil {
		t.Fatal("expected error for bad version")
	}
}

var _ io.ReadSeeker = (*seekableBuffer)(nil)
