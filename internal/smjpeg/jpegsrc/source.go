// Package jpegsrc adapts a single SMJPEG video chunk's payload into the
// small source-manager contract the reference decoder used
// (init/fill/skip/term), expressed here as a Go interface backing an
// io.Reader so it can feed the standard library's image/jpeg decoder
// directly. Its one documented quirk, carried over deliberately: when the
// chunk's declared payload is exhausted mid-decode (a truncated frame), Fill
// synthesizes a JPEG end-of-image marker instead of returning an error, so
// the caller gets a best-effort partial image rather than a hard failure.
package jpegsrc

import (
	"io"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
)

// maxFill bounds a single underlying read, matching the reference decoder's
// fixed scratch buffer size.
const maxFill = 4096

// eoiMarker is the two-byte JPEG End Of Image marker synthesized once a
// chunk's declared length has been fully consumed without a natural EOI,
// letting the decoder terminate gracefully on truncated input.
var eoiMarker = [2]byte{0xFF, 0xD9}

// Manager is the source-manager contract a JPEG chunk source satisfies:
// Init resets per-decode state, Fill supplies more bytes, Skip discards
// bytes the decoder chose not to read (e.g. a skipped marker segment), and
// Term releases any resources. The standard decoder only needs Fill via the
// io.Reader adapter below, but the full contract is kept so alternate JPEG
// decoders (or tests) can exercise Skip/Term directly.
type Manager interface {
	Init() error
	Fill(buf []byte) (int, error)
	Skip(n int64) error
	Term() error
}

// Source implements Manager and io.Reader over a single chunk's payload,
// read from an underlying stream positioned at the payload's first byte.
type Source struct {
	r          io.Reader
	remaining  int64
	eoiSent    bool
	underflows int
}

// New returns a Source that will read at most length bytes from r before
// switching to synthesized-EOI behavior.
func New(r io.Reader, length int64) *Source {
	return &Source{r: r, remaining: length}
}

// Init resets the synthesized-EOI state; callers reusing a Source across
// chunks should not call this, since each chunk gets a fresh Source.
func (s *Source) Init() error {
	s.eoiSent = false
	return nil
}

// Fill implements Manager: it reads up to maxFill bytes bounded by both len(buf)
// and the chunk's remaining declared length. Once remaining hits zero it
// synthesizes the EOI marker exactly once, then reports io.EOF.
func (s *Source) Fill(buf []byte) (int, error) {
	if s.remaining <= 0 {
		if !s.eoiSent {
			s.eoiSent = true
			s.underflows++
			n := copy(buf, eoiMarker[:])
			return n, nil
		}
		return 0, io.EOF
	}
	want := int64(len(buf))
	if want > maxFill {
		want = maxFill
	}
	if want > s.remaining {
		want = s.remaining
	}
	n, err := s.r.Read(buf[:want])
	s.remaining -= int64(n)
	if err != nil && err != io.EOF {
		return n, smjpegerrors.NewIoError("jpegsrc.fill", err)
	}
	if err == io.EOF {
		// Underlying stream ended before the declared length did; treat the
		// remainder as already consumed. If this read produced no bytes the
		// EOI marker is synthesized right away, otherwise on the next Fill.
		s.remaining = 0
		if n == 0 {
			return s.Fill(buf)
		}
	}
	return n, nil
}

// Skip discards n bytes from the remaining payload without decoding them.
func (s *Source) Skip(n int64) error {
	if n <= 0 {
		return nil
	}
	if n > s.remaining {
		n = s.remaining
	}
	if _, err := io.CopyN(io.Discard, s.r, n); err != nil {
		return smjpegerrors.NewIoError("jpegsrc.skip", err)
	}
	s.remaining -= n
	return nil
}

// Term is a no-op; the underlying reader's lifetime is owned by the caller
// (typically the demux Reader positioned within the chunk stream).
func (s *Source) Term() error { return nil }

// Underflowed reports whether Fill had to synthesize an EOI marker because
// the chunk's payload was shorter than its declared length implied.
func (s *Source) Underflowed() bool { return s.underflows > 0 }

// Remaining reports how many declared-length bytes have not yet been read
// (or synthesized away). A decoder that stops at an in-stream EOI before
// consuming the whole chunk leaves this non-zero; callers must skip it
// before reading the next chunk header so the stream stays aligned.
func (s *Source) Remaining() int64 {
	if s.remaining < 0 {
		return 0
	}
	return s.remaining
}

// Read adapts the Manager contract to io.Reader so image/jpeg.Decode can
// consume a Source directly.
func (s *Source) Read(buf []byte) (int, error) {
	return s.Fill(buf)
}
