package playback

import (
	"image/jpeg"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/container"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/hooks"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/jpegsrc"
)

// decodeAndRenderVideo decodes one video chunk's JPEG payload and, if a
// Target has been negotiated, renders it. A truncated payload (the chunk's
// declared length ran out before the decoder found an end-of-image marker)
// is not fatal: jpegsrc synthesizes an EOI and decoding proceeds on
// whatever was received, with a truncated event published for observers.
func (m *Movie) decodeAndRenderVideo(hdr container.ChunkHeader) error {
	src := jpegsrc.New(m.reader.Payload(), int64(hdr.Length))
	if err := src.Init(); err != nil {
		return err
	}

	img, decodeErr := jpeg.Decode(src)
	if src.Underflowed() {
		m.publish(hooks.EventTruncated, "video", map[string]interface{}{"timestamp_ms": hdr.Timestamp})
	}
	// The JPEG decoder stops at the first EOI marker, which can arrive
	// before the chunk's declared length is exhausted; skip whatever is
	// left so the stream stays aligned on the next chunk header.
	if leftover := src.Remaining(); leftover > 0 {
		if err := m.reader.SkipPayload(uint32(leftover)); err != nil {
			return err
		}
	}
	if decodeErr != nil {
		return smjpegerrors.NewUnsupportedError("playback.jpeg_decode", decodeErr)
	}

	m.mu.Lock()
	target := m.target
	m.mu.Unlock()
	if target == nil {
		return nil
	}
	return target.render(img, hdr.Timestamp)
}
