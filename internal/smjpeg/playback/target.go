package playback

import (
	"fmt"
	"image"
	"sync"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
	"github.com/alxayo/go-smjpeg/internal/smjpeg/colorspace"
)

// Target binds a Movie's video track to a render surface: a pixel format,
// a destination rectangle, and whether frames are drawn at 2x via row/pixel
// doubling. Row buffers are owned by Target and reused across renders;
// callers must not retain a []byte handed to VideoSurface.Render past the
// call that delivered it, mirroring the reference decoder's row-pointer
// arrays that are only valid while the destination surface is locked.
type Target struct {
	mu      sync.Mutex
	x, y    int
	format  colorspace.Format
	double  bool
	surface VideoSurface
	rows    [][]byte
}

// NewTarget validates the destination geometry against the negotiated
// surface's bit depth/mask and the movie's video dimensions, returning a
// Target ready to be installed with Movie.SetTarget.
func NewTarget(x, y, surfaceWidth, surfaceHeight, videoWidth, videoHeight int, bitsPerPixel int, rMask, gMask, bMask uint32, double bool, surface VideoSurface) (*Target, error) {
	format, err := colorspace.Select(bitsPerPixel, rMask, gMask, bMask)
	if err != nil {
		return nil, err
	}
	if double && format == colorspace.RGB24 {
		// The reference decoder's doubling colorspace extensions only ever
		// covered the 15/16-bit hicolor formats; there is no RGB24 doubled
		// variant to fall back to.
		return nil, smjpegerrors.NewUnsupportedError("playback.new_target",
			fmt.Errorf("pixel doubling is not supported on a 24-bit surface"))
	}

	scale := 1
	if double {
		scale = 2
	}
	if x < 0 || y < 0 || x+videoWidth*scale > surfaceWidth || y+videoHeight*scale > surfaceHeight {
		return nil, smjpegerrors.NewTargetOutOfBoundsError("playback.new_target")
	}

	rowCount := videoHeight
	if double {
		rowCount = videoHeight * 2
	}
	rowBytes := colorspace.RowBytes(videoWidth, format, double)
	rows := make([][]byte, rowCount)
	for i := range rows {
		rows[i] = make([]byte, rowBytes)
	}

	return &Target{x: x, y: y, format: format, double: double, surface: surface, rows: rows}, nil
}

// render converts img using the pre-sized row buffers and hands them to the
// surface. Only one render runs at a time per Target.
func (t *Target) render(img image.Image, timestampMs uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if err := colorspace.Render(img, t.rows, t.format, t.double); err != nil {
		return err
	}
	return t.surface.Render(timestampMs, t.rows)
}

// SetTarget installs (or clears, with nil) the render target for this
// movie's video track.
func (m *Movie) SetTarget(t *Target) {
	m.mu.Lock()
	m.target = t
	m.mu.Unlock()
}
