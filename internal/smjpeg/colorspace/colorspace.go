// Package colorspace converts a decoded video frame into one of the pixel
// formats a render target can accept. Unlike the reference decoder, which
// bent libjpeg's own colorspace converter to emit RGB555/565 and an
// optional horizontal doubling variant, conversion here is a separate stage
// applied to an already-decoded image.Image: the JPEG decode always
// produces standard YCbCr/RGB, and this package is solely responsible for
// packing that into the target's pixel format and, when requested,
// duplicating pixels for 2x scaling.
package colorspace

import (
	"fmt"
	"image"

	smjpegerrors "github.com/alxayo/go-smjpeg/internal/errors"
)

// Format identifies a packed-pixel target layout.
type Format int

const (
	// RGB555 packs 5 bits per channel into the low 15 bits of a uint16.
	RGB555 Format = iota
	// RGB565 packs 5/6/5 bits per channel into a uint16.
	RGB565
	// RGB24 packs 8 bits per channel into 3 bytes, red first.
	RGB24
)

// BytesPerPixel returns the packed size of one pixel in the given format.
func BytesPerPixel(f Format) int {
	switch f {
	case RGB555, RGB565:
		return 2
	case RGB24:
		return 3
	default:
		return 0
	}
}

// Select maps a target surface's bits-per-pixel and channel masks onto a
// Format, matching the bit depth/mask switch the reference target-selection
// routine performed. Any combination it does not recognize is Unsupported.
func Select(bitsPerPixel int, rMask, gMask, bMask uint32) (Format, error) {
	switch bitsPerPixel {
	case 15:
		if rMask == 0x7C00 && gMask == 0x03E0 && bMask == 0x001F {
			return RGB555, nil
		}
	case 16:
		if rMask == 0xF800 && gMask == 0x07E0 && bMask == 0x001F {
			return RGB565, nil
		}
	case 24, 32:
		if rMask == 0xFF0000 && gMask == 0x00FF00 && bMask == 0x0000FF {
			return RGB24, nil
		}
	}
	return 0, smjpegerrors.NewUnsupportedError("colorspace.select",
		fmt.Errorf("no known format for %d bpp, masks %06x/%06x/%06x", bitsPerPixel, rMask, gMask, bMask))
}

// encodePixel packs one RGB triple into dst at offset 0 and returns the
// number of bytes written.
func encodePixel(dst []byte, f Format, r, g, b uint8) int {
	switch f {
	case RGB555:
		v := uint16(r>>3)<<10 | uint16(g>>3)<<5 | uint16(b>>3)
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		return 2
	case RGB565:
		v := uint16(r>>3)<<11 | uint16(g>>2)<<5 | uint16(b>>3)
		dst[0] = byte(v)
		dst[1] = byte(v >> 8)
		return 2
	case RGB24:
		dst[0] = r
		dst[1] = g
		dst[2] = b
		return 3
	default:
		return 0
	}
}

// RowBytes returns the byte length of one output row for the given source
// width, format, and whether horizontal doubling is in effect.
func RowBytes(width int, f Format, double bool) int {
	n := width * BytesPerPixel(f)
	if double {
		n *= 2
	}
	return n
}

// Render converts img into the row-pointer array rows, one slice per
// destination row, each already sized per RowBytes (and, when double is
// true, already counting twice as many destination rows as img is tall).
// Rows must have len(rows) == img height, or == 2*height when double.
func Render(img image.Image, rows [][]byte, f Format, double bool) error {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	wantRows := h
	if double {
		wantRows = h * 2
	}
	if len(rows) < wantRows {
		return smjpegerrors.NewOutOfMemoryError("colorspace.render")
	}
	for y := 0; y < h; y++ {
		dstRow := y
		if double {
			dstRow = y * 2
		}
		row := rows[dstRow]
		if len(row) < RowBytes(w, f, double) {
			return smjpegerrors.NewOutOfMemoryError("colorspace.render")
		}
		pos := 0
		for x := 0; x < w; x++ {
			r16, g16, bl16, _ := img.At(b.Min.X+x, b.Min.Y+y).RGBA()
			r8, g8, b8 := uint8(r16>>8), uint8(g16>>8), uint8(bl16>>8)
			pos += encodePixel(row[pos:], f, r8, g8, b8)
			if double {
				pos += encodePixel(row[pos:], f, r8, g8, b8)
			}
		}
		if double {
			copy(rows[dstRow+1][:len(row)], row)
		}
	}
	return nil
}
