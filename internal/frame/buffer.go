// Package frame holds the in-memory RGB raster shared by every output backend.
package frame

import (
	"fmt"
	"image"
	"image/color"
)

// BytesPerPixel is the number of channel bytes stored per pixel (R, G, B).
const BytesPerPixel = 3

// Buffer is a fixed-size, row-major RGB raster. Pix always holds exactly
// Width*Height*3 bytes.
type Buffer struct {
	width  int
	height int
	pix    []byte
}

// New allocates a zeroed buffer. Both dimensions must be positive.
func New(width, height int) (*Buffer, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("frame: invalid dimensions %dx%d", width, height)
	}
	return &Buffer{
		width:  width,
		height: height,
		pix:    make([]byte, width*height*BytesPerPixel),
	}, nil
}

func (b *Buffer) Width() int  { return b.width }
func (b *Buffer) Height() int { return b.height }

// Clear sets every channel of every pixel to zero.
func (b *Buffer) Clear() {
	for i := range b.pix {
		b.pix[i] = 0
	}
}

// SetPixel writes (r,g,b) at (x,y). Out-of-range coordinates are ignored.
func (b *Buffer) SetPixel(x, y int, r, g, bl uint8) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return
	}
	i := (y*b.width + x) * BytesPerPixel
	b.pix[i+0] = r
	b.pix[i+1] = g
	b.pix[i+2] = bl
}

// Pixel returns the stored (r,g,b) at (x,y), or zeros when out of range.
func (b *Buffer) Pixel(x, y int) (r, g, bl uint8) {
	if x < 0 || y < 0 || x >= b.width || y >= b.height {
		return 0, 0, 0
	}
	i := (y*b.width + x) * BytesPerPixel
	return b.pix[i], b.pix[i+1], b.pix[i+2]
}

// Row returns the RGB triples of row y as a view into the buffer. The slice
// is only valid until the next mutation. Row panics if y is out of range.
func (b *Buffer) Row(y int) []byte {
	if y < 0 || y >= b.height {
		panic(fmt.Sprintf("frame: row %d out of range [0,%d)", y, b.height))
	}
	stride := b.width * BytesPerPixel
	return b.pix[y*stride : (y+1)*stride : (y+1)*stride]
}

// Bytes returns the whole raster in row-major RGB order.
func (b *Buffer) Bytes() []byte { return b.pix }

// Snapshot returns a copy of the raster.
func (b *Buffer) Snapshot() []byte {
	out := make([]byte, len(b.pix))
	copy(out, b.pix)
	return out
}

// image.Image / draw.Image

func (b *Buffer) ColorModel() color.Model { return color.RGBAModel }

func (b *Buffer) Bounds() image.Rectangle { return image.Rect(0, 0, b.width, b.height) }

func (b *Buffer) At(x, y int) color.Color {
	r, g, bl := b.Pixel(x, y)
	return color.RGBA{R: r, G: g, B: bl, A: 0xFF}
}

func (b *Buffer) Set(x, y int, c color.Color) {
	rgba := color.RGBAModel.Convert(c).(color.RGBA)
	b.SetPixel(x, y, rgba.R, rgba.G, rgba.B)
}
