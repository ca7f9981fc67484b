// Package colorlight drives ColorLight 5A-75 receiver cards with raw Ethernet
// frames.
//
// A present sends one data frame per display row (more when a row exceeds
// MaxPixelsPerFrame), each followed by a 1ms gap, and then two link-init
// frames that make the card latch the new image. Pixel bytes go out in
// B,G,R order. Opening the raw socket needs Linux and root or CAP_NET_RAW.
package colorlight

import (
	"fmt"
	"image"
	"image/color"

	"periph.io/x/conn/v3/display"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

// Surface composes a frame buffer with a Transport. It implements
// led.Surface and periph's display.Drawer.
type Surface struct {
	buf *frame.Buffer
	tx  *Transport
}

var (
	_ led.Surface     = (*Surface)(nil)
	_ display.Drawer  = (*Surface)(nil)
	_ led.Snapshotter = (*Surface)(nil)
)

// NewSurface opens the transport on iface and allocates a width x height
// buffer. Open errors are returned unchanged.
func NewSurface(iface string, width, height int, opts ...Option) (*Surface, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	if height > 0xFFFF || width > 0xFFFF {
		return nil, fmt.Errorf("colorlight: %dx%d exceeds 16-bit row addressing", width, height)
	}
	tx, err := Open(iface, opts...)
	if err != nil {
		return nil, err
	}
	return &Surface{buf: buf, tx: tx}, nil
}

// NewSurfaceWithTransport builds a surface on an existing transport.
func NewSurfaceWithTransport(tx *Transport, width, height int) (*Surface, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	return &Surface{buf: buf, tx: tx}, nil
}

func (s *Surface) Width() int  { return s.buf.Width() }
func (s *Surface) Height() int { return s.buf.Height() }

func (s *Surface) Clear() { s.buf.Clear() }

func (s *Surface) SetPixel(x, y int, r, g, b uint8) { s.buf.SetPixel(x, y, r, g, b) }

func (s *Surface) Present() (led.Surface, error) {
	return s, s.tx.Present(s.buf)
}

func (s *Surface) Close() error { return s.tx.Close() }

func (s *Surface) Snapshot() []byte { return s.buf.Snapshot() }

// Buffer exposes the raster for read access.
func (s *Surface) Buffer() *frame.Buffer { return s.buf }

// display.Drawer

func (s *Surface) String() string {
	if s.tx.iface == "" {
		return "colorlight"
	}
	return "colorlight{" + s.tx.iface + "}"
}

// Halt blanks the panel.
func (s *Surface) Halt() error {
	s.buf.Clear()
	return s.tx.Present(s.buf)
}

func (s *Surface) ColorModel() color.Model { return color.NRGBAModel }

func (s *Surface) Bounds() image.Rectangle { return s.buf.Bounds() }

// Draw copies src into the raster and presents it.
func (s *Surface) Draw(dstRect image.Rectangle, src image.Image, sp image.Point) error {
	r := dstRect.Intersect(s.buf.Bounds())
	for y := r.Min.Y; y < r.Max.Y; y++ {
		for x := r.Min.X; x < r.Max.X; x++ {
			s.buf.Set(x, y, src.At(sp.X+x-dstRect.Min.X, sp.Y+y-dstRect.Min.Y))
		}
	}
	return s.tx.Present(s.buf)
}
