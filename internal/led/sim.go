package led

import (
	"sync"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
)

// Sim is a headless surface. It keeps the last presented frame and a frame
// counter, which is all the web preview and the tests need.
type Sim struct {
	mu     sync.Mutex
	buf    *frame.Buffer
	last   []byte
	frames uint64
	closed bool
}

func NewSim(width, height int) (*Sim, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	return &Sim{buf: buf}, nil
}

func (s *Sim) Width() int  { return s.buf.Width() }
func (s *Sim) Height() int { return s.buf.Height() }

func (s *Sim) Clear() { s.buf.Clear() }

func (s *Sim) SetPixel(x, y int, r, g, b uint8) { s.buf.SetPixel(x, y, r, g, b) }

func (s *Sim) Present() (Surface, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last = s.buf.Snapshot()
	s.frames++
	return s, nil
}

func (s *Sim) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	return nil
}

// Snapshot returns the last presented frame.
func (s *Sim) Snapshot() []byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return make([]byte, len(s.buf.Bytes()))
	}
	return append([]byte(nil), s.last...)
}

// Frames reports how many times Present was called.
func (s *Sim) Frames() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.frames
}

// Pixel reads from the working raster, not the presented one.
func (s *Sim) Pixel(x, y int) (r, g, b uint8) { return s.buf.Pixel(x, y) }
