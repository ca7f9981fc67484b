// Package emulator shows the LED matrix in a terminal. Each character cell
// carries two pixel rows: the upper half block is drawn in the foreground
// colour of the top pixel over the background colour of the bottom pixel.
package emulator

import (
	"fmt"
	"sync"

	"github.com/gdamore/tcell/v2"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

const upperHalf = '▀'

// KeyFunc receives key presses while the emulator owns the terminal.
type KeyFunc func(ev *tcell.EventKey)

type Surface struct {
	mu     sync.Mutex
	buf    *frame.Buffer
	screen tcell.Screen
	onKey  KeyFunc
	done   chan struct{}
	closed bool
}

var _ led.Surface = (*Surface)(nil)

// New takes over the terminal.
func New(width, height int, onKey KeyFunc) (*Surface, error) {
	s, err := tcell.NewScreen()
	if err != nil {
		return nil, fmt.Errorf("emulator: %w", err)
	}
	return NewWithScreen(s, width, height, onKey)
}

// NewWithScreen initializes s and starts forwarding its key events to onKey.
func NewWithScreen(s tcell.Screen, width, height int, onKey KeyFunc) (*Surface, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	if err := s.Init(); err != nil {
		return nil, fmt.Errorf("emulator: init screen: %w", err)
	}
	s.HideCursor()
	s.Clear()
	e := &Surface{buf: buf, screen: s, onKey: onKey, done: make(chan struct{})}
	go e.pollEvents()
	return e, nil
}

func (e *Surface) pollEvents() {
	defer close(e.done)
	for {
		ev := e.screen.PollEvent()
		switch ev := ev.(type) {
		case nil:
			return
		case *tcell.EventResize:
			e.mu.Lock()
			e.screen.Sync()
			e.mu.Unlock()
		case *tcell.EventKey:
			if e.onKey != nil {
				e.onKey(ev)
			}
		}
	}
}

func (e *Surface) Width() int  { return e.buf.Width() }
func (e *Surface) Height() int { return e.buf.Height() }

func (e *Surface) Clear() { e.buf.Clear() }

func (e *Surface) SetPixel(x, y int, r, g, b uint8) { e.buf.SetPixel(x, y, r, g, b) }

func (e *Surface) Present() (led.Surface, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return e, fmt.Errorf("emulator: closed")
	}
	w, h := e.buf.Width(), e.buf.Height()
	for y := 0; y < h; y += 2 {
		for x := 0; x < w; x++ {
			tr, tg, tb := e.buf.Pixel(x, y)
			br, bg, bb := e.buf.Pixel(x, y+1)
			st := tcell.StyleDefault.
				Foreground(tcell.NewRGBColor(int32(tr), int32(tg), int32(tb))).
				Background(tcell.NewRGBColor(int32(br), int32(bg), int32(bb)))
			e.screen.SetContent(x, y/2, upperHalf, nil, st)
		}
	}
	e.screen.Show()
	return e, nil
}

// Close restores the terminal.
func (e *Surface) Close() error {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		return nil
	}
	e.closed = true
	e.mu.Unlock()
	e.screen.Fini()
	<-e.done
	return nil
}

func (e *Surface) Snapshot() []byte { return e.buf.Snapshot() }
