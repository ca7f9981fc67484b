package render

import (
	"errors"
	"fmt"
	"image"
	"time"

	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

// Engine draws the active scene into an RGBA canvas, applies the post
// stage and pushes the result through a led.Surface.
type Engine struct {
	Surface    led.Surface
	Canvas     *image.RGBA
	Brightness float64

	active Scene

	// metrics (last durations in ms)
	Last struct {
		RenderMS  float64
		PresentMS float64
		TotalMS   float64
	}
}

func NewEngine(s led.Surface, brightness float64) (*Engine, error) {
	if s == nil {
		return nil, errors.New("render: nil surface")
	}
	if s.Width() <= 0 || s.Height() <= 0 {
		return nil, errors.New("render: invalid dimensions")
	}
	if brightness <= 0 || brightness > 1 {
		brightness = 1
	}
	return &Engine{
		Surface:    s,
		Canvas:     image.NewRGBA(image.Rect(0, 0, s.Width(), s.Height())),
		Brightness: brightness,
	}, nil
}

// SetScene makes the named scene active.
func (e *Engine) SetScene(name string, reg *Registry) error {
	if reg == nil {
		return errors.New("render: registry is nil")
	}
	s, ok := reg.Get(name)
	if !ok {
		return errors.New("render: scene not found: " + name)
	}
	e.active = s
	return nil
}

// Use makes s active without going through a registry.
func (e *Engine) Use(s Scene) { e.active = s }

func (e *Engine) Scene() Scene { return e.active }

// Pages reports the page count of the active scene, at least 1.
func (e *Engine) Pages() int {
	if e.active == nil || e.active.Pages() < 1 {
		return 1
	}
	return e.active.Pages()
}

// RenderPage draws one page of the active scene and presents it. With no
// active scene the panel is blanked.
func (e *Engine) RenderPage(page int, now time.Time) error {
	start := time.Now()
	clear(e.Canvas.Pix)
	if e.active != nil {
		e.active.Draw(e.Canvas, page%e.Pages(), now)
	}
	ApplyBrightness(e.Canvas, e.Brightness)
	Blit(e.Surface, e.Canvas)
	e.Last.RenderMS = ms(time.Since(start))

	presentStart := time.Now()
	next, err := e.Surface.Present()
	if next != nil {
		e.Surface = next
	}
	e.Last.PresentMS = ms(time.Since(presentStart))
	e.Last.TotalMS = ms(time.Since(start))
	if err != nil {
		return fmt.Errorf("render: present: %w", err)
	}
	return nil
}

// Blank clears the panel.
func (e *Engine) Blank() error {
	e.Surface.Clear()
	next, err := e.Surface.Present()
	if next != nil {
		e.Surface = next
	}
	return err
}

// Blit copies img onto s pixel by pixel.
func Blit(s led.Surface, img *image.RGBA) {
	b := img.Bounds().Intersect(image.Rect(0, 0, s.Width(), s.Height()))
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			c := img.RGBAAt(x, y)
			s.SetPixel(x, y, c.R, c.G, c.B)
		}
	}
}

func ms(d time.Duration) float64 { return float64(d.Microseconds()) / 1000.0 }
