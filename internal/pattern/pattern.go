// Package pattern holds the wiring test patterns used to bring up a new
// panel chain: light one row, one column or one colour channel at a time.
package pattern

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/render"
)

type Kind string

const (
	None        Kind = ""
	RowSweep    Kind = "row_sweep"
	RGBChannels Kind = "rgb_channels"
	ColumnSweep Kind = "column_sweep"
)

var Kinds = []Kind{RowSweep, RGBChannels, ColumnSweep}

// Scene draws one step of a pattern per page.
type Scene struct {
	kind Kind
	w, h int
}

// New returns the pattern scene for kind on a w x h panel.
func New(kind Kind, w, h int) (*Scene, error) {
	switch kind {
	case RowSweep, RGBChannels, ColumnSweep:
	default:
		return nil, fmt.Errorf("pattern: unknown kind %q", kind)
	}
	return &Scene{kind: kind, w: w, h: h}, nil
}

func (s *Scene) Name() string { return string(s.kind) }

func (s *Scene) Pages() int {
	switch s.kind {
	case RowSweep:
		return s.h
	case ColumnSweep:
		return s.w
	case RGBChannels:
		return 3
	}
	return 0
}

var channels = [3]color.RGBA{{255, 0, 0, 255}, {0, 255, 0, 255}, {0, 0, 255, 255}}

func (s *Scene) Draw(dst *image.RGBA, page int, _ time.Time) {
	b := dst.Bounds()
	for i := range dst.Pix {
		dst.Pix[i] = 0
	}
	switch s.kind {
	case RowSweep:
		for x := b.Min.X; x < b.Max.X; x++ {
			dst.SetRGBA(x, b.Min.Y+page, color.RGBA{255, 255, 255, 255})
		}
	case ColumnSweep:
		for y := b.Min.Y; y < b.Max.Y; y++ {
			dst.SetRGBA(b.Min.X+page, y, color.RGBA{255, 255, 255, 255})
		}
	case RGBChannels:
		c := channels[page%3]
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				dst.SetRGBA(x, y, c)
			}
		}
	}
}

// Register adds every pattern for a w x h panel to reg.
func Register(reg *render.Registry, w, h int) {
	for _, k := range Kinds {
		s, _ := New(k, w, h)
		reg.Register(s)
	}
}

// Runner steps a pattern through an engine one page at a time.
type Runner struct {
	scene *Scene
	step  int
}

func NewRunner(s *Scene) *Runner { return &Runner{scene: s} }

func (r *Runner) Kind() Kind { return r.scene.kind }

// Step renders the next page; returns false when the pattern is complete.
func (r *Runner) Step(e *render.Engine) (bool, error) {
	if r.step >= r.scene.Pages() {
		return false, nil
	}
	e.Use(r.scene)
	err := e.RenderPage(r.step, time.Now())
	r.step++
	return true, err
}

// Run steps through the whole pattern, holding each step for delay.
// Present failures are logged and the run continues.
func (r *Runner) Run(ctx context.Context, e *render.Engine, delay time.Duration) error {
	for {
		ok, err := r.Step(e)
		if !ok {
			return nil
		}
		if err != nil {
			log.Warn().Err(err).Str("pattern", string(r.scene.kind)).Int("step", r.step-1).Msg("present failed")
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
	}
}
