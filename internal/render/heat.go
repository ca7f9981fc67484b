package render

import (
	"fmt"
	"image"
	"image/color"
	"strings"
	"time"

	"golang.org/x/image/font"

	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

// Layout holds the [display] geometry in pixels.
type Layout struct {
	LineHeight       int
	HeaderLineHeight int
	HeaderRows       int
	FontShift        int
}

func (l Layout) headerHeight() int { return l.HeaderRows * l.HeaderLineHeight }

// RowsPerPage is the number of athlete rows below the header.
func (l Layout) RowsPerPage(height int) int {
	if l.LineHeight <= 0 {
		return 0
	}
	n := (height - l.headerHeight()) / l.LineHeight
	if n < 0 {
		return 0
	}
	return n
}

var (
	white = color.RGBA{0xFF, 0xFF, 0xFF, 0xFF}
	black = color.RGBA{0x00, 0x00, 0x00, 0xFF}
)

const (
	laneX   = 1
	laneGap = 3
)

// HeatScene shows one heat: the event name on a white header and one row
// per lane in the athlete's team colours.
type HeatScene struct {
	event  *roster.Event
	colors roster.Colors
	face   font.Face
	layout Layout
	relay  bool
	pages  [][]roster.Athlete
	nameX  int
}

// NewHeatScene lays out ev for a width x height panel. It fails when not
// even one athlete row fits under the header.
func NewHeatScene(ev *roster.Event, colors roster.Colors, face font.Face, l Layout, width, height int) (*HeatScene, error) {
	rows := l.RowsPerPage(height)
	if rows < 1 {
		return nil, fmt.Errorf("render: display height %d too small for %d header rows of %d px and %d px lines",
			height, l.HeaderRows, l.HeaderLineHeight, l.LineHeight)
	}
	if face == nil {
		face = DefaultFace()
	}
	athletes := roster.FillLanes(ev.Athletes)
	if len(athletes) == 0 {
		athletes = ev.Athletes
	}
	pages := roster.Paginate(athletes, rows)
	if len(pages) == 0 {
		pages = [][]roster.Athlete{nil}
	}

	laneW := TextWidth(face, "88")
	for _, a := range athletes {
		if w := TextWidth(face, strings.TrimSpace(a.Lane)); w > laneW {
			laneW = w
		}
	}
	return &HeatScene{
		event:  ev,
		colors: colors,
		face:   face,
		layout: l,
		relay:  roster.IsRelay(ev.Athletes),
		pages:  pages,
		nameX:  laneX + laneW + laneGap,
	}, nil
}

func (h *HeatScene) Name() string { return "heat" }

func (h *HeatScene) Pages() int { return len(h.pages) }

func (h *HeatScene) Key() roster.Key { return h.event.Key }

func (h *HeatScene) Draw(dst *image.RGBA, page int, _ time.Time) {
	b := dst.Bounds()
	fill(dst, b, black)

	hh := h.layout.headerHeight()
	fill(dst, image.Rect(b.Min.X, b.Min.Y, b.Max.X, b.Min.Y+hh), white)
	for i, line := range Wrap(h.face, h.event.Name, b.Dx(), h.layout.HeaderRows) {
		y0 := b.Min.Y + i*h.layout.HeaderLineHeight
		x := (b.Dx() - TextWidth(h.face, line)) / 2
		if x < 0 {
			x = 0
		}
		drawText(dst, h.face, b.Min.X+x, Baseline(h.face, y0, h.layout.HeaderLineHeight, h.layout.FontShift), black, line)
	}

	if page < 0 || page >= len(h.pages) {
		return
	}
	for i, a := range h.pages[page] {
		y0 := b.Min.Y + hh + i*h.layout.LineHeight
		fg, bg := h.rowColors(a)
		fill(dst, image.Rect(b.Min.X, y0, b.Max.X, y0+h.layout.LineHeight), bg)
		base := Baseline(h.face, y0, h.layout.LineHeight, h.layout.FontShift)
		drawText(dst, h.face, b.Min.X+laneX, base, fg, strings.TrimSpace(a.Lane))
		if !a.Empty() {
			drawText(dst, h.face, b.Min.X+h.nameX, base, fg, roster.FormatAthlete(a, h.relay))
		}
	}
}

func (h *HeatScene) rowColors(a roster.Athlete) (fg, bg color.RGBA) {
	if a.Empty() {
		return white, black
	}
	if t, ok := h.colors[roster.AffiliationCode(a.Affiliation, h.relay)]; ok {
		return t.Text, t.Background
	}
	return white, black
}

// MessageScene shows centred white lines on black, used for status text
// such as "no event loaded".
type MessageScene struct {
	Face  font.Face
	Lines []string
}

func (m *MessageScene) Name() string { return "message" }
func (m *MessageScene) Pages() int   { return 1 }

func (m *MessageScene) Draw(dst *image.RGBA, _ int, _ time.Time) {
	face := m.Face
	if face == nil {
		face = DefaultFace()
	}
	b := dst.Bounds()
	fill(dst, b, black)
	lh := face.Metrics().Height.Ceil()
	top := b.Min.Y + (b.Dy()-lh*len(m.Lines))/2
	for i, line := range m.Lines {
		x := (b.Dx() - TextWidth(face, line)) / 2
		if x < 0 {
			x = 0
		}
		drawText(dst, face, b.Min.X+x, Baseline(face, top+i*lh, lh, 0), white, line)
	}
}

// ClockScene shows the wall clock.
type ClockScene struct {
	Face   font.Face
	Format string // time layout, default 15:04:05
}

func (c *ClockScene) Name() string { return "clock" }
func (c *ClockScene) Pages() int   { return 1 }

func (c *ClockScene) Draw(dst *image.RGBA, _ int, now time.Time) {
	layout := c.Format
	if layout == "" {
		layout = "15:04:05"
	}
	(&MessageScene{Face: c.Face, Lines: []string{now.Format(layout)}}).Draw(dst, 0, now)
}
