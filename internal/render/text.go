package render

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/draw"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// DefaultFace is the built-in 7x13 bitmap face.
func DefaultFace() font.Face { return basicfont.Face7x13 }

// LoadFace opens a BDF bitmap font or a TrueType/OpenType font at size
// points (72 DPI, so points equal pixels). BDF fonts keep their own size.
// An empty name selects DefaultFace. Other formats also fall back to
// DefaultFace, with a warning.
func LoadFace(dir, name string, size float64) (font.Face, error) {
	if name == "" {
		return DefaultFace(), nil
	}
	path := name
	if dir != "" && !filepath.IsAbs(name) {
		path = filepath.Join(dir, name)
	}
	ext := strings.ToLower(filepath.Ext(name))
	switch ext {
	case ".bdf", ".ttf", ".otf":
	default:
		log.Warn().Str("font", path).Msg("unsupported font format, using built-in face")
		return DefaultFace(), nil
	}
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("render: read font: %w", err)
	}
	if ext == ".bdf" {
		face, err := ParseBDF(bytes.NewReader(b))
		if err != nil {
			return nil, fmt.Errorf("render: parse font %s: %w", filepath.Base(path), err)
		}
		log.Info().Str("font", path).Int("glyphs", face.Len()).Int("height", face.Metrics().Height.Ceil()).Msg("bdf font loaded")
		return face, nil
	}
	f, err := opentype.Parse(b)
	if err != nil {
		return nil, fmt.Errorf("render: parse font %s: %w", filepath.Base(path), err)
	}
	face, err := opentype.NewFace(f, &opentype.FaceOptions{Size: size, DPI: 72, Hinting: font.HintingFull})
	if err != nil {
		return nil, fmt.Errorf("render: font face: %w", err)
	}
	return face, nil
}

// TextWidth is the advance width of s in pixels.
func TextWidth(face font.Face, s string) int { return font.MeasureString(face, s).Ceil() }

// Baseline returns the baseline that vertically centres face's glyphs in a
// band of height h starting at y0, raised by shift pixels.
func Baseline(face font.Face, y0, h, shift int) int {
	m := face.Metrics()
	return y0 + (h+m.Ascent.Ceil()-m.Descent.Ceil())/2 - shift
}

func drawText(dst draw.Image, face font.Face, x, baseline int, c color.Color, s string) {
	d := font.Drawer{
		Dst:  dst,
		Src:  image.NewUniform(c),
		Face: face,
		Dot:  fixed.P(x, baseline),
	}
	d.DrawString(s)
}

func fill(dst draw.Image, r image.Rectangle, c color.Color) {
	draw.Draw(dst, r, image.NewUniform(c), image.Point{}, draw.Src)
}

// Wrap breaks s into at most maxLines lines no wider than width. Words that
// do not fit on the last line stay on it and are clipped when drawn.
func Wrap(face font.Face, s string, width, maxLines int) []string {
	words := strings.Fields(s)
	if len(words) == 0 || maxLines < 1 {
		return nil
	}
	var lines []string
	cur := words[0]
	for _, w := range words[1:] {
		if len(lines) == maxLines-1 || TextWidth(face, cur+" "+w) <= width {
			cur += " " + w
			continue
		}
		lines = append(lines, cur)
		cur = w
	}
	return append(lines, cur)
}
