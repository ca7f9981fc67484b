package render

import (
	"bufio"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	"image/color"
	"io"
	"strconv"
	"strings"

	"golang.org/x/image/font"
	"golang.org/x/image/math/fixed"
)

// bdfGlyph is one BITMAP block. xoff and yoff are the BBX offsets, measured
// from the origin with y growing up.
type bdfGlyph struct {
	mask       *image.Alpha
	xoff, yoff int
	advance    int
}

// BDFFace is a font.Face over an X11 bitmap font. Bitmap fonts have one
// size; glyphs are drawn pixel for pixel.
type BDFFace struct {
	glyphs   map[rune]*bdfGlyph
	ascent   int
	descent  int
	fallback rune
}

var _ font.Face = (*BDFFace)(nil)

var ErrNotBDF = errors.New("render: not a BDF font")

// ParseBDF reads a BDF 2.x font. Glyphs without an ENCODING, or with the
// -1 encoding, are skipped. Missing characters are drawn with DEFAULT_CHAR
// when the font names one.
func ParseBDF(r io.Reader) (*BDFFace, error) {
	f := &BDFFace{glyphs: map[rune]*bdfGlyph{}, fallback: -1}
	var (
		started  bool
		bbox     []int
		ascent   = -1
		descent  = -1
		cur      *bdfGlyph
		enc      = -1
		w, h     int
		row      int
		inBitmap bool
	)
	finish := func() {
		if cur != nil && enc >= 0 {
			if cur.mask == nil {
				cur.mask = image.NewAlpha(image.Rect(0, 0, w, h))
			}
			if cur.advance < 0 {
				cur.advance = w
			}
			f.glyphs[rune(enc)] = cur
		}
		cur, enc, inBitmap = nil, -1, false
	}

	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if !started {
			if fields[0] != "STARTFONT" {
				return nil, ErrNotBDF
			}
			started = true
			continue
		}
		if inBitmap && fields[0] != "ENDCHAR" {
			if row < h {
				if err := bdfRow(cur.mask, row, w, fields[0]); err != nil {
					return nil, fmt.Errorf("render: bdf line %d: %w", n, err)
				}
				row++
			}
			continue
		}

		var err error
		switch fields[0] {
		case "FONTBOUNDINGBOX":
			bbox, err = bdfInts(fields[1:], 4)
		case "FONT_ASCENT":
			ascent, err = bdfInt(fields)
		case "FONT_DESCENT":
			descent, err = bdfInt(fields)
		case "DEFAULT_CHAR":
			var v int
			v, err = bdfInt(fields)
			f.fallback = rune(v)
		case "STARTCHAR":
			cur, enc, w, h = &bdfGlyph{advance: -1}, -1, 0, 0
		case "ENCODING":
			if cur != nil {
				enc, err = bdfInt(fields)
			}
		case "DWIDTH":
			if cur != nil {
				var v []int
				if v, err = bdfInts(fields[1:], 1); err == nil {
					cur.advance = v[0]
				}
			}
		case "BBX":
			if cur != nil {
				var v []int
				if v, err = bdfInts(fields[1:], 4); err == nil {
					w, h, cur.xoff, cur.yoff = v[0], v[1], v[2], v[3]
					if w < 0 || h < 0 {
						err = errors.New("negative BBX size")
					}
				}
			}
		case "BITMAP":
			if cur != nil {
				cur.mask = image.NewAlpha(image.Rect(0, 0, w, h))
				row, inBitmap = 0, true
			}
		case "ENDCHAR":
			finish()
		}
		if err != nil {
			return nil, fmt.Errorf("render: bdf line %d: %s: %w", n, fields[0], err)
		}
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("render: read bdf: %w", err)
	}
	if !started {
		return nil, ErrNotBDF
	}
	if len(f.glyphs) == 0 {
		return nil, errors.New("render: bdf font has no glyphs")
	}

	if ascent < 0 && bbox != nil {
		ascent = bbox[1] + bbox[3]
	}
	if descent < 0 && bbox != nil {
		descent = -bbox[3]
	}
	f.ascent, f.descent = max(ascent, 0), max(descent, 0)
	return f, nil
}

func bdfInt(fields []string) (int, error) {
	v, err := bdfInts(fields[1:], 1)
	if err != nil {
		return 0, err
	}
	return v[0], nil
}

func bdfInts(fields []string, n int) ([]int, error) {
	if len(fields) < n {
		return nil, fmt.Errorf("want %d values, got %d", n, len(fields))
	}
	out := make([]int, n)
	for i := range out {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return nil, err
		}
		out[i] = v
	}
	return out, nil
}

// bdfRow sets the pixels of one hex bitmap row. The most significant bit of
// the first byte is the leftmost pixel; rows are padded to whole bytes.
func bdfRow(m *image.Alpha, y, w int, s string) error {
	b, err := hex.DecodeString(s)
	if err != nil {
		return err
	}
	for x := 0; x < w && x/8 < len(b); x++ {
		if b[x/8]&(0x80>>(x%8)) != 0 {
			m.SetAlpha(x, y, color.Alpha{A: 0xff})
		}
	}
	return nil
}

func (f *BDFFace) glyph(r rune) (*bdfGlyph, bool) {
	if g, ok := f.glyphs[r]; ok {
		return g, true
	}
	g, ok := f.glyphs[f.fallback]
	return g, ok
}

func (f *BDFFace) Close() error { return nil }

func (f *BDFFace) Glyph(dot fixed.Point26_6, r rune) (dr image.Rectangle, mask image.Image, maskp image.Point, advance fixed.Int26_6, ok bool) {
	g, ok := f.glyph(r)
	if !ok {
		return image.Rectangle{}, nil, image.Point{}, 0, false
	}
	size := g.mask.Rect.Size()
	x := dot.X.Round() + g.xoff
	y := dot.Y.Round() - g.yoff - size.Y
	return image.Rect(x, y, x+size.X, y+size.Y), g.mask, image.Point{}, fixed.I(g.advance), true
}

func (f *BDFFace) GlyphBounds(r rune) (bounds fixed.Rectangle26_6, advance fixed.Int26_6, ok bool) {
	g, ok := f.glyph(r)
	if !ok {
		return fixed.Rectangle26_6{}, 0, false
	}
	size := g.mask.Rect.Size()
	return fixed.R(g.xoff, -g.yoff-size.Y, g.xoff+size.X, -g.yoff), fixed.I(g.advance), true
}

func (f *BDFFace) GlyphAdvance(r rune) (advance fixed.Int26_6, ok bool) {
	g, ok := f.glyph(r)
	if !ok {
		return 0, false
	}
	return fixed.I(g.advance), true
}

func (f *BDFFace) Kern(r0, r1 rune) fixed.Int26_6 { return 0 }

func (f *BDFFace) Metrics() font.Metrics {
	return font.Metrics{
		Height:  fixed.I(f.ascent + f.descent),
		Ascent:  fixed.I(f.ascent),
		Descent: fixed.I(f.descent),
	}
}

// Len reports the number of glyphs in the font.
func (f *BDFFace) Len() int { return len(f.glyphs) }
