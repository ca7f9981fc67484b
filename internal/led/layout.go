package led

// Serpentine describes how an addressable strip snakes through a panel.
type Serpentine struct {
	// FlipEveryRow reverses X on odd rows (zig-zag wiring).
	FlipEveryRow bool
	// Vertical runs the strip down columns instead of across rows.
	Vertical bool
}

// Layout maps 2D panel coordinates onto a linear LED index.
type Layout struct {
	Width, Height int
	Order         Serpentine
}

// Index maps x,y -> linear LED index (0..N-1).
func (l Layout) Index(x, y int) int {
	if l.Order.Vertical {
		yy := y
		if l.Order.FlipEveryRow && x%2 == 1 {
			yy = l.Height - 1 - y
		}
		return x*l.Height + yy
	}
	xx := x
	if l.Order.FlipEveryRow && y%2 == 1 {
		xx = l.Width - 1 - x
	}
	return y*l.Width + xx
}

func (l Layout) Count() int {
	return l.Width * l.Height
}

// Linearize reorders a row-major RGB raster into strip order.
func (l Layout) Linearize(rgb []byte, dst []byte) []byte {
	n := l.Count() * 3
	if cap(dst) < n {
		dst = make([]byte, n)
	}
	dst = dst[:n]
	for y := 0; y < l.Height; y++ {
		for x := 0; x < l.Width; x++ {
			src := (y*l.Width + x) * 3
			i := l.Index(x, y) * 3
			dst[i+0], dst[i+1], dst[i+2] = rgb[src], rgb[src+1], rgb[src+2]
		}
	}
	return dst
}
