package led

// Surface is the canvas contract every output backend implements. The
// rendering layer only ever talks to a Surface, so it does not know which
// transport carries the pixels.
type Surface interface {
	Width() int
	Height() int
	// Clear zeroes the in-memory raster. No I/O.
	Clear()
	// SetPixel writes one pixel; out-of-range coordinates are ignored.
	SetPixel(x, y int, r, g, b uint8)
	// Present pushes the raster to the output and returns the surface to
	// draw the next frame on (the same surface for every backend here).
	Present() (Surface, error)
	// Close releases the backend. Safe to call more than once.
	Close() error
}

// Snapshotter is implemented by surfaces that can hand out a copy of the
// current raster as row-major RGB bytes (used for the web preview).
type Snapshotter interface {
	Snapshot() []byte
}
