package colorlight

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var macPair = []byte{
	0x11, 0x22, 0x33, 0x44, 0x55, 0x66,
	0x22, 0x22, 0x33, 0x44, 0x55, 0x66,
}

func TestLinkInitFrames(t *testing.T) {
	f1 := EncodeLinkInit1()
	require.Len(t, f1, 112)
	assert.Equal(t, macPair, f1[:12])
	assert.Equal(t, []byte{0x01, 0x01}, f1[12:14])
	assert.Equal(t, make([]byte, 98), f1[14:])

	f2 := EncodeLinkInit2()
	require.Len(t, f2, 77)
	assert.Equal(t, macPair, f2[:12])
	assert.Equal(t, []byte{0x0A, 0xFF, 0xFF, 0xFF, 0xFF}, f2[12:17])
	assert.Equal(t, make([]byte, 60), f2[17:])
}

func TestEncodeRowLayout(t *testing.T) {
	got := EncodeRow(0x0102, 0x0003, []byte{255, 0, 0, 10, 20, 30})

	want := append([]byte{}, macPair...)
	want = append(want,
		0x55,       // row frame type
		0x01, 0x02, // row
		0x00, 0x03, // offset
		0x00, 0x02, // pixel count
		0x08, 0x80, // magic
		0x00, 0x00, 0xFF, // first pixel as B,G,R
		30, 20, 10,
	)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("row frame mismatch (-want +got):\n%s", diff)
	}
}

func TestEncodeRowLength(t *testing.T) {
	for _, p := range []int{0, 1, 64, 128, 496, 497} {
		rgb := make([]byte, p*3)
		assert.Len(t, EncodeRow(5, 0, rgb), RowFrameOverhead+3*p, "pixels=%d", p)
	}
}

func TestEncodeRowChannelOrder(t *testing.T) {
	rgb := make([]byte, 0, 256*3)
	for i := 0; i < 256; i++ {
		rgb = append(rgb, byte(i), byte(255-i), byte(i*7))
	}
	// 256 pixels fit in one frame.
	out := EncodeRow(1, 0, rgb)
	px := out[RowFrameOverhead:]
	for i := 0; i < 256; i++ {
		r, g, b := rgb[i*3], rgb[i*3+1], rgb[i*3+2]
		require.Equal(t, []byte{b, g, r}, px[i*3:i*3+3], "pixel %d", i)
	}
}

func TestEncodeRowRejectsOversize(t *testing.T) {
	assert.Panics(t, func() { EncodeRow(0, 0, make([]byte, 600*3)) })
	assert.Panics(t, func() { EncodeRow(0, 0, make([]byte, 4)) })
}

func TestSplitRowCoversEveryPixelOnce(t *testing.T) {
	rgb := make([]byte, 600*3)
	for i := range rgb {
		rgb[i] = byte(i % 251)
	}
	segs := SplitRow(rgb)
	require.Len(t, segs, 2)
	assert.Equal(t, uint16(0), segs[0].Offset)
	assert.Equal(t, uint16(497), segs[1].Offset)

	var joined []byte
	next := 0
	for _, s := range segs {
		assert.LessOrEqual(t, len(s.RGB)/3, MaxPixelsPerFrame)
		assert.Equal(t, next, int(s.Offset))
		next += len(s.RGB) / 3
		joined = append(joined, s.RGB...)
	}
	assert.Equal(t, 600, next)
	assert.True(t, bytes.Equal(rgb, joined))
}

func TestSplitRowSmallRowIsOneSegment(t *testing.T) {
	segs := SplitRow(make([]byte, 128*3))
	require.Len(t, segs, 1)
	assert.Equal(t, uint16(0), segs[0].Offset)
	assert.Len(t, segs[0].RGB, 128*3)

	segs = SplitRow(nil)
	require.Len(t, segs, 1)
	assert.Empty(t, segs[0].RGB)
}
