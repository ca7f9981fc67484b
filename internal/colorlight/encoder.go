package colorlight

import (
	"encoding/binary"
	"fmt"
	"net"
	"time"
)

// Receiver addressing is fixed; the 5A-75B accepts any pair, these match
// the values the card was reverse engineered with.
var (
	DstMAC = net.HardwareAddr{0x11, 0x22, 0x33, 0x44, 0x55, 0x66}
	SrcMAC = net.HardwareAddr{0x22, 0x22, 0x33, 0x44, 0x55, 0x66}
)

const (
	// MaxPixelsPerFrame is the largest pixel count a single row frame may carry.
	MaxPixelsPerFrame = 497

	// FrameGap is the minimum spacing between consecutive frames of one present.
	FrameGap = time.Millisecond

	macHeaderLen = 12
	// 0x55 + row(2) + offset(2) + count(2) + magic(2)
	rowHeaderLen = 9
	// RowFrameOverhead is the size of a row frame with zero pixels.
	RowFrameOverhead = macHeaderLen + rowHeaderLen

	LinkInit1Len = 112
	LinkInit2Len = 77

	rowTypeByte = 0x55
)

var rowMagic = [2]byte{0x08, 0x80}

func macHeader(dst []byte) []byte {
	dst = append(dst, DstMAC...)
	return append(dst, SrcMAC...)
}

// EncodeLinkInit1 builds the first commit frame: EtherType 0x0101 and 98
// zero bytes.
func EncodeLinkInit1() []byte {
	b := make([]byte, 0, LinkInit1Len)
	b = macHeader(b)
	b = append(b, 0x01, 0x01)
	return append(b, make([]byte, 98)...)
}

// EncodeLinkInit2 builds the second commit frame: EtherType 0x0AFF, three
// 0xFF marker bytes and 60 zero bytes.
func EncodeLinkInit2() []byte {
	b := make([]byte, 0, LinkInit2Len)
	b = macHeader(b)
	b = append(b, 0x0A, 0xFF)
	b = append(b, 0xFF, 0xFF, 0xFF)
	return append(b, make([]byte, 60)...)
}

// EncodeRow builds one row data frame from RGB triples. On the wire the
// pixels are emitted as B,G,R. The byte after the MAC pair is 0x55 and the
// big-endian row number follows it, so the EtherType reads 0x55<row high>.
//
// rgb must hold whole pixels and at most MaxPixelsPerFrame of them; callers
// split wider rows with SplitRow. Violations panic.
func EncodeRow(row, offset uint16, rgb []byte) []byte {
	if len(rgb)%3 != 0 {
		panic(fmt.Sprintf("colorlight: row %d payload of %d bytes is not whole pixels", row, len(rgb)))
	}
	count := len(rgb) / 3
	if count > MaxPixelsPerFrame {
		panic(fmt.Sprintf("colorlight: row %d carries %d pixels, max %d per frame", row, count, MaxPixelsPerFrame))
	}

	b := make([]byte, RowFrameOverhead+len(rgb))
	macHeader(b[:0])
	h := b[macHeaderLen:]
	h[0] = rowTypeByte
	binary.BigEndian.PutUint16(h[1:3], row)
	binary.BigEndian.PutUint16(h[3:5], offset)
	binary.BigEndian.PutUint16(h[5:7], uint16(count))
	h[7], h[8] = rowMagic[0], rowMagic[1]

	px := b[RowFrameOverhead:]
	for i := 0; i < len(rgb); i += 3 {
		px[i+0] = rgb[i+2]
		px[i+1] = rgb[i+1]
		px[i+2] = rgb[i+0]
	}
	return b
}

// Segment is a run of pixels of one row that fits in a single frame.
type Segment struct {
	Offset uint16
	RGB    []byte
}

// SplitRow cuts a row into MaxPixelsPerFrame-sized segments. The segments
// cover every pixel exactly once, in order. An empty row yields one empty
// segment so the receiver still sees the row.
func SplitRow(rgb []byte) []Segment {
	const step = MaxPixelsPerFrame * 3
	if len(rgb) <= step {
		return []Segment{{Offset: 0, RGB: rgb}}
	}
	segs := make([]Segment, 0, (len(rgb)+step-1)/step)
	for start := 0; start < len(rgb); start += step {
		end := start + step
		if end > len(rgb) {
			end = len(rgb)
		}
		segs = append(segs, Segment{Offset: uint16(start / 3), RGB: rgb[start:end]})
	}
	return segs
}
