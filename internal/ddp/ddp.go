// Package ddp streams frames to Falcon Player (FPP) and other show-control
// receivers using the Distributed Display Protocol over UDP.
package ddp

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

const (
	DefaultPort = 4048

	HeaderLen = 10
	// MaxPayload keeps each datagram inside a standard Ethernet MTU.
	MaxPayload = 1440

	flagVer1 = 0x40
	flagPush = 0x01

	typeRGB8  = 0x01
	idDisplay = 0x01
)

// Packet builds one DDP datagram. push marks the last packet of a frame.
func Packet(seq uint8, offset uint32, data []byte, push bool) []byte {
	b := make([]byte, HeaderLen+len(data))
	b[0] = flagVer1
	if push {
		b[0] |= flagPush
	}
	b[1] = seq & 0x0F
	b[2] = typeRGB8
	b[3] = idDisplay
	binary.BigEndian.PutUint32(b[4:8], offset)
	binary.BigEndian.PutUint16(b[8:10], uint16(len(data)))
	copy(b[HeaderLen:], data)
	return b
}

// Packets splits a whole RGB frame into datagrams. Only the last one
// carries the push flag.
func Packets(seq uint8, rgb []byte) [][]byte {
	out := make([][]byte, 0, len(rgb)/MaxPayload+1)
	for off := 0; ; off += MaxPayload {
		end := off + MaxPayload
		if end > len(rgb) {
			end = len(rgb)
		}
		out = append(out, Packet(seq, uint32(off), rgb[off:end], end == len(rgb)))
		if end == len(rgb) {
			return out
		}
	}
}

// Surface sends its raster as DDP over a connected UDP socket.
type Surface struct {
	buf  *frame.Buffer
	conn net.Conn
	seq  uint8
	log  zerolog.Logger
}

var _ led.Surface = (*Surface)(nil)

// NewSurface dials host:port over UDP. No packets are sent until Present.
func NewSurface(host string, port, width, height int) (*Surface, error) {
	buf, err := frame.New(width, height)
	if err != nil {
		return nil, err
	}
	if port == 0 {
		port = DefaultPort
	}
	addr := net.JoinHostPort(host, strconv.Itoa(port))
	conn, err := net.Dial("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("ddp: dial %s: %w", addr, err)
	}
	l := log.With().Str("backend", "ddp").Str("addr", addr).Logger()
	l.Info().Int("width", width).Int("height", height).Msg("ddp output ready")
	return &Surface{buf: buf, conn: conn, log: l}, nil
}

func (s *Surface) Width() int  { return s.buf.Width() }
func (s *Surface) Height() int { return s.buf.Height() }

func (s *Surface) Clear() { s.buf.Clear() }

func (s *Surface) SetPixel(x, y int, r, g, b uint8) { s.buf.SetPixel(x, y, r, g, b) }

func (s *Surface) Present() (led.Surface, error) {
	s.seq = s.seq%15 + 1
	for _, p := range Packets(s.seq, s.buf.Bytes()) {
		if _, err := s.conn.Write(p); err != nil {
			s.log.Error().Err(err).Msg("ddp send failed")
			return s, fmt.Errorf("ddp: send: %w", err)
		}
	}
	return s, nil
}

func (s *Surface) Close() error {
	if s.conn == nil {
		return nil
	}
	err := s.conn.Close()
	s.conn = nil
	return err
}

func (s *Surface) Snapshot() []byte { return s.buf.Snapshot() }
