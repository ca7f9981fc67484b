package colorlight

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
)

// Conn is one bound link-layer endpoint. WriteFrame transmits b as a single
// Ethernet frame.
type Conn interface {
	WriteFrame(b []byte) error
	Close() error
}

// openConn is swapped out by tests to simulate platform failures.
var openConn = openPacketConn

// Transport sends encoded frames to a receiver card over one Conn. It is not
// safe for concurrent use; a Transport has a single owner.
type Transport struct {
	conn   Conn
	iface  string
	gap    time.Duration
	sleep  func(time.Duration)
	log    zerolog.Logger
	closed bool

	frames uint64
	bytes  uint64
}

type Option func(*Transport)

func WithLogger(l zerolog.Logger) Option { return func(t *Transport) { t.log = l } }

// WithFrameGap overrides the inter-frame delay. Receivers drop frames below
// FrameGap; this exists for tuning against specific hardware.
func WithFrameGap(d time.Duration) Option { return func(t *Transport) { t.gap = d } }

func WithSleep(fn func(time.Duration)) Option { return func(t *Transport) { t.sleep = fn } }

// Open binds a raw socket to iface and returns a Transport using it.
// Failures are *Error values of kind configuration, permission or interface.
func Open(iface string, opts ...Option) (*Transport, error) {
	c, err := openConn(iface)
	if err != nil {
		return nil, err
	}
	t := NewTransport(c, opts...)
	t.iface = iface
	t.log.Info().Str("iface", iface).Msg("colorlight transport bound")
	return t, nil
}

// NewTransport wraps an already open Conn.
func NewTransport(c Conn, opts ...Option) *Transport {
	t := &Transport{
		conn:  c,
		gap:   FrameGap,
		sleep: time.Sleep,
		log:   log.Logger,
	}
	for _, o := range opts {
		o(t)
	}
	return t
}

// SendFrame writes one frame. Failures are logged and returned as
// KindTransport errors; nothing is retried.
func (t *Transport) SendFrame(b []byte) error {
	if t.closed {
		return &Error{Kind: KindTransport, Op: "send", Iface: t.iface, Err: ErrClosed}
	}
	if err := t.conn.WriteFrame(b); err != nil {
		e := &Error{Kind: KindTransport, Op: "send", Iface: t.iface, Err: err}
		t.log.Error().Err(err).Str("iface", t.iface).Int("len", len(b)).Msg("colorlight frame send failed")
		return e
	}
	t.frames++
	t.bytes += uint64(len(b))
	return nil
}

// Present pushes buf to the receiver: every row in scan order, each frame
// followed by FrameGap, then the two link-init frames that latch the image.
// The first send failure aborts the present; the commit frames are only sent
// after all rows went out.
func (t *Transport) Present(buf *frame.Buffer) error {
	start := time.Now()
	startFrames, startBytes := t.frames, t.bytes

	for y := 0; y < buf.Height(); y++ {
		for _, seg := range SplitRow(buf.Row(y)) {
			if err := t.SendFrame(EncodeRow(uint16(y), seg.Offset, seg.RGB)); err != nil {
				return err
			}
			t.sleep(t.gap)
		}
	}

	if err := t.SendFrame(EncodeLinkInit1()); err != nil {
		return err
	}
	t.sleep(t.gap)
	if err := t.SendFrame(EncodeLinkInit2()); err != nil {
		return err
	}

	t.log.Debug().
		Uint64("frames", t.frames-startFrames).
		Uint64("bytes", t.bytes-startBytes).
		Dur("took", time.Since(start)).
		Msg("colorlight frame presented")
	return nil
}

// Close releases the socket. Calling Close again is a no-op.
func (t *Transport) Close() error {
	if t.closed {
		return nil
	}
	t.closed = true
	return t.conn.Close()
}

// Stats reports the frames and bytes sent over the life of the transport.
func (t *Transport) Stats() (frames, bytes uint64) { return t.frames, t.bytes }
