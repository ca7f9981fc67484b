package led

import (
	"fmt"
	"io"

	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"
	"periph.io/x/conn/v3/spi"
	"periph.io/x/conn/v3/spi/spireg"
	"periph.io/x/devices/v3/nrzled"
	"periph.io/x/host/v3"

	"github.com/MikeChuckRoast/LedPanels/internal/frame"
)

// DefaultNRZFreq suits WS2812 strips driven through SPI.
const DefaultNRZFreq = 2500 * physic.KiloHertz

// NRZ drives a matrix built from WS281x strips over SPI.
type NRZ struct {
	buf    *frame.Buffer
	layout Layout
	dev    *nrzled.Dev
	port   io.Closer
	strip  []byte
}

// OpenNRZ initializes the host drivers, opens the named SPI port ("" picks
// the first one) and wraps it.
func OpenNRZ(portName string, l Layout, freq physic.Frequency) (*NRZ, error) {
	if _, err := host.Init(); err != nil {
		return nil, fmt.Errorf("nrzled: host init: %w", err)
	}
	p, err := spireg.Open(portName)
	if err != nil {
		return nil, fmt.Errorf("nrzled: open spi port %q: %w", portName, err)
	}
	n, err := NewNRZ(p, l, freq)
	if err != nil {
		_ = p.Close()
		return nil, err
	}
	n.port = p
	log.Info().Str("port", portName).Int("leds", l.Count()).Msg("nrzled strip ready")
	return n, nil
}

// NewNRZ wraps an already open SPI port.
func NewNRZ(p spi.Port, l Layout, freq physic.Frequency) (*NRZ, error) {
	buf, err := frame.New(l.Width, l.Height)
	if err != nil {
		return nil, err
	}
	if freq == 0 {
		freq = DefaultNRZFreq
	}
	dev, err := nrzled.NewSPI(p, &nrzled.Opts{
		NumPixels: l.Count(),
		Channels:  3,
		Freq:      freq,
	})
	if err != nil {
		return nil, fmt.Errorf("nrzled: %w", err)
	}
	return &NRZ{buf: buf, layout: l, dev: dev}, nil
}

func (n *NRZ) Width() int  { return n.buf.Width() }
func (n *NRZ) Height() int { return n.buf.Height() }

func (n *NRZ) Clear() { n.buf.Clear() }

func (n *NRZ) SetPixel(x, y int, r, g, b uint8) { n.buf.SetPixel(x, y, r, g, b) }

func (n *NRZ) Present() (Surface, error) {
	n.strip = n.layout.Linearize(n.buf.Bytes(), n.strip)
	if _, err := n.dev.Write(n.strip); err != nil {
		log.Error().Err(err).Int("bytes", len(n.strip)).Msg("nrzled write failed")
		return n, fmt.Errorf("nrzled: write: %w", err)
	}
	return n, nil
}

func (n *NRZ) Close() error {
	if n.dev == nil {
		return nil
	}
	err := n.dev.Halt()
	n.dev = nil
	if n.port != nil {
		if cerr := n.port.Close(); err == nil {
			err = cerr
		}
	}
	return err
}

func (n *NRZ) Snapshot() []byte { return n.buf.Snapshot() }

func (n *NRZ) String() string {
	if n.dev == nil {
		return "nrzled{closed}"
	}
	return n.dev.String()
}
