// Package backend opens the output surface named in the configuration.
// Selection is explicit: a backend that fails to open is reported, never
// replaced by another one.
package backend

import (
	"fmt"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"periph.io/x/conn/v3/physic"

	"github.com/MikeChuckRoast/LedPanels/internal/colorlight"
	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/ddp"
	"github.com/MikeChuckRoast/LedPanels/internal/emulator"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
)

type Options struct {
	// Logger for the colorlight transport; zero value uses the global logger.
	Logger *zerolog.Logger
	// OnKey receives key presses when the terminal emulator owns stdin.
	OnKey emulator.KeyFunc
}

type opener func(cfg *config.Config, w, h int, o Options) (led.Surface, error)

var openers = map[string]opener{
	config.BackendColorLight: openColorLight,
	config.BackendDDP:        openDDP,
	config.BackendEmulator:   openEmulator,
	config.BackendNRZ:        openNRZ,
	config.BackendSim:        openSim,
}

// Open builds the surface for cfg's backend at the full canvas size
// (width*chain by height*parallel).
func Open(cfg *config.Config, o Options) (led.Surface, error) {
	name, err := cfg.BackendName()
	if err != nil {
		return nil, err
	}
	open, ok := openers[name]
	if !ok {
		return nil, fmt.Errorf("backend: %q not available", name)
	}
	w, h := cfg.TotalWidth(), cfg.TotalHeight()
	s, err := open(cfg, w, h, o)
	if err != nil {
		return nil, err
	}
	log.Info().Str("backend", name).Int("width", w).Int("height", h).Msg("output ready")
	return s, nil
}

func openColorLight(cfg *config.Config, w, h int, o Options) (led.Surface, error) {
	var opts []colorlight.Option
	if o.Logger != nil {
		opts = append(opts, colorlight.WithLogger(*o.Logger))
	}
	return colorlight.NewSurface(cfg.Network.ColorLightInterface, w, h, opts...)
}

func openDDP(cfg *config.Config, w, h int, _ Options) (led.Surface, error) {
	return ddp.NewSurface(cfg.Network.FPPHost, cfg.Network.FPPPort, w, h)
}

func openEmulator(_ *config.Config, w, h int, o Options) (led.Surface, error) {
	return emulator.New(w, h, o.OnKey)
}

func openNRZ(cfg *config.Config, w, h int, _ Options) (led.Surface, error) {
	l := led.Layout{Width: w, Height: h}
	if cfg.NRZ.Serpentine {
		l.Order = led.Serpentine{FlipEveryRow: true}
	}
	return led.OpenNRZ(cfg.NRZ.SPIPort, l, physic.Frequency(cfg.NRZ.FreqKHz)*physic.KiloHertz)
}

func openSim(_ *config.Config, w, h int, _ Options) (led.Surface, error) {
	return led.NewSim(w, h)
}
