// Command rowtest drives a wiring test pattern through the configured
// output, for bringing up a new panel chain.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/app"
	"github.com/MikeChuckRoast/LedPanels/internal/backend"
	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/pattern"
	"github.com/MikeChuckRoast/LedPanels/internal/render"
)

func main() {
	var (
		configDir = flag.String("config-dir", "config", "directory holding settings.toml")
		backendF  = flag.String("backend", "", "output backend (default from settings.toml)")
		iface     = flag.String("iface", "", "network interface for the colorlight backend")
		kind      = flag.String("pattern", string(pattern.RowSweep), "row_sweep | rgb_channels | column_sweep")
		delay     = flag.Duration("delay", 200*time.Millisecond, "how long each step is held")
		loop      = flag.Bool("loop", false, "repeat until interrupted")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.LoadDir(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("settings")
	}
	if err := cfg.Override(*backendF, *iface); err != nil {
		log.Fatal().Err(err).Msg("settings")
	}
	s, err := backend.Open(cfg, backend.Options{})
	if err != nil {
		log.Fatal().Err(err).Msg("output unavailable")
	}
	defer s.Close()

	eng, err := render.NewEngine(s, cfg.Display.Brightness)
	if err != nil {
		log.Error().Err(err).Msg("engine")
		return
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	k := pattern.Kind(strings.ToLower(*kind))
	log.Info().Str("pattern", string(k)).Dur("delay", *delay).Int("width", s.Width()).Int("height", s.Height()).Msg("running test pattern")
	for {
		err = app.RunPattern(ctx, eng, k, *delay)
		if err != nil || !*loop {
			break
		}
	}
	if err != nil && !errors.Is(err, context.Canceled) {
		log.Error().Err(err).Msg("test pattern")
	}
	if err := eng.Blank(); err != nil {
		log.Warn().Err(err).Msg("blank after test")
	}
}
