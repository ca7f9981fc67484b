// Command clearpanel blanks the configured output once and exits.
package main

import (
	"flag"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/backend"
	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/render"
)

func main() {
	var (
		configDir = flag.String("config-dir", "config", "directory holding settings.toml")
		backendF  = flag.String("backend", "", "output backend (default from settings.toml)")
		iface     = flag.String("iface", "", "network interface for the colorlight backend")
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

	eng, err := render.NewEngine(s, 1)
	if err != nil {
		log.Error().Err(err).Msg("engine")
		return
	}
	if err := eng.Blank(); err != nil {
		log.Error().Err(err).Msg("clear failed")
		s.Close()
		os.Exit(1)
	}
	log.Info().Int("width", s.Width()).Int("height", s.Height()).Msg("display cleared")
}
