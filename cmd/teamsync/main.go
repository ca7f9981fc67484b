// Command teamsync adds every affiliation in the event file that has no
// colours yet to colors.csv, white on black, so it can be edited later.
package main

import (
	"bytes"
	"errors"
	"flag"
	"image/color"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

func main() {
	var (
		configDir = flag.String("config-dir", "config", "directory holding settings.toml and the meet files")
		dryRun    = flag.Bool("n", false, "list the missing teams without writing colors.csv")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})

	cfg, err := config.LoadDir(*configDir)
	if err != nil {
		log.Fatal().Err(err).Msg("settings")
	}
	events, err := roster.LoadEvents(config.Path(*configDir, cfg.Files.LynxFile))
	if err != nil {
		log.Fatal().Err(err).Msg("event file")
	}
	colorsPath := config.Path(*configDir, cfg.Files.ColorsFile)
	colors, err := roster.LoadColors(colorsPath)
	if err != nil {
		log.Fatal().Err(err).Msg("colours file")
	}

	missing := roster.MissingTeams(events, colors)
	if len(missing) == 0 {
		log.Info().Int("teams", len(colors)).Msg("every team in the event file has colours")
		return
	}
	log.Info().Strs("teams", missing).Msg("teams without colours")
	if *dryRun {
		return
	}

	black := color.RGBA{A: 0xFF}
	white := color.RGBA{R: 0xFF, G: 0xFF, B: 0xFF, A: 0xFF}
	for _, code := range missing {
		colors[code] = roster.Team{Affiliation: code, Name: code, Background: black, Text: white}
	}
	var buf bytes.Buffer
	if err := roster.WriteColors(&buf, colors.Teams()); err != nil {
		log.Fatal().Err(err).Msg("encode colours")
	}
	if old, err := os.ReadFile(colorsPath); err == nil {
		if err := config.WriteFileAtomic(colorsPath+".bak", old); err != nil {
			log.Fatal().Err(err).Msg("backup colours file")
		}
	} else if !errors.Is(err, os.ErrNotExist) {
		log.Fatal().Err(err).Msg("read colours file")
	}
	if err := config.WriteFileAtomic(colorsPath, buf.Bytes()); err != nil {
		log.Fatal().Err(err).Msg("write colours file")
	}
	log.Info().Int("added", len(missing)).Str("file", colorsPath).Msg("colours file updated")
}
