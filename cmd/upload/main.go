// Command upload sends a new event file and/or schedule to a running
// display through its web API.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/ws"
)

func main() {
	var (
		server   = flag.String("server", "http://localhost:5000", "base URL of the display's web server")
		events   = flag.String("events", "", "lynx.evt file to upload")
		schedule = flag.String("schedule", "", "lynx.sch file to upload")
		combined = flag.Bool("combined", false, "upload both files in one request; neither is replaced unless both are valid")
	)
	flag.Parse()

	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})

	if err := run(*server, *events, *schedule, *combined); err != nil {
		log.Error().Err(err).Msg("upload failed")
		os.Exit(1)
	}
}

func run(server, eventsFile, scheduleFile string, combined bool) error {
	switch {
	case eventsFile == "" && scheduleFile == "":
		flag.Usage()
		return errors.New("need -events, -schedule or both")
	case combined && (eventsFile == "" || scheduleFile == ""):
		return errors.New("-combined needs both -events and -schedule")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	c := ws.NewClient(server)

	read := func(path string) (string, error) {
		b, err := os.ReadFile(path)
		if err != nil {
			return "", err
		}
		return string(b), nil
	}

	if combined {
		ev, err := read(eventsFile)
		if err != nil {
			return err
		}
		sch, err := read(scheduleFile)
		if err != nil {
			return err
		}
		res, err := c.UploadCombined(ctx, ev, sch)
		if err != nil {
			return fmt.Errorf("%s + %s: %w", eventsFile, scheduleFile, err)
		}
		log.Info().Int("heats", res.EventCount).Int("scheduled", res.ValidEntries).Int("unmatched", res.InvalidEntries).Msg("event file and schedule replaced")
		return nil
	}

	var failed bool
	if eventsFile != "" {
		ev, err := read(eventsFile)
		if err == nil {
			var res ws.UploadResult
			if res, err = c.UploadEvents(ctx, ev); err == nil {
				log.Info().Str("file", eventsFile).Int("heats", res.EventCount).Msg("event file replaced")
			}
		}
		if err != nil {
			log.Error().Err(err).Str("file", eventsFile).Msg("event upload failed")
			failed = true
		}
	}
	if scheduleFile != "" {
		sch, err := read(scheduleFile)
		if err == nil {
			var res ws.UploadResult
			if res, err = c.UploadSchedule(ctx, sch); err == nil {
				log.Info().Str("file", scheduleFile).Int("scheduled", res.ValidEntries).Int("unmatched", res.InvalidEntries).Msg("schedule replaced")
			}
		}
		if err != nil {
			log.Error().Err(err).Str("file", scheduleFile).Msg("schedule upload failed")
			failed = true
		}
	}
	if failed {
		return errors.New("one or more uploads failed")
	}
	return nil
}
