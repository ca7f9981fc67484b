package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"syscall"
	"time"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/app"
	"github.com/MikeChuckRoast/LedPanels/internal/backend"
	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/control"
	diag "github.com/MikeChuckRoast/LedPanels/internal/diagnostics"
	"github.com/MikeChuckRoast/LedPanels/internal/keys"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
	"github.com/MikeChuckRoast/LedPanels/internal/watch"
	"github.com/MikeChuckRoast/LedPanels/internal/ws"
)

func main() {
	if err := run(); err != nil {
		log.Error().Err(err).Msg("display stopped")
		os.Exit(1)
	}
}

func run() error {
	// ---- Flags (override settings.toml) ----
	var (
		configDir = flag.String("config-dir", "config", "directory holding settings.toml and the meet files")
		backendF  = flag.String("backend", "", "output backend: colorlight | ddp | emulator | nrzled | sim")
		iface     = flag.String("iface", "", "network interface for the colorlight backend")
		logLevel  = flag.String("log-level", "info", "log level: debug | info | warn | error")
		once      = flag.Bool("once", false, "render the current heat once and exit")
		addr      = flag.String("addr", "", "web listen address host:port")
	)
	flag.Parse()

	// ---- Logging ----
	zerolog.TimeFieldFormat = time.RFC3339
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.Kitchen})
	if lvl, err := zerolog.ParseLevel(*logLevel); err == nil {
		zerolog.SetGlobalLevel(lvl)
	} else {
		log.Warn().Str("level", *logLevel).Msg("unknown log level, using info")
	}

	// ---- Settings ----
	cfg, err := config.LoadDir(*configDir)
	if err != nil {
		return err
	}
	if *once {
		cfg.Behavior.Once = true
	}
	if *addr != "" {
		host, port, err := net.SplitHostPort(*addr)
		if err != nil {
			return fmt.Errorf("-addr: %w", err)
		}
		cfg.Web.WebHost = host
		if cfg.Web.WebPort, err = strconv.Atoi(port); err != nil {
			return fmt.Errorf("-addr port: %w", err)
		}
	}
	if err := cfg.Override(*backendF, *iface); err != nil {
		return err
	}
	name, _ := cfg.BackendName()

	// The emulator owns the terminal, so logs go to a file instead.
	if name == config.BackendEmulator {
		f, err := os.OpenFile(filepath.Join(*configDir, "ledpanels.log"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
		if err != nil {
			return err
		}
		defer f.Close()
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: f, TimeFormat: time.Kitchen, NoColor: true})
	}

	// ---- State ----
	start := roster.Key{Event: 1, Round: 1, Heat: 1}
	if ce, err := config.LoadCurrentEvent(filepath.Join(*configDir, config.CurrentEventFile)); err != nil {
		log.Warn().Err(err).Msg("current event unreadable, starting at 1-1-1")
	} else {
		start = roster.Key(ce)
	}
	state := control.New(start, control.DefaultQueue)
	diags := diag.NewLog(100)
	submit := func(r control.Request) {
		if !state.Submit(r) {
			log.Warn().Stringer("cmd", r.Cmd).Str("source", r.Source).Msg("request dropped, queue full")
		}
	}

	// ---- Output ----
	surface, err := backend.Open(cfg, backend.Options{
		OnKey: func(ev *tcell.EventKey) {
			if r, ok := keys.FromTcell(ev); ok {
				submit(r)
			}
		},
	})
	if err != nil {
		diags.Push(diag.FromError("BACKEND.OPEN", err))
		return fmt.Errorf("%s output unavailable: %w", name, err)
	}
	defer surface.Close()

	core, err := app.NewCore(*configDir, cfg, surface, state, diags)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// ---- Inputs ----
	if !cfg.Behavior.Once {
		if cfg.Keyboard.Enabled && name != config.BackendEmulator {
			raw := keys.IsTerminal(os.Stdin)
			restore, err := keys.MakeRaw(os.Stdin)
			if err != nil {
				log.Warn().Err(err).Msg("keyboard unavailable")
			} else {
				defer restore()
				if raw {
					log.Logger = log.Output(zerolog.ConsoleWriter{Out: keys.CRLFWriter(os.Stdout), TimeFormat: time.Kitchen})
				}
				go func() {
					if err := keys.Read(ctx, os.Stdin, submit); err != nil && !errors.Is(err, io.EOF) {
						log.Debug().Err(err).Msg("keyboard reader stopped")
					}
				}()
			}
		}
		if cfg.Monitoring.FileWatchEnabled {
			names := []string{
				config.SettingsFile,
				config.CurrentEventFile,
				filepath.Base(cfg.Files.LynxFile),
				filepath.Base(cfg.Files.ColorsFile),
			}
			if cfg.Files.ScheduleFile != "" {
				names = append(names, filepath.Base(cfg.Files.ScheduleFile))
			}
			w := watch.New(*configDir, names, cfg.PollInterval(), func(changed []string) {
				log.Info().Strs("files", changed).Msg("files changed")
				submit(control.Request{Cmd: control.Reload, Source: "watch"})
			})
			go func() { _ = w.Run(ctx) }()
		}
	}

	// ---- HTTP routes ----
	var srv *http.Server
	var web *ws.Server
	if cfg.Web.WebEnabled && !cfg.Behavior.Once {
		web = ws.NewServer(*configDir, state, diags)
		web.Backend = name
		core.OnFrame = web.BroadcastFrame
		mux := http.NewServeMux()
		web.Routes(mux)
		srv = &http.Server{
			Addr:         cfg.WebAddr(),
			Handler:      ws.WithCORS(mux),
			ReadTimeout:  5 * time.Second,
			WriteTimeout: 10 * time.Second,
			IdleTimeout:  60 * time.Second,
		}
		go func() {
			log.Info().Str("addr", srv.Addr).Str("backend", name).Msg("HTTP server starting")
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Error().Err(err).Msg("http server stopped")
			}
		}()
	}

	// ---- Graceful shutdown ----
	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		select {
		case s := <-sig:
			log.Info().Str("signal", s.String()).Msg("shutting down")
			cancel()
		case <-ctx.Done():
		}
	}()

	err = core.Run(ctx)
	cancel()
	if srv != nil {
		sctx, scancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = srv.Shutdown(sctx)
		scancel()
		web.Close()
	}
	return err
}
