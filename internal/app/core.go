package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/image/font"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/control"
	diag "github.com/MikeChuckRoast/LedPanels/internal/diagnostics"
	"github.com/MikeChuckRoast/LedPanels/internal/led"
	"github.com/MikeChuckRoast/LedPanels/internal/pattern"
	"github.com/MikeChuckRoast/LedPanels/internal/render"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

// DefaultTestDelay is how long each test pattern step is held.
const DefaultTestDelay = 100 * time.Millisecond

// ClockFormat is the time layout of the idle clock.
const ClockFormat = "15:04"

// Core owns the engine and applies navigation requests between frames.
type Core struct {
	Dir   string
	Cfg   *config.Config
	Eng   *render.Engine
	Reg   *render.Registry
	State *control.State
	Diag  *diag.Log

	// OnFrame receives a copy of every presented frame when the surface
	// can snapshot (web preview).
	OnFrame   func(rgb []byte, width, height int)
	TestDelay time.Duration
	Now       func() time.Time

	events  roster.Events
	colors  roster.Colors
	face    font.Face
	page    int
	test    *pattern.Runner
	failing bool
}

func NewCore(dir string, cfg *config.Config, s led.Surface, state *control.State, dl *diag.Log) (*Core, error) {
	eng, err := render.NewEngine(s, cfg.Display.Brightness)
	if err != nil {
		return nil, err
	}
	reg := render.NewRegistry()
	pattern.Register(reg, s.Width(), s.Height())
	reg.Register(&render.ClockScene{Face: render.DefaultFace(), Format: ClockFormat})
	return &Core{
		Dir:       dir,
		Cfg:       cfg,
		Eng:       eng,
		Reg:       reg,
		State:     state,
		Diag:      dl,
		TestDelay: DefaultTestDelay,
		Now:       time.Now,
		events:    roster.Events{},
		colors:    roster.Colors{},
		face:      render.DefaultFace(),
	}, nil
}

// fontSize picks a point size that fits the smaller of the two row heights.
func fontSize(d config.Display) float64 {
	h := min(d.LineHeight, d.HeaderLineHeight) - 2
	return float64(max(h, 6))
}

// Load reads the font and the meet files named in Cfg. On error the data
// loaded so far is kept.
func (c *Core) Load() error {
	face, err := render.LoadFace(c.Cfg.Fonts.FontPath, c.Cfg.Fonts.FontName, fontSize(c.Cfg.Display))
	if err != nil {
		log.Warn().Err(err).Msg("font unavailable, using built-in face")
		face = render.DefaultFace()
	}
	c.face = face
	c.Reg.Register(&render.ClockScene{Face: face, Format: ClockFormat})

	events, err := roster.LoadEvents(config.Path(c.Dir, c.Cfg.Files.LynxFile))
	if err != nil {
		return err
	}
	colors, err := roster.LoadColors(config.Path(c.Dir, c.Cfg.Files.ColorsFile))
	if err != nil {
		return err
	}
	sched, err := roster.LoadSchedule(config.Path(c.Dir, c.Cfg.Files.ScheduleFile))
	if err != nil {
		log.Warn().Err(err).Msg("schedule unreadable, navigating in event order")
		sched = nil
	}
	sched = sched.Validate(events)

	c.events, c.colors = events, colors
	if c.State != nil {
		c.State.SetData(events.Keys(), sched)
	}
	log.Info().Int("heats", len(events)).Int("teams", len(colors)).Int("scheduled", len(sched)).Msg("meet data loaded")
	return nil
}

func (c *Core) layout() render.Layout {
	d := c.Cfg.Display
	return render.Layout{
		LineHeight:       d.LineHeight,
		HeaderLineHeight: d.HeaderLineHeight,
		HeaderRows:       d.HeaderRows,
		FontShift:        d.FontShift,
	}
}

func (c *Core) sceneFor(k roster.Key) render.Scene {
	ev, ok := c.events[k]
	if !ok {
		log.Error().Stringer("key", k).Msg("requested event not found")
		return &render.MessageScene{Face: c.face, Lines: []string{"Event " + k.String(), "not found"}}
	}
	s, err := render.NewHeatScene(ev, c.colors, c.face, c.layout(), c.Eng.Canvas.Bounds().Dx(), c.Eng.Canvas.Bounds().Dy())
	if err != nil {
		log.Error().Err(err).Msg("cannot lay out heat")
		return &render.MessageScene{Face: c.face, Lines: []string{"Layout error"}}
	}
	return s
}

// Show makes the current heat active and renders its first page.
func (c *Core) Show() {
	k := c.State.Current()
	c.activate(c.sceneFor(k))
	log.Info().Str("position", c.State.PositionText()).Int("pages", c.Eng.Pages()).Msg("showing heat")
	c.render(0)
}

// idle shows the clock while no meet data is loaded.
func (c *Core) idle() {
	if err := c.Eng.SetScene("clock", c.Reg); err != nil {
		log.Error().Err(err).Msg("clock scene unavailable")
		return
	}
	c.page = 0
	log.Info().Msg("no meet data, showing clock")
	c.render(0)
}

// showData shows the current heat, or the clock when nothing is loaded.
func (c *Core) showData() {
	if len(c.events) == 0 {
		c.idle()
		return
	}
	c.Show()
}

func (c *Core) activate(s render.Scene) {
	c.Reg.Register(s)
	if err := c.Eng.SetScene(s.Name(), c.Reg); err != nil {
		log.Error().Err(err).Str("scene", s.Name()).Msg("cannot activate scene")
	}
	c.page = 0
}

func (c *Core) nextPage() {
	c.page = (c.page + 1) % c.Eng.Pages()
	c.render(c.page)
}

func (c *Core) render(page int) {
	err := c.Eng.RenderPage(page, c.Now())
	c.presented(err)
}

// presented tracks output health and forwards the frame to the preview.
func (c *Core) presented(err error) {
	switch {
	case err != nil && !c.failing:
		// Surfaces log their own send failures.
		c.failing = true
		if c.Diag != nil {
			c.Diag.Record(diag.FromError("OUTPUT.PRESENT", err))
		}
	case err != nil:
		log.Debug().Err(err).Msg("present failed")
	case c.failing:
		c.failing = false
		c.push(diag.Diagnostic{Severity: diag.Info, Code: "OUTPUT.RECOVERED", Summary: "output is sending frames again"})
	}
	if c.OnFrame == nil {
		return
	}
	if snap, ok := c.Eng.Surface.(led.Snapshotter); ok {
		c.OnFrame(snap.Snapshot(), c.Eng.Surface.Width(), c.Eng.Surface.Height())
	}
}

func (c *Core) push(d diag.Diagnostic) {
	if c.Diag != nil {
		c.Diag.Push(d)
		return
	}
	log.Warn().Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
}

func (c *Core) persist(k roster.Key) {
	path := filepath.Join(c.Dir, config.CurrentEventFile)
	if err := config.SaveCurrentEvent(path, config.CurrentEvent(k)); err != nil {
		log.Warn().Err(err).Stringer("key", k).Msg("could not save current event")
	}
}

// Run loads the meet data, shows the current heat and then serves requests
// and page flips until ctx is done or a Quit arrives. With Cfg.Behavior.Once
// it renders one page and returns.
func (c *Core) Run(ctx context.Context) error {
	if err := c.Load(); err != nil {
		log.Error().Err(err).Msg("loading meet data")
		c.push(diag.Diagnostic{Severity: diag.Err, Code: "DATA.LOAD", Summary: "meet data could not be loaded", Detail: err.Error()})
		if c.Cfg.Behavior.Once {
			return err
		}
	}
	c.showData()
	if c.Cfg.Behavior.Once {
		return nil
	}

	tick := time.NewTicker(c.Cfg.PageInterval())
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-tick.C:
			if c.test != nil {
				c.stepTest()
				if c.test == nil {
					tick.Reset(c.Cfg.PageInterval())
				}
				continue
			}
			c.nextPage()
		case r := <-c.State.Requests():
			if r.Cmd == control.Quit {
				log.Info().Str("source", r.Source).Msg("quit requested")
				return nil
			}
			c.Handle(r)
			if c.test != nil {
				tick.Reset(c.TestDelay)
			} else {
				tick.Reset(c.Cfg.PageInterval())
			}
		}
	}
}

// Handle applies one request. Navigation cancels a running test pattern.
func (c *Core) Handle(r control.Request) {
	l := log.With().Stringer("cmd", r.Cmd).Str("source", r.Source).Logger()
	switch r.Cmd {
	case control.Next, control.Prev:
		testing := c.test != nil
		c.test = nil
		delta := 1
		if r.Cmd == control.Prev {
			delta = -1
		}
		k, ok := c.State.Step(delta)
		if !ok {
			l.Info().Msg("already at the end of the list")
			if testing {
				c.showData()
			}
			return
		}
		l.Info().Stringer("key", k).Msg("navigate")
		c.persist(k)
		c.Show()
	case control.Goto:
		c.test = nil
		l.Info().Stringer("key", r.Key).Msg("navigate")
		c.State.SetCurrent(r.Key)
		c.persist(r.Key)
		c.Show()
	case control.Reload:
		l.Info().Msg("reload")
		c.test = nil
		c.reload()
	case control.RunTest:
		s, ok := c.Reg.Get(string(r.Pattern))
		ps, isPattern := s.(*pattern.Scene)
		if !ok || !isPattern {
			c.push(diag.Diagnostic{
				Severity: diag.Warn, Code: "TEST.UNKNOWN", Summary: "unknown test pattern",
				Evidence: map[string]any{"name": string(r.Pattern)},
			})
			return
		}
		c.push(diag.Diagnostic{Severity: diag.Info, Code: "TEST.RUNNING", Summary: "running test pattern", Detail: string(r.Pattern)})
		c.test = pattern.NewRunner(ps)
		c.stepTest()
	}
}

func (c *Core) stepTest() {
	more, err := c.test.Step(c.Eng)
	if !more {
		c.push(diag.Diagnostic{Severity: diag.Info, Code: "TEST.DONE", Summary: "test pattern complete", Detail: string(c.test.Kind())})
		c.test = nil
		c.showData()
		return
	}
	c.presented(err)
}

// reload re-reads settings.toml, current_event.json and the meet files.
// Invalid settings keep the previous ones.
func (c *Core) reload() {
	cfg, err := config.Load(filepath.Join(c.Dir, config.SettingsFile))
	switch {
	case err != nil:
		log.Warn().Err(err).Msg("settings invalid, keeping previous settings")
		c.push(diag.Diagnostic{Severity: diag.Warn, Code: "CONFIG.INVALID", Summary: "settings.toml rejected", Detail: err.Error()})
	default:
		if cfg.Hardware != c.Cfg.Hardware || cfg.Output != c.Cfg.Output || cfg.Network != c.Cfg.Network {
			log.Warn().Msg("hardware and output changes take effect after a restart")
		}
		c.Cfg = cfg
		c.Eng.Brightness = cfg.Display.Brightness
	}

	if ce, err := config.LoadCurrentEvent(filepath.Join(c.Dir, config.CurrentEventFile)); err != nil {
		log.Warn().Err(err).Msg("current event unreadable, staying on current heat")
	} else {
		c.State.SetCurrent(roster.Key(ce))
	}

	if err := c.Load(); err != nil {
		log.Error().Err(err).Msg("reloading meet data")
		c.push(diag.Diagnostic{Severity: diag.Err, Code: "DATA.LOAD", Summary: "meet data could not be reloaded", Detail: err.Error()})
	}
	c.showData()
}

// RunPattern drives a single pattern to completion outside the main loop.
func RunPattern(ctx context.Context, eng *render.Engine, kind pattern.Kind, delay time.Duration) error {
	s, err := pattern.New(kind, eng.Canvas.Bounds().Dx(), eng.Canvas.Bounds().Dy())
	if err != nil {
		return fmt.Errorf("app: %w", err)
	}
	return pattern.NewRunner(s).Run(ctx, eng, delay)
}
