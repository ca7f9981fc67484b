package ws

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/control"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

// maxBody bounds JSON uploads; a full meet's lynx.evt is well under this.
const maxBody = 8 << 20

func writeResponse(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeResponse(w, status, map[string]string{"error": msg})
}

func decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody)).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body: "+err.Error())
		return false
	}
	return true
}

func (s *Server) settings() (*config.Config, error) {
	return config.Load(filepath.Join(s.Dir, config.SettingsFile))
}

func (s *Server) settingsOr500(w http.ResponseWriter) (*config.Config, bool) {
	cfg, err := s.settings()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return nil, false
	}
	return cfg, true
}

func (s *Server) reload(source string) {
	s.submit(control.Request{Cmd: control.Reload, Source: source})
}

type eventInfo struct {
	roster.Key
	Name             string `json:"name"`
	AthleteCount     int    `json:"athlete_count"`
	SchedulePosition *int   `json:"schedule_position"`
	TotalScheduled   *int   `json:"total_scheduled"`
}

// handleEvents lists heats in running order: scheduled heats first with
// their positions, then the rest sorted.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	events, err := roster.LoadEvents(config.Path(s.Dir, cfg.Files.LynxFile))
	if errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, cfg.Files.LynxFile+" file not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	sched, err := roster.LoadSchedule(config.Path(s.Dir, cfg.Files.ScheduleFile))
	if err != nil {
		log.Warn().Err(err).Msg("web: schedule unreadable, listing heats in sorted order")
	}
	sched = sched.Validate(events)

	list := make([]eventInfo, 0, len(events))
	seen := make(map[roster.Key]bool, len(sched))
	total := len(sched)
	for i, k := range sched {
		pos := i + 1
		seen[k] = true
		list = append(list, eventInfo{
			Key: k, Name: events[k].Name, AthleteCount: len(events[k].Athletes),
			SchedulePosition: &pos, TotalScheduled: &total,
		})
	}
	for _, k := range events.Keys() {
		if seen[k] {
			continue
		}
		list = append(list, eventInfo{Key: k, Name: events[k].Name, AthleteCount: len(events[k].Athletes)})
	}
	resp := map[string]any{"events": list, "has_schedule": len(sched) > 0}
	if s.State != nil {
		resp["current"] = s.State.Current()
	}
	writeResponse(w, http.StatusOK, resp)
}

func (s *Server) currentEventPath() string { return filepath.Join(s.Dir, config.CurrentEventFile) }

func (s *Server) handleGetCurrent(w http.ResponseWriter, r *http.Request) {
	ce, err := config.LoadCurrentEvent(s.currentEventPath())
	switch {
	case errors.Is(err, os.ErrNotExist):
		writeError(w, http.StatusNotFound, config.CurrentEventFile+" file not found")
	case errors.Is(err, config.ErrInvalid):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeResponse(w, http.StatusOK, ce)
	}
}

// handleSetCurrent persists the new heat and asks the display to jump to it.
func (s *Server) handleSetCurrent(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Event *int `json:"event"`
		Round *int `json:"round"`
		Heat  *int `json:"heat"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Event == nil || body.Round == nil || body.Heat == nil {
		writeError(w, http.StatusBadRequest, "missing required fields: event, round, heat")
		return
	}
	ce := config.CurrentEvent{Event: *body.Event, Round: *body.Round, Heat: *body.Heat}
	if err := ce.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.SaveCurrentEvent(s.currentEventPath(), ce); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.submit(control.Request{Cmd: control.Goto, Key: roster.Key(ce), Source: "web"})
	log.Info().Int("event", ce.Event).Int("round", ce.Round).Int("heat", ce.Heat).Msg("web: current event set")
	writeResponse(w, http.StatusOK, map[string]any{"success": true, "current_event": ce})
}

type teamInfo struct {
	Affiliation string `json:"affiliation"`
	Name        string `json:"name"`
	BgColor     string `json:"bgcolor"`
	Text        string `json:"text"`
}

func (s *Server) handleGetTeams(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	path := config.Path(s.Dir, cfg.Files.ColorsFile)
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		writeError(w, http.StatusNotFound, cfg.Files.ColorsFile+" file not found")
		return
	}
	colors, err := roster.LoadColors(path)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	teams := make([]teamInfo, 0, len(colors))
	for _, t := range colors.Teams() {
		teams = append(teams, teamInfo{
			Affiliation: t.Affiliation,
			Name:        t.Name,
			BgColor:     roster.HexColor(t.Background),
			Text:        roster.HexColor(t.Text),
		})
	}
	writeResponse(w, http.StatusOK, map[string]any{"teams": teams})
}

// handleSetTeams replaces the whole colour table.
func (s *Server) handleSetTeams(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Teams []teamInfo `json:"teams"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Teams == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid teams array")
		return
	}
	teams := make([]roster.Team, 0, len(body.Teams))
	for i, t := range body.Teams {
		affil := strings.TrimSpace(t.Affiliation)
		if affil == "" {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("team %d: affiliation cannot be empty", i))
			return
		}
		bg, err := roster.ParseHexColor(t.BgColor)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("team %d (%s): invalid bgcolor: %v", i, affil, err))
			return
		}
		fg, err := roster.ParseHexColor(t.Text)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("team %d (%s): invalid text: %v", i, affil, err))
			return
		}
		name := strings.TrimSpace(t.Name)
		if name == "" {
			name = affil
		}
		teams = append(teams, roster.Team{Affiliation: affil, Name: name, Background: bg, Text: fg})
	}

	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	var buf bytes.Buffer
	if err := roster.WriteColors(&buf, teams); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := replaceFile(config.Path(s.Dir, cfg.Files.ColorsFile), buf.Bytes()); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.reload("web")
	log.Info().Int("teams", len(teams)).Msg("web: colours updated")
	writeResponse(w, http.StatusOK, map[string]any{"success": true, "count": len(teams)})
}

// displayInfo is the editable part of [display] plus [fonts] font_name.
type displayInfo struct {
	LineHeight       *int     `json:"line_height,omitempty"`
	HeaderLineHeight *int     `json:"header_line_height,omitempty"`
	HeaderRows       *int     `json:"header_rows,omitempty"`
	Interval         *float64 `json:"interval,omitempty"`
	FontShift        *int     `json:"font_shift,omitempty"`
	Brightness       *float64 `json:"brightness,omitempty"`
	FontName         *string  `json:"font_name,omitempty"`
}

func displayOf(cfg *config.Config) displayInfo {
	d := cfg.Display
	font := cfg.Fonts.FontName
	return displayInfo{
		LineHeight:       &d.LineHeight,
		HeaderLineHeight: &d.HeaderLineHeight,
		HeaderRows:       &d.HeaderRows,
		Interval:         &d.Interval,
		FontShift:        &d.FontShift,
		Brightness:       &d.Brightness,
		FontName:         &font,
	}
}

func (s *Server) handleGetDisplay(w http.ResponseWriter, r *http.Request) {
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	writeResponse(w, http.StatusOK, map[string]any{"display": displayOf(cfg)})
}

// handleSetDisplay merges the posted fields into settings.toml. Fields left
// out keep their current values.
func (s *Server) handleSetDisplay(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Display *displayInfo `json:"display"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Display == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid display settings object")
		return
	}
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	d := body.Display
	setInt(&cfg.Display.LineHeight, d.LineHeight)
	setInt(&cfg.Display.HeaderLineHeight, d.HeaderLineHeight)
	setInt(&cfg.Display.HeaderRows, d.HeaderRows)
	setInt(&cfg.Display.FontShift, d.FontShift)
	if d.Interval != nil {
		cfg.Display.Interval = *d.Interval
	}
	if d.Brightness != nil {
		cfg.Display.Brightness = *d.Brightness
	}
	if d.FontName != nil {
		name := strings.TrimSpace(*d.FontName)
		switch strings.ToLower(filepath.Ext(name)) {
		case ".bdf", ".ttf", ".otf":
		default:
			writeError(w, http.StatusBadRequest, "font_name must be a .bdf, .ttf or .otf font file")
			return
		}
		cfg.Fonts.FontName = name
	}
	if cfg.Display.FontShift < 0 {
		writeError(w, http.StatusBadRequest, "font_shift must not be negative")
		return
	}
	if err := cfg.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := config.Save(filepath.Join(s.Dir, config.SettingsFile), cfg); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.reload("web")
	log.Info().Interface("display", cfg.Display).Str("font", cfg.Fonts.FontName).Msg("web: display settings updated")
	writeResponse(w, http.StatusOK, map[string]any{"success": true, "display": displayOf(cfg)})
}

func setInt(dst *int, v *int) {
	if v != nil {
		*dst = *v
	}
}

type scheduleCheck struct {
	TotalEntries   int `json:"total_entries"`
	ValidEntries   int `json:"valid_entries"`
	InvalidEntries int `json:"invalid_entries"`
}

func parseUploadedEvents(content string) (roster.Events, error) {
	if strings.TrimSpace(content) == "" {
		return nil, errors.New("events content cannot be empty")
	}
	events, err := roster.ParseEvents(strings.NewReader(content))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, errors.New("no valid events found in content")
	}
	return events, nil
}

func checkUploadedSchedule(content string, events roster.Events) (scheduleCheck, error) {
	if strings.TrimSpace(content) == "" {
		return scheduleCheck{}, errors.New("schedule content cannot be empty")
	}
	sched, err := roster.ParseSchedule(strings.NewReader(content))
	if err != nil {
		return scheduleCheck{}, err
	}
	if len(sched) == 0 {
		return scheduleCheck{}, errors.New("no valid schedule entries found in content")
	}
	valid := sched.Validate(events)
	if len(valid) == 0 {
		return scheduleCheck{}, errors.New("no schedule entries match heats in the event file")
	}
	return scheduleCheck{
		TotalEntries:   len(sched),
		ValidEntries:   len(valid),
		InvalidEntries: len(sched) - len(valid),
	}, nil
}

func scheduleName(cfg *config.Config) string {
	if cfg.Files.ScheduleFile == "" {
		return "lynx.sch"
	}
	return cfg.Files.ScheduleFile
}

func (s *Server) handleUploadEvents(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content *string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Content == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid content field (must be string)")
		return
	}
	events, err := parseUploadedEvents(*body.Content)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	if err := replaceFile(config.Path(s.Dir, cfg.Files.LynxFile), []byte(*body.Content)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.reload("web")
	log.Info().Int("heats", len(events)).Msg("web: event file replaced")
	writeResponse(w, http.StatusOK, map[string]any{"success": true, "event_count": len(events)})
}

// handleUploadSchedule checks the new running order against the current
// event file before replacing lynx.sch.
func (s *Server) handleUploadSchedule(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Content *string `json:"content"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Content == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid content field (must be string)")
		return
	}
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	events, err := roster.LoadEvents(config.Path(s.Dir, cfg.Files.LynxFile))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "cannot validate schedule: "+err.Error())
		return
	}
	check, err := checkUploadedSchedule(*body.Content, events)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := replaceFile(config.Path(s.Dir, scheduleName(cfg)), []byte(*body.Content)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.reload("web")
	log.Info().Int("valid", check.ValidEntries).Int("total", check.TotalEntries).Msg("web: schedule replaced")
	writeResponse(w, http.StatusOK, struct {
		Success bool `json:"success"`
		scheduleCheck
	}{true, check})
}

// handleUploadCombined validates both files before writing either.
func (s *Server) handleUploadCombined(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Events   *string `json:"events"`
		Schedule *string `json:"schedule"`
	}
	if !decode(w, r, &body) {
		return
	}
	if body.Events == nil || body.Schedule == nil {
		writeError(w, http.StatusBadRequest, "missing or invalid events/schedule fields (must be strings)")
		return
	}
	events, err := parseUploadedEvents(*body.Events)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	check, err := checkUploadedSchedule(*body.Schedule, events)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	cfg, ok := s.settingsOr500(w)
	if !ok {
		return
	}
	if err := replaceFile(config.Path(s.Dir, cfg.Files.LynxFile), []byte(*body.Events)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if err := replaceFile(config.Path(s.Dir, scheduleName(cfg)), []byte(*body.Schedule)); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.reload("web")
	log.Info().Int("heats", len(events)).Int("scheduled", check.ValidEntries).Msg("web: event file and schedule replaced")
	writeResponse(w, http.StatusOK, struct {
		Success    bool `json:"success"`
		EventCount int  `json:"event_count"`
		scheduleCheck
	}{true, len(events), check})
}

// replaceFile keeps the previous contents in path.bak, then swaps b in.
func replaceFile(path string, b []byte) error {
	old, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := config.WriteFileAtomic(path+".bak", old); err != nil {
			return fmt.Errorf("backup %s: %w", filepath.Base(path), err)
		}
	case !errors.Is(err, os.ErrNotExist):
		return err
	}
	return config.WriteFileAtomic(path, b)
}
