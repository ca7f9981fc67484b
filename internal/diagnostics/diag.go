package diagnostics

import (
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/colorlight"
)

type Severity string

const (
	Info Severity = "info"
	Warn Severity = "warning"
	Err  Severity = "error"
)

type Diagnostic struct {
	Time           time.Time      `json:"time"`
	Severity       Severity       `json:"severity"`
	Code           string         `json:"code"`
	Summary        string         `json:"summary"`
	Detail         string         `json:"detail,omitempty"`
	LikelyCauses   []string       `json:"likely_causes,omitempty"`
	SuggestedFixes []string       `json:"suggested_fixes,omitempty"`
	Evidence       map[string]any `json:"evidence,omitempty"`
}

// FromError turns an output failure into an operator-facing diagnostic.
// ColorLight errors get kind-specific causes and fixes.
func FromError(code string, err error) Diagnostic {
	d := Diagnostic{Severity: Err, Code: code, Summary: "output error", Detail: err.Error()}
	var ce *colorlight.Error
	if !errors.As(err, &ce) {
		return d
	}
	d.Code = "COLORLIGHT." + strings.ToUpper(ce.Kind.String())
	d.Evidence = map[string]any{"iface": ce.Iface, "op": ce.Op}
	switch ce.Kind {
	case colorlight.KindConfiguration:
		d.Summary = "raw Ethernet is not available on this platform"
		d.LikelyCauses = []string{"not running on Linux", "kernel built without AF_PACKET"}
		d.SuggestedFixes = []string{"run on Linux", "select a different [output] backend"}
	case colorlight.KindPermission:
		d.Summary = "not allowed to open a raw socket"
		d.LikelyCauses = []string{"process lacks CAP_NET_RAW"}
		d.SuggestedFixes = []string{"run as root", "setcap cap_net_raw+ep on the binary"}
	case colorlight.KindInterface:
		d.Summary = "network interface unavailable"
		d.LikelyCauses = []string{"interface name misspelled", "USB Ethernet adapter unplugged"}
		d.SuggestedFixes = []string{"check colorlight_interface in settings.toml", "ip link show"}
	case colorlight.KindTransport:
		d.Severity = Warn
		d.Summary = "frame send failed"
		d.LikelyCauses = []string{"link went down", "cable unplugged"}
		d.SuggestedFixes = []string{"check the cable to the receiver card"}
	}
	return d
}

// Log keeps the most recent diagnostics and fans new ones out to
// subscribers (the /diag websocket).
type Log struct {
	mu    sync.Mutex
	items []Diagnostic
	max   int
	subs  map[chan Diagnostic]struct{}
}

func NewLog(limit int) *Log {
	if limit <= 0 {
		limit = 100
	}
	return &Log{max: limit, subs: map[chan Diagnostic]struct{}{}}
}

// Push logs d and records it.
func (l *Log) Push(d Diagnostic) {
	log.WithLevel(level(d.Severity)).Str("code", d.Code).Str("detail", d.Detail).Msg(d.Summary)
	l.Record(d)
}

// Record keeps d and delivers it to subscribers without logging it, for
// failures the caller already logged. Slow subscribers miss entries rather
// than blocking the caller.
func (l *Log) Record(d Diagnostic) {
	if d.Time.IsZero() {
		d.Time = time.Now()
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	l.items = append(l.items, d)
	if len(l.items) > l.max {
		l.items = l.items[len(l.items)-l.max:]
	}
	for ch := range l.subs {
		select {
		case ch <- d:
		default:
		}
	}
}

// Recent returns the retained diagnostics, oldest first.
func (l *Log) Recent() []Diagnostic {
	l.mu.Lock()
	defer l.mu.Unlock()
	return append([]Diagnostic(nil), l.items...)
}

// Subscribe returns a channel of new diagnostics and a cancel func.
func (l *Log) Subscribe() (<-chan Diagnostic, func()) {
	ch := make(chan Diagnostic, 16)
	l.mu.Lock()
	l.subs[ch] = struct{}{}
	l.mu.Unlock()
	var once sync.Once
	return ch, func() {
		once.Do(func() {
			l.mu.Lock()
			delete(l.subs, ch)
			l.mu.Unlock()
			close(ch)
		})
	}
}

func level(s Severity) zerolog.Level {
	switch s {
	case Err:
		return zerolog.ErrorLevel
	case Warn:
		return zerolog.WarnLevel
	}
	return zerolog.InfoLevel
}
