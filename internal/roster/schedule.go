package roster

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Schedule is the competition running order from lynx.sch.
type Schedule []Key

// ParseSchedule reads "event,round,heat" lines. Blank lines and lines
// starting with ';' are ignored; malformed or non-positive entries are
// skipped with a warning.
func ParseSchedule(r io.Reader) (Schedule, error) {
	var s Schedule
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, ";") {
			continue
		}
		parts := strings.Split(line, ",")
		if len(parts) != 3 {
			log.Warn().Int("line", n).Str("text", line).Msg("schedule: expected event,round,heat")
			continue
		}
		var v [3]int
		ok := true
		for i, p := range parts {
			x, err := strconv.Atoi(strings.TrimSpace(p))
			if err != nil || x <= 0 {
				ok = false
				break
			}
			v[i] = x
		}
		if !ok {
			log.Warn().Int("line", n).Str("text", line).Msg("schedule: invalid entry")
			continue
		}
		s = append(s, Key{Event: v[0], Round: v[1], Heat: v[2]})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("roster: read schedule: %w", err)
	}
	return s, nil
}

// LoadSchedule returns an empty schedule when path is empty or missing.
func LoadSchedule(path string) (Schedule, error) {
	if path == "" {
		return nil, nil
	}
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Info().Str("path", path).Msg("no schedule file")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	defer f.Close()
	s, err := ParseSchedule(f)
	if err != nil {
		return nil, err
	}
	log.Info().Str("path", path).Int("entries", len(s)).Msg("loaded schedule")
	return s, nil
}

// Validate drops entries that have no matching heat in events.
func (s Schedule) Validate(events Events) Schedule {
	out := make(Schedule, 0, len(s))
	for _, k := range s {
		if _, ok := events[k]; ok {
			out = append(out, k)
			continue
		}
		log.Warn().Stringer("key", k).Msg("schedule entry not in event file, skipping")
	}
	return out
}

// Index returns the position of k, or -1.
func (s Schedule) Index(k Key) int {
	for i, e := range s {
		if e == k {
			return i
		}
	}
	return -1
}

// Nearest returns k's index, or else the first entry (in running order) at
// or after k. ok is false when k is past every entry.
func (s Schedule) Nearest(k Key) (int, bool) {
	if i := s.Index(k); i >= 0 {
		return i, true
	}
	for i, e := range s {
		if !e.Less(k) {
			return i, true
		}
	}
	return 0, false
}

// PositionText is "Event 7-1-2 (Position 4 of 43)", without the position
// when k is not scheduled.
func (s Schedule) PositionText(k Key) string {
	text := "Event " + k.String()
	if i := s.Index(k); i >= 0 {
		return fmt.Sprintf("%s (Position %d of %d)", text, i+1, len(s))
	}
	return text
}
