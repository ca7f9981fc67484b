// Package roster reads the meet data files: the FinishLynx event file
// (lynx.evt), the affiliation colour table (colors.csv) and the optional
// running order (lynx.sch).
package roster

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Key identifies one heat.
type Key struct {
	Event int `json:"event"`
	Round int `json:"round"`
	Heat  int `json:"heat"`
}

func (k Key) String() string { return fmt.Sprintf("%d-%d-%d", k.Event, k.Round, k.Heat) }

// Less orders keys by event, then round, then heat.
func (k Key) Less(o Key) bool {
	if k.Event != o.Event {
		return k.Event < o.Event
	}
	if k.Round != o.Round {
		return k.Round < o.Round
	}
	return k.Heat < o.Heat
}

type Athlete struct {
	ID          string `json:"id"`
	Lane        string `json:"lane"`
	Last        string `json:"last"`
	First       string `json:"first"`
	Affiliation string `json:"affiliation"`
}

// Empty reports a placeholder row inserted by FillLanes.
func (a Athlete) Empty() bool {
	return a.ID == "" && a.Last == "" && a.First == "" && a.Affiliation == ""
}

type Event struct {
	Key
	Name     string    `json:"name"`
	Athletes []Athlete `json:"athletes"`
}

// Events maps heats to their start lists.
type Events map[Key]*Event

// Keys returns every heat in ascending order.
func (ev Events) Keys() []Key {
	keys := make([]Key, 0, len(ev))
	for k := range ev {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i].Less(keys[j]) })
	return keys
}

// ParseEvents reads lynx.evt. A line whose first column is a number starts a
// heat (event, round, heat, name); lines with an empty first column are
// athletes (id, lane, last, first, affiliation) of the heat above. Athlete
// lines before the first heat are ignored. Fields are plain comma separated.
func ParseEvents(r io.Reader) (Events, error) {
	events := Events{}
	var cur *Event
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), "\r")
		if line == "" {
			continue
		}
		parts := strings.Split(line, ",")
		for i := range parts {
			parts[i] = strings.TrimSpace(parts[i])
		}
		if isDigits(parts[0]) {
			ev, err := strconv.Atoi(parts[0])
			if err != nil {
				cur = nil
				continue
			}
			k := Key{Event: ev, Round: digitsField(parts, 1), Heat: digitsField(parts, 2)}
			cur = &Event{Key: k, Name: field(parts, 3), Athletes: []Athlete{}}
			events[k] = cur
			continue
		}
		if cur == nil {
			continue
		}
		cur.Athletes = append(cur.Athletes, Athlete{
			ID:          field(parts, 1),
			Lane:        field(parts, 2),
			Last:        field(parts, 3),
			First:       field(parts, 4),
			Affiliation: field(parts, 5),
		})
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("roster: read events: %w", err)
	}
	return events, nil
}

func LoadEvents(path string) (Events, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	defer f.Close()
	return ParseEvents(f)
}

func field(parts []string, i int) string {
	if i < len(parts) {
		return parts[i]
	}
	return ""
}

func digitsField(parts []string, i int) int {
	s := field(parts, i)
	if !isDigits(s) {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, c := range s {
		if c < '0' || c > '9' {
			return false
		}
	}
	return true
}
