package roster

import (
	"regexp"
	"strconv"
	"strings"
)

// relay teams show up as "RICO  A": a short code, spaces, one letter.
var relayAffiliation = regexp.MustCompile(`^\w{3,4}\s+\w$`)

// IsRelay reports a relay heat: no athlete has a first name and every
// affiliation carries a team letter.
func IsRelay(athletes []Athlete) bool {
	if len(athletes) == 0 {
		return false
	}
	for _, a := range athletes {
		if strings.TrimSpace(a.First) != "" {
			return false
		}
		if !relayAffiliation.MatchString(strings.TrimSpace(a.Affiliation)) {
			return false
		}
	}
	return true
}

// RelaySuffix returns the team letter: "RICO  A" -> "A".
func RelaySuffix(affiliation string) string {
	f := strings.Fields(affiliation)
	if len(f) == 0 {
		return ""
	}
	return f[len(f)-1]
}

// AffiliationCode strips the relay letter so relay rows pick up the school
// colours: "RICO  A" -> "RICO".
func AffiliationCode(affiliation string, relay bool) string {
	a := strings.TrimSpace(affiliation)
	if !relay {
		return a
	}
	f := strings.Fields(a)
	if len(f) == 0 {
		return ""
	}
	return f[0]
}

// FormatAthlete renders the name column: "First L." for individuals and
// "Team A" for relays. The lane is drawn separately.
func FormatAthlete(a Athlete, relay bool) string {
	if relay {
		return strings.TrimSpace(strings.TrimSpace(a.Last) + " " + RelaySuffix(a.Affiliation))
	}
	first := strings.TrimSpace(a.First)
	last := strings.TrimSpace(a.Last)
	initial := ""
	if last != "" {
		r := []rune(last)
		initial = string(r[0]) + "."
	}
	return strings.TrimSpace(first + " " + initial)
}

// FillLanes returns one row per lane from 1 to the highest numbered lane,
// with placeholders for empty lanes. Athletes without a numeric lane are
// dropped; if none has one the result is empty.
func FillLanes(athletes []Athlete) []Athlete {
	byLane := map[int]Athlete{}
	maxLane := 0
	for _, a := range athletes {
		lane := strings.TrimSpace(a.Lane)
		if !isDigits(lane) {
			continue
		}
		n, err := strconv.Atoi(lane)
		if err != nil {
			continue
		}
		byLane[n] = a
		if n > maxLane {
			maxLane = n
		}
	}
	if maxLane == 0 {
		return nil
	}
	out := make([]Athlete, 0, maxLane)
	for lane := 1; lane <= maxLane; lane++ {
		if a, ok := byLane[lane]; ok {
			out = append(out, a)
		} else {
			out = append(out, Athlete{Lane: strconv.Itoa(lane)})
		}
	}
	return out
}

// Paginate splits items into pages of at most size entries. A non-positive
// size yields a single page.
func Paginate[T any](items []T, size int) [][]T {
	if len(items) == 0 {
		return nil
	}
	if size <= 0 {
		return [][]T{items}
	}
	pages := make([][]T, 0, (len(items)+size-1)/size)
	for i := 0; i < len(items); i += size {
		end := i + size
		if end > len(items) {
			end = len(items)
		}
		pages = append(pages, items[i:end])
	}
	return pages
}
