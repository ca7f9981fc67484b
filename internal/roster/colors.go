package roster

import (
	"encoding/csv"
	"errors"
	"fmt"
	"image/color"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// Team is one row of colors.csv.
type Team struct {
	Affiliation string     `json:"affiliation"`
	Name        string     `json:"name"`
	Background  color.RGBA `json:"-"`
	Text        color.RGBA `json:"-"`
}

// Colors maps affiliation codes to their team.
type Colors map[string]Team

// ParseHexColor accepts "#RRGGBB" or "RRGGBB".
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	if len(h) != 6 {
		return color.RGBA{}, fmt.Errorf("roster: invalid hex colour %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, fmt.Errorf("roster: invalid hex colour %q", s)
	}
	return color.RGBA{R: uint8(v >> 16), G: uint8(v >> 8), B: uint8(v), A: 0xFF}, nil
}

// HexColor formats c as "#RRGGBB".
func HexColor(c color.RGBA) string { return fmt.Sprintf("#%02X%02X%02X", c.R, c.G, c.B) }

// ParseColors reads the affiliation,name,bgcolor,text table. Rows missing an
// affiliation or a colour, or with unparseable colours, are skipped. An empty
// name falls back to the affiliation.
func ParseColors(r io.Reader) (Colors, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true
	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return Colors{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: read colours header: %w", err)
	}
	col := map[string]int{}
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	get := func(rec []string, name string) string {
		i, ok := col[name]
		if !ok || i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	colors := Colors{}
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return colors, fmt.Errorf("roster: read colours: %w", err)
		}
		affil, bg, fg := get(rec, "affiliation"), get(rec, "bgcolor"), get(rec, "text")
		if affil == "" || bg == "" || fg == "" {
			continue
		}
		bgc, err1 := ParseHexColor(bg)
		fgc, err2 := ParseHexColor(fg)
		if err1 != nil || err2 != nil {
			log.Warn().Str("affiliation", affil).Str("bg", bg).Str("text", fg).Msg("invalid colour, skipping")
			continue
		}
		name := get(rec, "name")
		if name == "" {
			name = affil
		}
		colors[affil] = Team{Affiliation: affil, Name: name, Background: bgc, Text: fgc}
	}
	return colors, nil
}

// LoadColors reads colors.csv. A missing file is not an error: the display
// just uses default colours.
func LoadColors(path string) (Colors, error) {
	f, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		log.Warn().Str("path", path).Msg("colours file not found")
		return Colors{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("roster: %w", err)
	}
	defer f.Close()
	c, err := ParseColors(f)
	if err != nil {
		return nil, err
	}
	log.Info().Int("teams", len(c)).Msg("loaded affiliation colours")
	return c, nil
}

// Teams returns the table sorted by affiliation.
func (c Colors) Teams() []Team {
	out := make([]Team, 0, len(c))
	for _, t := range c {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Affiliation < out[j].Affiliation })
	return out
}

// WriteColors writes teams in the colors.csv layout that ParseColors reads.
func WriteColors(w io.Writer, teams []Team) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"affiliation", "name", "bgcolor", "text"}); err != nil {
		return err
	}
	for _, t := range teams {
		if err := cw.Write([]string{t.Affiliation, t.Name, HexColor(t.Background), HexColor(t.Text)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// MissingTeams lists, sorted, the affiliations on athlete rows that have no
// colours in c. Relay rows count under their school code.
func MissingTeams(events Events, c Colors) []string {
	seen := map[string]bool{}
	for _, ev := range events {
		relay := IsRelay(ev.Athletes)
		for _, a := range ev.Athletes {
			code := AffiliationCode(strings.TrimSpace(a.Affiliation), relay)
			if code == "" || seen[code] {
				continue
			}
			if _, ok := c[code]; ok {
				continue
			}
			seen[code] = true
		}
	}
	out := make([]string, 0, len(seen))
	for code := range seen {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}
