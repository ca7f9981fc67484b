package roster

import (
	"bytes"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleEvt = `,stray,1,Before,Header,XX
1,1,1,Girls 100 Meter Dash
,101,3,Smith,Jane,RICO
,102,5,Doe,Ann,MILA

12,1,2,Boys 4x100 Relay,extra,cols
,201,2,Riverview,,RICO  A
,202,4,Milan,,MILA  B
2,x,1,Bad Round
`

func TestParseEvents(t *testing.T) {
	ev, err := ParseEvents(strings.NewReader(sampleEvt))
	require.NoError(t, err)
	require.Len(t, ev, 3)

	want := []Key{{1, 1, 1}, {2, 0, 1}, {12, 1, 2}}
	if diff := cmp.Diff(want, ev.Keys()); diff != "" {
		t.Fatalf("keys (-want +got):\n%s", diff)
	}

	e := ev[Key{1, 1, 1}]
	assert.Equal(t, "Girls 100 Meter Dash", e.Name)
	require.Len(t, e.Athletes, 2)
	assert.Equal(t, Athlete{ID: "101", Lane: "3", Last: "Smith", First: "Jane", Affiliation: "RICO"}, e.Athletes[0])

	relay := ev[Key{12, 1, 2}]
	assert.Equal(t, "Boys 4x100 Relay", relay.Name)
	assert.True(t, IsRelay(relay.Athletes))
	assert.False(t, IsRelay(e.Athletes))
	assert.Empty(t, ev[Key{2, 0, 1}].Athletes)
}

func TestLoadEventsMissing(t *testing.T) {
	_, err := LoadEvents(filepath.Join(t.TempDir(), "nope.evt"))
	assert.Error(t, err)
}

func TestFormatAthlete(t *testing.T) {
	assert.Equal(t, "Jane S.", FormatAthlete(Athlete{First: "Jane", Last: "Smith"}, false))
	assert.Equal(t, "Jane", FormatAthlete(Athlete{First: "Jane"}, false))
	assert.Equal(t, "", FormatAthlete(Athlete{Lane: "4"}, false))
	assert.Equal(t, "Riverview A", FormatAthlete(Athlete{Last: "Riverview", Affiliation: "RICO  A"}, true))
	assert.Equal(t, "A", RelaySuffix(" RICO  A "))
	assert.Equal(t, "", RelaySuffix("  "))
	assert.Equal(t, "RICO", AffiliationCode("RICO  A", true))
	assert.Equal(t, "RICO  A", AffiliationCode("RICO  A ", false))
}

func TestIsRelayEdgeCases(t *testing.T) {
	assert.False(t, IsRelay(nil))
	assert.False(t, IsRelay([]Athlete{{Last: "Milan", Affiliation: "MILAN"}}))
	assert.False(t, IsRelay([]Athlete{{Last: "Milan", Affiliation: "MILA B", First: "x"}}))
}

func TestFillLanes(t *testing.T) {
	got := FillLanes([]Athlete{
		{Lane: "3", Last: "C"},
		{Lane: "1", Last: "A"},
		{Lane: "", Last: "NoLane"},
	})
	require.Len(t, got, 3)
	assert.Equal(t, "A", got[0].Last)
	assert.True(t, got[1].Empty())
	assert.Equal(t, "2", got[1].Lane)
	assert.Equal(t, "C", got[2].Last)

	assert.Nil(t, FillLanes([]Athlete{{Lane: "x"}}))
	assert.Nil(t, FillLanes(nil))
}

func TestPaginate(t *testing.T) {
	pages := Paginate([]int{1, 2, 3, 4, 5}, 2)
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, pages)
	assert.Nil(t, Paginate([]int{}, 3))
	assert.Equal(t, [][]int{{1, 2}}, Paginate([]int{1, 2}, 0))
}

func TestParseColors(t *testing.T) {
	csv := "affiliation,name,bgcolor,text\n" +
		"RICO,Riverview,#003366,#FFFFFF\n" +
		"MILA,,FF0000,000000\n" +
		"BAD,Bad,#12345,#FFFFFF\n" +
		",Nobody,#000000,#FFFFFF\n"
	c, err := ParseColors(strings.NewReader(csv))
	require.NoError(t, err)
	require.Len(t, c, 2)
	assert.Equal(t, Team{
		Affiliation: "RICO",
		Name:        "Riverview",
		Background:  color.RGBA{0x00, 0x33, 0x66, 0xFF},
		Text:        color.RGBA{0xFF, 0xFF, 0xFF, 0xFF},
	}, c["RICO"])
	assert.Equal(t, "MILA", c["MILA"].Name)
}

func TestWriteColorsReadsBack(t *testing.T) {
	in := Colors{
		"ZED":  {Affiliation: "ZED", Name: "Zed Tech", Background: color.RGBA{1, 2, 3, 255}, Text: color.RGBA{255, 255, 255, 255}},
		"ACME": {Affiliation: "ACME", Name: "Acme, Inc", Background: color.RGBA{0, 0, 0, 255}, Text: color.RGBA{255, 0, 0, 255}},
	}
	teams := in.Teams()
	require.Len(t, teams, 2)
	assert.Equal(t, "ACME", teams[0].Affiliation)

	var buf bytes.Buffer
	require.NoError(t, WriteColors(&buf, teams))
	assert.True(t, strings.HasPrefix(buf.String(), "affiliation,name,bgcolor,text\n"))
	out, err := ParseColors(&buf)
	require.NoError(t, err)
	if diff := cmp.Diff(in, out); diff != "" {
		t.Errorf("colours changed on round trip (-want +got):\n%s", diff)
	}
}

func TestLoadColorsMissingFile(t *testing.T) {
	c, err := LoadColors(filepath.Join(t.TempDir(), "colors.csv"))
	require.NoError(t, err)
	assert.Empty(t, c)
}

func TestParseHexColor(t *testing.T) {
	c, err := ParseHexColor("#A0b1C2")
	require.NoError(t, err)
	assert.Equal(t, color.RGBA{0xA0, 0xB1, 0xC2, 0xFF}, c)
	assert.Equal(t, "#A0B1C2", HexColor(c))

	for _, bad := range []string{"", "#FFF", "#GGGGGG", "1234567"} {
		_, err := ParseHexColor(bad)
		assert.Error(t, err, bad)
	}
}

func TestSchedule(t *testing.T) {
	src := "; running order\n" +
		"1,1,1\n" +
		"\n" +
		"5,1,1\n" +
		"5,1,2\n" +
		"3,0,1\n" +
		"a,b,c\n" +
		"7,1\n" +
		"9,1,1\n"
	s, err := ParseSchedule(strings.NewReader(src))
	require.NoError(t, err)
	assert.Equal(t, Schedule{{1, 1, 1}, {5, 1, 1}, {5, 1, 2}, {9, 1, 1}}, s)

	assert.Equal(t, 2, s.Index(Key{5, 1, 2}))
	assert.Equal(t, -1, s.Index(Key{4, 1, 1}))

	i, ok := s.Nearest(Key{4, 1, 1})
	assert.True(t, ok)
	assert.Equal(t, 1, i)
	i, ok = s.Nearest(Key{5, 1, 2})
	assert.True(t, ok)
	assert.Equal(t, 2, i)
	_, ok = s.Nearest(Key{10, 1, 1})
	assert.False(t, ok)

	assert.Equal(t, "Event 5-1-2 (Position 3 of 4)", s.PositionText(Key{5, 1, 2}))
	assert.Equal(t, "Event 4-1-1", s.PositionText(Key{4, 1, 1}))
	assert.Equal(t, "Event 4-1-1", Schedule(nil).PositionText(Key{4, 1, 1}))

	events := Events{{1, 1, 1}: {}, {9, 1, 1}: {}}
	assert.Equal(t, Schedule{{1, 1, 1}, {9, 1, 1}}, s.Validate(events))
}

func TestLoadScheduleMissingOrEmptyPath(t *testing.T) {
	s, err := LoadSchedule("")
	require.NoError(t, err)
	assert.Empty(t, s)

	s, err = LoadSchedule(filepath.Join(t.TempDir(), "lynx.sch"))
	require.NoError(t, err)
	assert.Empty(t, s)

	path := filepath.Join(t.TempDir(), "lynx.sch")
	require.NoError(t, os.WriteFile(path, []byte("2,1,1\n"), 0644))
	s, err = LoadSchedule(path)
	require.NoError(t, err)
	assert.Equal(t, Schedule{{2, 1, 1}}, s)
}

func TestMissingTeams(t *testing.T) {
	events, err := ParseEvents(strings.NewReader(`1,1,1,Girls 100m
,101,1,Smith,Ann,RICO
,102,2,Jones,Bea,MILA
,103,3,Brown,Cat,
3,1,1,4x100 Relay
,,1,Northside,,NSHS  A
,,2,Riverview,,RICO  B
`))
	require.NoError(t, err)
	colors := Colors{"RICO": {Affiliation: "RICO", Name: "Riverview"}}

	got := MissingTeams(events, colors)
	if diff := cmp.Diff([]string{"MILA", "NSHS"}, got); diff != "" {
		t.Errorf("missing teams (-want +got):\n%s", diff)
	}
	assert.Empty(t, MissingTeams(Events{}, colors))
}
