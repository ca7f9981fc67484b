package ws

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/control"
	diag "github.com/MikeChuckRoast/LedPanels/internal/diagnostics"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

const lynx = `1,1,1,Girls 100m
,101,1,Smith,Ann,RICO
,102,2,Jones,Bea,MILA
1,1,2,Girls 100m
,103,1,Brown,Cat,RICO
2,1,1,Boys 400m
,201,3,Green,Dan,MILA
`

const colors = "affiliation,name,bgcolor,text\nRICO,Riverview,#003366,#FFFFFF\n"

type fixture struct {
	dir   string
	state *control.State
	diag  *diag.Log
	srv   *Server
	ts    *httptest.Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, config.EnsureDir(dir))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "lynx.evt"), []byte(lynx), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "colors.csv"), []byte(colors), 0644))

	f := &fixture{dir: dir, state: control.New(roster.Key{Event: 1, Round: 1, Heat: 1}, 0), diag: diag.NewLog(10)}
	f.srv = NewServer(dir, f.state, f.diag)
	f.srv.Backend = "sim"
	mux := http.NewServeMux()
	f.srv.Routes(mux)
	f.ts = httptest.NewServer(WithCORS(mux))
	t.Cleanup(func() {
		f.srv.Close()
		f.ts.Close()
	})
	return f
}

func (f *fixture) do(t *testing.T, method, path, body string) (int, map[string]any) {
	t.Helper()
	req, err := http.NewRequest(method, f.ts.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	var out map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&out))
	return resp.StatusCode, out
}

func (f *fixture) request(t *testing.T) control.Request {
	t.Helper()
	select {
	case r := <-f.state.Requests():
		return r
	case <-time.After(time.Second):
		t.Fatal("no request queued")
		return control.Request{}
	}
}

func (f *fixture) read(t *testing.T, name string) string {
	t.Helper()
	b, err := os.ReadFile(filepath.Join(f.dir, name))
	require.NoError(t, err)
	return string(b)
}

func TestEventsScheduledFirst(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.WriteFile(filepath.Join(f.dir, "lynx.sch"), []byte("2,1,1\n1,1,1\n9,9,9\n"), 0644))

	code, body := f.do(t, "GET", "/api/events", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, true, body["has_schedule"])

	list := body["events"].([]any)
	require.Len(t, list, 3)
	first := list[0].(map[string]any)
	assert.Equal(t, float64(2), first["event"])
	assert.Equal(t, "Boys 400m", first["name"])
	assert.Equal(t, float64(1), first["schedule_position"])
	assert.Equal(t, float64(2), first["total_scheduled"])
	assert.Equal(t, float64(1), list[1].(map[string]any)["event"])

	last := list[2].(map[string]any)
	assert.Equal(t, float64(2), last["heat"])
	assert.Nil(t, last["schedule_position"])
	assert.Equal(t, float64(1), last["athlete_count"])
}

func TestEventsWithoutSchedule(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "GET", "/api/events", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, false, body["has_schedule"])
	list := body["events"].([]any)
	require.Len(t, list, 3)
	assert.Equal(t, float64(1), list[0].(map[string]any)["event"])
	assert.Equal(t, float64(2), list[2].(map[string]any)["event"])
}

func TestEventsMissingFile(t *testing.T) {
	f := newFixture(t)
	require.NoError(t, os.Remove(filepath.Join(f.dir, "lynx.evt")))
	code, body := f.do(t, "GET", "/api/events", "")
	assert.Equal(t, http.StatusNotFound, code)
	assert.Contains(t, body["error"], "lynx.evt")
}

func TestSetCurrentEvent(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "POST", "/api/current_event", `{"event":2,"round":1,"heat":1}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, true, body["success"])

	r := f.request(t)
	assert.Equal(t, control.Goto, r.Cmd)
	assert.Equal(t, roster.Key{Event: 2, Round: 1, Heat: 1}, r.Key)
	assert.Equal(t, "web", r.Source)

	ce, err := config.LoadCurrentEvent(filepath.Join(f.dir, config.CurrentEventFile))
	require.NoError(t, err)
	assert.Equal(t, config.CurrentEvent{Event: 2, Round: 1, Heat: 1}, ce)

	code, body = f.do(t, "GET", "/api/current_event", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(2), body["event"])
}

func TestSetCurrentEventRejects(t *testing.T) {
	f := newFixture(t)
	for _, body := range []string{
		`{"event":2,"round":1}`,
		`{"event":0,"round":1,"heat":1}`,
		`{"event":"two","round":1,"heat":1}`,
		`not json`,
	} {
		code, _ := f.do(t, "POST", "/api/current_event", body)
		assert.Equal(t, http.StatusBadRequest, code, body)
	}
	ce, err := config.LoadCurrentEvent(filepath.Join(f.dir, config.CurrentEventFile))
	require.NoError(t, err)
	assert.Equal(t, config.CurrentEvent{Event: 1, Round: 1, Heat: 1}, ce)
}

func TestTeamsRoundTrip(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "POST", "/api/teams",
		`{"teams":[{"affiliation":"ZED","name":"","bgcolor":"#010203","text":"ffffff"},{"affiliation":"ACME","name":"Acme","bgcolor":"#000000","text":"#FF0000"}]}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(2), body["count"])
	assert.Equal(t, control.Reload, f.request(t).Cmd)
	assert.Equal(t, colors, f.read(t, "colors.csv.bak"))

	code, body = f.do(t, "GET", "/api/teams", "")
	require.Equal(t, http.StatusOK, code)
	teams := body["teams"].([]any)
	require.Len(t, teams, 2)
	assert.Equal(t, map[string]any{"affiliation": "ACME", "name": "Acme", "bgcolor": "#000000", "text": "#FF0000"}, teams[0])
	assert.Equal(t, "ZED", teams[1].(map[string]any)["name"])
}

func TestTeamsRejectsBadColour(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "POST", "/api/teams", `{"teams":[{"affiliation":"ZED","bgcolor":"#01","text":"#FFFFFF"}]}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "bgcolor")
	assert.Equal(t, colors, f.read(t, "colors.csv"))
}

func TestDisplaySettings(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "GET", "/api/display", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(24), body["display"].(map[string]any)["line_height"])

	code, body = f.do(t, "POST", "/api/display", `{"display":{"interval":3.5,"line_height":16,"font_name":"Roboto.ttf"}}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, control.Reload, f.request(t).Cmd)

	cfg, err := config.Load(filepath.Join(f.dir, config.SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, 3.5, cfg.Display.Interval)
	assert.Equal(t, 16, cfg.Display.LineHeight)
	assert.Equal(t, 16, cfg.Display.HeaderLineHeight)
	assert.Equal(t, "Roboto.ttf", cfg.Fonts.FontName)

	code, body = f.do(t, "POST", "/api/display_settings", `{"display":{"font_name":"helvB12.bdf","font_shift":7}}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, control.Reload, f.request(t).Cmd)
	cfg, err = config.Load(filepath.Join(f.dir, config.SettingsFile))
	require.NoError(t, err)
	assert.Equal(t, "helvB12.bdf", cfg.Fonts.FontName)
	assert.Equal(t, 7, cfg.Display.FontShift)
	assert.Equal(t, 3.5, cfg.Display.Interval, "fields left out are kept")

	code, body = f.do(t, "GET", "/api/display_settings", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, "helvB12.bdf", body["display"].(map[string]any)["font_name"])

	for _, bad := range []string{
		`{"display":{"font_name":"6x10.pcf"}}`,
		`{"display":{"line_height":0}}`,
		`{"display":{"brightness":2}}`,
		`{}`,
	} {
		code, _ := f.do(t, "POST", "/api/display", bad)
		assert.Equal(t, http.StatusBadRequest, code, bad)
	}
}

func TestUploadEvents(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, "POST", "/api/upload/events", `{"content":"   "}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = f.do(t, "POST", "/api/upload/events", `{"content":",1,1,Orphan,Row,X\n"}`)
	assert.Equal(t, http.StatusBadRequest, code)

	code, body := f.do(t, "POST", "/api/upload/events", `{"content":"5,1,1,Mile\n,1,1,Fast,Fay,RICO\n"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1), body["event_count"])
	assert.Equal(t, lynx, f.read(t, "lynx.evt.bak"))
	assert.Equal(t, "5,1,1,Mile\n,1,1,Fast,Fay,RICO\n", f.read(t, "lynx.evt"))
	assert.Equal(t, control.Reload, f.request(t).Cmd)
}

func TestUploadSchedule(t *testing.T) {
	f := newFixture(t)
	code, body := f.do(t, "POST", "/api/upload/schedule", `{"content":"9,9,9\n"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Contains(t, body["error"], "match")
	_, err := os.Stat(filepath.Join(f.dir, "lynx.sch"))
	assert.True(t, os.IsNotExist(err))

	code, body = f.do(t, "POST", "/api/upload/schedule", `{"content":"; order\n2,1,1\n1,1,1\n9,9,9\n"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(3), body["total_entries"])
	assert.Equal(t, float64(2), body["valid_entries"])
	assert.Equal(t, float64(1), body["invalid_entries"])
	assert.Contains(t, f.read(t, "lynx.sch"), "2,1,1")
}

func TestUploadCombinedIsAllOrNothing(t *testing.T) {
	f := newFixture(t)
	code, _ := f.do(t, "POST", "/api/upload/combined", `{"events":"7,1,1,Relay\n","schedule":"8,1,1\n"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	assert.Equal(t, lynx, f.read(t, "lynx.evt"))

	code, body := f.do(t, "POST", "/api/upload/combined", `{"events":"7,1,1,Relay\n","schedule":"7,1,1\n"}`)
	require.Equal(t, http.StatusOK, code, body)
	assert.Equal(t, float64(1), body["event_count"])
	assert.Equal(t, float64(1), body["valid_entries"])
	assert.Equal(t, "7,1,1,Relay\n", f.read(t, "lynx.evt"))
	assert.Equal(t, "7,1,1\n", f.read(t, "lynx.sch"))
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	f.srv.BroadcastFrame([]byte{1, 2, 3}, 1, 1)
	code, body := f.do(t, "GET", "/health", "")
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, float64(1), body["frame_id"])
	assert.Equal(t, "sim", body["backend"])
	assert.Equal(t, "Event 1-1-1", body["position"])
}

func TestCORSPreflight(t *testing.T) {
	f := newFixture(t)
	req, err := http.NewRequest("OPTIONS", f.ts.URL+"/api/events", nil)
	require.NoError(t, err)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))
}

func (f *fixture) dial(t *testing.T, path string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(f.ts.URL, "http") + path
	c, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { c.Close() })
	c.SetReadDeadline(time.Now().Add(2 * time.Second))
	return c
}

func TestControlWS(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t, "/control")

	var reply controlReply
	require.NoError(t, c.WriteJSON(map[string]any{"cmd": "next"}))
	require.NoError(t, c.ReadJSON(&reply))
	assert.True(t, reply.OK)
	assert.Equal(t, control.Next, f.request(t).Cmd)

	require.NoError(t, c.WriteJSON(map[string]any{"cmd": "test", "pattern": "row_sweep"}))
	require.NoError(t, c.ReadJSON(&reply))
	assert.True(t, reply.OK)
	r := f.request(t)
	assert.Equal(t, control.RunTest, r.Cmd)
	assert.EqualValues(t, "row_sweep", r.Pattern)

	for _, bad := range []map[string]any{
		{"cmd": "quit"},
		{"cmd": "dance"},
		{"cmd": "goto", "event": 1},
		{"cmd": "test", "pattern": "plasma"},
	} {
		reply = controlReply{}
		require.NoError(t, c.WriteJSON(bad))
		require.NoError(t, c.ReadJSON(&reply))
		assert.False(t, reply.OK, bad)
		assert.NotEmpty(t, reply.Error)
	}
}

func TestFramesWS(t *testing.T) {
	f := newFixture(t)
	c := f.dial(t, "/ws")
	require.Eventually(t, func() bool {
		f.srv.mu.RLock()
		defer f.srv.mu.RUnlock()
		return len(f.srv.clients) == 1
	}, time.Second, 10*time.Millisecond)

	f.srv.BroadcastFrame([]byte{10, 20, 30, 40, 50, 60}, 2, 1)
	var got struct {
		FrameID uint64 `json:"frame_id"`
		W       int    `json:"w"`
		H       int    `json:"h"`
		RGB     []byte `json:"rgb"`
	}
	require.NoError(t, c.ReadJSON(&got))
	assert.Equal(t, uint64(1), got.FrameID)
	assert.Equal(t, 2, got.W)
	assert.Equal(t, []byte{10, 20, 30, 40, 50, 60}, got.RGB)
}

func TestDiagWS(t *testing.T) {
	f := newFixture(t)
	f.diag.Push(diag.Diagnostic{Severity: diag.Info, Code: "TEST.ONE", Summary: "first"})
	c := f.dial(t, "/diag")

	var d diag.Diagnostic
	require.NoError(t, c.ReadJSON(&d))
	assert.Equal(t, "TEST.ONE", d.Code)

	require.Eventually(t, func() bool {
		f.srv.mu.RLock()
		defer f.srv.mu.RUnlock()
		return len(f.srv.diagClients) == 1
	}, time.Second, 10*time.Millisecond)
	f.diag.Push(diag.Diagnostic{Severity: diag.Warn, Code: "TEST.TWO", Summary: "second"})
	require.NoError(t, c.ReadJSON(&d))
	assert.Equal(t, "TEST.TWO", d.Code)
}
