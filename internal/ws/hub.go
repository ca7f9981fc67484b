// Package ws serves the operator web interface: JSON endpoints for the meet
// files and navigation, plus websockets for the frame preview, diagnostics
// and live control.
package ws

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"

	"github.com/MikeChuckRoast/LedPanels/internal/config"
	"github.com/MikeChuckRoast/LedPanels/internal/control"
	diag "github.com/MikeChuckRoast/LedPanels/internal/diagnostics"
	"github.com/MikeChuckRoast/LedPanels/internal/pattern"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

const writeWait = 200 * time.Millisecond

type Server struct {
	Dir     string // config directory holding settings.toml and the data files
	State   *control.State
	Diag    *diag.Log
	Backend string

	mu          sync.RWMutex
	wmu         sync.Mutex // serialises writes to frame clients
	frameID     uint64
	width       int
	height      int
	startTime   time.Time
	clients     map[*websocket.Conn]bool
	diagClients map[*websocket.Conn]bool
	upgrader    websocket.Upgrader
}

func NewServer(dir string, state *control.State, dl *diag.Log) *Server {
	return &Server{
		Dir:         dir,
		State:       state,
		Diag:        dl,
		startTime:   time.Now(),
		clients:     map[*websocket.Conn]bool{},
		diagClients: map[*websocket.Conn]bool{},
		upgrader:    websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
}

// Routes registers every endpoint on mux.
func (s *Server) Routes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/current_event", s.handleGetCurrent)
	mux.HandleFunc("POST /api/current_event", s.handleSetCurrent)
	mux.HandleFunc("GET /api/teams", s.handleGetTeams)
	mux.HandleFunc("POST /api/teams", s.handleSetTeams)
	mux.HandleFunc("GET /api/display", s.handleGetDisplay)
	mux.HandleFunc("POST /api/display", s.handleSetDisplay)
	mux.HandleFunc("GET /api/display_settings", s.handleGetDisplay)
	mux.HandleFunc("POST /api/display_settings", s.handleSetDisplay)
	mux.HandleFunc("POST /api/upload/events", s.handleUploadEvents)
	mux.HandleFunc("POST /api/upload/schedule", s.handleUploadSchedule)
	mux.HandleFunc("POST /api/upload/combined", s.handleUploadCombined)
	mux.HandleFunc("POST /api/control", s.handleControl)
	mux.HandleFunc("/ws", s.HandleFramesWS)
	mux.HandleFunc("/diag", s.HandleDiagWS)
	mux.HandleFunc("/control", s.HandleControlWS)
	mux.HandleFunc("/health", s.HandleHealth)
}

func (s *Server) HandleFramesWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.clients[conn] = true
	s.mu.Unlock()

	go func() {
		defer func() {
			s.mu.Lock()
			delete(s.clients, conn)
			s.mu.Unlock()
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}

// HandleDiagWS sends the retained diagnostics, then streams new ones until
// the client goes away.
func (s *Server) HandleDiagWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	s.mu.Lock()
	s.diagClients[conn] = true
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.diagClients, conn)
		s.mu.Unlock()
		conn.Close()
	}()
	if s.Diag == nil {
		return
	}

	ch, cancel := s.Diag.Subscribe()
	defer cancel()
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
	for _, d := range s.Diag.Recent() {
		if err := writeJSON(conn, d); err != nil {
			return
		}
	}
	for d := range ch {
		if err := writeJSON(conn, d); err != nil {
			return
		}
	}
}

type controlMsg struct {
	Cmd     string `json:"cmd"`
	Event   int    `json:"event,omitempty"`
	Round   int    `json:"round,omitempty"`
	Heat    int    `json:"heat,omitempty"`
	Pattern string `json:"pattern,omitempty"`
}

type controlReply struct {
	OK      bool        `json:"ok"`
	Cmd     string      `json:"cmd,omitempty"`
	Error   string      `json:"error,omitempty"`
	Current *roster.Key `json:"current,omitempty"`
}

// HandleControlWS accepts {"cmd": "next"} style messages and answers each
// with a controlReply.
func (s *Server) HandleControlWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var msg controlMsg
		if err := json.Unmarshal(data, &msg); err != nil {
			_ = writeJSON(conn, controlReply{Error: "invalid JSON"})
			continue
		}
		if err := writeJSON(conn, s.apply(msg)); err != nil {
			return
		}
	}
}

func (s *Server) handleControl(w http.ResponseWriter, r *http.Request) {
	var msg controlMsg
	if err := json.NewDecoder(r.Body).Decode(&msg); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	reply := s.apply(msg)
	status := http.StatusOK
	if !reply.OK {
		status = http.StatusBadRequest
	}
	writeResponse(w, status, reply)
}

var errQueueFull = errors.New("request queue full, try again")

func (s *Server) apply(msg controlMsg) controlReply {
	req, err := parseControl(msg)
	if err == nil && !s.submit(req) {
		err = errQueueFull
	}
	if err != nil {
		return controlReply{Cmd: msg.Cmd, Error: err.Error()}
	}
	cur := s.State.Current()
	return controlReply{OK: true, Cmd: msg.Cmd, Current: &cur}
}

func parseControl(msg controlMsg) (control.Request, error) {
	cmd, ok := control.ParseCmd(msg.Cmd)
	if !ok {
		return control.Request{}, fmt.Errorf("unknown command %q", msg.Cmd)
	}
	req := control.Request{Cmd: cmd, Source: "web"}
	switch cmd {
	case control.Quit:
		return control.Request{}, errors.New("quit is only accepted from the keyboard")
	case control.Goto:
		ce := config.CurrentEvent{Event: msg.Event, Round: msg.Round, Heat: msg.Heat}
		if err := ce.Validate(); err != nil {
			return control.Request{}, err
		}
		req.Key = roster.Key{Event: msg.Event, Round: msg.Round, Heat: msg.Heat}
	case control.RunTest:
		kind := pattern.Kind(msg.Pattern)
		if _, err := pattern.New(kind, 1, 1); err != nil {
			return control.Request{}, err
		}
		req.Pattern = kind
	}
	return req, nil
}

func (s *Server) submit(r control.Request) bool {
	if s.State == nil {
		return false
	}
	if !s.State.Submit(r) {
		log.Warn().Stringer("cmd", r.Cmd).Msg("control queue full, request dropped")
		return false
	}
	return true
}

func (s *Server) HandleHealth(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	resp := map[string]any{
		"frame_id": s.frameID,
		"uptime_s": time.Since(s.startTime).Seconds(),
		"backend":  s.Backend,
		"width":    s.width,
		"height":   s.height,
	}
	s.mu.RUnlock()
	if s.State != nil {
		resp["current"] = s.State.Current()
		resp["position"] = s.State.PositionText()
	}
	writeResponse(w, http.StatusOK, resp)
}

// BroadcastFrame sends one row-major RGB frame to every preview client.
func (s *Server) BroadcastFrame(rgb []byte, width, height int) {
	s.mu.Lock()
	s.frameID++
	s.width, s.height = width, height
	id := s.frameID
	conns := make([]*websocket.Conn, 0, len(s.clients))
	for c := range s.clients {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	if len(conns) == 0 {
		return
	}

	type frame struct {
		T       int64  `json:"t"`
		FrameID uint64 `json:"frame_id"`
		W       int    `json:"w"`
		H       int    `json:"h"`
		RGB     []byte `json:"rgb"`
	}
	b, _ := json.Marshal(frame{T: time.Now().UnixNano(), FrameID: id, W: width, H: height, RGB: rgb})
	s.wmu.Lock()
	defer s.wmu.Unlock()
	for _, c := range conns {
		c.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.WriteMessage(websocket.TextMessage, b); err != nil {
			log.Debug().Err(err).Msg("write frame")
		}
	}
}

// Close drops every websocket client.
func (s *Server) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for c := range s.clients {
		c.Close()
	}
	for c := range s.diagClients {
		c.Close()
	}
}

func writeJSON(c *websocket.Conn, v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	c.SetWriteDeadline(time.Now().Add(writeWait))
	return c.WriteMessage(websocket.TextMessage, b)
}

// WithCORS allows the control page to be served from another origin.
func WithCORS(h http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == "OPTIONS" {
			w.WriteHeader(200)
			return
		}
		h.ServeHTTP(w, r)
	})
}
