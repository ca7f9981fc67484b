// Package control holds the navigation state shared by the render loop and
// its inputs (keyboard, web, file watcher). Inputs only enqueue requests;
// the render loop is the single consumer and applies them between frames.
package control

import (
	"sync"

	"github.com/MikeChuckRoast/LedPanels/internal/pattern"
	"github.com/MikeChuckRoast/LedPanels/internal/roster"
)

type Cmd int

const (
	Next Cmd = iota + 1
	Prev
	Goto
	Reload
	RunTest
	Quit
)

var cmdNames = map[Cmd]string{
	Next:    "next",
	Prev:    "prev",
	Goto:    "goto",
	Reload:  "reload",
	RunTest: "test",
	Quit:    "quit",
}

func (c Cmd) String() string {
	if s, ok := cmdNames[c]; ok {
		return s
	}
	return "unknown"
}

// ParseCmd maps a command name ("next", "prev", ...) to its Cmd.
func ParseCmd(s string) (Cmd, bool) {
	for c, name := range cmdNames {
		if name == s {
			return c, true
		}
	}
	return 0, false
}

type Request struct {
	Cmd     Cmd
	Key     roster.Key   // Goto
	Pattern pattern.Kind // RunTest
	Source  string       // for logging: "keyboard", "web", "watch"
}

// State is the current heat plus the ordering used to move between heats.
type State struct {
	mu       sync.Mutex
	current  roster.Key
	keys     []roster.Key
	schedule roster.Schedule

	reqs chan Request
}

// DefaultQueue is the request buffer size.
const DefaultQueue = 16

func New(current roster.Key, queue int) *State {
	if queue <= 0 {
		queue = DefaultQueue
	}
	return &State{current: current, reqs: make(chan Request, queue)}
}

// Requests is the consumer side of the queue.
func (s *State) Requests() <-chan Request { return s.reqs }

// Submit enqueues r without blocking. It returns false when the queue is
// full and the request was dropped.
func (s *State) Submit(r Request) bool {
	select {
	case s.reqs <- r:
		return true
	default:
		return false
	}
}

func (s *State) Current() roster.Key {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.current
}

func (s *State) SetCurrent(k roster.Key) {
	s.mu.Lock()
	s.current = k
	s.mu.Unlock()
}

// SetData replaces the heat list and running order after a (re)load. The
// schedule should already be validated against the heats.
func (s *State) SetData(keys []roster.Key, schedule roster.Schedule) {
	s.mu.Lock()
	s.keys = append([]roster.Key(nil), keys...)
	s.schedule = append(roster.Schedule(nil), schedule...)
	s.mu.Unlock()
}

func (s *State) Schedule() roster.Schedule {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append(roster.Schedule(nil), s.schedule...)
}

// Step moves delta heats (+1 next, -1 previous), makes the result current
// and returns it. Movement follows the schedule when there is one, else the
// sorted heat list. It stops at either end; ok is false when nothing moved.
func (s *State) Step(delta int) (roster.Key, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	order := []roster.Key(s.schedule)
	if len(order) == 0 {
		order = s.keys
	}
	if len(order) == 0 || delta == 0 {
		return s.current, false
	}

	i := roster.Schedule(order).Index(s.current)
	if i < 0 {
		// Off the list: the first entry at or after current counts as the
		// next one.
		n, found := roster.Schedule(order).Nearest(s.current)
		switch {
		case !found && delta > 0:
			return s.current, false
		case !found:
			i = len(order) + delta
		case delta > 0:
			i = n + delta - 1
		default:
			i = n + delta
		}
	} else {
		i += delta
	}
	if i < 0 || i >= len(order) {
		return s.current, false
	}
	s.current = order[i]
	return s.current, true
}

// PositionText describes the current heat and its place in the schedule.
func (s *State) PositionText() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.schedule.PositionText(s.current)
}
