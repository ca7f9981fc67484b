package render

import (
	"image"
	"sort"
	"time"
)

// Scene draws full frames onto the canvas. A scene with more content than
// fits on the panel splits it into pages.
type Scene interface {
	Name() string
	Pages() int
	Draw(dst *image.RGBA, page int, now time.Time)
}

type Registry struct{ m map[string]Scene }

func NewRegistry() *Registry { return &Registry{m: map[string]Scene{}} }

func (r *Registry) Register(s Scene) {
	if s == nil {
		return
	}
	r.m[s.Name()] = s
}

func (r *Registry) Get(name string) (Scene, bool) { s, ok := r.m[name]; return s, ok }

// List returns the registered names in sorted order.
func (r *Registry) List() []string {
	out := make([]string, 0, len(r.m))
	for k := range r.m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
