// Package watch reports changes to the meet data files so the display can
// reload them without a restart.
package watch

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog/log"
)

// DefaultDebounce collapses the burst of events an editor or uploader
// produces when rewriting a file.
const DefaultDebounce = 500 * time.Millisecond

type Watcher struct {
	Dir      string
	Names    []string // base names inside Dir to report
	Debounce time.Duration
	Poll     time.Duration // polling interval when fsnotify is unavailable
	// OnChange receives the sorted base names that changed.
	OnChange func(names []string)

	newNotify func() (*fsnotify.Watcher, error)
}

func New(dir string, names []string, poll time.Duration, onChange func([]string)) *Watcher {
	return &Watcher{
		Dir:       dir,
		Names:     names,
		Debounce:  DefaultDebounce,
		Poll:      poll,
		OnChange:  onChange,
		newNotify: fsnotify.NewWatcher,
	}
}

func (w *Watcher) watched(name string) bool {
	base := filepath.Base(name)
	for _, n := range w.Names {
		if n == base {
			return true
		}
	}
	return false
}

// Run blocks until ctx is done. It uses filesystem notifications and falls
// back to polling modification times when they cannot be set up.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := w.newNotify()
	if err == nil {
		err = fw.Add(w.Dir)
		if err != nil {
			fw.Close()
		}
	}
	if err != nil {
		log.Warn().Err(err).Str("dir", w.Dir).Dur("poll", w.Poll).Msg("file notifications unavailable, polling")
		return w.poll(ctx)
	}
	defer fw.Close()
	log.Info().Str("dir", w.Dir).Strs("files", w.Names).Msg("watching data files")

	pending := map[string]bool{}
	timer := time.NewTimer(time.Hour)
	timer.Stop()
	defer timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			if !w.watched(ev.Name) || !ev.Has(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) {
				continue
			}
			pending[filepath.Base(ev.Name)] = true
			timer.Reset(w.Debounce)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			log.Warn().Err(err).Msg("file watcher error")
		case <-timer.C:
			w.fire(pending)
			pending = map[string]bool{}
		}
	}
}

type stamp struct {
	mod  time.Time
	size int64
	ok   bool
}

func (w *Watcher) snapshot() map[string]stamp {
	out := make(map[string]stamp, len(w.Names))
	for _, n := range w.Names {
		fi, err := os.Stat(filepath.Join(w.Dir, n))
		if err != nil {
			out[n] = stamp{}
			continue
		}
		out[n] = stamp{mod: fi.ModTime(), size: fi.Size(), ok: true}
	}
	return out
}

func (w *Watcher) poll(ctx context.Context) error {
	every := w.Poll
	if every <= 0 {
		every = time.Second
	}
	t := time.NewTicker(every)
	defer t.Stop()
	last := w.snapshot()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
			cur := w.snapshot()
			changed := map[string]bool{}
			for n, s := range cur {
				if s != last[n] {
					changed[n] = true
				}
			}
			last = cur
			w.fire(changed)
		}
	}
}

func (w *Watcher) fire(set map[string]bool) {
	if len(set) == 0 || w.OnChange == nil {
		return
	}
	names := make([]string, 0, len(set))
	for n := range set {
		names = append(names, n)
	}
	sort.Strings(names)
	log.Info().Strs("files", names).Msg("data files changed")
	w.OnChange(names)
}
