// Package keys turns key presses into navigation requests. It reads a raw
// terminal (x/term) or, when the terminal emulator owns the screen, tcell
// key events.
package keys

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"io"
	"os"

	"github.com/gdamore/tcell/v2"
	"github.com/rs/zerolog/log"
	"golang.org/x/term"

	"github.com/MikeChuckRoast/LedPanels/internal/control"
)

const (
	ctrlC = 0x03
	esc   = 0x1B
)

func req(c control.Cmd) control.Request { return control.Request{Cmd: c, Source: "keyboard"} }

// FromRune maps single-byte keys.
func FromRune(r rune) (control.Request, bool) {
	switch r {
	case 'n', 'N', ' ':
		return req(control.Next), true
	case 'p', 'P':
		return req(control.Prev), true
	case 'r', 'R':
		return req(control.Reload), true
	case 'q', 'Q', ctrlC:
		return req(control.Quit), true
	}
	return control.Request{}, false
}

// fromEscape maps the tail of an ANSI escape sequence (after "ESC [").
func fromEscape(seq string) (control.Request, bool) {
	switch seq {
	case "C", "5~": // right, page up
		return req(control.Next), true
	case "D", "6~": // left, page down
		return req(control.Prev), true
	}
	return control.Request{}, false
}

// FromTcell maps a tcell key event.
func FromTcell(ev *tcell.EventKey) (control.Request, bool) {
	switch ev.Key() {
	case tcell.KeyRight, tcell.KeyPgUp:
		return req(control.Next), true
	case tcell.KeyLeft, tcell.KeyPgDn:
		return req(control.Prev), true
	case tcell.KeyCtrlC, tcell.KeyEscape:
		return req(control.Quit), true
	case tcell.KeyRune:
		return FromRune(ev.Rune())
	}
	return control.Request{}, false
}

// Read decodes key presses from r until it fails or ctx is done, passing
// each recognised request to submit. Quit ends the loop after submitting.
func Read(ctx context.Context, r io.Reader, submit func(control.Request)) error {
	br := bufio.NewReader(r)
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		b, err := br.ReadByte()
		if err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return err
		}
		var (
			rq control.Request
			ok bool
		)
		if b == esc {
			rq, ok = readEscape(br)
		} else {
			rq, ok = FromRune(rune(b))
		}
		if !ok {
			continue
		}
		submit(rq)
		if rq.Cmd == control.Quit {
			return nil
		}
	}
}

func readEscape(br *bufio.Reader) (control.Request, bool) {
	if b, err := br.ReadByte(); err != nil || b != '[' {
		return control.Request{}, false
	}
	var seq []byte
	for len(seq) < 4 {
		b, err := br.ReadByte()
		if err != nil {
			return control.Request{}, false
		}
		seq = append(seq, b)
		if (b >= 'A' && b <= 'Z') || b == '~' {
			break
		}
	}
	return fromEscape(string(seq))
}

// MakeRaw puts f into raw mode when it is a terminal and returns the func
// that restores it.
func MakeRaw(f *os.File) (restore func(), err error) {
	fd := int(f.Fd())
	if !term.IsTerminal(fd) {
		log.Debug().Msg("stdin is not a terminal, reading keys line-buffered")
		return func() {}, nil
	}
	old, err := term.MakeRaw(fd)
	if err != nil {
		return nil, err
	}
	return func() { _ = term.Restore(fd, old) }, nil
}

// IsTerminal reports whether f is a terminal.
func IsTerminal(f *os.File) bool { return term.IsTerminal(int(f.Fd())) }

// CRLFWriter writes through to w with every "\n" turned into "\r\n". A
// terminal in raw mode does no output processing, so log lines written to
// it need the carriage return.
func CRLFWriter(w io.Writer) io.Writer { return crlfWriter{w} }

type crlfWriter struct{ w io.Writer }

func (c crlfWriter) Write(p []byte) (int, error) {
	if _, err := c.w.Write(bytes.ReplaceAll(p, []byte("\n"), []byte("\r\n"))); err != nil {
		return 0, err
	}
	return len(p), nil
}
