package colorlight

import (
	"errors"
	"fmt"
)

// Kind classifies transport failures.
type Kind int

const (
	KindUnknown Kind = iota
	// KindConfiguration: the platform has no link-layer raw sockets.
	KindConfiguration
	// KindPermission: the socket or bind was refused for lack of privilege.
	KindPermission
	// KindInterface: the named interface is missing or could not be bound.
	KindInterface
	// KindTransport: a frame could not be sent on an open session.
	KindTransport
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindPermission:
		return "permission"
	case KindInterface:
		return "interface"
	case KindTransport:
		return "transport"
	default:
		return "unknown"
	}
}

// Sentinels for errors.Is. Every *Error matches the sentinel of its kind.
var (
	ErrConfiguration = errors.New("colorlight: no raw-socket capability on this platform")
	ErrPermission    = errors.New("colorlight: insufficient privilege for raw sockets")
	ErrInterface     = errors.New("colorlight: network interface unavailable")
	ErrTransport     = errors.New("colorlight: frame send failed")
	ErrClosed        = errors.New("colorlight: session closed")
)

// Error carries the failing operation, the interface and the cause.
type Error struct {
	Kind  Kind
	Op    string
	Iface string
	Err   error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("colorlight %s %s", e.Op, e.Kind)
	if e.Iface != "" {
		msg += fmt.Sprintf(" on %q", e.Iface)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Kind == KindPermission {
		msg += " (re-run as root or grant CAP_NET_RAW, e.g. sudo ledpanels ...)"
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Is(target error) bool {
	switch target {
	case ErrConfiguration:
		return e.Kind == KindConfiguration
	case ErrPermission:
		return e.Kind == KindPermission
	case ErrInterface:
		return e.Kind == KindInterface
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// KindOf reports the Kind of err, or KindUnknown when err is not a
// colorlight error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}
