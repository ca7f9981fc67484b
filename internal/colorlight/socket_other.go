//go:build !linux

package colorlight

func openPacketConn(iface string) (Conn, error) {
	return nil, &Error{Kind: KindConfiguration, Op: "open", Iface: iface, Err: ErrConfiguration}
}
