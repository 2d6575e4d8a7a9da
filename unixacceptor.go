package air

import (
	"context"
	"net"
	"net/http"
	"os"
)

// unixAcceptor serves the handler chain over a Unix domain socket,
// grounded on original_source's core/src/listener/unix.rs and
// crates/core/src/conn/unix.rs, generalized from the teacher's TCP-only
// listener.go/tcpacceptor.go to the second transport row of §4.5's
// table ("Unix | h1 | upgrade-capable").
//
// Unlike tcpAcceptor, unixAcceptor never terminates TLS or negotiates
// QUIC: Unix sockets are a local, trusted-peer transport, so it only
// ever serves cleartext HTTP/1.1 and h2c, over the same *http.Server as
// the TCP acceptor.
type unixAcceptor struct {
	air *Air
	ln  net.Listener
}

// newUnixAcceptor binds a Unix domain socket at a.UnixAddress, removing
// any stale socket file left behind by a previous, uncleanly terminated
// process first, and applying a.UnixSocketMode when non-zero.
func newUnixAcceptor(a *Air) (*unixAcceptor, error) {
	if err := os.Remove(a.UnixAddress); err != nil && !os.IsNotExist(err) {
		return nil, err
	}

	ln, err := net.Listen("unix", a.UnixAddress)
	if err != nil {
		return nil, err
	}

	if a.UnixSocketMode != 0 {
		if err := os.Chmod(a.UnixAddress, a.UnixSocketMode); err != nil {
			ln.Close()
			return nil, err
		}
	}

	return &unixAcceptor{air: a, ln: ln}, nil
}

// Addr returns ua's bound socket address.
func (ua *unixAcceptor) Addr() net.Addr {
	return ua.ln.Addr()
}

// serve runs hs.Serve over ua's bound listener. hs.Handler is assumed
// already h2c-wrapped by the caller (server.go's Serve), the same
// *http.Server the TCP acceptor serves, so both transports share one
// set of timeouts and one Shutdown/Close without copying http.Server's
// unexported synchronization state.
func (ua *unixAcceptor) serve(hs *http.Server) error {
	return hs.Serve(ua.ln)
}

// Holdings implements Acceptor: a single cleartext HTTP/1.1+HTTP/2
// Holding for ua's socket path.
func (ua *unixAcceptor) Holdings() []Holding {
	return []Holding{{
		LocalAddr: ua.ln.Addr(),
		Versions:  []string{"HTTP/1.1", "HTTP/2"},
		Scheme:    "http",
	}}
}

// Accept implements Acceptor by accepting one connection and
// classifying it into the §3 Accepted tuple. As with
// tcpAcceptor.Accept, this is a distinct code path from serve's
// hs.Serve(ua.ln) hot loop and is safe to call only when that hot loop
// is not also draining ua.ln.
func (ua *unixAcceptor) Accept(ctx context.Context) (Accepted, error) {
	if err := ctx.Err(); err != nil {
		return Accepted{}, err
	}

	conn, err := ua.ln.Accept()
	if err != nil {
		return Accepted{}, err
	}

	peeked, err := peekPreface(conn)
	if err != nil {
		return Accepted{}, err
	}

	version := "HTTP/1.1"
	if peeked.h2Preface {
		version = "HTTP/2"
	}

	return Accepted{
		Conn:       peeked,
		LocalAddr:  peeked.LocalAddr(),
		RemoteAddr: peeked.RemoteAddr(),
		Version:    version,
		Scheme:     "http",
	}, nil
}

// Close closes ua's bound listener and removes its socket file.
func (ua *unixAcceptor) Close() error {
	err := ua.ln.Close()
	if e := os.Remove(ua.air.UnixAddress); e != nil && !os.IsNotExist(e) && err == nil {
		err = e
	}
	return err
}
