package air

import (
	"net"
	"net/http"
	"sync"
	"time"
)

// Fusewire tracks, through the http.Server ConnState hook, the connections
// of the server that serves the TCP and Unix transports, and on Sweep
// closes a connection that has sat idle (between requests, on a keep-alive
// connection) for longer than its configured idle timeout. QUIC
// connections are not tracked.
type Fusewire struct {
	idleTimeout time.Duration

	mutex sync.Mutex
	conns map[net.Conn]time.Time
}

// newFusewire returns a Fusewire enforcing idleTimeout between requests on
// a connection. A zero idleTimeout disables the check.
func newFusewire(idleTimeout time.Duration) *Fusewire {
	return &Fusewire{idleTimeout: idleTimeout, conns: map[net.Conn]time.Time{}}
}

// trackConnState is an http.Server ConnState hook recording when each
// connection became idle, so Sweep can find and close connections that
// overstayed their welcome.
func (f *Fusewire) trackConnState(conn net.Conn, state http.ConnState) {
	if f.idleTimeout <= 0 {
		return
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	switch state {
	case http.StateIdle:
		f.conns[conn] = time.Now()
	case http.StateActive, http.StateClosed, http.StateHijacked:
		delete(f.conns, conn)
	}
}

// Sweep closes every tracked connection that has been idle longer than the
// configured idle timeout. The server loop never calls Sweep; while
// serving, idle TCP and Unix connections are closed by the http.Server's
// own IdleTimeout.
func (f *Fusewire) Sweep() {
	if f.idleTimeout <= 0 {
		return
	}

	f.mutex.Lock()
	defer f.mutex.Unlock()

	now := time.Now()
	for conn, since := range f.conns {
		if now.Sub(since) > f.idleTimeout {
			conn.Close()
			delete(f.conns, conn)
		}
	}
}
