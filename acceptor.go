package air

import (
	"context"
	"net"
	"sync"
)

// Holding is the advertised capability of an Acceptor: the local address
// it is bound to, the HTTP versions it can serve over that address, and
// the scheme requests arriving through it carry. A caller populates
// Accepted from Holdings instead of probing every connection for facts
// that never vary per connection, per §3.
type Holding struct {
	LocalAddr net.Addr
	Versions  []string
	Scheme    string
}

// Accepted is a freshly accepted connection plus the transport metadata
// an Acceptor determined about it: negotiated HTTP version, scheme, and
// both ends' addresses, per §3.
type Accepted struct {
	Conn       net.Conn
	LocalAddr  net.Addr
	RemoteAddr net.Addr
	Version    string
	Scheme     string
}

// Acceptor produces Accepted connections from some transport and
// advertises its capabilities via Holdings, per §4.5. tcpAcceptor,
// unixAcceptor and quicAcceptor each implement it; JoinedAcceptor
// composes several into one.
type Acceptor interface {
	Holdings() []Holding
	Accept(ctx context.Context) (Accepted, error)
	Close() error
}

var (
	_ Acceptor = (*tcpAcceptor)(nil)
	_ Acceptor = (*unixAcceptor)(nil)
	_ Acceptor = (*quicAcceptor)(nil)
	_ Acceptor = (*JoinedAcceptor)(nil)
)

// JoinedAcceptor multiplexes Accept over several Acceptors via a select
// primitive, per §4.5 ("Composite acceptors (JoinedAcceptor) multiplex
// over multiple underlying acceptors via a select primitive").
//
// Each underlying Acceptor is polled by one long-lived goroutine that
// forwards every Accept result onto a shared channel, rather than
// spawning a fresh goroutine per call to Accept, so repeated calls don't
// leak a goroutine blocked on whichever Acceptor didn't win the race.
type JoinedAcceptor struct {
	acceptors []Acceptor

	startOnce sync.Once
	resultC   chan joinedResult
}

type joinedResult struct {
	accepted Accepted
	err      error
}

// NewJoinedAcceptor returns a JoinedAcceptor racing Accept across
// acceptors, in the order given.
func NewJoinedAcceptor(acceptors ...Acceptor) *JoinedAcceptor {
	return &JoinedAcceptor{acceptors: acceptors}
}

func (ja *JoinedAcceptor) start() {
	ja.resultC = make(chan joinedResult)
	for _, a := range ja.acceptors {
		a := a
		go func() {
			for {
				accepted, err := a.Accept(context.Background())
				ja.resultC <- joinedResult{accepted, err}
				if err != nil {
					return
				}
			}
		}()
	}
}

// Holdings concatenates every underlying Acceptor's Holdings, in order.
func (ja *JoinedAcceptor) Holdings() []Holding {
	var hs []Holding
	for _, a := range ja.acceptors {
		hs = append(hs, a.Holdings()...)
	}
	return hs
}

// Accept returns whichever underlying Acceptor's next connection resolves
// first. A cancelled ctx unblocks it with ctx.Err() without closing any
// underlying Acceptor.
func (ja *JoinedAcceptor) Accept(ctx context.Context) (Accepted, error) {
	ja.startOnce.Do(ja.start)

	select {
	case r := <-ja.resultC:
		return r.accepted, r.err
	case <-ctx.Done():
		return Accepted{}, ctx.Err()
	}
}

// Close closes every underlying Acceptor, collecting the first error.
func (ja *JoinedAcceptor) Close() error {
	var err error
	for _, a := range ja.acceptors {
		if e := a.Close(); e != nil && err == nil {
			err = e
		}
	}
	return err
}
