package air

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"sync"
	"sync/atomic"

	"golang.org/x/net/http2"
)

// serverLoop owns the transports an *Air serves on and the shared shutdown
// bookkeeping between them, grounded on the teacher's server (which owned a
// single fastServer) generalized to the multi-transport Acceptor model of
// §4.5.
type serverLoop struct {
	air *Air

	httpServer *http.Server
	h2s        *http2.Server
	tcp        *tcpAcceptor
	unix       *unixAcceptor
	quic       *quicAcceptor
	joined     *JoinedAcceptor

	fusewire *Fusewire

	shuttingDown int32
	shutdownOnce sync.Once
	wg           sync.WaitGroup
}

// Serve starts listening on a.Address and blocks until the server is shut
// down via a.Shutdown or a fatal transport error occurs. If a.ConfigFile is
// set it is loaded first.
func (a *Air) Serve() error {
	if a.ConfigFile != "" {
		if err := a.LoadConfigFile(a.ConfigFile); err != nil {
			return err
		}
	}

	if a.Router == nil {
		a.Router = NewRouter()
	}
	if a.Catcher == nil {
		a.Catcher = DefaultCatcher
	}

	sl := &serverLoop{
		air:      a,
		fusewire: newFusewire(a.IdleTimeout),
	}
	a.server = sl

	hh := &hyperHandler{air: a}

	sl.h2s = &http2.Server{}

	sl.httpServer = &http.Server{
		Addr:              a.Address,
		Handler:           h2cHandler(hh, sl.h2s),
		ReadTimeout:       a.ReadTimeout,
		ReadHeaderTimeout: a.ReadHeaderTimeout,
		WriteTimeout:      a.WriteTimeout,
		IdleTimeout:       a.IdleTimeout,
		MaxHeaderBytes:    a.MaxHeaderBytes,
		ConnState:         sl.fusewire.trackConnState,
	}

	tcp, err := newTCPAcceptor(a, hh)
	if err != nil {
		return err
	}
	sl.tcp = tcp

	acceptors := []Acceptor{sl.tcp}

	errCh := make(chan error, 3)

	sl.wg.Add(1)
	go func() {
		defer sl.wg.Done()
		errCh <- sl.tcp.serve(sl.httpServer, sl.h2s)
	}()

	if a.UnixAddress != "" {
		unix, err := newUnixAcceptor(a)
		if err != nil {
			return err
		}
		sl.unix = unix
		acceptors = append(acceptors, sl.unix)

		sl.wg.Add(1)
		go func() {
			defer sl.wg.Done()
			errCh <- sl.unix.serve(sl.httpServer)
		}()
	}

	if a.QUICEnabled {
		quic, err := newQUICAcceptor(a, hh)
		if err != nil {
			return err
		}
		sl.quic = quic
		acceptors = append(acceptors, sl.quic)

		sl.wg.Add(1)
		go func() {
			defer sl.wg.Done()
			errCh <- sl.quic.serve()
		}()
	}

	sl.joined = NewJoinedAcceptor(acceptors...)

	err = <-errCh
	if atomic.LoadInt32(&sl.shuttingDown) == 1 {
		sl.wg.Wait()
		return nil
	}
	return err
}

// Addresses returns the addresses a is actually listening on (the TCP
// acceptor's address, the Unix socket path when configured, and the
// QUIC acceptor's when enabled), resolved after Serve has been called
// at least long enough to bind its listeners.
func (a *Air) Addresses() []string {
	sl := a.server
	if sl == nil || sl.tcp == nil {
		return nil
	}

	var addrs []string
	for _, h := range sl.Holdings() {
		if h.LocalAddr != nil {
			addrs = append(addrs, h.LocalAddr.String())
		}
	}
	return addrs
}

// Holdings returns the capabilities every transport a is currently
// serving advertises, per §3/§4.5. It is nil before Serve has bound any
// listener.
func (a *Air) Holdings() []Holding {
	sl := a.server
	if sl == nil {
		return nil
	}
	return sl.Holdings()
}

// Holdings concatenates every acceptor sl currently runs.
func (sl *serverLoop) Holdings() []Holding {
	if sl.joined != nil {
		return sl.joined.Holdings()
	}

	var hs []Holding
	if sl.tcp != nil {
		hs = append(hs, sl.tcp.Holdings()...)
	}
	if sl.unix != nil {
		hs = append(hs, sl.unix.Holdings()...)
	}
	if sl.quic != nil {
		hs = append(hs, sl.quic.Holdings()...)
	}
	return hs
}

// Close immediately closes every running transport without waiting for
// in-flight requests, unlike the graceful Shutdown.
func (a *Air) Close() error {
	sl := a.server
	if sl == nil {
		return nil
	}

	atomic.StoreInt32(&sl.shuttingDown, 1)

	var err error
	if sl.httpServer != nil {
		if e := sl.httpServer.Close(); e != nil {
			err = e
		}
	}
	if sl.unix != nil {
		if e := sl.unix.Close(); e != nil && err == nil {
			err = e
		}
	}
	if sl.quic != nil {
		if e := sl.quic.shutdown(context.Background()); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// Shutdown gracefully stops every running transport, waiting up to
// a.GracefulShutdownTimeout for in-flight requests to finish, per §4.5
// step 4.
func (a *Air) Shutdown(ctx context.Context) error {
	sl := a.server
	if sl == nil {
		return nil
	}

	var err error
	sl.shutdownOnce.Do(func() {
		atomic.StoreInt32(&sl.shuttingDown, 1)

		if a.GracefulShutdownTimeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, a.GracefulShutdownTimeout)
			defer cancel()
		}

		if sl.httpServer != nil {
			if e := sl.httpServer.Shutdown(ctx); e != nil {
				err = e
				sl.httpServer.Close()
			}
		}
		if sl.unix != nil {
			if e := os.Remove(a.UnixAddress); e != nil && !os.IsNotExist(e) && err == nil {
				err = e
			}
		}
		if sl.quic != nil {
			if e := sl.quic.shutdown(ctx); e != nil && err == nil {
				err = e
			}
		}
		sl.wg.Wait()
	})
	return err
}

// ServeHTTP implements http.Handler by running the same dispatch Serve's
// transports drive, letting a be used directly as a handler in tests or a
// caller-owned http.Server.
func (a *Air) ServeHTTP(hw http.ResponseWriter, hr *http.Request) {
	(&hyperHandler{air: a}).ServeHTTP(hw, hr)
}

// hyperHandler bridges net/http (and, through the QUIC acceptor, http3) to
// the Router/FlowCtrl/Catcher pipeline: it builds a Request/Depot/Response
// from inbound state, drives the matched handler chain, falls back to the
// Catcher when nothing stamped the Response, and finally serializes the
// Response.
type hyperHandler struct {
	air *Air
}

// ServeHTTP implements http.Handler.
func (hh *hyperHandler) ServeHTTP(hw http.ResponseWriter, hr *http.Request) {
	a := hh.air

	req := a.requestPool.Get().(*Request)
	res := a.responsePool.Get().(*Response)
	depot := newDepot()

	req.reset(a, hr)
	res.reset(a, req, hw)

	defer func() {
		if rec := recover(); rec != nil {
			a.Logger().Errorf("air: panic serving %s %s: %v", req.Method, req.Path, rec)
			if !res.Stamped() {
				res.SetError(fmt.Errorf("%v", rec))
			}
			res.writeOut()
		}
		a.requestPool.Put(req)
		a.responsePool.Put(res)
	}()

	hh.dispatch(req, depot, res)

	if err := res.writeOut(); err != nil {
		a.Logger().Errorf("air: write response for %s %s: %v", req.Method, req.Path, err)
	}
}

// dispatch runs the Pregases, routes the request, drives the matched
// chain, and falls back to the Catcher when the Response was never
// stamped, matching the handler-chain contract of §4.1/§4.2/§4.8.
func (hh *hyperHandler) dispatch(req *Request, depot *Depot, res *Response) {
	a := hh.air

	if len(a.Pregases) > 0 {
		pre := newFlowCtrl(a.Pregases)
		for pre.HasNext() && !res.Stamped() {
			if !pre.CallNext(req, depot, res) {
				break
			}
		}
		if res.Stamped() {
			return
		}
	}

	ps := newPathState(req.Path)
	matched, ok := a.Router.Detect(req, ps)
	if !ok {
		if ps.onceEnded {
			res.routeMissCode = 405
		} else {
			res.routeMissCode = 404
		}
	} else {
		names, values := ps.ParamValues()
		for i, name := range names {
			req.setRouteParam(name, values[i])
		}

		flow := newFlowCtrl(matched.Handlers)
		for flow.HasNext() {
			if !flow.CallNext(req, depot, res) {
				break
			}
		}
	}

	if !res.Stamped() {
		a.Catcher.Handle(req, depot, res, newFlowCtrl(nil))
	}
}
