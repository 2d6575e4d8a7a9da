package air

import (
	"context"
	"crypto/tls"
	"net"
	"net/http"

	"golang.org/x/crypto/acme"
	"golang.org/x/crypto/acme/autocert"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"
)

// h2cHandler wraps h with h2c.NewHandler so that HTTP/2 prior-knowledge
// cleartext connections are recognized and served alongside HTTP/1.1.
func h2cHandler(h http.Handler, h2s *http2.Server) http.Handler {
	return h2c.NewHandler(h, h2s)
}

// tcpAcceptor serves HTTP/1.1, cleartext h2c and TLS-negotiated HTTP/2 on a
// single TCP listener, optionally PROXY-protocol aware, grounded on the
// teacher's listener.go and its ACME wiring in air.go.
type tcpAcceptor struct {
	air *Air
	ln  *listener
}

// newTCPAcceptor builds a tcpAcceptor for a and binds its listener on
// a.Address, so the address is known before serve blocks. hh is not used.
func newTCPAcceptor(a *Air, hh http.Handler) (*tcpAcceptor, error) {
	ln := newListener(a)
	if err := ln.listen(a.Address); err != nil {
		return nil, err
	}
	return &tcpAcceptor{air: a, ln: ln}, nil
}

// Addr returns the bound listener's address.
func (ta *tcpAcceptor) Addr() net.Addr {
	return ta.ln.Addr()
}

// useTLS reports whether ta should terminate TLS itself, matching the
// condition serve below branches on.
func (ta *tcpAcceptor) useTLS() bool {
	a := ta.air
	return a.TLSConfig != nil || a.ACMEEnabled || (a.TLSCertFile != "" && a.TLSKeyFile != "")
}

// scheme returns the scheme ta serves, derived from useTLS.
func (ta *tcpAcceptor) scheme() string {
	if ta.useTLS() {
		return "https"
	}
	return "http"
}

// Holdings implements Acceptor: a single Holding for ta's bound address,
// advertising HTTP/1.1 and HTTP/2 over ta's scheme, per §4.5's transport
// table.
func (ta *tcpAcceptor) Holdings() []Holding {
	return ta.ln.holdings(ta.scheme())
}

// Accept implements Acceptor by classifying one connection into the §3
// Accepted tuple (see listener.acceptAccepted for why this is a distinct
// code path from serve's hs.Serve(ta.ln) hot loop, and why it is safe to
// call only when that hot loop is not also draining ta.ln).
func (ta *tcpAcceptor) Accept(ctx context.Context) (Accepted, error) {
	if err := ctx.Err(); err != nil {
		return Accepted{}, err
	}
	return ta.ln.acceptAccepted(ta.scheme())
}

// Close closes ta's bound listener.
func (ta *tcpAcceptor) Close() error {
	return ta.ln.Close()
}

// serve runs hs.Serve over ta's bound listener (TLS-aware when
// a.TLSConfig, ACMEEnabled or TLSCertFile/TLSKeyFile configure a
// certificate source). hs.Handler is assumed already h2c-wrapped by the
// caller (server.go's Serve, shared with unixAcceptor) so concurrent
// transports never race writing hs.Handler.
func (ta *tcpAcceptor) serve(hs *http.Server, h2s *http2.Server) error {
	a := ta.air

	tlsConfig := a.TLSConfig

	if !ta.useTLS() {
		return hs.Serve(ta.ln)
	}

	if tlsConfig == nil {
		tlsConfig = &tls.Config{}
	} else {
		tlsConfig = tlsConfig.Clone()
	}

	if err := http2.ConfigureServer(hs, h2s); err != nil {
		return err
	}
	for _, proto := range []string{"h2", "http/1.1"} {
		if !containsString(tlsConfig.NextProtos, proto) {
			tlsConfig.NextProtos = append(tlsConfig.NextProtos, proto)
		}
	}

	if a.ACMEEnabled {
		acm := &autocert.Manager{
			Prompt:      autocert.AcceptTOS,
			Cache:       autocert.DirCache(a.ACMECertRoot),
			RenewBefore: a.ACMERenewalWindow,
			Client: &acme.Client{
				Key:          a.ACMEAccountKey,
				DirectoryURL: a.ACMEDirectoryURL,
			},
			ExtraExtensions: a.ACMEExtraExts,
		}
		if len(a.ACMEHostWhitelist) > 0 {
			acm.HostPolicy = autocert.HostWhitelist(a.ACMEHostWhitelist...)
		}

		getCertificate := tlsConfig.GetCertificate
		tlsConfig.GetCertificate = func(chi *tls.ClientHelloInfo) (*tls.Certificate, error) {
			if getCertificate != nil {
				if c, err := getCertificate(chi); err == nil && c != nil {
					return c, nil
				}
			}
			return acm.GetCertificate(chi)
		}

		for _, proto := range acm.TLSConfig().NextProtos {
			if !containsString(tlsConfig.NextProtos, proto) {
				tlsConfig.NextProtos = append(tlsConfig.NextProtos, proto)
			}
		}
	} else if a.TLSCertFile != "" && tlsConfig.GetCertificate == nil && len(tlsConfig.Certificates) == 0 {
		cert, err := tls.LoadX509KeyPair(a.TLSCertFile, a.TLSKeyFile)
		if err != nil {
			return err
		}
		tlsConfig.Certificates = []tls.Certificate{cert}
	}

	hs.TLSConfig = tlsConfig

	tlsListener := tls.NewListener(ta.ln, tlsConfig)
	return hs.Serve(tlsListener)
}

func containsString(ss []string, s string) bool {
	for _, v := range ss {
		if v == s {
			return true
		}
	}
	return false
}

var _ net.Listener = (*listener)(nil)
