package air

import (
	"crypto/tls"
	"net"
	"net/http"
	"net/http/httputil"
	"net/url"
	"path"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/http2"
)

// ReverseProxy is the Writer that proxies a request to target and streams
// the target's response back to the client, grounded on the teacher's
// Response.ProxyPass/ReverseProxy. The target's scheme selects the
// transport: "http"/"https" use a plain net/http.Transport, "ws"/"wss" are
// rewritten to "http"/"https" over the same transport, and "grpc"/"grpcs"
// use an HTTP/2 transport (cleartext or TLS respectively).
type ReverseProxy struct {
	Target string

	// Transport overrides the shared reverse proxy transport. Leave nil
	// to use the Air-wide transport returned by
	// (*Air).reverseProxyTransportInstance.
	Transport http.RoundTripper

	ModifyRequestMethod func(method string) (string, error)
	ModifyRequestPath   func(path string) (string, error)
	ModifyRequestHeader func(header http.Header) (http.Header, error)
	ModifyResponseStatus func(status int) (int, error)
	ModifyResponseHeader func(header http.Header) (http.Header, error)
}

// Write implements the Writer interface.
func (rp *ReverseProxy) Write(req *Request, _ *Depot, res *Response) error {
	hr := req.HTTPRequest()
	if hr == nil || res.hw == nil {
		return errReverseProxyUnsupportedTransport
	}

	targetURL, err := url.Parse(rp.Target)
	if err != nil {
		return err
	}
	targetURL.Scheme = strings.ToLower(targetURL.Scheme)
	switch targetURL.Scheme {
	case "http", "https", "ws", "wss", "grpc", "grpcs":
	default:
		return ErrInternalServerError.WithDetail("air: unsupported reverse proxy scheme: " + targetURL.Scheme)
	}
	targetURL.Host = strings.ToLower(targetURL.Host)

	targetMethod := req.Method
	if rp.ModifyRequestMethod != nil {
		if m, err := rp.ModifyRequestMethod(targetMethod); err != nil {
			return err
		} else {
			targetMethod = m
		}
	}

	reqPath := req.Path
	if rp.ModifyRequestPath != nil {
		if p, err := rp.ModifyRequestPath(reqPath); err != nil {
			return err
		} else {
			reqPath = p
		}
	}
	if reqPath == "" {
		reqPath = "/"
	}

	targetURL.Path = path.Join(targetURL.Path, reqPath)
	if targetURL.RawQuery == "" {
		targetURL.RawQuery = hr.URL.RawQuery
	} else if hr.URL.RawQuery != "" {
		targetURL.RawQuery += "&" + hr.URL.RawQuery
	}

	targetHeader := req.Header.Clone()
	if rp.ModifyRequestHeader != nil {
		if h, err := rp.ModifyRequestHeader(targetHeader); err != nil {
			return err
		} else {
			targetHeader = h
		}
	}
	if _, ok := targetHeader["User-Agent"]; !ok {
		targetHeader.Set("User-Agent", "")
	}

	transport := rp.Transport
	if transport == nil && res.Air != nil {
		transport = res.Air.reverseProxyTransportInstance()
	}
	if transport == nil {
		transport = newReverseProxyTransport()
	}

	var proxyErr error
	hrp := &httputil.ReverseProxy{
		Director: func(r *http.Request) {
			r.Method = targetMethod
			r.URL = targetURL
			r.Header = targetHeader
			r.Host = ""
		},
		FlushInterval: 100 * time.Millisecond,
		Transport:     transport,
		ModifyResponse: func(hres *http.Response) error {
			if rp.ModifyResponseStatus != nil {
				s, err := rp.ModifyResponseStatus(hres.StatusCode)
				if err != nil {
					return err
				}
				hres.StatusCode = s
			}
			if rp.ModifyResponseHeader != nil {
				h, err := rp.ModifyResponseHeader(hres.Header)
				if err != nil {
					return err
				}
				hres.Header = h
			}
			return nil
		},
		ErrorHandler: func(http.ResponseWriter, *http.Request, error) {
			res.StatusCode = http.StatusBadGateway
		},
	}
	if targetURL.Scheme == "grpc" || targetURL.Scheme == "grpcs" {
		hrp.FlushInterval /= 100
	}

	if res.Air != nil {
		hrp.ErrorLog = res.Air.ErrorLogger
	}

	hrp.ServeHTTP(res.hw, hr)
	res.committed = true
	return proxyErr
}

var errReverseProxyUnsupportedTransport = ErrInternalServerError.WithDetail("air: reverse proxy requires a net/http-backed, hijackable transport")

// reverseProxyTransport routes a reverse-proxied request to the right
// underlying http.RoundTripper based on its (possibly ws/wss/grpc/grpcs)
// scheme, grounded on the teacher's reverseProxyTransport.
type reverseProxyTransport struct {
	hTransport   *http.Transport
	h2Transport  *http2.Transport
	h2cTransport *http2.Transport
}

// newReverseProxyTransport returns a reverseProxyTransport with sane
// connection-pooling defaults for proxying.
func newReverseProxyTransport() *reverseProxyTransport {
	dialer := &net.Dialer{Timeout: 30 * time.Second, KeepAlive: 30 * time.Second}

	return &reverseProxyTransport{
		hTransport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			DialContext:           dialer.DialContext,
			MaxIdleConnsPerHost:   200,
			IdleConnTimeout:       90 * time.Second,
			TLSHandshakeTimeout:   10 * time.Second,
			ExpectContinueTimeout: time.Second,
			ForceAttemptHTTP2:     true,
		},
		h2Transport: &http2.Transport{
			DialTLS: func(network, address string, tlsConfig *tls.Config) (net.Conn, error) {
				return tls.DialWithDialer(dialer, network, address, tlsConfig)
			},
		},
		h2cTransport: &http2.Transport{
			DialTLS: func(network, address string, _ *tls.Config) (net.Conn, error) {
				return dialer.Dial(network, address)
			},
			AllowHTTP: true,
		},
	}
}

// RoundTrip implements the http.RoundTripper interface, translating the
// ws/wss/grpc/grpcs pseudo-schemes onto a concrete transport.
func (rpt *reverseProxyTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	var transport http.RoundTripper
	switch req.URL.Scheme {
	case "ws":
		req.URL.Scheme = "http"
		transport = rpt.hTransport
	case "wss":
		req.URL.Scheme = "https"
		transport = rpt.hTransport
	case "grpc":
		req.URL.Scheme = "http"
		transport = rpt.h2cTransport
	case "grpcs":
		req.URL.Scheme = "https"
		transport = rpt.h2Transport
	default:
		transport = rpt.hTransport
	}
	return transport.RoundTrip(req)
}

var _ sync.Locker = (*sync.Mutex)(nil)
