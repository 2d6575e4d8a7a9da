/*
Package air implements the request pipeline of an asynchronous HTTP server
framework: route matching, a composable handler chain, typed request-data
extraction and a uniform response-writing surface, served over HTTP/1,
HTTP/2 and HTTP/3.

Router

Registering a route requires a path pattern and a Handler:

	a := air.New()
	a.Router.Get("/users/{id:num}", air.WrapFunc(func(req *air.Request, res *air.Response) error {
		id, err := req.Param("id").Value().Int64()
		if err != nil {
			return err
		}
		return res.WriteJSON(map[string]interface{}{"id": id})
	}))
	a.Serve()

The path pattern "users/{id:num}" contains a literal component "users" and
a PARAM component "{id:num}" constrained to the `num` shorthand
([0-9]+). Route params are reachable via Request.Param/Request.Params once
the chain has routed the request.
*/
package air

import (
	"crypto"
	"crypto/tls"
	"crypto/x509/pkix"
	"log"
	"os"
	"sync"
	"time"
)

// Air is the top-level struct of this framework, analogous to the
// teacher's Air but driving a Router/FlowCtrl pipeline instead of a
// route-table-of-HandlerFunc design.
//
// It is highly recommended not to modify the value of any field of the
// Air after calling Serve, which will cause unpredictable problems.
type Air struct {
	// AppName is the name of the web application.
	AppName string `mapstructure:"app_name"`

	// DebugMode indicates whether the web application is in debug mode.
	// Debug mode includes the cause of internal errors in the default
	// Catcher's rendered body.
	DebugMode bool `mapstructure:"debug_mode"`

	// Address is the TCP address that the server listens on.
	Address string `mapstructure:"address"`

	// UnixAddress is the path of the Unix domain socket that the server
	// additionally listens on when non-empty, served over the same
	// handler chain and, where the platform allows it, sharing the TCP
	// acceptor's h2c upgrade, per §4.5's transport table row for Unix
	// sockets.
	UnixAddress string `mapstructure:"unix_address"`

	// UnixSocketMode is the file mode applied to UnixAddress after
	// binding, when non-zero.
	UnixSocketMode os.FileMode `mapstructure:"unix_socket_mode"`

	// ReadTimeout is the maximum duration allowed for the server to read
	// a request entirely, including the body part.
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// ReadHeaderTimeout is the maximum duration allowed for the server to
	// read the headers of a request.
	ReadHeaderTimeout time.Duration `mapstructure:"read_header_timeout"`

	// WriteTimeout is the maximum duration allowed for the server to
	// write a response.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout is the maximum duration allowed for the server to wait
	// for the next request on a kept-alive connection. It is passed to the
	// http.Server serving the TCP and Unix transports; the QUIC transport
	// does not apply it.
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// MaxHeaderBytes is the maximum number of bytes allowed for the
	// server to read when parsing request headers.
	MaxHeaderBytes int `mapstructure:"max_header_bytes"`

	// MaxRequestBodySize bounds the whole-request size accepted by
	// Request.MultipartForm, per the form parsing contract in §4.3.
	MaxRequestBodySize int64 `mapstructure:"max_request_body_size"`

	// GracefulShutdownTimeout bounds how long Shutdown waits for active
	// connections to finish before hard-aborting them, per §4.5 step 4.
	GracefulShutdownTimeout time.Duration `mapstructure:"graceful_shutdown_timeout"`

	// TLSConfig is the TLS configuration used to handle requests on
	// incoming TLS connections.
	TLSConfig *tls.Config `mapstructure:"-"`

	// TLSCertFile is the path to the TLS certificate file.
	TLSCertFile string `mapstructure:"tls_cert_file"`

	// TLSKeyFile is the path to the TLS key file.
	TLSKeyFile string `mapstructure:"tls_key_file"`

	// ACMEEnabled indicates whether the ACME feature is enabled, giving
	// the server the ability to automatically obtain certificates from
	// an ACME CA (§6).
	ACMEEnabled bool `mapstructure:"acme_enabled"`

	// ACMEDirectoryURL is the ACME CA directory URL.
	ACMEDirectoryURL string `mapstructure:"acme_directory_url"`

	// ACMEAccountKey is the account key used to register with an ACME
	// CA. A new ECDSA P-256 key is generated when nil.
	ACMEAccountKey crypto.Signer `mapstructure:"-"`

	// ACMECertRoot is the root of the certificates cached by the ACME
	// feature.
	ACMECertRoot string `mapstructure:"acme_cert_root"`

	// ACMEHostWhitelist is the list of hosts allowed by the ACME
	// feature; empty allows any host.
	ACMEHostWhitelist []string `mapstructure:"acme_host_whitelist"`

	// ACMERenewalWindow is the renewal window before a certificate
	// expires.
	ACMERenewalWindow time.Duration `mapstructure:"acme_renewal_window"`

	// ACMEExtraExts is the list of extra extensions used when generating
	// a CSR.
	ACMEExtraExts []pkix.Extension `mapstructure:"-"`

	// QUICEnabled indicates whether the server also accepts HTTP/3-over-
	// QUIC connections on Address (§4.5, §6).
	QUICEnabled bool `mapstructure:"quic_enabled"`

	// WebSocketHandshakeTimeout is the maximum duration allowed for the
	// server to wait for a WebSocket handshake to complete.
	WebSocketHandshakeTimeout time.Duration `mapstructure:"websocket_handshake_timeout"`

	// WebSocketSubprotocols is the list of supported WebSocket
	// subprotocols.
	WebSocketSubprotocols []string `mapstructure:"websocket_subprotocols"`

	// PROXYEnabled indicates whether the PROXY protocol is enabled on
	// the TCP acceptor.
	PROXYEnabled bool `mapstructure:"proxy_enabled"`

	// PROXYReadHeaderTimeout is the maximum duration allowed for the
	// server to read the PROXY protocol header of a connection.
	PROXYReadHeaderTimeout time.Duration `mapstructure:"proxy_read_header_timeout"`

	// PROXYRelayerIPWhitelist is the list of IP addresses or CIDR
	// ranges of relayers allowed to use the PROXY protocol.
	PROXYRelayerIPWhitelist []string `mapstructure:"proxy_relayer_ip_whitelist"`

	// MinifierEnabled indicates whether the renderer/coffer minify
	// matching content on the fly based on Content-Type.
	MinifierEnabled bool `mapstructure:"minifier_enabled"`

	// MinifierMIMETypes is the list of MIME types that trigger
	// minimization.
	MinifierMIMETypes []string `mapstructure:"minifier_mime_types"`

	// GzipEnabled indicates whether the Coffer feature pre-compresses
	// matching asset content.
	GzipEnabled bool `mapstructure:"gzip_enabled"`

	// GzipMIMETypes is the list of MIME types that trigger
	// pre-compression.
	GzipMIMETypes []string `mapstructure:"gzip_mime_types"`

	// GzipCompressionLevel is the compression level passed to
	// compress/gzip.
	GzipCompressionLevel int `mapstructure:"gzip_compression_level"`

	// RendererTemplateRoot is the root of the HTML templates parsed by
	// the Renderer feature.
	RendererTemplateRoot string `mapstructure:"renderer_template_root"`

	// RendererTemplateExts is the list of filename extensions of HTML
	// template files.
	RendererTemplateExts []string `mapstructure:"renderer_template_exts"`

	// RendererTemplateWatched enables fsnotify-based hot reload of
	// templates.
	RendererTemplateWatched bool `mapstructure:"renderer_template_watched"`

	// CofferEnabled indexes CofferAssetRoot's files into an in-memory
	// fastcache, giving NamedFile a memory-backed fast path.
	CofferEnabled bool `mapstructure:"coffer_enabled"`

	// CofferMaxMemoryBytes bounds the memory the Coffer feature may use.
	CofferMaxMemoryBytes int `mapstructure:"coffer_max_memory_bytes"`

	// CofferAssetRoot is the root of the assets indexed by the Coffer
	// feature.
	CofferAssetRoot string `mapstructure:"coffer_asset_root"`

	// CofferAssetExts is the list of filename extensions indexed by the
	// Coffer feature.
	CofferAssetExts []string `mapstructure:"coffer_asset_exts"`

	// I18nEnabled gives Request.LocalizedString the ability to adapt to
	// Accept-Language. The default Catcher's body is not localized.
	I18nEnabled bool `mapstructure:"i18n_enabled"`

	// I18nLocaleRoot is the root of the TOML-based locale files parsed
	// by the i18n feature.
	I18nLocaleRoot string `mapstructure:"i18n_locale_root"`

	// I18nLocaleBase is the locale used when Accept-Language does not
	// match any parsed locale.
	I18nLocaleBase string `mapstructure:"i18n_locale_base"`

	// ConfigFile, when set before calling Serve, is loaded via
	// LoadConfigFile before the server starts.
	ConfigFile string `mapstructure:"-"`

	// Router is the root of the route tree; register routes on it
	// directly or through the convenience methods below.
	Router *Router `mapstructure:"-"`

	// Catcher renders a terminal response for unmatched/un-stamped
	// requests. Defaults to DefaultCatcher.
	Catcher Catcher `mapstructure:"-"`

	// Pregases is the chain of Handlers run in order, first to last,
	// before routing, regardless of whether the request matches a route;
	// the chain stops early once the Response is stamped.
	Pregases []Handler `mapstructure:"-"`

	// ErrorLogger receives framework-internal log lines. A Logger
	// backed by the standard log package is used when nil.
	ErrorLogger *log.Logger `mapstructure:"-"`

	logger       *Logger
	renderer     *renderer
	minifier     *airMinifier
	Coffer       *Coffer `mapstructure:"-"`
	i18n         *i18n
	reverseProxy *reverseProxyTransport

	requestPool  *sync.Pool
	responsePool *sync.Pool

	server *serverLoop
}

// New returns a new *Air with default field values, mirroring the
// teacher's New().
func New() *Air {
	a := &Air{
		AppName:                 "air",
		Address:                 "localhost:8080",
		MaxHeaderBytes:          1 << 20,
		MaxRequestBodySize:      32 << 20,
		GracefulShutdownTimeout: 30 * time.Second,
		ACMEDirectoryURL:        "https://acme-v02.api.letsencrypt.org/directory",
		ACMECertRoot:            "acme-certs",
		ACMERenewalWindow:       30 * 24 * time.Hour,
		MinifierMIMETypes: []string{
			"text/html",
			"text/css",
			"application/javascript",
			"application/json",
			"application/xml",
			"image/svg+xml",
		},
		GzipMIMETypes: []string{
			"text/html",
			"text/css",
			"application/javascript",
			"application/json",
			"application/xml",
			"image/svg+xml",
		},
		GzipCompressionLevel: 6,
		RendererTemplateRoot: "templates",
		RendererTemplateExts: []string{".html"},
		CofferMaxMemoryBytes: 32 << 20,
		CofferAssetRoot:      "assets",
		CofferAssetExts:      []string{".html", ".css", ".js", ".json", ".png", ".jpg", ".jpeg", ".svg"},
		I18nLocaleRoot:       "locales",
		I18nLocaleBase:       "en-US",

		Router:  NewRouter(),
		Catcher: DefaultCatcher,
	}

	a.requestPool = &sync.Pool{New: func() interface{} { return newRequest(a) }}
	a.responsePool = &sync.Pool{New: func() interface{} { return newResponse(a) }}

	return a
}

// Default is the default instance of Air, for callers who only need one.
var Default = New()

// Logger returns a's Logger, building it from ErrorLogger/DebugMode on
// first access.
func (a *Air) Logger() *Logger {
	if a.logger == nil {
		a.logger = newLogger(a.ErrorLogger, a.DebugMode)
	}
	return a.logger
}

// i18nManager returns a's i18n locale manager, building it on first
// access. Returns nil when I18nEnabled is false.
func (a *Air) i18nManager() *i18n {
	if !a.I18nEnabled {
		return nil
	}
	if a.i18n == nil {
		a.i18n = newI18n(a)
	}
	return a.i18n
}

// minifierInstance returns a's minifier, building it on first access.
// Returns nil when MinifierEnabled is false.
func (a *Air) minifierInstance() *airMinifier {
	if !a.MinifierEnabled {
		return nil
	}
	if a.minifier == nil {
		a.minifier = newMinifier()
	}
	return a.minifier
}

// cofferInstance returns a's Coffer, building it on first access. Returns
// nil when CofferEnabled is false.
func (a *Air) cofferInstance() *Coffer {
	if !a.CofferEnabled {
		return nil
	}
	if a.Coffer == nil {
		a.Coffer = newCoffer(a)
	}
	return a.Coffer
}

// rendererInstance returns a's renderer, building it on first access.
func (a *Air) rendererInstance() *renderer {
	if a.renderer == nil {
		a.renderer = newRenderer(a)
	}
	return a.renderer
}

// reverseProxyTransportInstance returns a's shared reverse proxy transport,
// building it on first access.
func (a *Air) reverseProxyTransportInstance() *reverseProxyTransport {
	if a.reverseProxy == nil {
		a.reverseProxy = newReverseProxyTransport()
	}
	return a.reverseProxy
}

// GET registers a GET route at pattern.
func (a *Air) GET(pattern string, h Handler) *Router { return a.Router.Get(pattern, h) }

// POST registers a POST route at pattern.
func (a *Air) POST(pattern string, h Handler) *Router { return a.Router.Post(pattern, h) }

// PUT registers a PUT route at pattern.
func (a *Air) PUT(pattern string, h Handler) *Router { return a.Router.Put(pattern, h) }

// PATCH registers a PATCH route at pattern.
func (a *Air) PATCH(pattern string, h Handler) *Router { return a.Router.Patch(pattern, h) }

// DELETE registers a DELETE route at pattern.
func (a *Air) DELETE(pattern string, h Handler) *Router { return a.Router.Delete(pattern, h) }

// HEAD registers a HEAD route at pattern.
func (a *Air) HEAD(pattern string, h Handler) *Router { return a.Router.Head(pattern, h) }

// OPTIONS registers an OPTIONS route at pattern.
func (a *Air) OPTIONS(pattern string, h Handler) *Router { return a.Router.Options(pattern, h) }
