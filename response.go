package air

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"net"
	"net/http"

	"github.com/BurntSushi/toml"
	"github.com/golang/protobuf/proto"
	"github.com/vmihailenco/msgpack/v5"
	"gopkg.in/yaml.v3"
)

// Response is the mutable outbound message written by Hoops/Handlers and
// serialized by a protocol serve routine after the chain returns.
type Response struct {
	Air     *Air
	Request *Request

	StatusCode int
	Header     http.Header
	Body       Body

	addedCookies   []*http.Cookie
	removedCookies []string

	committed     bool
	deferredFuncs []func()

	// routeMissCode records why the Router produced no match (404 or
	// 405) without stamping the Response, so the Catcher can render the
	// right default body.
	routeMissCode int

	hw       http.ResponseWriter
	flusher  http.Flusher
	hijacker http.Hijacker
	pusher   http.Pusher
}

// newResponse returns an empty *Response ready for reset.
func newResponse(a *Air) *Response {
	return &Response{Air: a}
}

// reset clears res for reuse from a sync.Pool and wires it to req/hw.
func (res *Response) reset(a *Air, req *Request, hw http.ResponseWriter) {
	*res = Response{Air: a, Request: req, Header: make(http.Header)}
	res.hw = hw
	if hw != nil {
		res.flusher, _ = hw.(http.Flusher)
		res.hijacker, _ = hw.(http.Hijacker)
		res.pusher, _ = hw.(http.Pusher)
	}
}

// Stamped reports whether res has been committed to by a Handler: either
// its status was set to a redirect/error code (>= 300), or its Body left
// BodyNone. This is the predicate chosen to resolve §9's open question on
// "response stamped", documented in SPEC_FULL.md.
func (res *Response) Stamped() bool {
	return (res.StatusCode != 0 && res.StatusCode >= 300) || !res.Body.IsNone()
}

// SetStatus sets the status code to be written with the response.
func (res *Response) SetStatus(code int) {
	res.StatusCode = code
}

// AddCookie queues c to be sent with the response.
func (res *Response) AddCookie(c *http.Cookie) {
	res.addedCookies = append(res.addedCookies, c)
}

// RemoveCookie queues an expiring cookie named name to be sent with the
// response, instructing the client to delete it.
func (res *Response) RemoveCookie(name string) {
	res.removedCookies = append(res.removedCookies, name)
}

// WriteBody sets res's Body to the given bytes, the Once variant.
func (res *Response) WriteBody(b []byte) error {
	res.Body.SetOnce(b)
	return nil
}

// Stream sets res's Body to a lazily produced sequence of chunks.
func (res *Response) Stream(ch <-chan StreamChunk) error {
	res.Body.SetStream(ch)
	return nil
}

// setContentTypeIfAbsent inserts contentType into the headers unless
// Content-Type is already set, matching the "writers may refuse to
// overwrite" rule in §4.3.
func (res *Response) setContentTypeIfAbsent(contentType string) {
	if res.Header.Get("Content-Type") == "" {
		res.Header.Set("Content-Type", contentType)
	}
}

// WriteString writes s as a "text/plain; charset=utf-8" body, the Text
// Scribe of §4.6.
func (res *Response) WriteString(s string) error {
	res.setContentTypeIfAbsent("text/plain; charset=utf-8")
	return res.WriteBody([]byte(s))
}

// WriteHTML writes h as a "text/html; charset=utf-8" body.
func (res *Response) WriteHTML(h string) error {
	res.setContentTypeIfAbsent("text/html; charset=utf-8")
	return res.WriteBody([]byte(h))
}

// WriteJSON writes v marshaled as a "application/json" body, the Json<T>
// Scribe of §4.6.
func (res *Response) WriteJSON(v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/json; charset=utf-8")
	return res.WriteBody(b)
}

// WriteXML writes v marshaled as a "application/xml" body.
func (res *Response) WriteXML(v interface{}) error {
	b, err := xml.Marshal(v)
	if err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/xml; charset=utf-8")
	return res.WriteBody(append([]byte(xml.Header), b...))
}

// WriteProtobuf writes v marshaled as a "application/x-protobuf" body,
// grounded on the teacher's WriteProtobuf and wired to github.com/golang/protobuf.
func (res *Response) WriteProtobuf(v proto.Message) error {
	b, err := proto.Marshal(v)
	if err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/x-protobuf")
	return res.WriteBody(b)
}

// WriteMsgpack writes v marshaled as a "application/x-msgpack" body.
func (res *Response) WriteMsgpack(v interface{}) error {
	b, err := msgpack.Marshal(v)
	if err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/x-msgpack")
	return res.WriteBody(b)
}

// WriteTOML writes v marshaled as a "application/toml" body.
func (res *Response) WriteTOML(v interface{}) error {
	buf := &bytes.Buffer{}
	if err := toml.NewEncoder(buf).Encode(v); err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/toml; charset=utf-8")
	return res.WriteBody(buf.Bytes())
}

// WriteYAML writes v marshaled as a "application/yaml" body.
func (res *Response) WriteYAML(v interface{}) error {
	b, err := yaml.Marshal(v)
	if err != nil {
		return err
	}
	res.setContentTypeIfAbsent("application/yaml; charset=utf-8")
	return res.WriteBody(b)
}

// SetError transitions res's Body to the Error variant, wrapping err as a
// *StatusError if it is not one already. This is how handlers that return
// a plain error surface a 500, per §4.7/§7.
func (res *Response) SetError(err error) {
	se, ok := err.(*StatusError)
	if !ok {
		se = ErrInternalServerError.WithCause(err)
		if res.Air != nil && res.Air.DebugMode {
			se = se.WithDetail(err.Error())
		}
	}
	res.StatusCode = se.Code
	res.Body.SetError(se)
}

// Redirect writes a redirect response to url with the given status code
// (e.g. http.StatusFound), the Redirect Scribe of §4.6.
func (res *Response) Redirect(code int, url string) error {
	res.StatusCode = code
	res.Header.Set("Location", url)
	return res.WriteBody(nil)
}

// Flush flushes buffered data to the client, when the underlying
// transport supports it.
func (res *Response) Flush() {
	if res.flusher != nil {
		res.flusher.Flush()
	}
}

// Push initiates an HTTP/2 server push of target, when the underlying
// transport supports it.
func (res *Response) Push(target string, opts *http.PushOptions) error {
	if res.pusher == nil {
		return fmt.Errorf("air: response does not support HTTP/2 server push")
	}
	return res.pusher.Push(target, opts)
}

// Hijack takes over the underlying connection, when the transport
// supports it.
func (res *Response) Hijack() (net.Conn, error) {
	if res.hijacker == nil {
		return nil, http.ErrNotSupported
	}
	conn, _, err := res.hijacker.Hijack()
	return conn, err
}

// Defer registers f to run after the response has been fully written,
// mirroring the teacher's Response.Defer.
func (res *Response) Defer(f func()) {
	res.deferredFuncs = append(res.deferredFuncs, f)
}

// runDeferred runs every deferred func in LIFO order.
func (res *Response) runDeferred() {
	for i := len(res.deferredFuncs) - 1; i >= 0; i-- {
		res.deferredFuncs[i]()
	}
}

// commit writes status, headers and cookies to the underlying
// http.ResponseWriter exactly once; subsequent calls are no-ops, matching
// the "headers committed exactly once" guarantee in §5.
func (res *Response) commit() http.ResponseWriter {
	if res.committed || res.hw == nil {
		return res.hw
	}
	res.committed = true

	for _, c := range res.addedCookies {
		http.SetCookie(res.hw, c)
	}
	for _, name := range res.removedCookies {
		http.SetCookie(res.hw, &http.Cookie{Name: name, MaxAge: -1, Value: "", Path: "/"})
	}

	h := res.hw.Header()
	for k, vs := range res.Header {
		for _, v := range vs {
			h.Add(k, v)
		}
	}

	code := res.StatusCode
	if code == 0 {
		code = http.StatusOK
	}
	res.hw.WriteHeader(code)

	return res.hw
}

// writeOut commits headers and writes the Body to the underlying
// http.ResponseWriter. Used by the net/http-backed HyperHandler bridge.
func (res *Response) writeOut() error {
	w := res.commit()
	if w == nil {
		return nil
	}
	_, err := res.Body.WriteTo(w)
	res.runDeferred()
	return err
}
