package air

import (
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"

	"github.com/cespare/xxhash/v2"
)

// Scribe is the synchronous, ownership-taking collaboration mode for
// producing a response: small values (strings, JSON bodies, redirects,
// static status errors) render themselves directly into a Response.
type Scribe interface {
	Render(res *Response) error
}

// Writer is the asynchronous collaboration mode for producing a response:
// required for anything that must inspect content negotiation, stream a
// file, or fail into another writer.
type Writer interface {
	Write(req *Request, depot *Depot, res *Response) error
}

// scribeWriter adapts any Scribe into a Writer.
type scribeWriter struct{ s Scribe }

// Write implements the Writer interface.
func (w scribeWriter) Write(_ *Request, _ *Depot, res *Response) error {
	return w.s.Render(res)
}

// AsWriter lifts a Scribe into a Writer. Every Scribe automatically
// implements Writer through this adapter, per §4.6.
func AsWriter(s Scribe) Writer {
	return scribeWriter{s: s}
}

// Text is the Scribe for a plain-text-family body, per §4.6's
// Text(Plain|Html|Xml|Js|Css) built-in.
type Text struct {
	ContentType string
	Content     string
}

// Render implements the Scribe interface.
func (t Text) Render(res *Response) error {
	res.setContentTypeIfAbsent(t.ContentType)
	return res.WriteBody([]byte(t.Content))
}

// TextPlain returns a Text Scribe with a "text/plain; charset=utf-8"
// Content-Type.
func TextPlain(content string) Text {
	return Text{ContentType: "text/plain; charset=utf-8", Content: content}
}

// TextHTML returns a Text Scribe with a "text/html; charset=utf-8"
// Content-Type.
func TextHTML(content string) Text {
	return Text{ContentType: "text/html; charset=utf-8", Content: content}
}

// TextXML returns a Text Scribe with a "application/xml; charset=utf-8"
// Content-Type.
func TextXML(content string) Text {
	return Text{ContentType: "application/xml; charset=utf-8", Content: content}
}

// TextJS returns a Text Scribe with a "application/javascript;
// charset=utf-8" Content-Type.
func TextJS(content string) Text {
	return Text{ContentType: "application/javascript; charset=utf-8", Content: content}
}

// TextCSS returns a Text Scribe with a "text/css; charset=utf-8"
// Content-Type.
func TextCSS(content string) Text {
	return Text{ContentType: "text/css; charset=utf-8", Content: content}
}

// JSON is the Scribe for a JSON-encoded body, §4.6's Json<T>.
type JSON struct {
	Value interface{}
}

// Render implements the Scribe interface.
func (j JSON) Render(res *Response) error {
	return res.WriteJSON(j.Value)
}

// RedirectScribe is the Scribe for a redirect response, §4.6's Redirect.
type RedirectScribe struct {
	Code int
	URL  string
}

// RedirectTo returns a RedirectScribe with the given status code and target.
func RedirectTo(code int, url string) RedirectScribe {
	return RedirectScribe{Code: code, URL: url}
}

// Render implements the Scribe interface.
func (r RedirectScribe) Render(res *Response) error {
	return res.Redirect(r.Code, r.URL)
}

// Render implements the Scribe interface for *StatusError, satisfying the
// rule that StatusError is itself a built-in Scribe.
func (e *StatusError) Render(res *Response) error {
	res.SetError(e)
	return nil
}

// NamedFile is the Writer for streaming a file from disk, §4.6's
// NamedFile. When the Coffer holds the file, the cached content is written
// whole with an xxhash-based ETag; no conditional or Range header is
// evaluated on that path. Otherwise, with an underlying
// http.ResponseWriter, it delegates to http.ServeContent, which honors
// Range/If-Range and If-Modified-Since; NamedFile sets no ETag there, so
// If-None-Match never matches. Without one, the whole file is written with
// a Last-Modified header.
type NamedFile struct {
	Path string
}

// Write implements the Writer interface.
func (nf NamedFile) Write(req *Request, _ *Depot, res *Response) error {
	f, err := os.Open(nf.Path)
	if err != nil {
		if os.IsNotExist(err) {
			return ErrNotFound.WithCause(err)
		}
		return ErrInternalServerError.WithCause(err)
	}
	defer f.Close()

	fi, err := f.Stat()
	if err != nil {
		return ErrInternalServerError.WithCause(err)
	}

	if res.Air != nil {
		if coffer := res.Air.cofferInstance(); coffer != nil {
			if content, ok := coffer.get(nf.Path); ok {
				res.Header.Set("ETag", fmt.Sprintf(`"%x"`, xxhash.Sum64(content)))
				res.setContentTypeIfAbsent(mimeTypeByExt(filepath.Ext(nf.Path)))
				return res.WriteBody(content)
			}
		}
	}

	if req.HTTPRequest() != nil && res.hw != nil {
		http.ServeContent(res.hw, req.HTTPRequest(), fi.Name(), fi.ModTime(), f)
		res.committed = true
		res.Body.SetOnce(nil)
		return nil
	}

	b, err := io.ReadAll(f)
	if err != nil {
		return ErrInternalServerError.WithCause(err)
	}
	res.Header.Set("Last-Modified", fi.ModTime().UTC().Format(http.TimeFormat))
	res.setContentTypeIfAbsent(mimeTypeByExt(filepath.Ext(nf.Path)))
	return res.WriteBody(b)
}

// mimeTypeByExt is a small, dependency-free extension-to-Content-Type table
// used by NamedFile on its Coffer path and when there is no underlying
// http.ResponseWriter. No content sniffing is done.
func mimeTypeByExt(ext string) string {
	switch ext {
	case ".html", ".htm":
		return "text/html; charset=utf-8"
	case ".css":
		return "text/css; charset=utf-8"
	case ".js":
		return "application/javascript; charset=utf-8"
	case ".json":
		return "application/json; charset=utf-8"
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".svg":
		return "image/svg+xml"
	default:
		return "application/octet-stream"
	}
}

// ResultWriter is a Writer that delegates to Success if it is non-nil,
// otherwise to Failure, implementing the Result<T: Writer, E: Writer>
// pattern of §4.6.
type ResultWriter struct {
	Success Writer
	Failure Writer
}

// Write implements the Writer interface.
func (r ResultWriter) Write(req *Request, depot *Depot, res *Response) error {
	if r.Success != nil {
		return r.Success.Write(req, depot, res)
	}
	if r.Failure != nil {
		return r.Failure.Write(req, depot, res)
	}
	return nil
}

// WriteResult builds a ResultWriter from an (ok Writer, err error) pair,
// the idiomatic Go shape a handler returning (Writer, error) produces.
func WriteResult(ok Writer, err error) Writer {
	if err != nil {
		se, isSE := err.(*StatusError)
		if !isSE {
			se = ErrInternalServerError.WithCause(err)
		}
		return ResultWriter{Failure: AsWriter(se)}
	}
	return ResultWriter{Success: ok}
}

// WriterHandler adapts a Writer-returning endpoint func into a Handler,
// letting users write handlers in the Writer idiom instead of mutating
// *Response directly.
func WriterHandler(f func(req *Request, depot *Depot) (Writer, error)) Handler {
	return HandlerFunc(func(req *Request, depot *Depot, res *Response, _ *FlowCtrl) {
		w, err := f(req, depot)
		if err := WriteResult(w, err).Write(req, depot, res); err != nil {
			res.SetError(err)
		}
	})
}

