package air

import (
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strconv"
	"strings"
	"sync"
)

// Request is the mutable inbound message handed to every Handler in a
// chain. It is constructed by a protocol serve routine from inbound bytes,
// owned exclusively by the task serving the request, and either consumed
// (Body taken) or dropped when serving ends.
type Request struct {
	Air *Air

	Method  string
	Scheme  string
	Host    string
	Path    string
	RawPath string
	Version string

	Header http.Header
	Body   Body

	RemoteAddr string
	LocalAddr  string

	routeParamNames  []string
	routeParamValues []string

	params []*RequestParam

	queryOnce sync.Once
	query     url.Values

	formOnce sync.Once
	formErr  error
	form     url.Values
	files    map[string][]*multipart.FileHeader

	payloadOnce sync.Once
	payloadErr  error
	payload     []byte

	cookiesOnce sync.Once
	cookies     []*http.Cookie

	hr *http.Request
}

// newRequest returns an empty *Request ready for reset.
func newRequest(a *Air) *Request {
	return &Request{Air: a}
}

// reset clears req for reuse from a sync.Pool and populates it from hr.
func (req *Request) reset(a *Air, hr *http.Request) {
	*req = Request{Air: a}

	req.Method = hr.Method
	req.Host = hr.Host
	req.Path = hr.URL.Path
	req.RawPath = hr.URL.RawPath
	req.Version = hr.Proto
	req.Header = hr.Header
	req.RemoteAddr = hr.RemoteAddr
	req.hr = hr

	if hr.TLS != nil {
		req.Scheme = "https"
	} else {
		req.Scheme = "http"
	}

	if hr.Body != nil {
		req.Body.SetBoxed(hr.Body)
	}
}

// HTTPRequest returns the underlying *http.Request, when the connection
// that produced req is backed by net/http (h1/h2/h2c via x/net/http2).
// QUIC-backed requests return nil.
func (req *Request) HTTPRequest() *http.Request {
	return req.hr
}

// ContentType returns the request's Content-Type header, without
// parameters.
func (req *Request) ContentType() string {
	ct := req.Header.Get("Content-Type")
	if ct == "" {
		return ""
	}
	mt, _, err := mime.ParseMediaType(ct)
	if err != nil {
		return ct
	}
	return mt
}

// growParams pre-allocates capacity in params without growing its length.
func (req *Request) growParams(n int) {
	if cap(req.params)-len(req.params) >= n {
		return
	}
	grown := make([]*RequestParam, len(req.params), len(req.params)+n)
	copy(grown, req.params)
	req.params = grown
}

// setRouteParam appends a route-matched parameter binding. Called by the
// router while walking a matched chain.
func (req *Request) setRouteParam(name, value string) {
	req.routeParamNames = append(req.routeParamNames, name)
	req.routeParamValues = append(req.routeParamValues, value)
}

// parseRouteParams materializes the route params recorded during matching
// into req.params, route params first (so they take priority over query
// params of the same name), then clears the scratch slices.
func (req *Request) parseRouteParams() {
	if req.routeParamNames == nil {
		return
	}
	req.growParams(len(req.routeParamNames))
	for i, name := range req.routeParamNames {
		req.addParamValue(name, req.routeParamValues[i], nil)
	}
	req.routeParamNames = nil
	req.routeParamValues = nil
}

// parseOtherParams lazily parses the query string and, if the method and
// Content-Type call for it, the request body as a form, merging both into
// req.params.
func (req *Request) parseOtherParams() {
	for name, values := range req.Queries() {
		for _, v := range values {
			req.addParamValue(name, v, nil)
		}
	}

	if req.Method == http.MethodGet || req.Method == http.MethodHead {
		return
	}

	switch req.ContentType() {
	case "application/x-www-form-urlencoded":
		form, _ := req.Form()
		for name, values := range form {
			for _, v := range values {
				req.addParamValue(name, v, nil)
			}
		}
	case "multipart/form-data":
		form, files, _ := req.MultipartForm()
		for name, values := range form {
			for _, v := range values {
				req.addParamValue(name, v, nil)
			}
		}
		for name, fhs := range files {
			for _, fh := range fhs {
				req.addParamValue(name, "", fh)
			}
		}
	}
}

func (req *Request) addParamValue(name, value string, fh *multipart.FileHeader) {
	rv := &RequestParamValue{s: &value}
	if fh != nil {
		rv.f = fh
		rv.s = nil
	}
	for _, p := range req.params {
		if p.Name == name {
			p.Values = append(p.Values, rv)
			return
		}
	}
	req.growParams(1)
	req.params = append(req.params, &RequestParam{Name: name, Values: []*RequestParamValue{rv}})
}

// Param returns the named route or query parameter, or nil if absent.
func (req *Request) Param(name string) *RequestParam {
	req.parseRouteParams()
	for _, p := range req.params {
		if p.Name == name {
			return p
		}
	}
	req.parseOtherParams()
	for _, p := range req.params {
		if p.Name == name {
			return p
		}
	}
	return nil
}

// Params returns every route and query parameter bound to req.
func (req *Request) Params() []*RequestParam {
	req.parseRouteParams()
	req.parseOtherParams()
	return req.params
}

// Queries returns the parsed, cached query multimap.
func (req *Request) Queries() url.Values {
	req.queryOnce.Do(func() {
		if req.hr != nil {
			req.query = req.hr.URL.Query()
		} else {
			req.query = url.Values{}
		}
	})
	return req.query
}

// Query returns the first value of the named query parameter.
func (req *Request) Query(name string) string {
	return req.Queries().Get(name)
}

// Cookies returns the request's cookie jar, parsed on first access.
func (req *Request) Cookies() []*http.Cookie {
	req.cookiesOnce.Do(func() {
		if req.hr != nil {
			req.cookies = req.hr.Cookies()
		}
	})
	return req.cookies
}

// Cookie returns the named cookie, or nil if absent.
func (req *Request) Cookie(name string) *http.Cookie {
	for _, c := range req.Cookies() {
		if c.Name == name {
			return c
		}
	}
	return nil
}

// Payload returns the raw request body, read and cached on first call.
// Subsequent calls return the same bytes without re-reading the body, per
// invariant 3 in §8.
func (req *Request) Payload() ([]byte, error) {
	req.payloadOnce.Do(func() {
		if req.Body.IsNone() {
			return
		}
		switch req.Body.Kind() {
		case BodyOnce:
			req.payload = req.Body.Once()
		case BodyBoxed:
			req.payload, req.payloadErr = io.ReadAll(req.Body.Boxed())
			if req.payloadErr == nil {
				req.Body.SetOnce(req.payload)
			}
		}
	})
	return req.payload, req.payloadErr
}

// Form returns the parsed application/x-www-form-urlencoded body, cached
// on first call.
func (req *Request) Form() (url.Values, error) {
	req.formOnce.Do(func() {
		payload, err := req.Payload()
		if err != nil {
			req.formErr = err
			return
		}
		req.form, req.formErr = url.ParseQuery(string(payload))
	})
	return req.form, req.formErr
}

// MultipartForm parses a multipart/form-data body, returning buffered
// string fields and file headers for each part with a filename, per the
// form parsing contract in §4.3. The whole-request size is bounded by
// Air.MaxRequestBodySize; exceeding it surfaces a ParseErrOther wrapping
// multipart.ErrMessageTooLarge.
func (req *Request) MultipartForm() (url.Values, map[string][]*multipart.FileHeader, error) {
	req.formOnce.Do(func() {
		ct := req.Header.Get("Content-Type")
		mt, params, perr := mime.ParseMediaType(ct)
		if perr != nil || mt != "multipart/form-data" {
			req.formErr = &ParseError{Kind: ParseErrNotMultipart, Cause: perr}
			return
		}

		boundary, ok := params["boundary"]
		if !ok {
			req.formErr = &ParseError{Kind: ParseErrNotMultipart}
			return
		}

		maxSize := int64(32 << 20)
		if req.Air != nil && req.Air.MaxRequestBodySize > 0 {
			maxSize = req.Air.MaxRequestBodySize
		}

		var body io.Reader
		if req.Body.Kind() == BodyBoxed {
			body = req.Body.Boxed()
		} else {
			body = &byteReader{b: req.Body.Once()}
		}

		lr := &io.LimitedReader{R: body, N: maxSize + 1}
		mr := multipart.NewReader(lr, boundary)
		form, ferr := mr.ReadForm(maxSize)
		if lr.N == 0 {
			if form != nil {
				form.RemoveAll()
			}
			ferr = multipart.ErrMessageTooLarge
		}
		if ferr == multipart.ErrMessageTooLarge {
			req.formErr = &ParseError{Kind: ParseErrOther, Cause: ferr}
			return
		}
		if ferr != nil {
			req.formErr = &ParseError{Kind: ParseErrNotFormData, Cause: ferr}
			return
		}

		req.form = form.Value
		req.files = form.File
	})
	return req.form, req.files, req.formErr
}

// File returns the first uploaded file under name.
func (req *Request) File(name string) (*multipart.FileHeader, error) {
	_, files, err := req.MultipartForm()
	if err != nil {
		return nil, err
	}
	fhs := files[name]
	if len(fhs) == 0 {
		return nil, http.ErrMissingFile
	}
	return fhs[0], nil
}

// Files returns every uploaded file under name.
func (req *Request) Files(name string) ([]*multipart.FileHeader, error) {
	_, files, err := req.MultipartForm()
	if err != nil {
		return nil, err
	}
	return files[name], nil
}

// TakeBody removes the current Body from req, returning the Body to
// BodyNone.
func (req *Request) TakeBody() Body {
	return req.Body.Take()
}

// ReplaceBody sets req's Body.
func (req *Request) ReplaceBody(b Body) {
	req.Body = b
}

// LocalizedString returns the localized string for key using the
// Accept-Language header, or key itself when the Air has no locales
// configured.
func (req *Request) LocalizedString(key string) string {
	if req.Air == nil {
		return key
	}
	i := req.Air.i18nManager()
	if i == nil {
		return key
	}
	return i.localize(req.Header.Get("Accept-Language"), key)
}

// RequestParam is one named route or query parameter, possibly holding
// more than one value (repeated query/form keys).
type RequestParam struct {
	Name   string
	Values []*RequestParamValue
}

// Value returns the first value of p, or an empty RequestParamValue if p
// has none.
func (p *RequestParam) Value() *RequestParamValue {
	if p == nil || len(p.Values) == 0 {
		return &RequestParamValue{}
	}
	return p.Values[0]
}

// RequestParamValue is a single, lazily-typed parameter value.
type RequestParamValue struct {
	s *string
	f *multipart.FileHeader

	b   *bool
	i64 *int64
	f64 *float64
}

// String returns v as a string.
func (v *RequestParamValue) String() string {
	if v.s == nil {
		return ""
	}
	return *v.s
}

// Bool returns v parsed as a bool.
func (v *RequestParamValue) Bool() (bool, error) {
	if v.b != nil {
		return *v.b, nil
	}
	b, err := strconv.ParseBool(v.String())
	if err != nil {
		return false, &ParseError{Kind: ParseErrParseFromStr, Cause: err}
	}
	v.b = &b
	return b, nil
}

// Int64 returns v parsed as an int64.
func (v *RequestParamValue) Int64() (int64, error) {
	if v.i64 != nil {
		return *v.i64, nil
	}
	i, err := strconv.ParseInt(v.String(), 10, 64)
	if err != nil {
		return 0, &ParseError{Kind: ParseErrParseFromStr, Cause: err}
	}
	v.i64 = &i
	return i, nil
}

// Int returns v parsed as an int.
func (v *RequestParamValue) Int() (int, error) {
	i, err := v.Int64()
	return int(i), err
}

// Float64 returns v parsed as a float64.
func (v *RequestParamValue) Float64() (float64, error) {
	if v.f64 != nil {
		return *v.f64, nil
	}
	f, err := strconv.ParseFloat(v.String(), 64)
	if err != nil {
		return 0, &ParseError{Kind: ParseErrParseFromStr, Cause: err}
	}
	v.f64 = &f
	return f, nil
}

// File returns the uploaded file behind v, or http.ErrMissingFile if v
// does not hold a file.
func (v *RequestParamValue) File() (*multipart.FileHeader, error) {
	if v.f == nil {
		return nil, http.ErrMissingFile
	}
	return v.f, nil
}

// byteReader adapts a []byte to io.Reader without copying, used for
// bodies that have already been buffered via Payload().
type byteReader struct {
	b []byte
	i int
}

func (r *byteReader) Read(p []byte) (int, error) {
	if r.i >= len(r.b) {
		return 0, io.EOF
	}
	n := copy(p, r.b[r.i:])
	r.i += n
	return n, nil
}

// CanonicalHeaderKey re-exports textproto.CanonicalMIMEHeaderKey for
// callers building header multimaps outside of net/http.
func CanonicalHeaderKey(s string) string {
	return textproto.CanonicalMIMEHeaderKey(s)
}

// trimSuffixSlash reports whether s ends in a trailing slash (beyond the
// root "/"), stripping it if so.
func trimSuffixSlash(s string) (string, bool) {
	if len(s) > 1 && strings.HasSuffix(s, "/") {
		return s[:len(s)-1], true
	}
	return s, false
}
