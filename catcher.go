package air

import (
	"bytes"
	"encoding/json"
	"encoding/xml"
	"fmt"
	"strings"

	"golang.org/x/text/language"
)

// Catcher is an ordered list of handlers invoked when no user handler has
// stamped the Response, per §4.8. The first Handler that stamps the
// Response wins.
type Catcher []Handler

// Handle implements the Handler interface: it runs each catcher in order
// until the Response becomes stamped.
func (c Catcher) Handle(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
	for _, h := range c {
		if res.Stamped() {
			return
		}
		h.Handle(req, depot, res, flow)
	}
}

// DefaultCatcher is the Catcher installed on every *Air unless overridden,
// rendering a content-negotiated body (HTML/JSON/XML/plain text) derived
// from the response's status, or 404 if none was set.
var DefaultCatcher = Catcher{HandlerFunc(defaultCatcherHandle)}

var supportedCatcherTags = []language.Tag{
	language.English,
}

func defaultCatcherHandle(req *Request, _ *Depot, res *Response, _ *FlowCtrl) {
	se, _ := statusErrorFromResponse(res)

	accept := req.Header.Get("Accept")
	matcher := language.NewMatcher(supportedCatcherTags)
	_, _, _ = matcher.Match(parseAcceptLanguage(req.Header.Get("Accept-Language"))...)

	switch {
	case strings.Contains(accept, "application/json"), strings.Contains(accept, "*/*") && accept != "":
		writeCatcherJSON(res, se)
	case strings.Contains(accept, "application/xml"), strings.Contains(accept, "text/xml"):
		writeCatcherXML(res, se)
	case strings.Contains(accept, "text/html"):
		writeCatcherHTML(res, se)
	default:
		writeCatcherText(res, se)
	}
}

// statusErrorFromResponse derives the StatusError to render: the one
// already held by the Body if present, otherwise one synthesized from the
// status code (defaulting to 404, per §4.1's "match success with empty
// chain" and "match miss" failure semantics).
func statusErrorFromResponse(res *Response) (*StatusError, bool) {
	if res.Body.Kind() == BodyError {
		if se, ok := res.Body.Error().(*StatusError); ok {
			return se, true
		}
	}

	code := res.StatusCode
	if code == 0 {
		code = res.routeMissCode
	}
	if code == 0 {
		code = 404
	}
	return NewStatusError(code), false
}

func writeCatcherJSON(res *Response, se *StatusError) {
	type errBody struct {
		Code   int    `json:"code"`
		Name   string `json:"name"`
		Brief  string `json:"brief"`
		Detail string `json:"detail,omitempty"`
		Cause  string `json:"cause,omitempty"`
	}
	body := errBody{Code: se.Code, Name: se.Name, Brief: se.Brief, Detail: se.Detail}
	if se.Cause != nil && res.Air != nil && res.Air.DebugMode {
		body.Cause = se.Cause.Error()
	}
	b, _ := json.Marshal(struct {
		Error errBody `json:"error"`
	}{Error: body})
	res.StatusCode = se.Code
	res.Header.Set("Content-Type", "application/json; charset=utf-8")
	res.Body.SetOnce(b)
}

func writeCatcherXML(res *Response, se *StatusError) {
	type errBody struct {
		XMLName struct{} `xml:"error"`
		Code    int      `xml:"code"`
		Name    string   `xml:"name"`
		Brief   string   `xml:"brief"`
		Detail  string   `xml:"detail,omitempty"`
	}
	b, _ := xml.Marshal(errBody{Code: se.Code, Name: se.Name, Brief: se.Brief, Detail: se.Detail})
	res.StatusCode = se.Code
	res.Header.Set("Content-Type", "application/xml; charset=utf-8")
	res.Body.SetOnce(append([]byte(xml.Header), b...))
}

func writeCatcherHTML(res *Response, se *StatusError) {
	buf := &bytes.Buffer{}
	fmt.Fprintf(buf, "<!DOCTYPE html><html><head><title>%d %s</title></head>", se.Code, se.Name)
	fmt.Fprintf(buf, "<body><h1>%d %s</h1><p>%s</p></body></html>", se.Code, se.Name, se.Brief)
	res.StatusCode = se.Code
	res.Header.Set("Content-Type", "text/html; charset=utf-8")
	res.Body.SetOnce(buf.Bytes())
}

func writeCatcherText(res *Response, se *StatusError) {
	res.StatusCode = se.Code
	res.Header.Set("Content-Type", "text/plain; charset=utf-8")
	res.Body.SetOnce([]byte(fmt.Sprintf("%d %s: %s", se.Code, se.Name, se.Brief)))
}

// parseAcceptLanguage turns an Accept-Language header value into a slice
// of language.Tag for matching, ignoring q-weights beyond ordering.
func parseAcceptLanguage(header string) []language.Tag {
	if header == "" {
		return nil
	}
	tags, _, err := language.ParseAcceptLanguage(header)
	if err != nil {
		return nil
	}
	return tags
}
