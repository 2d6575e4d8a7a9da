package air

import (
	"net/url"
	"regexp"
	"strings"
)

// shorthand patterns named per §4.1 ("{name:num}" etc).
var patternShorthands = map[string]string{
	"num":       `[0-9]+`,
	"alpha":     `[A-Za-z]+`,
	"alphanum":  `[A-Za-z0-9]+`,
	"alpha4":    `[A-Za-z]{4}`,
	"alphanum8": `[A-Za-z0-9]{8}`,
}

// catchAllKind distinguishes "{*rest}" (one-or-more) from "{**rest}"
// (zero-or-more), per §4.1.
type catchAllKind int

const (
	notCatchAll catchAllKind = iota
	catchAllOneOrMore
	catchAllZeroOrMore
)

// segmentPattern is one "/"-delimited piece of a registered path pattern,
// compiled once at Router construction time.
type segmentPattern struct {
	raw      string
	literal  bool
	catchAll catchAllKind
	catchVar string

	re         *regexp.Regexp
	paramNames []string
}

// compileSegmentPattern parses one path segment (no "/") into a
// segmentPattern. It supports pure literals, a single "{name}"/"{name:re}"
// token, "{*name}"/"{**name}" catch-alls, and multiple "{…}" tokens mixed
// with literal text within the same segment (left to right), per §4.1.
func compileSegmentPattern(seg string) *segmentPattern {
	if !strings.Contains(seg, "{") {
		return &segmentPattern{raw: seg, literal: true}
	}

	if strings.HasPrefix(seg, "{*") && strings.HasSuffix(seg, "}") {
		inner := seg[2 : len(seg)-1]
		kind := catchAllOneOrMore
		if strings.HasPrefix(inner, "*") {
			inner = inner[1:]
			kind = catchAllZeroOrMore
		}
		return &segmentPattern{raw: seg, catchAll: kind, catchVar: inner}
	}

	var b strings.Builder
	var names []string
	i := 0
	for i < len(seg) {
		if seg[i] != '{' {
			j := i
			for j < len(seg) && seg[j] != '{' {
				j++
			}
			b.WriteString(regexp.QuoteMeta(seg[i:j]))
			i = j
			continue
		}

		end := strings.IndexByte(seg[i:], '}')
		if end < 0 {
			b.WriteString(regexp.QuoteMeta(seg[i:]))
			break
		}
		token := seg[i+1 : i+end]
		i += end + 1

		name := token
		pattern := `[^/]+`
		if idx := strings.IndexByte(token, ':'); idx >= 0 {
			name = token[:idx]
			constraint := token[idx+1:]
			if sh, ok := patternShorthands[constraint]; ok {
				pattern = sh
			} else {
				pattern = constraint
			}
		}

		names = append(names, name)
		b.WriteString("(" + pattern + ")")
	}

	re := regexp.MustCompile("^" + b.String() + "$")
	return &segmentPattern{raw: seg, re: re, paramNames: names}
}

// match attempts to match text against sp, binding any params into ps.
func (sp *segmentPattern) match(text string, ps *PathState) bool {
	if sp.literal {
		return sp.raw == text
	}
	m := sp.re.FindStringSubmatch(text)
	if m == nil {
		return false
	}
	for i, name := range sp.paramNames {
		ps.setParam(name, m[i+1])
	}
	return true
}

// PathFilter is a Filter matching an ordered run of path segments against
// the current PathState cursor, produced by Router.WithPath.
type PathFilter struct {
	segments []*segmentPattern
}

// compilePathFilter parses a "/"-delimited path pattern into a PathFilter.
// Leading/trailing slashes are insignificant; "" and "/" both produce a
// filter with zero segments, which matches any state without advancing
// the cursor.
func compilePathFilter(pattern string) *PathFilter {
	pattern = strings.Trim(pattern, "/")
	if pattern == "" {
		return &PathFilter{}
	}
	parts := strings.Split(pattern, "/")
	segs := make([]*segmentPattern, len(parts))
	for i, p := range parts {
		segs[i] = compileSegmentPattern(p)
	}
	return &PathFilter{segments: segs}
}

// Match implements the Filter interface.
func (pf *PathFilter) Match(ps *PathState) bool {
	for _, sp := range pf.segments {
		if sp.catchAll != notCatchAll {
			remaining := ps.Segments[ps.Row:]
			if sp.catchAll == catchAllOneOrMore && len(remaining) == 0 {
				return false
			}
			ps.setParam(sp.catchVar, strings.Join(remaining, "/"))
			ps.Row = len(ps.Segments)
			return true
		}

		if ps.Row >= len(ps.Segments) {
			return false
		}
		if !sp.match(ps.Segments[ps.Row], ps) {
			return false
		}
		ps.Row++
	}
	return true
}

// Filter is a predicate evaluated against a Request and the matcher's
// PathState while walking the router tree, per §4.1.
type Filter interface {
	Match(req *Request, ps *PathState) bool
}

// pathFilterAdapter lets a *PathFilter (which only inspects PathState)
// satisfy Filter.
type pathFilterAdapter struct{ pf *PathFilter }

// Match implements the Filter interface.
func (a pathFilterAdapter) Match(_ *Request, ps *PathState) bool {
	return a.pf.Match(ps)
}

// MethodFilter matches the Request method against a fixed set. A mismatch
// at an otherwise-matching node sets PathState.onceEnded so the server
// renders 405 instead of 404, per §4.1.
type MethodFilter struct {
	Methods map[string]bool
}

// NewMethodFilter returns a MethodFilter accepting any of methods.
func NewMethodFilter(methods ...string) *MethodFilter {
	m := make(map[string]bool, len(methods))
	for _, meth := range methods {
		m[strings.ToUpper(meth)] = true
	}
	return &MethodFilter{Methods: m}
}

// Match implements the Filter interface.
func (f *MethodFilter) Match(req *Request, ps *PathState) bool {
	if f.Methods[req.Method] {
		return true
	}
	ps.onceEnded = true
	return false
}

// HostFilter matches the Request's Host header/authority, with any port
// removed, exactly against Host.
type HostFilter struct{ Host string }

// Match implements the Filter interface.
func (f *HostFilter) Match(req *Request, _ *PathState) bool {
	host := req.Host
	if h, _, err := splitHostPort(host); err == nil {
		host = h
	}
	return host == f.Host
}

// SchemeFilter matches the Request's scheme exactly ("http" or "https").
type SchemeFilter struct{ Scheme string }

// Match implements the Filter interface.
func (f *SchemeFilter) Match(req *Request, _ *PathState) bool {
	return req.Scheme == f.Scheme
}

// FuncFilter adapts a plain func to a Filter, for one-off ad-hoc filters.
type FuncFilter func(req *Request, ps *PathState) bool

// Match implements the Filter interface.
func (f FuncFilter) Match(req *Request, ps *PathState) bool {
	return f(req, ps)
}

// splitHostPort splits hostport into host and port through url.URL,
// tolerating a bare host with no port. Its error is always nil.
func splitHostPort(hostport string) (string, string, error) {
	if !strings.Contains(hostport, ":") {
		return hostport, "", nil
	}
	u := &url.URL{Host: hostport}
	return u.Hostname(), u.Port(), nil
}
