package air

import (
	"net/url"
	"strings"
)

// PathState is the matcher's per-request scratch: the decoded path split
// into segments, a (row, col) cursor (col reserved for future
// sub-segment partial matches; the segment-level matcher in filter.go
// consumes whole segments per step so col is currently always 0 at
// filter boundaries), an insertion-ordered parameter map, an end_slash
// flag, and a once_ended tombstone distinguishing 404 from 405.
type PathState struct {
	Segments []string
	Row      int
	Col      int

	paramNames  []string
	paramValues []string

	EndSlash bool

	onceEnded bool
}

// newPathState percent-decodes path and splits it into segments.
func newPathState(path string) *PathState {
	decoded, err := url.PathUnescape(path)
	if err != nil {
		decoded = path
	}

	endSlash := len(decoded) > 1 && strings.HasSuffix(decoded, "/")
	trimmed := strings.Trim(decoded, "/")

	var segs []string
	if trimmed == "" {
		segs = []string{}
	} else {
		segs = strings.Split(trimmed, "/")
	}

	return &PathState{Segments: segs, EndSlash: endSlash}
}

// setParam records a param binding, preserving insertion order and
// overwriting any prior value under the same name (later segments win,
// matching the teacher's route-param precedence).
func (ps *PathState) setParam(name, value string) {
	for i, n := range ps.paramNames {
		if n == name {
			ps.paramValues[i] = value
			return
		}
	}
	ps.paramNames = append(ps.paramNames, name)
	ps.paramValues = append(ps.paramValues, value)
}

// atEnd reports whether the cursor has consumed every segment.
func (ps *PathState) atEnd() bool {
	return ps.Row >= len(ps.Segments)
}

// clone produces an independent copy of ps for backtracking: router.detect
// evaluates a node's filters against a clone, so a failed branch leaves
// the caller's PathState untouched.
func (ps *PathState) clone() *PathState {
	c := &PathState{
		Segments:  ps.Segments,
		Row:       ps.Row,
		Col:       ps.Col,
		EndSlash:  ps.EndSlash,
		onceEnded: ps.onceEnded,
	}
	c.paramNames = append([]string(nil), ps.paramNames...)
	c.paramValues = append([]string(nil), ps.paramValues...)
	return c
}

// Router is a tree node: an optional ordered list of filters (path,
// method, host, scheme, ad-hoc), a list of hoops applied to every
// descendant, an optional terminal goal, and an ordered list of children.
// Leaves-first matching order is encoded by child order, per §4.1.
type Router struct {
	filters []Filter
	hoops   []Handler
	goal    Handler

	children []*Router
}

// NewRouter returns an empty root Router.
func NewRouter() *Router {
	return &Router{}
}

// Push appends child to r's children, in order.
func (r *Router) Push(child *Router) *Router {
	r.children = append(r.children, child)
	return r
}

// WithPath returns a new child Router filtering on pattern, pushed onto r.
func (r *Router) WithPath(pattern string) *Router {
	child := &Router{filters: []Filter{pathFilterAdapter{pf: compilePathFilter(pattern)}}}
	r.Push(child)
	return child
}

// Filter appends an ad-hoc Filter to r.
func (r *Router) Filter(f Filter) *Router {
	r.filters = append(r.filters, f)
	return r
}

// Method restricts r to the given HTTP methods.
func (r *Router) Method(methods ...string) *Router {
	r.filters = append(r.filters, NewMethodFilter(methods...))
	return r
}

// Host restricts r to requests addressed to host.
func (r *Router) Host(host string) *Router {
	r.filters = append(r.filters, &HostFilter{Host: host})
	return r
}

// Scheme restricts r to requests using scheme.
func (r *Router) Scheme(scheme string) *Router {
	r.filters = append(r.filters, &SchemeFilter{Scheme: scheme})
	return r
}

// Hoop appends a middleware Handler to r, applied to r and all of r's
// descendants ahead of their goal.
func (r *Router) Hoop(h Handler) *Router {
	r.hoops = append(r.hoops, h)
	return r
}

// HoopFunc is the HandlerFunc convenience form of Hoop.
func (r *Router) HoopFunc(f func(*Request, *Depot, *Response, *FlowCtrl)) *Router {
	return r.Hoop(HandlerFunc(f))
}

// Goal sets r's terminal handler.
func (r *Router) Goal(h Handler) *Router {
	r.goal = h
	return r
}

// GoalFunc is the func(*Request, *Response) error convenience form of
// Goal.
func (r *Router) GoalFunc(f func(*Request, *Response) error) *Router {
	return r.Goal(WrapFunc(f))
}

// method-shorthand builders, per §4.1 ("convenience builders for method
// filters (get/post/…)").
func (r *Router) method(methods []string, pattern string, h Handler) *Router {
	return r.WithPath(pattern).Method(methods...).Goal(h)
}

func (r *Router) Get(pattern string, h Handler) *Router  { return r.method([]string{"GET"}, pattern, h) }
func (r *Router) Post(pattern string, h Handler) *Router { return r.method([]string{"POST"}, pattern, h) }
func (r *Router) Put(pattern string, h Handler) *Router  { return r.method([]string{"PUT"}, pattern, h) }
func (r *Router) Patch(pattern string, h Handler) *Router {
	return r.method([]string{"PATCH"}, pattern, h)
}
func (r *Router) Delete(pattern string, h Handler) *Router {
	return r.method([]string{"DELETE"}, pattern, h)
}
func (r *Router) Head(pattern string, h Handler) *Router { return r.method([]string{"HEAD"}, pattern, h) }
func (r *Router) Options(pattern string, h Handler) *Router {
	return r.method([]string{"OPTIONS"}, pattern, h)
}

// DetectMatched is the result of a successful Router.Detect: the
// accumulated hoops from root to the matching node, in declared order,
// followed by the terminal goal.
type DetectMatched struct {
	Handlers []Handler
}

// Detect performs the DFS match described in §4.1: children are visited
// leaves-first as inserted; at each node every filter runs against a
// cloned PathState and, on any failure, the branch backtracks without
// mutating the caller's PathState. A Goal only matches once the path
// cursor has reached the end. Detect returns (nil, false) on a miss; the
// caller inspects ps.onceEnded to choose between 404 and 405.
func (r *Router) Detect(req *Request, ps *PathState) (*DetectMatched, bool) {
	matched, ok := r.detect(req, ps, nil)
	if !ok {
		return nil, false
	}
	return &DetectMatched{Handlers: matched}, true
}

func (r *Router) detect(req *Request, ps *PathState, acc []Handler) ([]Handler, bool) {
	trial := ps.clone()

	for _, f := range r.filters {
		if !f.Match(req, trial) {
			ps.onceEnded = ps.onceEnded || trial.onceEnded
			return nil, false
		}
	}

	chain := append(append([]Handler(nil), acc...), r.hoops...)

	for _, child := range r.children {
		if handlers, ok := child.detect(req, trial, chain); ok {
			*ps = *trial
			return handlers, true
		}
	}

	if r.goal != nil && trial.atEnd() {
		*ps = *trial
		return append(chain, r.goal), true
	}

	ps.onceEnded = ps.onceEnded || trial.onceEnded
	return nil, false
}

// ParamValues exposes the params bound during Detect, in the order they
// were bound, so the caller (the HyperHandler bridge) can copy them onto
// the Request.
func (ps *PathState) ParamValues() ([]string, []string) {
	return ps.paramNames, ps.paramValues
}
