package air

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRequest(method, path string) *Request {
	req := newRequest(nil)
	req.Method = method
	req.Path = path
	req.Header = http.Header{}
	return req
}

func newTestResponse(req *Request) *Response {
	res := newResponse(nil)
	res.reset(nil, req, nil)
	return res
}

func TestRouterBasicGet(t *testing.T) {
	r := NewRouter()
	r.Get("/", WrapFunc(func(req *Request, res *Response) error {
		return res.WriteString("hello")
	}))

	req := newTestRequest("GET", "/")
	ps := newPathState(req.Path)
	matched, ok := r.Detect(req, ps)
	require.True(t, ok)
	require.Len(t, matched.Handlers, 1)
}

func TestRouterRootNoGoalMisses(t *testing.T) {
	r := NewRouter()

	req := newTestRequest("GET", "/")
	ps := newPathState(req.Path)
	_, ok := r.Detect(req, ps)
	assert.False(t, ok)
}

func TestRouterParamExtraction(t *testing.T) {
	r := NewRouter()
	r.Get("/users/{id:num}", WrapFunc(func(req *Request, res *Response) error {
		return nil
	}))

	req := newTestRequest("GET", "/users/42")
	ps := newPathState(req.Path)
	matched, ok := r.Detect(req, ps)
	require.True(t, ok)
	require.Len(t, matched.Handlers, 1)

	names, values := ps.ParamValues()
	require.Len(t, names, 1)
	assert.Equal(t, "id", names[0])
	assert.Equal(t, "42", values[0])
}

func TestRouterParamConstraintMismatch(t *testing.T) {
	r := NewRouter()
	r.Get("/users/{id:num}", WrapFunc(func(req *Request, res *Response) error {
		return nil
	}))

	req := newTestRequest("GET", "/users/abc")
	ps := newPathState(req.Path)
	_, ok := r.Detect(req, ps)
	assert.False(t, ok)
}

func TestRouterMethodMismatchSetsOnceEnded(t *testing.T) {
	r := NewRouter()
	r.Get("/users", WrapFunc(func(req *Request, res *Response) error { return nil }))

	req := newTestRequest("POST", "/users")
	ps := newPathState(req.Path)
	_, ok := r.Detect(req, ps)
	assert.False(t, ok)
	assert.True(t, ps.onceEnded)
}

func TestRouterCatchAllOneOrMore(t *testing.T) {
	r := NewRouter()
	r.WithPath("static/{*p}").Method("GET").Goal(WrapFunc(func(req *Request, res *Response) error {
		return nil
	}))

	req := newTestRequest("GET", "/static/a/b.txt")
	ps := newPathState(req.Path)
	_, ok := r.Detect(req, ps)
	require.True(t, ok)

	names, values := ps.ParamValues()
	require.Len(t, names, 1)
	assert.Equal(t, "p", names[0])
	assert.Equal(t, "a/b.txt", values[0])
}

func TestRouterCatchAllRequiresAtLeastOneSegment(t *testing.T) {
	r := NewRouter()
	r.WithPath("static/{*p}").Method("GET").Goal(WrapFunc(func(req *Request, res *Response) error {
		return nil
	}))

	req := newTestRequest("GET", "/static")
	ps := newPathState(req.Path)
	_, ok := r.Detect(req, ps)
	assert.False(t, ok)
}

func TestRouterLeavesFirstOrderKeepsEarlierChild(t *testing.T) {
	r := NewRouter()
	var got string

	r.WithPath("users/{id}").Method("GET").Goal(WrapFunc(func(req *Request, res *Response) error {
		got = "param"
		return nil
	}))
	r.WithPath("users/me").Method("GET").Goal(WrapFunc(func(req *Request, res *Response) error {
		got = "literal"
		return nil
	}))

	req := newTestRequest("GET", "/users/me")
	ps := newPathState(req.Path)
	matched, ok := r.Detect(req, ps)
	require.True(t, ok)

	res := newTestResponse(req)
	matched.Handlers[len(matched.Handlers)-1].Handle(req, newDepot(), res, newFlowCtrl(nil))
	assert.Equal(t, "param", got, "children are tried in insertion order; the earlier-pushed pattern wins")
}

func TestRouterHoopsAccumulateRootToLeaf(t *testing.T) {
	r := NewRouter()
	var order []string

	r.Hoop(HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
		order = append(order, "root")
		flow.CallNext(req, depot, res)
	}))

	child := r.WithPath("a")
	child.Hoop(HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
		order = append(order, "child")
		flow.CallNext(req, depot, res)
	}))
	child.Method("GET").Goal(WrapFunc(func(req *Request, res *Response) error {
		order = append(order, "goal")
		return nil
	}))

	req := newTestRequest("GET", "/a")
	ps := newPathState(req.Path)
	matched, ok := r.Detect(req, ps)
	require.True(t, ok)

	flow := newFlowCtrl(matched.Handlers)
	res := newTestResponse(req)
	for flow.HasNext() {
		if !flow.CallNext(req, newDepot(), res) {
			break
		}
	}
	assert.Equal(t, []string{"root", "child", "goal"}, order)
}

func TestPathStateEmptyPath(t *testing.T) {
	ps := newPathState("/")
	assert.Empty(t, ps.Segments)
	assert.True(t, ps.atEnd())
}

func TestPathStateTrailingSlash(t *testing.T) {
	ps := newPathState("/a/b/")
	assert.True(t, ps.EndSlash)
	assert.Equal(t, []string{"a", "b"}, ps.Segments)
}

func TestPathStatePercentDecoding(t *testing.T) {
	ps := newPathState("/a%20b")
	assert.Equal(t, []string{"a b"}, ps.Segments)
}
