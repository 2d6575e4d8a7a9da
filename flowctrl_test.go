package air

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlowCtrlCallNextRunsHandlersInOrder(t *testing.T) {
	var order []int
	handlers := []Handler{
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			order = append(order, 1)
			flow.CallNext(req, depot, res)
		}),
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			order = append(order, 2)
		}),
	}

	flow := newFlowCtrl(handlers)
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	flow.CallNext(req, newDepot(), res)

	assert.Equal(t, []int{1, 2}, order)
}

func TestFlowCtrlHasNext(t *testing.T) {
	flow := newFlowCtrl([]Handler{HandlerFunc(func(*Request, *Depot, *Response, *FlowCtrl) {})})
	assert.True(t, flow.HasNext())
	req := newTestRequest("GET", "/")
	flow.CallNext(req, newDepot(), newTestResponse(req))
	assert.False(t, flow.HasNext())
}

func TestFlowCtrlSkipRestStopsChain(t *testing.T) {
	called := false
	handlers := []Handler{
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			flow.SkipRest()
		}),
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			called = true
		}),
	}

	flow := newFlowCtrl(handlers)
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	flow.CallNext(req, newDepot(), res)
	assert.False(t, flow.HasNext())

	ok := flow.CallNext(req, newDepot(), res)
	assert.False(t, ok)
	assert.False(t, called)
}

func TestFlowCtrlCeaseIsSticky(t *testing.T) {
	handlers := []Handler{
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			flow.Cease()
		}),
	}

	flow := newFlowCtrl(handlers)
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	flow.CallNext(req, newDepot(), res)

	assert.True(t, flow.Ceased())
	assert.False(t, flow.CallNext(req, newDepot(), res))
}

func TestFlowCtrlForcesCursorToEndWhenStampedMidChainAndNotCatching(t *testing.T) {
	var secondCalled bool
	handlers := []Handler{
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			res.SetStatus(500)
			flow.CallNext(req, depot, res)
		}),
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			secondCalled = true
		}),
	}

	flow := newFlowCtrl(handlers)
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	flow.CallNext(req, newDepot(), res)

	assert.False(t, secondCalled)
	assert.False(t, flow.HasNext())
}

func TestFlowCtrlCatchingObservesPostStampedResponse(t *testing.T) {
	var secondCalled bool
	handlers := []Handler{
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			flow.SetCatching(true)
			res.SetStatus(500)
			flow.CallNext(req, depot, res)
		}),
		HandlerFunc(func(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
			secondCalled = true
		}),
	}

	flow := newFlowCtrl(handlers)
	req := newTestRequest("GET", "/")
	res := newTestResponse(req)
	flow.CallNext(req, newDepot(), res)

	assert.True(t, secondCalled)
}
