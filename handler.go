package air

// Handler processes a Request within a chain. Implementations must not
// retain req, depot or res beyond the call.
type Handler interface {
	Handle(req *Request, depot *Depot, res *Response, flow *FlowCtrl)
}

// HandlerFunc adapts a plain func to a Handler.
type HandlerFunc func(req *Request, depot *Depot, res *Response, flow *FlowCtrl)

// Handle implements the Handler interface.
func (f HandlerFunc) Handle(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
	f(req, depot, res, flow)
}

// Skipper is a predicate that lets a Hoop bypass its own work for a given
// request.
type Skipper func(req *Request, depot *Depot) bool

// DefaultSkipper never skips.
func DefaultSkipper(*Request, *Depot) bool {
	return false
}

// Handlers is a tuple of handlers that is itself a Handler: it invokes each
// element in order, short-circuiting as soon as the Response is stamped.
type Handlers []Handler

// Handle implements the Handler interface.
func (hs Handlers) Handle(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
	for _, h := range hs {
		if res.Stamped() {
			return
		}
		h.Handle(req, depot, res, flow)
	}
}

// simpleHandler wraps a func(*Request, *Response) error, the shape most
// endpoint handlers are written against, into a full Handler. Errors are
// rendered via SetError, which flips the Response into its Error body.
type simpleHandler func(req *Request, res *Response) error

// Handle implements the Handler interface.
func (f simpleHandler) Handle(req *Request, depot *Depot, res *Response, flow *FlowCtrl) {
	if err := f(req, res); err != nil {
		res.SetError(err)
	}
}

// WrapFunc adapts the common func(*Request, *Response) error shape into a
// Handler usable by a Router.
func WrapFunc(f func(req *Request, res *Response) error) Handler {
	return simpleHandler(f)
}
