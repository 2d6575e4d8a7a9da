package air

// FlowCtrl is the per-request chain cursor described by the router's
// detected handler chain. It is created once per request and driven by the
// HyperHandler bridge and, recursively, by Hoops that want to delegate to
// the rest of the chain.
type FlowCtrl struct {
	handlers []Handler
	cursor   int
	ceased   bool

	catching    bool
	catchingSet bool
	wasStamped  bool
}

// newFlowCtrl builds a FlowCtrl over the handlers produced by a router
// match (hoops, in declared order, followed by the goal).
func newFlowCtrl(handlers []Handler) *FlowCtrl {
	return &FlowCtrl{handlers: handlers}
}

// HasNext reports whether a further handler remains in the chain.
func (f *FlowCtrl) HasNext() bool {
	return f.cursor < len(f.handlers)
}

// CallNext invokes the next handler in the chain, honoring the stamped
// predicate: the first call, unless SetCatching came before it, records the
// Response's current stamped state as a baseline; if the stamped state has
// changed since that baseline and catching is false, the cursor is forced
// to the end and CallNext returns false without invoking anything further.
func (f *FlowCtrl) CallNext(req *Request, depot *Depot, res *Response) bool {
	if f.ceased {
		return false
	}

	if !f.catchingSet {
		f.catchingSet = true
		f.wasStamped = res.Stamped()
	}

	if res.Stamped() != f.wasStamped && !f.catching {
		f.SkipRest()
		return false
	}

	if !f.HasNext() {
		return false
	}

	h := f.handlers[f.cursor]
	f.cursor++
	h.Handle(req, depot, res, f)

	return true
}

// SetCatching marks this FlowCtrl as catching, meaning it wants to observe
// the post-stamped Response across subsequent CallNext invocations instead
// of having the cursor forced to the end.
func (f *FlowCtrl) SetCatching(catching bool) {
	f.catching = catching
	f.catchingSet = true
}

// SkipRest sets the cursor to the end of the chain; no further handler
// will run via CallNext.
func (f *FlowCtrl) SkipRest() {
	f.cursor = len(f.handlers)
}

// Cease is sticky: it skips the rest of the chain and marks the FlowCtrl
// as ceased, so that subsequent CallNext calls return false immediately
// without re-evaluating the stamped predicate.
func (f *FlowCtrl) Cease() {
	f.SkipRest()
	f.ceased = true
}

// Ceased reports whether Cease was called.
func (f *FlowCtrl) Ceased() bool {
	return f.ceased
}
