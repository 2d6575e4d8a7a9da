package air

// Group is a Router scoped under a path prefix, carrying its own hoops
// that apply to every route registered on it, grounded on the teacher's
// Group generalized to the new Router/Handler model.
type Group struct {
	router *Router
}

// Group returns a Group rooted at prefix under r, with hoops applied to
// every route registered on the returned Group (and its own sub-groups).
func (r *Router) Group(prefix string, hoops ...Handler) *Group {
	child := r.WithPath(prefix)
	for _, h := range hoops {
		child.Hoop(h)
	}
	return &Group{router: child}
}

// Group returns a sub-Group nested under g at prefix, inheriting g's hoops
// plus any additional ones given.
func (g *Group) Group(prefix string, hoops ...Handler) *Group {
	return g.router.Group(prefix, hoops...)
}

// Hoop appends a middleware Handler applied to every route under g.
func (g *Group) Hoop(h Handler) *Group {
	g.router.Hoop(h)
	return g
}

func (g *Group) Get(pattern string, h Handler) *Router     { return g.router.Get(pattern, h) }
func (g *Group) Post(pattern string, h Handler) *Router    { return g.router.Post(pattern, h) }
func (g *Group) Put(pattern string, h Handler) *Router     { return g.router.Put(pattern, h) }
func (g *Group) Patch(pattern string, h Handler) *Router   { return g.router.Patch(pattern, h) }
func (g *Group) Delete(pattern string, h Handler) *Router  { return g.router.Delete(pattern, h) }
func (g *Group) Head(pattern string, h Handler) *Router    { return g.router.Head(pattern, h) }
func (g *Group) Options(pattern string, h Handler) *Router { return g.router.Options(pattern, h) }
