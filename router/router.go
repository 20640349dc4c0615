package router

import (
	"net/http"
	"path"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/go-kyugo/preify"
	"github.com/go-kyugo/preify/response"
)

// Router is a lightweight wrapper around an underlying chi router.
type Router struct {
	r chi.Router
}

// New creates a new Router instance.
func New() *Router {
	return &Router{r: chi.NewRouter()}
}

// Handler returns the underlying http.Handler to be used with ListenAndServe.
func (rt *Router) Handler() http.Handler {
	return rt.r
}

// Use appends middleware to every route of the router. Like chi, it must be
// called before any route is registered.
func (rt *Router) Use(mws ...func(http.Handler) http.Handler) *Router {
	rt.r.Use(mws...)
	return rt
}

func (rt *Router) Get(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	rt.Group("/").Get(p, h, mws...)
}

func (rt *Router) Post(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	rt.Group("/").Post(p, h, mws...)
}

func (rt *Router) Patch(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	rt.Group("/").Patch(p, h, mws...)
}

func (rt *Router) Delete(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	rt.Group("/").Delete(p, h, mws...)
}

// Group creates a route group rooted at the provided prefix.
func (rt *Router) Group(prefix string) *Group {
	return &Group{parent: rt.r, prefix: prefix}
}

// Group represents a group of routes under a common prefix.
type Group struct {
	parent chi.Router
	prefix string
}

// With returns a new Group that applies mws to all routes registered
// through it, like chi's With.
func (g *Group) With(mws ...func(http.Handler) http.Handler) *Group {
	return &Group{parent: g.parent.With(mws...), prefix: g.prefix}
}

// Pre returns a Group whose routes first run h and store its reply under
// assign. Chained calls run in the order they were added:
//
//	r.Group("/users").Pre("user", loadUser).Pre("perms", loadPerms).Get("/{id}", show)
func (g *Group) Pre(assign string, h preify.Handler, opts ...PreOption) *Group {
	return g.With(Pre(assign, h, opts...))
}

// Use applies middleware to the group's parent router in-place and returns
// the same group for chaining, like chi's Use.
func (g *Group) Use(mws ...func(http.Handler) http.Handler) *Group {
	g.parent.Use(mws...)
	return g
}

// Middleware is an alias for Use.
func (g *Group) Middleware(mws ...func(http.Handler) http.Handler) *Group {
	return g.Use(mws...)
}

func join(prefix, p string) string {
	if prefix == "" || prefix == "/" {
		return p
	}
	return path.Join(prefix, p)
}

// Param returns a URL parameter value by name.
func Param(r *http.Request, name string) string {
	return chi.URLParam(r, name)
}

// adapt converts a handler that works on the response wrapper and the pre
// request into an http.HandlerFunc.
func adapt(h func(*response.Response, *preify.Request)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		r, req := ensure(r)
		h(response.New(w, r), req)
	}
}

// handlerToHTTP converts a route handler. Supported types:
//   - http.Handler and http.HandlerFunc
//   - func(http.ResponseWriter, *http.Request)
//   - func(*response.Response, *preify.Request)
//   - preify.Handler, whose reply becomes the response
func handlerToHTTP(h interface{}) http.Handler {
	switch v := h.(type) {
	case http.HandlerFunc:
		return v
	case func(http.ResponseWriter, *http.Request):
		return http.HandlerFunc(v)
	case func(*response.Response, *preify.Request):
		return adapt(v)
	case preify.Handler:
		return Handle(v)
	case func(*preify.Request, preify.Reply):
		return Handle(v)
	case http.Handler:
		return v
	default:
		return http.HandlerFunc(http.NotFound)
	}
}

func (g *Group) handle(method, p string, h interface{}, mws []func(http.Handler) http.Handler) {
	g.parent.With(mws...).Method(strings.ToUpper(method), join(g.prefix, p), handlerToHTTP(h))
}

// Get registers a GET handler under the group's prefix.
func (g *Group) Get(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	g.handle(http.MethodGet, p, h, mws)
}

// Post registers a POST handler under the group's prefix.
func (g *Group) Post(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	g.handle(http.MethodPost, p, h, mws)
}

// Patch registers a PATCH handler under the group's prefix.
func (g *Group) Patch(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	g.handle(http.MethodPatch, p, h, mws)
}

// Delete registers a DELETE handler under the group's prefix.
func (g *Group) Delete(p string, h interface{}, mws ...func(http.Handler) http.Handler) {
	g.handle(http.MethodDelete, p, h, mws)
}
