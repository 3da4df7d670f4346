package mock

import (
	"net/http"
	"strings"
)

type Route struct {
	Method  string
	Path    string
	Name    string
	Handler http.HandlerFunc
}

// Router matches incoming requests to routes by method and exact path.
type Router struct {
	routes []*Route
}

func NewRouter() *Router {
	return &Router{
		routes: make([]*Route, 0),
	}
}

func (r *Router) AddRoute(route *Route) {
	route.Path = normalizePath(route.Path)
	r.routes = append(r.routes, route)
}

func (r *Router) Handle(method, path, name string, h http.HandlerFunc) {
	r.AddRoute(&Route{Method: method, Path: path, Name: name, Handler: h})
}

// Match returns the route for method and path. A path that exists under
// another method yields a nil route with pathKnown set.
func (r *Router) Match(method, path string) (route *Route, pathKnown bool) {
	path = normalizePath(path)

	for _, rt := range r.routes {
		if rt.Path != path {
			continue
		}
		pathKnown = true
		if strings.EqualFold(rt.Method, method) {
			return rt, true
		}
	}

	return nil, pathKnown
}

func (r *Router) Routes() []*Route {
	return r.routes
}

func normalizePath(path string) string {
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 && strings.HasSuffix(path, "/") {
		path = path[:len(path)-1]
	}
	return path
}
