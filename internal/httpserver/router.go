package httpserver

import (
	"sync"

	"earnzy/internal/auth"
)

// Router implements auth.Navigator. Full-page redirects are the only
// inter-page signal, so it simply tracks the current logical page and maps
// it to a path the client is told to navigate to.
type Router struct {
	mu   sync.Mutex
	page string
}

// NewRouter starts at the entry page.
func NewRouter() *Router {
	return &Router{page: auth.PageHome}
}

// GoTo records a navigation to the logical page.
func (r *Router) GoTo(page string) {
	r.mu.Lock()
	r.page = page
	r.mu.Unlock()
}

// Location returns the current logical page.
func (r *Router) Location() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.page
}

// Path maps the current logical page to its document path.
func (r *Router) Path() string {
	switch r.Location() {
	case auth.PageDashboard:
		return "/dashboard.html"
	case auth.PageLogin:
		return "/login.html"
	default:
		return "/index.html"
	}
}
