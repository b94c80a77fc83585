package memberauth

import (
	"net/http"
	"strings"
)

// Protect returns middleware that shows next only to an authenticated member.
//
// Each request mounts the guard for its own path and query. While the guard is
// checking nothing is written; once it settles:
//
//   - Authenticated: next is served
//   - HTMX requests (HX-Request: true): 200 with HX-Redirect to the entry point
//   - API / SPA requests: 401 Unauthorized
//   - Browser navigations (Accept: text/html): 302 to the entry point with
//     return_to set to the original location
//
// If the client goes away before the guard settles, the mount is discarded
// and no response is written.
func (g *Guard) Protect(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		m := g.Mount(r.Context(), buildReturnTo(r))
		defer m.Unmount()

		m.Wait(r.Context())

		d := m.Decision()
		switch d.State {
		case GuardAuthed:
			next.ServeHTTP(w, r)
		case GuardGuest:
			unauthenticatedResponse(w, r, d.Redirect)
		}
	})
}

// buildReturnTo constructs the return_to value for redirects by
// preserving the request path and query string.
func buildReturnTo(r *http.Request) string {
	if r.URL.RawQuery == "" {
		return r.URL.Path
	}
	return r.URL.Path + "?" + r.URL.RawQuery
}

func unauthenticatedResponse(w http.ResponseWriter, r *http.Request, redirectURL string) {
	w.Header().Add("Vary", "Accept")

	switch {
	case r.Header.Get("HX-Request") == "true":
		w.Header().Set("HX-Redirect", redirectURL)
		w.WriteHeader(http.StatusOK)
		return

	case isAPICall(r):
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return

	default:
		http.Redirect(w, r, redirectURL, http.StatusFound)
		return
	}
}

func isAPICall(r *http.Request) bool {
	accept := r.Header.Get("Accept")

	if accept == "" {
		return true
	}

	if strings.Contains(accept, "text/html") {
		return false
	}

	return true
}
