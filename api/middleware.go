package api

import (
	"fmt"
	"net/http"
	"strings"
)

// SessionMiddleware enforces the session contract on every non-public
// request: expired sessions are rejected before any handler runs, live
// ones have their activity refreshed, and unknown identifiers are
// registered lazily. Requests without the session header pass through;
// handlers that need a session enforce it themselves.
func (a *API) SessionMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if a.isPublicPath(r.URL.Path) {
			next.ServeHTTP(w, r)
			return
		}

		id := r.Header.Get(SessionHeader)
		if id == "" {
			next.ServeHTTP(w, r)
			return
		}

		switch {
		case a.registry.IsExpired(id):
			// No touch, no create: an expired session stays dead until
			// the sweeper reaps it.
			a.audit.log(AuditSessionExpired, id, auditFailure, map[string]any{"source": "request"})
			a.writeAPIError(w, r, sessionExpired())
		case a.registry.Exists(id):
			a.registry.Touch(id)
			next.ServeHTTP(w, r)
		default:
			a.registry.Create(id)
			next.ServeHTTP(w, r)
		}
	})
}

// isPublicPath reports whether the path is exempt from the session
// contract. "/" is matched exactly; every other configured entry matches
// by prefix.
func (a *API) isPublicPath(path string) bool {
	for _, p := range a.cfg.PublicPaths {
		if p == "/" {
			if path == "/" {
				return true
			}
			continue
		}
		if strings.HasPrefix(path, p) {
			return true
		}
	}
	return false
}

// Recoverer converts handler panics into taxonomy internal errors so the
// response carries a correlation ID instead of a blank 500.
func (a *API) Recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				a.writeAPIError(w, r, internalError(fmt.Errorf("panic: %v", rec)))
			}
		}()
		next.ServeHTTP(w, r)
	})
}
