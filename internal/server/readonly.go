package server

import "net/http"

const allowedMethods = "GET, HEAD, OPTIONS"

// withReadOnly rejects every method other than GET, HEAD and OPTIONS. The
// status server never changes monitor state.
func withReadOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet, http.MethodHead, http.MethodOptions:
			next.ServeHTTP(w, r)
		default:
			httpRejected.WithLabelValues("method").Inc()
			w.Header().Set("Allow", allowedMethods)
			writeProblem(w, r, http.StatusMethodNotAllowed, "status API is read-only")
		}
	})
}
