package httpmw

import "net/http"

// MaxBody caps request bodies. Nothing on this listener accepts a body, so
// reads past the limit fail and the handler answers 413.
func MaxBody(bytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			r.Body = http.MaxBytesReader(w, r.Body, bytes)
			next.ServeHTTP(w, r)
		})
	}
}
