package api

import "net/http"

// WithRateLimit applies the shared limiter. Each optimize call makes two
// upstream directions requests.
func (s *Server) WithRateLimit(next http.HandlerFunc) http.HandlerFunc {
    return func(w http.ResponseWriter, r *http.Request) {
        if s.Limiter != nil && !s.Limiter.Allow() {
            w.Header().Set("Retry-After", "1")
            writeProblem(w, http.StatusTooManyRequests, "Rate limit exceeded", "too many optimization requests; slow down", r.URL.Path)
            return
        }
        next(w, r)
    }
}
