// Package health serves the ops endpoints: liveness, readiness, and the
// Prometheus metrics handler.
package health

import (
	"context"
	"net/http"
	"time"

	"github.com/astra/astrashield/internal/metrics"
)

// Pinger is anything whose backing resource can be probed.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Healthz returns 200 "ok\n" unconditionally.
func Healthz(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok\n"))
}

// Readyz reports 200 "ready\n" once every dependency answers its probe, 503
// otherwise.
func Readyz(deps ...Pinger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		w.Header().Set("Content-Type", "text/plain")
		for _, dep := range deps {
			if err := dep.Ping(ctx); err != nil {
				w.WriteHeader(http.StatusServiceUnavailable)
				w.Write([]byte("not ready: " + err.Error() + "\n"))
				return
			}
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ready\n"))
	}
}

// Handler mounts the ops surface on a fresh mux.
func Handler(deps ...Pinger) http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", Healthz)
	mux.Handle("/readyz", Readyz(deps...))
	mux.Handle("/metrics", metrics.Handler())
	return mux
}
