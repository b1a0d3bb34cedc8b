package health

import (
	"context"
	"encoding/json"
	"net/http"
	"time"
)

// Probe checks a single dependency within the given timeout.
type Probe func(ctx context.Context) error

// Handler exposes liveness and readiness endpoints. Probes run on every
// readiness request, keyed by the dependency name reported in the body.
type Handler struct {
	Probes  map[string]Probe
	Timeout time.Duration
}

func (h Handler) timeout() time.Duration {
	if h.Timeout <= 0 {
		return 500 * time.Millisecond
	}
	return h.Timeout
}

// Live reports process liveness.
func (h Handler) Live(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// Ready probes every dependency and reports per-dependency status. It
// also honours the process readiness gate so draining instances fail
// readiness before their probes do.
func (h Handler) Ready(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")

	checks := make(map[string]string, len(h.Probes))
	healthy := Ready()
	for name, probe := range h.Probes {
		if probe == nil {
			continue
		}
		ctx, cancel := context.WithTimeout(r.Context(), h.timeout())
		err := probe(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			healthy = false
			continue
		}
		checks[name] = "ok"
	}

	status := "ok"
	code := http.StatusOK
	if !healthy {
		status = "unavailable"
		code = http.StatusServiceUnavailable
	}
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"status": status,
		"checks": checks,
	})
}
