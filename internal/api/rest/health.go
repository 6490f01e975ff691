package rest

import (
	"context"
	"net/http"
	"time"

	"go.uber.org/zap"
)

const healthTimeout = 3 * time.Second

// HealthCheck probes one dependency
type HealthCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

type healthResult struct {
	Status   string `json:"status"`
	Error    string `json:"error,omitempty"`
	Duration string `json:"duration"`
}

type healthResponse struct {
	OK      bool                    `json:"ok"`
	Status  string                  `json:"status"`
	Version string                  `json:"version"`
	Time    time.Time               `json:"time"`
	Checks  map[string]healthResult `json:"checks,omitempty"`
}

// health reports 503 when any dependency check fails. Check errors are
// logged in full but only summarized in the body.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
	defer cancel()

	resp := healthResponse{OK: true, Status: "pass", Version: h.version, Time: time.Now().UTC()}
	if len(h.checks) > 0 {
		resp.Checks = make(map[string]healthResult, len(h.checks))
	}
	for _, c := range h.checks {
		start := time.Now()
		err := c.Check(ctx)
		res := healthResult{Status: "pass", Duration: time.Since(start).String()}
		if err != nil {
			requestLogger(r.Context(), h.logger).Warn("health check failed",
				zap.String("check", c.Name), zap.Error(err))
			res.Status = "fail"
			res.Error = "unavailable"
			resp.OK = false
			resp.Status = "fail"
		}
		resp.Checks[c.Name] = res
	}

	status := http.StatusOK
	if !resp.OK {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
