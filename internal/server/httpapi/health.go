package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/dmitrijs2005/payslips/internal/common"
)

// Check probes one dependency; nil means ready.
type Check struct {
	Name  string
	Probe func(ctx context.Context) error
}

// HealthHandler serves liveness and readiness probes.
type HealthHandler struct {
	checks  []Check
	timeout time.Duration
	now     func() time.Time
}

func NewHealthHandler(timeout time.Duration, checks ...Check) *HealthHandler {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &HealthHandler{checks: checks, timeout: timeout, now: time.Now}
}

type checkResult struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type healthResponse struct {
	Status    string                 `json:"status"`
	Timestamp string                 `json:"timestamp"`
	Service   string                 `json:"service"`
	Checks    map[string]checkResult `json:"checks,omitempty"`
}

const (
	statusOK   = "ok"
	statusFail = "fail"
)

// Live reports that the process is up.
func (h *HealthHandler) Live(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    statusOK,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   common.ServiceName,
	})
}

// Ready runs every check; any failure answers 503.
func (h *HealthHandler) Ready(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	resp := healthResponse{
		Status:    statusOK,
		Timestamp: h.now().UTC().Format(time.RFC3339),
		Service:   common.ServiceName,
		Checks:    make(map[string]checkResult, len(h.checks)),
	}
	for _, c := range h.checks {
		if err := c.Probe(ctx); err != nil {
			resp.Status = statusFail
			resp.Checks[c.Name] = checkResult{Status: statusFail, Message: err.Error()}
			continue
		}
		resp.Checks[c.Name] = checkResult{Status: statusOK}
	}

	status := http.StatusOK
	if resp.Status == statusFail {
		status = http.StatusServiceUnavailable
	}
	writeJSON(w, status, resp)
}
