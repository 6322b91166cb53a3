package handlers

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/server/responses"
	"git.home.luguber.info/inful/bakery/internal/version"
)

// MonitoringHandlers serves liveness and readiness endpoints.
type MonitoringHandlers struct {
	cfgFn        func() *config.Config
	startTime    time.Time
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewMonitoringHandlers creates the monitoring handlers.
func NewMonitoringHandlers(cfgFn func() *config.Config) *MonitoringHandlers {
	return &MonitoringHandlers{
		cfgFn:        cfgFn,
		startTime:    time.Now(),
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleHealthCheck reports process liveness.
func (h *MonitoringHandlers) HandleHealthCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorAdapter.WriteErrorResponse(w, r, methodNotAllowed(r))
		return
	}

	health := &responses.HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now().UTC(),
		Version:   version.Version,
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	if err := writeJSONPretty(w, r, http.StatusOK, health); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write health response").Build())
	}
}

// HandleReadiness reports ready once a built site exists in the output
// directory, so load balancers don't route to a daemon that has never built.
func (h *MonitoringHandlers) HandleReadiness(w http.ResponseWriter, _ *http.Request) {
	out := h.cfgFn().Build.OutputDir
	if st, err := os.Stat(out); err == nil && st.IsDir() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready: output directory missing"))
}
