package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"git.home.luguber.info/inful/bakery/internal/config"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/server/responses"
	"git.home.luguber.info/inful/bakery/internal/version"
)

// APIHandlers serves the JSON status and run-history endpoints.
type APIHandlers struct {
	cfgFn        func() *config.Config
	runner       Runner
	history      History
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewAPIHandlers creates the API handlers. history may be nil.
func NewAPIHandlers(cfgFn func() *config.Config, runner Runner, history History) *APIHandlers {
	return &APIHandlers{
		cfgFn:        cfgFn,
		runner:       runner,
		history:      history,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandleStatus reports the daemon's publish configuration and activity.
func (h *APIHandlers) HandleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorAdapter.WriteErrorResponse(w, r, methodNotAllowed(r))
		return
	}

	cfg := h.cfgFn()
	status := &responses.StatusResponse{
		Status:           "running",
		Version:          version.Version,
		BuildDir:         cfg.Build.OutputDir,
		BucketConfigured: cfg.BucketConfigured(),
		Bucket:           cfg.Publish.Bucket,
		RunInProgress:    h.runner.InProgress(),
	}
	if cfg.PostPublish.Configured() {
		status.PostPublish = cfg.PostPublish.DisplayTitle()
	}

	if h.history != nil {
		if recent, err := h.history.Recent(r.Context(), 1); err == nil && len(recent) > 0 {
			rec := runRecordResponse(recent[0])
			status.LastRun = &rec
		}
	}

	if err := writeJSONPretty(w, r, http.StatusOK, status); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write status response").Build())
	}
}

// HandleRuns lists recent runs, newest first. Accepts a limit query parameter.
func (h *APIHandlers) HandleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		h.errorAdapter.WriteErrorResponse(w, r, methodNotAllowed(r))
		return
	}
	if h.history == nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.StorageError("run history is not enabled").Build())
		return
	}

	limit := 20
	if raw := r.URL.Query().Get("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 || parsed > 500 {
			h.errorAdapter.WriteErrorResponse(w, r,
				ferrors.ValidationError("limit must be a positive integer up to 500").
					WithContext("limit", raw).
					Build())
			return
		}
		limit = parsed
	}

	records, err := h.history.Recent(r.Context(), limit)
	if err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryStorage, "failed to read run history").Build())
		return
	}

	resp := &responses.RunsResponse{Runs: make([]responses.RunRecord, 0, len(records))}
	for _, rec := range records {
		resp.Runs = append(resp.Runs, runRecordResponse(rec))
	}

	if err := writeJSONPretty(w, r, http.StatusOK, resp); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write runs response").Build())
	}
}

func methodNotAllowed(r *http.Request) error {
	return ferrors.ValidationError("invalid HTTP method").
		WithContext("method", r.Method).
		WithContext("allowed_method", http.MethodGet).
		Build()
}
