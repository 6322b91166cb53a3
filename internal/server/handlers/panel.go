package handlers

import (
	"context"
	"encoding/gob"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/gorilla/sessions"

	"git.home.luguber.info/inful/bakery/internal/bakery"
	"git.home.luguber.info/inful/bakery/internal/config"
	"git.home.luguber.info/inful/bakery/internal/events"
	ferrors "git.home.luguber.info/inful/bakery/internal/foundation/errors"
	"git.home.luguber.info/inful/bakery/internal/logfields"
	"git.home.luguber.info/inful/bakery/internal/server/responses"
)

// PanelPath is where the admin panel is mounted.
const PanelPath = "/panel"

const sessionName = "bakery-panel"

// Flash is a one-shot message shown on the next panel render.
type Flash struct {
	Level   string // success, warning, error
	Message string
}

func init() {
	gob.Register(Flash{})
}

// Runner starts build/publish runs. Implemented by *bakery.Runner.
type Runner interface {
	Run(ctx context.Context, action bakery.Action, trigger string, emit bakery.EmitFunc) *bakery.Result
	InProgress() bool
}

// History reads back persisted run outcomes.
type History interface {
	Recent(ctx context.Context, limit int) ([]bakery.RunRecord, error)
}

// PanelHandlers serves the admin panel page and its run trigger.
type PanelHandlers struct {
	cfgFn        func() *config.Config
	runner       Runner
	history      History
	store        sessions.Store
	errorAdapter *ferrors.HTTPErrorAdapter
}

// NewPanelHandlers creates the panel handlers. history may be nil.
func NewPanelHandlers(cfgFn func() *config.Config, runner Runner, history History, store sessions.Store) *PanelHandlers {
	return &PanelHandlers{
		cfgFn:        cfgFn,
		runner:       runner,
		history:      history,
		store:        store,
		errorAdapter: ferrors.NewHTTPErrorAdapter(slog.Default()),
	}
}

// HandlePanel dispatches GET (render) and POST (trigger a run).
func (h *PanelHandlers) HandlePanel(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.renderPanel(w, r)
	case http.MethodPost:
		h.triggerRun(w, r)
	default:
		err := ferrors.ValidationError("invalid HTTP method").
			WithContext("method", r.Method).
			Build()
		h.errorAdapter.WriteErrorResponse(w, r, err)
	}
}

type panelData struct {
	Flashes          []Flash
	BuildDir         string
	BucketConfigured bool
	Bucket           string
	PostPublish      string
	RunInProgress    bool
	Runs             []bakery.RunRecord
}

func (h *PanelHandlers) renderPanel(w http.ResponseWriter, r *http.Request) {
	cfg := h.cfgFn()
	data := panelData{
		BuildDir:         cfg.Build.OutputDir,
		BucketConfigured: cfg.BucketConfigured(),
		Bucket:           cfg.Publish.Bucket,
		RunInProgress:    h.runner.InProgress(),
	}
	if cfg.PostPublish.Configured() {
		data.PostPublish = cfg.PostPublish.DisplayTitle()
	}

	session, err := h.store.Get(r, sessionName)
	if err != nil {
		// A stale or tampered cookie only costs the flashes.
		slog.Warn("Session decode failed", logfields.Error(err))
		session, _ = h.store.New(r, sessionName)
	}
	for _, f := range session.Flashes() {
		if flash, ok := f.(Flash); ok {
			data.Flashes = append(data.Flashes, flash)
		}
	}
	if err := session.Save(r, w); err != nil {
		slog.Warn("Session save failed", logfields.Error(err))
	}

	if h.history != nil {
		runs, err := h.history.Recent(r.Context(), 10)
		if err != nil {
			slog.Warn("Run history unavailable", logfields.Error(err))
		} else {
			data.Runs = runs
		}
	}

	// JSON clients (host panels rendering their own templates) get the raw
	// panel state instead of HTML.
	if acceptsMediaType(r.Header.Get("Accept"), "application/json") {
		h.renderPanelJSON(w, r, data)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := panelTemplate.Execute(w, data); err != nil {
		slog.Error("Panel render failed", logfields.Error(err))
	}
}

type panelStateResponse struct {
	BuildDir         string                `json:"build_dir"`
	BucketConfigured bool                  `json:"bucket_configured"`
	Bucket           string                `json:"bucket,omitempty"`
	PostPublish      string                `json:"post_publish,omitempty"`
	RunInProgress    bool                  `json:"run_in_progress"`
	Flashes          []panelFlashResponse  `json:"flashes,omitempty"`
	Runs             []responses.RunRecord `json:"runs,omitempty"`
}

type panelFlashResponse struct {
	Level   string `json:"level"`
	Message string `json:"message"`
}

func (h *PanelHandlers) renderPanelJSON(w http.ResponseWriter, r *http.Request, data panelData) {
	state := panelStateResponse{
		BuildDir:         data.BuildDir,
		BucketConfigured: data.BucketConfigured,
		Bucket:           data.Bucket,
		PostPublish:      data.PostPublish,
		RunInProgress:    data.RunInProgress,
	}
	for _, f := range data.Flashes {
		state.Flashes = append(state.Flashes, panelFlashResponse{Level: f.Level, Message: f.Message})
	}
	for _, rec := range data.Runs {
		state.Runs = append(state.Runs, runRecordResponse(rec))
	}
	if err := writeJSONPretty(w, r, http.StatusOK, state); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write panel state").Build())
	}
}

func (h *PanelHandlers) triggerRun(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		h.errorAdapter.WriteErrorResponse(w, r,
			ferrors.ValidationError("malformed form body").Build())
		return
	}

	requested := r.PostFormValue("action")
	if requested == "" {
		requested = string(bakery.ActionBuildPublish)
	}
	action, err := bakery.ParseAction(requested)
	if err != nil {
		// Browser flow: unknown actions flash and bounce back to the panel.
		h.addFlashes(w, r, Flash{Level: "error", Message: "Unknown action: " + requested})
		http.Redirect(w, r, PanelPath, http.StatusSeeOther)
		return
	}

	// A run, once started, outlives its request: a closed browser tab must
	// not abort an in-flight build or leave a half-synced bucket.
	runCtx := context.WithoutCancel(r.Context())

	if stream, ok := newProgressStream(w, r); ok {
		h.runner.Run(runCtx, action, bakery.TriggerPanel, stream.Emit)
		return
	}

	result := h.runner.Run(runCtx, action, bakery.TriggerPanel, nil)

	// JSON clients that did not ask for a stream get the outcome directly.
	if acceptsMediaType(r.Header.Get("Accept"), "application/json") {
		accepted := responses.RunAccepted{
			RunID:   result.RunID,
			Action:  string(result.Action),
			Success: result.Success,
			Outcome: result.Outcome(),
			Message: firstNonEmptyMessage(result),
		}
		if err := writeJSONPretty(w, r, http.StatusOK, accepted); err != nil {
			h.errorAdapter.WriteErrorResponse(w, r,
				ferrors.WrapError(err, ferrors.CategoryInternal, "failed to write run outcome").Build())
		}
		return
	}

	h.addFlashes(w, r, flashesForResult(result)...)
	http.Redirect(w, r, PanelPath, http.StatusSeeOther)
}

func firstNonEmptyMessage(result *bakery.Result) string {
	if result.Warning != "" {
		return result.Warning
	}
	return result.Message
}

func (h *PanelHandlers) addFlashes(w http.ResponseWriter, r *http.Request, flashes ...Flash) {
	session, err := h.store.Get(r, sessionName)
	if err != nil {
		session, _ = h.store.New(r, sessionName)
	}
	for _, flash := range flashes {
		session.AddFlash(flash)
	}
	if err := session.Save(r, w); err != nil {
		slog.Warn("Session save failed", logfields.Error(err))
	}
}

// flashesForResult maps a run outcome onto the panel messages. A failed
// post-publish step degrades the flash to a warning, it never turns a
// completed build and publish into a failure. When the build succeeded but
// publish did not, the build's success flash stacks before the error.
func flashesForResult(result *bakery.Result) []Flash {
	if !result.Success {
		if buildSucceeded(result) {
			return []Flash{
				{Level: "success", Message: "Build completed successfully."},
				{Level: "error", Message: result.Message},
			}
		}
		return []Flash{{Level: "error", Message: result.Message}}
	}
	if result.Warning != "" {
		return []Flash{{Level: "warning", Message: "Build and publish succeeded, but " + result.Warning}}
	}

	switch result.Action {
	case bakery.ActionBuild:
		return []Flash{{Level: "success", Message: "Build completed successfully."}}
	default:
		if title := postPublishTitle(result); title != "" {
			return []Flash{{Level: "success", Message: "Build, publish to S3, and " + title + " completed."}}
		}
		return []Flash{{Level: "success", Message: "Build and publish to S3 completed successfully."}}
	}
}

func buildSucceeded(result *bakery.Result) bool {
	for _, step := range result.Steps {
		if step.Step == bakery.StepBuild {
			return step.Err == nil
		}
	}
	return false
}

func postPublishTitle(result *bakery.Result) string {
	for _, step := range result.Steps {
		if step.Step == bakery.StepPostPublish {
			return step.Label
		}
	}
	return ""
}

// progressStream writes progress records to the response as they happen.
// Server-sent events when the client asks for text/event-stream, NDJSON
// otherwise.
type progressStream struct {
	w       http.ResponseWriter
	flusher http.Flusher
	sse     bool
}

func newProgressStream(w http.ResponseWriter, r *http.Request) (*progressStream, bool) {
	accept := r.Header.Get("Accept")
	sse := acceptsMediaType(accept, "text/event-stream")
	if !sse && !acceptsMediaType(accept, "application/x-ndjson") {
		return nil, false
	}
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, false
	}

	if sse {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
	} else {
		w.Header().Set("Content-Type", "application/x-ndjson")
		w.Header().Set("Cache-Control", "no-cache")
	}
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	return &progressStream{w: w, flusher: flusher, sse: sse}, true
}

func (s *progressStream) Emit(evt events.Progress) {
	if s.sse {
		if _, err := s.w.Write([]byte("data: ")); err != nil {
			return
		}
	}
	if err := writeJSONLine(s.w, evt); err != nil {
		slog.Warn("Progress stream write failed", logfields.Error(err))
		return
	}
	if s.sse {
		_, _ = s.w.Write([]byte("\n"))
	}
	s.flusher.Flush()
}

var panelTemplate = template.Must(template.New("panel").Parse(`<!DOCTYPE html>
<html lang="en">
<head>
<meta charset="utf-8">
<title>Bakery Admin</title>
<style>
body { font-family: system-ui, sans-serif; margin: 2rem auto; max-width: 48rem; }
.flash { padding: .6rem 1rem; border-radius: 4px; margin-bottom: .5rem; }
.flash.success { background: #e2f6e6; }
.flash.warning { background: #fdf3d8; }
.flash.error { background: #fbe3e3; }
table { border-collapse: collapse; width: 100%; margin-top: 1rem; }
td, th { border-bottom: 1px solid #ddd; padding: .4rem .6rem; text-align: left; }
button { padding: .5rem 1.2rem; margin-right: .5rem; }
</style>
</head>
<body>
<h1>Bakery</h1>
{{range .Flashes}}<div class="flash {{.Level}}">{{.Message}}</div>{{end}}
{{if .RunInProgress}}<p>A run is currently in progress.</p>{{end}}
<p>Build directory: {{.BuildDir}}</p>
<p>S3 bucket: {{if .BucketConfigured}}{{.Bucket}}{{else}}(not set){{end}}</p>
<form method="post" action="/panel">
<button name="action" value="build">Build</button>
{{if .BucketConfigured}}<button name="action" value="build_publish">Build and publish to {{.Bucket}}</button>
{{else}}<p>Publishing disabled: no S3 bucket configured.</p>{{end}}
</form>
{{if .PostPublish}}<p>Post-publish step: {{.PostPublish}}</p>{{end}}
{{if .Runs}}
<h2>Recent runs</h2>
<table>
<tr><th>Started</th><th>Action</th><th>Trigger</th><th>Outcome</th><th>Message</th></tr>
{{range .Runs}}<tr><td>{{.StartedAt.Format "2006-01-02 15:04:05"}}</td><td>{{.Action}}</td><td>{{.Trigger}}</td><td>{{.Outcome}}</td><td>{{.Message}}</td></tr>{{end}}
</table>
{{end}}
</body>
</html>
`))

// runRecordResponse maps a stored record onto its API shape.
func runRecordResponse(rec bakery.RunRecord) responses.RunRecord {
	return responses.RunRecord{
		ID:         rec.ID,
		Action:     rec.Action,
		Trigger:    rec.Trigger,
		Outcome:    rec.Outcome,
		Message:    rec.Message,
		StartedAt:  rec.StartedAt,
		FinishedAt: rec.FinishedAt,
	}
}
