package handlers

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/sessions"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"git.home.luguber.info/inful/bakery/internal/bakery"
	"git.home.luguber.info/inful/bakery/internal/config"
	"git.home.luguber.info/inful/bakery/internal/events"
)

type stubRunner struct {
	result *bakery.Result
	emits  []events.Progress
	ran    []bakery.Action
	gotCtx context.Context
	onRun  func()
}

func (s *stubRunner) Run(ctx context.Context, action bakery.Action, _ string, emit bakery.EmitFunc) *bakery.Result {
	s.gotCtx = ctx
	s.ran = append(s.ran, action)
	if s.onRun != nil {
		s.onRun()
	}
	if emit != nil {
		for _, evt := range s.emits {
			emit(evt)
		}
	}
	res := *s.result
	res.Action = action
	return &res
}

func (s *stubRunner) InProgress() bool { return false }

type stubHistory struct {
	records []bakery.RunRecord
	err     error
}

func (s *stubHistory) Recent(context.Context, int) ([]bakery.RunRecord, error) {
	return s.records, s.err
}

func panelConfig() *config.Config {
	return &config.Config{
		Admin:   config.AdminConfig{Port: 8087},
		Build:   config.BuildConfig{Command: "bakery-build", OutputDir: "./build"},
		Publish: config.PublishConfig{Bucket: "site-bucket"},
	}
}

func newPanel(cfg *config.Config, runner *stubRunner, history History) *PanelHandlers {
	store := sessions.NewCookieStore([]byte("test-secret"))
	return NewPanelHandlers(func() *config.Config { return cfg }, runner, history, store)
}

func postForm(action string) *http.Request {
	form := url.Values{}
	if action != "" {
		form.Set("action", action)
	}
	req := httptest.NewRequest(http.MethodPost, PanelPath, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return req
}

func TestPanelGetRendersButtons(t *testing.T) {
	h := newPanel(panelConfig(), &stubRunner{result: &bakery.Result{Success: true}}, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, httptest.NewRequest(http.MethodGet, PanelPath, nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, `value="build"`)
	assert.Contains(t, body, `value="build_publish"`)
	assert.Contains(t, body, "site-bucket")
	assert.Contains(t, body, "Build directory: ./build")
	assert.Contains(t, body, "S3 bucket: site-bucket")
}

func TestPanelGetWithoutBucketHidesPublish(t *testing.T) {
	cfg := panelConfig()
	cfg.Publish.Bucket = ""
	h := newPanel(cfg, &stubRunner{result: &bakery.Result{Success: true}}, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, httptest.NewRequest(http.MethodGet, PanelPath, nil))

	body := rec.Body.String()
	assert.NotContains(t, body, `value="build_publish"`)
	assert.Contains(t, body, "no S3 bucket configured")
	assert.Contains(t, body, "S3 bucket: (not set)")
}

func TestPanelGetShowsRecentRuns(t *testing.T) {
	history := &stubHistory{records: []bakery.RunRecord{{
		ID: "run-1", Action: "build_publish", Trigger: "panel", Outcome: "success",
		StartedAt: time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC),
	}}}
	h := newPanel(panelConfig(), &stubRunner{result: &bakery.Result{Success: true}}, history)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, httptest.NewRequest(http.MethodGet, PanelPath, nil))

	assert.Contains(t, rec.Body.String(), "Recent runs")
	assert.Contains(t, rec.Body.String(), "build_publish")
}

func TestPanelPostRedirectsWithFlash(t *testing.T) {
	runner := &stubRunner{result: &bakery.Result{Success: true}}
	h := newPanel(panelConfig(), runner, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, postForm("build_publish"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, PanelPath, rec.Header().Get("Location"))
	require.Equal(t, []bakery.Action{bakery.ActionBuildPublish}, runner.ran)

	// The flash cookie round-trips into the next GET.
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)

	get := httptest.NewRequest(http.MethodGet, PanelPath, nil)
	for _, c := range cookies {
		get.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	h.HandlePanel(rec2, get)
	assert.Contains(t, rec2.Body.String(), "Build and publish to S3 completed successfully.")
}

func TestPanelPostDefaultsToBuildPublish(t *testing.T) {
	runner := &stubRunner{result: &bakery.Result{Success: true}}
	h := newPanel(panelConfig(), runner, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, postForm(""))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, []bakery.Action{bakery.ActionBuildPublish}, runner.ran)
}

func TestPanelPostUnknownActionFlashesError(t *testing.T) {
	runner := &stubRunner{result: &bakery.Result{Success: true}}
	h := newPanel(panelConfig(), runner, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, postForm("deploy"))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Empty(t, runner.ran)

	get := httptest.NewRequest(http.MethodGet, PanelPath, nil)
	for _, c := range rec.Result().Cookies() {
		get.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	h.HandlePanel(rec2, get)
	assert.Contains(t, rec2.Body.String(), "Unknown action: deploy")
}

func TestPanelPostStreamsNDJSON(t *testing.T) {
	success := true
	runner := &stubRunner{
		result: &bakery.Result{Success: true},
		emits: []events.Progress{
			{Step: "build", Status: "running", Label: "Build"},
			{Step: "build", Status: "complete", Label: "Build"},
			{Step: "done", Success: &success},
		},
	}
	h := newPanel(panelConfig(), runner, nil)

	req := postForm("build")
	req.Header.Set("Accept", "application/x-ndjson")
	rec := httptest.NewRecorder()
	h.HandlePanel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/x-ndjson", rec.Header().Get("Content-Type"))

	var lines []map[string]any
	scanner := bufio.NewScanner(rec.Body)
	for scanner.Scan() {
		var record map[string]any
		require.NoError(t, json.Unmarshal(scanner.Bytes(), &record))
		lines = append(lines, record)
	}
	require.Len(t, lines, 3)
	assert.Equal(t, "build", lines[0]["step"])
	assert.Equal(t, "running", lines[0]["status"])
	assert.Equal(t, "done", lines[2]["step"])
	assert.Equal(t, true, lines[2]["success"])
}

func TestPanelPostStreamsSSE(t *testing.T) {
	runner := &stubRunner{
		result: &bakery.Result{Success: true},
		emits:  []events.Progress{{Step: "build", Status: "running", Label: "Build"}},
	}
	h := newPanel(panelConfig(), runner, nil)

	req := postForm("build")
	req.Header.Set("Accept", "text/event-stream")
	rec := httptest.NewRecorder()
	h.HandlePanel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "text/event-stream", rec.Header().Get("Content-Type"))
	assert.True(t, strings.HasPrefix(rec.Body.String(), "data: "))
	assert.Contains(t, rec.Body.String(), `"step":"build"`)
}

func TestPanelGetAsJSON(t *testing.T) {
	cfg := panelConfig()
	cfg.PostPublish = config.PostPublishCommand{Command: "purge_cache", Title: "Purge CDN"}
	h := newPanel(cfg, &stubRunner{result: &bakery.Result{Success: true}}, nil)

	req := httptest.NewRequest(http.MethodGet, PanelPath, nil)
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePanel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var state map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &state))
	assert.Equal(t, true, state["bucket_configured"])
	assert.Equal(t, "site-bucket", state["bucket"])
	assert.Equal(t, "./build", state["build_dir"])
	assert.Equal(t, "Purge CDN", state["post_publish"])
}

func TestFlashesForResult(t *testing.T) {
	tests := []struct {
		name   string
		result bakery.Result
		want   []Flash
	}{
		{
			name:   "build success",
			result: bakery.Result{Action: bakery.ActionBuild, Success: true},
			want:   []Flash{{Level: "success", Message: "Build completed successfully."}},
		},
		{
			name:   "build publish success",
			result: bakery.Result{Action: bakery.ActionBuildPublish, Success: true},
			want:   []Flash{{Level: "success", Message: "Build and publish to S3 completed successfully."}},
		},
		{
			name: "build publish with post publish",
			result: bakery.Result{
				Action: bakery.ActionBuildPublish, Success: true,
				Steps: []bakery.StepResult{{Step: bakery.StepPostPublish, Label: "Purge CDN"}},
			},
			want: []Flash{{Level: "success", Message: "Build, publish to S3, and Purge CDN completed."}},
		},
		{
			name: "post publish failure degrades to warning",
			result: bakery.Result{
				Action: bakery.ActionBuildPublish, Success: true,
				Warning: "Purge CDN failed: cache purge rejected",
			},
			want: []Flash{{Level: "warning", Message: "Build and publish succeeded, but Purge CDN failed: cache purge rejected"}},
		},
		{
			name: "build failure",
			result: bakery.Result{
				Action: bakery.ActionBuildPublish, Message: "Build failed: exit status 2",
				Steps: []bakery.StepResult{{Step: bakery.StepBuild, Err: context.DeadlineExceeded}},
			},
			want: []Flash{{Level: "error", Message: "Build failed: exit status 2"}},
		},
		{
			// The build completed before publish was refused, so its success
			// message stacks ahead of the error.
			name: "publish refusal keeps build success flash",
			result: bakery.Result{
				Action:  bakery.ActionBuildPublish,
				Message: "S3 bucket not configured. Set BAKERY_AWS_BUCKET_NAME or AWS_BUCKET_NAME in the environment.",
				Steps: []bakery.StepResult{
					{Step: bakery.StepBuild, Label: "Build"},
					{Step: bakery.StepSync, Label: "Sync to S3", Err: context.DeadlineExceeded},
				},
			},
			want: []Flash{
				{Level: "success", Message: "Build completed successfully."},
				{Level: "error", Message: "S3 bucket not configured. Set BAKERY_AWS_BUCKET_NAME or AWS_BUCKET_NAME in the environment."},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, flashesForResult(&tt.result))
		})
	}
}

func TestPanelPostBucketlessPublishStacksFlashes(t *testing.T) {
	cfg := panelConfig()
	cfg.Publish.Bucket = ""
	runner := &stubRunner{result: &bakery.Result{
		Action:  bakery.ActionBuildPublish,
		Message: "S3 bucket not configured. Set BAKERY_AWS_BUCKET_NAME or AWS_BUCKET_NAME in the environment.",
		Steps: []bakery.StepResult{
			{Step: bakery.StepBuild, Label: "Build"},
			{Step: bakery.StepSync, Label: "Sync to S3", Err: context.DeadlineExceeded},
		},
	}}
	h := newPanel(cfg, runner, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, postForm("build_publish"))
	require.Equal(t, http.StatusSeeOther, rec.Code)

	get := httptest.NewRequest(http.MethodGet, PanelPath, nil)
	for _, c := range rec.Result().Cookies() {
		get.AddCookie(c)
	}
	rec2 := httptest.NewRecorder()
	h.HandlePanel(rec2, get)

	body := rec2.Body.String()
	success := strings.Index(body, "Build completed successfully.")
	failure := strings.Index(body, "S3 bucket not configured.")
	require.GreaterOrEqual(t, success, 0)
	require.GreaterOrEqual(t, failure, 0)
	assert.Less(t, success, failure)
}

func TestPanelPostRunOutlivesRequest(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	runner := &stubRunner{result: &bakery.Result{Success: true}}
	runner.onRun = func() {
		// Simulate the browser tab closing mid-run.
		cancel()
		require.NoError(t, runner.gotCtx.Err())
	}
	h := newPanel(panelConfig(), runner, nil)

	rec := httptest.NewRecorder()
	h.HandlePanel(rec, postForm("build_publish").WithContext(reqCtx))

	require.Equal(t, http.StatusSeeOther, rec.Code)
	require.NotNil(t, runner.gotCtx)
	assert.NoError(t, runner.gotCtx.Err())
}

func TestPanelPostAsJSONReturnsRunOutcome(t *testing.T) {
	runner := &stubRunner{result: &bakery.Result{RunID: "run-7", Success: true}}
	h := newPanel(panelConfig(), runner, nil)

	req := postForm("build_publish")
	req.Header.Set("Accept", "application/json")
	rec := httptest.NewRecorder()
	h.HandlePanel(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "application/json")

	var outcome map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &outcome))
	assert.Equal(t, "run-7", outcome["run_id"])
	assert.Equal(t, "build_publish", outcome["action"])
	assert.Equal(t, true, outcome["success"])
	assert.Equal(t, "success", outcome["outcome"])
}
