package ipc

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/odvcencio/livewidgets/pkg/engine"
)

const gaugeFragment = `<div id="g" data-widget-id="g" data-widget-type="gauge" data-config='{"duration":0,"title":"Load"}'></div>`

type testEnv struct {
	server  *Server
	http    *httptest.Server
	manager *engine.Manager
	hub     *Hub
}

func newTestEnv(t *testing.T, cfg Config) *testEnv {
	t.Helper()
	hub := NewHub()
	manager := engine.NewManager(context.Background(), engine.Options{Frames: hub})
	cfg.LogOutput = io.Discard
	s := NewServer(cfg, manager, hub)
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		manager.Close()
	})
	return &testEnv{server: s, http: ts, manager: manager, hub: hub}
}

func (e *testEnv) do(t *testing.T, method, path, body string) (*http.Response, []byte) {
	t.Helper()
	req, err := http.NewRequest(method, e.http.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	resp, err := e.http.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp, data
}

func decodeError(t *testing.T, data []byte) (code, message string) {
	t.Helper()
	var out struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	}
	require.NoError(t, json.Unmarshal(data, &out))
	return out.Code, out.Message
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t, Config{Version: "test"})
	resp, body := env.do(t, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "nosniff", resp.Header.Get("X-Content-Type-Options"))
	var out map[string]any
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, "ok", out["status"])
	assert.Equal(t, "test", out["version"])
}

func TestMetricsRouteIsOptional(t *testing.T) {
	env := newTestEnv(t, Config{Metrics: true})
	env.do(t, http.MethodGet, "/healthz", "")
	resp, body := env.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "livewidgets_http_request_duration_seconds")

	bare := newTestEnv(t, Config{})
	resp, _ = bare.do(t, http.MethodGet, "/metrics", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPageLifecycleOverHTTP(t *testing.T) {
	env := newTestEnv(t, Config{})

	resp, body := env.do(t, http.MethodPost, "/api/pages/ops/mount", gaugeFragment)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	var mounted engine.MountResult
	require.NoError(t, json.Unmarshal(body, &mounted))
	assert.Equal(t, []string{"g"}, mounted.Widgets)

	resp, body = env.do(t, http.MethodGet, "/api/pages", "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"id": "ops"`)

	resp, body = env.do(t, http.MethodPost, "/api/pages/ops/events/widget_update:g", `{"value":75}`)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
	assert.JSONEq(t, `{"delivered":1}`, string(body))

	resp, body = env.do(t, http.MethodGet, "/api/pages/ops/widgets", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var listed struct {
		Widgets []struct {
			Element string `json:"element"`
			Tag     string `json:"tag"`
			Kind    string `json:"kind"`
			Title   string `json:"title"`
			State   string `json:"state"`
		} `json:"widgets"`
	}
	require.NoError(t, json.Unmarshal(body, &listed))
	require.Len(t, listed.Widgets, 1)
	assert.Equal(t, "gauge", listed.Widgets[0].Kind)
	assert.Equal(t, "div", listed.Widgets[0].Tag)
	assert.Equal(t, "Load", listed.Widgets[0].Title)
	assert.Equal(t, "mounted", listed.Widgets[0].State)

	resp, _ = env.do(t, http.MethodPut, "/api/pages/ops/elements/g", `{"data":{"value":10},"config":{"title":"CPU"}}`)
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp, body = env.do(t, http.MethodPut, "/api/pages/ops/elements/missing", `{"data":{"value":10}}`)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	code, _ := decodeError(t, body)
	assert.Equal(t, "UNKNOWN_WIDGET", code)

	resp, body = env.do(t, http.MethodPost, "/api/pages/ops/announcements", `{"level":"warning","title":"Deploy"}`)
	assert.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.Contains(t, string(body), `"id"`)

	resp, _ = env.do(t, http.MethodDelete, "/api/pages/ops/elements/g", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/pages/ops/elements/g", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = env.do(t, http.MethodDelete, "/api/pages/ops", "")
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	resp, _ = env.do(t, http.MethodDelete, "/api/pages/ops", "")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestRequestValidation(t *testing.T) {
	env := newTestEnv(t, Config{MaxBodyBytes: 256})
	_, body := env.do(t, http.MethodPost, "/api/pages/ops/mount", gaugeFragment)
	require.Contains(t, string(body), `"g"`)

	tests := []struct {
		name   string
		method string
		path   string
		body   string
		status int
		code   string
	}{
		{"bad page id", http.MethodPost, "/api/pages/bad.id/mount", gaugeFragment, http.StatusBadRequest, "INVALID_INPUT"},
		{"unknown widget type", http.MethodPost, "/api/pages/ops/mount", `<div id="x" data-widget-type="sparkline"></div>`, http.StatusUnprocessableEntity, "UNKNOWN_WIDGET"},
		{"fragment too large", http.MethodPost, "/api/pages/ops/mount", strings.Repeat("x", 512), http.StatusRequestEntityTooLarge, "INVALID_INPUT"},
		{"unknown page", http.MethodGet, "/api/pages/nobody/widgets", "", http.StatusNotFound, ""},
		{"event not json", http.MethodPost, "/api/pages/ops/events/widget_update:g", `{value`, http.StatusBadRequest, "MALFORMED_INPUT"},
		{"update malformed", http.MethodPut, "/api/pages/ops/elements/g", `{"data":`, http.StatusBadRequest, "MALFORMED_INPUT"},
		{"empty announcement", http.MethodPost, "/api/pages/ops/announcements", `{}`, http.StatusBadRequest, "INVALID_INPUT"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := env.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, tt.status, resp.StatusCode, string(body))
			if tt.code != "" {
				code, _ := decodeError(t, body)
				assert.Equal(t, tt.code, code)
			}
		})
	}
}

func TestExportWorkbook(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, body := env.do(t, http.MethodPost, "/api/pages/ops/mount", gaugeFragment)
	require.Contains(t, string(body), `"g"`)

	resp, body := env.do(t, http.MethodGet, "/api/pages/ops/export.xlsx", "")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, xlsxContentType, resp.Header.Get("Content-Type"))
	assert.Contains(t, resp.Header.Get("Content-Disposition"), `ops.xlsx`)

	f, err := excelize.OpenReader(bytes.NewReader(body))
	require.NoError(t, err)
	defer f.Close()
	assert.Contains(t, f.GetSheetList(), "g")
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t, Config{AllowedOrigins: []string{"https://dash.example"}})
	req, err := http.NewRequest(http.MethodOptions, env.http.URL+"/api/pages", nil)
	require.NoError(t, err)
	req.Header.Set("Origin", "https://dash.example")
	resp, err := env.http.Client().Do(req)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, "https://dash.example", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestIsOriginAllowed(t *testing.T) {
	policy := newOriginPolicy([]string{"https://dash.example", "http://localhost", " "})
	tests := []struct {
		origin string
		want   bool
	}{
		{"https://dash.example", true},
		{"https://dash.example:443", true},
		{"https://dash.example:8443", false},
		{"http://dash.example", false},
		{"http://localhost:3000", true},
		{"https://evil.example", false},
		{"not a url", false},
	}
	for _, tt := range tests {
		got, _ := policy.allows(tt.origin)
		assert.Equal(t, tt.want, got, tt.origin)
	}

	allowed, wildcard := newOriginPolicy([]string{"*"}).allows("https://any.example")
	assert.True(t, allowed)
	assert.True(t, wildcard)
}

func TestStatusForError(t *testing.T) {
	env := newTestEnv(t, Config{})
	_, err := env.manager.Page("bad page")
	assert.Equal(t, http.StatusBadRequest, statusForError(err))
	assert.Equal(t, http.StatusInternalServerError, statusForError(io.ErrUnexpectedEOF))
}
