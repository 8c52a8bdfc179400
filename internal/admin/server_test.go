package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"worldclear/internal/controller"
	"worldclear/internal/logging"
	"worldclear/internal/loop"
	"worldclear/internal/monitor"
	"worldclear/internal/orchestrator"
	"worldclear/internal/scan"
)

type fakeController struct {
	status    controller.Status
	scopes    []controller.ScopeReport
	cleared   []string
	clearErr  error
	reloadErr error
	reloads   int
}

func (f *fakeController) Status() controller.Status { return f.status }

func (f *fakeController) Clear(_ context.Context, kind, scope string) (int, error) {
	if f.clearErr != nil {
		return 0, f.clearErr
	}
	f.cleared = append(f.cleared, kind+"@"+scope)
	return 7, nil
}

func (f *fakeController) Scope(_ context.Context, name string) (controller.ScopeReport, error) {
	for _, s := range f.scopes {
		if s.Name == name {
			return s, nil
		}
	}
	return controller.ScopeReport{}, fmt.Errorf("%w: %q", orchestrator.ErrUnknownScope, name)
}

func (f *fakeController) Scopes(context.Context) ([]controller.ScopeReport, error) {
	return f.scopes, nil
}

func (f *fakeController) Reload(context.Context) error {
	f.reloads++
	return f.reloadErr
}

func newFake() *fakeController {
	st := scan.Statistics{Total: 3, Consumables: 2, Hostile: 1, Partitions: 1}
	return &fakeController{
		status: controller.Status{
			Enabled:        true,
			CurrentMetric:  16,
			Severity:       monitor.Warning,
			Band:           monitor.Orange,
			CleanupSummary: "Last cleanup: 0 items | 0 seconds ago | Total: 0",
			Rules:          []orchestrator.Rule{orchestrator.DefaultRule()},
		},
		scopes: []controller.ScopeReport{{Name: "overworld", Enabled: true, Stats: st, Summary: st.String()}},
	}
}

func do(t *testing.T, s *Server, method, target string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	w := httptest.NewRecorder()
	s.Handler().ServeHTTP(w, req)
	return w.Result()
}

func TestHandleStatus(t *testing.T) {
	server := NewServer(newFake(), logging.Discard())

	resp := do(t, server, http.MethodGet, "/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var data map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if data["severity"] != "warning" || data["band"] != "orange" {
		t.Errorf("unexpected status payload: %+v", data)
	}
}

func TestHandleClear(t *testing.T) {
	fake := newFake()
	server := NewServer(fake, logging.Discard())

	resp := do(t, server, http.MethodPost, "/clear?type=clusters&scope=overworld")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var data struct{ Removed int }
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if data.Removed != 7 {
		t.Errorf("expected 7 removed, got %d", data.Removed)
	}
	if len(fake.cleared) != 1 || fake.cleared[0] != "clusters@overworld" {
		t.Errorf("unexpected clear calls: %v", fake.cleared)
	}

	if resp := do(t, server, http.MethodGet, "/clear?type=items"); resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("expected GET /clear to be rejected, got %v", resp.StatusCode)
	}
}

func TestHandleClearErrors(t *testing.T) {
	cases := []struct {
		err  error
		want int
	}{
		{fmt.Errorf("%w: %q", orchestrator.ErrUnknownCategory, "lava"), http.StatusBadRequest},
		{fmt.Errorf("%w: %q", orchestrator.ErrUnknownScope, "void"), http.StatusNotFound},
		{loop.ErrStopped, http.StatusServiceUnavailable},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		fake := newFake()
		fake.clearErr = tc.err
		server := NewServer(fake, logging.Discard())
		resp := do(t, server, http.MethodPost, "/clear?type=lava")
		if resp.StatusCode != tc.want {
			t.Errorf("%v: expected %d, got %d", tc.err, tc.want, resp.StatusCode)
		}
	}
}

func TestHandleScopes(t *testing.T) {
	server := NewServer(newFake(), logging.Discard())

	resp := do(t, server, http.MethodGet, "/scopes")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	var all []controller.ScopeReport
	if err := json.NewDecoder(resp.Body).Decode(&all); err != nil {
		t.Fatalf("decode error: %v", err)
	}
	if len(all) != 1 || all[0].Stats.Consumables != 2 {
		t.Errorf("unexpected scopes: %+v", all)
	}

	resp = do(t, server, http.MethodGet, "/scopes?name=overworld")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	resp = do(t, server, http.MethodGet, "/scopes?name=void")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected not found for unknown scope, got %v", resp.StatusCode)
	}
}

func TestHandleReload(t *testing.T) {
	fake := newFake()
	server := NewServer(fake, logging.Discard())

	if resp := do(t, server, http.MethodPost, "/reload"); resp.StatusCode != http.StatusNoContent {
		t.Fatalf("expected no content, got %v", resp.StatusCode)
	}
	fake.reloadErr = errors.New("reload: bad yaml")
	if resp := do(t, server, http.MethodPost, "/reload"); resp.StatusCode != http.StatusUnprocessableEntity {
		t.Fatalf("expected unprocessable entity, got %v", resp.StatusCode)
	}
	if fake.reloads != 2 {
		t.Errorf("expected 2 reloads, got %d", fake.reloads)
	}
}

func TestHandleIndex(t *testing.T) {
	server := NewServer(newFake(), logging.Discard())

	resp := do(t, server, http.MethodGet, "/")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("expected status OK, got %v", resp.StatusCode)
	}
	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	body := string(raw)
	for _, want := range []string{"overworld", "Total: 3 | Items: 2 | Monsters: 1", "class=\"orange\"", "default every 10m0s"} {
		if !strings.Contains(body, want) {
			t.Errorf("index missing %q", want)
		}
	}
}

func TestWriteJSONLogsEncodeFailure(t *testing.T) {
	var buf bytes.Buffer
	server := NewServer(newFake(), logging.New(logging.Options{Level: "debug", Output: &buf}))

	w := httptest.NewRecorder()
	server.writeJSON(w, http.StatusOK, map[string]float64{"metric": math.Inf(1)})

	if !strings.Contains(buf.String(), "encode response failed") {
		t.Fatalf("expected encode failure to be logged, got %q", buf.String())
	}
}
