package httpserver

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/jonboulle/clockwork"
	"github.com/pscheid92/selectionsync/internal/domain"
	"github.com/pscheid92/selectionsync/internal/platform/config"
)

type mockEngine struct {
	localApp      int
	setSelectedFn func(ctx context.Context, index int, selected bool) error
	highlightFn   func(ctx context.Context, index int) error
	resetGroupFn  func(ctx context.Context, group int, contextType domain.ApplicationType) error
	resetAllFn    func(ctx context.Context) error
	snapshotFn    func(ctx context.Context, appID int) (domain.SlotSnapshot, error)
}

func (m *mockEngine) LocalApp() int { return m.localApp }

func (m *mockEngine) SetSelected(ctx context.Context, index int, selected bool) error {
	if m.setSelectedFn != nil {
		return m.setSelectedFn(ctx, index, selected)
	}
	return nil
}

func (m *mockEngine) Highlight(ctx context.Context, index int) error {
	if m.highlightFn != nil {
		return m.highlightFn(ctx, index)
	}
	return nil
}

func (m *mockEngine) ResetGroup(ctx context.Context, group int, contextType domain.ApplicationType) error {
	if m.resetGroupFn != nil {
		return m.resetGroupFn(ctx, group, contextType)
	}
	return nil
}

func (m *mockEngine) ResetAll(ctx context.Context) error {
	if m.resetAllFn != nil {
		return m.resetAllFn(ctx)
	}
	return nil
}

func (m *mockEngine) Snapshot(ctx context.Context, appID int) (domain.SlotSnapshot, error) {
	if m.snapshotFn != nil {
		return m.snapshotFn(ctx, appID)
	}
	return domain.SlotSnapshot{AppID: appID, Highlighted: map[int]int{}}, nil
}

type testServerOption func(*Options)

func withHealthChecks(checks ...HealthCheck) testServerOption {
	return func(o *Options) { o.HealthChecks = checks }
}

func withClock(clock clockwork.Clock) testServerOption {
	return func(o *Options) { o.Clock = clock }
}

func newTestServer(t *testing.T, engine *mockEngine, opts ...testServerOption) *Server {
	t.Helper()
	cfg := &config.Config{AppEnv: "test", Port: "8080", AppID: engine.localApp}
	o := Options{Clock: clockwork.NewFakeClock()}
	for _, opt := range opts {
		opt(&o)
	}
	return NewServer(cfg, engine, o)
}

func doRequest(srv *Server, method, target, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, target, nil)
	} else {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, req)
	return rec
}
