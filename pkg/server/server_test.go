package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"irondiscipline/warden/pkg/cache"
	"irondiscipline/warden/pkg/config"
	"irondiscipline/warden/pkg/containment"
	"irondiscipline/warden/pkg/notify"
	"irondiscipline/warden/pkg/possession"
	"irondiscipline/warden/pkg/scheduler"
	"irondiscipline/warden/pkg/session"
	"irondiscipline/warden/pkg/store"
	"irondiscipline/warden/pkg/subject"
	"irondiscipline/warden/pkg/telemetry/health"
	"irondiscipline/warden/pkg/telemetry/metrics"
)

const jail = "world;100;64;100"

type fixture struct {
	store     *store.MemoryBackend
	sessions  *session.Registry
	locations *config.LocationSource
	metrics   *metrics.Collector
	ctrl      *containment.Controller
	srv       *Server
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	f := &fixture{
		store:     store.NewMemoryBackend(),
		sessions:  session.NewRegistry(),
		locations: config.NewLocationSource(config.ContainmentConfig{Location: jail, Radius: 10}),
		metrics:   metrics.NewCollector(config.MetricsConfig{Enabled: true}, nil),
	}
	sched := scheduler.New(scheduler.Config{Shards: 2})
	t.Cleanup(func() { _ = sched.Close() })

	ctrl, err := containment.New(containment.Deps{
		Store:     f.store,
		Cache:     cache.New(),
		Scheduler: sched,
		Sessions:  f.sessions,
		Location:  f.locations,
		Notifier:  &notify.Recorder{},
		Metrics:   f.metrics,
		Logger:    logger,
	}, containment.Settings{BoundaryInterval: time.Hour})
	require.NoError(t, err)
	f.ctrl = ctrl

	checker := health.New(time.Second)
	checker.RegisterCheck("store", health.StoreCheck(f.store))
	checker.RegisterCheck("location", health.LocationCheck(f.locations))

	f.srv, err = New(config.AdminConfig{ShutdownTimeout: time.Second}, Deps{
		Controller: ctrl,
		Dispatcher: containment.NewDispatcher(ctrl),
		Sessions:   f.sessions,
		Health:     checker,
		Metrics:    f.metrics,
		Logger:     logger,
		Version:    "test",
	})
	require.NoError(t, err)
	return f
}

func (f *fixture) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var rd io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		rd = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, rd)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)
	return rec
}

func decodeBody[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&v))
	return v
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(config.AdminConfig{}, Deps{})
	assert.Error(t, err)
}

func TestProbes(t *testing.T) {
	f := newFixture(t)

	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/healthz", nil).Code)
	assert.Equal(t, http.StatusOK, f.do(t, http.MethodGet, "/readyz", nil).Code)

	f.locations.Update(config.ContainmentConfig{Radius: 10})
	rec := f.do(t, http.MethodGet, "/readyz", nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	status := decodeBody[health.HealthStatus](t, rec)
	assert.Equal(t, health.StatusUnhealthy, status.Checks["location"].Status)
}

func TestConfinementLifecycle_Offline(t *testing.T) {
	f := newFixture(t)
	id := subject.NewID()
	path := "/v1/confinements/" + id.String()

	rec := f.do(t, http.MethodPost, "/v1/confinements", ConfineRequest{
		SubjectID:   id.String(),
		DisplayName: "Steve",
		Reason:      "griefing",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[ResultResponse](t, rec).Accepted)

	rec = f.do(t, http.MethodPost, "/v1/confinements", ConfineRequest{SubjectID: id.String()})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = f.do(t, http.MethodGet, "/v1/confinements", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeBody[ListResponse](t, rec)
	require.Equal(t, 1, list.Count)
	assert.Equal(t, "griefing", list.Confinements[0].Reason)
	assert.False(t, list.Confinements[0].HasSnapshot)

	rec = f.do(t, http.MethodGet, path, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Steve", decodeBody[store.Detail](t, rec).DisplayName)

	rec = f.do(t, http.MethodDelete, path, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.True(t, decodeBody[ResultResponse](t, rec).Accepted)

	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodGet, path, nil).Code)
	assert.Equal(t, http.StatusNotFound, f.do(t, http.MethodDelete, path, nil).Code)
	assert.Zero(t, f.store.Len())
}

func TestConfine_RefusedWithoutLocation(t *testing.T) {
	f := newFixture(t)
	id := subject.NewID()

	rec := f.do(t, http.MethodPost, "/v1/events", EventRequest{
		Type: "join", SubjectID: id.String(), Name: "Alex", Location: "world;0;70;0",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	f.locations.Update(config.ContainmentConfig{})
	rec = f.do(t, http.MethodPost, "/v1/confinements", ConfineRequest{SubjectID: id.String()})
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Zero(t, f.store.Len())
	assert.False(t, f.ctrl.IsConfined(id))
}

func TestBadRequests(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name   string
		method string
		path   string
		body   any
	}{
		{"invalid path id", http.MethodGet, "/v1/confinements/not-a-uuid", nil},
		{"invalid subject id", http.MethodPost, "/v1/confinements", ConfineRequest{SubjectID: "nope"}},
		{"invalid initiator", http.MethodPost, "/v1/confinements", ConfineRequest{SubjectID: subject.NewID().String(), InitiatorID: "x"}},
		{"unknown field", http.MethodPost, "/v1/confinements", map[string]string{"subject": "x"}},
		{"unknown event", http.MethodPost, "/v1/events", EventRequest{Type: "teleport", SubjectID: subject.NewID().String()}},
		{"join without location", http.MethodPost, "/v1/events", EventRequest{Type: "join", SubjectID: subject.NewID().String()}},
		{"action without name", http.MethodPost, "/v1/events", EventRequest{Type: "action", SubjectID: subject.NewID().String()}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := f.do(t, tt.method, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestContentType(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodPost, "/v1/confinements", strings.NewReader("subject_id=x"))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnsupportedMediaType, rec.Code)
}

func TestEvents_OnlineSubject(t *testing.T) {
	f := newFixture(t)
	id := subject.NewID()

	rec := f.do(t, http.MethodPost, "/v1/events", EventRequest{
		Type: "join", SubjectID: id.String(), Name: "Alex", Location: "world;0;70;0",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	p, ok := f.sessions.Get(id)
	require.True(t, ok)
	live := p.(*session.LivePlayer)
	live.Give(&possession.Item{Material: "bread", Amount: 8})

	rec = f.do(t, http.MethodPost, "/v1/confinements", ConfineRequest{SubjectID: id.String(), Reason: "spam"})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	assert.Zero(t, possession.CountItems(live.Inventory()))
	assert.Equal(t, 100.0, live.Location().X)

	rec = f.do(t, http.MethodPost, "/v1/events", EventRequest{
		Type: "move", SubjectID: id.String(), Location: "world;140;64;100",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, decodeBody[ResultResponse](t, rec).Teleported)
	assert.Equal(t, 100.0, live.Location().X)

	rec = f.do(t, http.MethodPost, "/v1/events", EventRequest{
		Type: "action", SubjectID: id.String(), Action: string(containment.ActionChat),
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, decodeBody[ResultResponse](t, rec).Accepted)

	rec = f.do(t, http.MethodGet, "/v1/sessions", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decodeBody[[]subject.Subject](t, rec), 1)

	rec = f.do(t, http.MethodPost, "/v1/events", EventRequest{Type: "leave", SubjectID: id.String()})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, f.sessions.IsOnline(id))
	assert.True(t, f.ctrl.IsConfined(id), "leaving keeps confinement")
}

func TestMiddleware_RequestIDAndMetrics(t *testing.T) {
	f := newFixture(t)

	req := httptest.NewRequest(http.MethodGet, "/v1/confinements/"+subject.NewID().String(), nil)
	req.Header.Set(RequestIDHeader, "req-42")
	rec := httptest.NewRecorder()
	f.srv.Handler().ServeHTTP(rec, req)

	assert.Equal(t, "req-42", rec.Header().Get(RequestIDHeader))
	assert.NotEmpty(t, f.do(t, http.MethodGet, "/healthz", nil).Header().Get(RequestIDHeader))

	rec = f.do(t, http.MethodGet, "/metrics", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `route="/v1/confinements/{id}"`)

	count, err := testutil.GatherAndCount(f.metrics.Registry(), "warden_http_requests_total")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, count, 2)
}

func TestServe_ShutsDownOnCancel(t *testing.T) {
	f := newFixture(t)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 10*time.Millisecond)
	assert.True(t, f.srv.IsRunning())

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
	assert.False(t, f.srv.IsRunning())
}
