package devserver

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/raphaelgruber/infomly/internal/client"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type harness struct {
	store  *Store
	swarm  *Swarm
	api    *client.Client
	server *httptest.Server
}

func newHarness(t *testing.T, agents int, delay time.Duration) *harness {
	t.Helper()
	store := NewStore()
	swarm := NewSwarm(store, agents, delay, quietLogger())
	ts := httptest.NewServer(New(store, swarm, quietLogger()).Handler())
	t.Cleanup(func() {
		swarm.Close()
		ts.Close()
	})
	return &harness{
		store:  store,
		swarm:  swarm,
		api:    client.New(ts.URL+APIPrefix, client.WithLogger(quietLogger())),
		server: ts,
	}
}

func TestListFindingsFiltersAndSorts(t *testing.T) {
	h := newHarness(t, 1, time.Hour)
	h.store.Seed()
	ctx := context.Background()

	page, err := h.api.ListFindings(ctx, client.Filter{Wing: client.WingGEO})
	require.NoError(t, err)
	require.Len(t, page.Findings, 1)
	assert.Equal(t, client.WingGEO, page.Findings[0].Wing)
	assert.Empty(t, page.Quarantined, "seeded dossiers pass client validation")

	page, err = h.api.ListFindings(ctx, client.Filter{Wing: client.WingAll, Sort: client.SortHighestConfidence})
	require.NoError(t, err)
	require.Len(t, page.Findings, len(client.Wings))
	for i := 1; i < len(page.Findings); i++ {
		assert.GreaterOrEqual(t, page.Findings[i-1].ConfidenceScore, page.Findings[i].ConfidenceScore)
	}

	page, err = h.api.ListFindings(ctx, client.Filter{MinConfidence: client.IntPtr(100)})
	require.NoError(t, err)
	assert.Empty(t, page.Findings)
}

func TestListFindingsRejectsBadQuery(t *testing.T) {
	h := newHarness(t, 1, time.Hour)

	for _, q := range []string{"wing=Marketing", "sort=random", "min_confidence=abc", "min_confidence=140"} {
		resp, err := http.Get(h.server.URL + APIPrefix + "/findings?" + q)
		require.NoError(t, err)
		resp.Body.Close()
		assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode, q)
	}
}

func TestSwarmRunFilesOneDossierPerAgent(t *testing.T) {
	h := newHarness(t, 3, 5*time.Millisecond)
	ctx := context.Background()

	ack, err := h.api.Launch(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Swarm deployed: 3 agents", ack.Message())

	require.Eventually(t, func() bool {
		status, err := h.api.Status(ctx)
		return err == nil && !status.Active
	}, 2*time.Second, 5*time.Millisecond)

	page, err := h.api.ListFindings(ctx, client.Filter{})
	require.NoError(t, err)
	require.Len(t, page.Findings, 3)
	for _, f := range page.Findings {
		assert.Equal(t, client.StatusReview, f.Status)
		assert.NotEmpty(t, f.AgentID)
		assert.True(t, f.Reviewable())
	}
}

func TestLaunchWhileActiveConflicts(t *testing.T) {
	h := newHarness(t, 2, time.Hour)
	ctx := context.Background()

	_, err := h.api.Launch(ctx)
	require.NoError(t, err)

	status, err := h.api.Status(ctx)
	require.NoError(t, err)
	assert.True(t, status.Active)
	require.NotNil(t, status.Progress)
	assert.Equal(t, client.Progress{Pending: 2, Total: 2}, *status.Progress)

	_, err = h.api.Launch(ctx)
	require.ErrorIs(t, err, client.ErrStatus)
	assert.Equal(t, http.StatusConflict, client.StatusCode(err))
}

func TestStopCancelsRun(t *testing.T) {
	h := newHarness(t, 2, time.Hour)
	ctx := context.Background()

	_, err := h.api.Launch(ctx)
	require.NoError(t, err)

	ack, err := h.api.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "stopped", ack["status"])

	status, err := h.api.Status(ctx)
	require.NoError(t, err)
	assert.False(t, status.Active)
	assert.Nil(t, status.Progress)
	assert.Zero(t, h.store.Len())

	ack, err = h.api.Stop(ctx)
	require.NoError(t, err)
	assert.Equal(t, "idle", ack["status"], "stopping an idle swarm succeeds")
}

func TestReviewActions(t *testing.T) {
	h := newHarness(t, 1, time.Hour)
	ctx := context.Background()
	a := h.store.File(draftDossier(client.WingGEO, 0))
	b := h.store.File(draftDossier(client.WingCommerce, 1))

	_, err := h.api.Approve(ctx, a.ID)
	require.NoError(t, err)
	got, ok := h.store.Get(a.ID)
	require.True(t, ok)
	assert.Equal(t, client.StatusPublished, got.Status)

	_, err = h.api.Kill(ctx, b.ID)
	require.NoError(t, err)
	_, ok = h.store.Get(b.ID)
	assert.False(t, ok, "killed dossiers leave the feed")

	_, err = h.api.Kill(ctx, b.ID)
	require.ErrorIs(t, err, client.ErrStatus)
	assert.Equal(t, http.StatusNotFound, client.StatusCode(err))
	assert.Contains(t, err.Error(), "Finding not found")
}

func TestHealth(t *testing.T) {
	h := newHarness(t, 1, time.Hour)

	resp, err := http.Get(h.server.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestLoggingMiddlewareLevels(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
		want    string
	}{
		{"fast", func(w http.ResponseWriter, r *http.Request) {}, "level=DEBUG msg=\"request completed\""},
		{"slow", func(w http.ResponseWriter, r *http.Request) {
			time.Sleep(slowRequestThreshold + 20*time.Millisecond)
		}, "level=WARN msg=\"slow request\""},
		{"failed", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}, "level=ERROR msg=\"request failed\""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

			req := httptest.NewRequest(http.MethodGet, "/api/findings?wing=GEO", nil)
			req.Header.Set(client.RequestIDHeader, "req-1")
			LoggingMiddleware(logger, tt.handler).ServeHTTP(httptest.NewRecorder(), req)

			out := buf.String()
			assert.Contains(t, out, tt.want)
			assert.Contains(t, out, "path=/api/findings")
			assert.Contains(t, out, `query="wing=GEO"`)
			assert.Contains(t, out, "request_id=req-1")
		})
	}
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	store := NewStore()
	swarm := NewSwarm(store, 2, time.Hour, quietLogger())
	srv := New(store, swarm, quietLogger())
	_, err := swarm.Launch()
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.ListenAndServe(ctx, "127.0.0.1:0") }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not shut down")
	}
	assert.False(t, swarm.Status().Active, "shutdown recalls the swarm")
}
