package api

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/trending-crawler/internal/crawler"
	"github.com/JakeFAU/trending-crawler/internal/metrics"
)

type fakeStatus struct {
	mu     sync.Mutex
	status crawler.RunStatus
}

func (f *fakeStatus) Snapshot() crawler.RunStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.status.Clone()
}

func (f *fakeStatus) set(s crawler.RunStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.status = s
}

func serve(t *testing.T, s *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(&fakeStatus{}, zap.NewNop()), "/healthz")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
}

func TestReadyzReflectsRunState(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{}
	s := NewServer(status, nil)
	status.set(crawler.RunStatus{State: crawler.RunStateRunning})
	require.Equal(t, http.StatusOK, serve(t, s, "/readyz").Code)

	status.set(crawler.RunStatus{State: crawler.RunStateFailed})
	require.Equal(t, http.StatusServiceUnavailable, serve(t, s, "/readyz").Code)
}

func TestStatusReturnsSnapshot(t *testing.T) {
	t.Parallel()

	status := &fakeStatus{}
	status.set(crawler.RunStatus{
		RunID:     "run-1",
		State:     crawler.RunStateRunning,
		Workers:   2,
		JobsTotal: 3,
		Completed: 1,
		Pending:   1,
		InFlight:  1,
		Slots:     []crawler.SlotState{crawler.SlotAwaitingResult, crawler.SlotClosed},
	})
	rec := serve(t, NewServer(status, zap.NewNop()), "/v1/status")
	require.Equal(t, http.StatusOK, rec.Code)

	var got crawler.RunStatus
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "run-1", got.RunID)
	assert.Equal(t, crawler.RunStateRunning, got.State)
	assert.Equal(t, 3, got.JobsTotal)
	assert.Equal(t, []crawler.SlotState{crawler.SlotAwaitingResult, crawler.SlotClosed}, got.Slots)
}

func TestStatusWithoutRun(t *testing.T) {
	t.Parallel()

	rec := serve(t, NewServer(nil, zap.NewNop()), "/v1/status")
	require.Equal(t, http.StatusServiceUnavailable, rec.Code)
}

func TestMetricsEndpoint(t *testing.T) {
	t.Parallel()

	metrics.Init()
	metrics.ObserveDispatch(false)
	rec := serve(t, NewServer(&fakeStatus{}, zap.NewNop()), "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "scheduler_dispatches_total"))
}

func TestRequestIDIsPropagated(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set("X-Request-ID", "abc")
	rec := httptest.NewRecorder()
	NewServer(&fakeStatus{}, zap.NewNop()).Handler().ServeHTTP(rec, req)
	assert.Equal(t, "abc", rec.Header().Get("X-Request-ID"))
}

func TestRecoverMiddleware(t *testing.T) {
	t.Parallel()

	s := NewServer(&fakeStatus{}, zap.NewNop())
	h := s.recoverMiddleware(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestListenAndServeStopsOnCancel(t *testing.T) {
	t.Parallel()

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- NewServer(&fakeStatus{}, zap.NewNop()).ListenAndServe(ctx, addr)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/healthz")
		if err != nil {
			return false
		}
		_ = resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("server did not stop")
	}
}
