package server

import (
	"context"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"townhall/internal/api"
	"townhall/internal/auth"
	"townhall/internal/logging"
	"townhall/internal/outreach"
	"townhall/internal/store"
	"townhall/internal/web"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m,
		goleak.IgnoreTopFunction("net/http.(*persistConn).readLoop"),
		goleak.IgnoreTopFunction("net/http.(*persistConn).writeLoop"),
		goleak.IgnoreTopFunction("database/sql.(*DB).connectionOpener"),
	)
}

func newRoutes(t *testing.T) http.Handler {
	t.Helper()
	st, err := store.Open(filepath.Join(t.TempDir(), "server.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	authSvc := auth.NewService(st, auth.LogMailer{}, auth.Config{BaseURL: "http://example.test"})
	wf := outreach.NewWorkflow(st, outreach.NewSelector(st, rand.New(rand.NewSource(1))))
	pages, err := web.New(st, wf, authSvc)
	require.NoError(t, err)
	return Routes(pages, api.New(st), authSvc)
}

func TestRoutes_RequestID(t *testing.T) {
	h := newRoutes(t)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	_, err := uuid.Parse(rec.Header().Get(RequestIDHeader))
	assert.NoError(t, err, "a fresh request id is assigned")

	given := uuid.NewString()
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, given)
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, given, rec.Header().Get(RequestIDHeader))

	req = httptest.NewRequest(http.MethodGet, "/healthz", nil)
	req.Header.Set(RequestIDHeader, "not a uuid")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.NotEqual(t, "not a uuid", rec.Header().Get(RequestIDHeader))
}

func TestRoutes_MountsPagesAndAPI(t *testing.T) {
	h := newRoutes(t)

	for _, tc := range []struct {
		path   string
		status int
	}{
		{"/", http.StatusOK},
		{"/api/officials/", http.StatusOK},
		{"/call-us-rep/", http.StatusFound},
		{"/accounts/login/", http.StatusOK},
		{"/nowhere/", http.StatusNotFound},
	} {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tc.path, nil))
		assert.Equal(t, tc.status, rec.Code, tc.path)
	}
}

func TestRecoverer(t *testing.T) {
	h := chain(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}), recoverer, requestID)

	rec := httptest.NewRecorder()
	require.NotPanics(t, func() {
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	})
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "boom")
}

func TestAccessLog_RecordsStatus(t *testing.T) {
	var seen int
	h := accessLog(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		w.WriteHeader(http.StatusOK)
		seen = w.(*statusRecorder).status
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusTeapot, seen)
}

func TestServer_StartShutdown(t *testing.T) {
	logging.Initialize(nil, nil)
	s := New(Settings{Addr: "127.0.0.1:0", ShutdownTimeout: time.Second},
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, "hello")
		}))

	ctx := context.Background()
	require.NoError(t, s.Start(ctx))
	assert.Error(t, s.Start(ctx), "double start")

	client := &http.Client{Transport: &http.Transport{DisableKeepAlives: true}}
	resp, err := client.Get("http://" + s.Addr() + "/")
	require.NoError(t, err)
	body, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "hello", string(body))

	require.NoError(t, s.Shutdown(ctx))
	assert.Empty(t, s.Addr())
	assert.NoError(t, s.Shutdown(ctx), "shutdown is idempotent")
}

func TestServer_RunStopsOnCancel(t *testing.T) {
	s := New(Settings{Addr: "127.0.0.1:0"}, http.NotFoundHandler())
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestServer_RunReturnsServeError(t *testing.T) {
	s := New(Settings{Addr: "127.0.0.1:0"}, http.NotFoundHandler())

	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(context.Background()) }()

	require.Eventually(t, func() bool { return s.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	s.mu.Lock()
	require.NoError(t, s.listener.Close())
	s.mu.Unlock()

	select {
	case err := <-errCh:
		assert.ErrorContains(t, err, "serve")
	case <-time.After(5 * time.Second):
		t.Fatal("Run kept blocking after the listener died")
	}
	assert.Empty(t, s.Addr())
}
