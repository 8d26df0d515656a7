package server_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/raphaelgruber/flinkwatch/internal/client"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/raphaelgruber/flinkwatch/internal/server"
	"github.com/raphaelgruber/flinkwatch/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// testLogger creates a logger that writes to stderr for test visibility.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

type staticSource struct {
	jobs []flink.Job
}

func (s *staticSource) ListJobs(context.Context) (*client.Overview, error) {
	return &client.Overview{Jobs: s.jobs}, nil
}

func newTestServer(t *testing.T, jobs ...flink.Job) (*httptest.Server, *service.Watcher, *metrics.Collector) {
	t.Helper()
	m := metrics.NewCollector()
	w := service.NewWatcher(&staticSource{jobs: jobs}, nil, service.WithLogger(testLogger()), service.WithMetrics(m))
	srv := server.New(w, m, testLogger())
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, w, m
}

func runningJob(id string, start int64) flink.Job {
	return flink.Job{
		ID:        id,
		Name:      "job-" + id,
		Status:    flink.StateRunning,
		StartedAt: &start,
		Counters:  flink.TaskCounts{Total: 4, Running: 3, Finished: 1},
	}
}

func TestHealth(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/health")
	require.NoError(t, err)
	defer resp.Body.Close()

	body, _ := io.ReadAll(resp.Body)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok\n", string(body))
}

func TestJobsEndpoints(t *testing.T) {
	ts, w, _ := newTestServer(t, runningJob("old", 100), runningJob("new", 200))
	_, err := w.PollOnce(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var jobs []flink.Job
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&jobs))
	require.Len(t, jobs, 2)
	assert.Equal(t, "new", jobs[0].ID)
	assert.Equal(t, 1, jobs[0].Counters.Finished)

	resp2, err := http.Get(ts.URL + "/jobs/old")
	require.NoError(t, err)
	defer resp2.Body.Close()
	require.Equal(t, http.StatusOK, resp2.StatusCode)
	var one flink.Job
	require.NoError(t, json.NewDecoder(resp2.Body).Decode(&one))
	assert.Equal(t, "job-old", one.Name)

	resp3, err := http.Get(ts.URL + "/jobs/missing")
	require.NoError(t, err)
	defer resp3.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp3.StatusCode)
}

func TestJobsEmptyView(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Get(ts.URL + "/jobs")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	assert.JSONEq(t, "[]", string(body))
}

func TestStats(t *testing.T) {
	ts, w, _ := newTestServer(t, runningJob("a", 1))
	_, err := w.PollOnce(context.Background())
	require.NoError(t, err)

	resp, err := http.Get(ts.URL + "/stats")
	require.NoError(t, err)
	defer resp.Body.Close()

	var snap metrics.Snapshot
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&snap))
	assert.Equal(t, int64(1), snap.Operations[metrics.OpPoll].Count)
	assert.Equal(t, int64(1), snap.Counters[metrics.CountStateChanges])
}

func TestMethodNotAllowed(t *testing.T) {
	ts, _, _ := newTestServer(t)

	resp, err := http.Post(ts.URL+"/jobs", "application/json", strings.NewReader("{}"))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusMethodNotAllowed, resp.StatusCode)
}

func TestWebsocketStreamsChanges(t *testing.T) {
	ts, w, _ := newTestServer(t, runningJob("a", 1))

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = w.PollOnce(context.Background())
	require.NoError(t, err)

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var change service.Change
	require.NoError(t, conn.ReadJSON(&change))
	assert.Equal(t, "a", change.Job.ID)
	assert.Equal(t, flink.StateRunning, change.Job.Status)
	assert.Nil(t, change.Previous)
	assert.NotEmpty(t, change.PollID)
}

func TestWebsocketPings(t *testing.T) {
	w := service.NewWatcher(&staticSource{}, nil, service.WithLogger(testLogger()))
	srv := server.New(w, nil, testLogger())
	srv.SetPingInterval(20 * time.Millisecond)
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	pinged := make(chan struct{}, 1)
	conn.SetPingHandler(func(string) error {
		select {
		case pinged <- struct{}{}:
		default:
		}
		return nil
	})
	// control frames are only processed while reading
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	select {
	case <-pinged:
	case <-time.After(2 * time.Second):
		t.Fatal("no ping received")
	}
}

func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	handler := server.LoggingMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			time.Sleep(150 * time.Millisecond)
		case "/boom":
			http.Error(w, "boom", http.StatusInternalServerError)
		}
	}))

	tests := []struct {
		path  string
		level string
		msg   string
	}{
		{"/fast?x=1", "DEBUG", "request completed"},
		{"/slow", "WARN", "slow request"},
		{"/boom", "ERROR", "request failed"},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			buf.Reset()
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.path, nil))

			out := buf.String()
			assert.Contains(t, out, "level="+tt.level)
			assert.Contains(t, out, tt.msg)
		})
	}
}
