package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/raphaelgruber/flinkwatch/internal/client"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/raphaelgruber/flinkwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSource struct {
	mu        sync.Mutex
	overviews []*client.Overview
	err       error
	calls     int
}

func (f *fakeSource) ListJobs(context.Context) (*client.Overview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	if len(f.overviews) == 0 {
		return &client.Overview{}, nil
	}
	ov := f.overviews[0]
	if len(f.overviews) > 1 {
		f.overviews = f.overviews[1:]
	}
	return ov, nil
}

func (f *fakeSource) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeStore struct {
	mu    sync.Mutex
	snaps []models.Snapshot
	err   error
}

func (f *fakeStore) CreateSnapshot(_ context.Context, snap models.Snapshot) (*models.Snapshot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	f.snaps = append(f.snaps, snap)
	return &snap, nil
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func job(id, state string, start int64, mod string) flink.Job {
	j := flink.Job{ID: id, Name: "job-" + id, Status: state, StartedAt: &start}
	if mod != "" {
		j.LastModifiedAt = &mod
	}
	return j
}

func overview(jobs ...flink.Job) *client.Overview {
	return &client.Overview{Jobs: jobs}
}

func fixedClock() func() time.Time {
	t := time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)
	return func() time.Time { return t }
}

func TestPollOnceDetectsChanges(t *testing.T) {
	src := &fakeSource{overviews: []*client.Overview{
		overview(job("a", flink.StateCreated, 100, "1"), job("b", flink.StateRunning, 200, "1")),
		overview(job("a", flink.StateRunning, 100, "2"), job("b", flink.StateRunning, 200, "1")),
		overview(job("a", flink.StateRunning, 100, "3")),
	}}
	store := &fakeStore{}
	w := NewWatcher(src, store, WithLogger(quietLogger()), WithClock(fixedClock()))
	ctx := context.Background()

	changes, err := w.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 2)
	for _, c := range changes {
		assert.Nil(t, c.Previous)
		assert.True(t, c.StateChanged())
		assert.NotEmpty(t, c.PollID)
	}
	assert.Equal(t, changes[0].PollID, changes[1].PollID)

	changes, err = w.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, "a", changes[0].Job.ID)
	require.NotNil(t, changes[0].Previous)
	assert.Equal(t, flink.StateCreated, *changes[0].Previous)

	// same state, new last-modification; b vanished
	changes, err = w.PollOnce(ctx)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.False(t, changes[0].StateChanged())

	_, ok := w.Get("b")
	assert.False(t, ok)
	latest := w.Latest()
	require.Len(t, latest, 1)
	assert.Equal(t, "a", latest[0].ID)

	require.Len(t, store.snaps, 4)
	assert.Equal(t, "a", store.snaps[2].JobID)
	assert.Equal(t, flink.StateCreated, *store.snaps[2].PreviousState)
	assert.Equal(t, time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC), store.snaps[0].ObservedAt)
}

func TestPollOnceUnchangedEmitsNothing(t *testing.T) {
	src := &fakeSource{overviews: []*client.Overview{overview(job("a", flink.StateRunning, 1, "5"))}}
	w := NewWatcher(src, nil, WithLogger(quietLogger()))

	_, err := w.PollOnce(context.Background())
	require.NoError(t, err)
	changes, err := w.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Empty(t, changes)
}

func TestPollOnceSourceError(t *testing.T) {
	m := metrics.NewCollector()
	src := &fakeSource{err: errors.New("connection refused")}
	w := NewWatcher(src, nil, WithLogger(quietLogger()), WithMetrics(m))

	_, err := w.PollOnce(context.Background())
	require.Error(t, err)

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.Counters[metrics.CountPollErrors])
	assert.Equal(t, int64(1), snap.Operations[metrics.OpPoll].Errors)
}

func TestPollOnceStoreErrorKeepsView(t *testing.T) {
	src := &fakeSource{overviews: []*client.Overview{overview(job("a", flink.StateRunning, 1, ""))}}
	store := &fakeStore{err: errors.New("db down")}
	m := metrics.NewCollector()
	w := NewWatcher(src, store, WithLogger(quietLogger()), WithMetrics(m))

	changes, err := w.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, changes, 1)

	_, ok := w.Get("a")
	assert.True(t, ok)
	assert.Equal(t, int64(1), m.Snapshot().Operations[metrics.OpStoreWrite].Errors)
}

func TestPollOnceRejectedRecordKeepsView(t *testing.T) {
	src := &fakeSource{overviews: []*client.Overview{
		overview(job("a", flink.StateRunning, 1, "1")),
		{Rejected: []flink.Rejected{
			{Index: 0, ID: "a", Err: flink.ErrCoercion},
			{Index: 1, ID: "unknown", Err: flink.ErrCoercion},
			{Index: 2, Err: flink.ErrMissingField},
		}},
		overview(job("a", flink.StateRunning, 1, "1")),
	}}
	store := &fakeStore{}
	w := NewWatcher(src, store, WithLogger(quietLogger()))
	ctx := context.Background()

	_, err := w.PollOnce(ctx)
	require.NoError(t, err)

	changes, err := w.PollOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)
	got, ok := w.Get("a")
	require.True(t, ok)
	assert.Equal(t, flink.StateRunning, got.Status)
	_, ok = w.Get("unknown")
	assert.False(t, ok)

	changes, err = w.PollOnce(ctx)
	require.NoError(t, err)
	assert.Empty(t, changes)
	assert.Len(t, store.snaps, 1)
}

func TestLatestOrdering(t *testing.T) {
	noStart := flink.Job{ID: "z", Status: flink.StateCreated}
	notStarted := job("y", flink.StateCreated, -1, "")
	src := &fakeSource{overviews: []*client.Overview{overview(
		job("old", flink.StateRunning, 100, ""),
		noStart,
		job("new-b", flink.StateRunning, 300, ""),
		notStarted,
		job("new-a", flink.StateRunning, 300, ""),
	)}}
	w := NewWatcher(src, nil, WithLogger(quietLogger()))
	_, err := w.PollOnce(context.Background())
	require.NoError(t, err)

	var ids []string
	for _, j := range w.Latest() {
		ids = append(ids, j.ID)
	}
	assert.Equal(t, []string{"new-a", "new-b", "old", "y", "z"}, ids)
}

func TestSubscribe(t *testing.T) {
	src := &fakeSource{overviews: []*client.Overview{overview(job("a", flink.StateRunning, 1, ""))}}
	w := NewWatcher(src, nil, WithLogger(quietLogger()))

	ch, cancel := w.Subscribe()
	_, err := w.PollOnce(context.Background())
	require.NoError(t, err)

	select {
	case c := <-ch:
		assert.Equal(t, "a", c.Job.ID)
	case <-time.After(time.Second):
		t.Fatal("no change received")
	}

	cancel()
	cancel()
	_, open := <-ch
	assert.False(t, open)
}

func TestSubscribeSlowConsumerDrops(t *testing.T) {
	var jobs []flink.Job
	for i := range subscriberBuffer + 10 {
		jobs = append(jobs, job(fmt.Sprintf("j%d", i), flink.StateRunning, int64(i), ""))
	}
	src := &fakeSource{overviews: []*client.Overview{overview(jobs...)}}
	w := NewWatcher(src, nil, WithLogger(quietLogger()))

	ch, cancel := w.Subscribe()
	defer cancel()

	changes, err := w.PollOnce(context.Background())
	require.NoError(t, err)
	assert.Len(t, changes, subscriberBuffer+10)
	assert.Len(t, ch, subscriberBuffer)
}

func TestRunStopsOnCancel(t *testing.T) {
	src := &fakeSource{err: errors.New("unavailable")}
	w := NewWatcher(src, nil, WithLogger(quietLogger()), WithInterval(10*time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool { return src.callCount() >= 3 }, time.Second, 5*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("Run did not return")
	}
}

func TestWithIntervalIgnoresNonPositive(t *testing.T) {
	w := NewWatcher(&fakeSource{}, nil, WithInterval(0))
	assert.Equal(t, DefaultInterval, w.Interval())
}
