// Package service watches a Flink cluster and records job state changes.
package service

import (
	"cmp"
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/raphaelgruber/flinkwatch/internal/client"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/raphaelgruber/flinkwatch/internal/models"
)

// DefaultInterval is the poll interval used when none is configured.
const DefaultInterval = 5 * time.Second

// subscriberBuffer is the channel capacity handed to each subscriber.
const subscriberBuffer = 64

// JobSource lists the jobs of a cluster. *client.Client satisfies it.
type JobSource interface {
	ListJobs(ctx context.Context) (*client.Overview, error)
}

// SnapshotStore persists job snapshots. *db.Client satisfies it.
type SnapshotStore interface {
	CreateSnapshot(ctx context.Context, snap models.Snapshot) (*models.Snapshot, error)
}

// Change is emitted when a job first appears or its state or last-modification changes.
type Change struct {
	Job        flink.Job `json:"job"`
	Previous   *string   `json:"previous_state,omitempty"`
	ObservedAt time.Time `json:"observed_at"`
	PollID     string    `json:"poll_id"`
}

// StateChanged reports whether the change moved the job to a different state.
func (c Change) StateChanged() bool {
	return c.Previous == nil || *c.Previous != c.Job.Status
}

// Watcher polls a JobSource and keeps the latest view of every job.
type Watcher struct {
	source   JobSource
	store    SnapshotStore
	interval time.Duration
	logger   *slog.Logger
	metrics  *metrics.Collector
	now      func() time.Time

	mu     sync.RWMutex
	latest map[string]flink.Job

	subMu   sync.Mutex
	subs    map[int]chan Change
	nextSub int
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithInterval sets the poll interval. Non-positive values are ignored.
func WithInterval(d time.Duration) Option {
	return func(w *Watcher) {
		if d > 0 {
			w.interval = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(w *Watcher) { w.logger = l }
}

// WithMetrics records poll timings and change counters.
func WithMetrics(m *metrics.Collector) Option {
	return func(w *Watcher) { w.metrics = m }
}

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(w *Watcher) { w.now = now }
}

// NewWatcher creates a watcher. store may be nil, in which case nothing is persisted.
func NewWatcher(source JobSource, store SnapshotStore, opts ...Option) *Watcher {
	w := &Watcher{
		source:   source,
		store:    store,
		interval: DefaultInterval,
		logger:   slog.Default(),
		now:      time.Now,
		latest:   make(map[string]flink.Job),
		subs:     make(map[int]chan Change),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Interval returns the configured poll interval.
func (w *Watcher) Interval() time.Duration {
	return w.interval
}

// PollOnce fetches the overview once and returns the changes it observed.
func (w *Watcher) PollOnce(ctx context.Context) (_ []Change, err error) {
	done := w.metrics.Time(metrics.OpPoll)
	defer func() { done(err) }()

	ov, err := w.source.ListJobs(ctx)
	if err != nil {
		w.metrics.Add(metrics.CountPollErrors, 1)
		return nil, err
	}

	pollID := uuid.NewString()
	observedAt := w.now().UTC()

	w.mu.RLock()
	previous := w.latest
	w.mu.RUnlock()

	next := make(map[string]flink.Job, len(ov.Jobs))
	var changes []Change
	for _, job := range ov.Jobs {
		next[job.ID] = job

		prev, seen := previous[job.ID]
		if seen && prev.Status == job.Status && equalPtr(prev.LastModifiedAt, job.LastModifiedAt) {
			continue
		}
		change := Change{Job: job, ObservedAt: observedAt, PollID: pollID}
		if seen {
			state := prev.Status
			change.Previous = &state
		}
		changes = append(changes, change)
	}

	// A known job whose record failed to decode this poll keeps its last good view.
	for _, r := range ov.Rejected {
		if r.ID == "" {
			continue
		}
		if _, ok := next[r.ID]; ok {
			continue
		}
		if prev, seen := previous[r.ID]; seen {
			next[r.ID] = prev
		}
	}

	for _, c := range changes {
		w.persist(ctx, c)
	}

	w.mu.Lock()
	w.latest = next
	w.mu.Unlock()

	w.metrics.Add(metrics.CountStateChanges, int64(len(changes)))
	for _, c := range changes {
		w.logger.Info("job changed", "poll_id", pollID, "jid", c.Job.ID, "name", c.Job.Name,
			"state", c.Job.Status, "previous", deref(c.Previous))
		w.publish(c)
	}

	if len(ov.Rejected) > 0 {
		w.logger.Debug("poll skipped records", "poll_id", pollID, "rejected", len(ov.Rejected))
	}
	return changes, nil
}

func (w *Watcher) persist(ctx context.Context, c Change) {
	if w.store == nil {
		return
	}
	done := w.metrics.Time(metrics.OpStoreWrite)
	_, err := w.store.CreateSnapshot(ctx, models.NewSnapshot(c.Job, c.Previous, c.PollID, c.ObservedAt))
	done(err)
	if err != nil {
		w.logger.Warn("failed to store snapshot", "jid", c.Job.ID, "poll_id", c.PollID, "error", err)
	}
}

// Run polls immediately and then on every interval until ctx is done.
// Poll errors are logged and do not stop the loop.
func (w *Watcher) Run(ctx context.Context) error {
	w.logger.Info("watcher started", "interval", w.interval)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		if _, err := w.PollOnce(ctx); err != nil && ctx.Err() == nil {
			w.logger.Warn("poll failed", "error", err)
		}

		select {
		case <-ctx.Done():
			w.logger.Info("watcher stopped")
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

// Subscribe returns a channel of changes and a function that cancels the subscription.
// Changes are dropped for subscribers that do not keep up.
func (w *Watcher) Subscribe() (<-chan Change, func()) {
	ch := make(chan Change, subscriberBuffer)

	w.subMu.Lock()
	id := w.nextSub
	w.nextSub++
	w.subs[id] = ch
	w.subMu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.subMu.Lock()
			delete(w.subs, id)
			w.subMu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}

func (w *Watcher) publish(c Change) {
	w.subMu.Lock()
	defer w.subMu.Unlock()
	for id, ch := range w.subs {
		select {
		case ch <- c:
		default:
			w.logger.Warn("subscriber too slow, dropping change", "subscriber", id, "jid", c.Job.ID)
		}
	}
}

// Latest returns the jobs seen by the last successful poll, most recently started first.
// Jobs without a start time sort last; ties are broken by job id.
func (w *Watcher) Latest() []flink.Job {
	w.mu.RLock()
	jobs := make([]flink.Job, 0, len(w.latest))
	for _, job := range w.latest {
		jobs = append(jobs, job)
	}
	w.mu.RUnlock()

	slices.SortFunc(jobs, func(a, b flink.Job) int {
		at, aok := a.StartTime()
		bt, bok := b.StartTime()
		switch {
		case aok && !bok:
			return -1
		case !aok && bok:
			return 1
		case aok && bok:
			if c := bt.Compare(at); c != 0 {
				return c
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return jobs
}

// Get returns the latest view of one job.
func (w *Watcher) Get(jid string) (flink.Job, bool) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	job, ok := w.latest[jid]
	return job, ok
}

func equalPtr(a, b *string) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
