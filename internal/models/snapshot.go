// Package models defines the records persisted in the snapshot store.
package models

import (
	"time"

	"github.com/raphaelgruber/flinkwatch/internal/flink"
	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Snapshot is one observed state of a Flink job, written whenever the watcher sees a
// new job or a state/last-modification change.
type Snapshot struct {
	ID               *surrealmodels.RecordID `json:"id,omitempty" yaml:"-"`
	JobID            string                  `json:"jid" yaml:"jid"`
	Name             string                  `json:"name" yaml:"name"`
	State            string                  `json:"state" yaml:"state"`
	PreviousState    *string                 `json:"previous_state,omitempty" yaml:"previous_state,omitempty"` // nil for the first observation
	StartTime        *int64                  `json:"start_time,omitempty" yaml:"start_time,omitempty"`
	EndTime          *string                 `json:"end_time,omitempty" yaml:"end_time,omitempty"`
	Duration         *string                 `json:"duration,omitempty" yaml:"duration,omitempty"`
	LastModification *string                 `json:"last_modification,omitempty" yaml:"last_modification,omitempty"`
	Tasks            flink.TaskCounts        `json:"tasks" yaml:"tasks"`
	PollID           string                  `json:"poll_id" yaml:"poll_id"`
	ObservedAt       time.Time               `json:"observed_at" yaml:"observed_at"`
}

// NewSnapshot captures a decoded job.
func NewSnapshot(job flink.Job, previousState *string, pollID string, observedAt time.Time) Snapshot {
	return Snapshot{
		JobID:            job.ID,
		Name:             job.Name,
		State:            job.Status,
		PreviousState:    previousState,
		StartTime:        job.StartedAt,
		EndTime:          job.EndedAt,
		Duration:         job.Duration,
		LastModification: job.LastModifiedAt,
		Tasks:            job.Counters,
		PollID:           pollID,
		ObservedAt:       observedAt.UTC(),
	}
}

// Job converts the snapshot back into the job it was taken from.
func (s Snapshot) Job() flink.Job {
	return flink.Job{
		ID:             s.JobID,
		Name:           s.Name,
		Status:         s.State,
		StartedAt:      s.StartTime,
		EndedAt:        s.EndTime,
		Duration:       s.Duration,
		LastModifiedAt: s.LastModification,
		Counters:       s.Tasks,
	}
}

// JobSummary aggregates the snapshots recorded for one job.
type JobSummary struct {
	JobID     string    `json:"jid" yaml:"jid"`
	Name      string    `json:"name" yaml:"name"`
	Snapshots int       `json:"snapshots" yaml:"snapshots"`
	LastSeen  time.Time `json:"last_seen" yaml:"last_seen"`
}
