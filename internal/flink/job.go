// Package flink decodes Flink REST API job records whose field types drift between
// Flink versions (timestamps and durations arrive as strings or numbers).
package flink

import "time"

// Job states reported by the Flink REST API.
const (
	StateInitializing = "INITIALIZING"
	StateCreated      = "CREATED"
	StateRunning      = "RUNNING"
	StateFailing      = "FAILING"
	StateFailed       = "FAILED"
	StateCancelling   = "CANCELLING"
	StateCanceled     = "CANCELED"
	StateFinished     = "FINISHED"
	StateRestarting   = "RESTARTING"
	StateSuspended    = "SUSPENDED"
	StateReconciling  = "RECONCILING"
)

// Job is one decoded entry of /jobs/overview. Optional fields are nil when absent.
type Job struct {
	ID             string     `json:"jid" yaml:"jid"`
	Name           string     `json:"name" yaml:"name"`
	Status         string     `json:"state" yaml:"state"`
	StartedAt      *int64     `json:"start-time,omitempty" yaml:"start-time,omitempty"`
	EndedAt        *string    `json:"end-time,omitempty" yaml:"end-time,omitempty"`
	Duration       *string    `json:"duration,omitempty" yaml:"duration,omitempty"`
	LastModifiedAt *string    `json:"last-modification,omitempty" yaml:"last-modification,omitempty"`
	Counters       TaskCounts `json:"tasks" yaml:"tasks"`
}

// TaskCounts holds the number of tasks per execution state.
type TaskCounts struct {
	Total        int `json:"total" yaml:"total"`
	Created      int `json:"created" yaml:"created"`
	Scheduled    int `json:"scheduled" yaml:"scheduled"`
	Deploying    int `json:"deploying" yaml:"deploying"`
	Running      int `json:"running" yaml:"running"`
	Finished     int `json:"finished" yaml:"finished"`
	Canceling    int `json:"canceling" yaml:"canceling"`
	Canceled     int `json:"canceled" yaml:"canceled"`
	Failed       int `json:"failed" yaml:"failed"`
	Reconciling  int `json:"reconciling" yaml:"reconciling"`
	Initializing int `json:"initializing" yaml:"initializing"`
}

// IsTerminal reports whether the job reached a globally terminal state.
func (j Job) IsTerminal() bool {
	switch j.Status {
	case StateFinished, StateFailed, StateCanceled:
		return true
	}
	return false
}

// StartTime returns the start time, with false if the job did not report one.
// Flink reports -1 for jobs that have not started.
func (j Job) StartTime() (time.Time, bool) {
	if j.StartedAt == nil || *j.StartedAt < 0 {
		return time.Time{}, false
	}
	return time.UnixMilli(*j.StartedAt), true
}

// Progress returns the fraction of finished tasks.
func (j Job) Progress() float64 {
	if j.Counters.Total <= 0 {
		return 0
	}
	return float64(j.Counters.Finished) / float64(j.Counters.Total)
}

// UnmarshalJSON decodes a job with the tolerant decoder instead of the default
// reflection-based one.
func (j *Job) UnmarshalJSON(data []byte) error {
	job, err := DecodeJobJSON(data)
	if err != nil {
		return err
	}
	*j = job
	return nil
}
