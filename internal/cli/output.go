package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/models"
	"gopkg.in/yaml.v3"
)

// Output formats accepted by --output.
const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

func validateFormat(f string) error {
	switch f {
	case formatTable, formatJSON, formatYAML:
		return nil
	}
	return fmt.Errorf("unknown output format %q (want table, json or yaml)", f)
}

// stateStyle colors a job state by how it ended or whether it is still moving.
func (t Theme) stateStyle(state string) lipgloss.Style {
	switch state {
	case flink.StateFinished:
		return t.completedStyle()
	case flink.StateFailed, flink.StateFailing:
		return t.errorStyle()
	case flink.StateCanceled, flink.StateCancelling, flink.StateSuspended:
		return t.hintStyle()
	}
	return t.statusStyle()
}

// writeStructured renders v as indented JSON or YAML.
func writeStructured(w io.Writer, format string, v any) error {
	switch format {
	case formatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case formatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return validateFormat(format)
}

func writeJobs(w io.Writer, format string, jobs []flink.Job) error {
	if format != formatTable {
		return writeStructured(w, format, jobs)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No jobs found")
		return nil
	}

	fmt.Fprintf(w, "%-32s %-12s %-9s %-19s %-10s %s\n", "JID", "STATE", "TASKS", "STARTED", "DURATION", "NAME")
	fmt.Fprintln(w, "------------------------------------------------------------------------------------------------")
	for _, job := range jobs {
		state := defaultTheme.stateStyle(job.Status).Render(fmt.Sprintf("%-12s", job.Status))
		fmt.Fprintf(w, "%-32s %s %-9s %-19s %-10s %s\n",
			job.ID, state, taskSummary(job.Counters), formatStart(job), formatDuration(job.Duration), job.Name)
	}
	return nil
}

func writeJob(w io.Writer, format string, job flink.Job) error {
	if format != formatTable {
		return writeStructured(w, format, job)
	}

	fmt.Fprintf(w, "Job: %s\n", job.ID)
	fmt.Fprintf(w, "  Name: %s\n", job.Name)
	fmt.Fprintf(w, "  State: %s\n", defaultTheme.stateStyle(job.Status).Render(job.Status))
	fmt.Fprintf(w, "  Started: %s\n", formatStart(job))
	if job.EndedAt != nil {
		fmt.Fprintf(w, "  Ended: %s\n", formatMillis(*job.EndedAt))
	}
	if job.Duration != nil {
		fmt.Fprintf(w, "  Duration: %s\n", formatDuration(job.Duration))
	}
	if job.LastModifiedAt != nil {
		fmt.Fprintf(w, "  Last modified: %s\n", formatMillis(*job.LastModifiedAt))
	}

	c := job.Counters
	fmt.Fprintf(w, "\nTasks (%d):\n", c.Total)
	rows := []struct {
		name string
		n    int
	}{
		{"created", c.Created}, {"scheduled", c.Scheduled}, {"deploying", c.Deploying},
		{"initializing", c.Initializing}, {"running", c.Running}, {"finished", c.Finished},
		{"canceling", c.Canceling}, {"canceled", c.Canceled}, {"failed", c.Failed},
		{"reconciling", c.Reconciling},
	}
	for _, r := range rows {
		if r.n > 0 {
			fmt.Fprintf(w, "  %-13s %d\n", r.name+":", r.n)
		}
	}
	return nil
}

func writeRejected(w io.Writer, rejected []flink.Rejected) {
	for _, r := range rejected {
		fmt.Fprintln(w, defaultTheme.errorStyle().Render("rejected "+r.Error()))
	}
}

func writeSnapshots(w io.Writer, format string, snaps []models.Snapshot) error {
	if format != formatTable {
		return writeStructured(w, format, snaps)
	}
	if len(snaps) == 0 {
		fmt.Fprintln(w, "No snapshots found")
		return nil
	}

	fmt.Fprintf(w, "%-19s %-12s %-12s %-9s %s\n", "OBSERVED", "STATE", "PREVIOUS", "TASKS", "POLL")
	fmt.Fprintln(w, "------------------------------------------------------------------------")
	for _, s := range snaps {
		prev := "-"
		if s.PreviousState != nil {
			prev = *s.PreviousState
		}
		state := defaultTheme.stateStyle(s.State).Render(fmt.Sprintf("%-12s", s.State))
		fmt.Fprintf(w, "%-19s %s %-12s %-9s %s\n",
			s.ObservedAt.Local().Format(time.DateTime), state, prev, taskSummary(s.Tasks), shortID(s.PollID))
	}
	return nil
}

func writeSummaries(w io.Writer, format string, jobs []models.JobSummary) error {
	if format != formatTable {
		return writeStructured(w, format, jobs)
	}
	if len(jobs) == 0 {
		fmt.Fprintln(w, "No recorded jobs")
		return nil
	}

	fmt.Fprintf(w, "%-32s %-9s %-19s %s\n", "JID", "SNAPSHOTS", "LAST SEEN", "NAME")
	fmt.Fprintln(w, "------------------------------------------------------------------------")
	for _, j := range jobs {
		fmt.Fprintf(w, "%-32s %-9d %-19s %s\n", j.JobID, j.Snapshots, j.LastSeen.Local().Format(time.DateTime), j.Name)
	}
	return nil
}

// taskSummary renders finished/total.
func taskSummary(c flink.TaskCounts) string {
	return fmt.Sprintf("%d/%d", c.Finished, c.Total)
}

func formatStart(job flink.Job) string {
	t, ok := job.StartTime()
	if !ok {
		return "-"
	}
	return t.Local().Format(time.DateTime)
}

// formatMillis renders an epoch-millisecond string as local time. Anything else is
// returned unchanged; Flink uses -1 for "not yet".
func formatMillis(s string) string {
	ms, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return s
	}
	if ms < 0 {
		return "-"
	}
	return time.UnixMilli(ms).Local().Format(time.DateTime)
}

// formatDuration renders a millisecond duration string rounded to seconds.
func formatDuration(s *string) string {
	if s == nil {
		return "-"
	}
	ms, err := strconv.ParseInt(*s, 10, 64)
	if err != nil {
		return *s
	}
	if ms < 0 {
		return "-"
	}
	return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
