package flink

import (
	"fmt"
)

// field is one entry of a record schema: the wire key, whether it must be present,
// and how to store a value on the target.
type field[T any] struct {
	key      string
	required bool
	set      func(dst *T, path string, v Value) error
}

var jobSchema = []field[Job]{
	{key: "jid", required: true, set: func(j *Job, path string, v Value) (err error) {
		j.ID, err = strictString(path, v)
		return err
	}},
	{key: "name", required: true, set: func(j *Job, path string, v Value) (err error) {
		j.Name, err = strictString(path, v)
		return err
	}},
	{key: "state", required: true, set: func(j *Job, path string, v Value) (err error) {
		j.Status, err = strictString(path, v)
		return err
	}},
	{key: "start-time", set: func(j *Job, path string, v Value) error {
		return optional(&j.StartedAt, path, v, FlexInt)
	}},
	{key: "end-time", set: func(j *Job, path string, v Value) error {
		return optional(&j.EndedAt, path, v, FlexString)
	}},
	{key: "duration", set: func(j *Job, path string, v Value) error {
		return optional(&j.Duration, path, v, FlexString)
	}},
	{key: "last-modification", set: func(j *Job, path string, v Value) error {
		return optional(&j.LastModifiedAt, path, v, FlexString)
	}},
	{key: "tasks", required: true, set: func(j *Job, path string, v Value) (err error) {
		j.Counters, err = decodeTaskCounts(path, v)
		return err
	}},
}

var taskCountsSchema = []field[TaskCounts]{
	counter("total", func(c *TaskCounts) *int { return &c.Total }),
	counter("created", func(c *TaskCounts) *int { return &c.Created }),
	counter("scheduled", func(c *TaskCounts) *int { return &c.Scheduled }),
	counter("deploying", func(c *TaskCounts) *int { return &c.Deploying }),
	counter("running", func(c *TaskCounts) *int { return &c.Running }),
	counter("finished", func(c *TaskCounts) *int { return &c.Finished }),
	counter("canceling", func(c *TaskCounts) *int { return &c.Canceling }),
	counter("canceled", func(c *TaskCounts) *int { return &c.Canceled }),
	counter("failed", func(c *TaskCounts) *int { return &c.Failed }),
	counter("reconciling", func(c *TaskCounts) *int { return &c.Reconciling }),
	counter("initializing", func(c *TaskCounts) *int { return &c.Initializing }),
}

func counter(key string, ptr func(*TaskCounts) *int) field[TaskCounts] {
	return field[TaskCounts]{key: key, required: true, set: func(c *TaskCounts, path string, v Value) (err error) {
		*ptr(c), err = strictInt32(path, v)
		return err
	}}
}

// optional stores a coerced value, leaving dst nil for null.
func optional[T any](dst **T, path string, v Value, coerce func(string, Value) (T, error)) error {
	if v.Kind == KindNull {
		return nil
	}
	out, err := coerce(path, v)
	if err != nil {
		return err
	}
	*dst = &out
	return nil
}

// DecodeJob decodes one job record. Members are consumed once, in source order; the
// first duplicate, coercion failure or missing required field ends the decode.
// Unknown keys are ignored.
func DecodeJob(v Value) (Job, error) {
	return decodeObject("", v, jobSchema)
}

// DecodeJobJSON parses and decodes a single JSON job record.
func DecodeJobJSON(data []byte) (Job, error) {
	v, err := ParseJSON(data)
	if err != nil {
		return Job{}, err
	}
	return DecodeJob(v)
}

func decodeTaskCounts(path string, v Value) (TaskCounts, error) {
	return decodeObject(path, v, taskCountsSchema)
}

func decodeObject[T any](path string, v Value, schema []field[T]) (T, error) {
	var out T
	if v.Kind != KindObject {
		if v.Kind == KindArray {
			return out, unsupported(path, v)
		}
		return out, coercionError(path, "expected an object, got %s", v.Kind)
	}

	seen := make([]bool, len(schema))
	for _, m := range v.Members {
		i := lookup(schema, m.Key)
		if i < 0 {
			continue
		}
		fieldPath := join(path, m.Key)
		if seen[i] {
			return out, duplicateField(fieldPath)
		}
		seen[i] = true
		if err := schema[i].set(&out, fieldPath, m.Value); err != nil {
			return out, err
		}
	}

	for i, f := range schema {
		if f.required && !seen[i] {
			return out, missingField(join(path, f.key))
		}
	}
	return out, nil
}

func lookup[T any](schema []field[T], key string) int {
	for i := range schema {
		if schema[i].key == key {
			return i
		}
	}
	return -1
}

func join(path, key string) string {
	if path == "" {
		return key
	}
	return path + "." + key
}

// Rejected is an overview entry that failed to decode.
type Rejected struct {
	Index int
	ID    string // best effort, empty when the entry carries no string jid
	Err   error
}

func (r Rejected) Error() string {
	if r.ID != "" {
		return fmt.Sprintf("jobs[%d] (%s): %v", r.Index, r.ID, r.Err)
	}
	return fmt.Sprintf("jobs[%d]: %v", r.Index, r.Err)
}

func (r Rejected) Unwrap() error {
	return r.Err
}

// Overview is the decoded body of /jobs/overview.
type Overview struct {
	Jobs     []Job
	Rejected []Rejected
}

// DecodeOverview decodes every entry of the "jobs" array independently. Entries that
// fail are collected in Rejected so the caller decides whether to skip or abort.
func DecodeOverview(v Value) (Overview, error) {
	if v.Kind != KindObject {
		return Overview{}, fmt.Errorf("overview: expected an object, got %s", v.Kind)
	}
	jobs, ok := v.Get("jobs")
	if !ok {
		return Overview{}, fmt.Errorf("overview: %w", missingField("jobs"))
	}
	if jobs.Kind != KindArray {
		return Overview{}, fmt.Errorf("overview: %w", coercionError("jobs", "expected an array, got %s", jobs.Kind))
	}

	out := Overview{Jobs: make([]Job, 0, len(jobs.Items))}
	for i, item := range jobs.Items {
		job, err := DecodeJob(item)
		if err != nil {
			r := Rejected{Index: i, Err: err}
			if id, ok := item.Get("jid"); ok && id.Kind == KindString {
				r.ID = id.Str
			}
			out.Rejected = append(out.Rejected, r)
			continue
		}
		out.Jobs = append(out.Jobs, job)
	}
	return out, nil
}

// DecodeDocument decodes either a full overview ({"jobs": [...]}) or a single job
// record, as found in captured API responses.
func DecodeDocument(v Value) (Overview, error) {
	if _, ok := v.Get("jobs"); ok && v.Kind == KindObject {
		return DecodeOverview(v)
	}
	job, err := DecodeJob(v)
	if err != nil {
		return Overview{Rejected: []Rejected{{Index: 0, Err: err}}}, nil
	}
	return Overview{Jobs: []Job{job}}, nil
}
