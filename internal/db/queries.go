package db

import (
	"cmp"
	"context"
	"fmt"
	"slices"

	"github.com/raphaelgruber/flinkwatch/internal/models"
	"github.com/surrealdb/surrealdb.go"
)

// DefaultHistoryLimit caps ListSnapshots when the caller passes a non-positive limit.
const DefaultHistoryLimit = 50

// CreateSnapshot stores one snapshot and returns it with its record ID.
func (c *Client) CreateSnapshot(ctx context.Context, snap models.Snapshot) (*models.Snapshot, error) {
	snap.ID = nil

	results, err := surrealdb.Query[[]models.Snapshot](ctx, c.db, `
		CREATE job_snapshot CONTENT $snapshot RETURN AFTER
	`, map[string]any{"snapshot": snap})
	if err != nil {
		return nil, fmt.Errorf("create snapshot: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 || len((*results)[0].Result) == 0 {
		return nil, fmt.Errorf("create snapshot: no result returned")
	}
	return &(*results)[0].Result[0], nil
}

// ListSnapshots returns the snapshots of one job, newest first.
func (c *Client) ListSnapshots(ctx context.Context, jid string, limit int) ([]models.Snapshot, error) {
	if limit <= 0 {
		limit = DefaultHistoryLimit
	}

	results, err := surrealdb.Query[[]models.Snapshot](ctx, c.db, `
		SELECT * FROM job_snapshot
		WHERE jid = $jid
		ORDER BY observed_at DESC
		LIMIT $limit
	`, map[string]any{"jid": jid, "limit": limit})
	if err != nil {
		return nil, fmt.Errorf("list snapshots: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.Snapshot{}, nil
	}
	return (*results)[0].Result, nil
}

// LatestSnapshot returns the newest snapshot of one job, or ErrNotFound.
func (c *Client) LatestSnapshot(ctx context.Context, jid string) (*models.Snapshot, error) {
	snaps, err := c.ListSnapshots(ctx, jid, 1)
	if err != nil {
		return nil, err
	}
	if len(snaps) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, jid)
	}
	return &snaps[0], nil
}

// ListJobs summarizes every job that has at least one snapshot, most recently seen first.
func (c *Client) ListJobs(ctx context.Context) ([]models.JobSummary, error) {
	results, err := surrealdb.Query[[]models.JobSummary](ctx, c.db, `
		SELECT jid, array::last(array::group(name)) AS name, count() AS snapshots,
			time::max(observed_at) AS last_seen
		FROM job_snapshot
		GROUP BY jid
	`, nil)
	if err != nil {
		return nil, fmt.Errorf("list jobs: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return []models.JobSummary{}, nil
	}
	jobs := (*results)[0].Result
	sortSummaries(jobs)
	return jobs, nil
}

// DeleteSnapshots removes all snapshots of one job and returns how many were deleted.
func (c *Client) DeleteSnapshots(ctx context.Context, jid string) (int, error) {
	results, err := surrealdb.Query[[]models.Snapshot](ctx, c.db, `
		DELETE job_snapshot WHERE jid = $jid RETURN BEFORE
	`, map[string]any{"jid": jid})
	if err != nil {
		return 0, fmt.Errorf("delete snapshots: %w", wrapQueryError(err))
	}

	if results == nil || len(*results) == 0 {
		return 0, nil
	}
	return len((*results)[0].Result), nil
}

// sortSummaries orders by last_seen descending, then jid.
func sortSummaries(jobs []models.JobSummary) {
	slices.SortFunc(jobs, func(a, b models.JobSummary) int {
		if c := b.LastSeen.Compare(a.LastSeen); c != 0 {
			return c
		}
		return cmp.Compare(a.JobID, b.JobID)
	})
}
