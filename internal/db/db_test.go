//go:build integration

// Integration tests for the SurrealDB snapshot store.
package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"testing"
	"time"

	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/raphaelgruber/flinkwatch/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
)

var testDB *Client

// TestMain starts one SurrealDB container for all tests in the package.
func TestMain(m *testing.M) {
	// ryuk breaks in some CI sandboxes; the container is terminated below instead
	os.Setenv("TESTCONTAINERS_RYUK_DISABLED", "true")

	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "surrealdb/surrealdb:v2.3.7",
			ExposedPorts: []string{"8000/tcp"},
			Cmd:          []string{"start", "--log", "info", "--user", "root", "--pass", "root"},
			WaitingFor:   wait.ForLog("Started web server").WithStartupTimeout(60 * time.Second),
		},
		Started: true,
	})
	if err != nil {
		log.Fatalf("Failed to start SurrealDB container: %v", err)
	}

	host, err := container.Host(ctx)
	if err != nil {
		log.Fatalf("Failed to get container host: %v", err)
	}
	if host == "" || host == "null" {
		host = "localhost"
	}
	port, err := container.MappedPort(ctx, "8000")
	if err != nil {
		log.Fatalf("Failed to get mapped port: %v", err)
	}

	testDB, err = NewClient(ctx, Config{
		URL:       fmt.Sprintf("ws://%s:%s/rpc", host, port.Port()),
		Namespace: "test",
		Database:  "test",
		Username:  "root",
		Password:  "root",
		AuthLevel: "root",
	}, nil)
	if err != nil {
		log.Fatalf("Failed to connect to test database: %v", err)
	}
	if err := testDB.InitSchema(ctx); err != nil {
		log.Fatalf("Failed to initialize schema: %v", err)
	}

	code := m.Run()

	_ = testDB.Close(ctx)
	_ = container.Terminate(ctx)
	os.Exit(code)
}

func snapshotFor(jid, state string, observed time.Time) models.Snapshot {
	start := int64(1718000000000)
	job := flink.Job{
		ID:        jid,
		Name:      "job-" + jid,
		Status:    state,
		StartedAt: &start,
		Counters:  flink.TaskCounts{Total: 2, Running: 2},
	}
	return models.NewSnapshot(job, nil, "poll-test", observed)
}

func TestInitSchemaIsIdempotent(t *testing.T) {
	require.NoError(t, testDB.InitSchema(context.Background()))
}

func TestCreateAndListSnapshots(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	base := time.Now().UTC().Truncate(time.Millisecond)
	first, err := testDB.CreateSnapshot(ctx, snapshotFor("j1", flink.StateCreated, base))
	require.NoError(t, err)
	require.NotNil(t, first.ID)

	second := snapshotFor("j1", flink.StateRunning, base.Add(time.Second))
	prev := flink.StateCreated
	second.PreviousState = &prev
	_, err = testDB.CreateSnapshot(ctx, second)
	require.NoError(t, err)

	_, err = testDB.CreateSnapshot(ctx, snapshotFor("j2", flink.StateRunning, base))
	require.NoError(t, err)

	snaps, err := testDB.ListSnapshots(ctx, "j1", 10)
	require.NoError(t, err)
	require.Len(t, snaps, 2)
	assert.Equal(t, flink.StateRunning, snaps[0].State)
	require.NotNil(t, snaps[0].PreviousState)
	assert.Equal(t, flink.StateCreated, *snaps[0].PreviousState)
	assert.Nil(t, snaps[1].PreviousState)
	assert.Equal(t, 2, snaps[0].Tasks.Running)
	assert.Equal(t, int64(1718000000000), *snaps[0].StartTime)

	latest, err := testDB.LatestSnapshot(ctx, "j1")
	require.NoError(t, err)
	assert.Equal(t, flink.StateRunning, latest.State)

	_, err = testDB.LatestSnapshot(ctx, "missing")
	assert.ErrorIs(t, err, ErrNotFound)

	jobs, err := testDB.ListJobs(ctx)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.Equal(t, "j1", jobs[0].JobID)
	assert.Equal(t, 2, jobs[0].Snapshots)
}

func TestDeleteSnapshots(t *testing.T) {
	ctx := context.Background()
	require.NoError(t, testDB.WipeData(ctx))

	for i := 0; i < 3; i++ {
		_, err := testDB.CreateSnapshot(ctx, snapshotFor("gone", flink.StateRunning, time.Now()))
		require.NoError(t, err)
	}

	n, err := testDB.DeleteSnapshots(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = testDB.DeleteSnapshots(ctx, "gone")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
