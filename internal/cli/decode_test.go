package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const overviewJSON = `{"jobs":[
  {"jid":"a1","name":"orders","state":"RUNNING","start-time":"1718000000000","end-time":-1,
   "duration":5000,"last-modification":1718000000500,
   "tasks":{"total":2,"created":0,"scheduled":0,"deploying":0,"running":2,"finished":0,
            "canceling":0,"canceled":0,"failed":0,"reconciling":0,"initializing":0}},
  {"jid":"b2","name":"broken","state":"RUNNING","start-time":true}
]}`

const singleJobYAML = `jid: c3
name: payments
state: FINISHED
start-time: 1718000000000
end-time: 1718000100000
duration: 100000
tasks:
  total: 1
  created: 0
  scheduled: 0
  deploying: 0
  running: 0
  finished: 1
  canceling: 0
  canceled: 0
  failed: 0
  reconciling: 0
  initializing: 0
`

func writeTemp(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestDecodeFile(t *testing.T) {
	ov, err := decodeFile("overview.json", []byte(overviewJSON))
	require.NoError(t, err)
	require.Len(t, ov.Jobs, 1)
	require.Len(t, ov.Rejected, 1)
	assert.Equal(t, int64(1718000000000), *ov.Jobs[0].StartedAt)
	assert.Equal(t, "-1", *ov.Jobs[0].EndedAt)
	assert.Equal(t, "b2", ov.Rejected[0].ID)
	assert.ErrorIs(t, ov.Rejected[0], flink.ErrCoercion)

	ov, err = decodeFile("job.YML", []byte(singleJobYAML))
	require.NoError(t, err)
	require.Len(t, ov.Jobs, 1)
	assert.Equal(t, "c3", ov.Jobs[0].ID)
	assert.True(t, ov.Jobs[0].IsTerminal())
}

func TestDecodeFileErrors(t *testing.T) {
	_, err := decodeFile("overview.txt", []byte(overviewJSON))
	assert.ErrorContains(t, err, "unsupported file extension")

	_, err = decodeFile("overview.json", []byte(`{"jobs": [`))
	assert.ErrorContains(t, err, "parse overview.json")

	_, err = decodeFile("overview.json", []byte(`{"jobs": 3}`))
	assert.ErrorContains(t, err, "decode overview.json")
}

func TestRunDecode(t *testing.T) {
	path := writeTemp(t, "overview.json", overviewJSON)

	tests := []struct {
		name    string
		strict  bool
		wantErr bool
	}{
		{"lenient", false, false},
		{"strict", true, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			decodeStrict, decodeOutput = tt.strict, formatTable
			t.Cleanup(func() { decodeStrict = false })

			var stdout, stderr bytes.Buffer
			cmd := &cobra.Command{}
			cmd.SetOut(&stdout)
			cmd.SetErr(&stderr)

			err := runDecode(cmd, []string{path})
			if tt.wantErr {
				assert.ErrorContains(t, err, "1 of 2 records rejected")
			} else {
				assert.NoError(t, err)
			}
			assert.Contains(t, stdout.String(), "orders")
			assert.Contains(t, stderr.String(), "jobs[1] (b2)")
		})
	}
}

func TestRunDecodeMissingFile(t *testing.T) {
	cmd := &cobra.Command{}
	err := runDecode(cmd, []string{filepath.Join(t.TempDir(), "nope.json")})
	assert.ErrorContains(t, err, "read file")
}
