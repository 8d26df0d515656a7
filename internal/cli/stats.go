package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"slices"
	"strings"
	"time"

	"github.com/raphaelgruber/flinkwatch/internal/metrics"
	"github.com/spf13/cobra"
)

var statsServer string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show watcher server statistics",
	Long: `Show runtime statistics of a running flinkwatch-server: fetch, decode, poll
and store timings plus record counters.

Examples:
  flinkwatch stats
  flinkwatch stats --server http://watcher.internal:8585`,
	Args: cobra.NoArgs,
	RunE: runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsServer, "server", "", "server base URL (default http://localhost:<server.port>)")
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	base := statsServer
	if base == "" {
		base = "http://localhost:" + cfg.ServerPort
	}

	stats, err := fetchServerStats(ctx, http.DefaultClient, base)
	if err != nil {
		return fmt.Errorf("get server stats: %w", err)
	}
	printServerStats(cmd.OutOrStdout(), stats)
	return nil
}

func fetchServerStats(ctx context.Context, hc *http.Client, base string) (*metrics.Snapshot, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(base, "/")+"/stats", nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("execute request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("server error: %s - %s", resp.Status, strings.TrimSpace(string(body)))
	}

	var stats metrics.Snapshot
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return &stats, nil
}

// printServerStats displays server runtime statistics.
func printServerStats(w io.Writer, stats *metrics.Snapshot) {
	fmt.Fprintf(w, "Server Statistics (in-memory, since restart)\n")
	fmt.Fprintf(w, "═══════════════════════════════════════════════\n")
	fmt.Fprintf(w, "Uptime: %.1f seconds\n", stats.UptimeSeconds)

	for _, op := range sortedKeys(stats.Operations) {
		s := stats.Operations[op]
		fmt.Fprintf(w, "\n%s:\n", op)
		fmt.Fprintf(w, "  Calls: %d, Errors: %d, Total: %dms\n", s.Count, s.Errors, s.TotalTimeMs)
		fmt.Fprintf(w, "  Time: avg %.1fms, min %dms, max %dms\n", s.AvgTimeMs, s.MinTimeMs, s.MaxTimeMs)
	}

	if len(stats.Counters) > 0 {
		fmt.Fprintf(w, "\nCounters:\n")
		for _, name := range sortedKeys(stats.Counters) {
			fmt.Fprintf(w, "  %-18s %d\n", name, stats.Counters[name])
		}
	}
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
