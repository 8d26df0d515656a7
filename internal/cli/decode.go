package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/raphaelgruber/flinkwatch/internal/flink"
	"github.com/spf13/cobra"
)

var (
	decodeStrict bool
	decodeOutput string
)

var decodeCmd = &cobra.Command{
	Use:   "decode <file>",
	Short: "Decode a captured overview or job record",
	Long: `Decode a captured /jobs/overview response or a single job record from a
file, applying the same tolerant field rules as the live client.

The format is chosen by extension: .json, .yaml or .yml.

Examples:
  flinkwatch decode overview.json
  flinkwatch decode job.yaml --strict -o json`,
	Args: cobra.ExactArgs(1),
	PreRunE: func(cmd *cobra.Command, args []string) error {
		return validateFormat(decodeOutput)
	},
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeStrict, "strict", false, "fail when any record is rejected")
	decodeCmd.Flags().StringVarP(&decodeOutput, "output", "o", formatTable, "output format: table, json or yaml")
}

func runDecode(cmd *cobra.Command, args []string) error {
	path := args[0]
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read file: %w", err)
	}

	ov, err := decodeFile(path, data)
	if err != nil {
		return err
	}

	if err := writeJobs(cmd.OutOrStdout(), decodeOutput, ov.Jobs); err != nil {
		return err
	}
	writeRejected(cmd.ErrOrStderr(), ov.Rejected)

	if decodeStrict && len(ov.Rejected) > 0 {
		return fmt.Errorf("%d of %d records rejected", len(ov.Rejected), len(ov.Jobs)+len(ov.Rejected))
	}
	return nil
}

// decodeFile parses data according to the file extension and decodes the document.
func decodeFile(path string, data []byte) (flink.Overview, error) {
	var (
		v   flink.Value
		err error
	)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		v, err = flink.ParseJSON(data)
	case ".yaml", ".yml":
		v, err = flink.FromYAML(data)
	default:
		return flink.Overview{}, fmt.Errorf("unsupported file extension %q (want .json, .yaml or .yml)", ext)
	}
	if err != nil {
		return flink.Overview{}, fmt.Errorf("parse %s: %w", filepath.Base(path), err)
	}

	ov, err := flink.DecodeDocument(v)
	if err != nil {
		return flink.Overview{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return ov, nil
}
