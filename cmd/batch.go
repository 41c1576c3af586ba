package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
	"gopkg.in/yaml.v3"
)

type BatchEntry struct {
	Link string `yaml:"link"`
	Dir  string `yaml:"dir,omitempty"`
}

func newBatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "batch YAML_FILE",
		Short: "Download every link listed in a YAML file",
		Args:  cobra.ExactArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			data, err := os.ReadFile(args[0])
			if err != nil {
				output.PrintError(fmt.Sprintf("Error reading YAML file: %v", err))
				os.Exit(1)
			}
			entries, err := parseBatch(data, outputDir)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error parsing YAML file: %v", err))
				os.Exit(1)
			}
			if len(entries) == 0 {
				output.PrintError("No valid links found in the batch file")
				os.Exit(1)
			}
			var failed bool
			err = withDisplay(outputDir, func(mgr *output.Manager) error {
				sessions, createFailed := createSessions(cmd.Context(), mgr, entries)
				failed = createFailed
				return runSessions(cmd.Context(), mgr, sessions)
			})
			exitOnFailure(err, failed)
		},
	}
}

// parseBatch reads a YAML list of entries, dropping empty links and filling
// a missing dir with defaultDir.
func parseBatch(data []byte, defaultDir string) ([]BatchEntry, error) {
	var raw []BatchEntry
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, err
	}
	entries := make([]BatchEntry, 0, len(raw))
	for _, entry := range raw {
		if entry.Link == "" {
			output.PrintWarning("Skipping entry with empty link")
			continue
		}
		if entry.Dir == "" {
			entry.Dir = defaultDir
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
