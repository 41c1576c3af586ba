package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
)

func newGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get URL [URL...] [--dir DIR]",
		Short: "Download one or more links into the download directory",
		Args:  cobra.MinimumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			entries := make([]BatchEntry, 0, len(args))
			for _, link := range args {
				entries = append(entries, BatchEntry{Link: link, Dir: outputDir})
			}
			var failed bool
			err := withDisplay(outputDir, func(mgr *output.Manager) error {
				sessions, createFailed := createSessions(cmd.Context(), mgr, entries)
				failed = createFailed
				return runSessions(cmd.Context(), mgr, sessions)
			})
			exitOnFailure(err, failed)
		},
	}
}
