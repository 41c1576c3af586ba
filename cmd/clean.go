package cmd

import (
	"fmt"
	"os"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
	"github.com/tanq16/resumedl/internal/session"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean [DIR]",
		Short: "Remove metadata records of finished downloads",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := dirArg(args)
			removed, err := cleanRecords(dir)
			if err != nil {
				output.PrintError(fmt.Sprintf("Error cleaning %s: %v", dir, err))
				os.Exit(1)
			}
			output.PrintSuccess(fmt.Sprintf("Removed %d finished record(s)", removed))
		},
	}
}

// cleanRecords deletes the record of every complete session in dir. Partial
// downloads keep theirs so they stay resumable.
func cleanRecords(dir string) (int, error) {
	recovered, err := session.ReconstructAll(dir, sessionOptions())
	if err != nil {
		return 0, err
	}
	removed := 0
	for _, s := range recovered.Sessions {
		if !s.Complete() {
			continue
		}
		if err := os.Remove(s.RecordPath()); err != nil && !os.IsNotExist(err) {
			return removed, err
		}
		log.Debug().Str("op", "cmd/clean").Msgf("Removed %s", s.RecordPath())
		removed++
	}
	return removed, nil
}
