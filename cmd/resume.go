package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
	"github.com/tanq16/resumedl/internal/session"
)

func newResumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "resume [DIR]",
		Short: "Continue every incomplete download recorded in a directory",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := dirArg(args)
			var recovered *session.Recovered
			err := withDisplay(dir, func(mgr *output.Manager) error {
				var err error
				recovered, err = session.ReconstructAll(dir, sessionOptions())
				if err != nil {
					return err
				}
				for _, failure := range recovered.Failures {
					id := mgr.RegisterTask(failure.Record)
					mgr.ReportError(id, failure)
				}
				var pending []*session.Session
				for _, s := range recovered.Sessions {
					if !s.Complete() {
						pending = append(pending, s)
					}
				}
				return runSessions(cmd.Context(), mgr, pending)
			})
			if recovered != nil && len(recovered.Sessions) == 0 && len(recovered.Failures) == 0 {
				output.PrintInfo(fmt.Sprintf("No downloads recorded in %s", dir))
			}
			exitOnFailure(err, recovered != nil && len(recovered.Failures) > 0)
		},
	}
}

func dirArg(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return outputDir
}
