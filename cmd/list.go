package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/tanq16/resumedl/internal/output"
	"github.com/tanq16/resumedl/internal/session"
)

func newListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list [DIR]",
		Short: "Show recorded downloads and their progress",
		Args:  cobra.MaximumNArgs(1),
		Run: func(cmd *cobra.Command, args []string) {
			dir := dirArg(args)
			recovered, err := session.ReconstructAll(dir, sessionOptions())
			if err != nil {
				output.PrintError(fmt.Sprintf("Cannot read %s: %v", dir, err))
				os.Exit(1)
			}
			output.PrintHeader(fmt.Sprintf("Downloads in %s", dir))
			for _, s := range recovered.Sessions {
				fmt.Println(describeSession(s))
			}
			for _, failure := range recovered.Failures {
				fmt.Printf("  %s %s\n", output.FError(output.StyleSymbols["fail"]), output.FError(failure.Error()))
			}
		},
	}
}

func describeSession(s *session.Session) string {
	written, total := s.BytesWritten(), s.Descriptor.ContentLength
	var state string
	switch {
	case s.Complete():
		state = output.FSuccess(output.StyleSymbols["pass"] + " complete")
	case s.Descriptor.RangeSupport:
		state = output.FPending(output.StyleSymbols["pause"] + " resumable")
	default:
		state = output.FWarning(output.StyleSymbols["warning"] + " restarts from zero")
	}
	return fmt.Sprintf("  %s %s %s %s",
		state,
		output.FDetail(s.NameOnDisk()),
		output.FDebug(output.FormatProgress(written, total)),
		output.FDebug(fmt.Sprintf("(%.1f%%)", output.Percent(written, total))))
}
