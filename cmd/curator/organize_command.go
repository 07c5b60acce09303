package main

import (
	"bufio"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"curator/internal/organizer"
)

func newOrganizeCommand(ctx *commandContext) *cobra.Command {
	var dryRun bool
	var assumeYes bool

	cmd := &cobra.Command{
		Use:   "organize <root>",
		Short: "Cluster files by tags and move them into semantic folders",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			signalCtx, cancel := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer cancel()

			cfg, err := ctx.ensureConfig()
			if err != nil {
				return err
			}
			runner, cleanup, err := ctx.newRunner(signalCtx)
			if err != nil {
				return err
			}
			defer cleanup()

			root := args[0]
			preview, err := runner.Organize(signalCtx, root, organizer.ModePreview, false)
			if err != nil {
				return renderReportThenErr(cmd, ctx, preview, err)
			}
			if err := renderReport(cmd, ctx, preview); err != nil {
				return err
			}
			if dryRun {
				return nil
			}
			if preview.Planned == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "Nothing to move")
				return nil
			}

			if !assumeYes && !cfg.Organizer.SkipConfirmation {
				ok, err := confirmMoves(cmd, preview.Planned)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(cmd.OutOrStdout(), "Aborted; no files were moved")
					return nil
				}
			}

			report, err := runner.Organize(signalCtx, root, organizer.ModeApply, true)
			if err != nil {
				return renderReportThenErr(cmd, ctx, report, err)
			}
			return renderReport(cmd, ctx, report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Show the plan without moving anything")
	cmd.Flags().BoolVarP(&assumeYes, "yes", "y", false, "Apply the plan without prompting")
	return cmd
}

// confirmMoves prompts on the terminal before any file moves. A
// non-interactive stdin cannot answer, so it refuses rather than assuming
// consent.
func confirmMoves(cmd *cobra.Command, planned int) (bool, error) {
	stdin, isFile := cmd.InOrStdin().(*os.File)
	if isFile && !isatty.IsTerminal(stdin.Fd()) && !isatty.IsCygwinTerminal(stdin.Fd()) {
		return false, fmt.Errorf("refusing to move %d files without confirmation; re-run with --yes", planned)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Move %d files? [y/N]: ", planned)
	reader := bufio.NewReader(cmd.InOrStdin())
	line, err := reader.ReadString('\n')
	if err != nil && line == "" {
		return false, nil
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "y" || answer == "yes", nil
}

// renderReportThenErr shows whatever report an interrupted or failed run
// produced before surfacing the error: files may already have moved, and the
// user gets the partial outcome, never a bare error.
func renderReportThenErr(cmd *cobra.Command, ctx *commandContext, report *organizer.Report, err error) error {
	if report != nil {
		_ = renderReport(cmd, ctx, report)
	}
	return err
}

func renderReport(cmd *cobra.Command, ctx *commandContext, report *organizer.Report) error {
	if ctx.jsonOutput() {
		return writeJSON(cmd, report)
	}

	out := cmd.OutOrStdout()
	rows := make([][]string, 0, len(report.Entries))
	for _, entry := range report.Entries {
		detail := entry.Reason
		if detail == "" {
			detail = entry.Destination
		}
		rows = append(rows, []string{entry.Source, string(entry.Status), detail})
	}
	if len(rows) > 0 {
		fmt.Fprintln(out, renderTable([]string{"Source", "Status", "Destination / Reason"}, rows))
	}
	fmt.Fprintf(out, "%s: %d planned, %d moved, %d skipped, %d failed\n",
		report.Mode, report.Planned, report.Moved, report.Skipped, report.Failed)
	for _, failure := range report.Failures {
		fmt.Fprintf(cmd.ErrOrStderr(), "failed: %s: %s\n", failure.Source, failure.Reason)
	}
	return nil
}
