package cli

import (
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/agentsmd/internal/core/domain"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent generation runs",
	Long:  `List recent generation runs with their outcome, newest first.`,
	Args:  cobra.NoArgs,
	RunE:  runHistoryList,
}

var historyShowCmd = &cobra.Command{
	Use:   "show [run-id]",
	Short: "Show the diagnostics of a run",
	Args:  cobra.ExactArgs(1),
	RunE:  runHistoryShow,
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 20, "maximum number of runs")
	historyCmd.AddCommand(historyShowCmd)
	rootCmd.AddCommand(historyCmd)
}

func runHistoryList(cmd *cobra.Command, _ []string) error {
	if runHistoryService == nil {
		return errors.New("run history not configured")
	}

	runs, err := runHistoryService.Recent(cmd.Context(), historyLimit)
	if err != nil {
		return fmt.Errorf("failed to list runs: %w", err)
	}
	if len(runs) == 0 {
		cmd.Println("No runs recorded yet.")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tREPOSITORY\tVARIANT\tSTATE\tSTARTED\tDURATION")
	for i := range runs {
		r := runs[i]
		state := string(r.State)
		if r.FailedStage != "" {
			state = fmt.Sprintf("%s (%s)", r.State, r.FailedStage)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			r.ID, r.Repository, r.Variant, state,
			r.StartedAt.Local().Format(time.DateTime), r.Duration().Round(time.Second))
	}
	return w.Flush()
}

func runHistoryShow(cmd *cobra.Command, args []string) error {
	if runHistoryService == nil {
		return errors.New("run history not configured")
	}

	run, err := runHistoryService.Get(cmd.Context(), args[0])
	if errors.Is(err, domain.ErrNotFound) {
		return fmt.Errorf("run %s not found", args[0])
	}
	if err != nil {
		return fmt.Errorf("failed to get run: %w", err)
	}

	cmd.Printf("Run %s\n", run.ID)
	cmd.Printf("  Repository:  %s\n", run.Repository)
	cmd.Printf("  Variant:     %s\n", run.Variant)
	cmd.Printf("  State:       %s\n", run.State)
	if run.FailedStage != "" {
		cmd.Printf("  Failed at:   %s\n", run.FailedStage)
	}
	if run.Error != "" {
		cmd.Printf("  Error:       %s\n", run.Error)
	}
	cmd.Printf("  Iterations:  %d\n", run.Iterations)
	cmd.Printf("  Chars shown: %d\n", run.CharsShown)
	if run.StopReason != "" {
		cmd.Printf("  Stopped by:  %s\n", run.StopReason)
	}
	if run.OutputPath != "" {
		cmd.Printf("  Output:      %s\n", run.OutputPath)
	}
	cmd.Printf("  Started:     %s\n", run.StartedAt.Local().Format(time.DateTime))
	cmd.Printf("  Duration:    %s\n", run.Duration().Round(time.Millisecond))

	if len(run.Degradations) > 0 {
		cmd.Println("  Degradations:")
		for _, d := range run.Degradations {
			cmd.Printf("    - %s: %s\n", d.Stage, d.Message)
		}
	}
	return nil
}
