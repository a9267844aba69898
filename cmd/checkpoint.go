package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"db-shift/internal/checkpoint"

	"github.com/spf13/cobra"
)

var checkpointCmd = &cobra.Command{
	Use:   "checkpoint",
	Short: "Decide whether the migration may proceed to the next phase",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()

		opts := checkpoint.Options{Export: exportOptions(), Import: importOptions()}
		opts.ReportPath, _ = f.GetString("report")
		opts.RunMigration, _ = f.GetBool("run-migration")
		opts.SkipIntegrity, _ = f.GetBool("skip-integrity")
		opts.SkipPerformance, _ = f.GetBool("skip-performance")
		opts.MinRecordsPerSecond, _ = f.GetFloat64("min-rps")
		markdown, _ := f.GetString("markdown")
		opts.GenerateReport = markdown != ""

		var err error
		if opts.Validation, err = validationOptions(); err != nil {
			return err
		}

		source, target, cleanup, err := openPair(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		defer flushMetrics()

		sink := auditSink()
		cp := checkpoint.New(
			newMigrator(source, target, "checkpoint"),
			newValidator(source, target, "checkpoint"),
			checkpoint.Config{Log: logger("checkpoint"), Audit: sink, Metrics: Metrics},
		)
		res, err := cp.ValidatePhase(ctx, opts)
		if err != nil {
			return err
		}

		if out, _ := f.GetString("output"); out != "" {
			b, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("failed to write checkpoint result: %w", err)
			}
		}
		if markdown != "" {
			if err := os.WriteFile(markdown, []byte(res.Report), 0o644); err != nil {
				return fmt.Errorf("failed to write checkpoint report: %w", err)
			}
		}

		it := checkpoint.NewInteraction(os.Stdin, os.Stdout, sink)
		if yes, _ := f.GetBool("non-interactive"); yes {
			it.RenderSummary(res)
			if res.Status == checkpoint.StatusFailed {
				return fmt.Errorf("checkpoint %s failed", res.CheckpointID)
			}
			return nil
		}

		resp, err := it.Prompt(res)
		if err != nil {
			return err
		}
		fmt.Printf("📝 Recorded %s for checkpoint %s\n", resp.Choice, resp.CheckpointID)
		if resp.Choice == checkpoint.ChoiceAbort {
			return fmt.Errorf("aborted by operator")
		}
		return nil
	},
}

func init() {
	f := checkpointCmd.Flags()
	f.String("report", "", "inspect the migration report in this JSON file")
	f.Bool("run-migration", false, "run the migration instead of reading a report")
	f.Bool("skip-integrity", false, "skip integrity validation")
	f.Bool("skip-performance", false, "skip performance analysis")
	f.Float64("min-rps", 0, "warn when throughput is below this many records per second")
	f.String("markdown", "", "write the Markdown report to this file")
	f.StringP("output", "o", "", "write the checkpoint result as JSON")
	f.Bool("non-interactive", false, "print the summary without asking for a decision")
	RootCmd.AddCommand(checkpointCmd)
}
