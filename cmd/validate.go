package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"db-shift/internal/validator"

	"github.com/spf13/cobra"
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Validate the target database against the source",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		opts, err := validationOptions()
		if err != nil {
			return err
		}
		if tables, _ := cmd.Flags().GetStringSlice("tables"); len(tables) > 0 {
			opts.Tables = tables
		}

		source, target, cleanup, err := openPair(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		defer flushMetrics()

		res, err := newValidator(source, target, "validate").ValidateMigration(ctx, opts)
		if err != nil {
			return err
		}
		printValidation(res)

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			b, err := json.MarshalIndent(res, "", "  ")
			if err != nil {
				return err
			}
			if err := os.WriteFile(out, b, 0o644); err != nil {
				return fmt.Errorf("failed to write validation result: %w", err)
			}
			fmt.Println("💾 Result written to", out)
		}
		if !res.IsValid {
			return fmt.Errorf("validation failed with %d critical errors", len(res.CriticalErrors()))
		}
		return nil
	},
}

func init() {
	validateCmd.Flags().StringSlice("tables", nil, "only validate these tables")
	validateCmd.Flags().StringP("output", "o", "", "write the full result as JSON")
	RootCmd.AddCommand(validateCmd)
}

func printValidation(res *validator.ValidationResult) {
	icon := "✅"
	if !res.IsValid {
		icon = "❌"
	}
	s := res.Summary()
	fmt.Printf("\n%s Validation score %.1f, %d/%d tables valid (%d/%d checks passed)\n",
		icon, res.Score, res.Metrics.TablesValid, res.Metrics.TablesValidated, res.Metrics.ChecksPassed, res.Metrics.ChecksPerformed)
	fmt.Printf("   counts %s  checksums %s  references %s  constraints %s  types %s  sample %.1f%%\n",
		mark(s.RecordCountsMatch), mark(s.ChecksumsMatch), mark(s.ReferencesValid),
		mark(s.ConstraintsValid), mark(s.DataTypesValid), s.SampleMatchPercentage)
	for _, e := range res.Errors {
		prefix := "⚠️ "
		if e.Critical {
			prefix = "❌"
		}
		fmt.Printf("   %s [%s] %s: %s\n", prefix, e.Type, e.Table, e.Message)
	}
	for _, w := range res.Warnings {
		fmt.Printf("   ⚠️  [%s] %s: %s\n", w.Severity, w.Table, w.Message)
	}
}

func mark(ok bool) string {
	if ok {
		return "✅"
	}
	return "❌"
}
