package cmd

import (
	"context"
	"fmt"
	"time"

	"db-shift/internal/migrator"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy all table data from the source to the target database",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		source, target, cleanup, err := openPair(ctx)
		if err != nil {
			return err
		}
		defer cleanup()
		defer flushMetrics()

		m := newMigrator(source, target, "migrate")
		exportOpts, importOpts := exportOptions(), importOptions()

		progress := migrator.NewProgress()
		stop := showProgress(progress)
		report, err := m.MigrateAll(migrator.WithProgress(ctx, progress), exportOpts, importOpts)
		stop()

		printReport(report)
		if path := viper.GetString("report"); path != "" && report != nil {
			if err := migrator.SaveReport(report, path); err != nil {
				return err
			}
			fmt.Println("💾 Report written to", path)
		}
		if err != nil {
			return err
		}

		if verify, _ := cmd.Flags().GetBool("verify"); verify && !importOpts.DryRun {
			return verifyMigration(ctx, m, exportOpts)
		}
		return nil
	},
}

func init() {
	f := migrateCmd.Flags()
	f.Int("batch-size", migrator.DefaultExportBatchSize, "rows per export page")
	f.Int("import-batch-size", migrator.DefaultImportBatchSize, "rows per insert statement")
	f.StringSlice("tables", nil, "only migrate these tables")
	f.Bool("preserve-ids", false, "skip rows whose id already exists instead of updating them")
	f.Bool("preserve-timestamps", true, "normalise timestamp columns to RFC 3339")
	f.Bool("continue-on-error", false, "keep going when a table fails")
	f.Bool("dry-run", false, "build statements without writing")
	f.Bool("verify", false, "compare target rows to the source after the import")
	f.String("report", "", "write the migration report to this JSON file")

	viper.BindPFlag("settings.batch_size", f.Lookup("batch-size"))
	viper.BindPFlag("settings.import_batch_size", f.Lookup("import-batch-size"))
	viper.BindPFlag("settings.tables", f.Lookup("tables"))
	viper.BindPFlag("settings.preserve_ids", f.Lookup("preserve-ids"))
	viper.BindPFlag("settings.preserve_timestamps", f.Lookup("preserve-timestamps"))
	viper.BindPFlag("settings.continue_on_error", f.Lookup("continue-on-error"))
	viper.BindPFlag("settings.dry_run", f.Lookup("dry-run"))
	viper.BindPFlag("report", f.Lookup("report"))

	RootCmd.AddCommand(migrateCmd)
}

// showProgress polls p into a progress bar until the returned func is called.
func showProgress(p *migrator.Progress) func() {
	uiprogress.Start()
	bar := uiprogress.AddBar(100).AppendCompleted().PrependElapsed()
	bar.PrependFunc(func(b *uiprogress.Bar) string {
		s := p.Snapshot()
		return fmt.Sprintf("%-10s %-24s %d/%d tables", s.Phase, s.CurrentTable, s.CompletedTables, s.TotalTables)
	})

	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		ticker := time.NewTicker(200 * time.Millisecond)
		defer ticker.Stop()
		for {
			select {
			case <-done:
				return
			case <-ticker.C:
				s := p.Snapshot()
				if s.TotalRecords > 0 {
					bar.Set(int(s.ProcessedRecords * 100 / s.TotalRecords))
				}
			}
		}
	}()
	return func() {
		close(done)
		<-finished
		bar.Set(100)
		uiprogress.Stop()
	}
}

func printReport(r *migrator.MigrationReport) {
	if r == nil {
		return
	}
	icon := "✅"
	if r.Status != migrator.StatusCompleted || r.FailedRecords > 0 {
		icon = "❌"
	}
	fmt.Printf("\n%s Migration %s %s in %s\n", icon, r.MigrationID, r.Status, r.Duration().Round(time.Millisecond))
	if r.DryRun {
		fmt.Println("   (dry run, nothing was written)")
	}
	fmt.Printf("   %d/%d records migrated, %d failed\n", r.MigratedRecords, r.TotalRecords, r.FailedRecords)
	for _, t := range r.Tables {
		if t.OK() {
			continue
		}
		fmt.Printf("   ❌ %s: %d/%d migrated, %d failed\n", t.Table, t.Migrated, t.Total, t.Failed)
		for _, e := range t.Errors {
			fmt.Println("      -", e)
		}
	}
}

func verifyMigration(ctx context.Context, m *migrator.Migrator, opts migrator.ExportOptions) error {
	data, err := m.ExportAll(ctx, opts)
	if err != nil {
		return fmt.Errorf("failed to re-read source: %w", err)
	}
	integrity, err := m.ValidateMigrationIntegrity(ctx, data, migrator.DefaultIntegritySample)
	if err != nil {
		return err
	}
	for _, t := range integrity.Tables {
		if t.OK() {
			continue
		}
		fmt.Printf("   ⚠️  %s: expected %d, got %d, %d sampled rows differ %s\n", t.Table, t.Expected, t.Actual, len(t.Mismatches), t.Error)
	}
	if !integrity.Valid() {
		return fmt.Errorf("integrity self-check failed")
	}
	fmt.Println("✅ Integrity self-check passed")
	return nil
}
