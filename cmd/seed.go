package cmd

import (
	"fmt"
	"strings"
	"time"

	"db-shift/internal/fixture"
	"db-shift/internal/migrator"
	"db-shift/internal/schema"

	"github.com/gosuri/uiprogress"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Fill a database with generated rows to rehearse a migration",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		f := cmd.Flags()
		role, _ := f.GetString("role")
		seed, _ := f.GetInt64("seed")
		dryRun, _ := f.GetBool("dry-run")
		only, _ := f.GetStringSlice("tables")
		count := viper.GetInt("settings.seed_count")
		log := logger("seed")

		ep, err := openEndpoint(ctx, role)
		if err != nil {
			return err
		}
		defer ep.DB.Close()

		log.Info("Analyzing schema...")
		catalog, err := schema.Introspect(ctx, ep.DB, ep.Dialect, ep.Schema)
		if err != nil {
			return err
		}
		tables := migrator.OrderTables(catalog.Tables,
			viper.GetStringSlice("settings.priority_tables"),
			viper.GetStringSlice("settings.exclude_prefixes"),
			log, auditSink())
		if len(only) > 0 {
			if tables = pickTables(tables, only); len(tables) == 0 {
				return fmt.Errorf("no matching tables found for inputs: %v", only)
			}
		}

		if dryRun {
			fmt.Println("🔍 Seed order:")
			for i, t := range tables {
				fmt.Printf("[%02d] %s (depends on %v)\n", i+1, t.Name, t.Dependencies())
			}
			return nil
		}

		log.Infof("Seeding %d rows per table...", count)
		start := time.Now()

		uiprogress.Start()
		bar := uiprogress.AddBar(count * len(tables)).AppendCompleted().PrependElapsed()
		bar.PrependFunc(func(b *uiprogress.Bar) string {
			return "Seeding: "
		})
		s := &fixture.Seeder{
			DB:      ep.DB,
			Dialect: ep.Dialect,
			Gen:     fixture.NewGenerator(seed),
			Log:     log,
			OnRow:   func() { bar.Incr() },
		}
		results, err := s.Seed(ctx, tables, count)
		uiprogress.Stop()
		if err != nil {
			return err
		}

		fmt.Println("\n📊 Summary Report (Dependency Order):")
		total := 0
		for i, r := range results {
			icon := "✓"
			if !r.OK() {
				icon = "!"
			}
			fmt.Printf("[%s] [%02d/%02d] %-20s : %d rows (Target: %d)\n", icon, i+1, len(results), r.Table, r.Inserted, r.Requested)
			if r.Error != "" {
				fmt.Printf("    └ Error: %s\n", r.Error)
			}
			total += r.Inserted
		}
		fmt.Println("--------------------------------------------------")
		fmt.Printf("Total rows: %d\n", total)
		log.Infof("Seed done in %s", time.Since(start).Round(time.Millisecond))
		return nil
	},
}

func init() {
	f := seedCmd.Flags()
	f.Int("count", 100, "rows to generate per table")
	f.String("role", RoleSource, "database to seed (source or target)")
	f.Int64("seed", time.Now().UnixNano(), "random seed for repeatable data")
	f.Bool("dry-run", false, "print the seed order without writing")
	f.StringSliceP("tables", "t", nil, "only seed these tables")
	viper.BindPFlag("settings.seed_count", f.Lookup("count"))
	RootCmd.AddCommand(seedCmd)
}

func pickTables(tables []*schema.TableMetadata, names []string) []*schema.TableMetadata {
	want := make(map[string]bool, len(names))
	for _, n := range names {
		want[strings.ToLower(n)] = true
	}
	var out []*schema.TableMetadata
	for _, t := range tables {
		if want[strings.ToLower(t.Name)] {
			out = append(out, t)
		}
	}
	return out
}
