package cmd

import (
	"fmt"

	"db-shift/internal/schema"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var extractCmd = &cobra.Command{
	Use:   "extract",
	Short: "Extract the schema from migration files and the source catalog",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		log := logger("extract")

		var live *schema.LiveSource
		if noLive, _ := cmd.Flags().GetBool("no-live"); !noLive {
			ep, err := openEndpoint(ctx, RoleSource)
			if err != nil {
				return err
			}
			defer ep.DB.Close()
			live = &schema.LiveSource{DB: ep.DB, Dialect: ep.Dialect, Schema: ep.Schema}
		}

		res, err := schema.NewExtractor(log).ExtractSchema(ctx, viper.GetStringSlice("settings.migrations_path"), live)
		if err != nil {
			return err
		}

		fmt.Printf("📦 Extracted %d tables, %d enums, %d functions from %d files\n",
			len(res.Tables), len(res.Enums), len(res.Functions), len(res.MigrationFiles))
		if res.CatalogVersion != "" {
			fmt.Printf("   Catalog version %s\n", res.CatalogVersion)
		}
		for _, w := range res.Warnings {
			fmt.Println("⚠️ ", w)
		}

		v := schema.ValidateExtractedSchema(res,
			viper.GetStringSlice("settings.essential_tables"),
			viper.GetStringSlice("settings.essential_enums"))
		for _, w := range v.Warnings {
			fmt.Println("⚠️ ", w)
		}
		for _, e := range v.Errors {
			fmt.Println("❌", e)
		}

		if out, _ := cmd.Flags().GetString("output"); out != "" {
			if err := schema.SaveSchema(res, out); err != nil {
				return err
			}
			fmt.Println("💾 Schema written to", out)
		}

		if !v.Valid() {
			return fmt.Errorf("schema validation found %d errors", len(v.Errors))
		}
		return nil
	},
}

func init() {
	extractCmd.Flags().StringP("output", "o", "", "write the schema to a .json or .yaml file")
	extractCmd.Flags().Bool("no-live", false, "only parse migration files")
	extractCmd.Flags().StringSlice("path", nil, "migration directories or files")
	viper.BindPFlag("settings.migrations_path", extractCmd.Flags().Lookup("path"))
	RootCmd.AddCommand(extractCmd)
}
