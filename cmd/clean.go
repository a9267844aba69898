package cmd

import (
	"fmt"

	"db-shift/internal/migrator"

	"github.com/spf13/cobra"
)

var cleanCmd = &cobra.Command{
	Use:   "clean [tables...]",
	Short: "Empty target tables in reverse dependency order",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		if yes, _ := cmd.Flags().GetBool("yes"); !yes {
			return fmt.Errorf("clean deletes every row in the target database; pass --yes to confirm")
		}

		target, err := openEndpoint(ctx, RoleTarget)
		if err != nil {
			return err
		}
		defer target.DB.Close()

		n, err := newMigrator(migrator.Endpoint{}, target, "clean").Clean(ctx, args)
		if err != nil {
			return err
		}
		fmt.Printf("🧹 Cleaned %d tables\n", n)
		return nil
	},
}

func init() {
	cleanCmd.Flags().Bool("yes", false, "confirm deleting target data")
	RootCmd.AddCommand(cleanCmd)
}
