package cmd

import (
	"fmt"

	"db-shift/internal/migrator"
	"db-shift/internal/schema"
	"db-shift/internal/validator"

	"github.com/spf13/viper"
)

// Database roles.
const (
	RoleSource = "source"
	RoleTarget = "target"
)

type DBConfig struct {
	Name   string `mapstructure:"name"`
	Driver string `mapstructure:"driver"`
	DSN    string `mapstructure:"dsn"`
	Role   string `mapstructure:"role"`
	// Schema overrides the detected schema name.
	Schema string `mapstructure:"schema"`
}

func setDefaults() {
	viper.SetDefault("settings.batch_size", migrator.DefaultExportBatchSize)
	viper.SetDefault("settings.import_batch_size", migrator.DefaultImportBatchSize)
	viper.SetDefault("settings.migrations_path", schema.DefaultSearchPaths)
	viper.SetDefault("settings.exclude_prefixes", migrator.DefaultExcludePrefixes)
	viper.SetDefault("settings.priority_tables", migrator.DefaultPriorityTables)
	viper.SetDefault("settings.essential_tables", []string{})
	viper.SetDefault("settings.essential_enums", []string{})

	v := validator.DefaultOptions()
	viper.SetDefault("validation.sample_size", v.SampleSize)
	viper.SetDefault("validation.checksum_validation", v.ChecksumValidation)
	viper.SetDefault("validation.referential_integrity_check", v.ReferentialIntegrityCheck)
	viper.SetDefault("validation.constraint_validation", v.ConstraintValidation)
	viper.SetDefault("validation.data_type_validation", v.DataTypeValidation)
	viper.SetDefault("validation.detailed_reporting", v.DetailedReporting)
}

// GetDBConfig returns the single database configured with role.
func GetDBConfig(role string) (*DBConfig, error) {
	var configs []DBConfig
	if err := viper.UnmarshalKey("databases", &configs); err != nil {
		return nil, fmt.Errorf("failed to parse databases config: %w", err)
	}

	var found *DBConfig
	for i := range configs {
		if configs[i].Role != role {
			continue
		}
		if found != nil {
			return nil, fmt.Errorf("multiple %s databases found (only one is allowed)", role)
		}
		found = &configs[i]
	}
	if found == nil {
		return nil, fmt.Errorf("no %s database found in config (set role: %s)", role, role)
	}
	if found.DSN == "" {
		return nil, fmt.Errorf("%s database %q has no dsn", role, found.Name)
	}
	return found, nil
}

func validationOptions() (validator.Options, error) {
	opts := validator.DefaultOptions()
	if err := viper.UnmarshalKey("validation", &opts); err != nil {
		return opts, fmt.Errorf("failed to parse validation config: %w", err)
	}
	return opts, nil
}

func exportOptions() migrator.ExportOptions {
	return migrator.ExportOptions{
		Tables:             viper.GetStringSlice("settings.tables"),
		BatchSize:          viper.GetInt("settings.batch_size"),
		PreserveTimestamps: viper.GetBool("settings.preserve_timestamps"),
	}
}

func importOptions() migrator.ImportOptions {
	return migrator.ImportOptions{
		BatchSize:       viper.GetInt("settings.import_batch_size"),
		PreserveIDs:     viper.GetBool("settings.preserve_ids"),
		ContinueOnError: viper.GetBool("settings.continue_on_error"),
		DryRun:          viper.GetBool("settings.dry_run"),
	}
}
