package cmd

import (
	"context"
	"database/sql"
	"fmt"

	"db-shift/internal/dialect"
	"db-shift/internal/migrator"
	"db-shift/internal/validator"

	"github.com/spf13/viper"
)

// openEndpoint connects to the database configured for role.
func openEndpoint(ctx context.Context, role string) (migrator.Endpoint, error) {
	config, err := GetDBConfig(role)
	if err != nil {
		return migrator.Endpoint{}, err
	}

	db, err := sql.Open(config.Driver, config.DSN)
	if err != nil {
		return migrator.Endpoint{}, fmt.Errorf("failed to open %s db: %w", role, err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return migrator.Endpoint{}, fmt.Errorf("failed to connect to %s db: %w", role, err)
	}

	name := config.Schema
	if name == "" {
		if name, err = schemaName(ctx, db, config.Driver); err != nil {
			db.Close()
			return migrator.Endpoint{}, err
		}
	}

	fmt.Printf("🦅 Connected to %s %s (%s, schema %s)\n", role, config.Name, config.Driver, name)
	return migrator.Endpoint{DB: db, Dialect: dialect.GetDialect(config.Driver), Schema: name}, nil
}

func schemaName(ctx context.Context, db *sql.DB, driver string) (string, error) {
	switch driver {
	case "mysql":
		var name string
		if err := db.QueryRowContext(ctx, "SELECT DATABASE()").Scan(&name); err != nil {
			return "", fmt.Errorf("failed to get database name: %w", err)
		}
		if name == "" {
			return "", fmt.Errorf("no database selected in DSN")
		}
		return name, nil
	case "sqlserver", "mssql":
		return "dbo", nil
	case "sqlite", "sqlite3":
		return "main", nil
	case "oracle":
		var name string
		if err := db.QueryRowContext(ctx, "SELECT USER FROM DUAL").Scan(&name); err != nil {
			return "", fmt.Errorf("failed to get schema name: %w", err)
		}
		return name, nil
	}
	return "public", nil
}

// openPair connects to source and target; cleanup releases both.
func openPair(ctx context.Context) (source, target migrator.Endpoint, cleanup func(), err error) {
	if source, err = openEndpoint(ctx, RoleSource); err != nil {
		return
	}
	if target, err = openEndpoint(ctx, RoleTarget); err != nil {
		source.DB.Close()
		return
	}
	cleanup = func() {
		source.DB.Close()
		target.DB.Close()
	}
	return
}

func newMigrator(source, target migrator.Endpoint, component string) *migrator.Migrator {
	return migrator.New(migrator.Config{
		Source:          source,
		Target:          target,
		PriorityTables:  viper.GetStringSlice("settings.priority_tables"),
		ExcludePrefixes: viper.GetStringSlice("settings.exclude_prefixes"),
		Log:             logger(component),
		Audit:           auditSink(),
		Metrics:         Metrics,
	})
}

func newValidator(source, target migrator.Endpoint, component string) *validator.Validator {
	return validator.New(validator.Config{
		Source:          source,
		Target:          target,
		PriorityTables:  viper.GetStringSlice("settings.priority_tables"),
		ExcludePrefixes: viper.GetStringSlice("settings.exclude_prefixes"),
		Log:             logger(component),
		Audit:           auditSink(),
		Metrics:         Metrics,
	})
}
