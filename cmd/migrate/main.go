// Command migrate applies the feedguard document store schema: the
// interaction graph tables and the flagged-links table.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"

	"github.com/jonesrussell/feedguard/internal/config"
	"github.com/jonesrussell/feedguard/internal/configloader"
)

const migrationsPath = "file://migrations"

func main() {
	os.Exit(run())
}

func run() int {
	direction, err := parseDirection(os.Args)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		fmt.Fprintln(os.Stderr, "Usage: migrate <up|down>")
		return 1
	}

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		return 1
	}

	m, err := migrate.New(migrationsPath, buildMigrateURL(cfg))
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create migrate instance: %v\n", err)
		return 1
	}
	defer func() { _, _ = m.Close() }()

	if err := apply(m, direction); err != nil {
		fmt.Fprintf(os.Stderr, "Feedguard schema migration %s failed: %v\n", direction, err)
		return 1
	}
	return 0
}

// parseDirection validates the single positional argument.
func parseDirection(args []string) (string, error) {
	if len(args) < 2 {
		return "", errors.New("missing direction")
	}
	switch args[1] {
	case "up", "down":
		return args[1], nil
	default:
		return "", fmt.Errorf("invalid direction %q (must be \"up\" or \"down\")", args[1])
	}
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configloader.GetConfigPath("config.yml"))
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// buildMigrateURL constructs a PostgreSQL URL from database config.
func buildMigrateURL(cfg *config.Config) string {
	db := &cfg.Database
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		db.User, db.Password, db.Host, db.Port, db.Database, db.SSLMode,
	)
}

// apply runs the migration and reports the outcome.
func apply(m *migrate.Migrate, direction string) error {
	var err error
	switch direction {
	case "up":
		err = m.Up()
	case "down":
		err = m.Down()
	}

	if errors.Is(err, migrate.ErrNoChange) {
		fmt.Println("Feedguard schema already up to date")
		return nil
	}
	if err != nil {
		return err
	}

	fmt.Printf("Feedguard schema migration %s completed\n", direction)
	return nil
}
