package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/urfave/cli/v3"

	"github.com/liamcoop/actionx/internal/logger"
)

func main() {
	root := &cli.Command{
		Name:  "migrate",
		Usage: "Apply the cases, actions and fires schema",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "database", Usage: "database URL", Sources: cli.EnvVars("DATABASE_URL")},
			&cli.StringFlag{Name: "path", Value: "migrations", Usage: "path to migrations directory"},
			&cli.StringFlag{Name: "log-level", Value: "INFO", Sources: cli.EnvVars("LOG_LEVEL")},
		},
		Before: func(ctx context.Context, c *cli.Command) (context.Context, error) {
			logger.Setup(ctx, logger.Options{Level: c.String("log-level")})
			if c.String("database") == "" {
				return ctx, errors.New("database URL is required: use --database or DATABASE_URL")
			}
			return ctx, nil
		},
		Commands: []*cli.Command{
			{
				Name:  "up",
				Usage: "apply all pending migrations",
				Action: withMigrate(func(m *migrate.Migrate, _ *cli.Command) error {
					logger.Info("running migrations up")
					err := m.Up()
					if errors.Is(err, migrate.ErrNoChange) {
						logger.Info("no migrations to run, database is up to date")
						return nil
					}
					if err != nil {
						return fmt.Errorf("failed to run migrations: %w", err)
					}
					logger.Info("migrations completed")
					return nil
				}),
			},
			{
				Name:  "down",
				Usage: "roll back all migrations",
				Action: withMigrate(func(m *migrate.Migrate, _ *cli.Command) error {
					logger.Info("rolling back migrations")
					if err := m.Down(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
						return fmt.Errorf("failed to roll back migrations: %w", err)
					}
					logger.Info("rollback completed")
					return nil
				}),
			},
			{
				Name:  "version",
				Usage: "print the current schema version",
				Action: withMigrate(func(m *migrate.Migrate, _ *cli.Command) error {
					version, dirty, err := m.Version()
					if err != nil {
						return fmt.Errorf("failed to get version: %w", err)
					}
					logger.Info("current version", "version", version, "dirty", dirty)
					return nil
				}),
			},
			{
				Name:      "force",
				Usage:     "force the schema version without running migrations",
				ArgsUsage: "<version>",
				Action: withMigrate(func(m *migrate.Migrate, c *cli.Command) error {
					if c.Args().Len() < 1 {
						return errors.New("force requires a version number")
					}
					version, err := strconv.Atoi(c.Args().First())
					if err != nil {
						return fmt.Errorf("invalid version number: %w", err)
					}
					if err := m.Force(version); err != nil {
						return fmt.Errorf("failed to force version: %w", err)
					}
					logger.Info("forced version", "version", version)
					return nil
				}),
			},
		},
	}

	if err := root.Run(context.Background(), os.Args); err != nil {
		logger.Fatal("migrate failed", "error", err)
	}
}

func withMigrate(fn func(*migrate.Migrate, *cli.Command) error) cli.ActionFunc {
	return func(ctx context.Context, c *cli.Command) error {
		logger.Info("connecting to database", "migrations", c.String("path"))
		m, err := migrate.New("file://"+c.String("path"), c.String("database"))
		if err != nil {
			return fmt.Errorf("failed to create migration instance: %w", err)
		}
		defer m.Close()
		return fn(m, c)
	}
}
