package main

import (
	"context"
	"fmt"

	"redblood/internal/db"
	"redblood/internal/seed"
	"redblood/internal/store"

	"github.com/urfave/cli/v2"
)

var seedCommand = &cli.Command{
	Name:  "seed",
	Usage: "Seed the database with donation centers and demo profiles",
	Flags: []cli.Flag{
		&cli.BoolFlag{
			Name:  "users",
			Usage: "Also create demo donor and recipient profiles",
		},
	},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		if err := requireDatabase(cfg); err != nil {
			return err
		}

		ctx := context.Background()
		logger := newLogger()

		pool, err := db.Connect(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		defer pool.Close()

		logger.Info("connected to database")

		st := store.NewPostgres(pool)

		if err := seed.SeedCenters(ctx, st, logger); err != nil {
			return fmt.Errorf("failed to seed centers: %w", err)
		}

		if c.Bool("users") {
			if err := seed.SeedUsers(ctx, st, logger); err != nil {
				return fmt.Errorf("failed to seed users: %w", err)
			}
		}

		return nil
	},
}
