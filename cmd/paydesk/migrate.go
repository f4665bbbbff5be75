package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/store"
)

// Demo administrator created by migrate --seed-demo.
const (
	demoAdminEmail    = "admin@crm.com"
	demoAdminPassword = "admin123"
	demoAdminName     = "Admin User"
)

func (c *cli) migrateCmd() *cobra.Command {
	var seedDemo bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema",
		Long: `Create the tables and indexes. Running it again is harmless.

With --seed-demo an administrator admin@crm.com / admin123 is created
unless a user with that email exists.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if err := db.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
			c.printf("schema up to date (%s)\n", cfg.DatabaseDriver)

			if !seedDemo {
				return nil
			}
			hash, err := auth.HashPassword(demoAdminPassword)
			if err != nil {
				return err
			}
			_, created, err := db.EnsureUser(ctx, store.User{
				Email:        demoAdminEmail,
				PasswordHash: hash,
				Name:         demoAdminName,
				Role:         "admin",
				IsActive:     true,
			})
			if err != nil {
				return fmt.Errorf("seed demo admin: %w", err)
			}
			if created {
				c.printf("created demo admin %s\n", demoAdminEmail)
			} else {
				c.printf("demo admin %s already exists\n", demoAdminEmail)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&seedDemo, "seed-demo", false, "create the demo administrator")
	return cmd
}
