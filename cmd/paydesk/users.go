package main

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/store"
)

func (c *cli) createUserCmd() *cobra.Command {
	var req auth.SignupRequest
	cmd := &cobra.Command{
		Use:   "create-user",
		Short: "Add a dashboard user",
		Long: `Add a dashboard user. The sign-up rules apply: a name of at least two
characters, a valid email and a password with upper and lower case
letters and a digit.

Example:
  paydesk create-user --email ops@example.com --name "Ops Desk" --password Secret123 --role support`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if errs := req.Validate(); errs != nil {
				return fieldError(errs)
			}
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			hash, err := auth.HashPassword(req.Password)
			if err != nil {
				return err
			}
			u, err := db.CreateUser(cmd.Context(), store.User{
				Email:        auth.NormalizeEmail(req.Email),
				PasswordHash: hash,
				Name:         strings.TrimSpace(req.Name),
				Role:         req.Role,
				IsActive:     true,
			})
			if errors.Is(err, store.ErrConflict) {
				return fmt.Errorf("a user with email %s already exists", req.Email)
			}
			if err != nil {
				return err
			}
			c.printf("created user %s (%s, %s)\n", u.ID, u.Email, u.Role)
			return nil
		},
	}
	cmd.Flags().StringVar(&req.Email, "email", "", "login email")
	cmd.Flags().StringVar(&req.Name, "name", "", "display name")
	cmd.Flags().StringVar(&req.Password, "password", "", "initial password")
	cmd.Flags().StringVar(&req.Role, "role", auth.DefaultRole, "one of "+strings.Join(auth.Roles, ", "))
	cmd.MarkFlagRequired("email")
	cmd.MarkFlagRequired("password")
	return cmd
}

// fieldError flattens validation messages into one error.
func fieldError(errs map[string]string) error {
	keys := make([]string, 0, len(errs))
	for k := range errs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	msgs := make([]string, len(keys))
	for i, k := range keys {
		msgs[i] = k + ": " + errs[k]
	}
	return errors.New(strings.Join(msgs, "; "))
}
