package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/session"
)

func (c *cli) tokenCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Session token utilities",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "inspect <token>",
		Short: "Decode a session token with the configured format and secret",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			codec, err := session.NewCodec(cfg.TokenFormat, cfg.SessionSecret, nil)
			if err != nil {
				return err
			}
			claims, err := codec.Decode(args[0])
			if err != nil {
				return err
			}
			state := "valid"
			if claims.Expired(time.Now()) {
				state = "expired"
			}
			c.printf("sub:     %s\n", claims.Subject)
			c.printf("email:   %s\n", claims.Email)
			c.printf("name:    %s\n", claims.Name)
			c.printf("role:    %s\n", claims.Role)
			c.printf("expires: %s (%s)\n", claims.Expiry().Format(time.RFC3339), state)
			return nil
		},
	})
	return cmd
}
