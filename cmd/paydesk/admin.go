package main

import (
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/client"
)

func (c *cli) adminCmd() *cobra.Command {
	var url, email, password string
	connect := func(cmd *cobra.Command) (*client.AdminClient, error) {
		if url == "" {
			cfg, err := c.loadConfig()
			if err != nil {
				return nil, err
			}
			url = "http://localhost:" + strconv.Itoa(cfg.Port)
		}
		if password == "" {
			password = os.Getenv("PAYDESK_ADMIN_PASSWORD")
		}
		ac := client.New(url)
		if email != "" {
			if err := ac.SignIn(cmd.Context(), email, password); err != nil {
				return nil, err
			}
		}
		return ac, nil
	}

	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Operate a running server through its admin endpoints",
		Long: `Operate a running server. The admin endpoints require a session, so
pass --email and --password (or PAYDESK_ADMIN_PASSWORD) unless the server
runs in demo mode.`,
	}
	cmd.PersistentFlags().StringVar(&url, "url", "", "server base URL (default http://localhost:<configured port>)")
	cmd.PersistentFlags().StringVar(&email, "email", "", "sign in as this user")
	cmd.PersistentFlags().StringVar(&password, "password", "", "password for --email")

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show server health and webhook delivery state",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := connect(cmd)
			if err != nil {
				return err
			}
			ok, msg := ac.Health(cmd.Context())
			c.printf("health:   %s\n", msg)
			if !ok {
				return fmt.Errorf("server unhealthy")
			}
			st, err := ac.Webhooks(cmd.Context())
			if err != nil {
				return err
			}
			target := st.URL
			if target == "" {
				target = "(disabled)"
			}
			c.printf("webhooks: %s, %d queued, %d recent deliveries\n", target, len(st.Queued), len(st.Deliveries))
			for _, d := range st.Deliveries {
				c.printf("  %s %s attempt=%d status=%d %s\n", d.EventID, d.EventType, d.Attempt, d.StatusCode, d.Error)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "flush",
		Short: "Deliver queued webhook events",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ac, err := connect(cmd)
			if err != nil {
				return err
			}
			out, err := ac.FlushWebhooks(cmd.Context())
			if err != nil {
				return err
			}
			c.printf("%s\n", out)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "verbose <on|off>",
		Short: "Toggle debug logging on the running server",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var v bool
			switch args[0] {
			case "on":
				v = true
			case "off":
			default:
				return fmt.Errorf("expected on or off, got %q", args[0])
			}
			ac, err := connect(cmd)
			if err != nil {
				return err
			}
			out, err := ac.UpdateConfig(cmd.Context(), map[string]any{"verbose": v})
			if err != nil {
				return err
			}
			c.printf("%s\n", out)
			return nil
		},
	})
	return cmd
}
