// paydesk serves the merchant-services admin API and manages its database.
//
// Usage:
//
//	paydesk serve [--port N] [--verbose] [--migrate]   Run the HTTP API
//	paydesk migrate [--seed-demo]                      Create or update the schema
//	paydesk create-user --email E --name N --password P [--role R]
//	paydesk token inspect <token>                      Decode a session token
//	paydesk admin status|flush|verbose                 Operate a running server
//
// Every command reads the configuration from --config (or PAYDESK_CONFIG),
// a .env file and the environment.
package main

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/config"
	"github.com/paydesk/paydesk/internal/store"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

func main() {
	if err := newRootCmd(os.Stdout).ExecuteContext(context.Background()); err != nil {
		fmt.Fprintf(os.Stderr, "paydesk: %v\n", err)
		os.Exit(1)
	}
}

// cli carries state shared by all subcommands.
type cli struct {
	configPath string
	out        io.Writer
}

func newRootCmd(out io.Writer) *cobra.Command {
	c := &cli{out: out}
	root := &cobra.Command{
		Use:           "paydesk",
		Short:         "Merchant services admin API",
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&c.configPath, "config", "", "YAML config file (default $"+config.EnvConfigFile+")")

	root.AddCommand(c.serveCmd())
	root.AddCommand(c.migrateCmd())
	root.AddCommand(c.createUserCmd())
	root.AddCommand(c.tokenCmd())
	root.AddCommand(c.adminCmd())
	return root
}

func (c *cli) loadConfig() (*config.Config, error) {
	return config.Load(c.configPath)
}

func openDB(cfg *config.Config) (*store.DB, error) {
	db, err := store.Open(cfg.DatabaseDriver, cfg.DatabaseURL, store.NewClock())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return db, nil
}

func (c *cli) printf(format string, args ...any) {
	fmt.Fprintf(c.out, format, args...)
}
