package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/paydesk/paydesk/internal/api"
	"github.com/paydesk/paydesk/internal/auth"
	"github.com/paydesk/paydesk/internal/config"
	"github.com/paydesk/paydesk/internal/notify"
	"github.com/paydesk/paydesk/internal/session"
	"github.com/paydesk/paydesk/internal/store"
	"github.com/paydesk/paydesk/pkg/admin"
	"github.com/paydesk/paydesk/pkg/webcore"
)

func (c *cli) serveCmd() *cobra.Command {
	var (
		port    int
		verbose bool
		migrate bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Long: `Run the HTTP API until interrupted.

Examples:
  paydesk serve
  paydesk serve --port 8080 --verbose
  DATABASE_URL=postgres://localhost/paydesk paydesk serve --migrate`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.loadConfig()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if verbose {
				cfg.Verbose = true
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			server := webcore.New(&webcore.Config{
				Name:         "paydesk",
				Port:         cfg.Port,
				Verbose:      cfg.Verbose,
				AllowOrigins: cfg.AllowOrigins,
			})
			logger := server.Logger

			db, err := openDB(cfg)
			if err != nil {
				return err
			}
			defer db.Close()

			ctx := cmd.Context()
			if migrate {
				if err := db.Migrate(ctx); err != nil {
					return fmt.Errorf("migrate: %w", err)
				}
				logger.Info("schema migrated", "driver", cfg.DatabaseDriver)
			}

			a, err := newApp(cfg, db, server)
			if err != nil {
				return err
			}
			defer a.events.Wait()

			logger.Info("paydesk ready",
				"port", cfg.Port,
				"driver", cfg.DatabaseDriver,
				"auth_mode", a.mode,
				"token_format", cfg.TokenFormat,
				"webhooks", cfg.WebhookURL != "",
			)
			return server.Serve(ctx)
		},
	}
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	cmd.Flags().BoolVar(&verbose, "verbose", false, "debug logging")
	cmd.Flags().BoolVar(&migrate, "migrate", false, "apply the schema before serving")
	return cmd
}

// app is the wired API behind a webcore server.
type app struct {
	mode   auth.Mode
	events *notify.Dispatcher
}

// newApp wires the session codec, gate, webhook dispatcher, API and admin
// routes onto server.
func newApp(cfg *config.Config, db *store.DB, server *webcore.Server) (*app, error) {
	logger := server.Logger
	mode, err := auth.ParseMode(cfg.AuthMode)
	if err != nil {
		return nil, err
	}
	codec, err := session.NewCodec(cfg.TokenFormat, cfg.SessionSecret, db.Clock().Now)
	if err != nil {
		return nil, err
	}
	if mode == auth.ModeDemo {
		logger.Warn("auth mode is demo: requests without a session are served as the demo admin")
	}
	if cfg.TokenFormat == session.FormatUnsigned {
		logger.Warn("session tokens are unsigned and can be forged by any client")
	}

	events := notify.NewDispatcher(notify.Config{
		URL:    cfg.WebhookURL,
		Secret: cfg.WebhookSecret,
		Logger: logger,
		Now:    db.Clock().Now,
	})
	h := api.NewHandler(api.Deps{
		DB:           db,
		Codec:        codec,
		Gate:         auth.NewGate(codec, mode, db.Clock().Now),
		Events:       events,
		Middleware:   server.Middleware(),
		Logger:       logger,
		CookieSecure: cfg.CookieSecure,
	})
	h.Routes(server.Router, admin.NewHandler(db, server, server.Middleware(), events).Routes)
	return &app{mode: mode, events: events}, nil
}
