package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"townhall/internal/api"
	"townhall/internal/auth"
	"townhall/internal/logging"
	"townhall/internal/outreach"
	"townhall/internal/server"
	"townhall/internal/web"
)

var serveAddr string

// serveCmd runs the web site and JSON API
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the HTTP server",
	Long: `Serves the HTML pages and the JSON API until interrupted.

Login links are written to the auth log; configure server.base_url so they
point at the public address.`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (overrides server.addr)")
}

func runServe(cmd *cobra.Command, args []string) error {
	if serveAddr != "" {
		cfg.Server.Addr = serveAddr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	st, err := openStore()
	if err != nil {
		return err
	}
	defer st.Close()

	if n, err := st.PurgeExpiredSessions(ctx); err != nil {
		logging.BootWarn("Failed to purge expired sessions: %v", err)
	} else if n > 0 {
		logging.Boot("Purged %d expired sessions", n)
	}

	authSvc := auth.NewService(st, auth.LogMailer{}, auth.Config{
		BaseURL:       cfg.Server.BaseURL,
		CookieName:    cfg.Auth.CookieName,
		SessionTTL:    cfg.GetSessionTTL(),
		LoginCodeTTL:  cfg.GetLoginCodeTTL(),
		SecureCookies: cfg.Auth.SecureCookies,
	})
	workflow := outreach.NewWorkflow(st, outreach.NewSelector(st, nil))
	pages, err := web.New(st, workflow, authSvc)
	if err != nil {
		return fmt.Errorf("failed to load templates: %w", err)
	}

	srv := server.New(server.Settings{
		Addr:            cfg.Server.Addr,
		ReadTimeout:     cfg.GetReadTimeout(),
		WriteTimeout:    cfg.GetWriteTimeout(),
		ShutdownTimeout: cfg.GetShutdownTimeout(),
	}, server.Routes(pages, api.New(st), authSvc))

	fmt.Fprintf(cmd.OutOrStdout(), "Serving on %s (Ctrl+C to stop)\n", cfg.Server.Addr)
	return srv.Run(ctx)
}
