package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/nhle/mail-agent/internal/app"
	"github.com/nhle/mail-agent/internal/credential"
	"github.com/nhle/mail-agent/internal/server"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP server",
	Long: `Serves POST /api/llm for the browser client, the Google sign-in flow,
the per-session action journal and Prometheus metrics.`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().String("addr", "", "Listen address; overrides server.addr")
	serveCmd.Flags().String("static", "", "Directory of static files served at /; overrides server.static_dir")
	serveCmd.Flags().Duration("journal-retention", 30*24*time.Hour, "Prune journaled actions older than this at startup (0 keeps everything)")
}

func runServe(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	if v, _ := cmd.Flags().GetString("addr"); v != "" {
		cfg.Server.Addr = v
	}
	if v, _ := cmd.Flags().GetString("static"); v != "" {
		cfg.Server.StaticDir = v
	}

	log, err := newLogger(cmd, cfg)
	if err != nil {
		return err
	}

	creds, err := credential.Open()
	if err != nil {
		return err
	}

	a, err := app.New(cfg, creds, nil, log)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	ctx = log.WithContext(ctx)

	if retention, _ := cmd.Flags().GetDuration("journal-retention"); retention > 0 {
		n, err := a.Journal.PruneActions(ctx, time.Now().Add(-retention))
		if err != nil {
			log.Warn().Err(err).Msg("pruning action journal")
		} else if n > 0 {
			log.Info().Int64("pruned", n).Msg("pruned action journal")
		}
	}

	go a.Sessions.Run(ctx, cfg.Session.SweepInterval)

	srv := server.New(server.Config{
		Agent:        a.Agent,
		Sessions:     a.Sessions,
		Mailboxes:    a.Mailboxes,
		OAuth:        a.OAuth,
		Actions:      a.Journal,
		Metrics:      a.Metrics.Handler(),
		StaticDir:    cfg.Server.StaticDir,
		CookieName:   cfg.Server.CookieName,
		SecureCookie: cfg.Server.SecureCookie,
		Logger:       log,
	})

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info().
			Str("addr", httpServer.Addr).
			Str("provider", cfg.Mailbox.Provider).
			Msg("listening")
		serverErrors <- httpServer.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil

	case <-ctx.Done():
		log.Info().Msg("shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Dur("timeout", shutdownTimeout).Msg("graceful shutdown did not complete")
			return httpServer.Close()
		}
		log.Info().Msg("server stopped")
		return nil
	}
}
