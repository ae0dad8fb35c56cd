package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	api "github.com/mind-engage/cityprosperity/internal/api/http"
	"github.com/mind-engage/cityprosperity/internal/auth"
	authmw "github.com/mind-engage/cityprosperity/internal/auth/middleware"
	"github.com/mind-engage/cityprosperity/internal/config"
	"github.com/mind-engage/cityprosperity/internal/storage"
)

func serveCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runServe(ctx, addr)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides HTTP_ADDR)")
	return cmd
}

func runServe(ctx context.Context, addr string) error {
	openCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	a, err := openApp(openCtx)
	if err != nil {
		return err
	}
	defer a.close()
	cfg := a.cfg
	if addr == "" {
		addr = cfg.HTTPAddr
	}

	users := auth.NewUsers(a.db)
	if err := users.EnsureAdmin(openCtx, cfg.AdminUser, cfg.AdminPassHash); err != nil {
		return err
	}

	deps := api.Deps{
		Service:     a.service,
		Auth:        authmw.NewAuthService(cfg.AuthHMACSecret, cfg.TokenTTL),
		Users:       users,
		DB:          a.db,
		Limiter:     api.NewSubmitLimiter(cfg.SubmitRatePerSec, cfg.SubmitBurst),
		CORSOrigins: cfg.CORSOrigins,
		Offline:     cfg.Mode == config.ModeOffline,
	}
	if cfg.BlobBasePath != "" {
		bs, err := storage.NewFSStore(cfg.BlobBasePath)
		if err != nil {
			return err
		}
		deps.Blobs = bs
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           api.NewRouter(deps),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		log.Printf("listening on %s (mode=%s, db=%s, records=%s)", addr, cfg.Mode, cfg.DBDriver, cfg.RecordBackend)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		log.Printf("shutting down")
		shutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return srv.Shutdown(shutCtx)
	}
}
