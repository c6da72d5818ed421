package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/emaland/cmp/internal/auth"
	"github.com/emaland/cmp/internal/httpapi"
	"github.com/emaland/cmp/internal/store"
)

const shutdownTimeout = 10 * time.Second

func newServeCmd() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			if addr != "" {
				cfg.HTTPAddr = addr
			}
			return runServe(cmd.Context())
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from config)")
	return cmd
}

func runServe(ctx context.Context) error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is not set")
	}
	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close()

	authSvc, err := auth.NewService(log, store.NewUsers(a.store), auth.Config{
		Secret:     cfg.JWTSecret,
		AccessTTL:  cfg.AccessTokenTTL.Std(),
		RefreshTTL: cfg.RefreshTokenTTL.Std(),
	})
	if err != nil {
		return err
	}

	handler := httpapi.NewHandler(log, httpapi.Backend{
		InstanceTypes:   a.instanceTypes,
		Providers:       a.providerSvc,
		Regions:         a.regions,
		Networks:        a.networks,
		Groups:          a.groups,
		Auth:            authSvc,
		DefaultProvider: cfg.DefaultProvider,
	}, cfg.APIPrefix)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errc := make(chan error, 1)
	go func() {
		log.Info("Listening", zap.String("addr", cfg.HTTPAddr), zap.String("api_prefix", cfg.APIPrefix))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info("Shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
