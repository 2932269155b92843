package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/ogulcanaydogan/spendwatch/internal/server"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the expense API and the periodic threshold sweep",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("listen", "l", "", "Listen address (default from config)")
	serveCmd.Flags().Bool("no-sweep", false, "Disable the periodic sweep")
}

func runServe(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := cfg.ValidateServe(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}

	if listen, _ := cmd.Flags().GetString("listen"); listen != "" {
		cfg.Server.Listen = listen
	}
	if noSweep, _ := cmd.Flags().GetBool("no-sweep"); noSweep {
		cfg.Sweep.Enabled = false
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	opts := server.Options{
		AllowedOrigins: cfg.Server.CORS.AllowedOrigins,
		CORSMaxAge:     cfg.Server.CORS.MaxAge,
	}
	if cfg.Metrics.Enabled {
		opts.Metrics = promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{})
		opts.MetricsPath = cfg.Metrics.Path
	}
	api := server.NewServer(a.expenses, a.auth, opts, a.logger)

	srv := &http.Server{
		Addr:         cfg.Server.Listen,
		Handler:      api.Handler(),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("api started", "listen", cfg.Server.Listen)
		fmt.Fprintf(os.Stderr, "spendwatch listening on %s\n", cfg.Server.Listen)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		a.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown error: %w", err)
		}
		return nil
	})
	if cfg.Sweep.Enabled {
		g.Go(func() error {
			return a.sweeper.Schedule(gctx, cfg.Sweep.Interval)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	a.logger.Info("api stopped")
	return nil
}
