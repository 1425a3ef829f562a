package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	apiconfig "forensic_audit/pkg/api/config"
	"forensic_audit/pkg/api/audit"
	"forensic_audit/pkg/core/app"
	"forensic_audit/pkg/core/config"
	"forensic_audit/pkg/core/logging"
	"forensic_audit/pkg/core/utils"
)

var (
	configPath  string
	addr        string
	openBrowser bool
)

var rootCmd = &cobra.Command{
	Use:   "audit-api",
	Short: "Serve the Beneish M-Score audit API",
	Long: `Serves document upload, scoring and report endpoints over HTTP and
a progress-streaming WebSocket at /ws/audit.`,
	Args:          cobra.NoArgs,
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          serve,
}

func init() {
	rootCmd.Flags().StringVarP(&configPath, "config", "c", "", "path to a YAML config file")
	rootCmd.Flags().StringVar(&addr, "addr", "", "listen address (overrides config)")
	rootCmd.Flags().BoolVar(&openBrowser, "open", false, "open the API in a browser once listening")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "[FATAL] %v\n", err)
		os.Exit(1)
	}
}

func serve(cmd *cobra.Command, _ []string) error {
	settings, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if addr != "" {
		settings.Server.Addr = addr
	}

	log, err := logging.New(settings.Log.Level, settings.Log.Development)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, settings, log)
	if err != nil {
		return err
	}
	defer a.Close()

	handler := audit.NewHandler(a.Pipeline, audit.Options{
		MaxUploadBytes: settings.Server.MaxUploadBytes,
		AllowedOrigins: settings.Server.AllowedOrigins,
	}, log)
	srv := &http.Server{
		Addr:              settings.Server.Addr,
		Handler:           audit.NewRouter(handler, apiconfig.NewHandler(a.Agents), log),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		log.Info("api server starting",
			zap.String("addr", srv.Addr),
			zap.String("provider", a.Agents.GetActiveProvider()))
		errc <- srv.ListenAndServe()
	}()

	if openBrowser || settings.Server.OpenBrowser {
		if err := utils.OpenBrowser(localURL(srv.Addr) + "/healthz"); err != nil {
			log.Warn("failed to open browser", zap.Error(err))
		}
	}

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// localURL turns ":8080" into "http://localhost:8080".
func localURL(listen string) string {
	if strings.HasPrefix(listen, ":") {
		return "http://localhost" + listen
	}
	return "http://" + listen
}
