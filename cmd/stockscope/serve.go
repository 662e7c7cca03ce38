package main

import (
	"context"
	"time"

	"github.com/newthinker/stockscope/internal/api"
	"github.com/newthinker/stockscope/internal/app"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var serveAPIKey string

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API server",
	RunE:  runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveAPIKey, "api-key", "", "require this key on /api routes (overrides server.api_key)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	return withApp(func(ctx context.Context, a *app.App, log *zap.Logger) error {
		cfg := a.Config()
		apiKey := cfg.Server.APIKey
		if serveAPIKey != "" {
			apiKey = serveAPIKey
		}

		log.Info("starting stockscope server",
			zap.String("host", cfg.Server.Host),
			zap.Int("port", cfg.Server.Port),
			zap.Strings("sources", a.Sources()),
			zap.Bool("auth", apiKey != ""),
		)

		server, err := api.NewServer(api.Config{
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  cfg.Server.ReadTimeout,
			WriteTimeout: cfg.Server.WriteTimeout,
			APIKey:       apiKey,
			MetricsPath:  cfg.Metrics.Path,
		}, api.Dependencies{
			Service:          a.Service(),
			Metrics:          a.Metrics(),
			BacktestDefaults: a.BacktestDefaults(),
			Stats:            a.Stats,
		}, log)
		if err != nil {
			return err
		}

		errCh := make(chan error, 1)
		go func() {
			errCh <- server.Start()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		log.Info("shutting down stockscope server")

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})
}
