package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/newthinker/stockscope/internal/app"
	"github.com/newthinker/stockscope/internal/config"
	"github.com/newthinker/stockscope/internal/logger"
	"github.com/newthinker/stockscope/internal/metrics"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	cfgFile string
	debug   bool
)

var rootCmd = &cobra.Command{
	Use:   "stockscope",
	Short: "stockscope - stock data aggregator",
	Long: `stockscope serves quotes, history, news, indicators, screens and backtests
for US, HK and CN equities. Every answer says whether it came from a live
provider or was synthesized because none could serve it.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&debug, "debug", "d", false, "enable debug mode")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// loadConfig reads and validates the configuration. Without --config the
// defaults apply, still overridable from the environment.
func loadConfig(log *zap.Logger) (*config.Config, error) {
	if cfgFile == "" {
		log.Debug("no config file specified, using defaults")
	}
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

// withApp handles common setup for commands that query data.
func withApp(fn func(ctx context.Context, a *app.App, log *zap.Logger) error) error {
	log := logger.Must(debug)
	defer log.Sync()

	cfg, err := loadConfig(log)
	if err != nil {
		return err
	}
	if cfg.Server.Mode == config.ModeDebug && !debug {
		log = logger.Must(true)
		defer log.Sync()
	}

	var opts []app.Option
	if cfg.Metrics.Enabled {
		opts = append(opts, app.WithMetrics(metrics.NewRegistry()))
	}
	a, err := app.New(cfg, log, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return fn(ctx, a, log)
}
