package cli

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/spf13/cobra"
	"github.com/vietddude/stylelog"

	"github.com/vietddude/deposit-watcher/internal/control"
	"github.com/vietddude/deposit-watcher/internal/core/config"
)

var (
	cfgPath string
	isDebug bool
)

var rootCmd = &cobra.Command{
	Use:   "watcher",
	Short: "Beacon deposit watcher",
	Long:  `Watcher tracks deposits to the Ethereum beacon deposit contract, re-validates them against reorgs and notifies subscribers.`,
	Run:   runWatcher,
}

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the watcher (default)",
	Run:   runWatcher,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgPath, "config", "config.yaml", "config file (default is config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&isDebug, "debug", false, "enable debug logging")
	rootCmd.AddCommand(runCmd)
}

// loadConfig reads .env and the config file and sets up logging. Exits on failure.
func loadConfig() *config.AppConfig {
	_ = godotenv.Load()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		stylelog.InitDefault()
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	slogLevel := slog.LevelInfo
	switch {
	case isDebug || cfg.Logging.Level == "debug":
		slogLevel = slog.LevelDebug
	case cfg.Logging.Level == "warn":
		slogLevel = slog.LevelWarn
	case cfg.Logging.Level == "error":
		slogLevel = slog.LevelError
	}

	stylelog.InitDefault(&tint.Options{
		Level:      slogLevel,
		TimeFormat: time.RFC3339,
	})
	return cfg
}

func runWatcher(cmd *cobra.Command, args []string) {
	cfg := loadConfig()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := control.NewWatcher(ctx, cfg, control.Options{})
	if err != nil {
		slog.Error("Failed to initialize Watcher", "error", err)
		os.Exit(1)
	}

	slog.Info("Watcher started", "config", cfgPath)

	if err := app.Run(ctx); err != nil {
		slog.Error("Watcher stopped with error", "error", err)
		os.Exit(1)
	}
	slog.Info("Watcher stopped gracefully")
}

// openStorage opens the configured storage for one-shot commands. Exits on failure.
func openStorage(ctx context.Context, cfg *config.AppConfig) *control.Storage {
	store, err := control.OpenStorage(ctx, cfg)
	if err != nil {
		slog.Error("Failed to open storage", "error", err)
		os.Exit(1)
	}
	return store
}
