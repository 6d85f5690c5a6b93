package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rickgao/alice-bridge/internal/bridge"
	"github.com/rickgao/alice-bridge/internal/config"
	"github.com/rickgao/alice-bridge/internal/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the bridge until interrupted",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		logger, err := newLogger(cfg.Log, os.Stdout)
		if err != nil {
			return err
		}
		slog.SetDefault(logger)

		logger.Info("starting bridge",
			"version", version.Version,
			"commit", version.Commit,
			"config", configPath,
		)

		ctx, cancel := context.WithCancel(cmd.Context())
		defer cancel()

		// Handle shutdown signals
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		defer signal.Stop(sigCh)
		go func() {
			select {
			case sig := <-sigCh:
				logger.Info("received shutdown signal", "signal", sig)
				cancel()
			case <-ctx.Done():
			}
		}()

		b, err := bridge.New(ctx, cfg, bridge.WithLogger(logger))
		if err != nil {
			logger.Error("failed to build bridge", "error", err)
			return err
		}

		if err := b.Run(ctx); err != nil {
			logger.Error("bridge stopped with error", "error", err)
			return err
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

// loadConfig reads dotenv files, then the YAML config.
func loadConfig() (*config.BridgeConfig, error) {
	if err := config.LoadEnv(envFiles...); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg, err := config.LoadAndValidate(configPath)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

// newLogger builds the slog handler selected by the log config.
func newLogger(cfg config.LogConfig, w io.Writer) (*slog.Logger, error) {
	level, err := config.ParseLevel(cfg.Level)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}

	switch cfg.Format {
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	case "", "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("unknown log format %q", cfg.Format)
	}
}
