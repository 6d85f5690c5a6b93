package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/rickgao/alice-bridge/internal/api"
	"github.com/rickgao/alice-bridge/internal/connection"
)

var probeCmd = &cobra.Command{
	Use:   "probe",
	Short: "Fetch the broker settings once and print the endpoint",
	Long: `Asks the web interface for its MQTT settings, applies the same localhost
rewrite the bridge uses, and prints the resulting broker URL. Nothing is
connected.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		ctx, cancel := context.WithTimeout(cmd.Context(), cfg.Interface.RequestTimeout)
		defer cancel()

		client := api.NewClient(cfg.Interface.URL, api.WithTimeout(cfg.Interface.RequestTimeout))
		params, err := client.FetchConnectionParameters(ctx)
		if err != nil {
			return fmt.Errorf("fetch broker settings from %s: %w", cfg.Interface.URL, err)
		}

		params = params.WithOrigin(cfg.Interface.OriginHost)
		fmt.Fprintln(os.Stdout, connection.BrokerURL(connection.MQTTConfig{
			Scheme: cfg.Broker.Scheme,
			Path:   cfg.Broker.Path,
		}, params.Host, params.Port))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(probeCmd)
}
