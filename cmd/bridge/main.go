package main

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envFiles   []string
)

var rootCmd = &cobra.Command{
	Use:   "alice-bridge",
	Short: "Bridge between the assistant core's MQTT broker and browser dashboards",
	Long: `alice-bridge keeps a connection to the assistant core's MQTT broker, tracks
core liveness from its heartbeat, and serves the resulting interface state to
browsers over WebSocket.

Use "alice-bridge [command] --help" for more information about a command.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "configs/bridge.local.yaml", "path to config file")
	rootCmd.PersistentFlags().StringSliceVar(&envFiles, "env-file", []string{".env"}, "dotenv files loaded before the config is read")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
