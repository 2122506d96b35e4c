package cmd

import (
	"github.com/curaious/synergy/internal/api"
	"github.com/curaious/synergy/internal/config"
	"github.com/curaious/synergy/internal/telemetry"
	"github.com/spf13/cobra"
)

var apiServerCmd = &cobra.Command{
	Use:   "api-server",
	Short: "Start API Server",
	Run: func(cmd *cobra.Command, args []string) {
		conf := config.ReadConfig()

		shutdownTelemetry := telemetry.NewProvider(conf.OTEL_EXPORTER_OTLP_ENDPOINT)
		defer shutdownTelemetry()

		s := api.New(conf)
		s.Start()
	},
}

// Register the "api-server" command
func init() {
	rootCmd.AddCommand(apiServerCmd)
}
