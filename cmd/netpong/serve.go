package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/vovakirdan/netpong/internal/config"
	"github.com/vovakirdan/netpong/internal/server"
)

var (
	flagConfig string
	flagAddr   string
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the netpong game server",
	Long: `Start the WebSocket game server.

Configuration is loaded from (in order): the --config path, a local
./configs/netpong.yaml, then embedded defaults. --addr overrides the
listen address from any of those.

Examples:
  netpong serve                            # Listen on :8080 with defaults
  netpong serve --addr :9000               # Listen on port 9000
  netpong serve --config ./netpong.yaml    # Use a specific config file`,
	Run: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&flagConfig, "config", "", "Path to config file (uses defaults if not specified)")
	serveCmd.Flags().StringVar(&flagAddr, "addr", "", "Listen address (overrides config)")
}

func runServe(_ *cobra.Command, _ []string) {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error loading config: %v\n", err)
		os.Exit(1)
	}
	if flagAddr != "" {
		cfg.Address = flagAddr
	}

	srv := server.New(cfg)

	fmt.Printf("Starting netpong server on %s\n", cfg.Address)
	fmt.Println("Press Ctrl+C to stop")

	if err := srv.ListenAndServe(); err != nil {
		fmt.Fprintf(os.Stderr, "Server error: %v\n", err)
		os.Exit(1)
	}
}
