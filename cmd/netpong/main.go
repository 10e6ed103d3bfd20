// netpong is an authoritative server for two-player networked Pong.
//
// Usage:
//
//	netpong serve            - Start the game server
//
// Clients connect over WebSocket: /ws/matchmaking to queue up and
// /ws/game/{roomID} to play. All simulation runs server-side at 60 Hz;
// clients only send intents and render snapshots.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "netpong",
	Short: "netpong - Authoritative two-player Pong server",
	Long: `netpong runs a server-authoritative Pong backend. Players queue up
over a matchmaking WebSocket, get paired first-come-first-served, and
play in isolated game rooms simulated entirely on the server.

Available commands:
  serve    - Start the game server

Examples:
  netpong serve
  netpong serve --addr :9000
  netpong serve --config ./configs/netpong.yaml`,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}
