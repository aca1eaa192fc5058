package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "chat-bridge",
		Short: "Local WebSocket bridge between external clients and a host editor",
		Long: `chat-bridge runs a local WebSocket server that accepts JSON command
frames from external clients and forwards recognized commands to a host
editor through its CLI.

Supported inbound frames:

  {"type": "chat", "message": "<text>"}   open a chat session seeded with text
  {"type": "clear_history"}               clear the chat session history

Every command is answered on the originating connection with status frames
({"type": "<phase>", "status": "success"|"error", "message": "<text>"}).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		serveCmd(),
		versionCmd(),
	)

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Printf("chat-bridge %s (%s)\n", version, commit)
		},
	}
}
