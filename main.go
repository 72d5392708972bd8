package main

import (
	"fmt"
	"log"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	verbose    bool
	version    = "dev"
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "morvo",
	Short: "Arabic marketing companion with persistent conversations",
	Long: `Morvo answers marketing questions in Arabic. Every turn is grounded in
the user's stored profile, campaigns, analytics, memories and conversation
history, and every exchange is saved.

Quick Start:
  morvo seed --user console:demo         # Create a demo profile
  morvo chat --user demo                 # Talk to it as console:demo
  morvo serve                            # Start the HTTP and WebSocket server`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
		}
	},
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Config file (.json or .yaml); defaults to ~/.morvo/config.json")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)
}
