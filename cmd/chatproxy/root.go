package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var cfgFile string

var rootCmd = &cobra.Command{
	Use:   "chatproxy",
	Short: "Chat proxy - OpenAI chat backend for browser clients",
	Long: `Chat proxy accepts chat requests from a browser UI, assembles the prompt
from the system prompt, prior history and the new message, and forwards it to
an OpenAI chat model.

Responses are returned as a single JSON document, as a server-sent event
stream, or in the AI SDK data stream format. The model id "response-test"
echoes the message back without calling the provider.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file path (default config.yaml if present)")
}
