package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var version = "dev"

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "mqscope",
		Short: "Browse, consume and produce Kafka and RabbitMQ messages",
		Long: `mqscope runs the message browser locally. Use "serve" for the web UI or
"tail" to follow a topic from the terminal with the same message limit rules.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		newServeCmd(),
		newOpenCmd(),
		newTailCmd(),
		newVersionCmd(),
	)
	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
