package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"MiniInventory/internal/config"
)

const service = "inventory"

var version = "dev"

type rootFlags struct {
	configFile string
	envFile    string
}

func main() {
	if err := newRootCommand().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	flags := &rootFlags{}

	root := &cobra.Command{
		Use:           service,
		Short:         "Product inventory HTTP API",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configFile, "config", config.DefaultConfigFile, "path to the YAML config file")
	root.PersistentFlags().StringVar(&flags.envFile, "env-file", config.DefaultEnvFile, "path to the .env file")

	root.AddCommand(newServeCommand(flags))
	root.AddCommand(newCheckCommand(flags))
	root.AddCommand(newVersionCommand())
	return root
}

func newVersionCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the build version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", service, version)
		},
	}
}
