package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"richard/internal/app"
	"richard/internal/bot"
	"richard/internal/config"
)

var version = "0.0.0"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "fatal:", err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	var cfgPath, envFile string

	root := &cobra.Command{
		Use:           "richard",
		Short:         "richard: chat bot that watches APIs, feeds and releases",
		Long:          "richard runs periodic watchers and chat command handlers, and broadcasts what they report to every enabled chat room.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(*cobra.Command, []string) error {
			return config.LoadDotenv(envFile)
		},
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			a, err := app.NewApp(app.Options{ConfigPath: cfgPath, Version: version})
			if err != nil {
				return err
			}
			return a.Run(ctx)
		},
	}
	root.PersistentFlags().StringVar(&cfgPath, "config", "", "path to a JSON or YAML config file (optional)")
	root.PersistentFlags().StringVar(&envFile, "env-file", "", "dotenv file loaded before reading the environment (optional)")

	root.AddCommand(&cobra.Command{
		Use:   "params",
		Short: "Print every module's environment parameters as markdown",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bot.WriteParamsDoc(cmd.OutOrStdout(), app.Catalog())
		},
	})
	root.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version)
		},
	})
	root.SetContext(context.Background())
	return root
}
