package main

import (
	"os"

	"github.com/grovetools/statesync/cli"
	"github.com/grovetools/statesync/cmd"
)

func main() {
	rootCmd := cli.NewStandardCommand(
		"statesync",
		"Keep a local view of a server's data set in sync over its push channel",
	)
	cli.SetVersionTemplate(rootCmd)

	rootCmd.AddCommand(cmd.NewWatchCmd())
	rootCmd.AddCommand(cmd.NewCallCmd())
	rootCmd.AddCommand(cmd.NewConfigCmd())
	rootCmd.AddCommand(cmd.NewServeCmd())
	rootCmd.AddCommand(cli.NewVersionCommand("statesync"))
	cli.ApplyStyledHelpRecursive(rootCmd)

	if err := rootCmd.Execute(); err != nil {
		verbose, _ := rootCmd.PersistentFlags().GetBool("verbose")
		cli.NewErrorHandler(verbose).Handle(err)
		os.Exit(1)
	}
}
