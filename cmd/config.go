package cmd

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/grovetools/statesync/cli"
	"github.com/grovetools/statesync/config"
	"github.com/grovetools/statesync/pkg/client"
	"github.com/grovetools/statesync/pkg/router"
	"github.com/spf13/cobra"
)

// NewConfigCmd creates the `config` command with its subcommands.
func NewConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Inspect the statesync configuration",
	}
	cmd.AddCommand(newConfigShowCmd())
	cmd.AddCommand(newConfigSchemaCmd())
	cmd.AddCommand(newConfigPoliciesCmd())
	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the loaded configuration with defaults applied",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			if cli.GetOptions(cmd).JSONOutput {
				data, err := json.MarshalIndent(cfg, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			fmt.Fprintf(cmd.OutOrStdout(), "# Source: %s\n", cfg.Path())
			fmt.Fprint(cmd.OutOrStdout(), cfg.String())
			return nil
		},
	}
}

func newConfigSchemaCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "schema",
		Short: "Print the JSON schema of statesync.yml",
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := config.GenerateSchema()
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), string(data))
			return nil
		},
	}
}

func newConfigPoliciesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "policies",
		Short: "Print the effective concurrency policy of every command kind",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := cli.LoadConfig(cmd)
			if err != nil {
				return err
			}
			c, err := client.New(cfg, client.WithoutPush())
			if err != nil {
				return err
			}

			policies := map[string]router.Policy{}
			var names []string
			for _, kind := range client.DefaultKinds() {
				p, _ := c.Router().Policy(kind)
				policies[kind.String()] = p
				names = append(names, kind.String())
			}
			sort.Strings(names)

			if cli.GetOptions(cmd).JSONOutput {
				out := make(map[string]string, len(policies))
				for name, p := range policies {
					out[name] = p.String()
				}
				data, err := json.MarshalIndent(out, "", "  ")
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
				return nil
			}
			for _, name := range names {
				fmt.Fprintf(cmd.OutOrStdout(), "%-24s %s\n", name, policies[name])
			}
			return nil
		},
	}
}
