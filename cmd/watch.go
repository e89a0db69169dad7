package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/grovetools/statesync/cli"
	"github.com/grovetools/statesync/pkg/client"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/store"
	"github.com/spf13/cobra"
)

type watchLine struct {
	Action     string                 `json:"action"`
	Resource   models.ResourceKind    `json:"resource,omitempty"`
	Connection store.ConnectionStatus `json:"connection"`
	Documents  int                    `json:"documents,omitempty"`
	Error      string                 `json:"error,omitempty"`
}

// NewWatchCmd creates the `watch` command
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Follow the server's push channel and print every state change",
		Long: `Connects to the push channel of the configured server and prints one line
per applied change. The configuration file is watched and a changed logging
section takes effect without a restart.`,
		Example: `# Follow all changes
statesync watch
# Load samples and jobs first, print JSON lines
statesync watch --load samples,jobs --json`,
	}
	cmd.Flags().StringSlice("load", nil, "Resources to list once connected")
	cmd.Flags().Bool("refresh-files", true, "List files again whenever a file change is pushed")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		logger := cli.GetLogger(cmd)
		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}
		load, _ := cmd.Flags().GetStringSlice("load")
		jsonOutput := cli.GetOptions(cmd).JSONOutput

		opts := []client.Option{client.WithConfigWatch(true), client.WithLogger(logger)}
		if refresh, _ := cmd.Flags().GetBool("refresh-files"); refresh {
			opts = append(opts, client.WithPushFollowUps(client.DefaultPushFollowUps()))
		}
		c, err := client.New(cfg, opts...)
		if err != nil {
			return err
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		updates := c.Subscribe()
		defer c.Unsubscribe(updates)
		go printUpdates(ctx, cmd, updates, jsonOutput)

		for _, resource := range load {
			kind := models.Kind(models.ResourceKind(resource), models.VerbFind)
			if _, err := c.Dispatch(ctx, lifecycle.Command{Kind: kind}); err != nil {
				return err
			}
		}

		logger.WithField("push_url", c.PushURL()).Info("Watching")
		return c.Run(ctx)
	}
	return cmd
}

func printUpdates(ctx context.Context, cmd *cobra.Command, updates <-chan store.Update, jsonOutput bool) {
	out := cmd.OutOrStdout()
	enc := json.NewEncoder(out)
	for {
		select {
		case <-ctx.Done():
			return
		case u, ok := <-updates:
			if !ok {
				return
			}
			line := watchLine{
				Action:     u.Action.String(),
				Resource:   u.Action.Resource,
				Connection: u.State.Connection,
			}
			if line.Resource != "" {
				line.Documents = len(u.State.Collections[line.Resource])
			}
			if ev := u.Action.Event; ev != nil && ev.Err != nil {
				line.Error = ev.Err.Error()
			}

			if jsonOutput {
				_ = enc.Encode(line)
				continue
			}
			fmt.Fprintf(out, "%-32s connection=%s", line.Action, line.Connection)
			if line.Resource != "" {
				fmt.Fprintf(out, " %s=%d", line.Resource, line.Documents)
			}
			if line.Error != "" {
				fmt.Fprintf(out, " error=%q", line.Error)
			}
			fmt.Fprintln(out)
		}
	}
}
