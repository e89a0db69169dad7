package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/grovetools/statesync/cli"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/pkg/api"
	"github.com/grovetools/statesync/pkg/client"
	"github.com/grovetools/statesync/pkg/lifecycle"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/grovetools/statesync/pkg/router"
	"github.com/spf13/cobra"
)

// NewCallCmd creates the `call` command
func NewCallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "call <kind> [payload]",
		Short: "Run one command through its lifecycle and print the result",
		Long: `Dispatches a single command such as samples.find or jobs.remove with the
same concurrency policy the client uses and prints the response. The payload
is a JSON value; a bare string is used as a document id.`,
		Example: `statesync call samples.find --term ABC
statesync call jobs.get abc123
statesync call samples.create '{"name":"S1"}'
statesync call files.upload --file reads.fq.gz --type reads`,
		Args: cobra.RangeArgs(1, 2),
	}
	cmd.Flags().String("term", "", "Search term for find commands")
	cmd.Flags().String("file", "", "File to send with files.upload")
	cmd.Flags().String("type", "reads", "File type for files.upload")
	cmd.Flags().Duration("timeout", time.Minute, "Give up waiting after this long")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		logger := cli.GetLogger(cmd)
		cfg, err := cli.LoadConfig(cmd)
		if err != nil {
			return err
		}

		kind, err := models.ParseCommandKind(args[0])
		if err != nil {
			return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid command kind")
		}
		command := lifecycle.Command{Kind: kind}
		command.Term, _ = cmd.Flags().GetString("term")

		if len(args) == 2 {
			command.Payload = parsePayload(args[1])
		}

		var progress *cli.ProgressReporter
		if kind.Verb == models.VerbUpload {
			upload, closeFile, err := openUpload(cmd)
			if err != nil {
				return err
			}
			defer closeFile()
			command.Payload = upload
			progress = cli.NewProgressReporter(cmd.ErrOrStderr(), upload.Name)
			command.OnProgress = progress.Update
		}

		c, err := client.New(cfg, client.WithoutPush(), client.WithLogger(logger))
		if err != nil {
			return err
		}

		timeout, _ := cmd.Flags().GetDuration("timeout")
		ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
		defer cancel()

		loopCtx, stopLoop := context.WithCancel(context.Background())
		defer stopLoop()
		go c.Run(loopCtx)

		outcome, err := c.Call(ctx, command)
		if err != nil {
			return err
		}
		if progress != nil {
			progress.Done()
		}
		return printOutcome(cmd, kind, outcome)
	}
	return cmd
}

// parsePayload decodes a JSON argument and falls back to the raw string.
func parsePayload(arg string) interface{} {
	var v interface{}
	if err := json.Unmarshal([]byte(arg), &v); err != nil {
		return arg
	}
	return v
}

func openUpload(cmd *cobra.Command) (*api.Upload, func(), error) {
	path, _ := cmd.Flags().GetString("file")
	if path == "" {
		return nil, nil, errors.New(errors.ErrCodeInvalidInput, "files.upload needs --file")
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open upload: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("failed to stat upload: %w", err)
	}
	fileType, _ := cmd.Flags().GetString("type")
	return &api.Upload{
		Name:     filepath.Base(path),
		FileType: fileType,
		Reader:   f,
		Size:     info.Size(),
	}, func() { f.Close() }, nil
}

func printOutcome(cmd *cobra.Command, kind models.CommandKind, o router.Outcome) error {
	switch o.Status {
	case router.StatusRejected:
		fmt.Fprintf(cmd.ErrOrStderr(), "%s was rejected by its rate limit\n", kind)
		return nil
	case router.StatusFailed:
		return o.Err
	}

	if len(o.Data) == 0 {
		fmt.Fprintf(cmd.OutOrStdout(), "%s succeeded\n", kind)
		return nil
	}
	var pretty interface{}
	if err := json.Unmarshal(o.Data, &pretty); err != nil {
		fmt.Fprintln(cmd.OutOrStdout(), string(o.Data))
		return nil
	}
	data, err := json.MarshalIndent(pretty, "", "  ")
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(data))
	return nil
}
