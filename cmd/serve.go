package cmd

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/grovetools/statesync/cli"
	"github.com/grovetools/statesync/internal/devserver"
	"github.com/grovetools/statesync/pkg/models"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// NewServeCmd creates the `serve` command
func NewServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run an in-memory development server with a REST API and push channel",
		Long: `Serves /api/{resource} and a websocket push channel at /ws from memory.
Every mutation is pushed to connected clients, which makes it a local stand-in
for the real server when trying out watch and call.`,
		Example: `statesync serve --addr :9950 --seed fixtures.json`,
	}
	cmd.Flags().String("addr", "127.0.0.1:9950", "Address to listen on")
	cmd.Flags().String("seed", "", "JSON file mapping resource names to document arrays")
	cmd.Flags().Duration("delay", 0, "Delay every API response")

	cmd.RunE = func(cmd *cobra.Command, args []string) error {
		level := logrus.InfoLevel
		if cli.GetOptions(cmd).Verbose {
			level = logrus.DebugLevel
		}
		logger := cli.NewLogger("devserver", cli.WithLevel(level))

		srv := devserver.New(logger)
		if seed, _ := cmd.Flags().GetString("seed"); seed != "" {
			if err := seedServer(srv, seed); err != nil {
				return err
			}
		}
		if delay, _ := cmd.Flags().GetDuration("delay"); delay > 0 {
			srv.SetDelay(delay)
		}

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		go func() {
			<-ctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			if err := srv.Shutdown(shutdownCtx); err != nil {
				logger.Errorf("Server shutdown error: %v", err)
			}
		}()

		addr, _ := cmd.Flags().GetString("addr")
		if err := srv.ListenAndServe(addr); err != nil {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	}
	return cmd
}

func seedServer(srv *devserver.Server, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read seed file: %w", err)
	}
	var seed map[models.ResourceKind][]models.Document
	if err := json.Unmarshal(data, &seed); err != nil {
		return fmt.Errorf("failed to parse seed file: %w", err)
	}
	for resource, docs := range seed {
		srv.Seed(resource, docs...)
	}
	return nil
}
