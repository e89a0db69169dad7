package cli

import (
	"os"

	"github.com/grovetools/statesync/config"
	"github.com/grovetools/statesync/errors"
	"github.com/grovetools/statesync/logging"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

// CommandOptions holds common options for statesync commands
type CommandOptions struct {
	ConfigFile string
	Verbose    bool
	JSONOutput bool
}

// NewStandardCommand creates a new command with standard flags
func NewStandardCommand(use, short string) *cobra.Command {
	cmd := &cobra.Command{
		Use:           use,
		Short:         short,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().Bool("json", false, "Output in JSON format")
	cmd.PersistentFlags().StringP("config", "c", "", "Path to statesync.yml config file")

	SetStyledHelp(cmd)
	return cmd
}

// GetLogger returns the component logger for a command, honoring --verbose.
func GetLogger(cmd *cobra.Command) *logrus.Entry {
	entry := logging.NewLogger("cli")

	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		_ = logging.SetLevel("debug")
	}
	return entry
}

// GetOptions extracts common options from a command
func GetOptions(cmd *cobra.Command) CommandOptions {
	configFile, _ := cmd.Flags().GetString("config")
	verbose, _ := cmd.Flags().GetBool("verbose")
	jsonOutput, _ := cmd.Flags().GetBool("json")

	return CommandOptions{
		ConfigFile: configFile,
		Verbose:    verbose,
		JSONOutput: jsonOutput,
	}
}

// InitConfig resolves the configuration file path. An empty result means
// no file was found.
func InitConfig(configFile string) (string, error) {
	if configFile != "" {
		return configFile, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", err
	}

	found, err := config.FindConfigFile(cwd)
	if err != nil {
		return "", nil
	}
	return found, nil
}

// LoadConfig loads the configuration named by the command flags and applies
// its logging section. --verbose wins over the configured level.
func LoadConfig(cmd *cobra.Command) (*config.Config, error) {
	opts := GetOptions(cmd)

	path, err := InitConfig(opts.ConfigFile)
	if err != nil {
		return nil, err
	}
	if path == "" {
		cwd, _ := os.Getwd()
		return nil, errors.ConfigNotFound(cwd)
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}

	if lc, err := cfg.Logging(); err == nil {
		logging.Configure(lc)
	}
	if opts.Verbose {
		_ = logging.SetLevel("debug")
	}
	return cfg, nil
}
