// Package cli implements the sheetcal commands.
package cli

import (
	"github.com/spf13/cobra"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
)

// rootOptions holds the persistent flags shared by all commands.
type rootOptions struct {
	configPath string
	envFile    string
	logLevel   string
	fetchMode  string
}

// RootCmd is the top-level command.
var RootCmd = NewRootCmd()

// NewRootCmd builds a fresh command tree.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "sheetcal",
		Short: "Turn published academic-calendar spreadsheets into iCalendar files",
		Long: "sheetcal reads the cells of published spreadsheet pages, recognizes schedule " +
			"entries such as \"Dec 20 - Jan 5 - Winter Break\" and writes them as calendar events.",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "Path to YAML config file")
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "Optional dotenv file with SHEETCAL_* overrides")
	cmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, error")
	cmd.PersistentFlags().StringVar(&opts.fetchMode, "fetch-mode", "", "Fetch mode: http or browser")

	cmd.AddCommand(newConvertCmd(opts), newServeCmd(opts))
	return cmd
}

// applyOverrides layers env values and persistent flags over cfg and
// sets the log level.
func (o *rootOptions) applyOverrides(cmd *cobra.Command, cfg *config.Config) (map[string]string, error) {
	env, err := config.ReadEnv(o.envFile)
	if err != nil {
		return nil, err
	}
	if err := cfg.ApplyEnv(env); err != nil {
		return nil, err
	}
	if cmd.Flags().Changed("log-level") {
		cfg.LogLevel = o.logLevel
	}
	if cmd.Flags().Changed("fetch-mode") {
		cfg.Fetch.Mode = o.fetchMode
	}
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	return env, nil
}
