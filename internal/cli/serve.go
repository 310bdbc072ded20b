package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"sheetcal/internal/config"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/refresh"
	"sheetcal/internal/web"
)

const defaultConfigPath = "sheetcal.yaml"

func newServeCmd(root *rootOptions) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the calendar over HTTP and refresh it on a schedule",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runServe(cmd, root, listen)
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "HTTP listen address (overrides config if set)")
	return cmd
}

func runServe(cmd *cobra.Command, root *rootOptions, listen string) error {
	path := root.configPath
	if path == "" {
		path = defaultConfigPath
	}
	cfg, err := config.Load(path)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	env, err := root.applyOverrides(cmd, cfg)
	if err != nil {
		return err
	}
	if listen != "" {
		cfg.Listen = listen
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	appLog.Info("effective config",
		"listen", cfg.Listen,
		"timezone", cfg.Timezone,
		"refresh", cfg.RefreshCron,
		"fall_year", cfg.FallYear,
		"sources", len(cfg.Sources),
		"fetch_mode", cfg.Fetch.Mode,
		"output", cfg.Output,
	)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	srv := web.NewServer(cfg)
	runner := refresh.NewRunner(path, cfg, env, nil, srv)

	runnerErr := make(chan error, 1)
	go func() { runnerErr <- runner.Start(ctx) }()
	serveErr := make(chan error, 1)
	go func() { serveErr <- web.StartServer(ctx, srv) }()

	// Whichever side stops first takes the other one down.
	select {
	case err := <-runnerErr:
		cancel()
		return firstErr(err, <-serveErr)
	case err := <-serveErr:
		cancel()
		return firstErr(err, <-runnerErr)
	}
}

func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
