package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"sheetcal/internal/config"
	"sheetcal/internal/ics"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/pipeline"
)

type convertOptions struct {
	inputs   []string
	title    string
	output   string
	fallYear int
}

func newConvertCmd(root *rootOptions) *cobra.Command {
	opts := &convertOptions{}
	cmd := &cobra.Command{
		Use:   "convert",
		Short: "Fetch sheets once and write an .ics file",
		Long: "Fetch every input page in order, synthesize schedule events from its cells " +
			"and write them, sorted by start, to a single calendar file.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runConvert(cmd, root, opts)
		},
	}

	cmd.Flags().StringArrayVarP(&opts.inputs, "input", "i", nil, "Published sheet URL (repeatable)")
	cmd.Flags().StringVarP(&opts.title, "title", "t", config.DefaultTitle, "Calendar title")
	cmd.Flags().StringVarP(&opts.output, "output", "o", config.DefaultOutput, "Output .ics file")
	cmd.Flags().IntVarP(&opts.fallYear, "fall-year", "y", time.Now().Year(), "Year the academic year starts in")
	return cmd
}

func runConvert(cmd *cobra.Command, root *rootOptions, opts *convertOptions) error {
	cfg := config.DefaultConfig()
	if root.configPath != "" {
		loaded, err := config.Load(root.configPath)
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		cfg = loaded
	}
	if _, err := root.applyOverrides(cmd, cfg); err != nil {
		return err
	}

	flags := cmd.Flags()
	if len(opts.inputs) > 0 {
		cfg.Sources = cfg.Sources[:0]
		for i, u := range opts.inputs {
			cfg.Sources = append(cfg.Sources, config.SourceConfig{ID: fmt.Sprintf("input-%d", i+1), URL: u})
		}
	}
	if flags.Changed("title") {
		cfg.Title = opts.title
	}
	if flags.Changed("output") {
		cfg.Output = opts.output
	}
	if flags.Changed("fall-year") {
		cfg.FallYear = opts.fallYear
	}

	switch {
	case len(cfg.Sources) == 0:
		return errors.New("no input: pass at least one --input URL")
	case cfg.Output == "":
		return errors.New("no output file")
	case cfg.Title == "":
		return errors.New("no calendar title")
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	fetcher, err := pipeline.NewFetcher(cfg)
	if err != nil {
		return err
	}
	res, err := pipeline.Run(cmd.Context(), cfg, fetcher)
	if err != nil {
		return err
	}
	if len(res.Skipped) > 0 {
		appLog.Info("some lines were skipped", "count", len(res.Skipped))
	}

	if err := ics.WriteFile(cfg.Output, cfg.Title, res.Events); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %d events to %s\n", len(res.Events), cfg.Output)
	return nil
}
