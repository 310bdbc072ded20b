package pipeline

import (
	"context"
	"fmt"

	"sheetcal/internal/config"
	"sheetcal/internal/schedule"
	"sheetcal/internal/sheet"
)

// NewFetcher returns the fetcher selected by cfg.Fetch.Mode.
func NewFetcher(cfg *config.Config) (sheet.Fetcher, error) {
	switch cfg.Fetch.Mode {
	case "", config.FetchModeHTTP:
		return sheet.NewHTTPFetcher(cfg.Fetch.CacheDir, cfg.FetchTimeout()), nil
	case config.FetchModeBrowser:
		return &sheet.BrowserFetcher{Timeout: cfg.FetchTimeout()}, nil
	default:
		return nil, fmt.Errorf("unknown fetch mode %q", cfg.Fetch.Mode)
	}
}

// Sources converts the configured sources.
func Sources(cfg *config.Config) []sheet.Source {
	out := make([]sheet.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, sheet.Source{ID: s.ID, Name: s.Name, URL: s.URL})
	}
	return out
}

// Run builds the calendar described by cfg using fetcher.
func Run(ctx context.Context, cfg *config.Config, fetcher sheet.Fetcher) (Result, error) {
	loc, err := cfg.Location()
	if err != nil {
		return Result{}, err
	}
	synth := schedule.NewSynthesizer(cfg.FallYear, loc)
	return Build(ctx, fetcher, Sources(cfg), synth)
}
