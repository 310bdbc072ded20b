// Package refresh keeps the published calendar current in serve mode.
package refresh

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"sheetcal/internal/config"
	"sheetcal/internal/ics"
	appLog "sheetcal/internal/log"
	"sheetcal/internal/model"
	"sheetcal/internal/pipeline"
)

// BuildFunc produces the event collection for cfg.
type BuildFunc func(ctx context.Context, cfg *config.Config) ([]model.ScheduleEvent, error)

// Publisher receives every successful build.
type Publisher interface {
	Publish(title string, events []model.ScheduleEvent, generatedAt time.Time)
}

// locationSetter is implemented by publishers that render times in the
// configured zone.
type locationSetter interface {
	SetLocation(loc *time.Location)
}

// Runner rebuilds the calendar on a cron schedule and when the config
// file changes. Builds never overlap.
type Runner struct {
	configPath string
	env        map[string]string
	build      BuildFunc
	pub        Publisher
	now        func() time.Time

	buildMu  sync.Mutex
	reloadMu sync.Mutex

	mu      sync.RWMutex
	cfg     *config.Config
	cron    *cron.Cron
	entryID cron.EntryID
	spec    string
}

// NewRunner returns a Runner for cfg, loaded from configPath with env
// overrides env. A nil build uses DefaultBuild.
func NewRunner(configPath string, cfg *config.Config, env map[string]string, build BuildFunc, pub Publisher) *Runner {
	if build == nil {
		build = DefaultBuild
	}
	return &Runner{
		configPath: configPath,
		env:        env,
		build:      build,
		pub:        pub,
		now:        time.Now,
		cfg:        cfg,
	}
}

// DefaultBuild fetches and assembles the configured sources.
func DefaultBuild(ctx context.Context, cfg *config.Config) ([]model.ScheduleEvent, error) {
	fetcher, err := pipeline.NewFetcher(cfg)
	if err != nil {
		return nil, err
	}
	res, err := pipeline.Run(ctx, cfg, fetcher)
	if err != nil {
		return nil, err
	}
	return res.Events, nil
}

// Config returns the active configuration.
func (r *Runner) Config() *config.Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cfg
}

// RunOnce builds the calendar, writes cfg.Output and publishes the
// result. On error nothing is written and the previous publication stays.
func (r *Runner) RunOnce(ctx context.Context) error {
	r.buildMu.Lock()
	defer r.buildMu.Unlock()

	cfg := r.Config()
	started := r.now()
	events, err := r.build(ctx, cfg)
	if err != nil {
		return fmt.Errorf("build: %w", err)
	}
	if err := ics.WriteFile(cfg.Output, cfg.Title, events); err != nil {
		return fmt.Errorf("write %s: %w", cfg.Output, err)
	}
	if r.pub != nil {
		r.pub.Publish(cfg.Title, events, r.now())
	}
	appLog.Info("calendar refreshed",
		"events", len(events),
		"output", cfg.Output,
		"elapsed", r.now().Sub(started).Round(time.Millisecond).String(),
	)
	return nil
}

// Reload re-reads the config file, applies env overrides and, when the
// result is valid, swaps it in, reschedules and rebuilds. An invalid file
// keeps the current configuration.
func (r *Runner) Reload(ctx context.Context) error {
	r.reloadMu.Lock()
	defer r.reloadMu.Unlock()

	cfg, err := config.Load(r.configPath)
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := cfg.ApplyEnv(r.env); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("reload config: %w", err)
	}
	if _, err := cron.ParseStandard(cfg.RefreshCron); err != nil {
		return fmt.Errorf("reload config: refresh schedule %q: %w", cfg.RefreshCron, err)
	}
	loc, err := cfg.Location()
	if err != nil {
		return fmt.Errorf("reload config: %w", err)
	}

	r.mu.Lock()
	r.cfg = cfg
	r.mu.Unlock()
	appLog.SetLevel(appLog.ParseLevel(cfg.LogLevel))
	appLog.Info("config reloaded", "path", r.configPath, "sources", len(cfg.Sources), "fall_year", cfg.FallYear)

	r.relocate(loc)
	if err := r.schedule(ctx); err != nil {
		return err
	}
	return r.RunOnce(ctx)
}

// Start publishes the calendar left by an earlier run, builds once, then
// schedules rebuilds and watches the config file until ctx is cancelled.
// A failing initial build is logged; the schedule still starts.
func (r *Runner) Start(ctx context.Context) error {
	r.publishPrevious()
	if err := r.RunOnce(ctx); err != nil {
		appLog.Error("initial build failed", err)
	}

	loc, err := r.Config().Location()
	if err != nil {
		return err
	}
	r.mu.Lock()
	r.cron = cron.New(cron.WithLocation(loc))
	r.mu.Unlock()
	if err := r.schedule(ctx); err != nil {
		return err
	}
	r.currentCron().Start()
	defer func() {
		stopCtx := r.currentCron().Stop()
		<-stopCtx.Done()
	}()

	if r.configPath != "" {
		w, err := watchFile(r.configPath, func() {
			if err := r.Reload(ctx); err != nil {
				appLog.Error("config reload failed", err, "path", r.configPath)
			}
		})
		if err != nil {
			appLog.Error("config watch disabled", err, "path", r.configPath)
		} else {
			defer w.Close()
		}
	}

	<-ctx.Done()
	return nil
}

// publishPrevious hands the existing output file to the publisher so a
// restart keeps serving the last good calendar while the first build runs.
func (r *Runner) publishPrevious() {
	cfg := r.Config()
	if r.pub == nil || cfg.Output == "" {
		return
	}
	info, err := os.Stat(cfg.Output)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			appLog.Error("previous calendar unreadable", err, "output", cfg.Output)
		}
		return
	}
	loc, err := cfg.Location()
	if err != nil {
		return
	}
	events, err := ics.ReadFile(cfg.Output, loc)
	if err != nil {
		appLog.Error("previous calendar unreadable", err, "output", cfg.Output)
		return
	}
	r.pub.Publish(cfg.Title, events, info.ModTime())
	appLog.Info("previous calendar published", "events", len(events), "output", cfg.Output)
}

// relocate moves the publisher and the cron schedule to loc. The cron is
// replaced only when its zone differs; the caller reschedules the job.
func (r *Runner) relocate(loc *time.Location) {
	if ls, ok := r.pub.(locationSetter); ok {
		ls.SetLocation(loc)
	}

	r.mu.Lock()
	old := r.cron
	if old == nil || old.Location().String() == loc.String() {
		r.mu.Unlock()
		return
	}
	next := cron.New(cron.WithLocation(loc))
	r.cron = next
	r.entryID, r.spec = 0, ""
	r.mu.Unlock()

	old.Stop()
	next.Start()
	appLog.Info("refresh timezone changed", "from", old.Location().String(), "to", loc.String())
}

func (r *Runner) currentCron() *cron.Cron {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.cron
}

// Location returns the zone the refresh schedule runs in, or nil before
// Start.
func (r *Runner) Location() *time.Location {
	if c := r.currentCron(); c != nil {
		return c.Location()
	}
	return nil
}

// schedule registers the refresh job for the current cron spec, replacing
// the previous one when the spec changed.
func (r *Runner) schedule(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.cron == nil {
		return nil
	}
	spec := r.cfg.RefreshCron
	if spec == r.spec && r.entryID != 0 {
		return nil
	}

	id, err := r.cron.AddFunc(spec, func() {
		if err := r.RunOnce(ctx); err != nil && !errors.Is(err, context.Canceled) {
			appLog.Error("scheduled build failed", err)
		}
	})
	if err != nil {
		return fmt.Errorf("refresh schedule %q: %w", spec, err)
	}
	if r.entryID != 0 {
		r.cron.Remove(r.entryID)
	}
	r.entryID, r.spec = id, spec
	appLog.Info("refresh scheduled", "cron", spec)
	return nil
}
