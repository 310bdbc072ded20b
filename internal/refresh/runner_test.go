package refresh

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/ics"
	"sheetcal/internal/model"
)

type recordingPublisher struct {
	mu     sync.Mutex
	titles []string
	events [][]model.ScheduleEvent
	zone   string
}

func (p *recordingPublisher) SetLocation(loc *time.Location) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.zone = loc.String()
}

func (p *recordingPublisher) location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.zone
}

func (p *recordingPublisher) Publish(title string, events []model.ScheduleEvent, _ time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.titles = append(p.titles, title)
	p.events = append(p.events, events)
}

func (p *recordingPublisher) published() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.titles...)
}

func oneEvent(context.Context, *config.Config) ([]model.ScheduleEvent, error) {
	return []model.ScheduleEvent{{
		UID:     "uid-1",
		Summary: "Orientation",
		AllDay:  true,
		Start:   time.Date(2024, 9, 5, 0, 0, 0, 0, time.UTC),
	}}, nil
}

func writeConfig(t *testing.T, path, title string) {
	t.Helper()
	require.NoError(t, saveConfig(path, title))
}

func saveConfig(path, title string) error {
	return saveConfigIn(path, title, "UTC")
}

func saveConfigIn(path, title, zone string) error {
	cfg := config.DefaultConfig()
	cfg.Title = title
	cfg.Timezone = zone
	cfg.Output = filepath.Join(filepath.Dir(path), "out.ics")
	cfg.Sources = []config.SourceConfig{{ID: "fall", URL: "https://example.com/fall"}}
	return config.Save(path, cfg)
}

func TestRunOnceWritesAndPublishes(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := NewRunner(path, cfg, nil, oneEvent, pub)
	require.NoError(t, r.RunOnce(context.Background()))

	assert.Equal(t, []string{"Registrar"}, pub.published())
	events, err := ics.ReadFile(cfg.Output, time.UTC)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Orientation", events[0].Summary)
}

func TestRunOnceKeepsPreviousOutputOnFailure(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	failing := func(context.Context, *config.Config) ([]model.ScheduleEvent, error) {
		return nil, errors.New("fetch fall: timeout")
	}
	r := NewRunner(path, cfg, nil, failing, pub)

	err = r.RunOnce(context.Background())
	assert.ErrorContains(t, err, "fetch fall")
	assert.Empty(t, pub.published())
	_, statErr := os.Stat(cfg.Output)
	assert.True(t, os.IsNotExist(statErr))
}

func TestReloadSwapsConfig(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Before")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := NewRunner(path, cfg, map[string]string{config.EnvFallYear: "2027"}, oneEvent, pub)

	writeConfig(t, path, "After")
	require.NoError(t, r.Reload(context.Background()))
	assert.Equal(t, "After", r.Config().Title)
	assert.Equal(t, 2027, r.Config().FallYear)
	assert.Equal(t, []string{"After"}, pub.published())

	require.NoError(t, os.WriteFile(path, []byte("sources: []\n"), 0o600))
	assert.Error(t, r.Reload(context.Background()))
	assert.Equal(t, "After", r.Config().Title)
}

func TestStartBuildsAndReloadsOnChange(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "First")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := NewRunner(path, cfg, nil, oneEvent, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 5*time.Second, 20*time.Millisecond)

	// The watcher is installed after the first build; keep rewriting the
	// file at intervals longer than the debounce until a reload lands.
	require.Eventually(t, func() bool {
		titles := pub.published()
		if len(titles) > 1 && titles[len(titles)-1] == "Second" {
			return true
		}
		_ = saveConfig(path, "Second")
		return false
	}, 10*time.Second, 4*reloadDebounce)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("runner did not stop")
	}
}

func TestStartPublishesPreviousCalendar(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	previous, err := oneEvent(context.Background(), cfg)
	require.NoError(t, err)
	require.NoError(t, ics.WriteFile(cfg.Output, "Registrar", previous))

	pub := &recordingPublisher{}
	failing := func(context.Context, *config.Config) ([]model.ScheduleEvent, error) {
		return nil, errors.New("fetch fall: timeout")
	}
	r := NewRunner("", cfg, nil, failing, pub)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()

	require.Eventually(t, func() bool { return len(pub.published()) == 1 }, 5*time.Second, 20*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	pub.mu.Lock()
	defer pub.mu.Unlock()
	assert.Equal(t, []string{"Registrar"}, pub.titles)
	require.Len(t, pub.events[0], 1)
	assert.Equal(t, "Orientation", pub.events[0][0].Summary)
	assert.True(t, pub.events[0][0].AllDay)
}

func TestStartWithoutPreviousCalendarPublishesBuildOnly(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := NewRunner("", cfg, nil, oneEvent, pub)
	r.publishPrevious()
	assert.Empty(t, pub.published())
}

func TestReloadMovesScheduleToNewTimezone(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	pub := &recordingPublisher{}
	r := NewRunner(path, cfg, nil, oneEvent, pub)
	assert.Nil(t, r.Location())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.Start(ctx) }()
	require.Eventually(t, func() bool { return r.Location() != nil }, 5*time.Second, 20*time.Millisecond)
	assert.Equal(t, "UTC", r.Location().String())

	require.NoError(t, saveConfigIn(path, "Registrar", "America/Chicago"))
	require.NoError(t, r.Reload(ctx))
	assert.Equal(t, "America/Chicago", r.Location().String())
	assert.Equal(t, "America/Chicago", pub.location())

	r.mu.RLock()
	assert.NotZero(t, r.entryID)
	assert.Equal(t, cfg.RefreshCron, r.spec)
	r.mu.RUnlock()

	cancel()
	require.NoError(t, <-done)
}

func TestReloadRejectsBadCronSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Before")
	cfg, err := config.Load(path)
	require.NoError(t, err)

	r := NewRunner(path, cfg, nil, oneEvent, nil)
	bad := config.DefaultConfig()
	bad.Title = "After"
	bad.RefreshCron = "every tuesday"
	bad.Sources = cfg.Sources
	require.NoError(t, config.Save(path, bad))

	assert.ErrorContains(t, r.Reload(context.Background()), "refresh schedule")
	assert.Equal(t, "Before", r.Config().Title)
}

func TestStartRejectsBadCronSpec(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	writeConfig(t, path, "Registrar")
	cfg, err := config.Load(path)
	require.NoError(t, err)
	cfg.RefreshCron = "every tuesday"

	r := NewRunner("", cfg, nil, oneEvent, nil)
	err = r.Start(context.Background())
	assert.ErrorContains(t, err, "refresh schedule")
}

func TestWatchFileDebouncesWrites(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "watched.yaml")
	require.NoError(t, os.WriteFile(path, []byte("a: 1\n"), 0o600))

	var calls atomic.Int32
	w, err := watchFile(path, func() { calls.Add(1) })
	require.NoError(t, err)
	t.Cleanup(func() { _ = w.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "other.yaml"), []byte("b: 2\n"), 0o600))
	for i := 0; i < 3; i++ {
		require.NoError(t, os.WriteFile(path, []byte("a: 2\n"), 0o600))
	}

	require.Eventually(t, func() bool { return calls.Load() == 1 }, 5*time.Second, 20*time.Millisecond)
	time.Sleep(3 * reloadDebounce)
	assert.Equal(t, int32(1), calls.Load())
}
