package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, DefaultTitle, cfg.Title)
	assert.Equal(t, DefaultOutput, cfg.Output)
	assert.Equal(t, FetchModeHTTP, cfg.Fetch.Mode)
	assert.Equal(t, time.Now().Year(), cfg.FallYear)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}

func TestLoadNormalizesPartialFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
fall_year: 2024
timezone: America/Chicago
sources:
  - url: https://docs.google.com/spreadsheets/d/e/one/pubhtml
  - id: spring
    url: https://docs.google.com/spreadsheets/d/e/two/pubhtml
fetch:
  mode: carrier-pigeon
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 2024, cfg.FallYear)
	assert.Equal(t, "sheet-1", cfg.Sources[0].ID)
	assert.Equal(t, "spring", cfg.Sources[1].ID)
	assert.Equal(t, FetchModeHTTP, cfg.Fetch.Mode)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout())
	assert.Equal(t, DefaultRefresh, cfg.RefreshCron)
	require.NoError(t, cfg.Validate())

	loc, err := cfg.Location()
	require.NoError(t, err)
	assert.Equal(t, "America/Chicago", loc.String())
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("sources: [unterminated"), 0o600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	cfg := DefaultConfig()
	cfg.Sources = append(cfg.Sources, SourceConfig{ID: "fall", URL: "https://example.com/fall"})
	cfg.BasicAuth = &BasicAuthConfig{Username: "u", Password: "p"}
	require.NoError(t, Save(path, cfg))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.ErrorContains(t, cfg.Validate(), "no sources")

	cfg.Sources = []SourceConfig{{ID: "x"}}
	assert.ErrorContains(t, cfg.Validate(), "url is empty")

	cfg.Sources[0].URL = "https://example.com"
	cfg.Timezone = "Mars/Olympus_Mons"
	assert.ErrorContains(t, cfg.Validate(), "timezone")
}

func TestApplyEnvOverrides(t *testing.T) {
	cfg := DefaultConfig()
	require.NoError(t, cfg.ApplyEnv(map[string]string{
		EnvFallYear: "2031",
		EnvLogLevel: "debug",
		EnvTimezone: "UTC",
		EnvOutput:   "out/cal.ics",
	}))
	assert.Equal(t, 2031, cfg.FallYear)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, "UTC", cfg.Timezone)
	assert.Equal(t, "out/cal.ics", cfg.Output)

	assert.Error(t, cfg.ApplyEnv(map[string]string{EnvFallYear: "soon"}))
}

func TestReadEnvMergesFileAndProcess(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	require.NoError(t, os.WriteFile(envFile, []byte("SHEETCAL_FALL_YEAR=2022\nSHEETCAL_OUTPUT=file.ics\n"), 0o600))
	t.Setenv(EnvOutput, "process.ics")

	env, err := ReadEnv(envFile)
	require.NoError(t, err)
	assert.Equal(t, "2022", env[EnvFallYear])
	assert.Equal(t, "process.ics", env[EnvOutput])

	env, err = ReadEnv(filepath.Join(t.TempDir(), "missing.env"))
	require.NoError(t, err)
	assert.Equal(t, "process.ics", env[EnvOutput])
}
