package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"sheetcal/internal/config"
	"sheetcal/internal/schedule"
	"sheetcal/internal/sheet"
)

type fakeFetcher struct {
	pages map[string]string
	calls []string
}

func (f *fakeFetcher) FetchOne(_ context.Context, src sheet.Source) (sheet.FetchResult, error) {
	f.calls = append(f.calls, src.ID)
	body, ok := f.pages[src.URL]
	if !ok {
		return sheet.FetchResult{}, errors.New("connection refused")
	}
	return sheet.FetchResult{Source: src, Body: []byte(body)}, nil
}

const fallPage = `<table>
<tr><td>December 2024</td></tr>
<tr><td>Dec 20 - Jan 5 - Winter Break</td></tr>
<tr><td>Sept 5 - Orientation - 9:00am</td></tr>
<tr><td>Sept 5 - Orientation - 9:00am</td></tr>
<tr><td>Feb 30 - Impossible Day</td></tr>
</table>`

const springPage = `<table>
<tr><td>Aug 26 - Classes Begin</td></tr>
</table>`

func TestBuildMergesDocumentsInStartOrder(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{
		"https://fall": fallPage,
		"https://late": springPage,
	}}
	synth := schedule.NewSynthesizer(2024, time.UTC)

	res, err := Build(context.Background(), f, []sheet.Source{
		{ID: "fall", URL: "https://fall"},
		{ID: "late", URL: "https://late"},
	}, synth)
	require.NoError(t, err)

	require.Len(t, res.Events, 3)
	assert.Equal(t, "Classes Begin", res.Events[0].Summary)
	assert.Equal(t, "Orientation", res.Events[1].Summary)
	assert.Equal(t, "Winter Break", res.Events[2].Summary)
	for i := 1; i < len(res.Events); i++ {
		assert.False(t, res.Events[i].Start.Before(res.Events[i-1].Start))
	}

	require.Len(t, res.Skipped, 1)
	assert.ErrorIs(t, res.Skipped[0], schedule.ErrInvalidDate)
	assert.Equal(t, []string{"fall", "late"}, f.calls)
}

func TestBuildStopsOnFetchError(t *testing.T) {
	f := &fakeFetcher{pages: map[string]string{"https://fall": fallPage}}

	_, err := Build(context.Background(), f, []sheet.Source{
		{ID: "missing", URL: "https://missing"},
		{ID: "fall", URL: "https://fall"},
	}, schedule.NewSynthesizer(2024, time.UTC))
	require.Error(t, err)
	assert.ErrorContains(t, err, "fetch missing")
	assert.ErrorContains(t, err, "connection refused")
	assert.Equal(t, []string{"missing"}, f.calls)
}

func TestBuildHonoursCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	f := &fakeFetcher{}
	_, err := Build(ctx, f, []sheet.Source{{ID: "a", URL: "https://a"}}, schedule.NewSynthesizer(2024, time.UTC))
	assert.ErrorIs(t, err, context.Canceled)
	assert.Empty(t, f.calls)
}

func TestRunUsesConfiguredSources(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.FallYear = 2030
	cfg.Timezone = "UTC"
	cfg.Sources = []config.SourceConfig{{ID: "late", Name: "Late", URL: "https://late"}}

	f := &fakeFetcher{pages: map[string]string{"https://late": springPage}}
	res, err := Run(context.Background(), cfg, f)
	require.NoError(t, err)
	require.Len(t, res.Events, 1)
	assert.Equal(t, time.Date(2030, 8, 26, 0, 0, 0, 0, time.UTC), res.Events[0].Start)
}

func TestNewFetcherByMode(t *testing.T) {
	cfg := config.DefaultConfig()

	f, err := NewFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sheet.HTTPFetcher{}, f)

	cfg.Fetch.Mode = config.FetchModeBrowser
	f, err = NewFetcher(cfg)
	require.NoError(t, err)
	assert.IsType(t, &sheet.BrowserFetcher{}, f)

	cfg.Fetch.Mode = "ftp"
	_, err = NewFetcher(cfg)
	assert.Error(t, err)
}
