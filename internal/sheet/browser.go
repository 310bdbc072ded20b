package sheet

import (
	"context"
	"fmt"
	"time"

	"github.com/chromedp/chromedp"

	appLog "sheetcal/internal/log"
)

const (
	defaultBrowserTimeout = 30 * time.Second
	defaultWaitSelector   = "table"
)

// BrowserFetcher loads a page in headless Chromium and returns the
// rendered document. Use it for sheets whose tables are filled in by
// script.
type BrowserFetcher struct {
	// Timeout bounds one fetch. Zero means 30s.
	Timeout time.Duration
	// WaitSelector must be ready before the HTML is read. Empty means
	// "table".
	WaitSelector string
}

// FetchOne navigates to src.URL, waits for WaitSelector and returns the
// outer HTML of the document.
func (b *BrowserFetcher) FetchOne(parentCtx context.Context, src Source) (FetchResult, error) {
	if src.URL == "" {
		return FetchResult{}, fmt.Errorf("browser fetch: URL is required")
	}
	timeout := b.Timeout
	if timeout <= 0 {
		timeout = defaultBrowserTimeout
	}
	sel := b.WaitSelector
	if sel == "" {
		sel = defaultWaitSelector
	}

	ctx, cancel := chromedp.NewContext(parentCtx)
	defer cancel()
	ctx, timeoutCancel := context.WithTimeout(ctx, timeout)
	defer timeoutCancel()

	appLog.Info("browser fetch start", "id", src.ID, "url", redactURL(src.URL))

	var doc string
	tasks := chromedp.Tasks{
		chromedp.Navigate(src.URL),
		chromedp.WaitReady(sel, chromedp.ByQuery),
		chromedp.OuterHTML("html", &doc, chromedp.ByQuery),
	}
	if err := chromedp.Run(ctx, tasks); err != nil {
		return FetchResult{}, fmt.Errorf("browser fetch: chromedp run failed: %w", err)
	}

	appLog.Info("browser fetch success", "id", src.ID, "url", redactURL(src.URL), "bytes", len(doc))
	return FetchResult{Source: src, Body: []byte(doc)}, nil
}
