// Package browser loads pages through headless Chrome for sites that need
// JavaScript or a consent click before the price table renders.
package browser

import (
	"context"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Options configures the headless browser
type Options struct {
	Headless  bool
	UserAgent string
	Timeout   time.Duration
	// WaitSelector is awaited before the HTML is captured
	WaitSelector string
}

// Fetcher returns rendered page HTML
type Fetcher struct {
	opts   Options
	logger zerolog.Logger
}

// NewFetcher creates a browser-backed page fetcher
func NewFetcher(opts Options) *Fetcher {
	if opts.Timeout == 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.WaitSelector == "" {
		opts.WaitSelector = "body"
	}
	return &Fetcher{
		opts:   opts,
		logger: log.With().Str("component", "browser_fetcher").Logger(),
	}
}

// Fetch implements models.PageFetcher. Each call runs in a fresh browser tab.
func (f *Fetcher) Fetch(ctx context.Context, url string) ([]byte, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", f.opts.Headless),
		chromedp.Flag("disable-gpu", true),
	)
	if f.opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(f.opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	browserCtx, cancelTimeout := context.WithTimeout(browserCtx, f.opts.Timeout)
	defer cancelTimeout()

	f.logger.Debug().Str("url", url).Msg("Loading page in browser")

	var html string
	err := chromedp.Run(browserCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady(f.opts.WaitSelector),
		chromedp.OuterHTML("html", &html),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "rendering %s", url)
	}

	return []byte(html), nil
}
