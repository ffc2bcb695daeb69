package yahoo

import (
	"bytes"
	"context"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrEmptyRange is returned when the requested start is not before the end
var ErrEmptyRange = models.ErrEmptyRange

// Client scrapes the Yahoo Finance quote and history pages
type Client struct {
	baseURL  string
	fetcher  models.PageFetcher
	snapshot string
	now      func() time.Time
	logger   zerolog.Logger
}

// ClientOptions holds options for creating a new Yahoo client
type ClientOptions struct {
	BaseURL string
	// SnapshotDir, when set, receives the last downloaded page as index.html
	SnapshotDir string
}

// NewClient creates a new Yahoo Finance client on top of any page fetcher
func NewClient(fetcher models.PageFetcher, options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = "https://finance.yahoo.com"
	}

	return &Client{
		baseURL:  strings.TrimRight(options.BaseURL, "/"),
		fetcher:  fetcher,
		snapshot: options.SnapshotDir,
		now:      time.Now,
		logger:   log.With().Str("component", "yahoo_client").Logger(),
	}
}

// QuoteURL returns the quote page of a symbol
func QuoteURL(baseURL, symbol string) string {
	return fmt.Sprintf("%s/quote/%s/", baseURL, url.PathEscape(strings.ToUpper(symbol)))
}

// HistoryURL returns the history page of a symbol between two unix timestamps
func HistoryURL(baseURL, symbol string, period1, period2 int64) string {
	return fmt.Sprintf("%s/quote/%s/history/?period1=%d&period2=%d",
		baseURL, url.PathEscape(strings.ToUpper(symbol)), period1, period2)
}

// FetchHistory downloads daily bars between start and end.
// The end is moved back to the last trading day; a zero end means today.
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (models.Series, error) {
	if start.IsZero() {
		start, _ = models.ParseDate(models.DefaultStartDate)
	}
	if end.IsZero() {
		end = c.now()
	}
	end = models.LastTradingDay(end)

	period1 := models.ToUnix(start)
	period2 := models.ToUnix(end)
	if period1 >= period2 {
		return nil, ErrEmptyRange
	}

	pageURL := HistoryURL(c.baseURL, symbol, period1, period2)
	c.logger.Debug().Str("symbol", symbol).Str("url", pageURL).Msg("Fetching history")

	body, err := c.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching history for %s", symbol)
	}
	c.saveSnapshot(body)

	series, err := ParseHistory(bytes.NewReader(body))
	if err != nil {
		return nil, errors.Wrapf(err, "parsing history for %s", symbol)
	}

	c.logger.Debug().Str("symbol", symbol).Int("count", len(series)).Msg("Fetched history")
	return series, nil
}

// LookupSymbol reports whether the symbol exists and returns its description
func (c *Client) LookupSymbol(ctx context.Context, symbol string) (string, bool, error) {
	body, err := c.fetcher.Fetch(ctx, QuoteURL(c.baseURL, symbol))
	if err != nil {
		return "", false, errors.Wrapf(err, "fetching quote page for %s", symbol)
	}
	c.saveSnapshot(body)

	about, found, err := ParseAbout(bytes.NewReader(body))
	if err != nil {
		return "", false, errors.Wrapf(err, "parsing quote page for %s", symbol)
	}
	return about, found, nil
}

func (c *Client) saveSnapshot(body []byte) {
	if c.snapshot == "" {
		return
	}
	if err := os.MkdirAll(c.snapshot, 0o755); err != nil {
		c.logger.Warn().Err(err).Msg("Cannot create snapshot directory")
		return
	}
	if err := os.WriteFile(filepath.Join(c.snapshot, "index.html"), body, 0o644); err != nil {
		c.logger.Warn().Err(err).Msg("Cannot write page snapshot")
	}
}
