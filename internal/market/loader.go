// Package market loads daily price history for a symbol, serving it from the
// local cache and downloading only the missing tail.
package market

import (
	"context"
	"sync"
	"time"

	"github.com/Alias1177/FinTrends/internal/storage"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"
)

// ErrUnknownSymbol is returned when a symbol is neither registered nor found upstream
var ErrUnknownSymbol = errors.New("unknown symbol")

// Cache is the local bar and symbol store
type Cache interface {
	HasBars(symbol string) bool
	LoadBars(symbol string) (models.Series, error)
	SaveBars(symbol string, series models.Series) error
	LookupSymbol(symbol string) (models.SymbolInfo, bool, error)
	AddSymbol(info models.SymbolInfo) error
}

// Archive is a secondary bar store consulted when the cache has no file for
// a symbol, such as the Postgres copy written by earlier runs
type Archive interface {
	LoadBars(ctx context.Context, symbol string) (models.Series, error)
}

// Loader coordinates the cache with the upstream source
type Loader struct {
	history     models.HistorySource
	symbols     models.SymbolSource
	cache       Cache
	archive     Archive
	start       time.Time
	end         time.Time
	concurrency int
	now         func() time.Time
	logger      zerolog.Logger
}

// LoaderOptions holds the date window and parallelism of a loader
type LoaderOptions struct {
	Start       time.Time
	End         time.Time // zero means today
	Concurrency int
	Archive     Archive // nil disables the archive fallback
}

// NewLoader creates a loader
func NewLoader(history models.HistorySource, symbols models.SymbolSource, cache Cache, opts LoaderOptions) *Loader {
	if opts.Start.IsZero() {
		opts.Start, _ = models.ParseDate(models.DefaultStartDate)
	}
	if opts.Concurrency < 1 {
		opts.Concurrency = 1
	}
	return &Loader{
		history:     history,
		symbols:     symbols,
		cache:       cache,
		archive:     opts.Archive,
		start:       opts.Start,
		end:         opts.End,
		concurrency: opts.Concurrency,
		now:         time.Now,
		logger:      log.With().Str("component", "market_loader").Logger(),
	}
}

func (l *Loader) endDate() time.Time {
	if l.end.IsZero() {
		return models.TruncateDay(l.now())
	}
	return l.end
}

// Load returns the full history of a symbol, updating the cache when stale.
// A symbol missing from the cache is restored from the archive when possible
// and downloaded otherwise.
func (l *Loader) Load(ctx context.Context, symbol string) (models.Series, error) {
	symbol, err := models.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}
	if l.cache.HasBars(symbol) || l.restore(ctx, symbol) {
		return l.Update(ctx, symbol)
	}
	return l.Download(ctx, symbol)
}

// restore copies archived bars into the cache and reports whether any were found
func (l *Loader) restore(ctx context.Context, symbol string) bool {
	if l.archive == nil {
		return false
	}
	series, err := l.archive.LoadBars(ctx, symbol)
	if err != nil {
		l.logger.Warn().Err(err).Str("symbol", symbol).Msg("Archive lookup failed")
		return false
	}
	if len(series) == 0 {
		return false
	}
	if err := l.cache.SaveBars(symbol, series); err != nil {
		l.logger.Warn().Err(err).Str("symbol", symbol).Msg("Failed to cache archived bars")
		return false
	}
	l.logger.Info().Str("symbol", symbol).Int("bars", len(series)).Msg("Restored history from archive")
	return true
}

// CheckSymbol reports whether a symbol is known, registering it after a
// successful upstream lookup
func (l *Loader) CheckSymbol(ctx context.Context, symbol string) (bool, error) {
	symbol, err := models.ParseSymbol(symbol)
	if err != nil {
		return false, err
	}

	_, ok, err := l.cache.LookupSymbol(symbol)
	if err != nil {
		return false, err
	}
	if ok {
		return true, nil
	}

	about, found, err := l.symbols.LookupSymbol(ctx, symbol)
	if err != nil {
		return false, err
	}
	if !found {
		return false, nil
	}

	l.logger.Info().Str("symbol", symbol).Str("about", about).Msg("Registered new symbol")
	if err := l.cache.AddSymbol(models.SymbolInfo{Symbol: symbol, About: about}); err != nil {
		return false, err
	}
	return true, nil
}

// Download fetches the configured window for a symbol and replaces its cache
func (l *Loader) Download(ctx context.Context, symbol string) (models.Series, error) {
	symbol, err := models.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}

	ok, err := l.CheckSymbol(ctx, symbol)
	if err != nil {
		return nil, errors.Wrapf(err, "checking symbol %s", symbol)
	}
	if !ok {
		return nil, errors.Wrapf(ErrUnknownSymbol, "%s", symbol)
	}

	series, err := l.history.FetchHistory(ctx, symbol, l.start, l.endDate())
	if err != nil {
		return nil, err
	}

	if err := l.cache.SaveBars(symbol, series); err != nil {
		return nil, err
	}

	l.logger.Info().Str("symbol", symbol).Int("bars", len(series)).Msg("Downloaded history")
	return series, nil
}

// Update appends bars newer than the cache, if any
func (l *Loader) Update(ctx context.Context, symbol string) (models.Series, error) {
	symbol, err := models.ParseSymbol(symbol)
	if err != nil {
		return nil, err
	}

	cached, err := l.cache.LoadBars(symbol)
	if err != nil {
		return nil, err
	}

	last := cached.LastDate()
	end := l.endDate()
	if !last.IsZero() && !last.Before(models.LastTradingDay(end)) {
		l.logger.Debug().Str("symbol", symbol).Time("last", last).Msg("Cache is current")
		return cached, nil
	}

	start := last
	if start.IsZero() {
		start = l.start
	}

	fresh, err := l.history.FetchHistory(ctx, symbol, start, end)
	if errors.Is(err, models.ErrEmptyRange) {
		return cached, nil
	}
	if err != nil {
		return nil, err
	}

	merged := cached.Merge(fresh)
	if err := l.cache.SaveBars(symbol, merged); err != nil {
		return nil, err
	}

	l.logger.Info().
		Str("symbol", symbol).
		Int("new_bars", len(merged)-len(cached)).
		Int("bars", len(merged)).
		Msg("Updated history")
	return merged, nil
}

// LoadAll loads several symbols in parallel, skipping blanks and repeats. A
// failing symbol is reported in failures and does not stop the others; err is
// set only when ctx is cancelled.
func (l *Loader) LoadAll(ctx context.Context, symbols []string) (loaded map[string]models.Series, failures map[string]error, err error) {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(l.concurrency)

	var mu sync.Mutex
	loaded = make(map[string]models.Series, len(symbols))
	failures = make(map[string]error)

	seen := make(map[string]bool, len(symbols))
	for _, symbol := range symbols {
		symbol := models.NormalizeSymbol(symbol)
		if symbol == "" || seen[symbol] {
			continue
		}
		seen[symbol] = true

		g.Go(func() error {
			series, err := l.Load(gctx, symbol)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				l.logger.Error().Err(err).Str("symbol", symbol).Msg("Failed to load symbol")
				mu.Lock()
				failures[symbol] = errors.Wrapf(err, "loading %s", symbol)
				mu.Unlock()
				return nil
			}
			mu.Lock()
			loaded[symbol] = series
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	return loaded, failures, nil
}

var _ Cache = (*storage.Store)(nil)
