package market

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/internal/storage"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fetchCall struct {
	symbol     string
	start, end time.Time
}

type fakeSource struct {
	mu     sync.Mutex
	bars   map[string]models.Series
	about  map[string]string
	calls  []fetchCall
	lookup int
}

func (f *fakeSource) FetchHistory(_ context.Context, symbol string, start, end time.Time) (models.Series, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, fetchCall{symbol: symbol, start: start, end: end})
	if !start.Before(models.LastTradingDay(end)) {
		return nil, models.ErrEmptyRange
	}
	return f.bars[symbol].Between(start, end), nil
}

func (f *fakeSource) LookupSymbol(_ context.Context, symbol string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.lookup++
	about, ok := f.about[symbol]
	return about, ok, nil
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func weekdays(from, to time.Time, base float64) models.Series {
	var s models.Series
	price := base
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if d.Weekday() == time.Saturday || d.Weekday() == time.Sunday {
			continue
		}
		price++
		s = append(s, models.Bar{Date: d, Open: price, High: price + 1, Low: price - 1, Close: price, AdjClose: price, Volume: 1000})
	}
	return s
}

func newTestLoader(t *testing.T, source *fakeSource, today time.Time) (*Loader, *storage.Store) {
	t.Helper()
	store := storage.NewStore(t.TempDir())
	loader := NewLoader(source, source, store, LoaderOptions{
		Start:       date(2024, 1, 1),
		Concurrency: 2,
	})
	loader.now = func() time.Time { return today }
	return loader, store
}

func TestLoadDownloadsUnknownCache(t *testing.T) {
	source := &fakeSource{
		bars:  map[string]models.Series{"aapl": weekdays(date(2024, 1, 1), date(2024, 1, 31), 100)},
		about: map[string]string{"aapl": "Apple Inc. (AAPL)"},
	}
	loader, store := newTestLoader(t, source, date(2024, 1, 20))

	series, err := loader.Load(context.Background(), "AAPL")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 19), series.LastDate())
	assert.True(t, store.HasBars("aapl"))

	info, ok, err := store.LookupSymbol("aapl")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "Apple Inc. (AAPL)", info.About)
}

func TestLoadRejectsUnknownSymbol(t *testing.T) {
	source := &fakeSource{about: map[string]string{}}
	loader, store := newTestLoader(t, source, date(2024, 1, 20))

	_, err := loader.Load(context.Background(), "zzzz")
	assert.True(t, errors.Is(err, ErrUnknownSymbol))
	assert.False(t, store.HasBars("zzzz"))
	assert.Empty(t, source.calls)
}

func TestCheckSymbolUsesRegistryFirst(t *testing.T) {
	source := &fakeSource{about: map[string]string{}}
	loader, store := newTestLoader(t, source, date(2024, 1, 20))
	require.NoError(t, store.AddSymbol(models.SymbolInfo{Symbol: "msft", About: "Microsoft"}))

	ok, err := loader.CheckSymbol(context.Background(), "MSFT")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Zero(t, source.lookup)
}

func TestUpdateAppendsNewBars(t *testing.T) {
	all := weekdays(date(2024, 1, 1), date(2024, 2, 29), 100)
	source := &fakeSource{bars: map[string]models.Series{"aapl": all}}
	loader, store := newTestLoader(t, source, date(2024, 2, 10))

	require.NoError(t, store.SaveBars("aapl", all.Between(date(2024, 1, 1), date(2024, 1, 31))))

	series, err := loader.Load(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 2, 9), series.LastDate())
	assert.Len(t, series, len(all.Between(date(2024, 1, 1), date(2024, 2, 9))))

	require.Len(t, source.calls, 1)
	assert.Equal(t, date(2024, 1, 31), source.calls[0].start)

	cached, err := store.LoadBars("aapl")
	require.NoError(t, err)
	assert.Equal(t, series, cached)
}

func TestUpdateSkipsFetchWhenCurrent(t *testing.T) {
	all := weekdays(date(2024, 1, 1), date(2024, 1, 12), 100)
	source := &fakeSource{bars: map[string]models.Series{"aapl": all}}
	// Sunday: the last trading day is Friday the 12th, already cached
	loader, store := newTestLoader(t, source, date(2024, 1, 14))
	require.NoError(t, store.SaveBars("aapl", all))

	series, err := loader.Load(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Len(t, series, len(all))
	assert.Empty(t, source.calls)
}

func TestLoadAll(t *testing.T) {
	source := &fakeSource{
		bars: map[string]models.Series{
			"aapl": weekdays(date(2024, 1, 1), date(2024, 1, 31), 100),
			"msft": weekdays(date(2024, 1, 1), date(2024, 1, 31), 300),
		},
		about: map[string]string{"aapl": "Apple", "msft": "Microsoft"},
	}
	loader, _ := newTestLoader(t, source, date(2024, 1, 31))

	loaded, failures, err := loader.LoadAll(context.Background(), []string{"AAPL", "msft", " aapl ", ""})
	require.NoError(t, err)
	require.Len(t, loaded, 2)
	assert.Empty(t, failures)
	assert.NotEmpty(t, loaded["aapl"])
	assert.NotEmpty(t, loaded["msft"])

	loaded, failures, err = loader.LoadAll(context.Background(), []string{"aapl", "nope"})
	require.NoError(t, err)
	assert.Len(t, loaded, 1)
	require.Contains(t, failures, "nope")
	assert.True(t, errors.Is(failures["nope"], ErrUnknownSymbol))
}

func TestLoadAllCancelled(t *testing.T) {
	source := &fakeSource{about: map[string]string{}}
	loader, _ := newTestLoader(t, source, date(2024, 1, 31))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, _, err := loader.LoadAll(ctx, []string{"aapl"})
	assert.True(t, errors.Is(err, context.Canceled))
}

func TestLoadRejectsInvalidSymbol(t *testing.T) {
	source := &fakeSource{about: map[string]string{}}
	loader, store := newTestLoader(t, source, date(2024, 1, 20))

	for _, symbol := range []string{"../../etc/x", "a/b", ""} {
		_, err := loader.Load(context.Background(), symbol)
		assert.True(t, errors.Is(err, models.ErrInvalidSymbol), symbol)

		_, err = loader.CheckSymbol(context.Background(), symbol)
		assert.True(t, errors.Is(err, models.ErrInvalidSymbol), symbol)
	}
	assert.False(t, store.HasBars("../../etc/x"))
	assert.Empty(t, source.calls)
	assert.Zero(t, source.lookup)
}

type fakeArchive struct {
	bars  map[string]models.Series
	err   error
	calls int
}

func (f *fakeArchive) LoadBars(_ context.Context, symbol string) (models.Series, error) {
	f.calls++
	return f.bars[symbol], f.err
}

func TestLoadRestoresFromArchive(t *testing.T) {
	all := weekdays(date(2024, 1, 1), date(2024, 2, 29), 100)
	source := &fakeSource{bars: map[string]models.Series{"aapl": all}}
	archive := &fakeArchive{bars: map[string]models.Series{
		"aapl": all.Between(date(2024, 1, 1), date(2024, 1, 31)),
	}}

	store := storage.NewStore(t.TempDir())
	loader := NewLoader(source, source, store, LoaderOptions{Start: date(2024, 1, 1), Archive: archive})
	loader.now = func() time.Time { return date(2024, 2, 10) }

	series, err := loader.Load(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 2, 9), series.LastDate())
	assert.Equal(t, 1, archive.calls)

	// Only the tail after the archived history is fetched, without a symbol lookup
	require.Len(t, source.calls, 1)
	assert.Equal(t, date(2024, 1, 31), source.calls[0].start)
	assert.Zero(t, source.lookup)
	assert.True(t, store.HasBars("aapl"))
}

func TestLoadFallsBackToDownloadWhenArchiveFails(t *testing.T) {
	source := &fakeSource{
		bars:  map[string]models.Series{"aapl": weekdays(date(2024, 1, 1), date(2024, 1, 31), 100)},
		about: map[string]string{"aapl": "Apple"},
	}
	archive := &fakeArchive{err: errors.New("connection refused")}

	store := storage.NewStore(t.TempDir())
	loader := NewLoader(source, source, store, LoaderOptions{Start: date(2024, 1, 1), Archive: archive})
	loader.now = func() time.Time { return date(2024, 1, 20) }

	series, err := loader.Load(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, date(2024, 1, 19), series.LastDate())
	assert.Equal(t, 1, source.lookup)
}
