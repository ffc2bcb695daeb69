package models

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
)

// ErrEmptyRange is returned by a HistorySource when the requested start is
// not before the end. Loaders treat it as "nothing new" rather than a failure.
var ErrEmptyRange = errors.New("start date is not before end date")

// HistorySource fetches daily bars for a date range
type HistorySource interface {
	FetchHistory(ctx context.Context, symbol string, start, end time.Time) (Series, error)
}

// SymbolSource checks whether a ticker exists upstream and returns its description
type SymbolSource interface {
	LookupSymbol(ctx context.Context, symbol string) (about string, found bool, err error)
}

// PageFetcher downloads the raw body of a web page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}
