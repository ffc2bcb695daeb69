// Package storage keeps the local CSV cache: one file of daily bars per
// symbol plus a registry of known symbols.
package storage

import (
	"encoding/csv"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"sync"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// ErrNotCached is returned when a symbol has no cache file yet
var ErrNotCached = errors.New("symbol not cached")

// SymbolsFile is the registry file name inside the data directory
const SymbolsFile = "symbols.csv"

var barHeader = []string{
	models.ColumnDate, models.ColumnOpen, models.ColumnHigh, models.ColumnLow,
	models.ColumnClose, models.ColumnAdjClose, models.ColumnVolume,
}

var symbolHeader = []string{"symbol", "about"}

// Store reads and writes the CSV cache
type Store struct {
	dir    string
	mu     sync.Mutex // guards the registry file
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir
func NewStore(dir string) *Store {
	return &Store{
		dir:    dir,
		logger: log.With().Str("component", "csv_store").Logger(),
	}
}

// Dir returns the cache directory
func (s *Store) Dir() string {
	return s.dir
}

// BarsPath returns the cache file of a symbol
func (s *Store) BarsPath(symbol string) string {
	return filepath.Join(s.dir, models.NormalizeSymbol(symbol)+".csv")
}

// HasBars reports whether a cache file exists for the symbol
func (s *Store) HasBars(symbol string) bool {
	_, err := os.Stat(s.BarsPath(symbol))
	return err == nil
}

// LoadBars reads the cached bars of a symbol
func (s *Store) LoadBars(symbol string) (models.Series, error) {
	f, err := os.Open(s.BarsPath(symbol))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotCached
		}
		return nil, errors.Wrapf(err, "opening cache for %s", symbol)
	}
	defer f.Close()

	series, err := ReadBars(f)
	if err != nil {
		return nil, errors.Wrapf(err, "reading cache for %s", symbol)
	}
	return series, nil
}

// SaveBars replaces the cache file of a symbol
func (s *Store) SaveBars(symbol string, series models.Series) error {
	path := s.BarsPath(symbol)
	err := writeAtomic(path, func(w io.Writer) error {
		return WriteBars(w, series)
	})
	if err != nil {
		return errors.Wrapf(err, "saving cache for %s", symbol)
	}

	s.logger.Debug().Str("symbol", symbol).Int("count", len(series)).Str("path", path).Msg("Saved bars")
	return nil
}

// ReadBars decodes bars in cache format
func ReadBars(r io.Reader) (models.Series, error) {
	reader := csv.NewReader(r)
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "decoding csv")
	}
	if len(records) == 0 {
		return models.Series{}, nil
	}

	series := make(models.Series, 0, len(records)-1)
	for i, rec := range records[1:] {
		if len(rec) < len(barHeader) {
			return nil, errors.Newf("line %d: expected %d fields, got %d", i+2, len(barHeader), len(rec))
		}
		bar, err := decodeBar(rec)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", i+2)
		}
		series = append(series, bar)
	}
	return series.Dedupe(), nil
}

// WriteBars encodes bars in cache format, oldest first
func WriteBars(w io.Writer, series models.Series) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(barHeader); err != nil {
		return err
	}
	for _, bar := range series.Dedupe() {
		if err := writer.Write(encodeBar(bar)); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}

func encodeBar(bar models.Bar) []string {
	return []string{
		bar.Date.Format(models.DateLayout),
		strconv.FormatFloat(bar.Open, 'f', -1, 64),
		strconv.FormatFloat(bar.High, 'f', -1, 64),
		strconv.FormatFloat(bar.Low, 'f', -1, 64),
		strconv.FormatFloat(bar.Close, 'f', -1, 64),
		strconv.FormatFloat(bar.AdjClose, 'f', -1, 64),
		strconv.FormatInt(bar.Volume, 10),
	}
}

func decodeBar(rec []string) (models.Bar, error) {
	date, err := models.ParseDate(rec[0])
	if err != nil {
		return models.Bar{}, err
	}

	var prices [5]float64
	for i := range prices {
		v, err := strconv.ParseFloat(rec[i+1], 64)
		if err != nil {
			return models.Bar{}, errors.Wrapf(err, "field %s", barHeader[i+1])
		}
		prices[i] = v
	}

	volume, err := strconv.ParseInt(rec[6], 10, 64)
	if err != nil {
		return models.Bar{}, errors.Wrap(err, "field Volume")
	}

	return models.Bar{
		Date:     date,
		Open:     prices[0],
		High:     prices[1],
		Low:      prices[2],
		Close:    prices[3],
		AdjClose: prices[4],
		Volume:   volume,
	}, nil
}

// Symbols loads the registry, creating an empty one when missing
func (s *Store) Symbols() (map[string]models.SymbolInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSymbols()
}

// LookupSymbol returns the registry entry of a symbol
func (s *Store) LookupSymbol(symbol string) (models.SymbolInfo, bool, error) {
	symbols, err := s.Symbols()
	if err != nil {
		return models.SymbolInfo{}, false, err
	}
	info, ok := symbols[models.NormalizeSymbol(symbol)]
	return info, ok, nil
}

// AddSymbol records a symbol and persists the registry
func (s *Store) AddSymbol(info models.SymbolInfo) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	symbols, err := s.loadSymbols()
	if err != nil {
		return err
	}
	info.Symbol = models.NormalizeSymbol(info.Symbol)
	symbols[info.Symbol] = info
	return s.saveSymbols(symbols)
}

func (s *Store) symbolsPath() string {
	return filepath.Join(s.dir, SymbolsFile)
}

func (s *Store) loadSymbols() (map[string]models.SymbolInfo, error) {
	f, err := os.Open(s.symbolsPath())
	if os.IsNotExist(err) {
		symbols := map[string]models.SymbolInfo{}
		if err := s.saveSymbols(symbols); err != nil {
			return nil, err
		}
		return symbols, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "opening symbol registry")
	}
	defer f.Close()

	reader := csv.NewReader(f)
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	if err != nil {
		return nil, errors.Wrap(err, "decoding symbol registry")
	}

	symbols := make(map[string]models.SymbolInfo, len(records))
	for i, rec := range records {
		if i == 0 || len(rec) == 0 {
			continue
		}
		info := models.SymbolInfo{Symbol: models.NormalizeSymbol(rec[0])}
		if len(rec) > 1 {
			info.About = rec[1]
		}
		symbols[info.Symbol] = info
	}
	return symbols, nil
}

func (s *Store) saveSymbols(symbols map[string]models.SymbolInfo) error {
	keys := make([]string, 0, len(symbols))
	for k := range symbols {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	return writeAtomic(s.symbolsPath(), func(w io.Writer) error {
		writer := csv.NewWriter(w)
		if err := writer.Write(symbolHeader); err != nil {
			return err
		}
		for _, k := range keys {
			if err := writer.Write([]string{k, symbols[k].About}); err != nil {
				return err
			}
		}
		writer.Flush()
		return writer.Error()
	})
}

// writeAtomic writes to a temp file next to path and renames it into place
func writeAtomic(path string, write func(io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrap(err, "creating directory")
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, "creating temp file")
	}
	defer os.Remove(tmp.Name())

	if err := write(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), path)
}
