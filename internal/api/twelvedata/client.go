// Package twelvedata is a HistorySource and SymbolSource backed by the Twelve
// Data REST API. It serves daily bars as JSON and needs an API key.
package twelvedata

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	httpclient "github.com/Alias1177/FinTrends/internal/platform/http"
	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// DefaultBaseURL is the public API endpoint
const DefaultBaseURL = "https://api.twelvedata.com"

// MaxOutputSize is the largest page the API returns for one request
const MaxOutputSize = 5000

// APIError is the error payload returned with a 200 status
type APIError struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	return "twelvedata: " + e.Message
}

// NotFound reports whether the symbol is unknown upstream
func (e *APIError) NotFound() bool {
	return e.Code == 400 || e.Code == 404
}

type timeSeriesResponse struct {
	Status  string `json:"status"`
	Code    int    `json:"code"`
	Message string `json:"message"`
	Meta    struct {
		Symbol   string `json:"symbol"`
		Interval string `json:"interval"`
	} `json:"meta"`
	Values []struct {
		Datetime string  `json:"datetime"`
		Open     float64 `json:"open,string"`
		High     float64 `json:"high,string"`
		Low      float64 `json:"low,string"`
		Close    float64 `json:"close,string"`
		Volume   int64   `json:"volume,string,omitempty"`
	} `json:"values"`
}

type quoteResponse struct {
	Status   string `json:"status"`
	Code     int    `json:"code"`
	Message  string `json:"message"`
	Symbol   string `json:"symbol"`
	Name     string `json:"name"`
	Exchange string `json:"exchange"`
}

// Client is the Twelve Data API client
type Client struct {
	apiKey  string
	baseURL string
	http    *httpclient.Client
	logger  zerolog.Logger
}

// ClientOptions holds options for creating a new client
type ClientOptions struct {
	APIKey          string
	BaseURL         string
	RequestTimeout  time.Duration
	RequestsPerSec  int
	MaxRetryTimeout time.Duration
}

// NewClient creates a new Twelve Data client
func NewClient(options ClientOptions) *Client {
	if options.BaseURL == "" {
		options.BaseURL = DefaultBaseURL
	}
	return &Client{
		apiKey:  options.APIKey,
		baseURL: options.BaseURL,
		http: httpclient.NewClient(httpclient.ClientOptions{
			Timeout:         options.RequestTimeout,
			RequestsPerSec:  options.RequestsPerSec,
			MaxRetryTimeout: options.MaxRetryTimeout,
			Headers:         map[string]string{"Accept": "application/json"},
		}),
		logger: log.With().Str("component", "twelvedata_client").Logger(),
	}
}

func (c *Client) endpoint(path string, params url.Values) string {
	params.Set("apikey", c.apiKey)
	return c.baseURL + path + "?" + params.Encode()
}

// FetchHistory implements models.HistorySource. end is inclusive.
func (c *Client) FetchHistory(ctx context.Context, symbol string, start, end time.Time) (models.Series, error) {
	if !start.Before(end) {
		return nil, models.ErrEmptyRange
	}

	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	params.Set("interval", "1day")
	params.Set("start_date", start.Format(models.DateLayout))
	params.Set("end_date", end.AddDate(0, 0, 1).Format(models.DateLayout))
	params.Set("order", "ASC")
	params.Set("outputsize", strconv.Itoa(MaxOutputSize))

	c.logger.Debug().Str("symbol", symbol).Time("start", start).Time("end", end).Msg("Fetching daily bars")
	body, err := c.http.Get(ctx, c.endpoint("/time_series", params))
	if err != nil {
		return nil, err
	}

	series, err := ParseTimeSeries(body)
	if err != nil {
		return nil, errors.Wrapf(err, "time series for %s", symbol)
	}
	series = series.Between(start, end)
	c.logger.Debug().Str("symbol", symbol).Int("count", len(series)).Msg("Fetched daily bars")
	return series, nil
}

// LookupSymbol implements models.SymbolSource
func (c *Client) LookupSymbol(ctx context.Context, symbol string) (string, bool, error) {
	params := url.Values{}
	params.Set("symbol", strings.ToUpper(symbol))
	body, err := c.http.Get(ctx, c.endpoint("/quote", params))
	if err != nil {
		return "", false, err
	}

	var quote quoteResponse
	if err := json.Unmarshal(body, &quote); err != nil {
		return "", false, errors.Wrap(err, "parsing quote")
	}
	if quote.Status == "error" {
		apiErr := &APIError{Code: quote.Code, Message: quote.Message}
		if apiErr.NotFound() {
			return "", false, nil
		}
		return "", false, apiErr
	}
	if quote.Name == "" {
		return "", false, nil
	}

	about := quote.Name + " (" + quote.Symbol + ")"
	if quote.Exchange != "" {
		about += " - " + quote.Exchange
	}
	return about, true, nil
}

// ParseTimeSeries decodes a time_series payload into bars sorted by date.
// The API has no adjusted close, so AdjClose repeats Close.
func ParseTimeSeries(body []byte) (models.Series, error) {
	var data timeSeriesResponse
	if err := json.Unmarshal(body, &data); err != nil {
		return nil, errors.Wrap(err, "parsing JSON")
	}
	if data.Status == "error" {
		return nil, &APIError{Code: data.Code, Message: data.Message}
	}

	series := make(models.Series, 0, len(data.Values))
	for _, v := range data.Values {
		date, err := models.ParseDate(v.Datetime)
		if err != nil {
			return nil, err
		}
		series = append(series, models.Bar{
			Date:     date,
			Open:     v.Open,
			High:     v.High,
			Low:      v.Low,
			Close:    v.Close,
			AdjClose: v.Close,
			Volume:   v.Volume,
		})
	}
	series.Sort()
	return series, nil
}

var (
	_ models.HistorySource = (*Client)(nil)
	_ models.SymbolSource  = (*Client)(nil)
)
