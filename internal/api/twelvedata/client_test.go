package twelvedata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const timeSeriesBody = `{
  "meta": {"symbol": "AAPL", "interval": "1day"},
  "values": [
    {"datetime": "2024-06-14", "open": "213.85", "high": "215.17", "low": "211.30", "close": "212.49", "volume": "70122700"},
    {"datetime": "2024-06-12", "open": "207.37", "high": "220.20", "low": "206.90", "close": "213.07", "volume": "198134300"},
    {"datetime": "2024-06-13", "open": "214.74", "high": "216.75", "low": "211.60", "close": "214.24", "volume": "97862700"}
  ],
  "status": "ok"
}`

func TestParseTimeSeries(t *testing.T) {
	series, err := ParseTimeSeries([]byte(timeSeriesBody))
	require.NoError(t, err)
	require.Len(t, series, 3)

	assert.Equal(t, time.Date(2024, 6, 12, 0, 0, 0, 0, time.UTC), series[0].Date)
	last := series[2]
	assert.Equal(t, time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC), last.Date)
	assert.Equal(t, 213.85, last.Open)
	assert.Equal(t, 212.49, last.Close)
	assert.Equal(t, last.Close, last.AdjClose)
	assert.Equal(t, int64(70122700), last.Volume)
}

func TestParseTimeSeriesError(t *testing.T) {
	_, err := ParseTimeSeries([]byte(`{"code":401,"message":"invalid api key","status":"error"}`))
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 401, apiErr.Code)
	assert.False(t, apiErr.NotFound())

	_, err = ParseTimeSeries([]byte(`not json`))
	assert.Error(t, err)
}

func newTestClient(t *testing.T) *Client {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("apikey") != "secret" {
			_, _ = w.Write([]byte(`{"code":401,"message":"invalid api key","status":"error"}`))
			return
		}
		switch r.URL.Path {
		case "/time_series":
			assert.Equal(t, "AAPL", r.URL.Query().Get("symbol"))
			assert.Equal(t, "1day", r.URL.Query().Get("interval"))
			assert.Equal(t, "2024-06-15", r.URL.Query().Get("end_date"))
			_, _ = w.Write([]byte(timeSeriesBody))
		case "/quote":
			if r.URL.Query().Get("symbol") != "AAPL" {
				_, _ = w.Write([]byte(`{"code":404,"message":"symbol not found","status":"error"}`))
				return
			}
			_, _ = w.Write([]byte(`{"symbol":"AAPL","name":"Apple Inc","exchange":"NASDAQ","currency":"USD"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(server.Close)

	return NewClient(ClientOptions{APIKey: "secret", BaseURL: server.URL, RequestsPerSec: 100})
}

func TestFetchHistory(t *testing.T) {
	client := newTestClient(t)
	start := time.Date(2024, 6, 13, 0, 0, 0, 0, time.UTC)
	end := time.Date(2024, 6, 14, 0, 0, 0, 0, time.UTC)

	series, err := client.FetchHistory(context.Background(), "aapl", start, end)
	require.NoError(t, err)
	require.Len(t, series, 2)
	assert.Equal(t, start, series[0].Date)
	assert.Equal(t, end, series[1].Date)

	_, err = client.FetchHistory(context.Background(), "aapl", end, end)
	assert.True(t, errors.Is(err, models.ErrEmptyRange))
}

func TestLookupSymbol(t *testing.T) {
	client := newTestClient(t)

	about, found, err := client.LookupSymbol(context.Background(), "aapl")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "Apple Inc (AAPL) - NASDAQ", about)

	_, found, err = client.LookupSymbol(context.Background(), "zzzz")
	require.NoError(t, err)
	assert.False(t, found)

	bad := NewClient(ClientOptions{APIKey: "wrong", BaseURL: client.baseURL, RequestsPerSec: 100})
	_, _, err = bad.LookupSymbol(context.Background(), "aapl")
	assert.Error(t, err)
}
