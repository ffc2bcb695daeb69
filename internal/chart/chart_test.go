package chart

import (
	"math"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func generateTestSeries(n int) models.Series {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	series := make(models.Series, n)
	for i := range series {
		price := 100 + 10*math.Sin(float64(i)/8) + float64(i)*0.1
		series[i] = models.Bar{
			Date:     start.AddDate(0, 0, i),
			Open:     price - 0.5,
			High:     price + 1,
			Low:      price - 1,
			Close:    price,
			AdjClose: price,
			Volume:   int64(1000 + i),
		}
	}
	return series
}

func assertPNG(t *testing.T, path string) {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, "\x89PNG", string(data[:4]))
}

func TestPriceChart(t *testing.T) {
	path := filepath.Join(t.TempDir(), "aapl", "price.png")
	require.NoError(t, PriceChart(path, "AAPL", generateTestSeries(80), 20, 20, 2))
	assertPNG(t, path)

	assert.True(t, errors.Is(PriceChart(path, "AAPL", nil, 20, 20, 2), ErrNoPoints))
}

func TestPredictionChart(t *testing.T) {
	series := generateTestSeries(30)
	actual := series.Closes()
	predicted := make([]float64, len(actual))
	for i, v := range actual {
		predicted[i] = v + 0.5
	}

	path := filepath.Join(t.TempDir(), "prediction.png")
	require.NoError(t, PredictionChart(path, "AAPL linear", series.Dates(), actual, predicted))
	assertPNG(t, path)

	err := PredictionChart(path, "AAPL", series.Dates(), actual, predicted[:3])
	assert.True(t, errors.Is(err, ErrNoPoints))
}

func TestReturnsHistogram(t *testing.T) {
	returns := []float64{math.NaN(), 0.01, -0.02, 0.005, 0.003, -0.001}
	path := filepath.Join(t.TempDir(), "returns.png")
	require.NoError(t, ReturnsHistogram(path, "AAPL returns", returns, 5))
	assertPNG(t, path)

	assert.True(t, errors.Is(ReturnsHistogram(path, "x", []float64{math.NaN()}, 5), ErrNoPoints))
}
