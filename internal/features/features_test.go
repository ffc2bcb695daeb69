package features

import (
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func linearSeries(n int) models.Series {
	series := make(models.Series, n)
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := range series {
		c := 100 + float64(i)
		series[i] = models.Bar{Date: start.AddDate(0, 0, i), Open: c, High: c + 1, Low: c - 1, Close: c, AdjClose: c, Volume: int64(1000 + 10*i)}
	}
	return series
}

func TestNames(t *testing.T) {
	assert.Equal(t,
		[]string{"lag_1", "lag_2", "return_1", "sma_ratio", "rsi", "volume_change"},
		Names(Options{Lags: 2}))
}

func TestBuild(t *testing.T) {
	series := linearSeries(40)
	ds, err := Build(series, Options{Lags: 3, SMAPeriod: 5, RSIPeriod: 5})
	require.NoError(t, err)

	// first usable row is t=5 (RSI needs 5 changes); last row with a target is t=38
	assert.Equal(t, 34, ds.Rows())
	rows, cols := ds.X.Dims()
	assert.Equal(t, 34, rows)
	assert.Equal(t, 7, cols)

	// row 0 describes t=5 and targets the close of t=6
	assert.Equal(t, 105.0, ds.X.At(0, ds.Column("lag_1")))
	assert.Equal(t, 104.0, ds.X.At(0, ds.Column("lag_2")))
	assert.Equal(t, 103.0, ds.X.At(0, ds.Column("lag_3")))
	assert.Equal(t, 106.0, ds.Y[0])
	assert.Equal(t, series[6].Date, ds.Dates[0])
	assert.InDelta(t, 105.0/104.0-1, ds.X.At(0, ds.Column("return_1")), 1e-12)
	// SMA of 101..105 is 103
	assert.InDelta(t, 105.0/103.0, ds.X.At(0, ds.Column("sma_ratio")), 1e-12)
	assert.Equal(t, 100.0, ds.X.At(0, ds.Column("rsi")))

	// the final session has no target but feeds the forecast row
	require.Len(t, ds.Latest, 7)
	assert.Equal(t, 139.0, ds.Latest[0])
	assert.Equal(t, series[39].Date, ds.LatestDate)

	assert.Equal(t, -1, ds.Column("missing"))
}

func TestBuildInsufficient(t *testing.T) {
	_, err := Build(linearSeries(12), Options{Lags: 3, SMAPeriod: 10, RSIPeriod: 5})
	assert.True(t, errors.Is(err, ErrInsufficientData))
}

func TestSplitIsChronological(t *testing.T) {
	ds, err := Build(linearSeries(60), Options{Lags: 2, SMAPeriod: 5, RSIPeriod: 5})
	require.NoError(t, err)

	train, test, err := Split(ds, 0.25)
	require.NoError(t, err)

	assert.Equal(t, ds.Rows(), train.Rows()+test.Rows())
	assert.Equal(t, 14, test.Rows())
	assert.True(t, train.Dates[len(train.Dates)-1].Before(test.Dates[0]))
	assert.Equal(t, ds.Y[train.Rows()], test.Y[0])

	r, c := test.X.Dims()
	assert.Equal(t, test.Rows(), r)
	assert.Equal(t, len(ds.Names), c)

	_, _, err = Split(ds, 1.2)
	assert.Error(t, err)
}
