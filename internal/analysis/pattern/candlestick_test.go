package pattern

import (
	"testing"

	"github.com/Alias1177/FinTrends/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func flat(n int) models.Series {
	series := make(models.Series, n)
	for i := range series {
		series[i] = models.Bar{Open: 10, High: 10.2, Low: 9.8, Close: 10}
	}
	return series
}

func TestIdentifyEngulfing(t *testing.T) {
	series := append(flat(3),
		models.Bar{Open: 11, High: 11.1, Low: 9.9, Close: 10},
		models.Bar{Open: 9.8, High: 11.6, Low: 9.7, Close: 11.5},
	)

	patterns := Identify(series)
	require.Len(t, patterns, 1)
	assert.Equal(t, BullishEngulfing, patterns[0].Name)
	assert.InDelta(t, 0.7, patterns[0].Strength, 1e-9)
}

func TestIdentifyHammer(t *testing.T) {
	series := append(flat(4), models.Bar{Open: 10, High: 10.6, Low: 8.9, Close: 10.5})

	patterns := Identify(series)
	require.Len(t, patterns, 1)
	assert.Equal(t, Hammer, patterns[0].Name)
	assert.InDelta(t, 2.2, patterns[0].Strength, 1e-9)
}

func TestIdentifyThreeWhiteSoldiers(t *testing.T) {
	series := append(flat(2),
		models.Bar{Open: 10, High: 11.05, Low: 9.95, Close: 11},
		models.Bar{Open: 11, High: 12.05, Low: 10.95, Close: 12},
		models.Bar{Open: 12, High: 13.05, Low: 11.95, Close: 13},
	)

	patterns := Identify(series)
	require.Len(t, patterns, 1)
	assert.Equal(t, ThreeWhiteSoldiers, patterns[0].Name)
	assert.InDelta(t, 1.0, patterns[0].Strength, 1e-9)
}

func TestIdentifyShortSeries(t *testing.T) {
	assert.Nil(t, Identify(flat(4)))
	assert.Empty(t, Identify(flat(20)))
}
