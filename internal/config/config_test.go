package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultIsValid(t *testing.T) {
	require.NoError(t, Default().Validate())
}

func TestLoadFromEnv(t *testing.T) {
	t.Setenv("FINTRENDS_CONFIG", "")
	t.Setenv("SYMBOLS", "MSFT, aapl ,,GOOG")
	t.Setenv("LAGS", "10")
	t.Setenv("TEST_RATIO", "0.25")
	t.Setenv("MODEL", "ridge")
	t.Setenv("YAHOO_BASE_URL", "http://localhost:8080/")
	t.Setenv("TELEGRAM_CHAT_ID", "-100123")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"msft", "aapl", "goog"}, cfg.Symbols)
	assert.Equal(t, 10, cfg.Lags)
	assert.Equal(t, 0.25, cfg.TestRatio)
	assert.Equal(t, "ridge", cfg.Model)
	assert.Equal(t, "http://localhost:8080", cfg.YahooBaseURL)
	assert.Equal(t, int64(-100123), cfg.TelegramChatID)
}

func TestLoadRejectsInvalidValues(t *testing.T) {
	tests := []struct {
		name  string
		key   string
		value string
	}{
		{name: "test ratio above one", key: "TEST_RATIO", value: "1.5"},
		{name: "zero lags", key: "LAGS", value: "0"},
		{name: "unknown model", key: "MODEL", value: "forest"},
		{name: "unknown fetch mode", key: "FETCH_MODE", value: "ftp"},
		{name: "unknown data source", key: "DATA_SOURCE", value: "stooq"},
		{name: "twelvedata without key", key: "DATA_SOURCE", value: "twelvedata"},
		{name: "no backtest capital", key: "BACKTEST_INITIAL_VALUE", value: "0"},
		{name: "negative backtest training rows", key: "BACKTEST_MIN_TRAIN", value: "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("FINTRENDS_CONFIG", "")
			t.Setenv("TWELVEDATA_API_KEY", "")
			t.Setenv(tt.key, tt.value)

			_, err := Load()
			assert.Error(t, err)
		})
	}
}

func TestLoadDatabaseAndBacktestSettings(t *testing.T) {
	t.Setenv("FINTRENDS_CONFIG", "")
	t.Setenv("DB_HOST", "db.internal")
	t.Setenv("DB_USER", "fin")
	t.Setenv("DB_PASSWORD", "secret")
	t.Setenv("DB_NAME", "trends")
	t.Setenv("BACKTEST_INITIAL_VALUE", "2500")
	t.Setenv("BACKTEST_MIN_TRAIN", "120")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "db.internal", cfg.DBHost)
	assert.Equal(t, "5432", cfg.DBPort)
	assert.Equal(t, "fin", cfg.DBUser)
	assert.Equal(t, "secret", cfg.DBPassword)
	assert.Equal(t, "trends", cfg.DBName)
	assert.Equal(t, 2500.0, cfg.BacktestInitialValue)
	assert.Equal(t, 120, cfg.BacktestMinTrain)
}

func TestLoadFileThenEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "fintrends.yaml")
	content := []byte("symbols: [tsla]\nlags: 7\nmodel: ridge\nridge_alpha: 0.5\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))

	t.Setenv("FINTRENDS_CONFIG", path)
	t.Setenv("LAGS", "3")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"tsla"}, cfg.Symbols)
	assert.Equal(t, 3, cfg.Lags)
	assert.Equal(t, "ridge", cfg.Model)
	assert.Equal(t, 0.5, cfg.RidgeAlpha)
}

func TestLoadMissingFile(t *testing.T) {
	t.Setenv("FINTRENDS_CONFIG", filepath.Join(t.TempDir(), "missing.yaml"))

	_, err := Load()
	assert.Error(t, err)
}
