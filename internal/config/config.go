package config

import (
	"os"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"gopkg.in/yaml.v2"
)

// Config holds all application configuration
type Config struct {
	Symbols   []string `yaml:"symbols" validate:"required,min=1,dive,required"`
	StartDate string   `yaml:"start_date" validate:"required"`
	EndDate   string   `yaml:"end_date"` // empty means today

	DataDir   string `yaml:"data_dir" validate:"required"`
	TmpDir    string `yaml:"tmp_dir"`
	OutputDir string `yaml:"output_dir" validate:"required"`

	DataSource        string `yaml:"data_source" validate:"oneof=yahoo twelvedata"`
	YahooBaseURL      string `yaml:"yahoo_base_url" validate:"required,url"`
	TwelveDataBaseURL string `yaml:"twelvedata_base_url" validate:"required,url"`
	TwelveDataAPIKey  string `yaml:"-" validate:"required_if=DataSource twelvedata"`

	FetchMode       string `yaml:"fetch_mode" validate:"oneof=http browser"`
	RequestTimeout  int    `yaml:"request_timeout" validate:"min=1"` // seconds
	RequestsPerSec  int    `yaml:"requests_per_sec" validate:"min=1"`
	MaxRetrySeconds int    `yaml:"max_retry_seconds" validate:"min=0"`
	LogLevel        string `yaml:"log_level"`

	Model      string  `yaml:"model" validate:"oneof=linear ridge"`
	RidgeAlpha float64 `yaml:"ridge_alpha" validate:"gte=0"`
	Lags       int     `yaml:"lags" validate:"min=1,max=60"`
	TestRatio  float64 `yaml:"test_ratio" validate:"gt=0,lt=1"`

	BacktestFolds        int     `yaml:"backtest_folds" validate:"min=0,max=50"` // 0 disables walk-forward
	BacktestInitialValue float64 `yaml:"backtest_initial_value" validate:"gt=0"`
	BacktestMinTrain     int     `yaml:"backtest_min_train" validate:"min=0"` // 0 trains the first fold on half the rows
	Charts               bool    `yaml:"charts"`

	SMAPeriod int     `yaml:"sma_period" validate:"min=2"`
	EMAPeriod int     `yaml:"ema_period" validate:"min=2"`
	RSIPeriod int     `yaml:"rsi_period" validate:"min=2"`
	BBPeriod  int     `yaml:"bb_period" validate:"min=2"`
	BBStdDev  float64 `yaml:"bb_std_dev" validate:"gt=0"`
	ATRPeriod int     `yaml:"atr_period" validate:"min=1"`

	Concurrency int `yaml:"concurrency" validate:"min=1"`

	DatabaseURL      string `yaml:"database_url"` // takes precedence over the DB_* fields
	DBHost           string `yaml:"db_host"`
	DBPort           string `yaml:"db_port"`
	DBUser           string `yaml:"db_user"`
	DBPassword       string `yaml:"-"`
	DBName           string `yaml:"db_name"`
	DBSSLMode        string `yaml:"db_sslmode"`
	OpenAIAPIKey     string `yaml:"-"`
	OpenAIModel      string `yaml:"openai_model"`
	TelegramBotToken string `yaml:"-"`
	TelegramChatID   int64  `yaml:"telegram_chat_id"`
}

// Default returns the configuration used when nothing is set
func Default() *Config {
	return &Config{
		Symbols:              []string{"aapl"},
		StartDate:            "2000-01-01",
		DataDir:              ".data",
		TmpDir:               ".tmp",
		OutputDir:            "output",
		DataSource:           "yahoo",
		YahooBaseURL:         "https://finance.yahoo.com",
		TwelveDataBaseURL:    "https://api.twelvedata.com",
		FetchMode:            "http",
		RequestTimeout:       30,
		RequestsPerSec:       2,
		MaxRetrySeconds:      30,
		LogLevel:             "info",
		Model:                "linear",
		RidgeAlpha:           1.0,
		Lags:                 5,
		TestRatio:            0.2,
		BacktestFolds:        5,
		BacktestInitialValue: 10000,
		Charts:               true,
		SMAPeriod:            20,
		EMAPeriod:            12,
		RSIPeriod:            14,
		BBPeriod:             20,
		BBStdDev:             2.0,
		ATRPeriod:            14,
		Concurrency:          2,
		DBPort:               "5432",
	}
}

// Load initializes configuration from an optional YAML file and environment variables
func Load() (*Config, error) {
	// Load environment variables from .env file if present
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg(".env file not found, relying on actual environment variables")
	}

	cfg := Default()

	if path := os.Getenv("FINTRENDS_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks field constraints
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return errors.Wrap(err, "invalid configuration")
	}
	return nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "reading config file %s", path)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return errors.Wrapf(err, "parsing config file %s", path)
	}
	return nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("SYMBOLS"); v != "" {
		c.Symbols = splitList(v)
	}
	c.StartDate = getEnvWithDefault("START_DATE", c.StartDate)
	c.EndDate = getEnvWithDefault("END_DATE", c.EndDate)
	c.DataDir = getEnvWithDefault("DATA_DIR", c.DataDir)
	c.TmpDir = getEnvWithDefault("TMP_DIR", c.TmpDir)
	c.OutputDir = getEnvWithDefault("OUTPUT_DIR", c.OutputDir)
	c.DataSource = getEnvWithDefault("DATA_SOURCE", c.DataSource)
	c.YahooBaseURL = strings.TrimRight(getEnvWithDefault("YAHOO_BASE_URL", c.YahooBaseURL), "/")
	c.TwelveDataBaseURL = strings.TrimRight(getEnvWithDefault("TWELVEDATA_BASE_URL", c.TwelveDataBaseURL), "/")
	c.TwelveDataAPIKey = getEnvWithDefault("TWELVEDATA_API_KEY", c.TwelveDataAPIKey)
	c.FetchMode = getEnvWithDefault("FETCH_MODE", c.FetchMode)
	c.RequestTimeout = getEnvIntWithDefault("REQUEST_TIMEOUT", c.RequestTimeout)
	c.RequestsPerSec = getEnvIntWithDefault("REQUESTS_PER_SEC", c.RequestsPerSec)
	c.MaxRetrySeconds = getEnvIntWithDefault("MAX_RETRY_SECONDS", c.MaxRetrySeconds)
	c.LogLevel = getEnvWithDefault("LOG_LEVEL", c.LogLevel)
	c.Model = getEnvWithDefault("MODEL", c.Model)
	c.RidgeAlpha = getEnvFloatWithDefault("RIDGE_ALPHA", c.RidgeAlpha)
	c.Lags = getEnvIntWithDefault("LAGS", c.Lags)
	c.TestRatio = getEnvFloatWithDefault("TEST_RATIO", c.TestRatio)
	c.BacktestFolds = getEnvIntWithDefault("BACKTEST_FOLDS", c.BacktestFolds)
	c.BacktestInitialValue = getEnvFloatWithDefault("BACKTEST_INITIAL_VALUE", c.BacktestInitialValue)
	c.BacktestMinTrain = getEnvIntWithDefault("BACKTEST_MIN_TRAIN", c.BacktestMinTrain)
	c.Charts = getEnvBoolWithDefault("CHARTS", c.Charts)
	c.SMAPeriod = getEnvIntWithDefault("SMA_PERIOD", c.SMAPeriod)
	c.EMAPeriod = getEnvIntWithDefault("EMA_PERIOD", c.EMAPeriod)
	c.RSIPeriod = getEnvIntWithDefault("RSI_PERIOD", c.RSIPeriod)
	c.BBPeriod = getEnvIntWithDefault("BB_PERIOD", c.BBPeriod)
	c.BBStdDev = getEnvFloatWithDefault("BB_STD_DEV", c.BBStdDev)
	c.ATRPeriod = getEnvIntWithDefault("ATR_PERIOD", c.ATRPeriod)
	c.Concurrency = getEnvIntWithDefault("CONCURRENCY", c.Concurrency)
	c.DatabaseURL = getEnvWithDefault("DATABASE_URL", c.DatabaseURL)
	c.DBHost = getEnvWithDefault("DB_HOST", c.DBHost)
	c.DBPort = getEnvWithDefault("DB_PORT", c.DBPort)
	c.DBUser = getEnvWithDefault("DB_USER", c.DBUser)
	c.DBPassword = getEnvWithDefault("DB_PASSWORD", c.DBPassword)
	c.DBName = getEnvWithDefault("DB_NAME", c.DBName)
	c.DBSSLMode = getEnvWithDefault("DB_SSLMODE", c.DBSSLMode)
	c.OpenAIAPIKey = getEnvWithDefault("OPENAI_API_KEY", c.OpenAIAPIKey)
	c.OpenAIModel = getEnvWithDefault("OPENAI_MODEL", c.OpenAIModel)
	c.TelegramBotToken = getEnvWithDefault("TELEGRAM_BOT_TOKEN", c.TelegramBotToken)
	c.TelegramChatID = getEnvInt64WithDefault("TELEGRAM_CHAT_ID", c.TelegramChatID)
}

// Helper functions for environment variable handling
func getEnvWithDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntWithDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer value")
	}
	return defaultValue
}

func getEnvInt64WithDefault(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-integer value")
	}
	return defaultValue
}

func getEnvFloatWithDefault(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if floatValue, err := strconv.ParseFloat(value, 64); err == nil {
			return floatValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-numeric value")
	}
	return defaultValue
}

func getEnvBoolWithDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
		log.Warn().Str("key", key).Str("value", value).Msg("Ignoring non-boolean value")
	}
	return defaultValue
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, strings.ToLower(part))
		}
	}
	return out
}
