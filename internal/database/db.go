package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/lib/pq"
)

// ErrNoDSN is returned when no connection string is configured
var ErrNoDSN = errors.New("database connection string is empty")

// DB represents a database connection
type DB struct {
	*sql.DB
}

// ConnectionParams holds PostgreSQL connection parameters
type ConnectionParams struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN formats the parameters as a key=value connection string
func (p ConnectionParams) DSN() string {
	sslMode := p.SSLMode
	if sslMode == "" {
		sslMode = "disable"
	}
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=%s",
		p.Host, p.Port, p.User, p.Password, p.DBName, sslMode,
	)
}

// ModelRun is one evaluated model fit
type ModelRun struct {
	RunID        uuid.UUID
	Symbol       string
	Model        string
	TrainRows    int
	TestRows     int
	MAE          float64
	RMSE         float64
	R2           float64
	ForecastDate time.Time
	Forecast     float64
	CreatedAt    time.Time
}

// New opens a connection from a URL or key=value DSN and creates the schema
func New(ctx context.Context, dsn string) (*DB, error) {
	if dsn == "" {
		return nil, ErrNoDSN
	}

	// Accept postgres:// URLs as well as key=value strings
	if parsed, err := pq.ParseURL(dsn); err == nil && parsed != "" {
		dsn = parsed
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, errors.Wrap(err, "open database")
	}

	// Check connection
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "ping database")
	}

	if err := createTables(ctx, db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db}, nil
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS price_bars (
		symbol TEXT NOT NULL,
		date DATE NOT NULL,
		open DOUBLE PRECISION NOT NULL,
		high DOUBLE PRECISION NOT NULL,
		low DOUBLE PRECISION NOT NULL,
		close DOUBLE PRECISION NOT NULL,
		adj_close DOUBLE PRECISION NOT NULL,
		volume BIGINT NOT NULL,
		PRIMARY KEY (symbol, date)
	)`,
	`CREATE TABLE IF NOT EXISTS model_runs (
		run_id UUID NOT NULL,
		symbol TEXT NOT NULL,
		model TEXT NOT NULL,
		train_rows INTEGER NOT NULL,
		test_rows INTEGER NOT NULL,
		mae DOUBLE PRECISION NOT NULL,
		rmse DOUBLE PRECISION NOT NULL,
		r2 DOUBLE PRECISION NOT NULL,
		forecast_date DATE,
		forecast DOUBLE PRECISION,
		created_at TIMESTAMP NOT NULL,
		PRIMARY KEY (run_id, model)
	)`,
}

// createTables creates the necessary tables if they don't exist
func createTables(ctx context.Context, db *sql.DB) error {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return errors.Wrap(err, "create schema")
		}
	}
	return nil
}

const upsertBar = `
	INSERT INTO price_bars (symbol, date, open, high, low, close, adj_close, volume)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	ON CONFLICT (symbol, date)
	DO UPDATE SET
		open = EXCLUDED.open,
		high = EXCLUDED.high,
		low = EXCLUDED.low,
		close = EXCLUDED.close,
		adj_close = EXCLUDED.adj_close,
		volume = EXCLUDED.volume`

// UpsertBars writes a series in one transaction, replacing existing dates
func (db *DB) UpsertBars(ctx context.Context, symbol string, series models.Series) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "begin transaction")
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, upsertBar)
	if err != nil {
		return errors.Wrap(err, "prepare upsert")
	}
	defer stmt.Close()

	for _, bar := range series {
		if _, err := stmt.ExecContext(ctx, symbol, bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume); err != nil {
			return errors.Wrapf(err, "upsert %s %s", symbol, bar.Date.Format(models.DateLayout))
		}
	}
	return errors.Wrap(tx.Commit(), "commit bars")
}

// LoadBars reads the stored history of a symbol, oldest first
func (db *DB) LoadBars(ctx context.Context, symbol string) (models.Series, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT date, open, high, low, close, adj_close, volume
		FROM price_bars
		WHERE symbol = $1
		ORDER BY date
	`, symbol)
	if err != nil {
		return nil, errors.Wrap(err, "query bars")
	}
	defer rows.Close()

	var series models.Series
	for rows.Next() {
		var bar models.Bar
		if err := rows.Scan(&bar.Date, &bar.Open, &bar.High, &bar.Low, &bar.Close, &bar.AdjClose, &bar.Volume); err != nil {
			return nil, errors.Wrap(err, "scan bar")
		}
		bar.Date = models.TruncateDay(bar.Date)
		series = append(series, bar)
	}
	return series, errors.Wrap(rows.Err(), "iterate bars")
}

// SaveRun records the evaluation of one model
func (db *DB) SaveRun(ctx context.Context, run ModelRun) error {
	if run.CreatedAt.IsZero() {
		run.CreatedAt = time.Now().UTC()
	}
	var forecastDate sql.NullTime
	var forecast sql.NullFloat64
	if !run.ForecastDate.IsZero() {
		forecastDate = sql.NullTime{Time: run.ForecastDate, Valid: true}
		forecast = sql.NullFloat64{Float64: run.Forecast, Valid: true}
	}

	_, err := db.ExecContext(ctx, `
		INSERT INTO model_runs (
			run_id, symbol, model, train_rows, test_rows, mae, rmse, r2, forecast_date, forecast, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (run_id, model) DO NOTHING
	`,
		run.RunID.String(), run.Symbol, run.Model, run.TrainRows, run.TestRows,
		run.MAE, run.RMSE, run.R2, forecastDate, forecast, run.CreatedAt)
	if err != nil {
		return errors.Wrapf(err, "save run %s", run.RunID)
	}
	return nil
}

// LatestRuns returns the most recent runs of a symbol, newest first
func (db *DB) LatestRuns(ctx context.Context, symbol string, limit int) ([]ModelRun, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, symbol, model, train_rows, test_rows, mae, rmse, r2, forecast_date, forecast, created_at
		FROM model_runs
		WHERE symbol = $1
		ORDER BY created_at DESC
		LIMIT $2
	`, symbol, limit)
	if err != nil {
		return nil, errors.Wrap(err, "query runs")
	}
	defer rows.Close()

	var runs []ModelRun
	for rows.Next() {
		var run ModelRun
		var id string
		var forecastDate sql.NullTime
		var forecast sql.NullFloat64
		if err := rows.Scan(&id, &run.Symbol, &run.Model, &run.TrainRows, &run.TestRows,
			&run.MAE, &run.RMSE, &run.R2, &forecastDate, &forecast, &run.CreatedAt); err != nil {
			return nil, errors.Wrap(err, "scan run")
		}
		if run.RunID, err = uuid.Parse(id); err != nil {
			return nil, errors.Wrapf(err, "parse run id %q", id)
		}
		if forecastDate.Valid {
			run.ForecastDate = forecastDate.Time
			run.Forecast = forecast.Float64
		}
		runs = append(runs, run)
	}
	return runs, errors.Wrap(rows.Err(), "iterate runs")
}
