package database

import (
	"context"
	"regexp"
	"testing"
	"time"

	"github.com/Alias1177/FinTrends/models"
	"github.com/DATA-DOG/go-sqlmock"
	"github.com/cockroachdb/errors"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockDB(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return &DB{conn}, mock
}

func testBars() models.Series {
	d1 := time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)
	d2 := time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC)
	return models.Series{
		{Date: d1, Open: 10, High: 11, Low: 9.5, Close: 10.5, AdjClose: 10.4, Volume: 1000},
		{Date: d2, Open: 10.5, High: 12, Low: 10, Close: 11.5, AdjClose: 11.4, Volume: 1200},
	}
}

func TestConnectionParamsDSN(t *testing.T) {
	params := ConnectionParams{Host: "localhost", Port: "5432", User: "fin", Password: "secret", DBName: "trends"}
	assert.Equal(t, "host=localhost port=5432 user=fin password=secret dbname=trends sslmode=disable", params.DSN())

	params.SSLMode = "require"
	assert.Contains(t, params.DSN(), "sslmode=require")
}

func TestNewWithoutDSN(t *testing.T) {
	_, err := New(context.Background(), "")
	assert.True(t, errors.Is(err, ErrNoDSN))
}

func TestSchemaDeclaresKeys(t *testing.T) {
	assert.Len(t, schema, 2)
	assert.Contains(t, schema[0], "PRIMARY KEY (symbol, date)")
	assert.Contains(t, schema[1], "run_id UUID")
	assert.Contains(t, upsertBar, "ON CONFLICT (symbol, date)")
}

func TestUpsertBars(t *testing.T) {
	db, mock := newMockDB(t)
	bars := testBars()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO price_bars"))
	for _, bar := range bars {
		prep.ExpectExec().
			WithArgs("aapl", bar.Date, bar.Open, bar.High, bar.Low, bar.Close, bar.AdjClose, bar.Volume).
			WillReturnResult(sqlmock.NewResult(0, 1))
	}
	mock.ExpectCommit()

	require.NoError(t, db.UpsertBars(context.Background(), "aapl", bars))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpsertBarsRollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)
	bars := testBars()

	mock.ExpectBegin()
	prep := mock.ExpectPrepare(regexp.QuoteMeta("INSERT INTO price_bars"))
	prep.ExpectExec().WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().WillReturnError(errors.New("disk full"))
	mock.ExpectRollback()

	err := db.UpsertBars(context.Background(), "aapl", bars)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "upsert aapl 2024-06-04")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBars(t *testing.T) {
	db, mock := newMockDB(t)

	rows := sqlmock.NewRows([]string{"date", "open", "high", "low", "close", "adj_close", "volume"}).
		AddRow(time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC), 10.0, 11.0, 9.5, 10.5, 10.4, int64(1000)).
		AddRow(time.Date(2024, 6, 4, 14, 30, 0, 0, time.UTC), 10.5, 12.0, 10.0, 11.5, 11.4, int64(1200))
	mock.ExpectQuery(regexp.QuoteMeta("FROM price_bars")).WithArgs("aapl").WillReturnRows(rows)

	series, err := db.LoadBars(context.Background(), "aapl")
	require.NoError(t, err)
	assert.Equal(t, testBars(), series)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLoadBarsQueryError(t *testing.T) {
	db, mock := newMockDB(t)
	mock.ExpectQuery(regexp.QuoteMeta("FROM price_bars")).WillReturnError(errors.New("connection reset"))

	_, err := db.LoadBars(context.Background(), "aapl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "query bars")
}

func TestSaveRun(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()
	forecastDate := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO model_runs")).
		WithArgs(id.String(), "aapl", "linear", 100, 20, 0.5, 0.6, 0.9, forecastDate, 11.8, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO model_runs")).
		WithArgs(id.String(), "aapl", "persistence", 100, 20, 0.6, 0.7, 0.8, nil, nil, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SaveRun(context.Background(), ModelRun{
		RunID: id, Symbol: "aapl", Model: "linear", TrainRows: 100, TestRows: 20,
		MAE: 0.5, RMSE: 0.6, R2: 0.9, ForecastDate: forecastDate, Forecast: 11.8,
	}))
	require.NoError(t, db.SaveRun(context.Background(), ModelRun{
		RunID: id, Symbol: "aapl", Model: "persistence", TrainRows: 100, TestRows: 20,
		MAE: 0.6, RMSE: 0.7, R2: 0.8,
	}))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRuns(t *testing.T) {
	db, mock := newMockDB(t)
	id := uuid.New()
	created := time.Date(2024, 6, 4, 18, 0, 0, 0, time.UTC)
	forecastDate := time.Date(2024, 6, 5, 0, 0, 0, 0, time.UTC)

	columns := []string{"run_id", "symbol", "model", "train_rows", "test_rows", "mae", "rmse", "r2", "forecast_date", "forecast", "created_at"}
	rows := sqlmock.NewRows(columns).
		AddRow(id.String(), "aapl", "linear", 100, 20, 0.5, 0.6, 0.9, forecastDate, 11.8, created).
		AddRow(id.String(), "aapl", "persistence", 100, 20, 0.6, 0.7, 0.8, nil, nil, created)
	mock.ExpectQuery(regexp.QuoteMeta("FROM model_runs")).WithArgs("aapl", 5).WillReturnRows(rows)

	runs, err := db.LatestRuns(context.Background(), "aapl", 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, id, runs[0].RunID)
	assert.Equal(t, "linear", runs[0].Model)
	assert.Equal(t, 100, runs[0].TrainRows)
	assert.Equal(t, forecastDate, runs[0].ForecastDate)
	assert.Equal(t, 11.8, runs[0].Forecast)
	assert.Equal(t, created, runs[0].CreatedAt)

	assert.True(t, runs[1].ForecastDate.IsZero())
	assert.Zero(t, runs[1].Forecast)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestLatestRunsRejectsBadID(t *testing.T) {
	db, mock := newMockDB(t)

	columns := []string{"run_id", "symbol", "model", "train_rows", "test_rows", "mae", "rmse", "r2", "forecast_date", "forecast", "created_at"}
	rows := sqlmock.NewRows(columns).
		AddRow("not-a-uuid", "aapl", "linear", 100, 20, 0.5, 0.6, 0.9, nil, nil, time.Now())
	mock.ExpectQuery(regexp.QuoteMeta("FROM model_runs")).WillReturnRows(rows)

	_, err := db.LatestRuns(context.Background(), "aapl", 5)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "parse run id")
}
