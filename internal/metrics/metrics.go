// Package metrics scores price predictions against realized closes.
package metrics

import (
	"fmt"
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrEmpty    = errors.New("empty input")
	ErrMismatch = errors.New("length mismatch")
)

// Report groups the error measures of one model on one test window
type Report struct {
	Model string  `json:"model"`
	N     int     `json:"n"`
	MAE   float64 `json:"mae"`
	MSE   float64 `json:"mse"`
	RMSE  float64 `json:"rmse"`
	MAPE  float64 `json:"mape"`
	R2    float64 `json:"r2"`
}

func (r Report) String() string {
	return fmt.Sprintf("%s: n=%d MAE=%.4f RMSE=%.4f MAPE=%.2f%% R2=%.4f",
		r.Model, r.N, r.MAE, r.RMSE, r.MAPE, r.R2)
}

func check(op string, actual, predicted []float64) error {
	if len(actual) == 0 {
		return errors.Wrap(ErrEmpty, op)
	}
	if len(actual) != len(predicted) {
		return errors.Wrapf(ErrMismatch, "%s: %d actual vs %d predicted", op, len(actual), len(predicted))
	}
	return nil
}

// MAE is the mean absolute error
func MAE(actual, predicted []float64) (float64, error) {
	if err := check("MAE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		sum += math.Abs(actual[i] - predicted[i])
	}
	return sum / float64(len(actual)), nil
}

// MSE is the mean squared error
func MSE(actual, predicted []float64) (float64, error) {
	if err := check("MSE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	for i := range actual {
		d := actual[i] - predicted[i]
		sum += d * d
	}
	return sum / float64(len(actual)), nil
}

// RMSE is the square root of MSE
func RMSE(actual, predicted []float64) (float64, error) {
	mse, err := MSE(actual, predicted)
	if err != nil {
		return 0, err
	}
	return math.Sqrt(mse), nil
}

// MAPE is the mean absolute percentage error in percent.
// Points whose actual value is zero are skipped.
func MAPE(actual, predicted []float64) (float64, error) {
	if err := check("MAPE", actual, predicted); err != nil {
		return 0, err
	}
	var sum float64
	var n int
	for i := range actual {
		if actual[i] == 0 {
			continue
		}
		sum += math.Abs((actual[i] - predicted[i]) / actual[i])
		n++
	}
	if n == 0 {
		return 0, errors.Wrap(ErrEmpty, "MAPE: every actual value is zero")
	}
	return 100 * sum / float64(n), nil
}

// R2 is the coefficient of determination. A constant actual series scores 1
// when predicted exactly and 0 otherwise.
func R2(actual, predicted []float64) (float64, error) {
	if err := check("R2", actual, predicted); err != nil {
		return 0, err
	}
	mean := stat.Mean(actual, nil)
	var tss, rss float64
	for i := range actual {
		tss += (actual[i] - mean) * (actual[i] - mean)
		rss += (actual[i] - predicted[i]) * (actual[i] - predicted[i])
	}
	if tss == 0 {
		if rss == 0 {
			return 1, nil
		}
		return 0, nil
	}
	return 1 - rss/tss, nil
}

// Evaluate computes every measure at once. MAPE is left at zero when all
// actual values are zero.
func Evaluate(actual, predicted []float64) (Report, error) {
	if err := check("Evaluate", actual, predicted); err != nil {
		return Report{}, err
	}
	r := Report{N: len(actual)}
	r.MAE, _ = MAE(actual, predicted)
	r.MSE, _ = MSE(actual, predicted)
	r.RMSE = math.Sqrt(r.MSE)
	r.R2, _ = R2(actual, predicted)
	if mape, err := MAPE(actual, predicted); err == nil {
		r.MAPE = mape
	}
	return r, nil
}

// DirectionalAccuracy is the share of steps where the predicted move from the
// previous actual close has the same sign as the realized move.
func DirectionalAccuracy(previous, actual, predicted []float64) (float64, error) {
	if err := check("DirectionalAccuracy", actual, predicted); err != nil {
		return 0, err
	}
	if len(previous) != len(actual) {
		return 0, errors.Wrapf(ErrMismatch, "DirectionalAccuracy: %d previous vs %d actual", len(previous), len(actual))
	}
	var hits int
	for i := range actual {
		realized := actual[i] - previous[i]
		forecast := predicted[i] - previous[i]
		if (realized > 0 && forecast > 0) || (realized < 0 && forecast < 0) || (realized == 0 && forecast == 0) {
			hits++
		}
	}
	return float64(hits) / float64(len(actual)), nil
}
