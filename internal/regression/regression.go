// Package regression provides the price models: ordinary least squares,
// ridge regression, a standard scaler and a persistence baseline. All models
// share the Regressor interface so the pipeline can swap them freely.
package regression

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// Sentinel errors shared by every model
var (
	ErrEmptyData         = errors.New("empty data")
	ErrDimensionMismatch = errors.New("dimension mismatch")
	ErrNotFitted         = errors.New("model is not fitted")
	ErrSingularMatrix    = errors.New("singular matrix")
)

// Regressor is a model that maps feature rows to a single target
type Regressor interface {
	Fit(X mat.Matrix, y []float64) error
	Predict(X mat.Matrix) ([]float64, error)
	Name() string
}

// Coefficients is implemented by linear models
type Coefficients interface {
	Weights() []float64
	Intercept() float64
}

// New returns the regressor registered under name, wrapped with a standard scaler
func New(name string, alpha float64) (Regressor, error) {
	switch name {
	case "linear", "":
		return NewPipeline(NewStandardScaler(), NewLinearRegression()), nil
	case "ridge":
		return NewPipeline(NewStandardScaler(), NewRidge(alpha)), nil
	default:
		return nil, errors.Newf("unknown model %q", name)
	}
}

func checkFitInput(op string, X mat.Matrix, y []float64) (int, int, error) {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return 0, 0, errors.Wrap(ErrEmptyData, op)
	}
	if len(y) != r {
		return 0, 0, errors.Wrapf(ErrDimensionMismatch, "%s: X has %d rows, y has %d", op, r, len(y))
	}
	return r, c, nil
}

func checkPredictInput(op string, X mat.Matrix, nFeatures int) (int, error) {
	r, c := X.Dims()
	if r == 0 {
		return 0, errors.Wrap(ErrEmptyData, op)
	}
	if c != nFeatures {
		return 0, errors.Wrapf(ErrDimensionMismatch, "%s: expected %d features, got %d", op, nFeatures, c)
	}
	return r, nil
}

// columnMeans returns the mean of every column
func columnMeans(X mat.Matrix) []float64 {
	r, c := X.Dims()
	means := make([]float64, c)
	for j := 0; j < c; j++ {
		var sum float64
		for i := 0; i < r; i++ {
			sum += X.At(i, j)
		}
		means[j] = sum / float64(r)
	}
	return means
}

// linearPredict evaluates X·w + b
func linearPredict(X mat.Matrix, w *mat.VecDense, b float64) []float64 {
	r, _ := X.Dims()
	var out mat.VecDense
	out.MulVec(X, w)
	preds := make([]float64, r)
	for i := range preds {
		preds[i] = out.AtVec(i) + b
	}
	return preds
}

func vecToSlice(v *mat.VecDense) []float64 {
	if v == nil {
		return nil
	}
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
