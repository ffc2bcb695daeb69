package regression

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// LinearRegression fits ordinary least squares with an intercept
type LinearRegression struct {
	weights   *mat.VecDense
	intercept float64
	nFeatures int
	fitted    bool
}

// NewLinearRegression creates an unfitted OLS model
func NewLinearRegression() *LinearRegression {
	return &LinearRegression{}
}

// Name implements Regressor
func (lr *LinearRegression) Name() string { return "linear" }

// Fit solves min ||[1 X]·w - y||² with a QR factorization
func (lr *LinearRegression) Fit(X mat.Matrix, y []float64) error {
	r, c, err := checkFitInput("LinearRegression.Fit", X, y)
	if err != nil {
		return err
	}
	if r < c+1 {
		return errors.Wrapf(ErrEmptyData, "LinearRegression.Fit: %d rows cannot determine %d coefficients", r, c+1)
	}

	// prepend the intercept column
	design := mat.NewDense(r, c+1, nil)
	for i := 0; i < r; i++ {
		design.Set(i, 0, 1)
		for j := 0; j < c; j++ {
			design.Set(i, j+1, X.At(i, j))
		}
	}

	var qr mat.QR
	qr.Factorize(design)

	var coef mat.Dense
	if err := qr.SolveTo(&coef, false, mat.NewDense(r, 1, append([]float64(nil), y...))); err != nil {
		var cond mat.Condition
		if errors.As(err, &cond) {
			return errors.Wrapf(ErrSingularMatrix, "LinearRegression.Fit: condition number %.3g", float64(cond))
		}
		return errors.Wrap(err, "LinearRegression.Fit")
	}

	lr.intercept = coef.At(0, 0)
	lr.weights = mat.NewVecDense(c, nil)
	for j := 0; j < c; j++ {
		lr.weights.SetVec(j, coef.At(j+1, 0))
	}
	lr.nFeatures = c
	lr.fitted = true
	return nil
}

// Predict returns X·w + b
func (lr *LinearRegression) Predict(X mat.Matrix) ([]float64, error) {
	if !lr.fitted {
		return nil, errors.Wrap(ErrNotFitted, "LinearRegression.Predict")
	}
	if _, err := checkPredictInput("LinearRegression.Predict", X, lr.nFeatures); err != nil {
		return nil, err
	}
	return linearPredict(X, lr.weights, lr.intercept), nil
}

// Weights returns the fitted coefficients
func (lr *LinearRegression) Weights() []float64 { return vecToSlice(lr.weights) }

// Intercept returns the fitted intercept
func (lr *LinearRegression) Intercept() float64 { return lr.intercept }
