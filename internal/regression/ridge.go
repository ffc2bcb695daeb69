package regression

import (
	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// Ridge is L2-penalized least squares; the intercept is not penalized
type Ridge struct {
	Alpha float64

	weights   *mat.VecDense
	intercept float64
	nFeatures int
	fitted    bool
}

// NewRidge creates an unfitted ridge model
func NewRidge(alpha float64) *Ridge {
	if alpha < 0 {
		alpha = 0
	}
	return &Ridge{Alpha: alpha}
}

// Name implements Regressor
func (m *Ridge) Name() string { return "ridge" }

// Fit solves (XcᵀXc + αI)·w = Xcᵀyc on centered data
func (m *Ridge) Fit(X mat.Matrix, y []float64) error {
	r, c, err := checkFitInput("Ridge.Fit", X, y)
	if err != nil {
		return err
	}

	xMean := columnMeans(X)
	var yMean float64
	for _, v := range y {
		yMean += v
	}
	yMean /= float64(r)

	xc := mat.NewDense(r, c, nil)
	yc := mat.NewVecDense(r, nil)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xc.Set(i, j, X.At(i, j)-xMean[j])
		}
		yc.SetVec(i, y[i]-yMean)
	}

	gram := mat.NewSymDense(c, nil)
	gram.SymOuterK(1, xc.T())
	for j := 0; j < c; j++ {
		gram.SetSym(j, j, gram.At(j, j)+m.Alpha)
	}

	var xty mat.VecDense
	xty.MulVec(xc.T(), yc)

	var chol mat.Cholesky
	if ok := chol.Factorize(gram); !ok {
		return errors.Wrap(ErrSingularMatrix, "Ridge.Fit: gram matrix is not positive definite")
	}

	w := mat.NewVecDense(c, nil)
	if err := chol.SolveVecTo(w, &xty); err != nil {
		return errors.Wrap(err, "Ridge.Fit")
	}

	m.intercept = yMean - mat.Dot(mat.NewVecDense(c, xMean), w)
	m.weights = w
	m.nFeatures = c
	m.fitted = true
	return nil
}

// Predict returns X·w + b
func (m *Ridge) Predict(X mat.Matrix) ([]float64, error) {
	if !m.fitted {
		return nil, errors.Wrap(ErrNotFitted, "Ridge.Predict")
	}
	if _, err := checkPredictInput("Ridge.Predict", X, m.nFeatures); err != nil {
		return nil, err
	}
	return linearPredict(X, m.weights, m.intercept), nil
}

// Weights returns the fitted coefficients
func (m *Ridge) Weights() []float64 { return vecToSlice(m.weights) }

// Intercept returns the fitted intercept
func (m *Ridge) Intercept() float64 { return m.intercept }
