package regression

import (
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

// exactData returns X with two independent columns and y = 3 + 2·x1 - x2
func exactData(n int) (*mat.Dense, []float64) {
	X := mat.NewDense(n, 2, nil)
	y := make([]float64, n)
	for i := 0; i < n; i++ {
		x1 := float64(i)
		x2 := float64((i * i) % 7)
		X.Set(i, 0, x1)
		X.Set(i, 1, x2)
		y[i] = 3 + 2*x1 - x2
	}
	return X, y
}

func TestLinearRegressionRecoversCoefficients(t *testing.T) {
	X, y := exactData(30)

	lr := NewLinearRegression()
	require.NoError(t, lr.Fit(X, y))

	w := lr.Weights()
	require.Len(t, w, 2)
	assert.InDelta(t, 2.0, w[0], 1e-9)
	assert.InDelta(t, -1.0, w[1], 1e-9)
	assert.InDelta(t, 3.0, lr.Intercept(), 1e-9)

	preds, err := lr.Predict(mat.NewDense(1, 2, []float64{10, 4}))
	require.NoError(t, err)
	assert.InDelta(t, 19.0, preds[0], 1e-9)
}

func TestLinearRegressionErrors(t *testing.T) {
	lr := NewLinearRegression()

	_, err := lr.Predict(mat.NewDense(1, 2, nil))
	assert.True(t, errors.Is(err, ErrNotFitted))

	err = lr.Fit(mat.NewDense(3, 2, nil), []float64{1, 2})
	assert.True(t, errors.Is(err, ErrDimensionMismatch))

	// second column carries no information
	X := mat.NewDense(10, 2, nil)
	y := make([]float64, 10)
	for i := 0; i < 10; i++ {
		X.Set(i, 0, float64(i))
		y[i] = float64(i)
	}
	err = lr.Fit(X, y)
	assert.True(t, errors.Is(err, ErrSingularMatrix))

	Xok, yok := exactData(10)
	require.NoError(t, lr.Fit(Xok, yok))
	_, err = lr.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestRidge(t *testing.T) {
	X, y := exactData(30)

	unpenalized := NewRidge(0)
	require.NoError(t, unpenalized.Fit(X, y))
	assert.InDelta(t, 2.0, unpenalized.Weights()[0], 1e-8)
	assert.InDelta(t, -1.0, unpenalized.Weights()[1], 1e-8)
	assert.InDelta(t, 3.0, unpenalized.Intercept(), 1e-8)

	shrunk := NewRidge(1e4)
	require.NoError(t, shrunk.Fit(X, y))
	assert.Less(t, shrunk.Weights()[0], 2.0)
	assert.Greater(t, shrunk.Weights()[0], 0.0)

	// collinear columns are fine once penalized
	Xc := mat.NewDense(10, 2, nil)
	yc := make([]float64, 10)
	for i := 0; i < 10; i++ {
		Xc.Set(i, 0, float64(i))
		Xc.Set(i, 1, float64(2*i))
		yc[i] = float64(i)
	}
	ridge := NewRidge(0.1)
	require.NoError(t, ridge.Fit(Xc, yc))
	preds, err := ridge.Predict(Xc)
	require.NoError(t, err)
	assert.InDelta(t, 5.0, preds[5], 0.05)

	_, err = NewRidge(1).Predict(Xc)
	assert.True(t, errors.Is(err, ErrNotFitted))
}

func TestStandardScaler(t *testing.T) {
	X := mat.NewDense(4, 2, []float64{
		1, 5,
		2, 5,
		3, 5,
		4, 5,
	})

	s := NewStandardScaler()
	out, err := s.FitTransform(X)
	require.NoError(t, err)

	assert.Equal(t, []float64{2.5, 5}, s.Mean)
	assert.Equal(t, 1.0, s.Scale[1])

	var sum float64
	for i := 0; i < 4; i++ {
		sum += out.At(i, 0)
		assert.Zero(t, out.At(i, 1))
	}
	assert.InDelta(t, 0, sum, 1e-12)

	_, err = NewStandardScaler().Transform(X)
	assert.True(t, errors.Is(err, ErrNotFitted))
	_, err = s.Transform(mat.NewDense(1, 3, nil))
	assert.True(t, errors.Is(err, ErrDimensionMismatch))
}

func TestPipelineMatchesPlainModel(t *testing.T) {
	X, y := exactData(25)

	model, err := New("linear", 0)
	require.NoError(t, err)
	require.NoError(t, model.Fit(X, y))
	assert.Equal(t, "linear", model.Name())

	preds, err := model.Predict(X)
	require.NoError(t, err)
	for i := range y {
		assert.InDelta(t, y[i], preds[i], 1e-8)
	}

	ridge, err := New("ridge", 0.5)
	require.NoError(t, err)
	assert.Equal(t, "ridge", ridge.Name())

	_, err = New("forest", 0)
	assert.Error(t, err)
}

func TestPersistence(t *testing.T) {
	X := mat.NewDense(3, 2, []float64{10, 0, 11, 0, 12, 0})
	p := NewPersistence(0)
	require.NoError(t, p.Fit(X, []float64{11, 12, 13}))

	preds, err := p.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, []float64{10, 11, 12}, preds)

	assert.Error(t, NewPersistence(5).Fit(X, []float64{1, 2, 3}))
}
