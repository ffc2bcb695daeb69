package regression

import (
	"math"

	"github.com/cockroachdb/errors"
	"gonum.org/v1/gonum/mat"
)

// StandardScaler shifts every column to zero mean and unit variance
type StandardScaler struct {
	Mean  []float64
	Scale []float64
}

// NewStandardScaler creates an unfitted scaler
func NewStandardScaler() *StandardScaler {
	return &StandardScaler{}
}

// Fit learns column means and population standard deviations.
// Constant columns get a scale of 1.
func (s *StandardScaler) Fit(X mat.Matrix) error {
	r, c := X.Dims()
	if r == 0 || c == 0 {
		return errors.Wrap(ErrEmptyData, "StandardScaler.Fit")
	}

	s.Mean = columnMeans(X)
	s.Scale = make([]float64, c)
	for j := 0; j < c; j++ {
		var sumSquares float64
		for i := 0; i < r; i++ {
			diff := X.At(i, j) - s.Mean[j]
			sumSquares += diff * diff
		}
		s.Scale[j] = math.Sqrt(sumSquares / float64(r))
		if s.Scale[j] < 1e-12 {
			s.Scale[j] = 1
		}
	}
	return nil
}

// Transform standardizes X with the learned statistics
func (s *StandardScaler) Transform(X mat.Matrix) (*mat.Dense, error) {
	if s.Mean == nil {
		return nil, errors.Wrap(ErrNotFitted, "StandardScaler.Transform")
	}
	r, c := X.Dims()
	if c != len(s.Mean) {
		return nil, errors.Wrapf(ErrDimensionMismatch, "StandardScaler.Transform: expected %d features, got %d", len(s.Mean), c)
	}

	out := mat.NewDense(r, c, nil)
	out.Apply(func(i, j int, v float64) float64 {
		return (v - s.Mean[j]) / s.Scale[j]
	}, X)
	return out, nil
}

// FitTransform fits and transforms in one step
func (s *StandardScaler) FitTransform(X mat.Matrix) (*mat.Dense, error) {
	if err := s.Fit(X); err != nil {
		return nil, err
	}
	return s.Transform(X)
}

// Pipeline standardizes features before handing them to a model
type Pipeline struct {
	Scaler *StandardScaler
	Model  Regressor
}

// NewPipeline chains a scaler and a model
func NewPipeline(scaler *StandardScaler, model Regressor) *Pipeline {
	return &Pipeline{Scaler: scaler, Model: model}
}

// Name implements Regressor
func (p *Pipeline) Name() string { return p.Model.Name() }

// Fit implements Regressor
func (p *Pipeline) Fit(X mat.Matrix, y []float64) error {
	if _, _, err := checkFitInput("Pipeline.Fit", X, y); err != nil {
		return err
	}
	scaled, err := p.Scaler.FitTransform(X)
	if err != nil {
		return err
	}
	return p.Model.Fit(scaled, y)
}

// Predict implements Regressor
func (p *Pipeline) Predict(X mat.Matrix) ([]float64, error) {
	scaled, err := p.Scaler.Transform(X)
	if err != nil {
		return nil, err
	}
	return p.Model.Predict(scaled)
}

// Persistence predicts that the next close equals the latest close, read from
// one feature column. It is the baseline every model has to beat.
type Persistence struct {
	Column    int
	nFeatures int
	fitted    bool
}

// NewPersistence creates a baseline reading the given column
func NewPersistence(column int) *Persistence {
	return &Persistence{Column: column}
}

// Name implements Regressor
func (p *Persistence) Name() string { return "persistence" }

// Fit only records the feature count
func (p *Persistence) Fit(X mat.Matrix, y []float64) error {
	_, c, err := checkFitInput("Persistence.Fit", X, y)
	if err != nil {
		return err
	}
	if p.Column < 0 || p.Column >= c {
		return errors.Wrapf(ErrDimensionMismatch, "Persistence.Fit: column %d outside %d features", p.Column, c)
	}
	p.nFeatures = c
	p.fitted = true
	return nil
}

// Predict copies the configured column
func (p *Persistence) Predict(X mat.Matrix) ([]float64, error) {
	if !p.fitted {
		return nil, errors.Wrap(ErrNotFitted, "Persistence.Predict")
	}
	r, err := checkPredictInput("Persistence.Predict", X, p.nFeatures)
	if err != nil {
		return nil, err
	}
	out := make([]float64, r)
	for i := range out {
		out[i] = X.At(i, p.Column)
	}
	return out, nil
}
