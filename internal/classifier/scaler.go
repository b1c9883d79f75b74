package classifier

import (
	"fmt"

	"gonum.org/v1/gonum/stat"
)

// minScale is the standard deviation below which a feature is treated as
// constant and left unscaled.
const minScale = 1e-10

// Scaler standardizes feature columns to zero mean and unit variance.
type Scaler struct {
	Mean  []float64 `json:"mean" msgpack:"mean"`
	Scale []float64 `json:"scale" msgpack:"scale"`
}

// FitScaler computes per-column population mean and standard deviation.
func FitScaler(x [][]float64) (Scaler, error) {
	if len(x) == 0 {
		return Scaler{}, fmt.Errorf("cannot fit scaler on zero rows")
	}
	cols := len(x[0])
	s := Scaler{Mean: make([]float64, cols), Scale: make([]float64, cols)}
	col := make([]float64, len(x))
	for j := 0; j < cols; j++ {
		for i, row := range x {
			if len(row) != cols {
				return Scaler{}, fmt.Errorf("row %d has %d columns, want %d", i, len(row), cols)
			}
			col[i] = row[j]
		}
		mean, std := stat.PopMeanStdDev(col, nil)
		if std < minScale {
			std = 1
		}
		s.Mean[j], s.Scale[j] = mean, std
	}
	return s, nil
}

// Transform returns a standardized copy of row.
func (s Scaler) Transform(row []float64) []float64 {
	out := make([]float64, len(row))
	for j, v := range row {
		out[j] = (v - s.Mean[j]) / s.Scale[j]
	}
	return out
}

// TransformAll standardizes every row.
func (s Scaler) TransformAll(x [][]float64) [][]float64 {
	out := make([][]float64, len(x))
	for i, row := range x {
		out[i] = s.Transform(row)
	}
	return out
}
