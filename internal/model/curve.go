package model

import "fmt"

// IVCurve is an ordered sweep of (voltage, current) samples.
// Healthy modeled curves have strictly increasing voltage and non-increasing
// current; measured and fault-injected curves may violate the latter.
type IVCurve struct {
	Voltage []float64
	Current []float64
}

func (c IVCurve) Len() int {
	return len(c.Voltage)
}

// Validate checks that the curve has matching, non-empty arrays.
func (c IVCurve) Validate() error {
	if len(c.Voltage) == 0 || len(c.Current) == 0 {
		return &DataError{Reason: "empty I-V curve"}
	}
	if len(c.Voltage) != len(c.Current) {
		return &DataError{Reason: fmt.Sprintf("voltage/current length mismatch: %d vs %d", len(c.Voltage), len(c.Current))}
	}
	return nil
}

// Power returns V*I per sample.
func (c IVCurve) Power() []float64 {
	p := make([]float64, len(c.Voltage))
	for i := range p {
		p[i] = c.Voltage[i] * c.Current[i]
	}
	return p
}

// Scale returns the curve of n identical modules wired in series.
func (c IVCurve) Scale(modules int) IVCurve {
	out := IVCurve{
		Voltage: make([]float64, len(c.Voltage)),
		Current: make([]float64, len(c.Current)),
	}
	for i, v := range c.Voltage {
		out.Voltage[i] = v * float64(modules)
	}
	copy(out.Current, c.Current)
	return out
}
