// Package singlediode evaluates the single-diode equivalent circuit
//
//	I = IL - I0*(exp((V+I*Rs)/nNsVth) - 1) - (V+I*Rs)/Rsh
//
// in closed form using the Lambert W function.
package singlediode

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"pvivy/internal/lambertw"
	"pvivy/internal/model"
)

// DefaultPoints is the number of voltage samples in a solved curve.
const DefaultPoints = 100

// Solver samples I-V curves at a fixed resolution.
type Solver struct {
	Points int
}

func New(points int) *Solver {
	return &Solver{Points: points}
}

// Solve samples a curve with DefaultPoints points.
func Solve(p model.ElectricalParameters) (model.IVCurve, error) {
	return New(DefaultPoints).Solve(p)
}

// Solve computes the open-circuit voltage, then samples current uniformly on
// [0, Voc]. A non-positive Voc yields an all-zero curve.
func (s *Solver) Solve(p model.ElectricalParameters) (model.IVCurve, error) {
	if s.Points < 2 {
		return model.IVCurve{}, &model.ConfigurationError{
			Field: "points", Value: float64(s.Points), Reason: "curve needs at least 2 samples",
		}
	}
	if err := Validate(p); err != nil {
		return model.IVCurve{}, err
	}

	curve := model.IVCurve{
		Voltage: make([]float64, s.Points),
		Current: make([]float64, s.Points),
	}

	voc := OpenCircuitVoltage(p)
	if math.IsNaN(voc) || math.IsInf(voc, 0) {
		return model.IVCurve{}, &model.ModelError{Reason: fmt.Sprintf("open-circuit voltage is not finite (%g)", voc)}
	}
	if voc <= 0 {
		return curve, nil
	}

	last := s.Points - 1
	for i := 0; i < s.Points; i++ {
		v := voc * float64(i) / float64(last)
		if i == last {
			v = voc
		}
		curve.Voltage[i] = v
		curve.Current[i] = CurrentAt(p, v)
	}
	return curve, nil
}

// Validate rejects parameters the closed-form solution is undefined for.
func Validate(p model.ElectricalParameters) error {
	inputs := []struct {
		name  string
		value float64
	}{
		{"photocurrent", p.Photocurrent},
		{"saturation current", p.SaturationCurrent},
		{"series resistance", p.SeriesResistance},
		{"shunt resistance", p.ShuntResistance},
		{"nNsVth", p.NNsVth},
	}
	for _, in := range inputs {
		if math.IsNaN(in.value) || math.IsInf(in.value, 0) {
			return &model.ModelError{Reason: fmt.Sprintf("%s is not finite (%g)", in.name, in.value)}
		}
	}
	switch {
	case p.ShuntResistance <= 0:
		return &model.ModelError{Reason: fmt.Sprintf("shunt resistance must be positive, got %g", p.ShuntResistance)}
	case p.NNsVth <= 0:
		return &model.ModelError{Reason: fmt.Sprintf("thermal voltage term must be positive, got %g", p.NNsVth)}
	case p.SaturationCurrent <= 0:
		return &model.ModelError{Reason: fmt.Sprintf("saturation current must be positive, got %g", p.SaturationCurrent)}
	case p.SeriesResistance < 0:
		return &model.ModelError{Reason: fmt.Sprintf("series resistance must be non-negative, got %g", p.SeriesResistance)}
	}
	return nil
}

// OpenCircuitVoltage returns V at I = 0.
func OpenCircuitVoltage(p model.ElectricalParameters) float64 {
	return VoltageAt(p, 0)
}

// ShortCircuitCurrent returns I at V = 0.
func ShortCircuitCurrent(p model.ElectricalParameters) float64 {
	return CurrentAt(p, 0)
}

// CurrentAt solves the diode equation for current at terminal voltage v.
func CurrentAt(p model.ElectricalParameters, v float64) float64 {
	il, i0, rs, a := p.Photocurrent, p.SaturationCurrent, p.SeriesResistance, p.NNsVth
	gsh := 1 / p.ShuntResistance

	if rs == 0 {
		return il - i0*math.Expm1(v/a) - gsh*v
	}

	// W argument: Rs*I0/(a*(Rs*Gsh+1)) * exp((Rs*(IL+I0)+V)/(a*(Rs*Gsh+1))), in log space.
	d := rs*gsh + 1
	logArg := math.Log(rs) + math.Log(i0) - math.Log(a) - math.Log(d) + (rs*(il+i0)+v)/(a*d)
	w := lambertw.WExp(logArg)

	return (il+i0-v*gsh)/d - (a/rs)*w
}

// VoltageAt solves the diode equation for terminal voltage at current i.
func VoltageAt(p model.ElectricalParameters, i float64) float64 {
	il, i0, rs, a := p.Photocurrent, p.SaturationCurrent, p.SeriesResistance, p.NNsVth
	gsh := 1 / p.ShuntResistance

	// W argument: I0/(Gsh*a) * exp((IL+I0-I)/(Gsh*a)), in log space.
	logArg := math.Log(i0) - math.Log(gsh) - math.Log(a) + (il+i0-i)/(gsh*a)
	w := lambertw.WExp(logArg)

	return (il+i0-i)/gsh - i*rs - a*w
}

// PowerPoint is the sampled maximum power point of a curve.
type PowerPoint struct {
	Index int
	Vmp   float64
	Imp   float64
	Pmp   float64
}

// MaxPowerPoint returns the sample with the largest V*I. The first maximum
// wins on ties.
func MaxPowerPoint(curve model.IVCurve) (PowerPoint, error) {
	if err := curve.Validate(); err != nil {
		return PowerPoint{}, err
	}
	power := curve.Power()
	k := floats.MaxIdx(power)
	return PowerPoint{Index: k, Vmp: curve.Voltage[k], Imp: curve.Current[k], Pmp: power[k]}, nil
}
