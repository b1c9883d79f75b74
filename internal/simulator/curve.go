package simulator

import (
	"pvivy/internal/model"
	"pvivy/internal/singlediode"
	"pvivy/internal/translate"
)

// Request defaults.
const (
	DefaultIrradiance  = 1000
	DefaultTemperature = 25.0
)

// SimulateRequest asks for the I-V curve of a catalog module, optionally as a
// series string of identical modules. Nil fields take their defaults.
type SimulateRequest struct {
	Manufacturer string   `json:"manufacturer"`
	Model        string   `json:"model"`
	Irradiance   *int     `json:"irradiance,omitempty"`  // W/m², default 1000
	Temperature  *float64 `json:"temperature,omitempty"` // °C cell temperature, default 25
	Modules      int      `json:"modules,omitempty"`     // default 1
	Translator   string   `json:"translator,omitempty"`  // desoto or cec, default from config
}

// OperatingPoint resolves the request's defaults.
func (r SimulateRequest) OperatingPoint() model.OperatingPoint {
	op := model.OperatingPoint{Irradiance: DefaultIrradiance, CellTemperature: DefaultTemperature}
	if r.Irradiance != nil {
		op.Irradiance = float64(*r.Irradiance)
	}
	if r.Temperature != nil {
		op.CellTemperature = *r.Temperature
	}
	return op
}

// CurveResult is a sampled curve with per-sample power.
type CurveResult struct {
	Voltage []float64 `json:"voltage"`
	Current []float64 `json:"current"`
	Power   []float64 `json:"power"`
}

// Simulate translates p to op, solves the curve and scales voltage for a
// string of modules in series.
func Simulate(p model.ModuleParameters, op model.OperatingPoint, tr translate.Translator, s *singlediode.Solver, modules int) (CurveResult, error) {
	if modules < 1 {
		return CurveResult{}, &model.ConfigurationError{Field: "modules", Value: float64(modules), Reason: "must be at least 1"}
	}
	ep, err := tr.Translate(p, op)
	if err != nil {
		return CurveResult{}, err
	}
	curve, err := s.Solve(ep)
	if err != nil {
		return CurveResult{}, err
	}
	curve = curve.Scale(modules)
	return CurveResult{Voltage: curve.Voltage, Current: curve.Current, Power: curve.Power()}, nil
}
