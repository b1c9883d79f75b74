// Package translate converts reference module parameters into single-diode
// electrical parameters at a given irradiance and cell temperature.
package translate

import (
	"fmt"
	"math"
	"strings"

	"pvivy/internal/model"
)

// Boltzmann constant in eV/K.
const boltzmannEV = 8.617332478e-05

const zeroCelsius = 273.15

// Constants are the bandgap and reference-condition inputs shared by both
// translators.
type Constants struct {
	EgRef          float64 `yaml:"eg_ref"`          // eV
	DEgDT          float64 `yaml:"degdt"`           // 1/K
	IrradianceRef  float64 `yaml:"irradiance_ref"`  // W/m²
	TemperatureRef float64 `yaml:"temperature_ref"` // °C
}

// DefaultConstants are the silicon values used for catalog modules.
func DefaultConstants() Constants {
	return Constants{
		EgRef:          1.121,
		DEgDT:          -0.0002677,
		IrradianceRef:  1000,
		TemperatureRef: 25,
	}
}

// Translator maps reference parameters to an operating point.
type Translator interface {
	Translate(p model.ModuleParameters, op model.OperatingPoint) (model.ElectricalParameters, error)
}

// Kind selects a Translator implementation at call time.
type Kind string

const (
	KindDeSoto Kind = "desoto"
	KindCEC    Kind = "cec"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case KindDeSoto:
		return KindDeSoto, nil
	case KindCEC:
		return KindCEC, nil
	}
	return "", fmt.Errorf("unknown translator %q", s)
}

// For returns the translator for kind.
func For(kind Kind, c Constants) (Translator, error) {
	switch kind {
	case KindDeSoto:
		return DeSoto{Constants: c}, nil
	case KindCEC:
		return CEC{Constants: c}, nil
	}
	return nil, fmt.Errorf("unknown translator %q", kind)
}

// Translate runs the kind translator with default constants.
func Translate(p model.ModuleParameters, op model.OperatingPoint, kind Kind) (model.ElectricalParameters, error) {
	t, err := For(kind, DefaultConstants())
	if err != nil {
		return model.ElectricalParameters{}, err
	}
	return t.Translate(p, op)
}

// DeSoto is the five-parameter model of De Soto et al. (2006).
type DeSoto struct {
	Constants Constants
}

func (d DeSoto) Translate(p model.ModuleParameters, op model.OperatingPoint) (model.ElectricalParameters, error) {
	return desoto(d.Constants, p, p.AlphaSc, op)
}

// CEC is the De Soto model with the CEC database's Adjust percentage applied
// to the short-circuit temperature coefficient.
type CEC struct {
	Constants Constants
}

func (c CEC) Translate(p model.ModuleParameters, op model.OperatingPoint) (model.ElectricalParameters, error) {
	return desoto(c.Constants, p, p.AlphaSc*(1-p.Adjust/100), op)
}

func desoto(c Constants, p model.ModuleParameters, alphaSc float64, op model.OperatingPoint) (model.ElectricalParameters, error) {
	tRefK := c.TemperatureRef + zeroCelsius
	tCellK := op.CellTemperature + zeroCelsius

	checks := []struct {
		field  string
		value  float64
		ok     bool
		reason string
	}{
		{"irradiance_ref", c.IrradianceRef, c.IrradianceRef > 0, "reference irradiance must be positive"},
		{"temperature_ref", c.TemperatureRef, c.TemperatureRef > 0, "reference temperature must be positive"},
		{"irradiance", op.Irradiance, op.Irradiance > 0, "irradiance must be positive"},
		{"temperature", op.CellTemperature, tCellK > 0, "cell temperature must be above absolute zero"},
		{string(model.FieldARef), p.ARef, p.ARef > 0, "must be positive"},
		{string(model.FieldIoRef), p.IoRef, p.IoRef > 0, "must be positive"},
		{string(model.FieldRshRef), p.RshRef, p.RshRef > 0, "must be positive"},
		{string(model.FieldRs), p.Rs, p.Rs >= 0, "must be non-negative"},
	}
	for _, chk := range checks {
		if !chk.ok || math.IsNaN(chk.value) {
			return model.ElectricalParameters{}, &model.ConfigurationError{Field: chk.field, Value: chk.value, Reason: chk.reason}
		}
	}

	dT := tCellK - tRefK
	ratio := tCellK / tRefK
	s := op.Irradiance / c.IrradianceRef

	eg := c.EgRef * (1 + c.DEgDT*dT)
	nNsVth := p.ARef * ratio
	il := s * (p.ILRef + alphaSc*dT)
	i0 := p.IoRef * ratio * ratio * ratio * math.Exp(c.EgRef/(boltzmannEV*tRefK)-eg/(boltzmannEV*tCellK))
	rsh := p.RshRef / s

	return model.ElectricalParameters{
		Photocurrent:      il,
		SaturationCurrent: i0,
		SeriesResistance:  p.Rs,
		ShuntResistance:   rsh,
		NNsVth:            nNsVth,
	}, nil
}
