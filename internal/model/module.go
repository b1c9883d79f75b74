package model

import "fmt"

// Field names a ModuleParameters value. Names match the catalog column headers
// so perturbation tables and CSV files share one vocabulary.
type Field string

const (
	FieldNs     Field = "N_s"
	FieldIscRef Field = "I_sc_ref"
	FieldVocRef Field = "V_oc_ref"
	FieldImpRef Field = "I_mp_ref"
	FieldVmpRef Field = "V_mp_ref"
	FieldAlpha  Field = "alpha_sc"
	FieldBeta   Field = "beta_oc"
	FieldARef   Field = "a_ref"
	FieldILRef  Field = "I_L_ref"
	FieldIoRef  Field = "I_o_ref"
	FieldRs     Field = "R_s"
	FieldRshRef Field = "R_sh_ref"
	FieldAdjust Field = "Adjust"
)

// AllFields lists every addressable field in catalog column order.
var AllFields = []Field{
	FieldNs, FieldIscRef, FieldVocRef, FieldImpRef, FieldVmpRef,
	FieldAlpha, FieldBeta, FieldARef, FieldILRef, FieldIoRef,
	FieldRs, FieldRshRef, FieldAdjust,
}

// ModuleParameters holds nameplate and reference single-diode parameters for
// one PV module. It is a value type; use With to derive a modified copy.
type ModuleParameters struct {
	Ns      int     // cells in series
	IscRef  float64 // A
	VocRef  float64 // V
	ImpRef  float64 // A
	VmpRef  float64 // V
	AlphaSc float64 // A/K
	BetaOc  float64 // V/K
	ARef    float64 // V, modified ideality factor n*Ns*Vth at reference
	ILRef   float64 // A
	IoRef   float64 // A
	Rs      float64 // Ω
	RshRef  float64 // Ω
	// Adjust is the CEC percentage adjustment applied to AlphaSc.
	Adjust float64
}

// Nameplate is the reference point a curve's features are normalized against.
type Nameplate struct {
	Isc float64
	Voc float64
	Imp float64
	Vmp float64
}

// Nameplate returns the module's reference Isc/Voc/Imp/Vmp.
func (p ModuleParameters) Nameplate() Nameplate {
	return Nameplate{Isc: p.IscRef, Voc: p.VocRef, Imp: p.ImpRef, Vmp: p.VmpRef}
}

// Get returns the value of a named field.
func (p ModuleParameters) Get(f Field) (float64, error) {
	switch f {
	case FieldNs:
		return float64(p.Ns), nil
	case FieldIscRef:
		return p.IscRef, nil
	case FieldVocRef:
		return p.VocRef, nil
	case FieldImpRef:
		return p.ImpRef, nil
	case FieldVmpRef:
		return p.VmpRef, nil
	case FieldAlpha:
		return p.AlphaSc, nil
	case FieldBeta:
		return p.BetaOc, nil
	case FieldARef:
		return p.ARef, nil
	case FieldILRef:
		return p.ILRef, nil
	case FieldIoRef:
		return p.IoRef, nil
	case FieldRs:
		return p.Rs, nil
	case FieldRshRef:
		return p.RshRef, nil
	case FieldAdjust:
		return p.Adjust, nil
	}
	return 0, fmt.Errorf("unknown module field %q", f)
}

// With returns a copy of p with the named field set to v.
func (p ModuleParameters) With(f Field, v float64) (ModuleParameters, error) {
	switch f {
	case FieldNs:
		p.Ns = int(v)
	case FieldIscRef:
		p.IscRef = v
	case FieldVocRef:
		p.VocRef = v
	case FieldImpRef:
		p.ImpRef = v
	case FieldVmpRef:
		p.VmpRef = v
	case FieldAlpha:
		p.AlphaSc = v
	case FieldBeta:
		p.BetaOc = v
	case FieldARef:
		p.ARef = v
	case FieldILRef:
		p.ILRef = v
	case FieldIoRef:
		p.IoRef = v
	case FieldRs:
		p.Rs = v
	case FieldRshRef:
		p.RshRef = v
	case FieldAdjust:
		p.Adjust = v
	default:
		return p, fmt.Errorf("unknown module field %q", f)
	}
	return p, nil
}

// ParseField validates a field name.
func ParseField(s string) (Field, error) {
	for _, f := range AllFields {
		if string(f) == s {
			return f, nil
		}
	}
	return "", fmt.Errorf("unknown module field %q", s)
}

// OperatingPoint is the irradiance (W/m²) and cell temperature (°C) a module
// is simulated at.
type OperatingPoint struct {
	Irradiance      float64
	CellTemperature float64
}

// ReferenceOperatingPoint is standard test conditions.
var ReferenceOperatingPoint = OperatingPoint{Irradiance: 1000, CellTemperature: 25}

// ElectricalParameters are the five single-diode equation inputs at one
// operating point.
type ElectricalParameters struct {
	Photocurrent      float64 // IL, A
	SaturationCurrent float64 // I0, A
	SeriesResistance  float64 // Rs, Ω
	ShuntResistance   float64 // Rsh, Ω
	NNsVth            float64 // n*Ns*Vth, V
}
