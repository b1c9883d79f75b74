package model

import (
	"fmt"
	"strings"
)

// FaultLabel is the anomaly category assigned to an I-V curve.
type FaultLabel string

const (
	FaultHealthy     FaultLabel = "Healthy"
	FaultPID         FaultLabel = "PID"
	FaultSoiling     FaultLabel = "Soiling"
	FaultShading     FaultLabel = "Shading"
	FaultRsIncrease  FaultLabel = "Rs_increase"
	FaultBypassDiode FaultLabel = "Bypass_Diode_Short"
)

// AllFaultLabels lists labels in the order signature libraries are built.
var AllFaultLabels = []FaultLabel{
	FaultHealthy, FaultPID, FaultSoiling, FaultShading, FaultRsIncrease, FaultBypassDiode,
}

func ParseFaultLabel(s string) (FaultLabel, error) {
	for _, l := range AllFaultLabels {
		if string(l) == s {
			return l, nil
		}
	}
	return "", fmt.Errorf("unknown fault label %q", s)
}

// Technology is a module cell technology class.
type Technology string

const (
	TechMonoSi   Technology = "Mono-c-Si"
	TechMultiSi  Technology = "Multi-c-Si"
	TechThinFilm Technology = "Thin Film"
)

// AllTechnologies is ordered by technology code.
var AllTechnologies = []Technology{TechMonoSi, TechMultiSi, TechThinFilm}

// Code returns the numeric class code used as the module_type_code feature,
// or -1 for an unknown technology.
func (t Technology) Code() int {
	for i, tt := range AllTechnologies {
		if tt == t {
			return i
		}
	}
	return -1
}

// Supports reports whether a fault mode applies to this technology.
// Thin-film modules have no per-substring bypass diodes.
func (t Technology) Supports(l FaultLabel) bool {
	if l == FaultBypassDiode {
		return t == TechMonoSi || t == TechMultiSi
	}
	return true
}

// TechnologyFromCode is the inverse of Code.
func TechnologyFromCode(code int) (Technology, bool) {
	if code < 0 || code >= len(AllTechnologies) {
		return "", false
	}
	return AllTechnologies[code], true
}

// ParseTechnology matches a catalog technology string, ignoring case and
// surrounding whitespace.
func ParseTechnology(s string) (Technology, error) {
	s = strings.TrimSpace(s)
	for _, t := range AllTechnologies {
		if strings.EqualFold(string(t), s) {
			return t, nil
		}
	}
	return "", fmt.Errorf("unknown technology %q", s)
}
