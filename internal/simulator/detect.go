package simulator

import (
	"context"
	"fmt"
	"sync"

	"pvivy/internal/classifier"
	"pvivy/internal/features"
	"pvivy/internal/log"
	"pvivy/internal/model"
)

// DetectRequest carries a measured curve and the modeled curve it is judged
// against. ModuleTypeCode is the technology class code; when absent it
// defaults to 0.
type DetectRequest struct {
	MeasuredVoltage []float64 `json:"measured_voltage"`
	MeasuredCurrent []float64 `json:"measured_current"`
	ModeledVoltage  []float64 `json:"modeled_voltage"`
	ModeledCurrent  []float64 `json:"modeled_current"`
	ModuleTypeCode  *int      `json:"module_type_code,omitempty"`
}

type DetectResult struct {
	Anomaly       model.FaultLabel             `json:"anomaly"`
	Probabilities map[model.FaultLabel]float64 `json:"probabilities"`
	ModelID       string                       `json:"model_id"`
}

// Detector classifies measured curves with a model from Source. The model is
// loaded on first use and kept.
type Detector struct {
	source classifier.Source

	mu    sync.Mutex
	model *classifier.TrainedModel
}

func NewDetector(source classifier.Source) *Detector {
	return &Detector{source: source}
}

// Model returns the cached model, loading it if needed.
func (d *Detector) Model(ctx context.Context) (*classifier.TrainedModel, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.model != nil {
		return d.model, nil
	}
	if d.source == nil {
		return nil, &model.ModelError{Reason: "no trained model"}
	}
	m, err := d.source.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading classifier: %w", err)
	}
	d.model = m
	return m, nil
}

// Current returns the cached model without loading, or nil.
func (d *Detector) Current() *classifier.TrainedModel {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.model
}

// SetModel replaces the cached model.
func (d *Detector) SetModel(m *classifier.TrainedModel) {
	d.mu.Lock()
	d.model = m
	d.mu.Unlock()
}

// Features extracts the measured curve's feature vector normalized against
// the modeled curve's nameplate point.
func (r DetectRequest) Features() (model.FeatureVector, error) {
	if len(r.MeasuredVoltage) == 0 || len(r.MeasuredCurrent) == 0 {
		return model.FeatureVector{}, &model.DataError{Reason: "please upload measured data"}
	}
	modeled := model.IVCurve{Voltage: r.ModeledVoltage, Current: r.ModeledCurrent}
	if err := modeled.Validate(); err != nil {
		return model.FeatureVector{}, fmt.Errorf("modeled curve: %w", err)
	}
	ref, err := features.ReferenceFromCurve(modeled)
	if err != nil {
		return model.FeatureVector{}, err
	}
	fv, err := features.Extract(model.IVCurve{Voltage: r.MeasuredVoltage, Current: r.MeasuredCurrent}, ref)
	if err != nil {
		return model.FeatureVector{}, err
	}

	code := 0
	if r.ModuleTypeCode != nil {
		code = *r.ModuleTypeCode
	} else {
		log.Warnw("detect request has no module_type_code, defaulting to 0")
	}
	return fv.With(model.FeatureModuleTypeCode, float64(code)), nil
}

// Detect labels the request's measured curve.
func (d *Detector) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	fv, err := req.Features()
	if err != nil {
		return DetectResult{}, err
	}
	m, err := d.Model(ctx)
	if err != nil {
		return DetectResult{}, err
	}
	proba, err := m.PredictProba(fv)
	if err != nil {
		return DetectResult{}, err
	}
	label := m.Classes[0]
	for _, c := range m.Classes[1:] {
		if proba[c] > proba[label] {
			label = c
		}
	}
	return DetectResult{Anomaly: label, Probabilities: proba, ModelID: m.ID.String()}, nil
}
