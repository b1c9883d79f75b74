// Package simulator serves the request-level operations: simulating a
// catalog module's curve, classifying measured curves, and retraining the
// classifier from the catalog.
package simulator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"pvivy/internal/catalog"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/translate"
)

// ErrTrainingInProgress is returned by Train while another run is active.
var ErrTrainingInProgress = errors.New("training already in progress")

// TrainProgress is emitted after each generated signature.
type TrainProgress struct {
	RunID string
	Done  int
	Total int
}

// TrainResult summarizes a finished training run. Report is nil when
// validation was skipped.
type TrainResult struct {
	RunID      string
	ModelID    string
	Signatures int
	Report     *classifier.Report
	Elapsed    time.Duration
	Err        error
}

// Callback receives training events.
type Callback interface {
	OnTrainProgress(p TrainProgress)
	OnTrainDone(r TrainResult)
}

// Engine binds the catalog, configuration and classifier together.
type Engine struct {
	mu       sync.Mutex
	cfg      config.Config
	catalog  *catalog.Catalog
	detector *Detector
	callback Callback
	training bool
}

func New(cfg config.Config, cat *catalog.Catalog, source classifier.Source) *Engine {
	return &Engine{
		cfg:      cfg,
		catalog:  cat,
		detector: NewDetector(source),
	}
}

// SetCallback installs the training event sink. Pass nil to disable.
func (e *Engine) SetCallback(cb Callback) {
	e.mu.Lock()
	e.callback = cb
	e.mu.Unlock()
}

func (e *Engine) Catalog() *catalog.Catalog {
	return e.catalog
}

// Detector returns the engine's classifier front end.
func (e *Engine) Detector() *Detector {
	return e.detector
}

// Simulate looks up the requested module and returns its curve.
func (e *Engine) Simulate(req SimulateRequest) (CurveResult, error) {
	mod, err := e.catalog.Lookup(req.Manufacturer, req.Model)
	if err != nil {
		return CurveResult{}, err
	}

	kind := req.Translator
	if kind == "" {
		kind = e.cfg.Translator.Kind
	}
	k, err := translate.ParseKind(kind)
	if err != nil {
		return CurveResult{}, &model.ConfigurationError{Field: "translator", Reason: err.Error()}
	}
	tr, err := translate.For(k, e.cfg.Translator.Constants)
	if err != nil {
		return CurveResult{}, err
	}

	modules := req.Modules
	if modules == 0 {
		modules = 1
	}
	return Simulate(mod.Params, req.OperatingPoint(), tr, e.cfg.NewSolver(), modules)
}

// Detect classifies a measured curve.
func (e *Engine) Detect(ctx context.Context, req DetectRequest) (DetectResult, error) {
	return e.detector.Detect(ctx, req)
}

// Train builds a signature library from the catalog, optionally
// cross-validates, fits a new classifier and installs it for Detect. Only one
// run may be active at a time.
func (e *Engine) Train(ctx context.Context, validate bool) (*classifier.TrainedModel, TrainResult, error) {
	e.mu.Lock()
	if e.training {
		e.mu.Unlock()
		return nil, TrainResult{}, ErrTrainingInProgress
	}
	e.training = true
	cb := e.callback
	e.mu.Unlock()

	defer func() {
		e.mu.Lock()
		e.training = false
		e.mu.Unlock()
	}()

	res := TrainResult{RunID: uuid.NewString()}
	start := time.Now()
	m, err := e.train(ctx, cb, &res)
	res.Elapsed = time.Since(start)
	res.Err = err
	if err == nil {
		res.ModelID = m.ID.String()
		e.detector.SetModel(m)
	}
	if cb != nil {
		cb.OnTrainDone(res)
	}
	if err != nil {
		log.Errorw("training failed", "run_id", res.RunID, "error", err)
		return nil, res, err
	}
	log.Infow("classifier installed", "run_id", res.RunID, "model_id", res.ModelID, "elapsed", res.Elapsed)
	return m, res, nil
}

func (e *Engine) train(ctx context.Context, cb Callback, res *TrainResult) (*classifier.TrainedModel, error) {
	gen, err := e.cfg.NewGenerator()
	if err != nil {
		return nil, err
	}
	if cb != nil {
		gen.Progress = func(done, total int) {
			cb.OnTrainProgress(TrainProgress{RunID: res.RunID, Done: done, Total: total})
		}
	}

	lib, err := gen.Generate(ctx, e.catalog.ByTechnology(), e.cfg.Signature.Seed)
	if err != nil {
		return nil, fmt.Errorf("generating signatures: %w", err)
	}
	res.Signatures = len(lib)

	if validate {
		report, err := classifier.CrossValidate(lib, e.cfg.Classifier)
		if err != nil {
			return nil, fmt.Errorf("cross-validating: %w", err)
		}
		res.Report = &report
	}
	return classifier.Fit(lib, e.cfg.Classifier)
}
