package simulator

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/catalog"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/model"
)

var monoSi = model.ModuleParameters{
	Ns: 96, IscRef: 5.1, VocRef: 59.4, ImpRef: 4.69, VmpRef: 46.9,
	AlphaSc: 0.004539, BetaOc: -0.22216, ARef: 2.6373,
	ILRef: 5.114, IoRef: 8.196e-10, Rs: 1.065, RshRef: 381.68, Adjust: 8.7,
}

type mockCallback struct {
	mu       sync.Mutex
	progress []TrainProgress
	done     []TrainResult
}

func (m *mockCallback) OnTrainProgress(p TrainProgress) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.progress = append(m.progress, p)
}

func (m *mockCallback) OnTrainDone(r TrainResult) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.done = append(m.done, r)
}

func testCatalog() *catalog.Catalog {
	multi := monoSi
	multi.ILRef, multi.IscRef, multi.ImpRef = 8.3, 8.2, 7.6
	thin := monoSi
	thin.Ns, thin.RshRef = 116, 900

	c := catalog.New()
	c.Add(
		catalog.Module{Manufacturer: "Generic Solar", Model: "GS-300M", Technology: model.TechMonoSi, Params: monoSi},
		catalog.Module{Manufacturer: "Generic Solar", Model: "GS-275P", Technology: model.TechMultiSi, Params: multi},
		catalog.Module{Manufacturer: "Thinline", Model: "TL-1", Technology: model.TechThinFilm, Params: thin},
	)
	return c
}

func testConfig() config.Config {
	cfg := config.Default()
	cfg.Signature.Samples = 5
	cfg.Classifier.Trees = 15
	return cfg
}

func intPtr(v int) *int { return &v }

func floatPtr(v float64) *float64 { return &v }

func TestSimulate_ReferenceModule(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	res, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M"})
	require.NoError(t, err)

	require.Len(t, res.Voltage, 100)
	assert.InEpsilon(t, 59.4, res.Voltage[99], 0.02)
	assert.InEpsilon(t, 5.1, res.Current[0], 0.02)
	for i := range res.Power {
		assert.Equal(t, res.Voltage[i]*res.Current[i], res.Power[i])
	}
}

func TestSimulate_StringOfModules(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	one, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M"})
	require.NoError(t, err)
	three, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Modules: 3})
	require.NoError(t, err)

	assert.InDelta(t, 3*one.Voltage[99], three.Voltage[99], 1e-9)
	assert.Equal(t, one.Current, three.Current)

	_, err = e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Modules: -2})
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestSimulate_OperatingPoint(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	stc, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M"})
	require.NoError(t, err)

	cold, err := e.Simulate(SimulateRequest{
		Manufacturer: "Generic Solar", Model: "GS-300M",
		Irradiance: intPtr(500), Temperature: floatPtr(0),
	})
	require.NoError(t, err)
	assert.Greater(t, cold.Voltage[99], stc.Voltage[99], "cold cell has higher Voc")
	assert.InDelta(t, stc.Current[0]/2, cold.Current[0], 0.1)

	_, err = e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Irradiance: intPtr(0)})
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	_, err = e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Translator: "sapm"})
	assert.True(t, errors.Is(err, model.ErrConfiguration))
}

func TestSimulate_TranslatorsAgreeAtReference(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	cec, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Translator: "cec"})
	require.NoError(t, err)
	desoto, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M", Translator: "desoto"})
	require.NoError(t, err)
	assert.InDeltaSlice(t, cec.Current, desoto.Current, 1e-9)
}

func TestSimulate_UnknownModule(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	_, err := e.Simulate(SimulateRequest{Manufacturer: "Generic", Model: "nope"})

	var de *model.DataError
	require.True(t, errors.As(err, &de))
	assert.Len(t, de.Suggestions, 2)
}

func TestDetect_Validation(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)

	_, err := e.Detect(context.Background(), DetectRequest{})
	assert.True(t, errors.Is(err, model.ErrData))

	_, err = e.Detect(context.Background(), DetectRequest{
		MeasuredVoltage: []float64{0, 1}, MeasuredCurrent: []float64{1, 0},
	})
	assert.True(t, errors.Is(err, model.ErrData), "modeled curve is required")

	_, err = e.Detect(context.Background(), DetectRequest{
		MeasuredVoltage: []float64{0, 1}, MeasuredCurrent: []float64{1, 0},
		ModeledVoltage: []float64{0, 1}, ModeledCurrent: []float64{1, 0},
	})
	assert.True(t, errors.Is(err, model.ErrModel), "no model available")
}

func TestDetectRequest_Features(t *testing.T) {
	req := DetectRequest{
		MeasuredVoltage: []float64{0, 10, 20, 30},
		MeasuredCurrent: []float64{4, 3.9, 3, 0},
		ModeledVoltage:  []float64{0, 10, 20, 30},
		ModeledCurrent:  []float64{4, 3.9, 3, 0},
	}
	fv, err := req.Features()
	require.NoError(t, err)
	code, ok := fv.Get(model.FeatureModuleTypeCode)
	require.True(t, ok)
	assert.Equal(t, 0.0, code)
	isc, _ := fv.Get(model.FeatureIscNorm)
	assert.Equal(t, 1.0, isc)

	req.ModuleTypeCode = intPtr(2)
	fv, err = req.Features()
	require.NoError(t, err)
	code, _ = fv.Get(model.FeatureModuleTypeCode)
	assert.Equal(t, 2.0, code)
}

func TestTrainThenDetect(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	cb := &mockCallback{}
	e.SetCallback(cb)

	m, res, err := e.Train(context.Background(), true)
	require.NoError(t, err)
	require.NotNil(t, m)
	assert.Equal(t, (6+6+5)*5, res.Signatures)
	require.NotNil(t, res.Report)
	assert.Len(t, res.Report.Folds, 3)
	assert.Equal(t, m.ID.String(), res.ModelID)

	cb.mu.Lock()
	assert.Len(t, cb.progress, res.Signatures)
	assert.Equal(t, res.Signatures, cb.progress[len(cb.progress)-1].Done)
	require.Len(t, cb.done, 1)
	assert.NoError(t, cb.done[0].Err)
	assert.Equal(t, res.RunID, cb.done[0].RunID)
	cb.mu.Unlock()

	curve, err := e.Simulate(SimulateRequest{Manufacturer: "Generic Solar", Model: "GS-300M"})
	require.NoError(t, err)
	out, err := e.Detect(context.Background(), DetectRequest{
		MeasuredVoltage: curve.Voltage, MeasuredCurrent: curve.Current,
		ModeledVoltage: curve.Voltage, ModeledCurrent: curve.Current,
		ModuleTypeCode: intPtr(0),
	})
	require.NoError(t, err)
	assert.Contains(t, m.Classes, out.Anomaly)
	assert.Equal(t, m.ID.String(), out.ModelID)
	assert.Len(t, out.Probabilities, len(m.Classes))
}

func TestTrain_Exclusive(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)

	started := make(chan struct{})
	release := make(chan struct{})
	var once sync.Once
	e.SetCallback(blockingCallback{onProgress: func() {
		once.Do(func() { close(started) })
		<-release
	}})

	errc := make(chan error, 1)
	go func() {
		_, _, err := e.Train(context.Background(), false)
		errc <- err
	}()

	<-started
	_, _, err := e.Train(context.Background(), false)
	assert.ErrorIs(t, err, ErrTrainingInProgress)

	close(release)
	require.NoError(t, <-errc)
}

func TestTrain_EmptyCatalogFails(t *testing.T) {
	e := New(testConfig(), catalog.New(), nil)
	cb := &mockCallback{}
	e.SetCallback(cb)

	_, res, err := e.Train(context.Background(), false)
	assert.True(t, errors.Is(err, model.ErrData))
	require.Len(t, cb.done, 1)
	assert.Equal(t, err, cb.done[0].Err)
	assert.Empty(t, res.ModelID)
}

func TestDetector_UsesSource(t *testing.T) {
	e := New(testConfig(), testCatalog(), nil)
	m, _, err := e.Train(context.Background(), false)
	require.NoError(t, err)

	d := NewDetector(classifier.StaticSource{Model: m})
	assert.Nil(t, d.Current())
	got, err := d.Model(context.Background())
	require.NoError(t, err)
	assert.Same(t, m, got)
	assert.Same(t, m, d.Current())

	d.SetModel(nil)
	assert.Nil(t, d.Current())
}

type blockingCallback struct {
	onProgress func()
}

func (b blockingCallback) OnTrainProgress(TrainProgress) { b.onProgress() }
func (b blockingCallback) OnTrainDone(TrainResult) {}
