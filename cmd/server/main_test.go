package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/catalog"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/model"
	"pvivy/internal/simulator"
	"pvivy/internal/ws"
)

func testEngine(modelPath string) *simulator.Engine {
	p := model.ModuleParameters{
		Ns: 60, IscRef: 8.9, VocRef: 37.8, ImpRef: 8.4, VmpRef: 30.9,
		AlphaSc: 0.0045, BetaOc: -0.12, ARef: 1.5,
		ILRef: 8.92, IoRef: 1.5e-10, Rs: 0.3, RshRef: 300, Adjust: 10,
	}
	cat := catalog.New()
	cat.Add(catalog.Module{Manufacturer: "Acme", Model: "A-60", Technology: model.TechMultiSi, Params: p})

	cfg := config.Default()
	cfg.Signature.Samples = 3
	cfg.Classifier.Trees = 5
	return simulator.New(cfg, cat, classifier.FileSource{Path: modelPath})
}

func TestNewMux_Health(t *testing.T) {
	mux := newMux(context.Background(), testEngine(""), ws.NewHub(), "")

	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok\n", rec.Body.String())
}

func TestNewMux_Frontend(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>pv</html>"), 0o644))

	mux := newMux(context.Background(), testEngine(""), ws.NewHub(), dir)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pv")
}

func TestLoadOrTrain_TrainsAndSaves(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.json")
	engine := testEngine(path)

	require.NoError(t, loadOrTrain(context.Background(), engine, path, false))
	require.FileExists(t, path)

	trained := engine.Detector().Current()
	require.NotNil(t, trained)

	// A fresh engine picks up the saved model instead of retraining.
	again := testEngine(path)
	require.NoError(t, loadOrTrain(context.Background(), again, path, false))
	assert.Equal(t, trained.ID, again.Detector().Current().ID)
}

func TestLoadOrTrain_CorruptModel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "classifier.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	err := loadOrTrain(context.Background(), testEngine(path), path, false)
	assert.Error(t, err)
}
