package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/model"
	"pvivy/internal/translate"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 100, cfg.Solver.Points)
	assert.Equal(t, "cec", cfg.Translator.Kind)
	assert.Equal(t, 1.121, cfg.Translator.EgRef)
	assert.Equal(t, 20, cfg.Signature.Samples)
	assert.Equal(t, uint64(42), cfg.Signature.Seed)
	assert.Equal(t, 100, cfg.Classifier.Trees)
	assert.Equal(t, 3, cfg.Classifier.Folds)
}

func TestLoad_OverlaysDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	assert.True(t, cfg.Debug)
	assert.Equal(t, 200, cfg.Solver.Points)
	assert.Equal(t, "desoto", cfg.Translator.Kind)
	assert.Equal(t, 1.12, cfg.Translator.EgRef)
	assert.Equal(t, -0.0002677, cfg.Translator.DEgDT, "unset keys keep defaults")
	assert.Equal(t, 10, cfg.Signature.Samples)
	assert.Equal(t, 1000.0, cfg.Signature.Irradiance)
	assert.Equal(t, 50, cfg.Classifier.Trees)
	assert.Equal(t, 12, cfg.Classifier.MaxDepth)
	assert.Equal(t, uint64(42), cfg.Classifier.Seed)
	assert.Equal(t, "127.0.0.1:9000", cfg.Server.Addr)
}

func TestLoad_EmptyPath(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, Default().Solver, cfg.Solver)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	write := func(name, body string) string {
		path := filepath.Join(dir, name)
		require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
		return path
	}

	_, err := Load(write("points.yaml", "solver: {points: 1}\n"))
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	_, err = Load(write("kind.yaml", "translator: {kind: pvsyst}\n"))
	assert.Error(t, err)

	_, err = Load(write("folds.yaml", "classifier: {folds: 1}\n"))
	assert.True(t, errors.Is(err, model.ErrConfiguration))

	_, err = Load(write("features.yaml", "classifier: {features: [FF, knee_curvatur]}\n"))
	assert.True(t, errors.Is(err, model.ErrConfiguration))
	assert.ErrorContains(t, err, "knee_curvatur")

	_, err = Load(write("broken.yaml", "solver: [\n"))
	assert.Error(t, err)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate_ClassifierFeatures(t *testing.T) {
	cfg := Default()
	cfg.Classifier.Features = []string{"FF", "area_ratio", "module_type_code"}
	assert.NoError(t, cfg.Validate())
}

func TestNewTranslator(t *testing.T) {
	cfg := Default()
	tr, err := cfg.NewTranslator()
	require.NoError(t, err)
	assert.IsType(t, translate.CEC{}, tr)

	cfg.Translator.Kind = "desoto"
	tr, err = cfg.NewTranslator()
	require.NoError(t, err)
	assert.IsType(t, translate.DeSoto{}, tr)
}

func TestNewGenerator_UsesScheduleFile(t *testing.T) {
	cfg, err := Load(filepath.Join("testdata", "config.yaml"))
	require.NoError(t, err)

	g, err := cfg.NewGenerator()
	require.NoError(t, err)
	assert.Equal(t, 10, g.Samples)
	assert.Equal(t, 200, g.Solver.Points)
	assert.Len(t, g.Schedule, 3)

	lib, err := g.Generate(context.Background(), map[model.Technology][]model.ModuleParameters{
		model.TechThinFilm: {{
			Ns: 96, IscRef: 5.1, VocRef: 59.4, ImpRef: 4.69, VmpRef: 46.9,
			AlphaSc: 0.004539, ARef: 2.6373, ILRef: 5.114, IoRef: 8.196e-10,
			Rs: 1.065, RshRef: 381.68,
		}},
	}, cfg.Signature.Seed)
	require.NoError(t, err)
	assert.Len(t, lib, 30)
	assert.Equal(t, 10, lib.Counts()["Cracked_Cell"])
}

func TestNewGenerator_MissingSchedule(t *testing.T) {
	cfg := Default()
	cfg.Signature.Schedule = filepath.Join(t.TempDir(), "nope.yaml")
	_, err := cfg.NewGenerator()
	assert.Error(t, err)
}
