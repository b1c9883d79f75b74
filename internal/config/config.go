// Package config loads the YAML settings shared by the binaries.
package config

import (
	"fmt"
	"os"
	"runtime"
	"slices"

	"gopkg.in/yaml.v3"

	"pvivy/internal/classifier"
	"pvivy/internal/model"
	"pvivy/internal/signature"
	"pvivy/internal/singlediode"
	"pvivy/internal/translate"
)

// Config is the full settings tree. Zero-valued keys in a file keep their
// defaults.
type Config struct {
	Debug      bool              `yaml:"debug"`
	Catalog    string            `yaml:"catalog"`
	Model      string            `yaml:"model"`
	Solver     SolverConfig      `yaml:"solver"`
	Translator TranslatorConfig  `yaml:"translator"`
	Signature  SignatureConfig   `yaml:"signature"`
	Classifier classifier.Config `yaml:"classifier"`
	Server     ServerConfig      `yaml:"server"`
}

type SolverConfig struct {
	Points int `yaml:"points"`
}

type TranslatorConfig struct {
	Kind                string `yaml:"kind"`
	translate.Constants `yaml:",inline"`
}

// SignatureConfig controls training-set generation. Schedule is an optional
// path to a fault table replacing the built-in one.
type SignatureConfig struct {
	Samples     int     `yaml:"samples"`
	Workers     int     `yaml:"workers"`
	Seed        uint64  `yaml:"seed"`
	Irradiance  float64 `yaml:"irradiance"`
	Temperature float64 `yaml:"temperature"`
	Schedule    string  `yaml:"schedule"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
}

func Default() Config {
	return Config{
		Catalog: "module_db.csv",
		Model:   "classifier.json",
		Solver:  SolverConfig{Points: singlediode.DefaultPoints},
		Translator: TranslatorConfig{
			Kind:      string(translate.KindCEC),
			Constants: translate.DefaultConstants(),
		},
		Signature: SignatureConfig{
			Samples:     signature.DefaultSamples,
			Workers:     runtime.NumCPU(),
			Seed:        42,
			Irradiance:  model.ReferenceOperatingPoint.Irradiance,
			Temperature: model.ReferenceOperatingPoint.CellTemperature,
		},
		Classifier: classifier.DefaultConfig(),
		Server:     ServerConfig{Addr: ":8080"},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parsing config %s: %w", path, err)
	}
	return cfg, cfg.Validate()
}

// Validate checks values the components would otherwise reject later.
func (c Config) Validate() error {
	if c.Solver.Points < 2 {
		return &model.ConfigurationError{Field: "solver.points", Value: float64(c.Solver.Points), Reason: "must be at least 2"}
	}
	if _, err := translate.ParseKind(c.Translator.Kind); err != nil {
		return fmt.Errorf("translator.kind: %w", err)
	}
	if c.Signature.Samples < 1 {
		return &model.ConfigurationError{Field: "signature.samples", Value: float64(c.Signature.Samples), Reason: "must be at least 1"}
	}
	if c.Classifier.Trees < 1 {
		return &model.ConfigurationError{Field: "classifier.trees", Value: float64(c.Classifier.Trees), Reason: "must be at least 1"}
	}
	if c.Classifier.Folds < 2 {
		return &model.ConfigurationError{Field: "classifier.folds", Value: float64(c.Classifier.Folds), Reason: "must be at least 2"}
	}
	for _, name := range c.Classifier.Features {
		if !knownFeature(name) {
			return &model.ConfigurationError{Field: "classifier.features", Reason: "unknown feature " + name}
		}
	}
	return nil
}

func knownFeature(name string) bool {
	return name == model.FeatureModuleTypeCode || slices.Contains(model.ShapeFeatureNames, name)
}

// NewSolver returns a solver at the configured resolution.
func (c Config) NewSolver() *singlediode.Solver {
	return singlediode.New(c.Solver.Points)
}

// NewTranslator returns the configured translator.
func (c Config) NewTranslator() (translate.Translator, error) {
	kind, err := translate.ParseKind(c.Translator.Kind)
	if err != nil {
		return nil, err
	}
	return translate.For(kind, c.Translator.Constants)
}

// NewGenerator returns a signature generator wired to the configured solver
// and schedule. Training signatures always use the De Soto translator.
func (c Config) NewGenerator() (*signature.Generator, error) {
	g := signature.NewGenerator()
	g.Translator = translate.DeSoto{Constants: c.Translator.Constants}
	g.Solver = c.NewSolver()
	g.Samples = c.Signature.Samples
	g.Workers = c.Signature.Workers
	g.OperatingPoint = model.OperatingPoint{
		Irradiance:      c.Signature.Irradiance,
		CellTemperature: c.Signature.Temperature,
	}
	if c.Signature.Schedule != "" {
		s, err := signature.LoadSchedule(c.Signature.Schedule)
		if err != nil {
			return nil, err
		}
		g.Schedule = s
	}
	return g, nil
}
