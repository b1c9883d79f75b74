// Package signature builds the labelled training library: healthy catalog
// modules are perturbed into each fault mode, simulated at a fixed operating
// point, and reduced to shape features.
package signature

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"pvivy/internal/features"
	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/singlediode"
	"pvivy/internal/translate"
)

// DefaultSamples is the number of severity steps per (label, technology).
const DefaultSamples = 20

// Signature is one labelled training example.
type Signature struct {
	Vector     model.FeatureVector `json:"vector" msgpack:"vector"`
	Label      model.FaultLabel    `json:"label" msgpack:"label"`
	Technology model.Technology    `json:"technology" msgpack:"technology"`
	Severity   int                 `json:"severity" msgpack:"severity"`
}

// Library is the ordered training set.
type Library []Signature

// Labels returns the label of every signature, in order.
func (l Library) Labels() []model.FaultLabel {
	out := make([]model.FaultLabel, len(l))
	for i, s := range l {
		out[i] = s.Label
	}
	return out
}

// Counts tallies signatures per label.
func (l Library) Counts() map[model.FaultLabel]int {
	out := make(map[model.FaultLabel]int)
	for _, s := range l {
		out[s.Label]++
	}
	return out
}

// WriteJSON encodes the library as an indented JSON array.
func (l Library) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(l)
}

// Filter returns the signatures for one technology.
func (l Library) Filter(t model.Technology) Library {
	var out Library
	for _, s := range l {
		if s.Technology == t {
			out = append(out, s)
		}
	}
	return out
}

// Generator produces signature libraries. The zero value is not usable; start
// from NewGenerator.
type Generator struct {
	Schedule       Schedule
	Translator     translate.Translator
	Solver         *singlediode.Solver
	Samples        int
	Workers        int
	OperatingPoint model.OperatingPoint

	// Progress, if set, is called after each evaluated sample. Calls are
	// serialized and done increases by one each time.
	Progress func(done, total int)
}

func NewGenerator() *Generator {
	return &Generator{
		Schedule:       DefaultSchedule(),
		Translator:     translate.DeSoto{Constants: translate.DefaultConstants()},
		Solver:         singlediode.New(singlediode.DefaultPoints),
		Samples:        DefaultSamples,
		Workers:        runtime.NumCPU(),
		OperatingPoint: model.ReferenceOperatingPoint,
	}
}

// job is one planned sample. Planning is sequential so the result depends
// only on the seed, never on worker scheduling.
type job struct {
	tech   model.Technology
	label  model.FaultLabel
	module model.ModuleParameters
	sev    Severity
}

// Generate builds a library covering every scheduled label for every
// technology with modules in catalog, skipping labels the technology does
// not support. Modules are drawn with replacement.
func (g *Generator) Generate(ctx context.Context, catalog map[model.Technology][]model.ModuleParameters, seed uint64) (Library, error) {
	if g.Samples < 1 {
		return nil, &model.ConfigurationError{Field: "samples", Value: float64(g.Samples), Reason: "must be at least 1"}
	}
	if len(g.Schedule) == 0 {
		return nil, &model.ConfigurationError{Field: "schedule", Reason: "no fault modes scheduled"}
	}

	jobs := g.plan(catalog, seed)
	if len(jobs) == 0 {
		return nil, &model.DataError{Reason: "catalog has no modules for any known technology"}
	}

	start := time.Now()
	lib := make(Library, len(jobs))

	var (
		mu   sync.Mutex
		done int
	)
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.Workers, 1))
	for k, j := range jobs {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			sig, err := g.evaluate(j)
			if err != nil {
				return err
			}
			lib[k] = sig

			if g.Progress != nil {
				mu.Lock()
				done++
				g.Progress(done, len(jobs))
				mu.Unlock()
			}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return nil, err
	}

	log.Infow("signature library built",
		"signatures", len(lib),
		"labels", len(g.Schedule),
		"seed", seed,
		"elapsed", time.Since(start),
	)
	return lib, nil
}

func (g *Generator) plan(catalog map[model.Technology][]model.ModuleParameters, seed uint64) []job {
	rng := rand.New(rand.NewPCG(seed, 0))
	labels := g.Schedule.Labels()

	var jobs []job
	for _, tech := range model.AllTechnologies {
		modules := catalog[tech]
		if len(modules) == 0 {
			log.Warnw("no catalog modules for technology, skipping", "technology", tech)
			continue
		}
		for _, label := range labels {
			if !tech.Supports(label) {
				continue
			}
			for i := 0; i < g.Samples; i++ {
				jobs = append(jobs, job{
					tech:   tech,
					label:  label,
					module: modules[rng.IntN(len(modules))],
					sev:    Severity{Index: i, Steps: g.Samples, Draw: rng.Float64()},
				})
			}
		}
	}
	return jobs
}

func (g *Generator) evaluate(j job) (Signature, error) {
	p, err := g.Schedule[j.label].Apply(j.module, j.sev)
	if err != nil {
		return Signature{}, fmt.Errorf("perturbing %s/%s #%d: %w", j.tech, j.label, j.sev.Index, err)
	}
	ep, err := g.Translator.Translate(p, g.OperatingPoint)
	if err != nil {
		return Signature{}, fmt.Errorf("translating %s/%s #%d: %w", j.tech, j.label, j.sev.Index, err)
	}
	curve, err := g.Solver.Solve(ep)
	if err != nil {
		return Signature{}, fmt.Errorf("solving %s/%s #%d: %w", j.tech, j.label, j.sev.Index, err)
	}
	fv, err := features.Extract(curve, p.Nameplate())
	if err != nil {
		return Signature{}, fmt.Errorf("extracting %s/%s #%d: %w", j.tech, j.label, j.sev.Index, err)
	}
	return Signature{
		Vector:     fv.WithTechnology(j.tech),
		Label:      j.label,
		Technology: j.tech,
		Severity:   j.sev.Index,
	}, nil
}
