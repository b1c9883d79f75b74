package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"strings"
	"time"

	"pvivy/internal/catalog"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/signature"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	catalogPath := flag.String("catalog", "", "module catalog CSV, overrides catalog")
	output := flag.String("output", "", "model output path (.json or .msgpack), overrides model")
	library := flag.String("library", "", "optional path to write the signature library as JSON")
	samples := flag.Int("samples", 0, "signatures per fault and module, overrides signature.samples")
	trees := flag.Int("trees", 0, "number of trees, overrides classifier.trees")
	validate := flag.Bool("validate", true, "run grouped cross-validation by technology")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	applyOverrides(&cfg, *catalogPath, *output, *samples, *trees)

	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Fatalf("Loading catalog: %v", err)
	}

	gen, err := cfg.NewGenerator()
	if err != nil {
		log.Fatalf("Configuring generator: %v", err)
	}
	gen.Progress = progressPrinter(os.Stderr)

	start := time.Now()
	lib, err := gen.Generate(ctx, cat.ByTechnology(), cfg.Signature.Seed)
	if err != nil {
		log.Fatalf("Generating signatures: %v", err)
	}
	fmt.Fprintln(os.Stderr)

	fmt.Println()
	fmt.Println("Signature Library")
	fmt.Printf("  Modules: %d | Signatures: %d | Generated in %s\n", cat.Len(), len(lib), time.Since(start).Round(time.Millisecond))
	printCounts(lib)

	if *library != "" {
		if err := writeLibrary(*library, lib); err != nil {
			log.Fatalf("Writing library: %v", err)
		}
		fmt.Printf("  Library written to %s\n", *library)
	}

	if *validate {
		report, err := classifier.CrossValidate(lib, cfg.Classifier)
		if err != nil {
			log.Fatalf("Cross-validating: %v", err)
		}
		printReport(report)
	}

	m, err := classifier.Fit(lib, cfg.Classifier)
	if err != nil {
		log.Fatalf("Training classifier: %v", err)
	}
	if err := classifier.WriteFile(cfg.Model, m); err != nil {
		log.Fatalf("Saving classifier: %v", err)
	}

	fmt.Println()
	fmt.Printf("Model %s saved to %s (%d trees, %d classes)\n", m.ID, cfg.Model, len(m.Forest.Trees), len(m.Classes))
}

func applyOverrides(cfg *config.Config, catalogPath, output string, samples, trees int) {
	if catalogPath != "" {
		cfg.Catalog = catalogPath
	}
	if output != "" {
		cfg.Model = output
	}
	if samples > 0 {
		cfg.Signature.Samples = samples
	}
	if trees > 0 {
		cfg.Classifier.Trees = trees
	}
}

func progressPrinter(w *os.File) func(done, total int) {
	last := -1
	return func(done, total int) {
		pct := done * 100 / total
		if pct == last {
			return
		}
		last = pct
		fmt.Fprintf(w, "\r  Generating signatures: %3d%% (%d/%d)", pct, done, total)
	}
}

func printCounts(lib signature.Library) {
	counts := lib.Counts()
	labels := make([]string, 0, len(counts))
	for l := range counts {
		labels = append(labels, string(l))
	}
	sort.Strings(labels)
	for _, l := range labels {
		fmt.Printf("    %-20s %5d\n", l, counts[model.FaultLabel(l)])
	}
}

func printReport(r classifier.Report) {
	fmt.Println()
	fmt.Println("Cross-validation (grouped by technology)")
	fmt.Printf("  %-4s  %-28s  %6s  %6s  %8s\n", "Fold", "Held out", "Train", "Test", "Accuracy")
	fmt.Println("  " + strings.Repeat("-", 58))
	for i, f := range r.Folds {
		techs := make([]string, len(f.Technologies))
		for j, t := range f.Technologies {
			techs[j] = string(t)
		}
		sort.Strings(techs)
		fmt.Printf("  %-4d  %-28s  %6d  %6d  %7.1f%%\n", i+1, strings.Join(techs, ", "), f.Train, f.Test, f.Accuracy*100)
	}
	fmt.Printf("  Mean accuracy: %.1f%%\n", r.Mean*100)
}

func writeLibrary(path string, lib signature.Library) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := lib.WriteJSON(f); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
