package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"

	"pvivy/internal/catalog"
	"pvivy/internal/chart"
	"pvivy/internal/classifier"
	"pvivy/internal/config"
	"pvivy/internal/ingest"
	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/simulator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	measuredPath := flag.String("measured", "", "CSV with the measured voltage/current sweep (required)")
	modeledPath := flag.String("modeled", "", "CSV with the modeled sweep; when empty it is simulated from the catalog")
	manufacturer := flag.String("manufacturer", "", "catalog manufacturer of the measured module")
	moduleName := flag.String("model", "", "catalog model name of the measured module")
	irradiance := flag.Int("irradiance", simulator.DefaultIrradiance, "irradiance during the measurement in W/m²")
	temperature := flag.Float64("temperature", simulator.DefaultTemperature, "cell temperature during the measurement in °C")
	modules := flag.Int("modules", 1, "modules in series")
	modelFile := flag.String("classifier", "", "saved classifier (.json or .msgpack), overrides model")
	plotPath := flag.String("plot", "", "render measured and modeled curves to this image (.png, .svg, .pdf)")
	techCode := flag.Int("module-type-code", -1, "technology class code; taken from the catalog when unset")
	flag.Parse()

	if *measuredPath == "" {
		fmt.Fprintln(os.Stderr, "-measured is required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *modelFile != "" {
		cfg.Model = *modelFile
	}
	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	measured, err := readCurve(*measuredPath)
	if err != nil {
		log.Fatalf("Reading measured curve: %v", err)
	}

	req := simulator.DetectRequest{
		MeasuredVoltage: measured.Voltage,
		MeasuredCurrent: measured.Current,
	}
	if *techCode >= 0 {
		req.ModuleTypeCode = techCode
	}

	cat := catalog.New()
	if *modeledPath == "" || (*techCode < 0 && *manufacturer != "") {
		if cat, err = catalog.Load(cfg.Catalog); err != nil {
			log.Fatalf("Loading catalog: %v", err)
		}
	}
	engine := simulator.New(cfg, cat, classifier.FileSource{Path: cfg.Model})

	if *modeledPath != "" {
		modeled, err := readCurve(*modeledPath)
		if err != nil {
			log.Fatalf("Reading modeled curve: %v", err)
		}
		req.ModeledVoltage, req.ModeledCurrent = modeled.Voltage, modeled.Current
	} else {
		if *manufacturer == "" || *moduleName == "" {
			log.Fatalf("Without -modeled, -manufacturer and -model are required")
		}
		res, err := engine.Simulate(simulator.SimulateRequest{
			Manufacturer: *manufacturer,
			Model:        *moduleName,
			Irradiance:   irradiance,
			Temperature:  temperature,
			Modules:      *modules,
		})
		if err != nil {
			log.Fatalf("Simulating modeled curve: %v", err)
		}
		req.ModeledVoltage, req.ModeledCurrent = res.Voltage, res.Current
	}

	if req.ModuleTypeCode == nil && *manufacturer != "" {
		if mod, err := cat.Lookup(*manufacturer, *moduleName); err == nil {
			if code := mod.Technology.Code(); code >= 0 {
				req.ModuleTypeCode = &code
			}
		}
	}

	res, err := engine.Detect(context.Background(), req)
	if err != nil {
		log.Fatalf("Detecting anomaly: %v", err)
	}
	printResult(os.Stdout, res)

	if *plotPath != "" {
		err := chart.Save(*plotPath, "Detected: "+string(res.Anomaly),
			chart.Series{Name: "modeled", Curve: model.IVCurve{Voltage: req.ModeledVoltage, Current: req.ModeledCurrent}, Dashed: true},
			chart.Series{Name: "measured", Curve: measured},
		)
		if err != nil {
			log.Fatalf("Plotting curves: %v", err)
		}
		log.Infow("curves plotted", "path", *plotPath)
	}
}

func readCurve(path string) (model.IVCurve, error) {
	f, err := os.Open(path)
	if err != nil {
		return model.IVCurve{}, err
	}
	defer f.Close()
	return ingest.NewCurveParser().Parse(f)
}

// printResult writes the label and the class probabilities, most likely
// first.
func printResult(w io.Writer, res simulator.DetectResult) {
	type entry struct {
		label model.FaultLabel
		p     float64
	}
	entries := make([]entry, 0, len(res.Probabilities))
	for l, p := range res.Probabilities {
		entries = append(entries, entry{l, p})
	}
	sort.Slice(entries, func(i, j int) bool {
		if entries[i].p != entries[j].p {
			return entries[i].p > entries[j].p
		}
		return entries[i].label < entries[j].label
	})

	fmt.Fprintf(w, "Anomaly: %s\n", res.Anomaly)
	fmt.Fprintf(w, "Model:   %s\n", res.ModelID)
	for _, e := range entries {
		fmt.Fprintf(w, "  %-20s %6.1f%%\n", e.label, e.p*100)
	}
}
