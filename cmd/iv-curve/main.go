package main

import (
	"encoding/csv"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"

	"pvivy/internal/catalog"
	"pvivy/internal/chart"
	"pvivy/internal/config"
	"pvivy/internal/log"
	"pvivy/internal/model"
	"pvivy/internal/simulator"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	catalogPath := flag.String("catalog", "", "module catalog CSV, overrides catalog")
	manufacturer := flag.String("manufacturer", "", "module manufacturer (required)")
	moduleName := flag.String("model", "", "module model name (required)")
	irradiance := flag.Int("irradiance", simulator.DefaultIrradiance, "plane-of-array irradiance in W/m²")
	temperature := flag.Float64("temperature", simulator.DefaultTemperature, "cell temperature in °C")
	modules := flag.Int("modules", 1, "modules in series")
	translator := flag.String("translator", "", "desoto or cec, overrides translator.kind")
	format := flag.String("format", "csv", "output format: csv or json")
	plotPath := flag.String("plot", "", "also render the curve to this image (.png, .svg, .pdf)")
	flag.Parse()

	if *manufacturer == "" || *moduleName == "" {
		fmt.Fprintln(os.Stderr, "both -manufacturer and -model are required")
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "loading config: %v\n", err)
		os.Exit(1)
	}
	if *catalogPath != "" {
		cfg.Catalog = *catalogPath
	}
	if err := log.Init(cfg.Debug); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
	defer log.Sync()

	cat, err := catalog.Load(cfg.Catalog)
	if err != nil {
		log.Fatalf("Loading catalog: %v", err)
	}

	engine := simulator.New(cfg, cat, nil)
	res, err := engine.Simulate(simulator.SimulateRequest{
		Manufacturer: *manufacturer,
		Model:        *moduleName,
		Irradiance:   irradiance,
		Temperature:  temperature,
		Modules:      *modules,
		Translator:   *translator,
	})
	if err != nil {
		reportLookupMiss(os.Stderr, err)
		log.Fatalf("Simulating: %v", err)
	}

	if *plotPath != "" {
		title := fmt.Sprintf("%s %s, %d W/m², %.0f °C", *manufacturer, *moduleName, *irradiance, *temperature)
		series := chart.Series{Name: *moduleName, Curve: model.IVCurve{Voltage: res.Voltage, Current: res.Current}}
		if err := chart.Save(*plotPath, title, series); err != nil {
			log.Fatalf("Plotting curve: %v", err)
		}
		log.Infow("curve plotted", "path", *plotPath)
	}

	switch *format {
	case "json":
		err = json.NewEncoder(os.Stdout).Encode(res)
	case "csv":
		err = writeCSV(os.Stdout, res)
	default:
		log.Fatalf("Unknown format %q", *format)
	}
	if err != nil {
		log.Fatalf("Writing curve: %v", err)
	}
}

// reportLookupMiss prints catalog suggestions for an unknown module.
func reportLookupMiss(w io.Writer, err error) {
	var dataErr *model.DataError
	if !errors.As(err, &dataErr) || len(dataErr.Suggestions) == 0 {
		return
	}
	fmt.Fprintf(w, "No module %q / %q. Closest matches:\n", dataErr.Query.Manufacturer, dataErr.Query.Model)
	for _, s := range dataErr.Suggestions {
		fmt.Fprintf(w, "  %s / %s\n", s.Manufacturer, s.Model)
	}
}

func writeCSV(w io.Writer, res simulator.CurveResult) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"voltage", "current", "power"}); err != nil {
		return err
	}
	for i := range res.Voltage {
		row := []string{
			strconv.FormatFloat(res.Voltage[i], 'f', 6, 64),
			strconv.FormatFloat(res.Current[i], 'f', 6, 64),
			strconv.FormatFloat(res.Power[i], 'f', 6, 64),
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
