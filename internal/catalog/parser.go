package catalog

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"
	"strings"

	"pvivy/internal/model"
)

// Column headers besides the model.Field parameter columns.
const (
	ColManufacturer = "Manufacturer"
	ColModel        = "Model"
	ColTechnology   = "Technology"
)

// optional columns default to 0 when absent from the header.
var optional = map[model.Field]bool{
	model.FieldAdjust: true,
	model.FieldBeta:   true,
}

// Parse reads a module catalog CSV. Columns are matched by header name and
// may appear in any order; extra columns are ignored.
//
//	Manufacturer,Model,Technology,N_s,I_sc_ref,V_oc_ref,...,Adjust
//	Acme Solar,AS-300M,Mono-c-Si,96,5.1,59.4,...,8.7
//
// Rows with unparseable numbers are skipped.
func Parse(r io.Reader) ([]Module, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("reading CSV header: %w", err)
	}
	cols, err := columnIndex(header)
	if err != nil {
		return nil, err
	}

	var modules []Module
	lineNum := 1
	for {
		lineNum++
		record, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading CSV line %d: %w", lineNum, err)
		}

		m, err := parseRecord(record, cols, lineNum)
		if err != nil {
			continue
		}
		modules = append(modules, m)
	}
	return modules, nil
}

func columnIndex(header []string) (map[string]int, error) {
	cols := make(map[string]int, len(header))
	for i, h := range header {
		// Excel exports prefix the first header with a byte-order mark.
		h = strings.TrimPrefix(strings.TrimSpace(h), "\ufeff")
		cols[h] = i
	}

	required := []string{ColManufacturer, ColModel, ColTechnology}
	for _, f := range model.AllFields {
		if !optional[f] {
			required = append(required, string(f))
		}
	}
	for _, name := range required {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("catalog header is missing column %q", name)
		}
	}
	return cols, nil
}

func parseRecord(record []string, cols map[string]int, lineNum int) (Module, error) {
	field := func(name string) (string, bool) {
		i, ok := cols[name]
		if !ok || i >= len(record) {
			return "", false
		}
		return strings.TrimSpace(record[i]), true
	}

	manufacturer, _ := field(ColManufacturer)
	modelName, _ := field(ColModel)
	if manufacturer == "" || modelName == "" {
		return Module{}, fmt.Errorf("line %d: empty manufacturer or model", lineNum)
	}
	techName, _ := field(ColTechnology)
	tech, err := model.ParseTechnology(techName)
	if err != nil {
		// Keep technologies the classifier has no code for; they can still
		// be simulated.
		tech = model.Technology(techName)
	}

	m := Module{Manufacturer: manufacturer, Model: modelName, Technology: tech}
	for _, f := range model.AllFields {
		raw, ok := field(string(f))
		if !ok || (raw == "" && optional[f]) {
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return Module{}, fmt.Errorf("line %d: parsing %s %q: %w", lineNum, f, raw, err)
		}
		if m.Params, err = m.Params.With(f, v); err != nil {
			return Module{}, err
		}
	}
	return m, nil
}
