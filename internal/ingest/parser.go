// Package ingest reads measured I-V sweeps exported by curve tracers.
package ingest

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"slices"
	"strconv"
	"strings"

	"pvivy/internal/model"
)

// Parser reads one I-V sweep from a source.
type Parser interface {
	Parse(r io.Reader) (model.IVCurve, error)
}

// Accepted header names, compared case-insensitively.
var (
	voltageColumns = []string{"voltage", "v", "voltage_v", "v_v", "measured_voltage"}
	currentColumns = []string{"current", "i", "current_a", "i_a", "measured_current"}
)

// CurveParser reads a CSV sweep with a voltage and a current column. The
// header is optional: without one the first two columns are used. Rows with
// unparseable values (tracer placeholders such as "nan" or "unavailable")
// are skipped.
type CurveParser struct {
	Comma rune
}

func NewCurveParser() *CurveParser {
	return &CurveParser{Comma: ','}
}

func (p *CurveParser) Parse(r io.Reader) (model.IVCurve, error) {
	reader := csv.NewReader(r)
	if p.Comma != 0 {
		reader.Comma = p.Comma
	}
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	first, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return model.IVCurve{}, &model.DataError{Reason: "empty measurement file"}
	}
	if err != nil {
		return model.IVCurve{}, fmt.Errorf("reading header: %w", err)
	}
	if len(first) < 2 {
		return model.IVCurve{}, &model.DataError{Reason: fmt.Sprintf("expected voltage and current columns, got %d column(s)", len(first))}
	}

	vCol, iCol := 0, 1
	var curve model.IVCurve
	if _, _, ok := parseRow(first, vCol, iCol); ok {
		appendRow(&curve, first, vCol, iCol)
	} else {
		vCol, iCol, err = headerColumns(first)
		if err != nil {
			return model.IVCurve{}, err
		}
	}

	line := 1
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return model.IVCurve{}, fmt.Errorf("line %d: %w", line, err)
		}
		appendRow(&curve, record, vCol, iCol)
	}

	if curve.Len() == 0 {
		return model.IVCurve{}, &model.DataError{Reason: "no valid voltage/current rows"}
	}
	return curve, nil
}

func headerColumns(header []string) (int, int, error) {
	vCol, iCol := -1, -1
	for i, h := range header {
		name := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		switch {
		case vCol < 0 && slices.Contains(voltageColumns, name):
			vCol = i
		case iCol < 0 && slices.Contains(currentColumns, name):
			iCol = i
		}
	}
	if vCol < 0 {
		return 0, 0, &model.DataError{Reason: fmt.Sprintf("header has no voltage column (want one of %s)", strings.Join(voltageColumns, ", "))}
	}
	if iCol < 0 {
		return 0, 0, &model.DataError{Reason: fmt.Sprintf("header has no current column (want one of %s)", strings.Join(currentColumns, ", "))}
	}
	return vCol, iCol, nil
}

func appendRow(c *model.IVCurve, record []string, vCol, iCol int) {
	v, i, ok := parseRow(record, vCol, iCol)
	if !ok {
		return
	}
	c.Voltage = append(c.Voltage, v)
	c.Current = append(c.Current, i)
}

func parseRow(record []string, vCol, iCol int) (float64, float64, bool) {
	if vCol >= len(record) || iCol >= len(record) {
		return 0, 0, false
	}
	v, errV := parseFinite(record[vCol])
	i, errI := parseFinite(record[iCol])
	if errV != nil || errI != nil {
		return 0, 0, false
	}
	return v, i, true
}

func parseFinite(s string) (float64, error) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, fmt.Errorf("non-finite value %q", s)
	}
	return f, nil
}
