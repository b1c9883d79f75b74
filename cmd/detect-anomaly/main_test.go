package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/model"
	"pvivy/internal/simulator"
)

func TestReadCurve(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sweep.csv")
	require.NoError(t, os.WriteFile(path, []byte("voltage,current\n0,5.1\n30,4.8\n40,0\n"), 0o644))

	curve, err := readCurve(path)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30, 40}, curve.Voltage)
	assert.Equal(t, []float64{5.1, 4.8, 0}, curve.Current)

	_, err = readCurve(filepath.Join(t.TempDir(), "missing.csv"))
	assert.Error(t, err)
}

func TestPrintResult(t *testing.T) {
	var buf bytes.Buffer
	printResult(&buf, simulator.DetectResult{
		Anomaly: model.FaultSoiling,
		ModelID: "m-1",
		Probabilities: map[model.FaultLabel]float64{
			model.FaultHealthy: 0.1,
			model.FaultSoiling: 0.8,
			model.FaultShading: 0.1,
		},
	})

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 5)
	assert.Equal(t, "Anomaly: Soiling", lines[0])
	assert.Contains(t, lines[2], "Soiling")
	assert.Contains(t, lines[2], "80.0%")
	// Ties are broken by label.
	assert.Contains(t, lines[3], "Healthy")
	assert.Contains(t, lines[4], "Shading")
}
