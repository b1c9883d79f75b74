package chart

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/model"
)

var sweep = model.IVCurve{
	Voltage: []float64{0, 10, 20, 30, 35, 38},
	Current: []float64{8.9, 8.85, 8.8, 8.4, 6, 0},
}

func TestNew(t *testing.T) {
	p, err := New("GS-300M", Series{Name: "modeled", Curve: sweep, Dashed: true}, Series{Name: "measured", Curve: sweep})
	require.NoError(t, err)
	assert.Equal(t, "GS-300M", p.Title.Text)
	assert.Equal(t, "Voltage (V)", p.X.Label.Text)
}

func TestNew_InvalidCurve(t *testing.T) {
	_, err := New("bad", Series{Name: "broken", Curve: model.IVCurve{Voltage: []float64{1, 2}, Current: []float64{1}}})
	assert.ErrorIs(t, err, model.ErrData)
}

func TestWrite_SVG(t *testing.T) {
	p, err := New("svg", Series{Name: "modeled", Curve: sweep})
	require.NoError(t, err)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, p, "svg"))
	assert.Contains(t, buf.String(), "<svg")
}

func TestSave_PNG(t *testing.T) {
	path := filepath.Join(t.TempDir(), "curve.png")
	require.NoError(t, Save(path, "png", Series{Name: "modeled", Curve: sweep}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	require.Greater(t, len(data), 8)
	assert.Equal(t, []byte("\x89PNG"), data[:4])
}

func TestSave_NoExtension(t *testing.T) {
	err := Save(filepath.Join(t.TempDir(), "curve"), "x", Series{Name: "modeled", Curve: sweep})
	assert.ErrorIs(t, err, model.ErrConfiguration)
}
