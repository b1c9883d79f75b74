package ingest

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pvivy/internal/model"
)

func TestCurveParser_Parse(t *testing.T) {
	input := `voltage,current
0.0,8.91
10.5,8.87
30.9,8.40
37.8,0.0`

	curve, err := NewCurveParser().Parse(strings.NewReader(input))

	require.NoError(t, err)
	require.Equal(t, 4, curve.Len())
	assert.Equal(t, []float64{0, 10.5, 30.9, 37.8}, curve.Voltage)
	assert.Equal(t, []float64{8.91, 8.87, 8.40, 0}, curve.Current)
}

func TestCurveParser_HeaderAliasesAndOrder(t *testing.T) {
	input := "\ufefftimestamp,I_A,V_V\n" +
		"2024-06-01T12:00:00Z,5.1,0\n" +
		"2024-06-01T12:00:01Z,4.9,40\n"

	curve, err := NewCurveParser().Parse(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 40}, curve.Voltage)
	assert.Equal(t, []float64{5.1, 4.9}, curve.Current)
}

func TestCurveParser_NoHeader(t *testing.T) {
	input := "0,5.1\n20,5.0\n40,4.5\n"

	curve, err := NewCurveParser().Parse(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 20, 40}, curve.Voltage)
}

func TestCurveParser_Semicolon(t *testing.T) {
	p := &CurveParser{Comma: ';'}
	curve, err := p.Parse(strings.NewReader("V;I\n0;5.1\n40;4.5\n"))

	require.NoError(t, err)
	assert.Equal(t, []float64{5.1, 4.5}, curve.Current)
}

func TestCurveParser_SkipsInvalidRows(t *testing.T) {
	input := `voltage,current
0.0,8.91
unavailable,8.80
20.0,nan
30.9,8.40
31.0`

	curve, err := NewCurveParser().Parse(strings.NewReader(input))

	require.NoError(t, err)
	assert.Equal(t, []float64{0, 30.9}, curve.Voltage)
	assert.Equal(t, []float64{8.91, 8.40}, curve.Current)
}

func TestCurveParser_InvalidHeader(t *testing.T) {
	input := `voltage,power
0.0,0.0`

	_, err := NewCurveParser().Parse(strings.NewReader(input))

	require.Error(t, err)
	assert.True(t, errors.Is(err, model.ErrData))
	assert.Contains(t, err.Error(), "current")
}

func TestCurveParser_Empty(t *testing.T) {
	tests := []struct {
		name  string
		input string
	}{
		{"empty file", ""},
		{"header only", "voltage,current\n"},
		{"single column", "voltage\n1\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewCurveParser().Parse(strings.NewReader(tt.input))
			assert.ErrorIs(t, err, model.ErrData)
		})
	}
}

func TestCurveParser_ImplementsParser(t *testing.T) {
	var _ Parser = NewCurveParser()
}
