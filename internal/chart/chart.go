// Package chart renders I-V curves to image files.
package chart

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/plotutil"
	"gonum.org/v1/plot/vg"
	"gonum.org/v1/plot/vg/draw"

	"pvivy/internal/model"
	"pvivy/internal/singlediode"
)

// Default output size.
const (
	Width  = 8 * vg.Inch
	Height = 5 * vg.Inch
)

// Series is one labelled curve on a chart.
type Series struct {
	Name   string
	Curve  model.IVCurve
	Dashed bool // reference curves are drawn dashed
}

// New plots current against voltage for each series and marks every
// series' maximum power point.
func New(title string, series ...Series) (*plot.Plot, error) {
	p := plot.New()
	p.Title.Text = title
	p.X.Label.Text = "Voltage (V)"
	p.Y.Label.Text = "Current (A)"
	p.X.Min, p.Y.Min = 0, 0
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for i, s := range series {
		if err := s.Curve.Validate(); err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line, err := plotter.NewLine(xys(s.Curve))
		if err != nil {
			return nil, fmt.Errorf("series %q: %w", s.Name, err)
		}
		line.Color = plotutil.Color(i)
		line.Width = vg.Points(1.5)
		if s.Dashed {
			line.Dashes = []vg.Length{vg.Points(6), vg.Points(3)}
		}
		p.Add(line)
		p.Legend.Add(s.Name, line)

		mpp, err := singlediode.MaxPowerPoint(s.Curve)
		if err != nil {
			return nil, err
		}
		marker, err := plotter.NewScatter(plotter.XYs{{X: mpp.Vmp, Y: mpp.Imp}})
		if err != nil {
			return nil, err
		}
		marker.GlyphStyle.Color = plotutil.Color(i)
		marker.GlyphStyle.Shape = draw.CircleGlyph{}
		marker.GlyphStyle.Radius = vg.Points(3.5)
		p.Add(marker)
		p.Legend.Add(fmt.Sprintf("%s MPP %.1f W", s.Name, mpp.Pmp), marker)
	}
	return p, nil
}

// Write renders p in format ("png", "svg", "pdf", ...) to w.
func Write(w io.Writer, p *plot.Plot, format string) error {
	wt, err := p.WriterTo(Width, Height, format)
	if err != nil {
		return err
	}
	_, err = wt.WriteTo(w)
	return err
}

// Save renders the series to path, picking the format from its extension.
func Save(path, title string, series ...Series) error {
	p, err := New(title, series...)
	if err != nil {
		return err
	}
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(path), "."))
	if ext == "" {
		return &model.ConfigurationError{Field: "plot path", Reason: fmt.Sprintf("%q has no image extension", path)}
	}
	return p.Save(Width, Height, path)
}

func xys(c model.IVCurve) plotter.XYs {
	pts := make(plotter.XYs, c.Len())
	for i := range pts {
		pts[i].X = c.Voltage[i]
		pts[i].Y = c.Current[i]
	}
	return pts
}
