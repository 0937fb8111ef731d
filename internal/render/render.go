package render

import (
	"fmt"
	"io"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/hydrowatch/hydrowatch/internal/series"
)

const (
	chartWidth  = 1000
	chartHeight = 600
)

var (
	flowColor    = drawing.ColorFromHex("1f77b4")
	imputedColor = drawing.ColorFromHex("d62728")
)

// Hydrograph renders the cleaned series and its statistics as a PNG chart
// written to w. title is the station display name. It never mutates its
// inputs and fails when the series has fewer than two points — there is no
// line to draw.
func Hydrograph(w io.Writer, title string, cleaned []series.CleanedSample, sum series.Summary) error {
	if len(cleaned) < 2 {
		return fmt.Errorf("render: need at least 2 points, got %d", len(cleaned))
	}

	xs := make([]time.Time, len(cleaned))
	ys := make([]float64, len(cleaned))
	var impXs []time.Time
	var impYs []float64
	for i, c := range cleaned {
		xs[i] = c.Timestamp
		ys[i] = c.Value
		if c.Origin == series.OriginImputed {
			impXs = append(impXs, c.Timestamp)
			impYs = append(impYs, c.Value)
		}
	}

	graph := chart.Chart{
		Title:  title,
		Width:  chartWidth,
		Height: chartHeight,
		XAxis: chart.XAxis{
			Name:           "Date & Time",
			ValueFormatter: chart.TimeValueFormatterWithFormat("01-02 15:04"),
		},
		YAxis: chart.YAxis{
			Name: "Discharge (cfs)",
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    "Streamflow",
				XValues: xs,
				YValues: ys,
				Style: chart.Style{
					StrokeColor: flowColor,
					StrokeWidth: 2,
				},
			},
		},
	}

	if len(impXs) > 0 {
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    "Imputed",
			XValues: impXs,
			YValues: impYs,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    imputedColor,
			},
		})
	}

	if sum.ObservedCount > 0 {
		graph.Series = append(graph.Series, chart.AnnotationSeries{
			Annotations: []chart.Value2{
				{
					XValue: chart.TimeToFloat64(sum.MaxAt),
					YValue: sum.Max,
					Label:  fmt.Sprintf("max %.1f", sum.Max),
				},
				{
					XValue: chart.TimeToFloat64(sum.MinAt),
					YValue: sum.Min,
					Label:  fmt.Sprintf("min %.1f", sum.Min),
				},
			},
		})
	}

	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	if err := graph.Render(chart.PNG, w); err != nil {
		return fmt.Errorf("render: %w", err)
	}
	return nil
}
