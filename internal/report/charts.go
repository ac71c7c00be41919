package report

import (
	"bytes"
	"fmt"
	"io"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

const chartSize = "420px"

// genrePie renders the genre distribution as a standalone echarts page.
func genrePie(country string, counts []Count) (string, error) {
	data := make([]opts.PieData, 0, len(counts))
	for _, c := range counts {
		data = append(data, opts.PieData{Name: c.Label, Value: c.N})
	}

	pie := charts.NewPie()
	pie.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s genres", country),
			Width:     chartSize,
			Height:    chartSize,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithLegendOpts(opts.Legend{Show: opts.Bool(false)}),
	)
	pie.AddSeries("genres", data,
		charts.WithLabelOpts(opts.Label{
			Show:      opts.Bool(true),
			Formatter: "{b}: {d}%",
		}),
	)
	return renderChart(pie)
}

// wordCloud renders summary word frequencies as a standalone echarts page.
func wordCloud(country string, counts []Count) (string, error) {
	data := make([]opts.WordCloudData, 0, len(counts))
	for _, c := range counts {
		data = append(data, opts.WordCloudData{Name: c.Label, Value: c.N})
	}

	wc := charts.NewWordCloud()
	wc.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{
			PageTitle: fmt.Sprintf("%s summaries", country),
			Width:     chartSize,
			Height:    chartSize,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
	)
	wc.AddSeries("words", data)
	return renderChart(wc)
}

type renderer interface {
	Render(w io.Writer) error
}

func renderChart(c renderer) (string, error) {
	var buf bytes.Buffer
	if err := c.Render(&buf); err != nil {
		return "", fmt.Errorf("render chart: %w", err)
	}
	return buf.String(), nil
}
