package presentation

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"qtodash/internal/dataprocessing"
)

// Chart is a Chart.js chart definition
type Chart struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Labels    []string       `json:"labels"`
	Datasets  []ChartDataset `json:"datasets"`
	IndexAxis string         `json:"index_axis,omitempty"`
}

// ChartDataset is one series of a Chart
type ChartDataset struct {
	Label string    `json:"label"`
	Data  []float64 `json:"data"`
}

// Metric is a headline number
type Metric struct {
	Label string  `json:"label"`
	Value float64 `json:"value"`
	// Display is Value formatted the way the dashboard shows it
	Display string `json:"display"`
}

// Table is a header plus rows of display strings
type Table struct {
	Title   string     `json:"title"`
	Columns []string   `json:"columns"`
	Rows    [][]string `json:"rows"`
}

// Dashboard is everything the browser needs to draw the page
type Dashboard struct {
	Title         string                         `json:"title"`
	FamilyDonut   Chart                          `json:"family_donut"`
	TopNBar       Chart                          `json:"top_n_bar"`
	MetricsHeader string                         `json:"metrics_header"`
	Metrics       []Metric                       `json:"metrics"`
	TopNTable     Table                          `json:"top_n_table"`
	OtherFrom     int                            `json:"other_from"`
	Stats         dataprocessing.PreprocessStats `json:"stats"`
}

// BuildDashboard lays out the dashboard for p
func BuildDashboard(p *dataprocessing.Products) *Dashboard {
	families := p.Families.Sums()
	donut := Chart{
		Type:     "doughnut",
		Title:    HeaderVolumeByFamily,
		Labels:   make([]string, len(families)),
		Datasets: []ChartDataset{{Label: dataprocessing.LabelVolume, Data: make([]float64, len(families))}},
	}
	for i, e := range families {
		donut.Labels[i] = e.Category
		donut.Datasets[0].Data[i] = e.Volume
	}

	entries := p.TopN.Entries
	bar := Chart{
		Type:      "bar",
		Title:     HeaderSummedVolumes,
		Labels:    make([]string, len(entries)),
		Datasets:  []ChartDataset{{Label: p.TopN.VolumeLabel, Data: make([]float64, len(entries))}},
		IndexAxis: "y",
	}
	table := Table{
		Title:   HeaderSummedVolumes,
		Columns: []string{p.TopN.CategoryLabel, p.TopN.VolumeLabel},
		Rows:    make([][]string, len(entries)),
	}
	for i, e := range entries {
		bar.Labels[i] = e.Category
		bar.Datasets[0].Data[i] = e.Volume
		table.Rows[i] = []string{e.Category, FormatVolume(e.Volume)}
	}

	return &Dashboard{
		Title:         Title,
		FamilyDonut:   donut,
		TopNBar:       bar,
		MetricsHeader: HeaderProjectVolume,
		Metrics: []Metric{
			{Label: LabelTotalVolume, Value: p.Totals.Volume, Display: FormatVolume(p.Totals.Volume)},
			{Label: LabelTotalCount, Value: float64(p.Totals.Count), Display: fmt.Sprintf("%d", p.Totals.Count)},
		},
		TopNTable: table,
		OtherFrom: p.TopN.OtherFrom,
		Stats:     p.Stats,
	}
}

// ChartPresenter writes the Dashboard as JSON
type ChartPresenter struct{}

// NewChartPresenter creates a ChartPresenter
func NewChartPresenter() *ChartPresenter {
	return &ChartPresenter{}
}

func (c *ChartPresenter) ContentType() string {
	return "application/json"
}

func (c *ChartPresenter) Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return json.NewEncoder(w).Encode(BuildDashboard(p))
}

// JSONPresenter writes the raw data products as indented JSON
type JSONPresenter struct{}

// NewJSONPresenter creates a JSONPresenter
func NewJSONPresenter() *JSONPresenter {
	return &JSONPresenter{}
}

func (j *JSONPresenter) ContentType() string {
	return "application/json"
}

func (j *JSONPresenter) Present(ctx context.Context, w io.Writer, p *dataprocessing.Products) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(p)
}
