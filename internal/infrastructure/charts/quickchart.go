// Package charts turns chart payloads into QuickChart image URLs.
package charts

import (
	"encoding/json"
	"fmt"

	"exoplanet_service/internal/domain/model"

	quickchartgo "github.com/henomis/quickchart-go"
	log "github.com/sirupsen/logrus"
)

type ChartConfig struct {
	Type    string                 `json:"type"`
	Data    ChartData              `json:"data"`
	Options map[string]interface{} `json:"options,omitempty"`
}

type ChartData struct {
	Labels   []interface{} `json:"labels,omitempty"`
	DataSets []Dataset     `json:"datasets"`
}

type Dataset struct {
	Label       string        `json:"label"`
	Data        []interface{} `json:"data"`
	Fill        bool          `json:"fill"`
	ShowLine    bool          `json:"showLine,omitempty"`
	PointRadius int           `json:"pointRadius"`
	LineTension float32       `json:"lineTension"`
}

// Renderer builds chart URLs. A disabled renderer returns empty URLs.
type Renderer struct {
	enabled bool
}

func NewRenderer(enabled bool) *Renderer {
	return &Renderer{enabled: enabled}
}

// SeriesURL renders x/y series as connected scatter lines.
func (r *Renderer) SeriesURL(chart model.ChartData) string {
	if !r.enabled || len(chart.Series) == 0 {
		return ""
	}

	cfg := ChartConfig{
		Type:    "scatter",
		Options: titleOptions(chart.Title),
	}
	for _, s := range chart.Series {
		points := make([]interface{}, 0, len(s.Points))
		for _, p := range s.Points {
			points = append(points, p)
		}
		cfg.Data.DataSets = append(cfg.Data.DataSets, Dataset{
			Label:    s.Name,
			Data:     points,
			ShowLine: true,
		})
	}
	return r.url(cfg)
}

// BarURL renders one labelled bar series.
func (r *Renderer) BarURL(title string, labels []string, values []float64) string {
	if !r.enabled || len(labels) == 0 {
		return ""
	}

	cfg := ChartConfig{Type: "bar", Options: titleOptions(title)}
	ds := Dataset{Label: title, PointRadius: 3}
	for i, l := range labels {
		cfg.Data.Labels = append(cfg.Data.Labels, l)
		ds.Data = append(ds.Data, values[i])
	}
	cfg.Data.DataSets = []Dataset{ds}
	return r.url(cfg)
}

// HistogramURL renders distribution bins as bars labelled by their lower edge.
func (r *Renderer) HistogramURL(d model.Distribution) string {
	labels := make([]string, 0, len(d.Bins))
	values := make([]float64, 0, len(d.Bins))
	for _, b := range d.Bins {
		labels = append(labels, fmt.Sprintf("%.3g", b.Lower))
		values = append(values, float64(b.Count))
	}
	return r.BarURL(d.Feature, labels, values)
}

func (r *Renderer) url(cfg ChartConfig) string {
	bytes, err := json.Marshal(cfg)
	if err != nil {
		log.WithError(err).Error("failed to marshal chart config")
		return ""
	}
	qc := quickchartgo.New()
	qc.Config = string(bytes)
	url, err := qc.GetUrl()
	if err != nil {
		log.WithError(err).Error("failed to get chart url from quickchart")
		return ""
	}
	return url
}

func titleOptions(title string) map[string]interface{} {
	if title == "" {
		return nil
	}
	return map[string]interface{}{
		"title": map[string]interface{}{"display": true, "text": title},
	}
}
