package core

import (
	"context"
	"encoding/json"
	"math"
	"strings"
	"testing"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/infrastructure/charts"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTransitShape(t *testing.T) {
	var a TransitAnalyzer
	shape := a.Shape(model.Features{
		model.FieldPeriod:     10,
		model.FieldDuration:   3,
		model.FieldDepth:      1000,
		model.FieldPlanetRad:  2,
		model.FieldStellarRad: 1,
		model.FieldImpact:     0,
	})

	assert.InDelta(t, 0.001, shape.Depth, 1e-12)
	assert.InDelta(t, 3*2*earthToSolarRadius, shape.Ingress, 1e-9)
	assert.Equal(t, 1.0, shape.Flux(1.6))
	assert.InDelta(t, 0.999, shape.Flux(0), 1e-12)

	mid := shape.Flux(1.5 - shape.Ingress/2)
	assert.InDelta(t, 1-0.0005, mid, 1e-9, "flux halfway through ingress")

	box := shape.Box()
	assert.InDelta(t, 0.999, box.Flux(1.49), 1e-12)
}

func TestTransitCurve(t *testing.T) {
	var a TransitAnalyzer
	shape := a.Shape(model.Features{model.FieldPeriod: 0.1, model.FieldDuration: 2, model.FieldDepth: 400})

	points := shape.Curve()
	require.Len(t, points, curveSamples)
	assert.InDelta(t, -1.2, points[0].X, 1e-9, "window capped at half the period")
	assert.InDelta(t, 1.2, points[len(points)-1].X, 1e-9)
	for _, p := range points {
		assert.LessOrEqual(t, p.Y, 1.0)
		assert.GreaterOrEqual(t, p.Y, 1-0.0004-1e-12)
	}

	grazing := a.Shape(model.Features{model.FieldDuration: 2, model.FieldDepth: 400, model.FieldImpact: 1.1})
	assert.Equal(t, 1.0, grazing.Ingress)
	assert.Empty(t, TransitShape{}.Curve())
}

func TestCorrelation(t *testing.T) {
	records := []model.ObservationRecord{
		{Features: model.Features{model.FieldPeriod: 1, model.FieldDuration: 2, model.FieldDepth: 5, model.FieldSNR: 7}},
		{Features: model.Features{model.FieldPeriod: 2, model.FieldDuration: 4, model.FieldDepth: 3, model.FieldSNR: 7}},
		{Features: model.Features{model.FieldPeriod: 3, model.FieldDuration: 6, model.FieldDepth: 1, model.FieldSNR: 7}},
		{Features: model.Features{model.FieldPeriod: 4}},
	}

	var a StatisticsAnalyzer
	m := a.Correlation(records)
	require.Len(t, m.Labels, len(model.FeatureFields))
	require.Len(t, m.Values, len(model.FeatureFields))

	idx := func(name string) int {
		for i, l := range m.Labels {
			if l == name {
				return i
			}
		}
		t.Fatalf("missing label %s", name)
		return -1
	}
	p, d, dep, snr, imp := idx(model.FieldPeriod), idx(model.FieldDuration), idx(model.FieldDepth), idx(model.FieldSNR), idx(model.FieldImpact)

	assert.InDelta(t, 1, m.Values[p][d], 1e-12)
	assert.InDelta(t, -1, m.Values[p][dep], 1e-12)
	assert.Equal(t, m.Values[p][dep], m.Values[dep][p])
	assert.Equal(t, 0.0, m.Values[p][snr], "constant column")
	assert.Equal(t, 0.0, m.Values[p][imp], "no overlapping values")
	for i := range m.Values {
		assert.Equal(t, 1.0, m.Values[i][i])
		for j := range m.Values[i] {
			assert.False(t, math.IsNaN(m.Values[i][j]))
		}
	}
}

func TestHistogram(t *testing.T) {
	d := Histogram("koi_period", []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, 10)
	assert.Equal(t, 11, d.Count)
	assert.Equal(t, 0.0, d.Min)
	assert.Equal(t, 10.0, d.Max)
	assert.Equal(t, 5.0, d.Mean)
	require.Len(t, d.Bins, 10)
	assert.Equal(t, 2, d.Bins[9].Count, "max value lands in the last bin")

	total := 0
	for _, b := range d.Bins {
		total += b.Count
	}
	assert.Equal(t, 11, total)

	same := Histogram("koi_impact", []float64{0.5, 0.5}, 10)
	require.Len(t, same.Bins, 1)
	assert.Equal(t, 2, same.Bins[0].Count)

	empty := Histogram("koi_srad", nil, 10)
	assert.Zero(t, empty.Count)
	assert.NotNil(t, empty.Bins)
}

func TestHistogramExtremeValues(t *testing.T) {
	cases := map[string][]float64{
		"both ends of float64": {-1e308, 1e308, 1e200, 1e-200},
		"large positives":      {1e308, 1e308, 1e307},
		"max float":            {math.MaxFloat64, -math.MaxFloat64},
		"tiny span":            {1e-200, 2e-200, 3e-200},
	}
	for name, values := range cases {
		t.Run(name, func(t *testing.T) {
			d := Histogram(model.FieldSNR, values, histogramBins)
			assert.False(t, math.IsInf(d.Mean, 0) || math.IsNaN(d.Mean), "mean %v", d.Mean)

			total := 0
			for _, b := range d.Bins {
				total += b.Count
				assert.False(t, math.IsInf(b.Lower, 0) || math.IsNaN(b.Lower))
				assert.False(t, math.IsInf(b.Upper, 0) || math.IsNaN(b.Upper))
			}
			assert.Equal(t, len(values), total)

			_, err := json.Marshal(d)
			require.NoError(t, err)
		})
	}

	d := Histogram(model.FieldSNR, []float64{1e308, 1e308}, histogramBins)
	assert.Equal(t, 1e308, d.Mean)
}

func TestCorrelationExtremeValues(t *testing.T) {
	records := []model.ObservationRecord{
		{Features: model.Features{model.FieldSNR: 1e308, model.FieldDepth: 1e-200, model.FieldPeriod: 1}},
		{Features: model.Features{model.FieldSNR: -1e308, model.FieldDepth: 1e200, model.FieldPeriod: 2}},
		{Features: model.Features{model.FieldSNR: 1e308, model.FieldDepth: 3e200, model.FieldPeriod: 3}},
	}

	var a StatisticsAnalyzer
	m := a.Correlation(records)
	for i := range m.Values {
		for j := range m.Values[i] {
			v := m.Values[i][j]
			assert.False(t, math.IsInf(v, 0) || math.IsNaN(v), "%s/%s", m.Labels[i], m.Labels[j])
			assert.LessOrEqual(t, math.Abs(v), 1.0)
		}
	}
	_, err := json.Marshal(m)
	require.NoError(t, err)

	_, err = json.Marshal(a.Distributions(records))
	require.NoError(t, err)
}

func newVisualization(t *testing.T, env testEnv, ml model.MLClient) *VisualizationService {
	t.Helper()
	svc, err := NewVisualizationService(env.observations, ml, charts.NewRenderer(false), 16)
	require.NoError(t, err)
	return svc
}

func TestVisualizationLightCurveAndFit(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	id, err := NewObservationService(env.observations).SubmitManual(ctx, sampleFeatures())
	require.NoError(t, err)

	svc := newVisualization(t, env, &scriptedML{})

	curve, err := svc.LightCurve(ctx, id)
	require.NoError(t, err)
	require.Len(t, curve.Series, 1)
	assert.Len(t, curve.Series[0].Points, curveSamples)
	assert.Empty(t, curve.ChartURL)

	again, err := svc.LightCurve(ctx, id)
	require.NoError(t, err)
	assert.Same(t, curve, again, "light curves are cached")

	fit, err := svc.ModelFit(ctx, id)
	require.NoError(t, err)
	require.Len(t, fit.Series, 2)
	assert.Equal(t, "box fit", fit.Series[1].Name)

	_, err = svc.LightCurve(ctx, "missing")
	assert.ErrorIs(t, err, model.ErrNotFound)
	_, err = svc.ModelFit(ctx, "")
	assert.ErrorIs(t, err, model.ErrValidation)
}

func TestVisualizationModelInsights(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	ml := &scriptedML{importance: []model.FeatureImportance{
		{Feature: "koi_depth", Importance: 0.1},
		{Feature: "koi_model_snr", Importance: 0.4},
		{Feature: "koi_prad", Importance: 0.2},
	}}
	svc := newVisualization(t, env, ml)

	features, _, err := svc.FeatureImportance(ctx, "xgboost")
	require.NoError(t, err)
	assert.Equal(t, "koi_model_snr", features[0].Feature)
	assert.Equal(t, "koi_depth", features[2].Feature)

	_, _, err = svc.FeatureImportance(ctx, "xgboost")
	require.NoError(t, err)
	assert.Equal(t, 1, ml.Calls("importance"))

	_, _, err = svc.FeatureImportance(ctx, "lightgbm")
	assert.ErrorIs(t, err, model.ErrValidation)

	m, err := svc.ConfusionMatrix(ctx, "dnn")
	require.NoError(t, err)
	assert.Len(t, m.Values, 2)
}

func TestVisualizationDatasetStatistics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	obs := NewObservationService(env.observations)
	_, err := obs.UploadCSV(ctx, strings.NewReader(observationCSV(12)))
	require.NoError(t, err)

	svc := newVisualization(t, env, &scriptedML{})

	m, err := svc.CorrelationMatrix(ctx)
	require.NoError(t, err)
	assert.Len(t, m.Values, len(model.FeatureFields))

	dists, err := svc.Distributions(ctx)
	require.NoError(t, err)
	require.Len(t, dists, len(model.FeatureFields))
	assert.Equal(t, model.FieldPeriod, dists[0].Feature)
	assert.Equal(t, 12, dists[0].Count)
	assert.Zero(t, dists[5].Count, "koi_num_transits is not in the file")
}

func TestVisualizationDiagnostics(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	obs := NewObservationService(env.observations)
	_, err := obs.UploadCSV(ctx, strings.NewReader(observationCSV(4)))
	require.NoError(t, err)
	id, err := obs.SubmitManual(ctx, sampleFeatures())
	require.NoError(t, err)

	ml := &scriptedML{}
	svc := newVisualization(t, env, ml)

	chart, err := svc.Diagnostics(ctx, "mes-distribution", id)
	require.NoError(t, err)
	require.Len(t, chart.Series, 2)
	assert.Equal(t, 35.8, chart.Series[1].Points[0].X)
	assert.Zero(t, ml.Calls("diagnostics"))

	chart, err = svc.Diagnostics(ctx, "mes-distribution", "")
	require.NoError(t, err)
	assert.Len(t, chart.Series, 1)

	chart, err = svc.Diagnostics(ctx, "odd-even", id)
	require.NoError(t, err)
	assert.Equal(t, id, chart.Series[0].Name)
	assert.Equal(t, 1, ml.Calls("diagnostics"))

	_, err = svc.Diagnostics(ctx, "odd-even", "")
	assert.ErrorIs(t, err, model.ErrValidation)
	_, err = svc.Diagnostics(ctx, "rotation", id)
	assert.ErrorIs(t, err, model.ErrValidation)
}
