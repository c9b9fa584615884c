package core

import (
	"context"
	"fmt"
	"sort"

	"exoplanet_service/internal/domain/model"
	"exoplanet_service/internal/domain/repository"
	"exoplanet_service/internal/infrastructure/charts"

	cache "github.com/hashicorp/golang-lru"
)

// VisualizationService builds chart-ready data from stored observations and
// the ML backend. Results for immutable inputs are cached.
type VisualizationService struct {
	observations *repository.ObservationRepository
	mlClient     model.MLClient
	charts       *charts.Renderer
	cache        *cache.Cache

	transit TransitAnalyzer
	stats   StatisticsAnalyzer
}

func NewVisualizationService(
	observations *repository.ObservationRepository,
	mlClient model.MLClient,
	renderer *charts.Renderer,
	cacheSize int,
) (*VisualizationService, error) {
	if cacheSize <= 0 {
		cacheSize = 256
	}
	c, err := cache.New(cacheSize)
	if err != nil {
		return nil, fmt.Errorf("failed to create chart cache: %w", err)
	}
	return &VisualizationService{
		observations: observations,
		mlClient:     mlClient,
		charts:       renderer,
		cache:        c,
	}, nil
}

// cached returns the value stored under key or computes and stores it.
func (s *VisualizationService) cached(key string, build func() (interface{}, error)) (interface{}, error) {
	if v, ok := s.cache.Get(key); ok {
		return v, nil
	}
	v, err := build()
	if err != nil {
		return nil, err
	}
	s.cache.Add(key, v)
	return v, nil
}

func (s *VisualizationService) observation(ctx context.Context, objectID string) (model.ObservationRecord, error) {
	if objectID == "" {
		return model.ObservationRecord{}, model.Invalid("objectId", "is required")
	}
	return s.observations.Get(ctx, objectID)
}

func parseModelType(s string) (model.ModelType, error) {
	mt, err := model.ParseModelType(s)
	if err != nil {
		return "", model.Invalid("modelType", "%v", err)
	}
	return mt, nil
}

// LightCurve returns the phase-folded transit model of an observation.
func (s *VisualizationService) LightCurve(ctx context.Context, objectID string) (*model.ChartData, error) {
	v, err := s.cached("lightcurve:"+objectID, func() (interface{}, error) {
		rec, err := s.observation(ctx, objectID)
		if err != nil {
			return nil, err
		}
		shape := s.transit.Shape(rec.Features)
		chart := &model.ChartData{
			Title:  "Phase-folded light curve",
			XLabel: "Hours from mid-transit",
			YLabel: "Relative flux",
			Series: []model.Series{{Name: "transit model", Points: shape.Curve()}},
		}
		chart.ChartURL = s.charts.SeriesURL(*chart)
		return chart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ChartData), nil
}

// ModelFit returns the trapezoid transit model next to a box fit.
func (s *VisualizationService) ModelFit(ctx context.Context, objectID string) (*model.ChartData, error) {
	v, err := s.cached("modelfit:"+objectID, func() (interface{}, error) {
		rec, err := s.observation(ctx, objectID)
		if err != nil {
			return nil, err
		}
		shape := s.transit.Shape(rec.Features)
		chart := &model.ChartData{
			Title:  "Transit model fit",
			XLabel: "Hours from mid-transit",
			YLabel: "Relative flux",
			Series: []model.Series{
				{Name: "trapezoid model", Points: shape.Curve()},
				{Name: "box fit", Points: shape.Box().Curve()},
			},
		}
		chart.ChartURL = s.charts.SeriesURL(*chart)
		return chart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ChartData), nil
}

// FeatureImportance returns model-owned importances, highest first.
func (s *VisualizationService) FeatureImportance(ctx context.Context, modelType string) ([]model.FeatureImportance, string, error) {
	mt, err := parseModelType(modelType)
	if err != nil {
		return nil, "", err
	}

	v, err := s.cached("importance:"+string(mt), func() (interface{}, error) {
		features, err := s.mlClient.FeatureImportance(ctx, mt)
		if err != nil {
			return nil, fmt.Errorf("failed to get feature importance: %w", err)
		}
		sort.SliceStable(features, func(i, j int) bool {
			return features[i].Importance > features[j].Importance
		})
		return features, nil
	})
	if err != nil {
		return nil, "", err
	}

	features := v.([]model.FeatureImportance)
	labels := make([]string, len(features))
	values := make([]float64, len(features))
	for i, f := range features {
		labels[i] = f.Feature
		values[i] = f.Importance
	}
	return features, s.charts.BarURL("Feature importance", labels, values), nil
}

// CorrelationMatrix correlates the KOI fields over all stored observations.
func (s *VisualizationService) CorrelationMatrix(ctx context.Context) (*model.MatrixData, error) {
	records, err := s.observations.All(ctx)
	if err != nil {
		return nil, err
	}
	m := s.stats.Correlation(records)
	return &m, nil
}

// Distributions returns per-field histograms over all stored observations.
func (s *VisualizationService) Distributions(ctx context.Context) ([]model.Distribution, error) {
	records, err := s.observations.All(ctx)
	if err != nil {
		return nil, err
	}
	dists := s.stats.Distributions(records)
	for i := range dists {
		dists[i].ChartURL = s.charts.HistogramURL(dists[i])
	}
	return dists, nil
}

func (s *VisualizationService) ConfusionMatrix(ctx context.Context, modelType string) (*model.MatrixData, error) {
	mt, err := parseModelType(modelType)
	if err != nil {
		return nil, err
	}
	v, err := s.cached("confusion:"+string(mt), func() (interface{}, error) {
		m, err := s.mlClient.ConfusionMatrix(ctx, mt)
		if err != nil {
			return nil, fmt.Errorf("failed to get confusion matrix: %w", err)
		}
		return m, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.MatrixData), nil
}

// Diagnostics returns a vetting plot. The MES distribution is computed from
// stored observations; the other kinds come from the ML backend.
func (s *VisualizationService) Diagnostics(ctx context.Context, kind, objectID string) (*model.ChartData, error) {
	dt, ok := model.ParseDiagnosticType(kind)
	if !ok {
		return nil, model.Invalid("type", "unknown diagnostic %q", kind)
	}
	if dt == model.DiagnosticMES {
		return s.mesDistribution(ctx, objectID)
	}

	v, err := s.cached("diagnostics:"+kind+":"+objectID, func() (interface{}, error) {
		rec, err := s.observation(ctx, objectID)
		if err != nil {
			return nil, err
		}
		chart, err := s.mlClient.Diagnostics(ctx, dt, rec)
		if err != nil {
			return nil, fmt.Errorf("failed to get %s diagnostics: %w", dt, err)
		}
		chart.ChartURL = s.charts.SeriesURL(*chart)
		return chart, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*model.ChartData), nil
}

// mesDistribution histograms the transit SNR of stored observations and
// marks the selected object when one is given.
func (s *VisualizationService) mesDistribution(ctx context.Context, objectID string) (*model.ChartData, error) {
	records, err := s.observations.All(ctx)
	if err != nil {
		return nil, err
	}
	hist := Histogram(model.FieldSNR, fieldValues(records, model.FieldSNR), histogramBins)

	chart := &model.ChartData{
		Title:  "MES distribution",
		XLabel: "Transit SNR",
		YLabel: "Observations",
		Series: []model.Series{{Name: "observations", Points: make([]model.Point, 0, len(hist.Bins))}},
	}
	for _, b := range hist.Bins {
		chart.Series[0].Points = append(chart.Series[0].Points, model.Point{X: b.Lower/2 + b.Upper/2, Y: float64(b.Count)})
	}

	if objectID != "" {
		rec, err := s.observations.Get(ctx, objectID)
		if err != nil {
			return nil, err
		}
		chart.Series = append(chart.Series, model.Series{
			Name:   "selected",
			Points: []model.Point{{X: rec.Features.GetOr(model.FieldSNR, 0), Y: 0}},
		})
	}
	chart.ChartURL = s.charts.SeriesURL(*chart)
	return chart, nil
}
