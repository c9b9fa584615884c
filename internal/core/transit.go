package core

import (
	"math"

	"exoplanet_service/internal/domain/model"
)

// earthToSolarRadius is R_earth / R_sun.
const earthToSolarRadius = 0.009168

const curveSamples = 201

// TransitShape is a trapezoid approximation of a transit light curve.
type TransitShape struct {
	Depth    float64 // fractional flux drop
	Duration float64 // first to fourth contact, hours
	Ingress  float64 // first to second contact, hours
	Period   float64 // hours
}

// TransitAnalyzer derives light-curve shapes from KOI parameters.
type TransitAnalyzer struct{}

func (a *TransitAnalyzer) Shape(f model.Features) TransitShape {
	depth := f.GetOr(model.FieldDepth, 0) * 1e-6
	duration := f.GetOr(model.FieldDuration, 0)

	shape := TransitShape{
		Depth:    depth,
		Duration: duration,
		Period:   f.GetOr(model.FieldPeriod, 0) * 24,
	}
	shape.Ingress = duration * ingressFraction(radiusRatio(f), f.GetOr(model.FieldImpact, 0))
	return shape
}

// radiusRatio returns Rp/Rs, falling back to sqrt(depth) without a stellar radius.
func radiusRatio(f model.Features) float64 {
	srad, ok := f.Get(model.FieldStellarRad)
	prad, hasPrad := f.Get(model.FieldPlanetRad)
	if ok && hasPrad && srad > 0 {
		return prad * earthToSolarRadius / srad
	}
	return math.Sqrt(math.Max(f.GetOr(model.FieldDepth, 0)*1e-6, 0))
}

// ingressFraction is tau/T for a small planet, capped at 0.5 where the
// trapezoid degenerates into a V (grazing transits).
func ingressFraction(k, b float64) float64 {
	if b >= 1 {
		return 0.5
	}
	r := k / (1 - b*b)
	if r > 0.5 || math.IsNaN(r) {
		return 0.5
	}
	if r < 0 {
		return 0
	}
	return r
}

// Flux returns the relative flux t hours from mid-transit.
func (s TransitShape) Flux(t float64) float64 {
	half := s.Duration / 2
	at := math.Abs(t)
	switch {
	case at >= half:
		return 1
	case s.Ingress <= 0 || at <= half-s.Ingress:
		return 1 - s.Depth
	default:
		return 1 - s.Depth*(half-at)/s.Ingress
	}
}

// Curve samples the shape over three transit durations, limited to half a period.
func (s TransitShape) Curve() []model.Point {
	span := 1.5 * s.Duration
	if s.Period > 0 && span > s.Period/2 {
		span = s.Period / 2
	}
	if span <= 0 {
		return []model.Point{}
	}

	step := 2 * span / float64(curveSamples-1)
	points := make([]model.Point, 0, curveSamples)
	for i := 0; i < curveSamples; i++ {
		t := -span + float64(i)*step
		points = append(points, model.Point{X: t, Y: s.Flux(t)})
	}
	return points
}

// Box returns the same transit with instantaneous ingress.
func (s TransitShape) Box() TransitShape {
	s.Ingress = 0
	return s
}
