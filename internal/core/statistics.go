package core

import (
	"math"

	"exoplanet_service/internal/domain/model"
)

const histogramBins = 10

// StatisticsAnalyzer summarises stored observations per KOI field.
type StatisticsAnalyzer struct{}

// Correlation returns the Pearson correlation of every pair of KOI fields.
// Each pair uses the observations where both values are present; pairs with
// fewer than two such rows or no variance get 0.
func (a *StatisticsAnalyzer) Correlation(records []model.ObservationRecord) model.MatrixData {
	n := len(model.FeatureFields)
	m := model.MatrixData{
		Labels: make([]string, n),
		Values: make([][]float64, n),
	}
	for i, f := range model.FeatureFields {
		m.Labels[i] = f.Name
		m.Values[i] = make([]float64, n)
		m.Values[i][i] = 1
	}

	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			r := pearson(records, model.FeatureFields[i].Name, model.FeatureFields[j].Name)
			m.Values[i][j] = r
			m.Values[j][i] = r
		}
	}
	return m
}

func pearson(records []model.ObservationRecord, x, y string) float64 {
	var xs, ys []float64
	for _, rec := range records {
		xv, okx := rec.Features.Get(x)
		yv, oky := rec.Features.Get(y)
		if okx && oky {
			xs = append(xs, xv)
			ys = append(ys, yv)
		}
	}
	if len(xs) < 2 {
		return 0
	}

	// Pearson r does not depend on scale; normalising keeps the sums finite.
	xs, ys = normalize(xs), normalize(ys)
	mx, my := mean(xs), mean(ys)
	var sxy, sxx, syy float64
	for i := range xs {
		dx, dy := xs[i]-mx, ys[i]-my
		sxy += dx * dy
		sxx += dx * dx
		syy += dy * dy
	}
	if sxx == 0 || syy == 0 {
		return 0
	}
	r := sxy / (math.Sqrt(sxx) * math.Sqrt(syy))
	if math.IsNaN(r) || math.IsInf(r, 0) {
		return 0
	}
	return math.Max(-1, math.Min(1, r))
}

// Distributions returns one histogram per KOI field in canonical order.
func (a *StatisticsAnalyzer) Distributions(records []model.ObservationRecord) []model.Distribution {
	out := make([]model.Distribution, 0, len(model.FeatureFields))
	for _, f := range model.FeatureFields {
		out = append(out, Histogram(f.Name, fieldValues(records, f.Name), histogramBins))
	}
	return out
}

func fieldValues(records []model.ObservationRecord, name string) []float64 {
	var values []float64
	for _, rec := range records {
		if v, ok := rec.Features.Get(name); ok {
			values = append(values, v)
		}
	}
	return values
}

// Histogram splits values into equal-width bins. Identical values fall into a
// single zero-width bin.
func Histogram(feature string, values []float64, bins int) model.Distribution {
	d := model.Distribution{Feature: feature, Count: len(values), Bins: []model.Bin{}}
	if len(values) == 0 {
		return d
	}

	d.Min, d.Max = values[0], values[0]
	for _, v := range values {
		d.Min = math.Min(d.Min, v)
		d.Max = math.Max(d.Max, v)
	}
	d.Mean = mean(values)

	if d.Min == d.Max {
		d.Bins = []model.Bin{{Lower: d.Min, Upper: d.Max, Count: len(values)}}
		return d
	}

	// Half-values keep Max-Min finite for inputs close to ±MaxFloat64.
	halfMin := d.Min / 2
	halfSpan := d.Max/2 - halfMin
	if halfSpan == 0 || math.IsInf(halfSpan, 0) {
		d.Bins = []model.Bin{{Lower: d.Min, Upper: d.Max, Count: len(values)}}
		return d
	}

	d.Bins = make([]model.Bin, bins)
	for i := range d.Bins {
		d.Bins[i].Lower = 2 * (halfMin + halfSpan*float64(i)/float64(bins))
		d.Bins[i].Upper = 2 * (halfMin + halfSpan*float64(i+1)/float64(bins))
	}
	d.Bins[0].Lower = d.Min
	d.Bins[bins-1].Upper = d.Max

	for _, v := range values {
		d.Bins[binIndex(d.Bins, (v/2-halfMin)/halfSpan*float64(bins), v)].Count++
	}
	return d
}

// binIndex maps v to its bin from the estimated position pos and then aligns
// the choice with the stored bounds so rounding never misplaces an edge value.
func binIndex(bins []model.Bin, pos, v float64) int {
	i := len(bins) - 1
	if !math.IsNaN(pos) && pos < float64(len(bins)) {
		i = int(math.Max(0, pos))
	}
	for i+1 < len(bins) && v >= bins[i+1].Lower {
		i++
	}
	for i > 0 && v < bins[i].Lower {
		i--
	}
	return i
}

// mean falls back to averaging values scaled by their largest magnitude when
// the plain sum overflows.
func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	if !math.IsInf(sum, 0) && !math.IsNaN(sum) {
		return sum / float64(len(values))
	}

	scale := maxAbs(values)
	sum = 0
	for _, v := range values {
		sum += v / scale
	}
	return sum / float64(len(values)) * scale
}

func maxAbs(values []float64) float64 {
	var m float64
	for _, v := range values {
		m = math.Max(m, math.Abs(v))
	}
	return m
}

func normalize(values []float64) []float64 {
	scale := maxAbs(values)
	if scale == 0 {
		return values
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v / scale
	}
	return out
}
