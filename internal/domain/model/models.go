package model

import (
	"math"
	"time"
)

// KOI field names used as model input features.
const (
	FieldPeriod      = "koi_period"
	FieldDuration    = "koi_duration"
	FieldDepth       = "koi_depth"
	FieldPlanetRad   = "koi_prad"
	FieldSNR         = "koi_model_snr"
	FieldNumTransits = "koi_num_transits"
	FieldStellarRad  = "koi_srad"
	FieldStellarTemp = "koi_steff"
	FieldStellarLogG = "koi_slogg"
	FieldImpact      = "koi_impact"
)

// FieldSpec describes one KOI parameter and the range it must satisfy.
type FieldSpec struct {
	Name     string
	Label    string
	Required bool
	// Min is the lower bound; MinExclusive makes it strict. A nil Min means any finite value.
	Min          *float64
	MinExclusive bool
}

func bound(v float64) *float64 { return &v }

// FeatureFields lists the ten KOI parameters in canonical order.
var FeatureFields = []FieldSpec{
	{Name: FieldPeriod, Label: "Orbital Period (days)", Required: true, Min: bound(0), MinExclusive: true},
	{Name: FieldDuration, Label: "Transit Duration (hours)", Required: true, Min: bound(0), MinExclusive: true},
	{Name: FieldDepth, Label: "Transit Depth (ppm)", Required: true, Min: bound(0)},
	{Name: FieldPlanetRad, Label: "Planetary Radius (Earth radii)", Required: true, Min: bound(0), MinExclusive: true},
	{Name: FieldSNR, Label: "Transit SNR", Required: true, Min: bound(0)},
	{Name: FieldNumTransits, Label: "Number of Transits", Min: bound(0)},
	{Name: FieldStellarRad, Label: "Stellar Radius (Solar radii)", Min: bound(0), MinExclusive: true},
	{Name: FieldStellarTemp, Label: "Stellar Temperature (K)", Min: bound(0), MinExclusive: true},
	{Name: FieldStellarLogG, Label: "Stellar Log g"},
	{Name: FieldImpact, Label: "Impact Parameter", Min: bound(0)},
}

// LookupField returns the FieldSpec of a KOI field by name.
func LookupField(name string) (FieldSpec, bool) {
	for _, f := range FeatureFields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// RequiredFields returns the names of the mandatory KOI fields.
func RequiredFields() []string {
	var names []string
	for _, f := range FeatureFields {
		if f.Required {
			names = append(names, f.Name)
		}
	}
	return names
}

// Check reports whether v is acceptable for the field.
func (f FieldSpec) Check(v float64) bool {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return false
	}
	if f.Min == nil {
		return true
	}
	if f.MinExclusive {
		return v > *f.Min
	}
	return v >= *f.Min
}

// Features maps KOI field names to values. Absent optional fields are missing keys.
type Features map[string]float64

// Get returns the value of a field and whether it is set.
func (f Features) Get(name string) (float64, bool) {
	v, ok := f[name]
	return v, ok
}

// GetOr returns the value of a field or def when it is absent.
func (f Features) GetOr(name string, def float64) float64 {
	if v, ok := f[name]; ok {
		return v
	}
	return def
}

type ObservationSource string

const (
	SourceCSV    ObservationSource = "csv"
	SourceManual ObservationSource = "manual"
)

// ObservationRecord is one row of transit-photometry parameters.
type ObservationRecord struct {
	ID        string            `json:"id"`
	BatchID   string            `json:"batchId,omitempty"`
	Source    ObservationSource `json:"source"`
	Features  Features          `json:"features"`
	CreatedAt time.Time         `json:"createdAt"`
}

// UploadResult is returned for an accepted CSV upload.
type UploadResult struct {
	RecordCount int    `json:"recordCount"`
	BatchID     string `json:"batchId"`
}
