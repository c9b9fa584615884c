package model

// Point is one sample of a chart series.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

type Series struct {
	Name   string  `json:"name"`
	Points []Point `json:"points"`
}

// ChartData is a chart-ready set of series.
type ChartData struct {
	Title    string   `json:"title"`
	XLabel   string   `json:"xLabel"`
	YLabel   string   `json:"yLabel"`
	Series   []Series `json:"series"`
	ChartURL string   `json:"chartUrl,omitempty"`
}

// MatrixData is a square row-major matrix with row/column labels.
type MatrixData struct {
	Labels []string    `json:"labels" yaml:"labels"`
	Values [][]float64 `json:"values" yaml:"values"`
}

type FeatureImportance struct {
	Feature    string  `json:"feature" yaml:"feature"`
	Importance float64 `json:"importance" yaml:"importance"`
}

type Bin struct {
	Lower float64 `json:"lower"`
	Upper float64 `json:"upper"`
	Count int     `json:"count"`
}

// Distribution is a histogram of one KOI field.
type Distribution struct {
	Feature  string  `json:"feature"`
	Count    int     `json:"count"`
	Min      float64 `json:"min"`
	Max      float64 `json:"max"`
	Mean     float64 `json:"mean"`
	Bins     []Bin   `json:"bins"`
	ChartURL string  `json:"chartUrl,omitempty"`
}

type DiagnosticType string

const (
	DiagnosticCentroidOffset   DiagnosticType = "centroid-offset"
	DiagnosticOddEven          DiagnosticType = "odd-even"
	DiagnosticSecondaryEclipse DiagnosticType = "secondary-eclipse"
	DiagnosticMES              DiagnosticType = "mes-distribution"
)

var DiagnosticTypes = []DiagnosticType{
	DiagnosticCentroidOffset,
	DiagnosticOddEven,
	DiagnosticSecondaryEclipse,
	DiagnosticMES,
}

func ParseDiagnosticType(s string) (DiagnosticType, bool) {
	for _, t := range DiagnosticTypes {
		if string(t) == s {
			return t, true
		}
	}
	return "", false
}
