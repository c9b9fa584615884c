package core

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"exoplanet_service/internal/domain/model"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// csvTable reads a KOI export row by row. Column names are matched
// case-insensitively; columns the service does not know are ignored.
type csvTable struct {
	reader  *csv.Reader
	columns map[string]int
}

func openCSV(r io.Reader) (*csvTable, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		br.Discard(len(utf8BOM))
	}

	cr := csv.NewReader(br)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return nil, model.Invalid("", "CSV file is empty")
	}
	if err != nil {
		return nil, csvError(err)
	}

	t := &csvTable{reader: cr, columns: make(map[string]int, len(header))}
	for i, name := range header {
		key := strings.ToLower(strings.TrimSpace(name))
		if key == "" {
			continue
		}
		if _, dup := t.columns[key]; dup {
			return nil, model.Invalid(key, "duplicate column")
		}
		t.columns[key] = i
	}
	return t, nil
}

func csvError(err error) error {
	var pe *csv.ParseError
	if errors.As(err, &pe) {
		return model.Invalid("", "line %d: %v", pe.Line, pe.Err)
	}
	return fmt.Errorf("failed to read CSV: %w", err)
}

func (t *csvTable) has(name string) bool {
	_, ok := t.columns[name]
	return ok
}

// require fails with one error naming every missing column.
func (t *csvTable) require(names ...string) error {
	var missing []string
	for _, n := range names {
		if !t.has(n) {
			missing = append(missing, n)
		}
	}
	if len(missing) > 0 {
		return model.Invalid("", "missing required columns: %s", strings.Join(missing, ", "))
	}
	return nil
}

// next returns the following data row and its line number, or io.EOF.
func (t *csvTable) next() ([]string, int, error) {
	rec, err := t.reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, 0, io.EOF
		}
		return nil, 0, csvError(err)
	}
	line, _ := t.reader.FieldPos(0)
	return rec, line, nil
}

func (t *csvTable) value(rec []string, name string) string {
	i, ok := t.columns[name]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

// features parses the KOI columns of one row.
func (t *csvTable) features(rec []string, line int) (model.Features, error) {
	f := make(model.Features, len(model.FeatureFields))
	for _, spec := range model.FeatureFields {
		raw := t.value(rec, spec.Name)
		if raw == "" {
			if spec.Required {
				return nil, model.Invalid(spec.Name, "line %d: value is required", line)
			}
			continue
		}
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return nil, model.Invalid(spec.Name, "line %d: %q is not a number", line, raw)
		}
		if !spec.Check(v) {
			return nil, model.Invalid(spec.Name, "line %d: %s must be %s", line, raw, ruleText(spec))
		}
		f[spec.Name] = v
	}
	return f, nil
}

func ruleText(spec model.FieldSpec) string {
	switch {
	case spec.Min == nil:
		return "a finite number"
	case spec.MinExclusive:
		return fmt.Sprintf("greater than %g", *spec.Min)
	default:
		return fmt.Sprintf("at least %g", *spec.Min)
	}
}

// ParseObservations reads a CSV of KOI observations. Every row must carry the
// required fields; a file without data rows is rejected.
func ParseObservations(r io.Reader) ([]model.Features, error) {
	t, err := openCSV(r)
	if err != nil {
		return nil, err
	}
	if err := t.require(model.RequiredFields()...); err != nil {
		return nil, err
	}

	var rows []model.Features
	for {
		rec, line, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		f, err := t.features(rec, line)
		if err != nil {
			return nil, err
		}
		rows = append(rows, f)
	}

	if len(rows) == 0 {
		return nil, model.Invalid("", "no records")
	}
	return rows, nil
}

// Label columns accepted in training datasets, in order of preference.
var labelColumns = []string{"koi_disposition", "label"}

// DatasetSummary is what dataset processing learns from a training file.
type DatasetSummary struct {
	Samples int
	ByLabel map[model.Label]int
}

// ScanDataset validates a labelled training file and counts its samples.
func ScanDataset(r io.Reader) (*DatasetSummary, error) {
	t, err := openCSV(r)
	if err != nil {
		return nil, err
	}
	if err := t.require(model.RequiredFields()...); err != nil {
		return nil, err
	}

	labelCol := ""
	for _, c := range labelColumns {
		if t.has(c) {
			labelCol = c
			break
		}
	}
	if labelCol == "" {
		return nil, model.Invalid("", "missing label column: expected one of %s", strings.Join(labelColumns, ", "))
	}

	sum := &DatasetSummary{ByLabel: make(map[model.Label]int)}
	for {
		rec, line, err := t.next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		if _, err := t.features(rec, line); err != nil {
			return nil, err
		}
		raw := t.value(rec, labelCol)
		label, ok := model.ParseLabel(raw)
		if !ok {
			return nil, model.Invalid(labelCol, "line %d: unknown label %q", line, raw)
		}
		sum.ByLabel[label]++
		sum.Samples++
	}
	return sum, nil
}

// CheckFeatures validates a manually entered feature mapping.
func CheckFeatures(values map[string]float64) (model.Features, error) {
	if len(values) == 0 {
		return nil, model.Invalid("", "no features given")
	}
	for name := range values {
		if _, ok := model.LookupField(name); !ok {
			return nil, model.Invalid(name, "unknown field")
		}
	}

	f := make(model.Features, len(values))
	for _, spec := range model.FeatureFields {
		v, ok := values[spec.Name]
		if !ok {
			if spec.Required {
				return nil, model.Invalid(spec.Name, "value is required")
			}
			continue
		}
		if !spec.Check(v) {
			return nil, model.Invalid(spec.Name, "%g must be %s", v, ruleText(spec))
		}
		f[spec.Name] = v
	}
	return f, nil
}
