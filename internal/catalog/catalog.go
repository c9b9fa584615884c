// Package catalog holds the base models the gateway can serve.
package catalog

import (
	_ "embed"
	"fmt"
	"os"

	"exoplanet_service/internal/domain/model"

	"gopkg.in/yaml.v3"
)

//go:embed models.yaml
var defaultCatalog []byte

// Entry is one base model with its static snapshots.
type Entry struct {
	model.ModelInfo   `yaml:",inline"`
	FeatureImportance []model.FeatureImportance `yaml:"featureImportance"`
	ConfusionMatrix   model.MatrixData          `yaml:"confusionMatrix"`
}

type Catalog struct {
	entries []Entry
	byID    map[string]int
}

// Load reads a catalog file, or the embedded default when path is empty.
func Load(path string) (*Catalog, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read model catalog: %w", err)
	}
	return Parse(data)
}

// Default returns the embedded catalog.
func Default() *Catalog {
	c, err := Parse(defaultCatalog)
	if err != nil {
		panic(fmt.Sprintf("embedded model catalog is invalid: %v", err))
	}
	return c
}

func Parse(data []byte) (*Catalog, error) {
	var doc struct {
		Models []Entry `yaml:"models"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse model catalog: %w", err)
	}
	if len(doc.Models) == 0 {
		return nil, fmt.Errorf("model catalog is empty")
	}

	c := &Catalog{byID: make(map[string]int, len(doc.Models))}
	for i, e := range doc.Models {
		if e.ID == "" {
			return nil, fmt.Errorf("model #%d has no id", i+1)
		}
		if _, dup := c.byID[e.ID]; dup {
			return nil, fmt.Errorf("duplicate model id %q", e.ID)
		}
		if _, err := model.ParseModelType(string(e.Type)); err != nil {
			return nil, fmt.Errorf("model %q: %w", e.ID, err)
		}
		if err := checkMetrics(e.Metrics); err != nil {
			return nil, fmt.Errorf("model %q: %w", e.ID, err)
		}
		if err := checkMatrix(e.ConfusionMatrix); err != nil {
			return nil, fmt.Errorf("model %q: %w", e.ID, err)
		}
		c.byID[e.ID] = len(c.entries)
		c.entries = append(c.entries, e)
	}
	return c, nil
}

func checkMetrics(m model.ModelMetrics) error {
	for name, v := range m.AsMap() {
		if v < 0 || v > 1 {
			return fmt.Errorf("metric %s = %v is outside [0, 1]", name, v)
		}
	}
	return nil
}

func checkMatrix(m model.MatrixData) error {
	if len(m.Values) != len(m.Labels) {
		return fmt.Errorf("confusion matrix has %d rows for %d labels", len(m.Values), len(m.Labels))
	}
	for i, row := range m.Values {
		if len(row) != len(m.Labels) {
			return fmt.Errorf("confusion matrix row %d has %d columns, want %d", i, len(row), len(m.Labels))
		}
	}
	return nil
}

// Models returns the catalog entries in file order.
func (c *Catalog) Models() []model.ModelInfo {
	out := make([]model.ModelInfo, 0, len(c.entries))
	for _, e := range c.entries {
		out = append(out, e.ModelInfo)
	}
	return out
}

func (c *Catalog) Get(id string) (Entry, bool) {
	i, ok := c.byID[id]
	if !ok {
		return Entry{}, false
	}
	return c.entries[i], true
}

// Base returns the first catalog entry of the given model type.
func (c *Catalog) Base(t model.ModelType) (Entry, bool) {
	for _, e := range c.entries {
		if e.Type == t {
			return e, true
		}
	}
	return Entry{}, false
}
