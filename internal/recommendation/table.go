// Package recommendation holds the static advice attached to each predicted
// label.
package recommendation

import (
	_ "embed"
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"

	"github.com/arbovm/levenshtein"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

//go:embed recommendation.json
var embeddedData []byte

var fallback = models.Recommendation{
	DiseaseName:        "Unknown",
	Recommendations:    "No recommendations available",
	PreventiveMeasures: "No measures available",
}

// Fallback returns the record shown for labels without data.
func Fallback() models.Recommendation {
	return fallback
}

// Table is an immutable label to recommendation mapping.
type Table struct {
	records map[models.Label]models.Recommendation
	labels  []models.Label
}

// Load reads the table from path, or from the embedded data when path is
// empty.
func Load(path string) (*Table, error) {
	data := embeddedData
	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read recommendations '%s': %w", path, err)
		}
		data = raw
	}
	return parse(data)
}

// MustDefault returns the embedded table and panics if it is malformed.
func MustDefault() *Table {
	t, err := parse(embeddedData)
	if err != nil {
		panic(err)
	}
	return t
}

func parse(data []byte) (*Table, error) {
	var records map[models.Label]models.Recommendation
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, fmt.Errorf("failed to parse recommendations: %w", err)
	}
	if len(records) == 0 {
		return nil, fmt.Errorf("recommendation table is empty")
	}

	labels := make([]models.Label, 0, len(records))
	for label := range records {
		labels = append(labels, label)
	}
	sort.Slice(labels, func(i, j int) bool { return labels[i] < labels[j] })

	return &Table{records: records, labels: labels}, nil
}

// Lookup never fails: labels without data get the fallback record.
func (t *Table) Lookup(label models.Label) models.Recommendation {
	if rec, ok := t.records[label]; ok {
		return rec
	}
	return fallback
}

// Has reports whether the label has its own record.
func (t *Table) Has(label models.Label) bool {
	_, ok := t.records[label]
	return ok
}

// Labels returns the known labels in sorted order.
func (t *Table) Labels() []models.Label {
	out := make([]models.Label, len(t.labels))
	copy(out, t.labels)
	return out
}

// Suggest returns the closest known label, compared case-insensitively, when
// it is within a third of that label's length.
func (t *Table) Suggest(label models.Label) (models.Label, bool) {
	query := strings.ToLower(string(label))
	if query == "" {
		return "", false
	}

	var best models.Label
	bestDist := -1
	for _, known := range t.labels {
		d := levenshtein.Distance(query, strings.ToLower(string(known)))
		if bestDist < 0 || d < bestDist {
			best, bestDist = known, d
		}
	}
	if bestDist < 0 || bestDist > len(best)/3 {
		return "", false
	}
	return best, true
}
