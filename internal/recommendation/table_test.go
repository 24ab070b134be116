package recommendation

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/AkinduIB/GreenGuard/pkg/models"
)

func TestLoad_Embedded(t *testing.T) {
	table, err := Load("")
	require.NoError(t, err)

	for _, label := range []models.Label{
		models.LabelPotatoLateBlight,
		models.LabelPotatoEarlyBlight,
		models.LabelPotatoHealthy,
		models.LabelPepperHealthy,
		models.LabelPepperBacterialSpot,
	} {
		assert.True(t, table.Has(label), label)
		rec := table.Lookup(label)
		assert.NotEmpty(t, rec.DiseaseName)
		assert.NotEmpty(t, rec.Recommendations)
		assert.NotEmpty(t, rec.PreventiveMeasures)
	}
	assert.Equal(t, "Potato Late Blight", table.Lookup(models.LabelPotatoLateBlight).DiseaseName)
	assert.Len(t, table.Labels(), 5)
}

func TestLookup_IsTotal(t *testing.T) {
	table := MustDefault()

	for _, label := range []models.Label{"", "Tomato___Leaf_Mold", models.LabelUnresolved, "potato___late_blight"} {
		assert.Equal(t, Fallback(), table.Lookup(label), label)
		assert.False(t, table.Has(label))
	}
	assert.Equal(t, "Unknown", Fallback().DiseaseName)
	assert.Equal(t, "No recommendations available", Fallback().Recommendations)
	assert.Equal(t, "No measures available", Fallback().PreventiveMeasures)
}

func TestLabels_SortedCopy(t *testing.T) {
	table := MustDefault()

	labels := table.Labels()
	assert.IsIncreasing(t, labels)

	labels[0] = "mutated"
	assert.NotEqual(t, models.Label("mutated"), table.Labels()[0])
}

func TestLoad_File(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "recs.json")
	data := `{"Tomato___Leaf_Mold":{"diseaseName":"Leaf Mold","recommendations":"Vent","preventiveMeasures":"Space"}}`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o600))

	table, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "Leaf Mold", table.Lookup("Tomato___Leaf_Mold").DiseaseName)
	assert.Equal(t, Fallback(), table.Lookup(models.LabelPotatoLateBlight))
}

func TestLoad_Errors(t *testing.T) {
	dir := t.TempDir()

	_, err := Load(filepath.Join(dir, "missing.json"))
	assert.Error(t, err)

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o600))
	_, err = Load(bad)
	assert.Error(t, err)

	empty := filepath.Join(dir, "empty.json")
	require.NoError(t, os.WriteFile(empty, []byte("{}"), 0o600))
	_, err = Load(empty)
	assert.Error(t, err)
}

func TestSuggest(t *testing.T) {
	table := MustDefault()

	got, ok := table.Suggest("potato___late_blight")
	assert.True(t, ok)
	assert.Equal(t, models.LabelPotatoLateBlight, got)

	got, ok = table.Suggest("Pepper_bell_Bacterial_spot")
	assert.True(t, ok)
	assert.Equal(t, models.LabelPepperBacterialSpot, got)

	_, ok = table.Suggest("banana")
	assert.False(t, ok)

	_, ok = table.Suggest("")
	assert.False(t, ok)
}
