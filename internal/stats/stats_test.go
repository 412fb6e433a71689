package stats

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tree-census/internal/model"
)

func rec(id int64, species, condition string, lat, lng float64) model.Record {
	return model.Record{
		ID:        id,
		Species:   model.StringPtr(species),
		Condition: model.StringPtr(condition),
		Lat:       model.Float64Ptr(lat),
		Lng:       model.Float64Ptr(lng),
	}
}

func TestComputeConditionBuckets(t *testing.T) {
	records := []model.Record{
		rec(1, "Oak", "Excellent", 19.07, 72.87),
		rec(2, "Oak", "Good", 19.07, 72.87),
		rec(3, "Elm", "Fair", 19.08, 72.88),
		rec(4, "Elm", "Poor", 19.08, 72.88),
		rec(5, "Ash", "half dead", 19.08, 72.88),
		{ID: 6},
	}

	s := Compute(records, Options{})
	assert.Equal(t, 6, s.Total)
	assert.Equal(t, 1, s.Excellent)
	assert.Equal(t, 1, s.Good)
	assert.Equal(t, 2, s.NeedsAttention)
	assert.Equal(t, 2, s.Other, "unknown and absent conditions share the neutral bucket")
	assert.Equal(t, 1, s.MissingCoordinates)

	require.Len(t, s.Conditions, 5)
	assert.Equal(t, model.ConditionOther, s.Conditions[4].Name)
	assert.Equal(t, "#6b7280", s.Conditions[4].Color)
	assert.InDelta(t, 100.0/6, s.Conditions[0].Percentage, 1e-9)
}

func TestComputeSpeciesOrderAndLimit(t *testing.T) {
	records := []model.Record{
		rec(1, "Pine", "Good", 1, 1),
		rec(2, "Oak", "Good", 1, 1),
		rec(3, "Pine", "Good", 1, 1),
		{ID: 4},
	}

	s := Compute(records, Options{SpeciesLimit: 2})
	assert.Equal(t, 3, s.SpeciesCount)
	require.Len(t, s.Species, 2)
	assert.Equal(t, "Pine", s.Species[0].Name)
	assert.Equal(t, 2, s.Species[0].Count)
	assert.InDelta(t, 50.0, s.Species[0].Percentage, 1e-9)
	assert.Equal(t, "Oak", s.Species[1].Name)

	all := Compute(records, Options{SpeciesLimit: 10})
	assert.Equal(t, model.UnknownSpecies, all.Species[2].Name)
}

func TestComputeEmpty(t *testing.T) {
	s := Compute(nil, Options{})
	assert.Zero(t, s.Total)
	assert.Empty(t, s.Species)
	assert.Empty(t, s.Hotspots)
	for _, b := range s.Conditions {
		assert.Zero(t, b.Percentage)
	}
}

func TestComputeHotspots(t *testing.T) {
	records := []model.Record{
		rec(1, "Oak", "Good", 19.0760, 72.8777),
		rec(2, "Oak", "Good", 19.0761, 72.8778),
		rec(3, "Oak", "Good", 19.0762, 72.8776),
		rec(4, "Elm", "Good", 48.8566, 2.3522),
	}

	s := Compute(records, Options{HotspotLimit: 1})
	require.Len(t, s.Hotspots, 1)
	assert.Equal(t, 3, s.Hotspots[0].Count)
	assert.Len(t, s.Hotspots[0].Geohash, DefaultHotspotPrecision)
	assert.InDelta(t, 19.0761, s.Hotspots[0].Center.Lat, 1e-9)
}
