// Package sample generates the demo tree census shown before any import.
package sample

import (
	"fmt"
	"math/rand"
	"strconv"
	"time"

	"tree-census/internal/model"
)

const (
	Source = "sample"

	// spread is the width in degrees of the square the trees are scattered over.
	spread = 0.1
)

var species = []string{"Elm", "Cedar", "Birch", "Pine", "Oak", "Maple", "Ash", "Willow"}

// Columns are the open attributes every sample tree carries.
func Columns() []string {
	return []string{"height", "diameter", "planted", "address"}
}

// Generate builds n trees around center. A zero seed uses the clock.
func Generate(n int, center model.LatLng, seed int64) *model.Dataset {
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(seed))
	conditions := model.Conditions()

	records := make([]model.Record, 0, n)
	for i := 1; i <= n; i++ {
		records = append(records, model.Record{
			ID:        int64(i),
			Species:   model.StringPtr(species[rng.Intn(len(species))]),
			Condition: model.StringPtr(conditions[rng.Intn(len(conditions))]),
			Lat:       model.Float64Ptr(center.Lat + (rng.Float64()-0.5)*spread),
			Lng:       model.Float64Ptr(center.Lng + (rng.Float64()-0.5)*spread),
			Attributes: map[string]model.Value{
				"height":   model.Number(float64(rng.Intn(30) + 5)),
				"diameter": model.Number(float64(rng.Intn(100) + 10)),
				"planted":  model.Text(strconv.Itoa(rng.Intn(30) + 1990)),
				"address":  model.Text(fmt.Sprintf("Location %d, Mumbai", i)),
			},
		})
	}

	return &model.Dataset{
		Source:   Source,
		Columns:  Columns(),
		Records:  records,
		LoadedAt: time.Now().UTC(),
	}
}
