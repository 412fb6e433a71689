// Package stats computes the aggregate figures shown on the dashboard tab.
package stats

import (
	"sort"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"tree-census/internal/model"
)

const (
	DefaultSpeciesLimit     = 6
	DefaultHotspotLimit     = 5
	DefaultHotspotPrecision = 5
)

type Options struct {
	SpeciesLimit     int
	HotspotLimit     int
	HotspotPrecision int
}

func (o Options) withDefaults() Options {
	if o.SpeciesLimit <= 0 {
		o.SpeciesLimit = DefaultSpeciesLimit
	}
	if o.HotspotLimit <= 0 {
		o.HotspotLimit = DefaultHotspotLimit
	}
	if o.HotspotPrecision <= 0 || o.HotspotPrecision > 12 {
		o.HotspotPrecision = DefaultHotspotPrecision
	}
	return o
}

type Bucket struct {
	Name       string  `json:"name"`
	Count      int     `json:"count"`
	Percentage float64 `json:"percentage"`
	Color      string  `json:"color,omitempty"`
}

type Hotspot struct {
	Geohash string       `json:"geohash"`
	Count   int          `json:"count"`
	Center  model.LatLng `json:"center"`
}

type Summary struct {
	Total              int       `json:"total"`
	Excellent          int       `json:"excellent"`
	Good               int       `json:"good"`
	Fair               int       `json:"fair"`
	Poor               int       `json:"poor"`
	Other              int       `json:"other"`
	NeedsAttention     int       `json:"needs_attention"`
	MissingCoordinates int       `json:"missing_coordinates"`
	Conditions         []Bucket  `json:"conditions"`
	Species            []Bucket  `json:"species"`
	SpeciesCount       int       `json:"species_count"`
	Hotspots           []Hotspot `json:"hotspots"`
}

func percentage(count, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(count) / float64(total) * 100
}

// Compute summarises records. Unrecognised condition values land in the
// Other bucket; records without a species count as Unknown.
func Compute(records []model.Record, opts Options) Summary {
	opts = opts.withDefaults()
	total := len(records)
	summary := Summary{Total: total}

	byCondition := make(map[string]int)
	speciesCounts := make(map[string]int)
	var speciesOrder []string
	hotspots := make(map[string]*hotspotAcc)

	for _, rec := range records {
		bucket := model.ConditionBucket(rec.ConditionLabel())
		byCondition[bucket]++

		label := rec.SpeciesLabel()
		if _, ok := speciesCounts[label]; !ok {
			speciesOrder = append(speciesOrder, label)
		}
		speciesCounts[label]++

		if !rec.HasCoordinates() {
			summary.MissingCoordinates++
			continue
		}
		cell := cellOf(*rec.Lat, *rec.Lng, opts.HotspotPrecision)
		acc, ok := hotspots[cell]
		if !ok {
			acc = &hotspotAcc{}
			hotspots[cell] = acc
		}
		acc.add(*rec.Lat, *rec.Lng)
	}

	summary.Excellent = byCondition[model.ConditionExcellent]
	summary.Good = byCondition[model.ConditionGood]
	summary.Fair = byCondition[model.ConditionFair]
	summary.Poor = byCondition[model.ConditionPoor]
	summary.Other = byCondition[model.ConditionOther]
	summary.NeedsAttention = summary.Fair + summary.Poor

	for _, name := range append(model.Conditions(), model.ConditionOther) {
		summary.Conditions = append(summary.Conditions, Bucket{
			Name:       name,
			Count:      byCondition[name],
			Percentage: percentage(byCondition[name], total),
			Color:      model.ConditionColor(name),
		})
	}

	summary.SpeciesCount = len(speciesOrder)
	summary.Species = []Bucket{}
	for _, name := range speciesOrder {
		if len(summary.Species) == opts.SpeciesLimit {
			break
		}
		summary.Species = append(summary.Species, Bucket{
			Name:       name,
			Count:      speciesCounts[name],
			Percentage: percentage(speciesCounts[name], total),
		})
	}

	summary.Hotspots = topHotspots(hotspots, opts.HotspotLimit)
	return summary
}

type hotspotAcc struct {
	count  int
	sumLat float64
	sumLng float64
}

func (h *hotspotAcc) add(lat, lng float64) {
	h.count++
	h.sumLat += lat
	h.sumLng += lng
}

func cellOf(lat, lng float64, precision int) string {
	hash := geohash.Encode(lat, lng)
	if len(hash) > precision {
		return hash[:precision]
	}
	return hash
}

func topHotspots(cells map[string]*hotspotAcc, limit int) []Hotspot {
	out := make([]Hotspot, 0, len(cells))
	for cell, acc := range cells {
		out = append(out, Hotspot{
			Geohash: cell,
			Count:   acc.count,
			Center: model.LatLng{
				Lat: acc.sumLat / float64(acc.count),
				Lng: acc.sumLng / float64(acc.count),
			},
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Geohash < out[j].Geohash
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}
