// Package filter derives the visible set of records from the record store and
// the active search term and category filters.
package filter

import (
	"strings"

	"tree-census/internal/model"
)

// Criteria holds the record predicates of the view state. An empty species or
// condition value behaves like model.FilterAll.
type Criteria struct {
	Search    string
	Species   string
	Condition string
}

func (c Criteria) searchTerm() string {
	return strings.ToLower(strings.TrimSpace(c.Search))
}

func isAll(value string) bool {
	return value == "" || value == model.FilterAll
}

// Active reports whether at least one predicate narrows the base set.
func Active(c Criteria) bool {
	return c.searchTerm() != "" || !isAll(c.Species) || !isAll(c.Condition)
}

// Apply returns the records of base that satisfy every active predicate, in
// their original order. With no active predicate base is returned as is.
func Apply(base []model.Record, c Criteria) []model.Record {
	if !Active(c) {
		return base
	}

	term := c.searchTerm()
	out := make([]model.Record, 0, len(base))
	for _, rec := range base {
		if term != "" && !matchesSearch(rec, term) {
			continue
		}
		if !isAll(c.Species) && !equalsPresent(rec.Species, c.Species) {
			continue
		}
		if !isAll(c.Condition) && !equalsPresent(rec.Condition, c.Condition) {
			continue
		}
		out = append(out, rec)
	}
	return out
}

func equalsPresent(field *string, want string) bool {
	return field != nil && *field == want
}

// matchesSearch scans species, condition and every open attribute. Imported
// files carry arbitrary columns, so no single field can be assumed.
func matchesSearch(rec model.Record, term string) bool {
	if rec.Species != nil && strings.Contains(strings.ToLower(*rec.Species), term) {
		return true
	}
	if rec.Condition != nil && strings.Contains(strings.ToLower(*rec.Condition), term) {
		return true
	}
	for _, v := range rec.Attributes {
		if strings.Contains(strings.ToLower(v.String()), term) {
			return true
		}
	}
	return false
}
