package filter

import "tree-census/internal/model"

// SpeciesOptions lists the distinct species present in records, first seen first.
func SpeciesOptions(records []model.Record) []string {
	seen := make(map[string]struct{})
	out := []string{}
	for _, rec := range records {
		if rec.Species == nil || *rec.Species == "" {
			continue
		}
		if _, ok := seen[*rec.Species]; ok {
			continue
		}
		seen[*rec.Species] = struct{}{}
		out = append(out, *rec.Species)
	}
	return out
}

// ConditionOptions lists the curated conditions followed by any other values
// observed in records.
func ConditionOptions(records []model.Record) []string {
	out := model.Conditions()
	seen := make(map[string]struct{}, len(out))
	for _, c := range out {
		seen[c] = struct{}{}
	}
	for _, rec := range records {
		if rec.Condition == nil || *rec.Condition == "" {
			continue
		}
		if _, ok := seen[*rec.Condition]; ok {
			continue
		}
		seen[*rec.Condition] = struct{}{}
		out = append(out, *rec.Condition)
	}
	return out
}

func contains(options []string, value string) bool {
	for _, o := range options {
		if o == value {
			return true
		}
	}
	return false
}

// ValidSpecies reports whether value can be used as a species filter.
func ValidSpecies(records []model.Record, value string) bool {
	return isAll(value) || contains(SpeciesOptions(records), value)
}

// ValidCondition reports whether value can be used as a condition filter.
func ValidCondition(records []model.Record, value string) bool {
	return isAll(value) || contains(ConditionOptions(records), value)
}
