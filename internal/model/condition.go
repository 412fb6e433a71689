package model

const (
	ConditionExcellent = "Excellent"
	ConditionGood      = "Good"
	ConditionFair      = "Fair"
	ConditionPoor      = "Poor"

	// ConditionOther buckets condition values outside the curated set.
	ConditionOther = "Other"
)

const neutralColor = "#6b7280"

var conditionColors = map[string]string{
	ConditionExcellent: "#22c55e",
	ConditionGood:      "#3b82f6",
	ConditionFair:      "#eab308",
	ConditionPoor:      "#ef4444",
}

func Conditions() []string {
	return []string{ConditionExcellent, ConditionGood, ConditionFair, ConditionPoor}
}

func KnownCondition(condition string) bool {
	_, ok := conditionColors[condition]
	return ok
}

func ConditionBucket(condition string) string {
	if KnownCondition(condition) {
		return condition
	}
	return ConditionOther
}

func ConditionColor(condition string) string {
	if color, ok := conditionColors[condition]; ok {
		return color
	}
	return neutralColor
}
