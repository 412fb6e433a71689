package model

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
)

type ValueKind int

const (
	KindText ValueKind = iota
	KindNumber
)

// Value is a scalar attribute of a record: either text or a number.
type Value struct {
	Kind   ValueKind
	Text   string
	Number float64
}

func Text(s string) Value {
	return Value{Kind: KindText, Text: s}
}

func Number(f float64) Value {
	return Value{Kind: KindNumber, Number: f}
}

// ParseValue turns a raw spreadsheet cell into a number when it parses as one.
func ParseValue(raw string) Value {
	trimmed := strings.TrimSpace(raw)
	if trimmed != "" {
		f, err := strconv.ParseFloat(trimmed, 64)
		if err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
			return Number(f)
		}
	}
	return Text(trimmed)
}

func (v Value) IsNumber() bool {
	return v.Kind == KindNumber
}

func (v Value) String() string {
	if v.Kind == KindNumber {
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	}
	return v.Text
}

func (v Value) MarshalJSON() ([]byte, error) {
	if v.Kind == KindNumber {
		return json.Marshal(v.Number)
	}
	return json.Marshal(v.Text)
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	switch typed := raw.(type) {
	case float64:
		*v = Number(typed)
	case string:
		*v = Text(typed)
	case bool:
		*v = Text(strconv.FormatBool(typed))
	case nil:
		*v = Text("")
	default:
		return fmt.Errorf("unsupported attribute value %s", string(data))
	}
	return nil
}
