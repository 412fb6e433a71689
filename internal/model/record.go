package model

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	KeyID        = "id"
	KeySpecies   = "species"
	KeyCondition = "condition"
	KeyLat       = "lat"
	KeyLng       = "lng"

	UnknownSpecies = "Unknown"
)

// ReservedKeys lists the attribute names promoted to typed fields on Record.
func ReservedKeys() []string {
	return []string{KeyID, KeySpecies, KeyCondition, KeyLat, KeyLng}
}

func IsReservedKey(name string) bool {
	switch name {
	case KeyID, KeySpecies, KeyCondition, KeyLat, KeyLng:
		return true
	}
	return false
}

// Record is one tree. Ids are assumed unique but never enforced.
type Record struct {
	ID         int64
	Species    *string
	Condition  *string
	Lat        *float64
	Lng        *float64
	Attributes map[string]Value
}

func (r Record) SpeciesLabel() string {
	if r.Species == nil || *r.Species == "" {
		return UnknownSpecies
	}
	return *r.Species
}

func (r Record) ConditionLabel() string {
	if r.Condition == nil {
		return ""
	}
	return *r.Condition
}

func (r Record) HasCoordinates() bool {
	return r.Lat != nil && r.Lng != nil
}

func (r Record) Point() (LatLng, bool) {
	if !r.HasCoordinates() {
		return LatLng{}, false
	}
	return LatLng{Lat: *r.Lat, Lng: *r.Lng}, true
}

func (r Record) Attribute(name string) (Value, bool) {
	if r.Attributes == nil {
		return Value{}, false
	}
	v, ok := r.Attributes[name]
	return v, ok
}

func (r Record) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(r.Attributes)+5)
	for k, v := range r.Attributes {
		out[k] = v
	}
	out[KeyID] = r.ID
	if r.Species != nil {
		out[KeySpecies] = *r.Species
	}
	if r.Condition != nil {
		out[KeyCondition] = *r.Condition
	}
	if r.Lat != nil {
		out[KeyLat] = *r.Lat
	}
	if r.Lng != nil {
		out[KeyLng] = *r.Lng
	}
	return json.Marshal(out)
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}

	var rec Record
	for key, msg := range raw {
		switch key {
		case KeyID:
			if err := json.Unmarshal(msg, &rec.ID); err != nil {
				return fmt.Errorf("decode id: %w", err)
			}
		case KeySpecies:
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("decode species: %w", err)
			}
			rec.Species = &s
		case KeyCondition:
			var s string
			if err := json.Unmarshal(msg, &s); err != nil {
				return fmt.Errorf("decode condition: %w", err)
			}
			rec.Condition = &s
		case KeyLat:
			var f float64
			if err := json.Unmarshal(msg, &f); err != nil {
				return fmt.Errorf("decode lat: %w", err)
			}
			rec.Lat = &f
		case KeyLng:
			var f float64
			if err := json.Unmarshal(msg, &f); err != nil {
				return fmt.Errorf("decode lng: %w", err)
			}
			rec.Lng = &f
		default:
			var v Value
			if err := json.Unmarshal(msg, &v); err != nil {
				return fmt.Errorf("decode %s: %w", key, err)
			}
			if rec.Attributes == nil {
				rec.Attributes = make(map[string]Value)
			}
			rec.Attributes[key] = v
		}
	}

	*r = rec
	return nil
}

// Dataset is the Record Store of one session. It is replaced wholesale, never edited.
type Dataset struct {
	Source   string    `json:"source"`
	Columns  []string  `json:"columns"`
	Records  []Record  `json:"records"`
	LoadedAt time.Time `json:"loaded_at"`
}

func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Records)
}

func StringPtr(s string) *string {
	return &s
}

func Float64Ptr(f float64) *float64 {
	return &f
}
