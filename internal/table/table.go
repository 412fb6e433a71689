// Package table sorts and paginates the visible set for the data tab.
package table

import (
	"sort"
	"strings"

	"tree-census/internal/model"
)

const (
	DefaultPageSize = 50
	MaxPageSize     = 500
)

type Query struct {
	Sort     string `form:"sort"`
	Desc     bool   `form:"desc"`
	Page     int    `form:"page"`
	PageSize int    `form:"page_size"`
}

func (q Query) normalized() Query {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.PageSize <= 0 {
		q.PageSize = DefaultPageSize
	}
	if q.PageSize > MaxPageSize {
		q.PageSize = MaxPageSize
	}
	return q
}

type Page struct {
	Rows       []model.Record `json:"rows"`
	Columns    []string       `json:"columns"`
	Total      int            `json:"total"`
	Page       int            `json:"page"`
	PageSize   int            `json:"page_size"`
	TotalPages int            `json:"total_pages"`
	Sort       string         `json:"sort,omitempty"`
	Desc       bool           `json:"desc"`
}

// Build sorts a copy of records by q.Sort and cuts out the requested page.
// The sort is stable, so equal keys keep visible-set order.
func Build(records []model.Record, columns []string, q Query) Page {
	q = q.normalized()

	rows := records
	if q.Sort != "" {
		rows = make([]model.Record, len(records))
		copy(rows, records)
		sort.SliceStable(rows, func(i, j int) bool {
			return less(rows[i], rows[j], q.Sort, q.Desc)
		})
	}

	total := len(rows)
	totalPages := (total + q.PageSize - 1) / q.PageSize
	start := total
	if q.Page <= totalPages {
		start = (q.Page - 1) * q.PageSize
	}
	end := start + q.PageSize
	if end > total {
		end = total
	}

	cols := append(model.ReservedKeys(), columns...)
	return Page{
		Rows:       rows[start:end],
		Columns:    cols,
		Total:      total,
		Page:       q.Page,
		PageSize:   q.PageSize,
		TotalPages: totalPages,
		Sort:       q.Sort,
		Desc:       q.Desc,
	}
}

func keyOf(r model.Record, key string) (model.Value, bool) {
	switch key {
	case model.KeyID:
		return model.Number(float64(r.ID)), true
	case model.KeySpecies:
		if r.Species == nil {
			return model.Value{}, false
		}
		return model.Text(*r.Species), true
	case model.KeyCondition:
		if r.Condition == nil {
			return model.Value{}, false
		}
		return model.Text(*r.Condition), true
	case model.KeyLat:
		if r.Lat == nil {
			return model.Value{}, false
		}
		return model.Number(*r.Lat), true
	case model.KeyLng:
		if r.Lng == nil {
			return model.Value{}, false
		}
		return model.Number(*r.Lng), true
	}
	return r.Attribute(key)
}

// less orders numbers before text and missing values last in both directions.
func less(a, b model.Record, key string, desc bool) bool {
	va, okA := keyOf(a, key)
	vb, okB := keyOf(b, key)
	if !okA || !okB {
		return okA && !okB
	}

	if va.IsNumber() != vb.IsNumber() {
		return va.IsNumber()
	}

	var cmp int
	if va.IsNumber() {
		switch {
		case va.Number < vb.Number:
			cmp = -1
		case va.Number > vb.Number:
			cmp = 1
		}
	} else {
		cmp = strings.Compare(strings.ToLower(va.Text), strings.ToLower(vb.Text))
	}

	if desc {
		return cmp > 0
	}
	return cmp < 0
}
