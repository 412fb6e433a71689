package service

import (
	"context"
	"fmt"
	"io"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"

	"tree-census/internal/filter"
	"tree-census/internal/importer"
	"tree-census/internal/model"
	"tree-census/internal/session"
	"tree-census/internal/spatial"
	"tree-census/internal/stats"
	"tree-census/internal/table"
	"tree-census/internal/utils"
)

const (
	DefaultListLimit = 20
	maxListLimit     = 500

	markerSize         = 32
	selectedMarkerSize = 40

	ScopeAll     = "all"
	ScopeVisible = "visible"
)

type FilterOptions struct {
	Species    []string `json:"species"`
	Conditions []string `json:"conditions"`
}

type RecordList struct {
	Records   []model.Record `json:"records"`
	Visible   int            `json:"visible"`
	Total     int            `json:"total"`
	Remaining int            `json:"remaining"`
}

// MapView is everything the map surface draws.
type MapView struct {
	Viewport   model.Viewport             `json:"viewport"`
	BaseLayer  model.Layer                `json:"base_layer"`
	DarkMode   bool                       `json:"dark_mode"`
	SelectedID *int64                     `json:"selected_id"`
	Markers    *geojson.FeatureCollection `json:"markers"`
	Area       model.AreaState            `json:"area"`
	AreaShape  *geojson.Feature           `json:"area_shape,omitempty"`
}

// Options lists the filter choices offered for the whole record store.
func (s *DashboardService) Options(ctx context.Context, id string) (*FilterOptions, error) {
	var out FilterOptions
	err := s.do(ctx, id, func(sess *session.Session) error {
		out.Species = filter.SpeciesOptions(sess.Records())
		out.Conditions = filter.ConditionOptions(sess.Records())
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Records returns the head of the visible set for the sidebar list.
func (s *DashboardService) Records(ctx context.Context, id string, limit int) (*RecordList, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > maxListLimit {
		limit = maxListLimit
	}

	var out RecordList
	err := s.do(ctx, id, func(sess *session.Session) error {
		visible := s.visible(sess)
		n := limit
		if n > len(visible) {
			n = len(visible)
		}
		out = RecordList{
			Records:   append([]model.Record{}, visible[:n]...),
			Visible:   len(visible),
			Total:     sess.Dataset.Len(),
			Remaining: len(visible) - n,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func (s *DashboardService) Record(ctx context.Context, id string, recordID int64) (*model.Record, error) {
	var out model.Record
	err := s.do(ctx, id, func(sess *session.Session) error {
		rec, ok := findRecord(sess.Records(), recordID)
		if !ok {
			return fmt.Errorf("%w: record %d", ErrNotFound, recordID)
		}
		out = rec
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// MapView renders visible records with coordinates as GeoJSON points.
func (s *DashboardService) MapView(ctx context.Context, id string) (*MapView, error) {
	var out MapView
	err := s.do(ctx, id, func(sess *session.Session) error {
		view := sess.View
		fc := geojson.NewFeatureCollection()
		for _, rec := range s.visible(sess) {
			point, ok := rec.Point()
			if !ok {
				continue
			}
			selected := view.SelectedID != nil && *view.SelectedID == rec.ID
			fc.Append(marker(rec, point, selected))
		}

		area := sess.Drawer.State()
		out = MapView{
			Viewport:   view.Viewport,
			BaseLayer:  view.BaseLayer,
			DarkMode:   view.DarkMode,
			SelectedID: view.SelectedID,
			Markers:    fc,
			Area:       area,
			AreaShape:  areaShape(area),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

func marker(rec model.Record, point model.LatLng, selected bool) *geojson.Feature {
	f := geojson.NewFeature(orb.Point{point.Lng, point.Lat})
	f.ID = rec.ID

	size := markerSize
	if selected {
		size = selectedMarkerSize
	}
	f.Properties["id"] = rec.ID
	f.Properties["species"] = rec.SpeciesLabel()
	f.Properties["condition"] = rec.ConditionLabel()
	f.Properties["color"] = model.ConditionColor(rec.ConditionLabel())
	f.Properties["selected"] = selected
	f.Properties["marker_size"] = size
	if height, ok := attributeByHeader(rec, "height"); ok {
		f.Properties["height"] = height
	}
	return f
}

// attributeByHeader finds an attribute whose column name normalises to name,
// so "Height" and "HEIGHT" are found too. An exact key wins.
func attributeByHeader(rec model.Record, name string) (model.Value, bool) {
	if v, ok := rec.Attribute(name); ok {
		return v, true
	}
	for k, v := range rec.Attributes {
		if utils.NormalizeHeader(k) == name {
			return v, true
		}
	}
	return model.Value{}, false
}

// areaShape draws the committed polygon, or the outline placed so far while
// drawing.
func areaShape(area model.AreaState) *geojson.Feature {
	switch {
	case area.Mode == model.DrawDrawing && len(area.Vertices) >= model.MinPolygonVertices:
		f := geojson.NewFeature(orb.Polygon{spatial.Ring(area.Vertices)})
		f.Properties["draft"] = true
		return f
	case area.Mode == model.DrawDrawing && len(area.Vertices) == 2:
		line := orb.LineString{
			{area.Vertices[0].Lng, area.Vertices[0].Lat},
			{area.Vertices[1].Lng, area.Vertices[1].Lat},
		}
		f := geojson.NewFeature(line)
		f.Properties["draft"] = true
		return f
	case area.Committed:
		f := geojson.NewFeature(orb.Polygon{spatial.Ring(area.Polygon)})
		f.Properties["draft"] = false
		f.Properties["matched"] = area.Matched
		return f
	}
	return nil
}

// Table sorts and pages the visible set.
func (s *DashboardService) Table(ctx context.Context, id string, q table.Query) (*table.Page, error) {
	var out table.Page
	err := s.do(ctx, id, func(sess *session.Session) error {
		out = table.Build(s.visible(sess), sess.Dataset.Columns, q)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Stats summarises the whole record store, or only the visible set.
func (s *DashboardService) Stats(ctx context.Context, id, scope string) (*stats.Summary, error) {
	if scope != "" && scope != ScopeAll && scope != ScopeVisible {
		return nil, fmt.Errorf("%w: unknown scope %q", ErrInvalidInput, scope)
	}

	var out stats.Summary
	err := s.do(ctx, id, func(sess *session.Session) error {
		records := sess.Records()
		if scope == ScopeVisible {
			records = s.visible(sess)
		}
		out = stats.Compute(records, stats.Options{})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &out, nil
}

// Export writes the visible set and returns the download filename. Records
// are immutable, so writing happens after the lock is released.
func (s *DashboardService) Export(ctx context.Context, id string, w io.Writer, format importer.Format) (string, error) {
	var records []model.Record
	var columns []string
	err := s.do(ctx, id, func(sess *session.Session) error {
		records = s.visible(sess)
		columns = sess.Dataset.Columns
		return nil
	})
	if err != nil {
		return "", err
	}

	if err := importer.Export(w, format, columns, records); err != nil {
		return "", err
	}
	return importer.ExportFilename(format, s.now()), nil
}
