package model

import "fmt"

// FilterAll disables a category filter.
const FilterAll = "all"

type Tab string

const (
	TabMap       Tab = "map"
	TabDashboard Tab = "dashboard"
	TabData      Tab = "data"
)

func (t Tab) Valid() bool {
	switch t {
	case TabMap, TabDashboard, TabData:
		return true
	}
	return false
}

type Layer string

const (
	LayerStreet    Layer = "street"
	LayerSatellite Layer = "satellite"
)

func (l Layer) Valid() bool {
	return l == LayerStreet || l == LayerSatellite
}

type DrawMode string

const (
	DrawInactive  DrawMode = "inactive"
	DrawDrawing   DrawMode = "drawing"
	DrawCommitted DrawMode = "committed"
)

const (
	MinZoom   = 2
	MaxZoom   = 18
	FocusZoom = 15
)

type Viewport struct {
	Center LatLng `json:"center"`
	Zoom   int    `json:"zoom"`
}

func (v Viewport) Validate() error {
	if err := v.Center.Validate(); err != nil {
		return err
	}
	if v.Zoom < MinZoom || v.Zoom > MaxZoom {
		return fmt.Errorf("zoom %d outside [%d, %d]", v.Zoom, MinZoom, MaxZoom)
	}
	return nil
}

func ClampZoom(zoom int) int {
	if zoom < MinZoom {
		return MinZoom
	}
	if zoom > MaxZoom {
		return MaxZoom
	}
	return zoom
}

// AreaState describes polygon drawing as seen by the presentation surfaces.
type AreaState struct {
	Mode      DrawMode `json:"mode"`
	Vertices  Polygon  `json:"vertices"`
	Polygon   Polygon  `json:"polygon,omitempty"`
	Committed bool     `json:"committed"`
	Matched   int      `json:"matched"`
}

// ViewState is the Derived View State of one session. It is never persisted.
type ViewState struct {
	SearchTerm      string    `json:"search_term"`
	SpeciesFilter   string    `json:"species_filter"`
	ConditionFilter string    `json:"condition_filter"`
	SelectedID      *int64    `json:"selected_id"`
	Viewport        Viewport  `json:"viewport"`
	ActiveTab       Tab       `json:"active_tab"`
	DarkMode        bool      `json:"dark_mode"`
	BaseLayer       Layer     `json:"base_layer"`
	Area            AreaState `json:"area"`
}

func DefaultViewState(viewport Viewport) ViewState {
	return ViewState{
		SpeciesFilter:   FilterAll,
		ConditionFilter: FilterAll,
		Viewport:        viewport,
		ActiveTab:       TabMap,
		BaseLayer:       LayerStreet,
		Area:            AreaState{Mode: DrawInactive},
	}
}
