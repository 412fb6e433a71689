package spatial

import (
	"errors"
	"fmt"

	"tree-census/internal/model"
)

var ErrNotDrawing = errors.New("area selection is not in drawing mode")

// Selection is the result of a committed polygon: positions into the record
// store the polygon was committed against.
type Selection struct {
	Polygon   model.Polygon
	Positions []int
}

// Drawer is the polygon drawing state machine:
//
//	Inactive -> Drawing (Begin), Drawing -> Drawing (AddVertex),
//	Drawing -> Committed (Commit with >= 3 vertices),
//	Drawing/Committed -> Inactive (Cancel, Clear, or Commit with < 3 vertices).
//
// A committed selection survives Begin and is replaced by the next commit.
type Drawer struct {
	mode      model.DrawMode
	vertices  model.Polygon
	selection *Selection
}

func NewDrawer() *Drawer {
	return &Drawer{mode: model.DrawInactive}
}

func (d *Drawer) Mode() model.DrawMode {
	return d.mode
}

func (d *Drawer) Begin() {
	d.mode = model.DrawDrawing
	d.vertices = nil
}

func (d *Drawer) AddVertex(v model.LatLng) error {
	if d.mode != model.DrawDrawing {
		return ErrNotDrawing
	}
	if err := v.Validate(); err != nil {
		return fmt.Errorf("vertex: %w", err)
	}
	d.vertices = append(d.vertices, v)
	return nil
}

// Commit runs the selector once over records. With fewer than three vertices it
// behaves like Cancel and returns false.
func (d *Drawer) Commit(records []model.Record, mode Containment) (bool, error) {
	if d.mode != model.DrawDrawing {
		return false, ErrNotDrawing
	}
	if !d.vertices.Closed() {
		d.Cancel()
		return false, nil
	}

	polygon := d.vertices.Clone()
	d.selection = &Selection{
		Polygon:   polygon,
		Positions: SelectPositions(polygon, records, mode),
	}
	d.vertices = nil
	d.mode = model.DrawCommitted
	return true, nil
}

func (d *Drawer) Cancel() {
	d.mode = model.DrawInactive
	d.vertices = nil
	d.selection = nil
}

func (d *Drawer) Clear() {
	d.Cancel()
}

// Preview returns the vertices placed so far in drawing mode.
func (d *Drawer) Preview() model.Polygon {
	return d.vertices.Clone()
}

func (d *Drawer) Selection() *Selection {
	return d.selection
}

// Base returns the spatial base-set: all records, or the committed subset.
func (d *Drawer) Base(records []model.Record) []model.Record {
	if d.selection == nil {
		return records
	}
	out := make([]model.Record, 0, len(d.selection.Positions))
	for _, i := range d.selection.Positions {
		if i < len(records) {
			out = append(out, records[i])
		}
	}
	return out
}

func (d *Drawer) State() model.AreaState {
	state := model.AreaState{
		Mode:     d.mode,
		Vertices: d.Preview(),
	}
	if d.selection != nil {
		state.Polygon = d.selection.Polygon.Clone()
		state.Committed = true
		state.Matched = len(d.selection.Positions)
	}
	if state.Vertices == nil {
		state.Vertices = model.Polygon{}
	}
	return state
}
