package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"tree-census/internal/filter"
	"tree-census/internal/metrics"
	"tree-census/internal/model"
	"tree-census/internal/session"
	"tree-census/internal/spatial"
)

func (s *DashboardService) SetSearch(ctx context.Context, id, term string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.SearchTerm = term
		sess.Invalidate()
		return nil
	})
}

// SetFilters accepts "all" (or empty) or a value offered by the option lists.
func (s *DashboardService) SetFilters(ctx context.Context, id, species, condition string) (*Snapshot, error) {
	species = normalizeFilter(species)
	condition = normalizeFilter(condition)

	return s.update(ctx, id, func(sess *session.Session) error {
		records := sess.Records()
		if species != model.FilterAll && !filter.ValidSpecies(records, species) {
			return fmt.Errorf("%w: unknown species %q", ErrInvalidInput, species)
		}
		if condition != model.FilterAll && !filter.ValidCondition(records, condition) {
			return fmt.Errorf("%w: unknown condition %q", ErrInvalidInput, condition)
		}
		sess.View.SpeciesFilter = species
		sess.View.ConditionFilter = condition
		sess.Invalidate()
		return nil
	})
}

func normalizeFilter(value string) string {
	if strings.TrimSpace(value) == "" {
		return model.FilterAll
	}
	return value
}

// SelectRecord focuses the first record with the given id. The map is moved
// onto it and zoomed in to at least the focus level, never out.
func (s *DashboardService) SelectRecord(ctx context.Context, id string, recordID int64) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		rec, ok := findRecord(sess.Records(), recordID)
		if !ok {
			return fmt.Errorf("%w: record %d", ErrNotFound, recordID)
		}
		sess.View.SelectedID = &rec.ID
		if point, ok := rec.Point(); ok {
			sess.View.Viewport.Center = point
			if sess.View.Viewport.Zoom < model.FocusZoom {
				sess.View.Viewport.Zoom = model.FocusZoom
			}
		}
		return nil
	})
}

func (s *DashboardService) ClearSelection(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.SelectedID = nil
		return nil
	})
}

func (s *DashboardService) SetViewport(ctx context.Context, id string, viewport model.Viewport) (*Snapshot, error) {
	if err := viewport.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.Viewport = viewport
		return nil
	})
}

// Zoom steps the zoom level by delta, clamped to the supported range.
func (s *DashboardService) Zoom(ctx context.Context, id string, delta int) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.Viewport.Zoom = model.ClampZoom(sess.View.Viewport.Zoom + delta)
		return nil
	})
}

func (s *DashboardService) SetTab(ctx context.Context, id string, tab model.Tab) (*Snapshot, error) {
	if !tab.Valid() {
		return nil, fmt.Errorf("%w: unknown tab %q", ErrInvalidInput, tab)
	}
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.ActiveTab = tab
		return nil
	})
}

func (s *DashboardService) SetTheme(ctx context.Context, id string, dark bool) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.DarkMode = dark
		return nil
	})
}

// SetBaseLayer switches map imagery. It has no effect on the data.
func (s *DashboardService) SetBaseLayer(ctx context.Context, id string, layer model.Layer) (*Snapshot, error) {
	if !layer.Valid() {
		return nil, fmt.Errorf("%w: unknown layer %q", ErrInvalidInput, layer)
	}
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.View.BaseLayer = layer
		return nil
	})
}

func (s *DashboardService) BeginArea(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.Drawer.Begin()
		return nil
	})
}

func (s *DashboardService) AddAreaVertex(ctx context.Context, id string, vertex model.LatLng) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		if err := sess.Drawer.AddVertex(vertex); err != nil {
			if errors.Is(err, spatial.ErrNotDrawing) {
				return fmt.Errorf("%w: %v", ErrConflict, err)
			}
			return fmt.Errorf("%w: %v", ErrInvalidInput, err)
		}
		return nil
	})
}

// CommitArea closes the drawn polygon and makes its matches the base-set.
// Fewer than three vertices cancel drawing instead.
func (s *DashboardService) CommitArea(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		committed, err := sess.Drawer.Commit(sess.Records(), s.opts.Containment)
		if errors.Is(err, spatial.ErrNotDrawing) {
			// nothing drawn: the area stays as it is
			metrics.SpatialCommitsTotal.WithLabelValues("ignored").Inc()
			return nil
		}
		if err != nil {
			return err
		}
		result := "cancelled"
		if committed {
			result = "committed"
		}
		metrics.SpatialCommitsTotal.WithLabelValues(result).Inc()
		sess.Invalidate()
		return nil
	})
}

func (s *DashboardService) CancelArea(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.Drawer.Cancel()
		sess.Invalidate()
		return nil
	})
}

func (s *DashboardService) ClearArea(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(sess *session.Session) error {
		sess.Drawer.Clear()
		sess.Invalidate()
		return nil
	})
}
