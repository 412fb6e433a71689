package session

import (
	"sync"
	"time"

	"tree-census/internal/model"
	"tree-census/internal/spatial"
)

// Session is one dashboard: its record store and the view state derived over
// it. Fields are guarded by the session lock; callers go through Do.
type Session struct {
	ID        string
	CreatedAt time.Time

	mu sync.Mutex

	Dataset *model.Dataset
	View    model.ViewState
	Drawer  *spatial.Drawer

	// Visible caches the last derivation. Nil means stale.
	Visible []model.Record
}

func New(id string, dataset *model.Dataset, view model.ViewState, now time.Time) *Session {
	if dataset == nil {
		dataset = &model.Dataset{LoadedAt: now}
	}
	return &Session{
		ID:        id,
		CreatedAt: now,
		Dataset:   dataset,
		View:      view,
		Drawer:    spatial.NewDrawer(),
	}
}

// Do runs fn while holding the session lock, so handlers of one session
// observe each other's changes in order.
func (s *Session) Do(fn func(*Session) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fn(s)
}

// Invalidate marks the visible set for re-derivation.
func (s *Session) Invalidate() {
	s.Visible = nil
}

func (s *Session) Records() []model.Record {
	if s.Dataset == nil {
		return nil
	}
	return s.Dataset.Records
}
