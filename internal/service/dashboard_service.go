package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"tree-census/internal/client"
	"tree-census/internal/filter"
	"tree-census/internal/importer"
	"tree-census/internal/metrics"
	"tree-census/internal/model"
	"tree-census/internal/repository"
	"tree-census/internal/sample"
	"tree-census/internal/session"
	"tree-census/internal/spatial"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("conflict")
	ErrImportFailed = errors.New("import failed")
)

const (
	SourceSample = "sample"
	SourceEmpty  = "empty"
	SourceRemote = "remote"
)

type Options struct {
	Viewport    model.Viewport
	Containment spatial.Containment
	Jitter      float64
	MaxRows     int
	SampleSize  int
	SampleSeed  int64
}

// DashboardService owns every dashboard session. All state changes go
// through its methods, each of which runs under the session lock.
type DashboardService struct {
	repo     *repository.RecordRepository
	sessions *session.Store
	tokens   *session.TokenIssuer
	remote   *client.DatasetClient
	opts     Options
	log      zerolog.Logger
	now      func() time.Time
}

func NewDashboardService(
	repo *repository.RecordRepository,
	sessions *session.Store,
	tokens *session.TokenIssuer,
	remote *client.DatasetClient,
	opts Options,
	log zerolog.Logger,
) *DashboardService {
	if opts.Containment == "" {
		opts.Containment = spatial.ContainPolygon
	}
	return &DashboardService{
		repo:     repo,
		sessions: sessions,
		tokens:   tokens,
		remote:   remote,
		opts:     opts,
		log:      log,
		now:      time.Now,
	}
}

type SessionInfo struct {
	Token     string   `json:"token"`
	SessionID string   `json:"session_id"`
	State     Snapshot `json:"state"`
}

// Snapshot is the view state together with the counts every surface shows.
type Snapshot struct {
	State        model.ViewState `json:"state"`
	Visible      int             `json:"visible"`
	Total        int             `json:"total"`
	FilterActive bool            `json:"filter_active"`
	Source       string          `json:"source"`
	LoadedAt     time.Time       `json:"loaded_at"`
}

type ImportReport struct {
	Source   string   `json:"source"`
	Rows     int      `json:"rows"`
	Warnings []string `json:"warnings"`
	Snapshot Snapshot `json:"snapshot"`
}

// CreateSession starts a dashboard seeded from source: sample (default),
// empty or remote.
func (s *DashboardService) CreateSession(ctx context.Context, source string) (*SessionInfo, error) {
	var dataset *model.Dataset
	switch source {
	case "", SourceSample:
		dataset = s.sampleDataset()
	case SourceEmpty:
		dataset = &model.Dataset{Source: SourceEmpty, LoadedAt: s.now().UTC()}
	case SourceRemote:
		res, err := s.fetchRemote(ctx)
		if err != nil {
			return nil, err
		}
		dataset = res.Dataset
	default:
		return nil, fmt.Errorf("%w: unknown source %q", ErrInvalidInput, source)
	}

	id := uuid.NewString()
	if err := s.repo.Replace(ctx, id, dataset); err != nil {
		return nil, fmt.Errorf("persist session: %w", err)
	}

	sess := session.New(id, dataset, model.DefaultViewState(s.opts.Viewport), s.now())
	if !s.sessions.Add(sess) {
		return nil, ErrConflict
	}

	token, err := s.tokens.Issue(id, s.now())
	if err != nil {
		return nil, err
	}

	var snap Snapshot
	_ = sess.Do(func(sess *session.Session) error {
		snap = s.snapshot(sess)
		return nil
	})

	s.log.Info().Str("session_id", id).Str("source", dataset.Source).Int("records", dataset.Len()).Msg("session created")
	return &SessionInfo{Token: token, SessionID: id, State: snap}, nil
}

// DeleteSession drops the session and its stored records.
func (s *DashboardService) DeleteSession(ctx context.Context, id string) error {
	if _, ok := s.sessions.Get(id); ok {
		s.sessions.Delete(id)
		return nil
	}
	return s.repo.Delete(ctx, id)
}

// Evicted removes the stored records of a session that left the store.
func (s *DashboardService) Evicted(id string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.repo.Delete(ctx, id); err != nil {
		s.log.Error().Err(err).Str("session_id", id).Msg("failed to delete session records")
	}
}

// session returns the live session, rebuilding it from storage with a fresh
// view state when the process lost it.
func (s *DashboardService) session(ctx context.Context, id string) (*session.Session, error) {
	if sess, ok := s.sessions.Get(id); ok {
		return sess, nil
	}

	dataset, err := s.repo.Load(ctx, id)
	if err != nil {
		return nil, err
	}
	if dataset == nil {
		return nil, ErrNotFound
	}

	sess := session.New(id, dataset, model.DefaultViewState(s.opts.Viewport), s.now())
	if !s.sessions.Add(sess) {
		if existing, ok := s.sessions.Get(id); ok {
			return existing, nil
		}
		return nil, ErrConflict
	}
	s.log.Info().Str("session_id", id).Int("records", dataset.Len()).Msg("session restored")
	return sess, nil
}

// do runs fn under the session lock.
func (s *DashboardService) do(ctx context.Context, id string, fn func(*session.Session) error) error {
	sess, err := s.session(ctx, id)
	if err != nil {
		return err
	}
	return sess.Do(fn)
}

// update runs fn under the session lock and returns the resulting snapshot.
func (s *DashboardService) update(ctx context.Context, id string, fn func(*session.Session) error) (*Snapshot, error) {
	var snap Snapshot
	err := s.do(ctx, id, func(sess *session.Session) error {
		if err := fn(sess); err != nil {
			return err
		}
		snap = s.snapshot(sess)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &snap, nil
}

// visible derives the visible set: filter pipeline over the spatial base-set.
func (s *DashboardService) visible(sess *session.Session) []model.Record {
	if sess.Visible != nil {
		return sess.Visible
	}
	base := sess.Drawer.Base(sess.Records())
	sess.Visible = filter.Apply(base, criteria(sess.View))
	metrics.VisibleRecords.Observe(float64(len(sess.Visible)))
	return sess.Visible
}

func criteria(view model.ViewState) filter.Criteria {
	return filter.Criteria{
		Search:    view.SearchTerm,
		Species:   view.SpeciesFilter,
		Condition: view.ConditionFilter,
	}
}

func (s *DashboardService) snapshot(sess *session.Session) Snapshot {
	sess.View.Area = sess.Drawer.State()
	view := sess.View
	if view.SelectedID != nil {
		selected := *view.SelectedID
		view.SelectedID = &selected
	}
	return Snapshot{
		State:        view,
		Visible:      len(s.visible(sess)),
		Total:        sess.Dataset.Len(),
		FilterActive: filter.Active(criteria(sess.View)),
		Source:       sess.Dataset.Source,
		LoadedAt:     sess.Dataset.LoadedAt,
	}
}

func (s *DashboardService) Snapshot(ctx context.Context, id string) (*Snapshot, error) {
	return s.update(ctx, id, func(*session.Session) error { return nil })
}

// Import replaces the record store with the parsed file. Parsing happens
// before the session lock is taken, so the last import to finish wins.
func (s *DashboardService) Import(ctx context.Context, id string, r io.Reader, filename string) (*ImportReport, error) {
	if _, err := s.session(ctx, id); err != nil {
		return nil, err
	}

	format, err := importer.FormatFromFilename(filename)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues("unknown", "rejected").Inc()
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, err)
	}

	res, err := importer.ParseFormatted(r, format, filename, s.importOptions())
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(string(format), "failed").Inc()
		s.log.Warn().Err(err).Str("session_id", id).Str("file", filename).Msg("import failed")
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	metrics.ImportsTotal.WithLabelValues(string(format), "ok").Inc()

	return s.replace(ctx, id, res.Dataset, res.Warnings)
}

func (s *DashboardService) LoadSample(ctx context.Context, id string) (*ImportReport, error) {
	if _, err := s.session(ctx, id); err != nil {
		return nil, err
	}
	metrics.ImportsTotal.WithLabelValues(SourceSample, "ok").Inc()
	return s.replace(ctx, id, s.sampleDataset(), nil)
}

func (s *DashboardService) LoadRemote(ctx context.Context, id string) (*ImportReport, error) {
	if _, err := s.session(ctx, id); err != nil {
		return nil, err
	}
	res, err := s.fetchRemote(ctx)
	if err != nil {
		return nil, err
	}
	return s.replace(ctx, id, res.Dataset, res.Warnings)
}

func (s *DashboardService) fetchRemote(ctx context.Context) (*importer.Result, error) {
	if s.remote == nil || !s.remote.Configured() {
		return nil, fmt.Errorf("%w: %w", ErrInvalidInput, client.ErrSourceNotConfigured)
	}
	body, filename, err := s.remote.Fetch(ctx)
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(SourceRemote, "failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	res, err := importer.Parse(bytes.NewReader(body), filename, s.importOptions())
	if err != nil {
		metrics.ImportsTotal.WithLabelValues(SourceRemote, "failed").Inc()
		return nil, fmt.Errorf("%w: %w", ErrImportFailed, err)
	}
	metrics.ImportsTotal.WithLabelValues(SourceRemote, "ok").Inc()
	return res, nil
}

func (s *DashboardService) importOptions() importer.Options {
	return importer.Options{
		Center:  s.opts.Viewport.Center,
		Jitter:  s.opts.Jitter,
		MaxRows: s.opts.MaxRows,
	}
}

func (s *DashboardService) sampleDataset() *model.Dataset {
	return sample.Generate(s.opts.SampleSize, s.opts.Viewport.Center, s.opts.SampleSeed)
}

// replace swaps the record store. The committed area and a selection that no
// longer resolves are cleared; search and filters stay.
func (s *DashboardService) replace(ctx context.Context, id string, dataset *model.Dataset, warnings []string) (*ImportReport, error) {
	report := &ImportReport{
		Source:   dataset.Source,
		Rows:     dataset.Len(),
		Warnings: warnings,
	}
	if report.Warnings == nil {
		report.Warnings = []string{}
	}

	snap, err := s.update(ctx, id, func(sess *session.Session) error {
		if err := s.repo.Replace(ctx, id, dataset); err != nil {
			return fmt.Errorf("persist dataset: %w", err)
		}
		sess.Dataset = dataset
		sess.Drawer.Clear()
		if sess.View.SelectedID != nil {
			if _, ok := findRecord(dataset.Records, *sess.View.SelectedID); !ok {
				sess.View.SelectedID = nil
			}
		}
		sess.Invalidate()
		return nil
	})
	if err != nil {
		return nil, err
	}

	metrics.ImportRows.Observe(float64(report.Rows))
	for _, w := range warnings {
		s.log.Warn().Str("session_id", id).Str("source", dataset.Source).Msg(w)
	}
	s.log.Info().Str("session_id", id).Str("source", dataset.Source).Int("records", report.Rows).Msg("record store replaced")

	report.Snapshot = *snap
	return report, nil
}

func findRecord(records []model.Record, id int64) (model.Record, bool) {
	for _, r := range records {
		if r.ID == id {
			return r, true
		}
	}
	return model.Record{}, false
}
