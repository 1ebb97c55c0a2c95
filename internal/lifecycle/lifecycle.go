// Package lifecycle applies tool status transitions and keeps the tool rows
// in line with the export log.
//
// The export log is the record of who holds a tool. The export fields on a
// tool row are a cache of the open event, written after the log, and are
// rebuilt from the log by Reconcile.
package lifecycle

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/history"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
)

// Notes written on events closed by a status change instead of a return.
const (
	NoteMaintenance = "transitioned to maintenance without formal return"
	NoteRetired     = "retired without formal return"
)

// Store is the persistence the lifecycle needs. *store.Store satisfies it.
type Store interface {
	GetTool(ctx context.Context, id int64) (*model.Tool, error)
	ListTools(ctx context.Context, filter store.ToolFilter) ([]model.Tool, error)
	GetCategoryByName(ctx context.Context, name string) (*model.Category, error)
	CreateTool(ctx context.Context, f model.ToolFields, status model.ToolStatus) (*model.Tool, error)
	UpdateTool(ctx context.Context, id int64, f model.ToolFields) (*model.Tool, error)
	DeleteTool(ctx context.Context, id int64) error
	SetToolStatus(ctx context.Context, id int64, status model.ToolStatus, cache model.ExportCache) (*model.Tool, error)
	InsertExportEvent(ctx context.Context, productID int64, exportedBy, purpose string, at time.Time) (*model.ExportEvent, error)
	CloseExportEvent(ctx context.Context, eventID int64, returnedBy string, at time.Time, notes string) error
	ListExportEvents(ctx context.Context, productID int64) ([]model.ExportEvent, error)
}

// Service validates and applies tool transitions.
type Service struct {
	store   Store
	history *history.Resolver
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithMetrics sets the metrics sink.
func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

// WithClock overrides the time source used for event timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// New returns a Service over st.
func New(st Store, opts ...Option) *Service {
	s := &Service{
		store:   st,
		history: history.NewResolver(st),
		logger:  slog.Default(),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// History returns a tool's export history for display. It may be served from
// cache.
func (s *Service) History(ctx context.Context, id int64) (*history.View, error) {
	if _, err := s.getTool(ctx, id); err != nil {
		return nil, err
	}
	v, err := s.history.History(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable(err, "reading export history")
	}
	return v, nil
}

// currentHistory reads the log afresh. All transition decisions use it.
func (s *Service) currentHistory(ctx context.Context, id int64) (*history.View, error) {
	v, err := s.history.Current(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable(err, "reading export history")
	}
	if len(v.Warnings) > 0 {
		s.metrics.HistoryWarnings(len(v.Warnings))
		for _, w := range v.Warnings {
			s.logger.Warn("export history inconsistent", "tool", id, "warning", w)
		}
	}
	return v, nil
}

func (s *Service) getTool(ctx context.Context, id int64) (*model.Tool, error) {
	t, err := s.store.GetTool(ctx, id)
	if err != nil {
		return nil, apperr.Unavailable(err, "reading tool")
	}
	if t == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id)
	}
	return t, nil
}

// storeError keeps domain errors raised by the store and reports anything
// else as the store being unavailable.
func storeError(err error, op string) error {
	if apperr.As(err) != nil {
		return err
	}
	return apperr.Unavailable(err, op)
}

func (s *Service) timestamp() time.Time {
	return s.now().UTC()
}

func holder(t *model.Tool) string {
	if t.Status == model.StatusExported && t.ExportedBy != "" {
		return " (exported by " + t.ExportedBy + ")"
	}
	return ""
}

func (s *Service) fail(op string, err error) error {
	s.metrics.Rejection(op, err)
	return err
}

func clean(v string) string {
	return strings.TrimSpace(v)
}
