package lifecycle

import (
	"context"
	"fmt"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

// ChangeContext carries the optional details of a status change.
type ChangeContext struct {
	ExportedBy string `json:"exported_by"`
	Purpose    string `json:"purpose"`
	ReturnedBy string `json:"returned_by"`
	Notes      string `json:"notes"`
}

// RequestExport checks a tool out to exporter. The event is appended to the
// log before the tool row is updated.
func (s *Service) RequestExport(ctx context.Context, id int64, exporter, purpose string) (*model.Tool, error) {
	const op = "export"

	t, err := s.getTool(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if t.Status != model.StatusAvailable {
		return nil, s.fail(op, apperr.Newf(apperr.CodeNotAvailable,
			"tool %d (%s) is %s%s, not Available", t.ID, t.Name, t.Status, holder(t)))
	}

	exporter, purpose = clean(exporter), clean(purpose)
	if exporter == "" {
		return nil, s.fail(op, apperr.New(apperr.CodeInvalidInput, "exporter name is required"))
	}
	if purpose == "" {
		return nil, s.fail(op, apperr.New(apperr.CodeInvalidInput, "export purpose is required"))
	}

	v, err := s.currentHistory(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if v.Open != nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeHistoryInconsistency,
			"tool %d is Available but export event %d (by %s) is still open", id, v.Open.ID, v.Open.ExportedBy))
	}

	defer s.history.Invalidate(id)

	ev, err := s.store.InsertExportEvent(ctx, id, exporter, purpose, s.timestamp())
	if err != nil {
		return nil, s.fail(op, storeError(err, "recording export event"))
	}

	updated, err := s.store.SetToolStatus(ctx, id, model.StatusExported, model.CacheFor(ev))
	if err != nil {
		s.logger.Error("export event written but tool status not updated",
			"tool", id, "event", ev.ID, "error", err)
		return nil, s.fail(op, storeError(err, "updating tool status after export"))
	}
	if updated == nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id))
	}

	s.metrics.Transition(string(model.StatusAvailable), string(model.StatusExported))
	s.logger.Info("tool exported", "tool", id, "name", t.Name, "user", exporter, "purpose", purpose, "event", ev.ID)
	return updated, nil
}

// RequestReturn checks an exported tool back in. The open event is resolved
// from the log, not the tool row. returnedBy defaults to the exporter.
func (s *Service) RequestReturn(ctx context.Context, id int64, returnedBy string) (*model.Tool, error) {
	const op = "return"

	t, err := s.getTool(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if t.Status != model.StatusExported {
		return nil, s.fail(op, apperr.Newf(apperr.CodeNotExported,
			"tool %d (%s) is %s, not Exported", t.ID, t.Name, t.Status))
	}

	v, err := s.currentHistory(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if v.Open == nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeHistoryInconsistency,
			"tool %d is Exported but has no open export event", id))
	}

	returnedBy = clean(returnedBy)
	if returnedBy == "" {
		returnedBy = v.Open.ExportedBy
	}

	updated, err := s.closeAndSet(ctx, id, v.Open.ID, returnedBy, "", model.StatusAvailable)
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.metrics.Transition(string(model.StatusExported), string(model.StatusAvailable))
	s.logger.Info("tool returned", "tool", id, "name", t.Name, "user", returnedBy, "event", v.Open.ID)
	return updated, nil
}

// closeAndSet closes the open event and then moves the tool to status with
// its export cache cleared.
func (s *Service) closeAndSet(ctx context.Context, id, eventID int64, returnedBy, notes string, status model.ToolStatus) (*model.Tool, error) {
	defer s.history.Invalidate(id)

	if err := s.store.CloseExportEvent(ctx, eventID, returnedBy, s.timestamp(), notes); err != nil {
		return nil, storeError(err, "closing export event")
	}

	updated, err := s.store.SetToolStatus(ctx, id, status, model.ExportCache{})
	if err != nil {
		s.logger.Error("export event closed but tool status not updated",
			"tool", id, "event", eventID, "error", err)
		return nil, storeError(err, "updating tool status after return")
	}
	if updated == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id)
	}
	return updated, nil
}

// RequestStatusChange moves a tool to status. Exports and returns are handed
// to RequestExport and RequestReturn; their input and history failures are
// reported as invalid transitions that still match the underlying error.
func (s *Service) RequestStatusChange(ctx context.Context, id int64, status model.ToolStatus, cc ChangeContext) (*model.Tool, error) {
	const op = "status"

	if !status.Valid() {
		return nil, s.fail(op, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", status))
	}

	t, err := s.getTool(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	from := t.Status
	if !model.CanTransition(from, status) {
		return nil, s.fail(op, apperr.Newf(apperr.CodeInvalidTransition,
			"cannot change tool %d from %s to %s", id, from, status))
	}

	switch {
	case status == model.StatusExported:
		updated, err := s.RequestExport(ctx, id, cc.ExportedBy, cc.Purpose)
		return updated, asTransitionError(err, id, from, status)
	case from == model.StatusExported && status == model.StatusAvailable:
		updated, err := s.RequestReturn(ctx, id, cc.ReturnedBy)
		return updated, asTransitionError(err, id, from, status)
	case from == model.StatusExported:
		return s.leaveExported(ctx, t, status, cc)
	case from == status:
		s.logger.Debug("status unchanged", "tool", id, "status", status)
		return t, nil
	}

	v, err := s.currentHistory(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if v.Open != nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeHistoryInconsistency,
			"tool %d is %s but export event %d (by %s) is open", id, from, v.Open.ID, v.Open.ExportedBy))
	}

	s.history.Invalidate(id)
	updated, err := s.store.SetToolStatus(ctx, id, status, model.ExportCache{})
	if err != nil {
		return nil, s.fail(op, storeError(err, "updating tool status"))
	}
	if updated == nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id))
	}

	s.metrics.Transition(string(from), string(status))
	s.logger.Info("tool status changed", "tool", id, "name", t.Name, "from", from, "to", status)
	return updated, nil
}

// leaveExported handles Exported to Under Maintenance or Retired. The open
// event is closed with a note so the log never shows a holder for a tool that
// is no longer out.
func (s *Service) leaveExported(ctx context.Context, t *model.Tool, status model.ToolStatus, cc ChangeContext) (*model.Tool, error) {
	const op = "status"

	v, err := s.currentHistory(ctx, t.ID)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if v.Open == nil {
		return nil, s.fail(op, apperr.Wrap(apperr.CodeInvalidTransition,
			apperr.Newf(apperr.CodeHistoryInconsistency, "tool %d is Exported but has no open export event", t.ID),
			fmt.Sprintf("cannot change tool %d from %s to %s", t.ID, model.StatusExported, status)))
	}

	returnedBy := clean(cc.ReturnedBy)
	if returnedBy == "" {
		returnedBy = v.Open.ExportedBy
	}
	notes := clean(cc.Notes)
	if notes == "" {
		notes = NoteMaintenance
		if status == model.StatusRetired {
			notes = NoteRetired
		}
	}

	updated, err := s.closeAndSet(ctx, t.ID, v.Open.ID, returnedBy, notes, status)
	if err != nil {
		return nil, s.fail(op, err)
	}

	s.metrics.Transition(string(model.StatusExported), string(status))
	s.logger.Info("tool status changed without return",
		"tool", t.ID, "name", t.Name, "from", model.StatusExported, "to", status,
		"user", returnedBy, "event", v.Open.ID)
	return updated, nil
}

func asTransitionError(err error, id int64, from, to model.ToolStatus) error {
	switch apperr.CodeOf(err) {
	case apperr.CodeInvalidInput, apperr.CodeHistoryInconsistency:
		return apperr.Wrap(apperr.CodeInvalidTransition, err,
			fmt.Sprintf("cannot change tool %d from %s to %s", id, from, to))
	}
	return err
}
