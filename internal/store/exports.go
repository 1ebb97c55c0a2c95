package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

const eventColumns = `e.id, e.product_id, e.exported_by, e.export_date, e.export_purpose,
	e.return_date, e.returned_by, e.notes, t.name, COALESCE(t.barcode, ''), t.category`

const eventFrom = ` FROM export_events e JOIN tools t ON t.id = e.product_id`

func scanEvent(row scanner) (*model.ExportEvent, error) {
	e := &model.ExportEvent{}
	var returnDate sql.NullTime
	var returnedBy sql.NullString
	if err := row.Scan(&e.ID, &e.ProductID, &e.ExportedBy, &e.ExportDate, &e.ExportPurpose,
		&returnDate, &returnedBy, &e.Notes, &e.ToolName, &e.ToolBarcode, &e.Category); err != nil {
		return nil, err
	}
	e.ReturnDate = nullTimePtr(returnDate)
	e.ReturnedBy = returnedBy.String
	return e, nil
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]model.ExportEvent, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing export events: %w", err)
	}
	defer rows.Close()

	var events []model.ExportEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning export event: %w", err)
		}
		events = append(events, *e)
	}
	return events, rows.Err()
}

// InsertExportEvent appends an open export event for a tool.
func (s *Store) InsertExportEvent(ctx context.Context, productID int64, exportedBy, purpose string, at time.Time) (*model.ExportEvent, error) {
	result, err := s.db.ExecContext(ctx,
		`INSERT INTO export_events (product_id, exported_by, export_date, export_purpose)
		 VALUES (?, ?, ?, ?)`,
		productID, exportedBy, at.UTC(), purpose,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting export event: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting export event id: %w", err)
	}
	return s.GetExportEvent(ctx, id)
}

// CloseExportEvent marks an open event as returned. Closing an event that is
// already closed (or missing) is a history inconsistency.
func (s *Store) CloseExportEvent(ctx context.Context, eventID int64, returnedBy string, at time.Time, notes string) error {
	result, err := s.db.ExecContext(ctx,
		`UPDATE export_events
		 SET return_date = ?, returned_by = ?, notes = CASE WHEN ? = '' THEN notes ELSE ? END
		 WHERE id = ? AND return_date IS NULL`,
		at.UTC(), returnedBy, notes, notes, eventID,
	)
	if err != nil {
		return fmt.Errorf("closing export event: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.CodeHistoryInconsistency, "export event %d is not open", eventID)
	}
	return nil
}

// GetExportEvent returns an event by ID, or nil.
func (s *Store) GetExportEvent(ctx context.Context, id int64) (*model.ExportEvent, error) {
	e, err := scanEvent(s.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+eventFrom+` WHERE e.id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting export event: %w", err)
	}
	return e, nil
}

// ListExportEvents returns a tool's history, most recent first.
func (s *Store) ListExportEvents(ctx context.Context, productID int64) ([]model.ExportEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+eventFrom+` WHERE e.product_id = ?
		 ORDER BY e.export_date DESC, e.id DESC`, productID)
}

// ListOpenExportEvents returns every event not yet returned, most recent first.
func (s *Store) ListOpenExportEvents(ctx context.Context) ([]model.ExportEvent, error) {
	return s.queryEvents(ctx,
		`SELECT `+eventColumns+eventFrom+` WHERE e.return_date IS NULL
		 ORDER BY e.export_date DESC, e.id DESC`)
}

// ListAllExportEvents returns the whole log, most recent first. A limit of
// zero or less means no limit.
func (s *Store) ListAllExportEvents(ctx context.Context, limit int) ([]model.ExportEvent, error) {
	query := `SELECT ` + eventColumns + eventFrom + ` ORDER BY e.export_date DESC, e.id DESC`
	if limit > 0 {
		return s.queryEvents(ctx, query+` LIMIT ?`, limit)
	}
	return s.queryEvents(ctx, query)
}
