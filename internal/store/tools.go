package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

const toolColumns = `id, name, maker, model, specification, category, serial_number,
	purchase_date, warranty_date, description, barcode, asset_code, status, image_mime,
	exported_by, exported_date, export_purpose, created_at, updated_at`

func scanTool(row scanner) (*model.Tool, error) {
	t := &model.Tool{}
	var barcode, assetCode, imageMime, exportedBy, exportPurpose sql.NullString
	var exportedDate sql.NullTime
	if err := row.Scan(&t.ID, &t.Name, &t.Maker, &t.Model, &t.Specification, &t.Category,
		&t.SerialNumber, &t.PurchaseDate, &t.WarrantyDate, &t.Description,
		&barcode, &assetCode, &t.Status, &imageMime,
		&exportedBy, &exportedDate, &exportPurpose, &t.CreatedAt, &t.UpdatedAt); err != nil {
		return nil, err
	}
	t.Barcode = barcode.String
	t.AssetCode = assetCode.String
	t.ImageMime = imageMime.String
	t.ExportedBy = exportedBy.String
	t.ExportedDate = nullTimePtr(exportedDate)
	t.ExportPurpose = exportPurpose.String
	return t, nil
}

// ToolFilter narrows ListTools. Zero fields match everything.
type ToolFilter struct {
	Status   model.ToolStatus
	Category string
	Search   string
}

// CreateTool inserts a tool and assigns its barcode and asset code in the same
// transaction. The barcode is derived from the row id so that concurrent
// clients cannot be handed the same code.
func (s *Store) CreateTool(ctx context.Context, f model.ToolFields, status model.ToolStatus) (*model.Tool, error) {
	if status == "" {
		status = model.StatusAvailable
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var categoryCode string
	err = tx.QueryRowContext(ctx,
		`SELECT code FROM categories WHERE name = ?`, f.Category,
	).Scan(&categoryCode)
	if err == sql.ErrNoRows {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "category %q does not exist", f.Category)
	}
	if err != nil {
		return nil, fmt.Errorf("looking up category: %w", err)
	}

	now := s.now()
	result, err := tx.ExecContext(ctx,
		`INSERT INTO tools (name, maker, model, specification, category, serial_number,
		                    purchase_date, warranty_date, description, status, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.Name, f.Maker, f.Model, f.Specification, f.Category, f.SerialNumber,
		f.PurchaseDate, f.WarrantyDate, f.Description, string(status), now, now,
	)
	if err != nil {
		return nil, fmt.Errorf("creating tool: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting tool id: %w", err)
	}

	assetCode, err := nextAssetCode(ctx, tx, f.Category, categoryCode)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE tools SET barcode = ?, asset_code = ? WHERE id = ?`,
		model.ShortCode(id), assetCode, id,
	)
	if err != nil {
		return nil, fmt.Errorf("assigning tool codes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing tool: %w", err)
	}

	return s.GetTool(ctx, id)
}

// nextAssetCode returns the first free asset code for a category. It runs
// after the new row is inserted, so the count already includes it.
func nextAssetCode(ctx context.Context, tx *sql.Tx, category, categoryCode string) (string, error) {
	var n int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tools WHERE category = ?`, category,
	).Scan(&n); err != nil {
		return "", fmt.Errorf("counting category tools: %w", err)
	}

	for ; ; n++ {
		code := model.AssetCode(categoryCode, n)
		var taken int
		if err := tx.QueryRowContext(ctx,
			`SELECT COUNT(*) FROM tools WHERE asset_code = ?`, code,
		).Scan(&taken); err != nil {
			return "", fmt.Errorf("checking asset code: %w", err)
		}
		if taken == 0 {
			return code, nil
		}
	}
}

// GetTool returns a tool by ID, or nil if it does not exist.
func (s *Store) GetTool(ctx context.Context, id int64) (*model.Tool, error) {
	t, err := scanTool(s.db.QueryRowContext(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE id = ?`, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool: %w", err)
	}
	return t, nil
}

// GetToolByBarcode returns the tool with the given barcode, or nil.
func (s *Store) GetToolByBarcode(ctx context.Context, barcode string) (*model.Tool, error) {
	barcode = strings.TrimSpace(barcode)
	if barcode == "" {
		return nil, nil
	}
	t, err := scanTool(s.db.QueryRowContext(ctx,
		`SELECT `+toolColumns+` FROM tools WHERE barcode = ?`, barcode))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting tool by barcode: %w", err)
	}
	return t, nil
}

// ListTools returns tools, newest first, optionally filtered.
func (s *Store) ListTools(ctx context.Context, filter ToolFilter) ([]model.Tool, error) {
	query := `SELECT ` + toolColumns + ` FROM tools WHERE 1=1`
	var args []any

	if filter.Status != "" {
		query += ` AND status = ?`
		args = append(args, string(filter.Status))
	}
	if filter.Category != "" {
		query += ` AND category = ?`
		args = append(args, filter.Category)
	}
	if filter.Search != "" {
		like := "%" + strings.ToLower(filter.Search) + "%"
		query += ` AND (LOWER(name) LIKE ? OR LOWER(category) LIKE ? OR LOWER(serial_number) LIKE ? OR LOWER(barcode) LIKE ?)`
		args = append(args, like, like, like, like)
	}

	query += ` ORDER BY created_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing tools: %w", err)
	}
	defer rows.Close()

	var tools []model.Tool
	for rows.Next() {
		t, err := scanTool(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning tool: %w", err)
		}
		tools = append(tools, *t)
	}
	return tools, rows.Err()
}

// UpdateTool updates a tool's descriptive fields. Status and export fields are
// left alone. Returns nil if the tool does not exist.
func (s *Store) UpdateTool(ctx context.Context, id int64, f model.ToolFields) (*model.Tool, error) {
	var exists int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE name = ?`, f.Category,
	).Scan(&exists); err != nil {
		return nil, fmt.Errorf("looking up category: %w", err)
	}
	if exists == 0 {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "category %q does not exist", f.Category)
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE tools SET name = ?, maker = ?, model = ?, specification = ?, category = ?,
		                  serial_number = ?, purchase_date = ?, warranty_date = ?, description = ?,
		                  updated_at = ?
		 WHERE id = ?`,
		f.Name, f.Maker, f.Model, f.Specification, f.Category,
		f.SerialNumber, f.PurchaseDate, f.WarrantyDate, f.Description,
		s.now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("updating tool: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetTool(ctx, id)
}

// SetToolStatus writes a tool's status together with its cached export
// fields. Returns nil if the tool does not exist.
func (s *Store) SetToolStatus(ctx context.Context, id int64, status model.ToolStatus, cache model.ExportCache) (*model.Tool, error) {
	result, err := s.db.ExecContext(ctx,
		`UPDATE tools SET status = ?, exported_by = ?, exported_date = ?, export_purpose = ?, updated_at = ?
		 WHERE id = ?`,
		string(status), nullString(cache.ExportedBy), utcPtr(cache.ExportedDate), nullString(cache.ExportPurpose), s.now(), id,
	)
	if err != nil {
		return nil, fmt.Errorf("setting tool status: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return nil, nil
	}
	return s.GetTool(ctx, id)
}

// DeleteTool removes a tool. Tools with any export history are kept.
func (s *Store) DeleteTool(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var events int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM export_events WHERE product_id = ?`, id,
	).Scan(&events); err != nil {
		return fmt.Errorf("checking tool history: %w", err)
	}
	if events > 0 {
		return apperr.Newf(apperr.CodeConflict, "cannot delete tool %d: it has %d export history entries", id, events)
	}

	result, err := tx.ExecContext(ctx, `DELETE FROM tools WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting tool: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return apperr.Newf(apperr.CodeNotFound, "tool %d not found", id)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tool deletion: %w", err)
	}
	return nil
}

// SetToolImage sets a tool's photo.
func (s *Store) SetToolImage(ctx context.Context, id int64, image []byte, mime string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE tools SET image = ?, image_mime = ?, updated_at = ? WHERE id = ?`,
		image, mime, s.now(), id,
	)
	if err != nil {
		return fmt.Errorf("setting tool image: %w", err)
	}
	return nil
}

// GetToolImage returns a tool's photo and its MIME type.
func (s *Store) GetToolImage(ctx context.Context, id int64) ([]byte, string, error) {
	var image []byte
	var mime sql.NullString
	err := s.db.QueryRowContext(ctx,
		`SELECT image, image_mime FROM tools WHERE id = ?`, id,
	).Scan(&image, &mime)
	if err == sql.ErrNoRows {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("getting tool image: %w", err)
	}
	return image, mime.String, nil
}
