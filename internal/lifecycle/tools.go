package lifecycle

import (
	"context"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/validate"
)

// NewTool describes a tool to register. Status defaults to Available. A tool
// registered as Exported gets an open event only when ExportedBy is set.
type NewTool struct {
	model.ToolFields
	Status        model.ToolStatus `json:"status"`
	ExportedBy    string           `json:"exported_by"`
	ExportPurpose string           `json:"export_purpose"`
}

func normalizeFields(f model.ToolFields) (model.ToolFields, error) {
	f.Name = clean(f.Name)
	f.Category = clean(f.Category)
	f.PurchaseDate = clean(f.PurchaseDate)
	f.WarrantyDate = clean(f.WarrantyDate)
	return f, validate.Struct(f)
}

func (s *Service) requireCategory(ctx context.Context, name string) (*model.Category, error) {
	c, err := s.store.GetCategoryByName(ctx, name)
	if err != nil {
		return nil, apperr.Unavailable(err, "reading category")
	}
	if c == nil {
		return nil, apperr.Newf(apperr.CodeInvalidInput, "category %q does not exist", name)
	}
	return c, nil
}

// RegisterTool creates a tool. The store assigns its barcode and asset code.
func (s *Service) RegisterTool(ctx context.Context, nt NewTool) (*model.Tool, error) {
	const op = "register"

	fields, err := normalizeFields(nt.ToolFields)
	if err != nil {
		return nil, s.fail(op, err)
	}

	status := nt.Status
	if status == "" {
		status = model.StatusAvailable
	}
	if !status.Valid() {
		return nil, s.fail(op, apperr.Newf(apperr.CodeInvalidInput, "unknown status %q", status))
	}

	category, err := s.requireCategory(ctx, fields.Category)
	if err != nil {
		return nil, s.fail(op, err)
	}

	t, err := s.store.CreateTool(ctx, fields, status)
	if err != nil {
		return nil, s.fail(op, storeError(err, "creating tool"))
	}

	if status == model.StatusExported {
		t, err = s.openLegacyExport(ctx, t, clean(nt.ExportedBy), clean(nt.ExportPurpose))
		if err != nil {
			return nil, s.fail(op, err)
		}
	}

	s.logger.Info("tool registered", "tool", t.ID, "name", t.Name, "category", category.Name,
		"barcode", t.Barcode, "asset_code", t.AssetCode, "status", t.Status)
	return t, nil
}

// openLegacyExport records the export of a tool registered as Exported.
// Without an exporter there is nobody to attribute the event to, so it is
// skipped and Reconcile will report the tool.
func (s *Service) openLegacyExport(ctx context.Context, t *model.Tool, exporter, purpose string) (*model.Tool, error) {
	if exporter == "" {
		s.logger.Warn("tool registered as exported without an exporter; no export event written",
			"tool", t.ID, "name", t.Name)
		return t, nil
	}

	defer s.history.Invalidate(t.ID)

	ev, err := s.store.InsertExportEvent(ctx, t.ID, exporter, purpose, s.timestamp())
	if err != nil {
		return nil, storeError(err, "recording export event")
	}
	updated, err := s.store.SetToolStatus(ctx, t.ID, model.StatusExported, model.CacheFor(ev))
	if err != nil {
		return nil, storeError(err, "updating tool export fields")
	}
	if updated == nil {
		return nil, apperr.Newf(apperr.CodeNotFound, "tool %d not found", t.ID)
	}
	return updated, nil
}

// UpdateTool changes a tool's descriptive fields. Status is not touched.
func (s *Service) UpdateTool(ctx context.Context, id int64, f model.ToolFields) (*model.Tool, error) {
	const op = "update"

	fields, err := normalizeFields(f)
	if err != nil {
		return nil, s.fail(op, err)
	}
	if _, err := s.requireCategory(ctx, fields.Category); err != nil {
		return nil, s.fail(op, err)
	}

	t, err := s.store.UpdateTool(ctx, id, fields)
	if err != nil {
		return nil, s.fail(op, storeError(err, "updating tool"))
	}
	if t == nil {
		return nil, s.fail(op, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id))
	}

	s.logger.Info("tool updated", "tool", id, "name", t.Name)
	return t, nil
}

// DeleteTool removes a tool that has never been exported.
func (s *Service) DeleteTool(ctx context.Context, id int64) error {
	const op = "delete"

	if err := s.store.DeleteTool(ctx, id); err != nil {
		return s.fail(op, storeError(err, "deleting tool"))
	}
	s.history.Invalidate(id)

	s.logger.Info("tool deleted", "tool", id)
	return nil
}
