package store

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

func createTestTool(t *testing.T, s *Store, name, category string) *model.Tool {
	t.Helper()
	ctx := context.Background()
	if c, _ := s.GetCategoryByName(ctx, category); c == nil {
		if _, err := s.CreateCategory(ctx, category); err != nil {
			t.Fatalf("CreateCategory: %v", err)
		}
	}
	tool, err := s.CreateTool(ctx, model.ToolFields{Name: name, Category: category}, "")
	if err != nil {
		t.Fatalf("CreateTool: %v", err)
	}
	return tool
}

func TestCreateToolAssignsCodes(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	s.CreateCategory(ctx, "Power tools")
	s.CreateCategory(ctx, "Hand tools")

	drill := createTestTool(t, s, "Drill", "Power tools")
	saw := createTestTool(t, s, "Saw", "Power tools")
	hammer := createTestTool(t, s, "Hammer", "Hand tools")

	if drill.Barcode != model.ShortCode(drill.ID) {
		t.Errorf("expected barcode %s, got %q", model.ShortCode(drill.ID), drill.Barcode)
	}
	if drill.Status != model.StatusAvailable {
		t.Errorf("expected status Available, got %q", drill.Status)
	}
	if drill.AssetCode != "A001" || saw.AssetCode != "A002" {
		t.Errorf("expected A001/A002, got %q/%q", drill.AssetCode, saw.AssetCode)
	}
	if hammer.AssetCode != "B001" {
		t.Errorf("expected B001, got %q", hammer.AssetCode)
	}
	if drill.CreatedAt.IsZero() || drill.UpdatedAt.IsZero() {
		t.Error("expected timestamps to be set")
	}
}

func TestCreateToolUnknownCategory(t *testing.T) {
	s := newTestStore(t)

	_, err := s.CreateTool(context.Background(), model.ToolFields{Name: "Drill", Category: "Nope"}, "")
	if !errors.Is(err, apperr.ErrInvalidInput) {
		t.Errorf("expected ErrInvalidInput, got %v", err)
	}
}

func TestGetToolByBarcode(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := createTestTool(t, s, "Drill", "Power tools")

	got, err := s.GetToolByBarcode(ctx, " "+tool.Barcode+" ")
	if err != nil {
		t.Fatalf("GetToolByBarcode: %v", err)
	}
	if got == nil || got.ID != tool.ID {
		t.Errorf("expected tool %d, got %+v", tool.ID, got)
	}

	missing, err := s.GetToolByBarcode(ctx, "P999")
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for unknown barcode, got %+v, %v", missing, err)
	}

	empty, err := s.GetToolByBarcode(ctx, "   ")
	if err != nil || empty != nil {
		t.Errorf("expected nil, nil for blank barcode, got %+v, %v", empty, err)
	}
}

func TestListToolsFilters(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	createTestTool(t, s, "Drill", "Power tools")
	saw := createTestTool(t, s, "Circular saw", "Power tools")
	createTestTool(t, s, "Hammer", "Hand tools")
	s.SetToolStatus(ctx, saw.ID, model.StatusUnderMaintenance, model.ExportCache{})

	all, _ := s.ListTools(ctx, ToolFilter{})
	if len(all) != 3 {
		t.Errorf("expected 3 tools, got %d", len(all))
	}

	power, _ := s.ListTools(ctx, ToolFilter{Category: "Power tools"})
	if len(power) != 2 {
		t.Errorf("expected 2 power tools, got %d", len(power))
	}

	maint, _ := s.ListTools(ctx, ToolFilter{Status: model.StatusUnderMaintenance})
	if len(maint) != 1 || maint[0].ID != saw.ID {
		t.Errorf("expected only the saw under maintenance, got %v", maint)
	}

	found, _ := s.ListTools(ctx, ToolFilter{Search: "SAW"})
	if len(found) != 1 {
		t.Errorf("expected 1 search hit, got %d", len(found))
	}
}

func TestUpdateTool(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := createTestTool(t, s, "Drill", "Power tools")

	updated, err := s.UpdateTool(ctx, tool.ID, model.ToolFields{
		Name: "Cordless drill", Category: "Power tools", Maker: "Makita", SerialNumber: "SN-1",
	})
	if err != nil {
		t.Fatalf("UpdateTool: %v", err)
	}
	if updated.Name != "Cordless drill" || updated.Maker != "Makita" || updated.SerialNumber != "SN-1" {
		t.Errorf("unexpected tool after update: %+v", updated)
	}
	if updated.Barcode != tool.Barcode || updated.AssetCode != tool.AssetCode {
		t.Error("codes must not change on update")
	}

	missing, err := s.UpdateTool(ctx, 999, model.ToolFields{Name: "x", Category: "Power tools"})
	if err != nil || missing != nil {
		t.Errorf("expected nil, nil for missing tool, got %+v, %v", missing, err)
	}
}

func TestSetToolStatusWritesCache(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := createTestTool(t, s, "Drill", "Power tools")
	at := time.Date(2026, 5, 4, 8, 30, 0, 0, time.UTC)

	got, err := s.SetToolStatus(ctx, tool.ID, model.StatusExported, model.ExportCache{
		ExportedBy: "Kim", ExportedDate: &at, ExportPurpose: "fieldwork",
	})
	if err != nil {
		t.Fatalf("SetToolStatus: %v", err)
	}
	if got.Status != model.StatusExported || got.ExportedBy != "Kim" || got.ExportPurpose != "fieldwork" {
		t.Errorf("unexpected tool: %+v", got)
	}
	if got.ExportedDate == nil || !got.ExportedDate.Equal(at) {
		t.Errorf("expected exported date %v, got %v", at, got.ExportedDate)
	}

	cleared, _ := s.SetToolStatus(ctx, tool.ID, model.StatusAvailable, model.ExportCache{})
	if cleared.HasExportCache() {
		t.Errorf("expected cache cleared, got %+v", cleared)
	}
}

func TestDeleteToolRefusedWithHistory(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	fresh := createTestTool(t, s, "Level", "Measuring")
	used := createTestTool(t, s, "Tape", "Measuring")

	ev, _ := s.InsertExportEvent(ctx, used.ID, "Lee", "survey", time.Now())
	s.CloseExportEvent(ctx, ev.ID, "Lee", time.Now(), "")

	if err := s.DeleteTool(ctx, used.ID); !errors.Is(err, apperr.ErrConflict) {
		t.Errorf("expected ErrConflict deleting tool with closed history, got %v", err)
	}
	if got, _ := s.GetTool(ctx, used.ID); got == nil {
		t.Error("tool with history must survive delete")
	}

	if err := s.DeleteTool(ctx, fresh.ID); err != nil {
		t.Fatalf("DeleteTool: %v", err)
	}
	if got, _ := s.GetTool(ctx, fresh.ID); got != nil {
		t.Error("expected tool without history to be deleted")
	}

	if err := s.DeleteTool(ctx, fresh.ID); !errors.Is(err, apperr.ErrNotFound) {
		t.Errorf("expected ErrNotFound on second delete, got %v", err)
	}
}

func TestToolImage(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	tool := createTestTool(t, s, "Drill", "Power tools")
	s.SetToolImage(ctx, tool.ID, []byte("fake image data"), "image/jpeg")

	data, mime, err := s.GetToolImage(ctx, tool.ID)
	if err != nil {
		t.Fatalf("GetToolImage: %v", err)
	}
	if string(data) != "fake image data" || mime != "image/jpeg" {
		t.Errorf("unexpected image %q (%s)", data, mime)
	}

	got, _ := s.GetTool(ctx, tool.ID)
	if got.ImageMime != "image/jpeg" {
		t.Errorf("expected image mime on tool, got %q", got.ImageMime)
	}
}
