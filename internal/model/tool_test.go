package model

import (
	"testing"
	"time"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from, to ToolStatus
		want     bool
	}{
		{StatusAvailable, StatusExported, true},
		{StatusAvailable, StatusUnderMaintenance, true},
		{StatusAvailable, StatusRetired, true},
		{StatusAvailable, StatusAvailable, false},
		{StatusExported, StatusAvailable, true},
		{StatusExported, StatusExported, false},
		{StatusExported, StatusUnderMaintenance, true},
		{StatusExported, StatusRetired, true},
		{StatusUnderMaintenance, StatusUnderMaintenance, true},
		{StatusUnderMaintenance, StatusAvailable, true},
		{StatusUnderMaintenance, StatusExported, false},
		{StatusRetired, StatusAvailable, false},
		{StatusRetired, StatusRetired, false},
		{"bogus", StatusAvailable, false},
	}

	for _, tt := range tests {
		if got := CanTransition(tt.from, tt.to); got != tt.want {
			t.Errorf("CanTransition(%q, %q) = %v, want %v", tt.from, tt.to, got, tt.want)
		}
	}
}

func TestParseStatus(t *testing.T) {
	tests := []struct {
		in   string
		want ToolStatus
		ok   bool
	}{
		{"Available", StatusAvailable, true},
		{"under maintenance", StatusUnderMaintenance, true},
		{"UnderMaintenance", StatusUnderMaintenance, true},
		{" retired ", StatusRetired, true},
		{"lost", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		got, ok := ParseStatus(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseStatus(%q) = %q, %v; want %q, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
}

func TestShortCode(t *testing.T) {
	if got := ShortCode(3); got != "P003" {
		t.Errorf("ShortCode(3) = %q", got)
	}
	if got := ShortCode(1234); got != "P1234" {
		t.Errorf("ShortCode(1234) = %q", got)
	}

	tests := []struct {
		token string
		id    int64
		ok    bool
	}{
		{"P003", 3, true},
		{"P120", 120, true},
		{"P03", 0, false},
		{"P0003", 0, false},
		{"p003", 0, false},
		{"PABC", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		id, ok := ParseShortCode(tt.token)
		if id != tt.id || ok != tt.ok {
			t.Errorf("ParseShortCode(%q) = %d, %v; want %d, %v", tt.token, id, ok, tt.id, tt.ok)
		}
	}
}

func TestCategoryCodeSequence(t *testing.T) {
	var codes []string
	for i := 0; i < 27; i++ {
		codes = append(codes, NextCategoryCode(codes))
	}
	if codes[0] != "A" || codes[25] != "Z" || codes[26] != "A1" {
		t.Errorf("unexpected sequence: %v", codes)
	}
	if got := CategoryCode(53); got != "B2" {
		t.Errorf("CategoryCode(53) = %q, want B2", got)
	}
}

func TestNextCategoryCodeFillsGap(t *testing.T) {
	if got := NextCategoryCode([]string{"A", "C"}); got != "B" {
		t.Errorf("NextCategoryCode = %q, want B", got)
	}
}

func TestExportCacheMatches(t *testing.T) {
	now := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	ev := &ExportEvent{ExportedBy: "Kim", ExportDate: now, ExportPurpose: "fieldwork"}

	tool := &Tool{ExportedBy: "Kim", ExportedDate: &now, ExportPurpose: "fieldwork"}
	if !tool.Matches(CacheFor(ev)) {
		t.Error("expected cache to match event")
	}

	tool.ExportPurpose = "other"
	if tool.Matches(CacheFor(ev)) {
		t.Error("expected mismatch after purpose change")
	}

	empty := &Tool{}
	if !empty.Matches(CacheFor(nil)) || empty.HasExportCache() {
		t.Error("empty tool should match cleared cache")
	}
}
