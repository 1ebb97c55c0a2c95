package model

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// ToolStatus is the lifecycle state of a tool.
type ToolStatus string

// Tool statuses. The string values are what the store persists.
const (
	StatusAvailable        ToolStatus = "Available"
	StatusExported         ToolStatus = "Exported"
	StatusUnderMaintenance ToolStatus = "Under Maintenance"
	StatusRetired          ToolStatus = "Retired"
)

// Statuses lists every status in display order.
var Statuses = []ToolStatus{StatusAvailable, StatusExported, StatusUnderMaintenance, StatusRetired}

// Valid reports whether s is a known status.
func (s ToolStatus) Valid() bool {
	switch s {
	case StatusAvailable, StatusExported, StatusUnderMaintenance, StatusRetired:
		return true
	}
	return false
}

// ParseStatus accepts the stored spelling as well as the compact forms
// operators type ("UnderMaintenance", "maintenance").
func ParseStatus(s string) (ToolStatus, bool) {
	norm := strings.ToLower(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
	switch norm {
	case "available":
		return StatusAvailable, true
	case "exported":
		return StatusExported, true
	case "undermaintenance", "maintenance":
		return StatusUnderMaintenance, true
	case "retired":
		return StatusRetired, true
	}
	return "", false
}

// transitions holds the legal target states for each state.
var transitions = map[ToolStatus][]ToolStatus{
	StatusAvailable:        {StatusExported, StatusUnderMaintenance, StatusRetired},
	StatusExported:         {StatusAvailable, StatusUnderMaintenance, StatusRetired},
	StatusUnderMaintenance: {StatusAvailable, StatusUnderMaintenance, StatusRetired},
	StatusRetired:          nil,
}

// CanTransition reports whether a tool in state from may move to state to.
func CanTransition(from, to ToolStatus) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Tool is a single physical tool.
type Tool struct {
	ID            int64      `json:"id"`
	Name          string     `json:"name"`
	Maker         string     `json:"maker,omitempty"`
	Model         string     `json:"model,omitempty"`
	Specification string     `json:"specification,omitempty"`
	Category      string     `json:"category"`
	SerialNumber  string     `json:"serial_number,omitempty"`
	PurchaseDate  string     `json:"purchase_date,omitempty"`
	WarrantyDate  string     `json:"warranty_date,omitempty"`
	Description   string     `json:"description,omitempty"`
	Barcode       string     `json:"barcode"`
	AssetCode     string     `json:"asset_code"`
	Status        ToolStatus `json:"status"`
	ImageMime     string     `json:"image_mime,omitempty"`

	// Cached copy of the open export event. Only set while Exported.
	ExportedBy    string     `json:"exported_by,omitempty"`
	ExportedDate  *time.Time `json:"exported_date,omitempty"`
	ExportPurpose string     `json:"export_purpose,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HasExportCache reports whether any cached export field is set.
func (t *Tool) HasExportCache() bool {
	return t.ExportedBy != "" || t.ExportedDate != nil || t.ExportPurpose != ""
}

// ToolFields holds the descriptive attributes of a tool.
type ToolFields struct {
	Name          string `json:"name" validate:"required,max=200"`
	Maker         string `json:"maker" validate:"max=200"`
	Model         string `json:"model" validate:"max=200"`
	Specification string `json:"specification" validate:"max=500"`
	Category      string `json:"category" validate:"required,max=100"`
	SerialNumber  string `json:"serial_number" validate:"max=200"`
	PurchaseDate  string `json:"purchase_date" validate:"omitempty,datetime=2006-01-02"`
	WarrantyDate  string `json:"warranty_date" validate:"omitempty,datetime=2006-01-02"`
	Description   string `json:"description" validate:"max=2000"`
}

// ExportCache is the denormalised export metadata written to a tool row.
// The zero value clears it.
type ExportCache struct {
	ExportedBy    string
	ExportedDate  *time.Time
	ExportPurpose string
}

// CacheFor builds the tool cache from an open event.
func CacheFor(e *ExportEvent) ExportCache {
	if e == nil {
		return ExportCache{}
	}
	date := e.ExportDate
	return ExportCache{ExportedBy: e.ExportedBy, ExportedDate: &date, ExportPurpose: e.ExportPurpose}
}

// Matches reports whether the tool's cached fields equal c.
func (t *Tool) Matches(c ExportCache) bool {
	if t.ExportedBy != c.ExportedBy || t.ExportPurpose != c.ExportPurpose {
		return false
	}
	if (t.ExportedDate == nil) != (c.ExportedDate == nil) {
		return false
	}
	return t.ExportedDate == nil || t.ExportedDate.Equal(*c.ExportedDate)
}

var shortCodeRe = regexp.MustCompile(`^P\d{3}$`)

// ShortCode returns the scanner payload for a tool id: P followed by the id
// zero-padded to three digits.
func ShortCode(id int64) string {
	return fmt.Sprintf("P%03d", id)
}

// ParseShortCode extracts the tool id from a short code.
func ParseShortCode(token string) (int64, bool) {
	if !shortCodeRe.MatchString(token) {
		return 0, false
	}
	id, err := strconv.ParseInt(token[1:], 10, 64)
	if err != nil {
		return 0, false
	}
	return id, true
}

// AssetCode returns the per-category asset code for the n-th tool (1-based).
func AssetCode(categoryCode string, n int) string {
	return fmt.Sprintf("%s%03d", categoryCode, n)
}
