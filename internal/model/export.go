package model

import "time"

// ExportEvent is one export/return cycle of a tool. The log of events is the
// authoritative record of who holds a tool.
type ExportEvent struct {
	ID            int64      `json:"id"`
	ProductID     int64      `json:"product_id"`
	ExportedBy    string     `json:"exported_by"`
	ExportDate    time.Time  `json:"export_date"`
	ExportPurpose string     `json:"export_purpose,omitempty"`
	ReturnDate    *time.Time `json:"return_date"`
	ReturnedBy    string     `json:"returned_by,omitempty"`
	Notes         string     `json:"notes,omitempty"`

	// Joined fields (not always populated).
	ToolName    string `json:"tool_name,omitempty"`
	ToolBarcode string `json:"tool_barcode,omitempty"`
	Category    string `json:"category,omitempty"`
}

// IsOpen reports whether the event has not been returned yet.
func (e *ExportEvent) IsOpen() bool {
	return e.ReturnDate == nil
}

// Stats counts tools by status.
type Stats struct {
	Total       int `json:"total"`
	Available   int `json:"available"`
	Exported    int `json:"exported"`
	Maintenance int `json:"maintenance"`
	Retired     int `json:"retired"`
}

// CategoryStats counts tools of one category.
type CategoryStats struct {
	Category  string `json:"category"`
	Total     int    `json:"total"`
	Available int    `json:"available"`
	Exported  int    `json:"exported"`
}
