package store

import (
	"context"
	"fmt"

	"github.com/erazemk/orodjarna/internal/model"
)

// Stats counts all tools by status.
func (s *Store) Stats(ctx context.Context) (*model.Stats, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM tools GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("counting tools: %w", err)
	}
	defer rows.Close()

	st := &model.Stats{}
	for rows.Next() {
		var status model.ToolStatus
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, fmt.Errorf("scanning tool count: %w", err)
		}
		st.Total += n
		switch status {
		case model.StatusAvailable:
			st.Available = n
		case model.StatusExported:
			st.Exported = n
		case model.StatusUnderMaintenance:
			st.Maintenance = n
		case model.StatusRetired:
			st.Retired = n
		}
	}
	return st, rows.Err()
}

// CategoryStats counts tools per category.
func (s *Store) CategoryStats(ctx context.Context) ([]model.CategoryStats, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT category, COUNT(*),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END),
		        SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		 FROM tools GROUP BY category ORDER BY category`,
		string(model.StatusAvailable), string(model.StatusExported),
	)
	if err != nil {
		return nil, fmt.Errorf("counting tools by category: %w", err)
	}
	defer rows.Close()

	var stats []model.CategoryStats
	for rows.Next() {
		var cs model.CategoryStats
		if err := rows.Scan(&cs.Category, &cs.Total, &cs.Available, &cs.Exported); err != nil {
			return nil, fmt.Errorf("scanning category count: %w", err)
		}
		stats = append(stats, cs)
	}
	return stats, rows.Err()
}
