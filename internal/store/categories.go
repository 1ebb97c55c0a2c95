package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
)

// CreateCategory creates a category and assigns it the lowest free code.
func (s *Store) CreateCategory(ctx context.Context, name string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, apperr.New(apperr.CodeInvalidInput, "category name required")
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var dup int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM categories WHERE name = ?`, name,
	).Scan(&dup); err != nil {
		return nil, fmt.Errorf("checking category name: %w", err)
	}
	if dup > 0 {
		return nil, apperr.Newf(apperr.CodeConflict, "category %q already exists", name)
	}

	rows, err := tx.QueryContext(ctx, `SELECT code FROM categories`)
	if err != nil {
		return nil, fmt.Errorf("listing category codes: %w", err)
	}
	var codes []string
	for rows.Next() {
		var code string
		if err := rows.Scan(&code); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scanning category code: %w", err)
		}
		codes = append(codes, code)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing category codes: %w", err)
	}

	result, err := tx.ExecContext(ctx,
		`INSERT INTO categories (name, code, created_at) VALUES (?, ?, ?)`,
		name, model.NextCategoryCode(codes), s.now(),
	)
	if err != nil {
		return nil, fmt.Errorf("creating category: %w", err)
	}
	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("getting category id: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing category: %w", err)
	}
	return s.GetCategory(ctx, id)
}

// GetCategory returns a category by ID, or nil.
func (s *Store) GetCategory(ctx context.Context, id int64) (*model.Category, error) {
	return s.getCategory(ctx, `id = ?`, id)
}

// GetCategoryByName returns a category by name, or nil.
func (s *Store) GetCategoryByName(ctx context.Context, name string) (*model.Category, error) {
	return s.getCategory(ctx, `name = ?`, strings.TrimSpace(name))
}

func (s *Store) getCategory(ctx context.Context, where string, arg any) (*model.Category, error) {
	c := &model.Category{}
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, code, created_at FROM categories WHERE `+where, arg,
	).Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting category: %w", err)
	}
	return c, nil
}

// ListCategories returns all categories ordered by name.
func (s *Store) ListCategories(ctx context.Context) ([]model.Category, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, code, created_at FROM categories ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("listing categories: %w", err)
	}
	defer rows.Close()

	var categories []model.Category
	for rows.Next() {
		var c model.Category
		if err := rows.Scan(&c.ID, &c.Name, &c.Code, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning category: %w", err)
		}
		categories = append(categories, c)
	}
	return categories, rows.Err()
}

// DeleteCategory deletes a category. Fails while any tool references it.
func (s *Store) DeleteCategory(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var name string
	err = tx.QueryRowContext(ctx, `SELECT name FROM categories WHERE id = ?`, id).Scan(&name)
	if err == sql.ErrNoRows {
		return apperr.Newf(apperr.CodeNotFound, "category %d not found", id)
	}
	if err != nil {
		return fmt.Errorf("getting category: %w", err)
	}

	var count int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM tools WHERE category = ?`, name,
	).Scan(&count); err != nil {
		return fmt.Errorf("checking category tools: %w", err)
	}
	if count > 0 {
		return apperr.Newf(apperr.CodeConflict, "cannot delete category %q: %d tools still use it", name, count)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM categories WHERE id = ?`, id); err != nil {
		return fmt.Errorf("deleting category: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing category deletion: %w", err)
	}
	return nil
}
