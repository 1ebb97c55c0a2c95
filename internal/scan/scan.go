// Package scan resolves operator or scanner input to a single tool.
package scan

import (
	"context"
	"strconv"
	"strings"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
)

// Store is the read side of the inventory the resolver needs.
type Store interface {
	GetTool(ctx context.Context, id int64) (*model.Tool, error)
	GetToolByBarcode(ctx context.Context, barcode string) (*model.Tool, error)
	ListTools(ctx context.Context, filter store.ToolFilter) ([]model.Tool, error)
}

// Resolver maps tokens to tools.
type Resolver struct {
	store Store
}

// NewResolver returns a resolver over st.
func NewResolver(st Store) *Resolver {
	return &Resolver{store: st}
}

// Resolve finds the tool a token refers to. It tries, in order: a short code
// (P + three digits) as a tool id, an exact barcode, then every tool by exact
// id, exact serial number and finally case-insensitive name substring. The
// first match wins. Anything unmatched, malformed input included, is
// ErrNotFound.
func (r *Resolver) Resolve(ctx context.Context, token string) (*model.Tool, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, apperr.New(apperr.CodeNotFound, "empty scan")
	}

	if id, ok := model.ParseShortCode(token); ok {
		t, err := r.store.GetTool(ctx, id)
		if err != nil {
			return nil, apperr.Unavailable(err, "looking up tool by short code")
		}
		if t != nil {
			return t, nil
		}
	}

	t, err := r.store.GetToolByBarcode(ctx, token)
	if err != nil {
		return nil, apperr.Unavailable(err, "looking up tool by barcode")
	}
	if t != nil {
		return t, nil
	}

	tools, err := r.store.ListTools(ctx, store.ToolFilter{})
	if err != nil {
		return nil, apperr.Unavailable(err, "listing tools")
	}
	if t := match(tools, token); t != nil {
		return t, nil
	}

	return nil, apperr.Newf(apperr.CodeNotFound, "no tool matches %q", token)
}

func match(tools []model.Tool, token string) *model.Tool {
	for i := range tools {
		if strconv.FormatInt(tools[i].ID, 10) == token {
			return &tools[i]
		}
	}
	for i := range tools {
		if tools[i].SerialNumber != "" && tools[i].SerialNumber == token {
			return &tools[i]
		}
	}
	lower := strings.ToLower(token)
	for i := range tools {
		if strings.Contains(strings.ToLower(tools[i].Name), lower) {
			return &tools[i]
		}
	}
	return nil
}
