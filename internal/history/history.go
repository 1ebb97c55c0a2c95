// Package history orders a tool's export log and resolves which event is
// currently open.
package history

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/erazemk/orodjarna/internal/model"
)

// Source reads a tool's raw export log.
type Source interface {
	ListExportEvents(ctx context.Context, productID int64) ([]model.ExportEvent, error)
}

// View is a tool's history with the open event resolved.
type View struct {
	ProductID int64               `json:"product_id"`
	Events    []model.ExportEvent `json:"events"`
	Open      *model.ExportEvent  `json:"open,omitempty"`
	Warnings  []string            `json:"warnings,omitempty"`
}

// Resolve sorts events most recent first (export date, then id) and picks the
// open event. When several events are open the latest one wins and the others
// are reported as warnings. events is not modified.
func Resolve(productID int64, events []model.ExportEvent) *View {
	sorted := make([]model.ExportEvent, len(events))
	copy(sorted, events)
	sort.SliceStable(sorted, func(i, j int) bool {
		a, b := sorted[i], sorted[j]
		if !a.ExportDate.Equal(b.ExportDate) {
			return a.ExportDate.After(b.ExportDate)
		}
		return a.ID > b.ID
	})

	v := &View{ProductID: productID, Events: sorted}
	for i := range sorted {
		if !sorted[i].IsOpen() {
			continue
		}
		if v.Open == nil {
			v.Open = &sorted[i]
			continue
		}
		v.Warnings = append(v.Warnings, fmt.Sprintf(
			"tool %d: export event %d (by %s) is also open; event %d is authoritative",
			productID, sorted[i].ID, sorted[i].ExportedBy, v.Open.ID))
	}
	return v
}

// Resolver serves tool histories. History reads go through a per-tool cache
// meant for detail views; Current always reads the log.
type Resolver struct {
	src Source

	mu    sync.Mutex
	cache map[int64][]model.ExportEvent
}

// NewResolver returns a resolver reading from src.
func NewResolver(src Source) *Resolver {
	return &Resolver{src: src, cache: make(map[int64][]model.ExportEvent)}
}

// History returns the tool's history, using the cache when populated. Do not
// base transition decisions on it; use Current.
func (r *Resolver) History(ctx context.Context, productID int64) (*View, error) {
	r.mu.Lock()
	events, ok := r.cache[productID]
	r.mu.Unlock()
	if ok {
		return Resolve(productID, events), nil
	}

	events, err := r.src.ListExportEvents(ctx, productID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[productID] = events
	r.mu.Unlock()

	return Resolve(productID, events), nil
}

// Current reads the log afresh and refreshes the cache entry.
func (r *Resolver) Current(ctx context.Context, productID int64) (*View, error) {
	events, err := r.src.ListExportEvents(ctx, productID)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.cache[productID] = events
	r.mu.Unlock()

	return Resolve(productID, events), nil
}

// Invalidate drops the cached history of a tool.
func (r *Resolver) Invalidate(productID int64) {
	r.mu.Lock()
	delete(r.cache, productID)
	r.mu.Unlock()
}
