// Package cart holds a batch of scanned tools until the operator commits it.
package cart

import (
	"context"
	"strings"
	"time"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/metrics"
	"github.com/erazemk/orodjarna/internal/model"
)

// DefaultPurpose is used when an export is committed without a purpose.
const DefaultPurpose = "fieldwork"

// Mode is what a cart does with its tools on commit.
type Mode string

const (
	ModeExport Mode = "export"
	ModeReturn Mode = "return"
)

// Entry is a tool as it was when scanned.
type Entry struct {
	Tool    model.Tool `json:"tool"`
	AddedAt time.Time  `json:"added_at"`
}

// Committer applies the transition for each entry. *lifecycle.Service
// satisfies it.
type Committer interface {
	RequestExport(ctx context.Context, id int64, exporter, purpose string) (*model.Tool, error)
	RequestReturn(ctx context.Context, id int64, returnedBy string) (*model.Tool, error)
}

// Cart is an in-memory batch. It is not safe for concurrent use; each console
// session owns its cart.
type Cart struct {
	mode    Mode
	entries []Entry
	now     func() time.Time
	metrics *metrics.Metrics
}

// Option configures a Cart.
type Option func(*Cart)

// WithClock overrides the time source for AddedAt.
func WithClock(now func() time.Time) Option {
	return func(c *Cart) { c.now = now }
}

// WithMetrics records commit outcomes.
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Cart) { c.metrics = m }
}

// New returns an empty cart.
func New(mode Mode, opts ...Option) *Cart {
	c := &Cart{mode: mode, now: time.Now}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Mode returns the cart mode.
func (c *Cart) Mode() Mode {
	return c.mode
}

// Len returns the number of entries.
func (c *Cart) Len() int {
	return len(c.entries)
}

// Entries returns a copy of the entries in the order they were added.
func (c *Cart) Entries() []Entry {
	out := make([]Entry, len(c.entries))
	copy(out, c.entries)
	return out
}

// Contains reports whether the tool is in the cart.
func (c *Cart) Contains(id int64) bool {
	return c.index(id) >= 0
}

func (c *Cart) index(id int64) int {
	for i, e := range c.entries {
		if e.Tool.ID == id {
			return i
		}
	}
	return -1
}

// Add appends a tool. A tool already in the cart is rejected with
// ErrDuplicateInCart and the cart is left unchanged. Export carts only take
// Available tools and return carts only Exported ones.
func (c *Cart) Add(t *model.Tool) error {
	if t == nil {
		return apperr.New(apperr.CodeInvalidInput, "no tool to add")
	}
	if c.Contains(t.ID) {
		return apperr.Newf(apperr.CodeDuplicateInCart, "%s (%s) is already in the cart", t.Name, t.Barcode)
	}

	switch c.mode {
	case ModeExport:
		if t.Status != model.StatusAvailable {
			return apperr.Newf(apperr.CodeNotAvailable, "%s (%s) is %s and cannot be exported", t.Name, t.Barcode, t.Status)
		}
	case ModeReturn:
		if t.Status != model.StatusExported {
			return apperr.Newf(apperr.CodeNotExported, "%s (%s) is %s and cannot be returned", t.Name, t.Barcode, t.Status)
		}
	}

	c.entries = append(c.entries, Entry{Tool: *t, AddedAt: c.now()})
	return nil
}

// Remove drops a tool from the cart. It reports whether anything was removed.
func (c *Cart) Remove(id int64) bool {
	i := c.index(id)
	if i < 0 {
		return false
	}
	c.entries = append(c.entries[:i], c.entries[i+1:]...)
	return true
}

// Clear empties the cart.
func (c *Cart) Clear() {
	c.entries = nil
}

// CommitOptions are the details applied to every entry of a commit.
type CommitOptions struct {
	Exporter   string
	Purpose    string
	ReturnedBy string
}

// Failure is an entry that could not be committed.
type Failure struct {
	Tool model.Tool `json:"tool"`
	Err  error      `json:"-"`
}

// CommitResult lists what a commit did.
type CommitResult struct {
	Succeeded []model.Tool `json:"succeeded"`
	Failed    []Failure    `json:"failed"`
}

// Commit applies every entry in order, one at a time. Entries that succeed are
// removed; failed ones stay in the cart for another try. Committing an empty
// cart does nothing. An export commit without an exporter fails before any
// entry is touched.
func (c *Cart) Commit(ctx context.Context, lc Committer, opts CommitOptions) (*CommitResult, error) {
	res := &CommitResult{}
	if len(c.entries) == 0 {
		return res, nil
	}

	exporter := strings.TrimSpace(opts.Exporter)
	purpose := strings.TrimSpace(opts.Purpose)
	if c.mode == ModeExport {
		if exporter == "" {
			return res, apperr.New(apperr.CodeInvalidInput, "exporter name is required to commit an export")
		}
		if purpose == "" {
			purpose = DefaultPurpose
		}
	}

	var remaining []Entry
	for i, e := range c.entries {
		if err := ctx.Err(); err != nil {
			remaining = append(remaining, c.entries[i:]...)
			c.entries = remaining
			c.metrics.CartCommit(string(c.mode), len(res.Succeeded), len(res.Failed))
			return res, err
		}

		var t *model.Tool
		var err error
		switch c.mode {
		case ModeExport:
			t, err = lc.RequestExport(ctx, e.Tool.ID, exporter, purpose)
		case ModeReturn:
			t, err = lc.RequestReturn(ctx, e.Tool.ID, opts.ReturnedBy)
		default:
			err = apperr.Newf(apperr.CodeInvalidInput, "unknown cart mode %q", c.mode)
		}

		if err != nil {
			res.Failed = append(res.Failed, Failure{Tool: e.Tool, Err: err})
			remaining = append(remaining, e)
			continue
		}
		res.Succeeded = append(res.Succeeded, *t)
	}

	c.entries = remaining
	c.metrics.CartCommit(string(c.mode), len(res.Succeeded), len(res.Failed))
	return res, nil
}
