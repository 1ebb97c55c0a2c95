package lifecycle

import (
	"context"

	"github.com/erazemk/orodjarna/internal/apperr"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/store"
)

// Report is the outcome of reconciling one tool.
type Report struct {
	Tool     *model.Tool        `json:"tool"`
	Open     *model.ExportEvent `json:"open,omitempty"`
	Warnings []string           `json:"warnings,omitempty"`
	Repaired bool               `json:"repaired"`
}

// Reconcile rebuilds a tool's export fields from the log. It never writes the
// log or the status: a status that disagrees with the log is reported as a
// history inconsistency for an operator to resolve.
func (s *Service) Reconcile(ctx context.Context, id int64) (*Report, error) {
	const op = "reconcile"

	t, err := s.getTool(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}
	v, err := s.currentHistory(ctx, id)
	if err != nil {
		return nil, s.fail(op, err)
	}

	r := &Report{Tool: t, Open: v.Open, Warnings: v.Warnings}

	var want model.ExportCache
	switch {
	case t.Status == model.StatusExported && v.Open == nil:
		return r, s.fail(op, apperr.Newf(apperr.CodeHistoryInconsistency,
			"tool %d is Exported but has no open export event", id))
	case t.Status != model.StatusExported && v.Open != nil:
		return r, s.fail(op, apperr.Newf(apperr.CodeHistoryInconsistency,
			"tool %d is %s but export event %d (by %s) is open", id, t.Status, v.Open.ID, v.Open.ExportedBy))
	case v.Open != nil:
		want = model.CacheFor(v.Open)
	}

	if t.Matches(want) {
		return r, nil
	}

	updated, err := s.store.SetToolStatus(ctx, id, t.Status, want)
	if err != nil {
		return r, s.fail(op, storeError(err, "rewriting tool export fields"))
	}
	if updated == nil {
		return r, s.fail(op, apperr.Newf(apperr.CodeNotFound, "tool %d not found", id))
	}
	r.Tool = updated
	r.Repaired = true

	s.logger.Info("tool export fields rebuilt from log", "tool", id, "status", t.Status, "holder", want.ExportedBy)
	return r, nil
}

// Problem is a tool Reconcile could not settle.
type Problem struct {
	ToolID   int64  `json:"tool_id"`
	ToolName string `json:"tool_name"`
	Code     string `json:"code"`
	Reason   string `json:"reason"`
}

// Summary is the outcome of ReconcileAll.
type Summary struct {
	Checked  int       `json:"checked"`
	Repaired int       `json:"repaired"`
	Warnings []string  `json:"warnings,omitempty"`
	Problems []Problem `json:"problems,omitempty"`
}

// ReconcileAll reconciles every tool. Per-tool failures are collected in the
// summary; only a failure to list tools is returned as an error.
func (s *Service) ReconcileAll(ctx context.Context) (*Summary, error) {
	tools, err := s.store.ListTools(ctx, store.ToolFilter{})
	if err != nil {
		return nil, apperr.Unavailable(err, "listing tools")
	}

	sum := &Summary{}
	for _, t := range tools {
		if err := ctx.Err(); err != nil {
			return sum, err
		}
		sum.Checked++

		r, err := s.Reconcile(ctx, t.ID)
		if r != nil {
			sum.Warnings = append(sum.Warnings, r.Warnings...)
		}
		if err != nil {
			sum.Problems = append(sum.Problems, Problem{
				ToolID: t.ID, ToolName: t.Name, Code: string(apperr.CodeOf(err)), Reason: err.Error(),
			})
			continue
		}
		if r.Repaired {
			sum.Repaired++
		}
	}

	s.logger.Info("reconciliation finished", "checked", sum.Checked, "repaired", sum.Repaired,
		"problems", len(sum.Problems), "warnings", len(sum.Warnings))
	return sum, nil
}
