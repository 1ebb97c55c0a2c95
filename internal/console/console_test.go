package console

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erazemk/orodjarna/internal/db"
	"github.com/erazemk/orodjarna/internal/lifecycle"
	"github.com/erazemk/orodjarna/internal/model"
	"github.com/erazemk/orodjarna/internal/scan"
	"github.com/erazemk/orodjarna/internal/store"
)

type session struct {
	con *Console
	st  *store.Store
}

func newSession(t *testing.T, names ...string) *session {
	t.Helper()
	ctx := context.Background()
	st := store.New(db.NewTestDB(t))
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	lc := lifecycle.New(st, lifecycle.WithLogger(logger))

	_, err := st.CreateCategory(ctx, "Power tools")
	require.NoError(t, err)
	for _, name := range names {
		_, err := lc.RegisterTool(ctx, lifecycle.NewTool{
			ToolFields: model.ToolFields{Name: name, Category: "Power tools"},
		})
		require.NoError(t, err)
	}

	return &session{
		con: New(scan.NewResolver(st), lc, WithLogger(logger), WithDefaultPurpose("site work")),
		st:  st,
	}
}

func (s *session) run(t *testing.T, lines ...string) string {
	t.Helper()
	var out bytes.Buffer
	err := s.con.Run(context.Background(), strings.NewReader(strings.Join(lines, "\n")), &out)
	require.NoError(t, err)
	return out.String()
}

func (s *session) tool(t *testing.T, id int64) *model.Tool {
	t.Helper()
	tool, err := s.st.GetTool(context.Background(), id)
	require.NoError(t, err)
	require.NotNil(t, tool)
	return tool
}

func TestExportThenReturnBatch(t *testing.T) {
	s := newSession(t, "Drill", "Grinder", "Saw")

	out := s.run(t,
		"export Kim",
		"P001",
		"P002",
		"P001",
		"commit",
		"return",
		"P002",
		"commit",
		"quit",
	)

	assert.Contains(t, out, "export mode for Kim")
	assert.Contains(t, out, "already in cart: P001 Drill")
	assert.Contains(t, out, "2 committed, 0 left in cart")
	assert.Contains(t, out, "1 committed, 0 left in cart")

	drill := s.tool(t, 1)
	assert.Equal(t, model.StatusExported, drill.Status)
	assert.Equal(t, "Kim", drill.ExportedBy)
	assert.Equal(t, "site work", drill.ExportPurpose)

	grinder := s.tool(t, 2)
	assert.Equal(t, model.StatusAvailable, grinder.Status)
	assert.False(t, grinder.HasExportCache())

	events, err := s.st.ListExportEvents(context.Background(), 2)
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, "Kim", events[0].ReturnedBy)
}

func TestCommitPurposeArgument(t *testing.T) {
	s := newSession(t, "Drill")

	s.run(t, "export Lee", "drill", "commit bridge inspection")

	assert.Equal(t, "bridge inspection", s.tool(t, 1).ExportPurpose)
}

func TestScanBeforeModeIsRefused(t *testing.T) {
	s := newSession(t, "Drill")

	out := s.run(t, "P001", "list", "commit")

	assert.Equal(t, 3, strings.Count(out, "pick a mode first"))
	assert.Equal(t, model.StatusAvailable, s.tool(t, 1).Status)
}

func TestScanRejections(t *testing.T) {
	s := newSession(t, "Drill", "Saw")

	out := s.run(t,
		"return",
		"P001",
		"export Kim",
		"P404",
		"nothing like it",
		"commit",
	)

	assert.Contains(t, out, "cannot be returned")
	assert.Contains(t, out, `no tool matches "P404"`)
	assert.Contains(t, out, `no tool matches "nothing like it"`)
	assert.Contains(t, out, "cart is empty, nothing to commit")
}

func TestRemoveAndClear(t *testing.T) {
	s := newSession(t, "Drill", "Saw")

	out := s.run(t,
		"export Kim",
		"P001",
		"P002",
		"rm P001",
		"rm P001",
		"list",
		"clear",
		"list",
	)

	assert.Contains(t, out, "- P001 Drill")
	assert.Contains(t, out, "not in cart: P001 Drill")
	assert.Contains(t, out, " 1. P002 Saw")
	assert.Contains(t, out, "cart cleared")
	assert.Contains(t, out, "cart is empty")
}

func TestFailedEntriesStayInCart(t *testing.T) {
	s := newSession(t, "Drill", "Saw")
	ctx := context.Background()

	s.run(t, "export Kim", "P001", "P002")

	// Someone else takes the saw between scan and commit.
	_, err := lifecycle.New(s.st, lifecycle.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))).
		RequestExport(ctx, 2, "Lee", "other site")
	require.NoError(t, err)

	out := s.run(t, "commit", "list")

	assert.Contains(t, out, "failed P002 Saw")
	assert.Contains(t, out, "1 committed, 1 left in cart")
	assert.Contains(t, out, " 1. P002 Saw")
	assert.Equal(t, "Lee", s.tool(t, 2).ExportedBy)
}

func TestQuitWarnsAboutPendingTools(t *testing.T) {
	s := newSession(t, "Drill")

	out := s.run(t, "export Kim", "P001", "quit", "P001")

	assert.Contains(t, out, "leaving with 1 uncommitted tools")
	assert.Equal(t, 1, strings.Count(out, "+ P001"))
}
