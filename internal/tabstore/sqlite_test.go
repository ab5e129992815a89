package tabstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/pif-course/collector/internal/tabstore"
)

func openStore(t *testing.T, questions int) *tabstore.SQLiteStore {
	t.Helper()
	s, err := tabstore.OpenSQLite(filepath.Join(t.TempDir(), "grades.db"), questions, nil)
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func ptr(v float64) *float64 { return &v }

func row(login string, scores ...*float64) tabstore.Row {
	return tabstore.Row{
		Name:      "Student " + login,
		Email:     login + "@school.edu",
		Login:     login,
		Scores:    scores,
		Delivered: true,
		FormatOk:  true,
	}
}

func TestAppendAndRows(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 3)

	require.NoError(t, s.Append(ctx, []tabstore.Row{
		row("ana123", ptr(2.5), nil, ptr(1.0)),
		row("bea456"),
	}))

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 2)

	require.Equal(t, "ana123", rows[0].Login)
	require.Len(t, rows[0].Scores, 3)
	require.InDelta(t, 2.5, *rows[0].Scores[0], 1e-9)
	require.Nil(t, rows[0].Scores[1])
	require.InDelta(t, 1.0, *rows[0].Scores[2], 1e-9)
	require.True(t, rows[0].Delivered)
	require.Nil(t, rows[0].TotalScore)

	// a short Scores slice pads the remaining columns with empty cells
	require.Equal(t, "bea456", rows[1].Login)
	require.Nil(t, rows[1].Scores[0])
}

func TestAppendPreservesOrder(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 1)

	require.NoError(t, s.Append(ctx, []tabstore.Row{row("zoe000")}))
	require.NoError(t, s.Append(ctx, []tabstore.Row{row("ana123")}))

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, "zoe000", rows[0].Login)
	require.Equal(t, "ana123", rows[1].Login)
}

func TestSortByLogin(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 1)

	require.NoError(t, s.Append(ctx, []tabstore.Row{row("zoe000"), row("mia555"), row("ana123")}))
	require.NoError(t, s.SortByLogin(ctx))

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, "ana123", rows[0].Login)
	require.Equal(t, "mia555", rows[1].Login)
	require.Equal(t, "zoe000", rows[2].Login)
}

func TestUpdateStatusIsNarrow(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 2)

	r := row("ana123", ptr(3.0), ptr(2.0))
	r.Comment = "graded by hand"
	require.NoError(t, s.Append(ctx, []tabstore.Row{r}))

	require.NoError(t, s.UpdateStatus(ctx, "ana123", true, 2, false))

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, rows[0].LateDays)
	require.False(t, rows[0].FormatOk)
	// scores and comment survive the status update
	require.InDelta(t, 3.0, *rows[0].Scores[0], 1e-9)
	require.Equal(t, "graded by hand", rows[0].Comment)
}

func TestUpdateStatusUnknownLogin(t *testing.T) {
	s := openStore(t, 1)
	err := s.UpdateStatus(context.Background(), "ghost", true, 0, true)
	require.ErrorContains(t, err, "ghost")
}

func TestRefreshTotals(t *testing.T) {
	ctx := context.Background()
	s := openStore(t, 2)

	graded := row("ana123", ptr(4.0), ptr(6.0))
	graded.LateDays = 1
	late := row("bea456", ptr(10.0), nil)
	late.FormatOk = false
	ungraded := row("cid789", nil, nil)

	require.NoError(t, s.Append(ctx, []tabstore.Row{graded, late, ungraded}))
	require.NoError(t, s.RefreshTotals(ctx))

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.InDelta(t, 10.0*0.85, *rows[0].TotalScore, 1e-9)
	require.InDelta(t, 10.0*0.85, *rows[1].TotalScore, 1e-9)
	require.Nil(t, rows[2].TotalScore)
}

func TestReopenKeepsContents(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "grades.db")

	s, err := tabstore.OpenSQLite(path, 2, map[int]float64{1: 0.4, 2: 0.6})
	require.NoError(t, err)
	require.NoError(t, s.Append(ctx, []tabstore.Row{row("ana123")}))
	require.NoError(t, s.Close())

	s, err = tabstore.OpenSQLite(path, 2, nil)
	require.NoError(t, err)
	defer s.Close()

	rows, err := s.Rows(ctx)
	require.NoError(t, err)
	require.Len(t, rows, 1)

	weights, err := s.Weights(ctx)
	require.NoError(t, err)
	require.Equal(t, map[int]float64{1: 0.4, 2: 0.6}, weights)
}

func TestReopenWithDifferentQuestionCount(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.db")

	s, err := tabstore.OpenSQLite(path, 3, nil)
	require.NoError(t, err)
	require.NoError(t, s.Close())

	_, err = tabstore.OpenSQLite(path, 5, nil)
	require.ErrorContains(t, err, "question columns")
}

func TestOpenRejectsSecondRun(t *testing.T) {
	path := filepath.Join(t.TempDir(), "grades.db")

	s, err := tabstore.OpenSQLite(path, 1, nil)
	require.NoError(t, err)
	defer s.Close()

	_, err = tabstore.OpenSQLite(path, 1, nil)
	require.ErrorContains(t, err, "locked")
}

func TestComputeTotal(t *testing.T) {
	base := tabstore.Row{Scores: []*float64{ptr(6.0), ptr(4.0)}, Delivered: true, FormatOk: true}

	total := tabstore.ComputeTotal(base)
	require.NotNil(t, total)
	require.InDelta(t, 10.0, *total, 1e-9)

	late := base
	late.LateDays = 2
	require.InDelta(t, 10.0*0.7, *tabstore.ComputeTotal(late), 1e-9)

	badFormat := base
	badFormat.FormatOk = false
	require.InDelta(t, 10.0*0.85, *tabstore.ComputeTotal(badFormat), 1e-9)

	floored := base
	floored.LateDays = 10
	require.Zero(t, *tabstore.ComputeTotal(floored))

	copied := base
	copied.SuspectedCopy = true
	require.Zero(t, *tabstore.ComputeTotal(copied))

	require.Nil(t, tabstore.ComputeTotal(tabstore.Row{Scores: []*float64{nil, nil}}))
}
