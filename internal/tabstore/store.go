package tabstore

import "context"

// Row is one student line of the grade store. The column layout is fixed:
// name, email, login, q1..qN, delivered, lateDays, formatOk, suspectedCopy,
// totalScore, comment. Login is the sort and identity key.
type Row struct {
	Name  string
	Email string
	Login string

	// Scores holds the per-question score columns q1..qN in order. A nil
	// entry is an empty cell that grading has not filled yet.
	Scores []*float64

	Delivered     bool
	LateDays      int
	FormatOk      bool
	SuspectedCopy bool

	TotalScore *float64
	Comment    string
}

// Store is the persistent tabular grade store for one assignment. The
// merge step is its only writer. Updates are narrow on purpose: only the
// delivery-status columns can be touched for an existing row, so manually
// entered scores and comments survive any re-run.
type Store interface {
	// Rows returns the full current contents in stored order.
	Rows(ctx context.Context) ([]Row, error)

	// Append inserts rows after the existing ones, in the given order.
	Append(ctx context.Context, rows []Row) error

	// UpdateStatus overwrites only the delivered, lateDays and formatOk
	// cells of the row with the given login.
	UpdateStatus(ctx context.Context, login string, delivered bool, lateDays int, formatOk bool) error

	// SortByLogin reorders all rows into ascending login order.
	SortByLogin(ctx context.Context) error
}

// ComputeTotal derives the total score from filled question scores and the
// penalty flags: 15% per late day, 15% for a format violation, everything
// for a confirmed copy. Returns nil when no question score is present, so
// an ungraded row keeps its empty total cell.
func ComputeTotal(row Row) *float64 {
	sum := 0.0
	any := false
	for _, s := range row.Scores {
		if s != nil {
			sum += *s
			any = true
		}
	}
	if !any {
		return nil
	}

	factor := 1.0 - 0.15*float64(row.LateDays)
	if !row.FormatOk {
		factor -= 0.15
	}
	if factor < 0 {
		factor = 0
	}
	total := sum * factor
	if row.SuspectedCopy {
		total = 0
	}
	return &total
}
