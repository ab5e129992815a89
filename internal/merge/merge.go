package merge

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"

	"github.com/pif-course/collector/internal/record"
	"github.com/pif-course/collector/internal/tabstore"
)

// MergeConflict is fatal to the merge of one assignment: the same login
// appeared in more than one cohort, so neither record can be trusted.
// Per-cohort snapshots stay on disk for manual inspection.
type MergeConflict struct {
	Logins []string
}

func (e *MergeConflict) Error() string {
	return fmt.Sprintf("merge conflict: logins present in multiple cohorts: %s",
		strings.Join(e.Logins, ", "))
}

// Plan is the write set computed from the existing store rows and the
// cohort results. Applying a plan touches nothing outside of it.
type Plan struct {
	// Inserts are rows for logins absent from the store, ascending by login.
	Inserts []tabstore.Row
	// Updates are narrow status updates for logins already in the store.
	Updates []StatusUpdate
}

// StatusUpdate carries the only cells the merger may overwrite on an
// existing row.
type StatusUpdate struct {
	Login     string
	Delivered bool
	LateDays  int
	FormatOk  bool
}

// Aggregate unions cohort results into one collection keyed by login. A
// login occurring in two cohorts is a MergeConflict, never resolved by
// picking a side.
func Aggregate(cohorts []*record.CohortResult) (map[string]*record.StudentRecord, error) {
	seen := mapset.NewThreadUnsafeSet[string]()
	dupes := mapset.NewThreadUnsafeSet[string]()
	byLogin := map[string]*record.StudentRecord{}

	for _, cohort := range cohorts {
		for _, rec := range cohort.Records {
			if !seen.Add(rec.Login) {
				dupes.Add(rec.Login)
				continue
			}
			byLogin[rec.Login] = rec
		}
	}

	if dupes.Cardinality() > 0 {
		logins := dupes.ToSlice()
		sort.Strings(logins)
		return nil, &MergeConflict{Logins: logins}
	}
	return byLogin, nil
}

// BuildPlan reconciles aggregated records against the store's current
// contents. New logins become appended rows; known logins become narrow
// status updates, so manually graded cells are never rewritten. The plan
// is a pure function of its inputs, which is what makes a re-run after a
// partial failure safe.
func BuildPlan(existing []tabstore.Row, records map[string]*record.StudentRecord, questions int) Plan {
	present := mapset.NewThreadUnsafeSet[string]()
	for _, row := range existing {
		present.Add(row.Login)
	}

	logins := make([]string, 0, len(records))
	for login := range records {
		logins = append(logins, login)
	}
	sort.Strings(logins)

	var plan Plan
	for _, login := range logins {
		rec := records[login]
		if present.Contains(login) {
			plan.Updates = append(plan.Updates, StatusUpdate{
				Login:     login,
				Delivered: rec.Delivered,
				LateDays:  rec.LateDays,
				FormatOk:  rec.FormatOk,
			})
			continue
		}
		plan.Inserts = append(plan.Inserts, toRow(rec, questions))
	}
	return plan
}

// Apply executes the plan and finishes with the single per-merge sort. The
// whole sequence is idempotent: re-running with the same inputs appends
// nothing and repeats only the harmless status updates.
func Apply(ctx context.Context, store tabstore.Store, plan Plan, log *slog.Logger) error {
	if err := store.Append(ctx, plan.Inserts); err != nil {
		return fmt.Errorf("merge append: %w", err)
	}
	for _, u := range plan.Updates {
		if err := store.UpdateStatus(ctx, u.Login, u.Delivered, u.LateDays, u.FormatOk); err != nil {
			return fmt.Errorf("merge update: %w", err)
		}
	}
	if err := store.SortByLogin(ctx); err != nil {
		return fmt.Errorf("merge sort: %w", err)
	}
	log.Info("merge applied",
		slog.Int("inserted", len(plan.Inserts)), slog.Int("updated", len(plan.Updates)))
	return nil
}

func toRow(rec *record.StudentRecord, questions int) tabstore.Row {
	row := tabstore.Row{
		Name:          rec.Name,
		Email:         rec.Email,
		Login:         rec.Login,
		Scores:        make([]*float64, questions),
		Delivered:     rec.Delivered,
		LateDays:      rec.LateDays,
		FormatOk:      rec.FormatOk,
		SuspectedCopy: rec.SuspectedCopy,
		Comment:       rec.Comment,
	}
	for q, score := range rec.Scores {
		if q >= 1 && q <= questions {
			s := score
			row.Scores[q-1] = &s
		}
	}
	return row
}
