package tabstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/gofrs/flock"
	_ "modernc.org/sqlite"
)

// SQLiteStore is a Store backed by a single SQLite file. The file is
// guarded by a flock so two collector runs cannot interleave writes.
type SQLiteStore struct {
	db        *sql.DB
	lock      *flock.Flock
	questions int
}

// OpenSQLite opens (or creates) the grade store at path with q1..qN score
// columns. The number of questions is fixed at creation; reopening with a
// different count is an error because the column layout is the contract.
func OpenSQLite(path string, questions int, weights map[int]float64) (*SQLiteStore, error) {
	if questions <= 0 {
		return nil, fmt.Errorf("store needs at least one question column")
	}

	lock := flock.New(path + ".lock")
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("failed to lock grade store: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("grade store %s is locked by another run", path)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		_ = lock.Unlock()
		return nil, fmt.Errorf("failed to open grade store: %w", err)
	}

	s := &SQLiteStore{db: db, lock: lock, questions: questions}
	if err := s.init(weights); err != nil {
		_ = db.Close()
		_ = lock.Unlock()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) init(weights map[int]float64) error {
	var cols strings.Builder
	for i := 1; i <= s.questions; i++ {
		fmt.Fprintf(&cols, "q%d REAL,\n", i)
	}

	schema := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS grades (
	pos INTEGER NOT NULL,
	name TEXT NOT NULL,
	email TEXT NOT NULL,
	login TEXT NOT NULL UNIQUE,
	%s
	delivered INTEGER NOT NULL,
	late_days INTEGER NOT NULL,
	format_ok INTEGER NOT NULL,
	suspected_copy INTEGER NOT NULL,
	total_score REAL,
	comment TEXT NOT NULL DEFAULT ''
);
CREATE TABLE IF NOT EXISTS weights (
	question INTEGER PRIMARY KEY,
	weight REAL NOT NULL
);`, cols.String())

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to create grade store schema: %w", err)
	}

	// reject a store created with a different question count
	rows, err := s.db.Query(`SELECT name FROM pragma_table_info('grades') WHERE name LIKE 'q%'`)
	if err != nil {
		return fmt.Errorf("failed to inspect grade store schema: %w", err)
	}
	defer rows.Close()
	count := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if count != s.questions {
		return fmt.Errorf("grade store has %d question columns, run expects %d", count, s.questions)
	}

	for q, w := range weights {
		if _, err := s.db.Exec(
			`INSERT INTO weights (question, weight) VALUES (?, ?) ON CONFLICT(question) DO NOTHING`,
			q, w); err != nil {
			return fmt.Errorf("failed to record question weights: %w", err)
		}
	}
	return nil
}

// Close releases the store file and its lock.
func (s *SQLiteStore) Close() error {
	err := s.db.Close()
	if uerr := s.lock.Unlock(); err == nil {
		err = uerr
	}
	return err
}

// Rows implements Store.
func (s *SQLiteStore) Rows(ctx context.Context) ([]Row, error) {
	cols := []string{"name", "email", "login"}
	for i := 1; i <= s.questions; i++ {
		cols = append(cols, fmt.Sprintf("q%d", i))
	}
	cols = append(cols, "delivered", "late_days", "format_ok", "suspected_copy", "total_score", "comment")

	query := fmt.Sprintf(`SELECT %s FROM grades ORDER BY pos`, strings.Join(cols, ", "))
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to read grade store: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		r := Row{Scores: make([]*float64, s.questions)}
		var delivered, formatOk, suspected int
		dest := []any{&r.Name, &r.Email, &r.Login}
		for i := range r.Scores {
			dest = append(dest, &r.Scores[i])
		}
		dest = append(dest, &delivered, &r.LateDays, &formatOk, &suspected, &r.TotalScore, &r.Comment)
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan grade row: %w", err)
		}
		r.Delivered = delivered != 0
		r.FormatOk = formatOk != 0
		r.SuspectedCopy = suspected != 0
		out = append(out, r)
	}
	return out, rows.Err()
}

// Append implements Store.
func (s *SQLiteStore) Append(ctx context.Context, newRows []Row) error {
	if len(newRows) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin append: %w", err)
	}
	defer tx.Rollback()

	var pos int
	if err := tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(pos), -1) + 1 FROM grades`).Scan(&pos); err != nil {
		return fmt.Errorf("failed to find append position: %w", err)
	}

	cols := []string{"pos", "name", "email", "login"}
	for i := 1; i <= s.questions; i++ {
		cols = append(cols, fmt.Sprintf("q%d", i))
	}
	cols = append(cols, "delivered", "late_days", "format_ok", "suspected_copy", "total_score", "comment")
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	insert := fmt.Sprintf(`INSERT INTO grades (%s) VALUES (%s)`, strings.Join(cols, ", "), placeholders)

	for _, r := range newRows {
		if len(r.Scores) > s.questions {
			return fmt.Errorf("row %s has %d scores, store has %d question columns",
				r.Login, len(r.Scores), s.questions)
		}
		args := []any{pos, r.Name, r.Email, r.Login}
		for i := 0; i < s.questions; i++ {
			if i < len(r.Scores) {
				args = append(args, r.Scores[i])
			} else {
				args = append(args, nil)
			}
		}
		args = append(args, boolInt(r.Delivered), r.LateDays, boolInt(r.FormatOk),
			boolInt(r.SuspectedCopy), r.TotalScore, r.Comment)
		if _, err := tx.ExecContext(ctx, insert, args...); err != nil {
			return fmt.Errorf("failed to append row for %s: %w", r.Login, err)
		}
		pos++
	}
	return tx.Commit()
}

// UpdateStatus implements Store.
func (s *SQLiteStore) UpdateStatus(ctx context.Context, login string, delivered bool, lateDays int, formatOk bool) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE grades SET delivered = ?, late_days = ?, format_ok = ? WHERE login = ?`,
		boolInt(delivered), lateDays, boolInt(formatOk), login)
	if err != nil {
		return fmt.Errorf("failed to update status for %s: %w", login, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return fmt.Errorf("login %s not present in grade store", login)
	}
	return nil
}

// SortByLogin implements Store.
func (s *SQLiteStore) SortByLogin(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE grades SET pos = (SELECT COUNT(*) FROM grades g2 WHERE g2.login < grades.login)`)
	if err != nil {
		return fmt.Errorf("failed to sort grade store: %w", err)
	}
	return nil
}

// RefreshTotals recomputes the totalScore cell for every row that has at
// least one question score filled. Rows without scores keep an empty cell.
func (s *SQLiteStore) RefreshTotals(ctx context.Context) error {
	rows, err := s.Rows(ctx)
	if err != nil {
		return err
	}
	for _, r := range rows {
		total := ComputeTotal(r)
		if total == nil {
			continue
		}
		if _, err := s.db.ExecContext(ctx,
			`UPDATE grades SET total_score = ? WHERE login = ?`, *total, r.Login); err != nil {
			return fmt.Errorf("failed to update total for %s: %w", r.Login, err)
		}
	}
	return nil
}

// Weights returns the per-question score weights recorded at creation.
func (s *SQLiteStore) Weights(ctx context.Context) (map[int]float64, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question, weight FROM weights`)
	if err != nil {
		return nil, fmt.Errorf("failed to read question weights: %w", err)
	}
	defer rows.Close()

	out := map[int]float64{}
	for rows.Next() {
		var q int
		var w float64
		if err := rows.Scan(&q, &w); err != nil {
			return nil, err
		}
		out[q] = w
	}
	return out, rows.Err()
}

func boolInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
