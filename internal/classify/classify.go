package classify

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pif-course/collector/internal/dict"
	"github.com/pif-course/collector/internal/record"
)

// Conflict is a second file resolving to a question slot that is already
// canonically filled. The earlier file keeps the slot; the later one is
// left under its original name and reported.
type Conflict struct {
	QuestionID int
	File       string
	Existing   string
}

func (c Conflict) Error() string {
	return fmt.Sprintf("classification conflict: %s also matches q%d (taken by %s)",
		c.File, c.QuestionID, c.Existing)
}

// Outcome describes one classification pass over a student folder.
type Outcome struct {
	// Renamed maps question id to the original filename that now holds
	// the canonical q<id><ext> name.
	Renamed map[int]string
	// Conflicts lists files that matched an already-filled slot.
	Conflicts []Conflict
	// Unmatched lists expected-extension files no question claimed.
	Unmatched []string
	// SourceCount is the number of expected-extension files seen.
	SourceCount int
}

// ExtForTitle selects the expected source extension from the assignment
// title's language marker.
func ExtForTitle(title string) string {
	if strings.Contains(strings.ToUpper(title), "HASKELL") {
		return ".hs"
	}
	return ".c"
}

// Run classifies every expected-extension file in dir against the question
// dictionary and renames matches to their canonical q<id><ext> name. Files
// are visited in lexicographic order; the first file matching a question
// claims its slot. No file is ever deleted or overwritten.
func Run(dir string, d *dict.Dictionary, ext string, log *slog.Logger) (Outcome, error) {
	out := Outcome{Renamed: map[int]string{}}

	entries, err := os.ReadDir(dir)
	if err != nil {
		if os.IsNotExist(err) {
			return out, nil
		}
		return out, fmt.Errorf("failed to read student folder %s: %w", dir, err)
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].Name() < entries[j].Name() })

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if !strings.EqualFold(filepath.Ext(name), ext) {
			continue
		}
		out.SourceCount++

		id, ok := d.Match(name)
		if !ok {
			out.Unmatched = append(out.Unmatched, name)
			log.Info("file matches no question", slog.String("file", name))
			continue
		}

		canonical := fmt.Sprintf("q%d%s", id, ext)
		if name == canonical {
			if prev, taken := out.Renamed[id]; taken && prev != name {
				// cannot happen: the canonical name is unique in a directory
				continue
			}
			out.Renamed[id] = name
			continue
		}
		if prev, taken := out.Renamed[id]; taken {
			out.Conflicts = append(out.Conflicts, Conflict{QuestionID: id, File: name, Existing: prev})
			log.Warn("question slot already filled",
				slog.Int("question", id), slog.String("file", name))
			continue
		}
		if _, err := os.Stat(filepath.Join(dir, canonical)); err == nil {
			// a canonical file existed before this pass, e.g. on a re-run
			out.Conflicts = append(out.Conflicts, Conflict{QuestionID: id, File: name, Existing: canonical})
			log.Warn("question slot already filled",
				slog.Int("question", id), slog.String("file", name))
			continue
		}

		if err := os.Rename(filepath.Join(dir, name), filepath.Join(dir, canonical)); err != nil {
			return out, fmt.Errorf("failed to rename %s to %s: %w", name, canonical, err)
		}
		out.Renamed[id] = name
		log.Debug("file classified",
			slog.String("file", name), slog.String("canonical", canonical))
	}
	return out, nil
}

// Apply records the outcome on the student record. A folder with no
// expected-extension files counts as a missing delivery even when the
// student attached something, because nothing gradable arrived.
func (o Outcome) Apply(rec *record.StudentRecord, ext string) {
	if o.SourceCount == 0 {
		if rec.Delivered {
			rec.MarkNotDelivered(fmt.Sprintf("No %s files in the submission.", ext))
		}
		return
	}
	for _, name := range o.Unmatched {
		rec.AddComment("File %s does not correspond to any question.", name)
	}
	for _, c := range o.Conflicts {
		rec.AddComment("File %s also matches question %d, kept %s.", c.File, c.QuestionID, c.Existing)
	}
}
