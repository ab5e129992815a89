package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/classify"
	"github.com/pif-course/collector/internal/dict"
	"github.com/pif-course/collector/internal/evaluate"
	"github.com/pif-course/collector/internal/fetch"
	"github.com/pif-course/collector/internal/flatten"
	"github.com/pif-course/collector/internal/merge"
	"github.com/pif-course/collector/internal/record"
	"github.com/pif-course/collector/internal/source"
	"github.com/pif-course/collector/internal/tabstore"
	"github.com/pif-course/collector/internal/unpack"
)

// CohortSpec identifies one cohort's assignment in the submission source.
type CohortSpec struct {
	Name         string
	CourseID     string
	CourseworkID string
}

// Runner drives the full pipeline for one assignment: evaluate and download
// per student, unpack, flatten, classify, snapshot, and finally merge all
// cohorts into the grade store.
type Runner struct {
	src        source.Source
	downloader *fetch.Downloader
	dict       *dict.Dictionary
	gath       ProgressGatherer
	log        *slog.Logger
	root       string
}

func NewRunner(src source.Source, d *dict.Dictionary, gath ProgressGatherer, root string, log *slog.Logger) *Runner {
	return &Runner{
		src:        src,
		downloader: fetch.New(src, fetch.DefaultLimit, log),
		dict:       d,
		gath:       gath,
		log:        log,
		root:       root,
	}
}

// Run processes all cohorts of one assignment and merges the results into
// the grade store. Cohorts must all reference the same assignment but keep
// their own due instants; per-student failures never abort a cohort, and a
// failed cohort is skipped so the surviving cohorts still get merged. Any
// skipped cohorts are reported alongside the merge result.
func (r *Runner) Run(ctx context.Context, assignment string, cohorts []CohortSpec, store tabstore.Store) (inserted, updated int, err error) {
	r.gath.StartRun(assignment)
	defer func() { r.gath.FinishRun(inserted, updated, err) }()

	title := ""
	var results []*record.CohortResult
	var cohortErrs []error

	for _, spec := range cohorts {
		cw, cwErr := r.src.Coursework(ctx, spec.CourseID, spec.CourseworkID)
		if cwErr != nil {
			r.log.Error("cohort aborted",
				slog.String("cohort", spec.Name), slog.Any("error", cwErr))
			cohortErrs = append(cohortErrs, fmt.Errorf("cohort %s: %w", spec.Name, cwErr))
			continue
		}
		if title == "" {
			title = cw.Title
		} else if ListName(cw.Title) != ListName(title) {
			return 0, 0, fmt.Errorf("cohorts select different assignments: %q vs %q", title, cw.Title)
		}

		result, cohortErr := r.runCohort(ctx, spec, assignment, cw.Title, cw.Due)
		if cohortErr != nil {
			r.log.Error("cohort aborted",
				slog.String("cohort", spec.Name), slog.Any("error", cohortErr))
			cohortErrs = append(cohortErrs, fmt.Errorf("cohort %s: %w", spec.Name, cohortErr))
			continue
		}
		results = append(results, result)
	}
	if len(results) == 0 {
		return 0, 0, errors.Join(cohortErrs...)
	}

	records, aggErr := merge.Aggregate(results)
	if aggErr != nil {
		return 0, 0, aggErr
	}

	finalSnapshot := filepath.Join(r.root, assignment, "students_final.json")
	all := make([]*record.StudentRecord, 0, len(records))
	for _, result := range results {
		all = append(all, result.Records...)
	}
	if err := record.SaveSnapshot(finalSnapshot, all); err != nil {
		return 0, 0, err
	}

	r.gath.StartMerge(assignment)
	existing, rowsErr := store.Rows(ctx)
	if rowsErr != nil {
		return 0, 0, rowsErr
	}
	plan := merge.BuildPlan(existing, records, r.dict.MaxID())
	if err := merge.Apply(ctx, store, plan, r.log); err != nil {
		return 0, 0, err
	}
	return len(plan.Inserts), len(plan.Updates), errors.Join(cohortErrs...)
}

// runCohort produces one cohort's records and normalized file tree.
func (r *Runner) runCohort(ctx context.Context, spec CohortSpec, assignment, title string, due *time.Time) (*record.CohortResult, error) {
	subs, err := r.src.ListSubmissions(ctx, spec.CourseID, spec.CourseworkID)
	if err != nil {
		return nil, err
	}
	r.gath.StartCohort(spec.Name, len(subs))

	ext := classify.ExtForTitle(title)
	cohortDir := filepath.Join(r.root, assignment, spec.Name)
	result := &record.CohortResult{Cohort: spec.Name}
	delivered, missing := 0, 0

	for _, sub := range subs {
		rec, studentErr := r.runStudent(ctx, spec, sub, cohortDir, due, ext)
		if studentErr != nil {
			// contained: the student is skipped, the cohort continues
			r.log.Error("student skipped",
				slog.String("student_id", sub.StudentID), slog.Any("error", studentErr))
			continue
		}
		result.Records = append(result.Records, rec)
		if rec.Delivered {
			delivered++
		} else {
			missing++
		}
	}

	snapshot := filepath.Join(cohortDir, "students.json")
	if err := record.SaveSnapshot(snapshot, result.Records); err != nil {
		return nil, err
	}
	r.gath.FinishCohort(spec.Name, delivered, missing)
	return result, nil
}

func (r *Runner) runStudent(ctx context.Context, spec CohortSpec, sub api.Submission, cohortDir string, due *time.Time, ext string) (*record.StudentRecord, error) {
	student, err := r.src.StudentProfile(ctx, spec.CourseID, sub.StudentID)
	if err != nil {
		return nil, err
	}

	rec := evaluate.Evaluate(student, sub, due, ext)
	r.gath.StartStudent(rec.Login)

	studentDir := filepath.Join(cohortDir, "submissions", rec.Login)
	if err := os.MkdirAll(studentDir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create student folder: %w", err)
	}

	if len(sub.Attachments) > 0 {
		r.downloadAll(ctx, rec, sub, studentDir)
	}
	if rec.Delivered {
		r.normalizeTree(rec, sub, studentDir, ext)
	}

	if ierr := rec.Normalize(); ierr != nil {
		var integ *record.IntegrityError
		if errors.As(ierr, &integ) {
			r.log.Warn("record repaired", slog.String("login", rec.Login), slog.Any("error", integ))
		}
	}
	r.gath.FinishStudent(rec.Login, rec)
	return rec, nil
}

// downloadAll fetches this student's attachments. Individual failures are
// contained as comments; a submission where nothing at all arrived is
// demoted to non-delivery.
func (r *Runner) downloadAll(ctx context.Context, rec *record.StudentRecord, sub api.Submission, dir string) {
	results, err := r.downloader.FetchAll(ctx, sub.Attachments, dir)
	if err != nil {
		rec.MarkNotDelivered("Submission error: files could not be downloaded.")
		return
	}

	failed := 0
	for _, res := range results {
		if res.Err == nil {
			continue
		}
		failed++
		if source.IsUnsafeFile(res.Err) {
			rec.AddComment("Submission error: file %s was flagged as malware or spam.", res.Attachment.Title)
			r.gath.ReportViolation(rec.Login, res.Attachment.Title, "flagged as unsafe")
		} else {
			rec.AddComment("Submission error: file %s was not downloaded.", res.Attachment.Title)
		}
	}
	if failed == len(results) {
		rec.MarkNotDelivered("No attachment could be downloaded.")
	}
}

// normalizeTree runs unpack, flatten and classify over one student folder.
func (r *Runner) normalizeTree(rec *record.StudentRecord, sub api.Submission, dir string, ext string) {
	log := r.log.With(slog.String("login", rec.Login))

	rep, err := unpack.Extract(dir, log)
	if err != nil {
		rec.AddComment("Submission error: archives could not be processed.")
		log.Error("unpack failed", slog.Any("error", err))
		return
	}
	attachmentTitles := map[string]bool{}
	for _, att := range sub.Attachments {
		attachmentTitles[att.Title] = true
	}
	for _, name := range rep.Rars {
		// rars attached directly were already flagged by the evaluator
		if !attachmentTitles[name] {
			rec.FormatOk = false
			rec.AddComment("Found a rar (%s) inside the submission.", name)
		}
		r.gath.ReportViolation(rec.Login, name, "rar container")
	}
	for _, ae := range rep.Failed {
		rec.FormatOk = false
		rec.AddComment("Archive %s is corrupt and was not extracted.", ae.Archive)
		r.gath.ReportViolation(rec.Login, ae.Archive, "corrupt archive")
	}

	flatRep, err := flatten.Flatten(dir, log)
	if err != nil {
		rec.AddComment("Submission error: folder structure could not be normalized.")
		log.Error("flatten failed", slog.Any("error", err))
		return
	}
	for _, col := range flatRep.Collisions {
		rec.AddComment("Duplicate filename %s: kept the first copy, left the other in %s.",
			col.Name, filepath.Base(filepath.Dir(col.Path)))
	}

	outcome, err := classify.Run(dir, r.dict, ext, log)
	if err != nil {
		rec.AddComment("Submission error: files could not be classified.")
		log.Error("classify failed", slog.Any("error", err))
		return
	}
	if outcome.SourceCount == 0 && (len(rep.Rars) > 0 || len(rep.Failed) > 0) {
		// the archive comment already explains the empty folder; the
		// delivery itself happened
		return
	}
	outcome.Apply(rec, ext)
}

// ListName derives the short assignment name from its full title, e.g.
// "LISTA 3 - Recursão" becomes "LISTA 3".
func ListName(title string) string {
	if i := strings.Index(title, " - "); i >= 0 && strings.Contains(strings.ToUpper(title), "LISTA") {
		return title[:i]
	}
	return title
}

// ListNameFolder is the filesystem-safe form of the short name.
func ListNameFolder(title string) string {
	name := strings.ToLower(ListName(title))
	return strings.ReplaceAll(name, " ", "_")
}
