package termgath

import (
	"fmt"
	"time"

	"github.com/fatih/color"

	"github.com/pif-course/collector/internal/record"
)

// TerminalGatherer prints pipeline progress for an operator watching the
// run.
type TerminalGatherer struct {
	StartedAt time.Time
}

func New() *TerminalGatherer { return &TerminalGatherer{StartedAt: time.Now()} }

func (t *TerminalGatherer) StartRun(assignment string) {
	fmt.Printf("== Collecting %s ==\n", assignment)
}

func (t *TerminalGatherer) StartCohort(cohort string, students int) {
	fmt.Printf("-- Cohort %s: %d submissions --\n", cohort, students)
}

func (t *TerminalGatherer) StartStudent(login string) {
	fmt.Printf("-> %s\n", login)
}

func (t *TerminalGatherer) FinishStudent(login string, rec *record.StudentRecord) {
	status := color.GreenString("delivered")
	if !rec.Delivered {
		status = color.RedString("missing")
	}
	late := ""
	if rec.LateDays > 0 {
		late = color.YellowString(" late=%dd", rec.LateDays)
	}
	format := ""
	if !rec.FormatOk {
		format = color.YellowString(" format")
	}
	fmt.Printf("<- %s: %s%s%s\n", login, status, late, format)
	if rec.Comment != "" {
		fmt.Printf("   %s\n", rec.Comment)
	}
}

func (t *TerminalGatherer) ReportViolation(login string, filename string, reason string) {
	fmt.Printf("   %s %s: %s (%s)\n", color.YellowString("!"), login, filename, reason)
}

func (t *TerminalGatherer) FinishCohort(cohort string, delivered int, missing int) {
	fmt.Printf("-- Cohort %s done: %d delivered, %d missing --\n", cohort, delivered, missing)
}

func (t *TerminalGatherer) StartMerge(assignment string) {
	fmt.Printf("-- Merging %s into the grade store --\n", assignment)
}

func (t *TerminalGatherer) FinishRun(inserted int, updated int, errIfAny error) {
	dur := time.Since(t.StartedAt).Round(time.Millisecond)
	if errIfAny != nil {
		fmt.Printf("== Run failed after %s: %v ==\n", dur, errIfAny)
		return
	}
	fmt.Printf("== Run finished in %s: %d rows inserted, %d updated ==\n", dur, inserted, updated)
}
