package pipeline

import (
	"github.com/pif-course/collector/internal/record"
)

// ProgressGatherer receives pipeline progress as it happens. Implementations
// stream it to a terminal, a message broker, or swallow it in tests.
type ProgressGatherer interface {
	StartRun(assignment string)
	StartCohort(cohort string, students int)

	StartStudent(login string)
	FinishStudent(login string, rec *record.StudentRecord)
	ReportViolation(login string, filename string, reason string)

	FinishCohort(cohort string, delivered int, missing int)
	StartMerge(assignment string)
	FinishRun(inserted int, updated int, errIfAny error)
}
