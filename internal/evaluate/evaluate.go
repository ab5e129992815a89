package evaluate

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/record"
)

// Evaluate derives the initial per-student record from the submission
// source data: delivery, lateness against the due instant and archive
// format checks. File-level findings (extraction, classification) are
// appended to the record by later stages.
func Evaluate(student api.Student, sub api.Submission, due *time.Time, ext string) *record.StudentRecord {
	rec := record.New(student.Name, student.Email)

	if len(sub.Attachments) == 0 {
		rec.MarkNotDelivered("Did not deliver the assignment.")
		return rec
	}

	rec.LateDays = LateDays(due, TurnedInAt(sub))
	checkFormat(rec, sub.Attachments, ext)
	return rec
}

// TurnedInAt returns the authoritative submission instant: the latest
// transition to TURNED_IN performed by the student themselves. Teacher
// reopen or grading actions never count. Nil when the student never turned
// the work in.
func TurnedInAt(sub api.Submission) *time.Time {
	var last *time.Time
	for i := range sub.History {
		h := sub.History[i]
		if h.State != api.StateTurnedIn || h.ActorID != sub.StudentID {
			continue
		}
		if last == nil || h.At.After(*last) {
			t := h.At
			last = &t
		}
	}
	return last
}

// LateDays computes the whole-day ceiling of the positive difference
// between the turn-in instant and the due instant. Missing data and
// non-positive differences yield 0.
func LateDays(due *time.Time, turnedIn *time.Time) int {
	if due == nil || turnedIn == nil {
		return 0
	}
	diff := turnedIn.Sub(*due)
	if diff <= 0 {
		return 0
	}
	return int(math.Ceil(diff.Hours() / 24))
}

// checkFormat flags the delivery-format violations visible from attachment
// titles alone: rar containers, misnamed zip archives, and loose source
// files sent without any archive.
func checkFormat(rec *record.StudentRecord, attachments []api.Attachment, ext string) {
	expected := rec.Login + ".zip"
	hasArchive := false
	hasSource := false

	for _, att := range attachments {
		switch strings.ToLower(filepath.Ext(att.Title)) {
		case ".rar":
			hasArchive = true
			rec.FormatOk = false
			rec.AddComment("Sent a rar (%s) instead of a zip.", att.Title)
		case ".zip":
			hasArchive = true
			if att.Title != expected {
				rec.FormatOk = false
				rec.AddComment("Wrong zip name: %s, expected %s.", att.Title, expected)
			}
		default:
			if strings.EqualFold(filepath.Ext(att.Title), ext) {
				hasSource = true
			}
		}
	}

	if !hasArchive && hasSource {
		rec.FormatOk = false
		rec.AddComment("Sent loose files instead of a zip archive.")
	}
}
