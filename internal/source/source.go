package source

import (
	"context"
	"errors"
	"fmt"

	"github.com/pif-course/collector/api"
)

// Source is the external submission source for one course. Implementations
// own their timeout and retry policy; the pipeline treats every returned
// error as a SourceError to contain.
type Source interface {
	// ListSubmissions returns all student submissions for a coursework item.
	ListSubmissions(ctx context.Context, courseID, courseworkID string) ([]api.Submission, error)

	// StudentProfile returns the profile of an enrolled student.
	StudentProfile(ctx context.Context, courseID, studentID string) (api.Student, error)

	// Coursework returns the assignment metadata, including the due instant
	// (nil when the assignment has no due date).
	Coursework(ctx context.Context, courseID, courseworkID string) (api.Coursework, error)

	// DownloadAttachment streams an attachment's binary content to dst.
	DownloadAttachment(ctx context.Context, attachmentID, dst string) error
}

// ErrKind distinguishes submission source failures.
type ErrKind int

const (
	// KindUnavailable covers network and server-side failures.
	KindUnavailable ErrKind = iota
	// KindNotFound covers missing students, coursework or attachments.
	KindNotFound
	// KindUnsafeFile marks an attachment the source refuses to serve
	// because it flagged the file as malware or spam.
	KindUnsafeFile
)

// SourceError is the error type for all submission source failures.
type SourceError struct {
	Kind ErrKind
	Op   string
	Err  error
}

func (e *SourceError) Error() string {
	kind := "unavailable"
	switch e.Kind {
	case KindNotFound:
		kind = "not found"
	case KindUnsafeFile:
		kind = "unsafe file"
	}
	return fmt.Sprintf("source %s: %s: %v", e.Op, kind, e.Err)
}

func (e *SourceError) Unwrap() error { return e.Err }

// IsUnsafeFile reports whether err is a source error for a file the source
// flagged as unsafe to download.
func IsUnsafeFile(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindUnsafeFile
}

// IsNotFound reports whether err is a not-found source error.
func IsNotFound(err error) bool {
	var se *SourceError
	return errors.As(err, &se) && se.Kind == KindNotFound
}
