package record

import (
	"fmt"
	"strings"
)

// StudentRecord is the per-student grading state produced by one cohort's
// pipeline run. Login is the unique key across the whole run and never
// changes once assigned.
type StudentRecord struct {
	Login string `json:"login"`
	Name  string `json:"name"`
	Email string `json:"email"`

	Delivered     bool `json:"delivered"`
	LateDays      int  `json:"late_days"`
	FormatOk      bool `json:"format_ok"`
	SuspectedCopy bool `json:"suspected_copy"`

	Comment string `json:"comment"`

	// Scores maps question id to a numeric score. Populated externally
	// after classification; empty for a fresh run.
	Scores map[int]float64 `json:"scores,omitempty"`
}

// New creates a record for a student profile. The login is the local part
// of the email address.
func New(name, email string) *StudentRecord {
	return &StudentRecord{
		Login:     LoginFromEmail(email),
		Name:      name,
		Email:     email,
		Delivered: true,
		FormatOk:  true,
	}
}

// LoginFromEmail derives the login from the email local-part.
func LoginFromEmail(email string) string {
	if i := strings.IndexByte(email, '@'); i >= 0 {
		return email[:i]
	}
	return email
}

// AddComment appends a fragment to the record's comment. Comments are
// append-only within a run; fragments are separated by a single space.
func (r *StudentRecord) AddComment(format string, args ...any) {
	frag := strings.TrimSpace(fmt.Sprintf(format, args...))
	if frag == "" {
		return
	}
	if r.Comment == "" {
		r.Comment = frag
		return
	}
	r.Comment += " " + frag
}

// MarkNotDelivered demotes the record to non-delivery. LateDays is zeroed
// because lateness is meaningless without a delivery.
func (r *StudentRecord) MarkNotDelivered(reason string) {
	r.Delivered = false
	r.LateDays = 0
	if reason != "" {
		r.AddComment("%s", reason)
	}
}

// Normalize enforces the record invariants before the record leaves the
// pipeline. A violation is repaired and reported as an IntegrityError.
func (r *StudentRecord) Normalize() error {
	if r.Login == "" {
		return &IntegrityError{Msg: "record has no login"}
	}
	if !r.Delivered && r.LateDays != 0 {
		r.LateDays = 0
		return &IntegrityError{Msg: fmt.Sprintf("login %s: late days set on a missing delivery", r.Login)}
	}
	if r.LateDays < 0 {
		r.LateDays = 0
		return &IntegrityError{Msg: fmt.Sprintf("login %s: negative late days", r.Login)}
	}
	return nil
}

// IntegrityError marks a state the data model declares impossible. It is
// logged by the caller; the run continues with the repaired value.
type IntegrityError struct {
	Msg string
}

func (e *IntegrityError) Error() string {
	return "integrity: " + e.Msg
}

// CohortResult is the ordered set of records produced by one cohort.
type CohortResult struct {
	Cohort  string           `json:"cohort"`
	Records []*StudentRecord `json:"records"`
}

// Logins returns the logins of the cohort's records, in record order.
func (c *CohortResult) Logins() []string {
	out := make([]string, 0, len(c.Records))
	for _, r := range c.Records {
		out = append(out, r.Login)
	}
	return out
}

// Find returns the record with the given login, or nil.
func (c *CohortResult) Find(login string) *StudentRecord {
	for _, r := range c.Records {
		if r.Login == login {
			return r
		}
	}
	return nil
}
