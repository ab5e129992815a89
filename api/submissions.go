package api

import "time"

// Submission states as reported by the submission source.
const (
	StateNew       = "NEW"
	StateCreated   = "CREATED"
	StateTurnedIn  = "TURNED_IN"
	StateReturned  = "RETURNED"
	StateReclaimed = "RECLAIMED_BY_STUDENT"
)

// Submission is one student's submission for a coursework item.
type Submission struct {
	ID        string `json:"id"`
	StudentID string `json:"user_id"`
	State     string `json:"state"`

	Attachments []Attachment  `json:"attachments"`
	History     []StateChange `json:"submission_history"`
}

// Attachment is a single file attached to a submission. The binary content
// is fetched separately by id.
type Attachment struct {
	ID    string `json:"id"`
	Title string `json:"title"`
}

// StateChange is one entry of a submission's state history. ActorID is the
// user that performed the transition; for lateness purposes only transitions
// performed by the student themselves count.
type StateChange struct {
	State   string    `json:"state"`
	ActorID string    `json:"actor_user_id"`
	At      time.Time `json:"state_timestamp"`
}

// Student is the profile of an enrolled student.
type Student struct {
	ID    string `json:"id"`
	Name  string `json:"full_name"`
	Email string `json:"email_address"`
}

// Coursework describes one assignment of a course.
type Coursework struct {
	ID    string     `json:"id"`
	Title string     `json:"title"`
	Due   *time.Time `json:"due,omitempty"`
}
