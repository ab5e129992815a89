package api

import "time"

// MsgType is a message type for streamed pipeline progress
type MsgType string

// Progress stream message type constants
const (
	StartRunMsg      MsgType = "run_start"
	StartCohortMsg   MsgType = "cohort_start"
	StartStudentMsg  MsgType = "student_start"
	FinishStudentMsg MsgType = "student_finish"
	ViolationMsg     MsgType = "format_violation"
	FinishCohortMsg  MsgType = "cohort_finish"
	StartMergeMsg    MsgType = "merge_start"
	FinishRunMsg     MsgType = "run_finish"
)

// Comment fragments are trimmed before streaming
const MaxCommentWidth = 200

// Header is the common header for all progress messages
type Header struct {
	RunUuid string  `json:"run_uuid"`
	MsgType MsgType `json:"msg_type"`
}

// StudentStatus is the streamed view of a finalized per-student record
type StudentStatus struct {
	Login     string `json:"login"`
	Delivered bool   `json:"delivered"`
	LateDays  int    `json:"late_days"`
	FormatOk  bool   `json:"format_ok"`
	Comment   string `json:"comment,omitempty"`
}

// StartRun message sent once when an assignment run begins
type StartRun struct {
	Header
	Assignment  string `json:"assignment"`
	StartedTime string `json:"started_time"`
}

// StartCohort message sent when one cohort's pipeline begins
type StartCohort struct {
	Header
	Cohort   string `json:"cohort"`
	Students int    `json:"students"`
}

// StartStudent message sent when a student's submission starts processing
type StartStudent struct {
	Header
	Login string `json:"login"`
}

// FinishStudent message sent when a student's record is finalized
type FinishStudent struct {
	Header
	Status StudentStatus `json:"status"`
}

// Violation message sent for every recorded format violation
type Violation struct {
	Header
	Login    string `json:"login"`
	Filename string `json:"filename"`
	Reason   string `json:"reason"`
}

// FinishCohort message sent when one cohort's pipeline completes
type FinishCohort struct {
	Header
	Cohort    string `json:"cohort"`
	Delivered int    `json:"delivered"`
	Missing   int    `json:"missing"`
}

// StartMerge message sent when the aggregation merge begins
type StartMerge struct {
	Header
	Assignment string `json:"assignment"`
}

// FinishRun message sent once at the end, with the merge outcome
type FinishRun struct {
	Header
	Inserted     int     `json:"inserted"`
	Updated      int     `json:"updated"`
	Error        *string `json:"error,omitempty"`
	FinishedTime string  `json:"finished_time"`
}

func NewStartRun(runUuid string, assignment string) StartRun {
	return StartRun{
		Header:      Header{RunUuid: runUuid, MsgType: StartRunMsg},
		Assignment:  assignment,
		StartedTime: time.Now().Format(time.RFC3339),
	}
}

func NewStartCohort(runUuid string, cohort string, students int) StartCohort {
	return StartCohort{
		Header:   Header{RunUuid: runUuid, MsgType: StartCohortMsg},
		Cohort:   cohort,
		Students: students,
	}
}

func NewStartStudent(runUuid string, login string) StartStudent {
	return StartStudent{
		Header: Header{RunUuid: runUuid, MsgType: StartStudentMsg},
		Login:  login,
	}
}

func NewFinishStudent(runUuid string, status StudentStatus) FinishStudent {
	return FinishStudent{
		Header: Header{RunUuid: runUuid, MsgType: FinishStudentMsg},
		Status: status,
	}
}

func NewViolation(runUuid string, login, filename, reason string) Violation {
	return Violation{
		Header:   Header{RunUuid: runUuid, MsgType: ViolationMsg},
		Login:    login,
		Filename: filename,
		Reason:   reason,
	}
}

func NewFinishCohort(runUuid string, cohort string, delivered, missing int) FinishCohort {
	return FinishCohort{
		Header:    Header{RunUuid: runUuid, MsgType: FinishCohortMsg},
		Cohort:    cohort,
		Delivered: delivered,
		Missing:   missing,
	}
}

func NewStartMerge(runUuid string, assignment string) StartMerge {
	return StartMerge{
		Header:     Header{RunUuid: runUuid, MsgType: StartMergeMsg},
		Assignment: assignment,
	}
}

func NewFinishRun(runUuid string, inserted, updated int, errIfAny error) FinishRun {
	msg := FinishRun{
		Header:       Header{RunUuid: runUuid, MsgType: FinishRunMsg},
		Inserted:     inserted,
		Updated:      updated,
		FinishedTime: time.Now().Format(time.RFC3339),
	}
	if errIfAny != nil {
		s := errIfAny.Error()
		msg.Error = &s
	}
	return msg
}
