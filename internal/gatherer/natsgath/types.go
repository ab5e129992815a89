package natsgath

import (
	"github.com/nats-io/nats.go"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/record"
)

type natsGatherer struct {
	nc      *nats.Conn
	subject string
	runUuid string
}

func (s *natsGatherer) StartRun(assignment string) {
	s.send(api.NewStartRun(s.runUuid, assignment))
}

func (s *natsGatherer) StartCohort(cohort string, students int) {
	s.send(api.NewStartCohort(s.runUuid, cohort, students))
}

func (s *natsGatherer) StartStudent(login string) {
	s.send(api.NewStartStudent(s.runUuid, login))
}

func (s *natsGatherer) FinishStudent(login string, rec *record.StudentRecord) {
	s.send(api.NewFinishStudent(s.runUuid, api.StudentStatus{
		Login:     login,
		Delivered: rec.Delivered,
		LateDays:  rec.LateDays,
		FormatOk:  rec.FormatOk,
		Comment:   trimComment(rec.Comment, api.MaxCommentWidth),
	}))
}

func (s *natsGatherer) ReportViolation(login string, filename string, reason string) {
	s.send(api.NewViolation(s.runUuid, login, filename, reason))
}

func (s *natsGatherer) FinishCohort(cohort string, delivered int, missing int) {
	s.send(api.NewFinishCohort(s.runUuid, cohort, delivered, missing))
}

func (s *natsGatherer) StartMerge(assignment string) {
	s.send(api.NewStartMerge(s.runUuid, assignment))
}

func (s *natsGatherer) FinishRun(inserted int, updated int, errIfAny error) {
	s.send(api.NewFinishRun(s.runUuid, inserted, updated, errIfAny))
}
