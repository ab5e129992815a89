package evaluate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/pif-course/collector/api"
	"github.com/pif-course/collector/internal/evaluate"
)

var due = time.Date(2026, 4, 10, 2, 59, 59, 0, time.UTC)

func ana() api.Student {
	return api.Student{ID: "s-1", Name: "Ana Souza", Email: "ana123@school.edu"}
}

func turnedIn(actor string, at time.Time) api.StateChange {
	return api.StateChange{State: api.StateTurnedIn, ActorID: actor, At: at}
}

func TestEvaluateOnTime(t *testing.T) {
	sub := api.Submission{
		StudentID:   "s-1",
		Attachments: []api.Attachment{{ID: "f-1", Title: "ana123.zip"}},
		History:     []api.StateChange{turnedIn("s-1", due.Add(-time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.True(t, rec.Delivered)
	require.True(t, rec.FormatOk)
	require.Zero(t, rec.LateDays)
	require.Empty(t, rec.Comment)
}

func TestEvaluateNoAttachments(t *testing.T) {
	sub := api.Submission{
		StudentID: "s-1",
		History:   []api.StateChange{turnedIn("s-1", due.Add(48*time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.False(t, rec.Delivered)
	require.Zero(t, rec.LateDays)
	require.Contains(t, rec.Comment, "Did not deliver")
}

func TestTurnedInAtIgnoresOtherActors(t *testing.T) {
	sub := api.Submission{
		StudentID: "s-1",
		History: []api.StateChange{
			turnedIn("s-1", due.Add(-2*time.Hour)),
			{State: api.StateReturned, ActorID: "teacher", At: due.Add(time.Hour)},
			// a teacher flipping the state back never counts as a turn-in
			turnedIn("teacher", due.Add(72 * time.Hour)),
		},
	}

	got := evaluate.TurnedInAt(sub)
	require.NotNil(t, got)
	require.True(t, got.Equal(due.Add(-2*time.Hour)))
}

func TestTurnedInAtPicksLatest(t *testing.T) {
	sub := api.Submission{
		StudentID: "s-1",
		History: []api.StateChange{
			turnedIn("s-1", due.Add(-2*time.Hour)),
			{State: api.StateReclaimed, ActorID: "s-1", At: due.Add(-time.Hour)},
			turnedIn("s-1", due.Add(25*time.Hour)),
		},
	}

	got := evaluate.TurnedInAt(sub)
	require.NotNil(t, got)
	require.True(t, got.Equal(due.Add(25*time.Hour)))
}

func TestTurnedInAtNever(t *testing.T) {
	sub := api.Submission{StudentID: "s-1"}
	require.Nil(t, evaluate.TurnedInAt(sub))
}

func TestLateDays(t *testing.T) {
	cases := []struct {
		name string
		at   time.Time
		want int
	}{
		{"exactly at due", due, 0},
		{"one second late", due.Add(time.Second), 1},
		{"almost a day", due.Add(23 * time.Hour), 1},
		{"just over a day", due.Add(25 * time.Hour), 2},
		{"two full days", due.Add(48 * time.Hour), 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			at := tc.at
			require.Equal(t, tc.want, evaluate.LateDays(&due, &at))
		})
	}
}

func TestLateDaysMissingData(t *testing.T) {
	at := due.Add(48 * time.Hour)
	require.Zero(t, evaluate.LateDays(nil, &at))
	require.Zero(t, evaluate.LateDays(&due, nil))
}

func TestEvaluateRarAttachment(t *testing.T) {
	sub := api.Submission{
		StudentID:   "s-1",
		Attachments: []api.Attachment{{ID: "f-1", Title: "ana123.rar"}},
		History:     []api.StateChange{turnedIn("s-1", due.Add(-time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.True(t, rec.Delivered)
	require.False(t, rec.FormatOk)
	require.Contains(t, rec.Comment, "ana123.rar")
	require.Contains(t, rec.Comment, "instead of a zip")
}

func TestEvaluateMisnamedZip(t *testing.T) {
	sub := api.Submission{
		StudentID:   "s-1",
		Attachments: []api.Attachment{{ID: "f-1", Title: "lista1.zip"}},
		History:     []api.StateChange{turnedIn("s-1", due.Add(-time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.False(t, rec.FormatOk)
	require.Contains(t, rec.Comment, "lista1.zip")
	require.Contains(t, rec.Comment, "ana123.zip")
}

func TestEvaluateLooseFiles(t *testing.T) {
	sub := api.Submission{
		StudentID: "s-1",
		Attachments: []api.Attachment{
			{ID: "f-1", Title: "q1.c"},
			{ID: "f-2", Title: "q2.c"},
		},
		History: []api.StateChange{turnedIn("s-1", due.Add(-time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.True(t, rec.Delivered)
	require.False(t, rec.FormatOk)
	require.Contains(t, rec.Comment, "loose files")
}

func TestEvaluateNonSourceExtrasAreTolerated(t *testing.T) {
	sub := api.Submission{
		StudentID: "s-1",
		Attachments: []api.Attachment{
			{ID: "f-1", Title: "ana123.zip"},
			{ID: "f-2", Title: "enunciado.pdf"},
		},
		History: []api.StateChange{turnedIn("s-1", due.Add(-time.Hour))},
	}

	rec := evaluate.Evaluate(ana(), sub, &due, ".c")
	require.True(t, rec.FormatOk)
	require.Empty(t, rec.Comment)
}
